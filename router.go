package corvid

import "strings"

// nodeKind classifies a RouteNode by how it matches a path component.
// The ordering of these constants is load-bearing: children are kept
// sorted by kind so that Literal < ParamNonEmpty < ParamAny, which is
// what gives literal-over-parameter matching priority during lookup.
type nodeKind uint8

const (
	nodeLiteral nodeKind = iota
	nodeParamNonEmpty
	nodeParamAny
)

// RouteNode is one path-segment level of the trie. The root node is
// always a Literal with an empty key.
type RouteNode struct {
	kind     nodeKind
	key      string // segment text (Literal) or parameter name (Param*)
	children []*RouteNode
	handlers map[Method]Handler
}

func newRouteNode(kind nodeKind, key string) *RouteNode {
	return &RouteNode{kind: kind, key: key}
}

// findChild returns the existing child with the given (kind, key), if
// any.
func (n *RouteNode) findChild(kind nodeKind, key string) *RouteNode {
	for _, c := range n.children {
		if c.kind == kind && c.key == key {
			return c
		}
	}
	return nil
}

// insertChild inserts (or returns the existing) child with (kind, key),
// keeping n.children sorted by kind, and by insertion order within a
// kind.
func (n *RouteNode) insertChild(kind nodeKind, key string) *RouteNode {
	if c := n.findChild(kind, key); c != nil {
		return c
	}

	child := newRouteNode(kind, key)

	pos := len(n.children)
	for i, c := range n.children {
		if c.kind > kind {
			pos = i
			break
		}
	}

	n.children = append(n.children, nil)
	copy(n.children[pos+1:], n.children[pos:])
	n.children[pos] = child

	return child
}

// RouteTree is a prefix trie over path components, supporting literal,
// non-empty-parameter (:name), and wildcard (*name) segments with
// per-method handler sets at each node.
//
// The tree is immutable after Server.Serve begins; concurrent readers
// need no synchronization at that point. Insertions after serving
// starts are outside the supported contract, per spec.md §4.4.
type RouteTree struct {
	root *RouteNode
}

// NewRouteTree returns an empty RouteTree.
func NewRouteTree() *RouteTree {
	return &RouteTree{root: newRouteNode(nodeLiteral, "")}
}

// segmentKindKey classifies one registration-time path segment and
// returns its kind and the key stored at the node (the segment with
// any leading ':'/'*' marker stripped).
func segmentKindKey(segment string) (kind nodeKind, key string, err error) {
	if segment == "" {
		return 0, "", ErrInvalidRoute
	}

	switch segment[0] {
	case ':':
		kind, key = nodeParamNonEmpty, segment[1:]
	case '*':
		kind, key = nodeParamAny, segment[1:]
	default:
		kind, key = nodeLiteral, segment
	}

	if key == "" {
		return 0, "", ErrInvalidRoute
	}
	if strings.ContainsAny(key, ":*") {
		return 0, "", ErrInvalidRoute
	}
	for _, r := range key {
		if !isIdentChar(r) {
			return 0, "", ErrInvalidRoute
		}
	}

	return kind, key, nil
}

func isIdentChar(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z':
		return true
	case r >= 'a' && r <= 'z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '.' || r == '_' || r == '-':
		return true
	}
	return false
}

func splitTarget(target string) []string {
	target = strings.TrimPrefix(target, "/")
	if target == "" {
		return nil
	}
	return strings.Split(target, "/")
}

// Insert registers handler for (method, target). It fails with
// ErrInvalidRoute if target's syntax is invalid, or ErrDuplicateRoute
// if a handler is already registered for this exact (method, target).
func (t *RouteTree) Insert(method Method, target string, handler Handler) error {
	segments := splitTarget(target)

	node := t.root
	for _, seg := range segments {
		kind, key, err := segmentKindKey(seg)
		if err != nil {
			return err
		}
		node = node.insertChild(kind, key)
	}

	if node.handlers == nil {
		node.handlers = make(map[Method]Handler)
	}
	if _, exists := node.handlers[method]; exists {
		return ErrDuplicateRoute
	}
	node.handlers[method] = handler

	return nil
}

// Route performs the depth-first, parameter-rollback lookup described
// in spec.md §4.4: literal children are preferred, then ParamNonEmpty,
// then ParamAny (guaranteed by insertion-time sort order); a captured
// parameter is rolled back if no full match is found below it.
//
// It returns the registered handler and captured parameters, or
// (nil, nil, false) if no route matches.
func (t *RouteTree) Route(method Method, target string) (Handler, PathParameters, bool) {
	segments := splitTarget(target)

	var params PathParameters
	handler, ok := route(t.root, method, segments, &params)
	if !ok {
		return nil, nil, false
	}
	return handler, params, true
}

func route(node *RouteNode, method Method, segments []string, params *PathParameters) (Handler, bool) {
	if len(segments) == 0 {
		h, ok := node.handlers[method]
		return h, ok
	}

	component, rest := segments[0], segments[1:]

	for _, child := range node.children {
		switch child.kind {
		case nodeLiteral:
			if child.key != component {
				continue
			}
			if h, ok := route(child, method, rest, params); ok {
				return h, true
			}

		case nodeParamNonEmpty:
			if component == "" {
				continue
			}
			*params = append(*params, component)
			if h, ok := route(child, method, rest, params); ok {
				return h, true
			}
			*params = (*params)[:len(*params)-1]

		case nodeParamAny:
			*params = append(*params, component)
			if h, ok := route(child, method, rest, params); ok {
				return h, true
			}
			*params = (*params)[:len(*params)-1]
		}
	}

	return nil, false
}

// HasPathOtherMethods reports whether some method other than method is
// registered for the exact path target, without affecting Route's own
// 404-only contract. It exists so a handler can build its own 405
// response: the 404-vs-405 split is left undecided for the core
// lookup, so Route itself never returns MethodNotAllowed.
func (t *RouteTree) HasPathOtherMethods(method Method, target string) bool {
	segments := splitTarget(target)
	node := t.root
	for _, seg := range segments {
		next := matchExactChild(node, seg)
		if next == nil {
			return false
		}
		node = next
	}
	for m := range node.handlers {
		if m != method {
			return true
		}
	}
	return false
}

// matchExactChild finds a child that matches component the way Route
// would prefer on its first attempt: literal first, else any
// parameter-kind child (used only by the read-only diagnostic above).
func matchExactChild(node *RouteNode, component string) *RouteNode {
	for _, c := range node.children {
		if c.kind == nodeLiteral && c.key == component {
			return c
		}
	}
	for _, c := range node.children {
		if c.kind == nodeParamNonEmpty && component != "" {
			return c
		}
		if c.kind == nodeParamAny {
			return c
		}
	}
	return nil
}

// ValidateTarget reports whether target satisfies the route target
// grammar in spec.md §6, without inserting anything.
func ValidateTarget(target string) error {
	for _, seg := range splitTarget(target) {
		if _, _, err := segmentKindKey(seg); err != nil {
			return err
		}
	}
	return nil
}
