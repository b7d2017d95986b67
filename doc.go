// Package corvid is an embeddable HTTP/1.1 server library.
//
// Applications register handlers against route patterns, bind a TCP
// endpoint, and call Serve; corvid parses requests off the wire,
// dispatches them through a trie router, runs the matching handler, and
// writes the response back. Connections are closed after one response:
// there is no keep-alive, no TLS termination, and no HTTP/2 framing.
//
// The serving core is built from four cooperating pieces:
//
//   - internal/ioprim: non-blocking listening and accepted sockets
//   - internal/reactor: an epoll/kqueue readiness multiplexer
//   - internal/scheduler: a work-stealing executor of cooperative tasks
//   - the router in this package: a trie over path segments supporting
//     literal, :param, and *wildcard segments
package corvid
