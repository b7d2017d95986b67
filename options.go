package corvid

import "github.com/corvidhttp/corvid/internal/scheduler"

// serverOptions holds NewServer's resolved configuration. Unexported,
// the same "options struct plus functional Option values" shape as the
// teacher's loopOptions/LoopOption pair.
type serverOptions struct {
	backlog     int
	workerCount int
	logger      Logger
}

// Option configures a Server at construction time. Concrete
// file/environment configuration loading is out of scope (spec.md §1's
// Non-goals); these are in-process knobs only.
type Option interface {
	apply(*serverOptions)
}

type optionFunc func(*serverOptions)

func (f optionFunc) apply(o *serverOptions) { f(o) }

// WithBacklog overrides the listen backlog (default 100, per spec.md
// §6's binding section).
func WithBacklog(n int) Option {
	return optionFunc(func(o *serverOptions) {
		if n > 0 {
			o.backlog = n
		}
	})
}

// WithWorkerCount overrides the scheduler's worker goroutine count
// (default max(1, cores-1), per spec.md §4.7's serve()).
func WithWorkerCount(n int) Option {
	return optionFunc(func(o *serverOptions) {
		if n > 0 {
			o.workerCount = n
		}
	})
}

// WithLogger injects a Logger; omitting this option uses
// defaultLogger() (the package-level default set via
// SetDefaultLogger, or a no-op logger if never set).
func WithLogger(l Logger) Option {
	return optionFunc(func(o *serverOptions) {
		if l != nil {
			o.logger = l
		}
	})
}

func resolveOptions(opts []Option) *serverOptions {
	cfg := &serverOptions{
		backlog:     100,
		workerCount: scheduler.DefaultWorkerCount(),
		logger:      defaultLogger(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.apply(cfg)
	}
	return cfg
}
