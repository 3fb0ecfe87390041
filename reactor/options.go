package reactor

import "github.com/ehrlich-b/reactorkv/internal/logging"

// config holds construction-time settings for a Loop, assembled by Option
// functions passed to New.
type config struct {
	logger   *logging.Logger
	observer Observer
	backend  pollBackend
}

func defaultConfig() *config {
	return &config{observer: NoOpObserver{}}
}

// Option configures a Loop at construction time.
type Option func(*config)

// WithLogger attaches a logger the loop uses for diagnostic output. Absent
// a logger, the loop logs nothing.
func WithLogger(l *logging.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithObserver attaches an Observer notified of dispatch activity.
func WithObserver(o Observer) Option {
	return func(c *config) { c.observer = o }
}

// WithPollBackend overrides the default poll backend, e.g. with a
// MockPollBackend in tests or an alternate backend such as the io_uring
// one in poller_iouring_linux.go.
func WithPollBackend(b pollBackend) Option {
	return func(c *config) { c.backend = b }
}
