package dict

import "github.com/ehrlich-b/reactorkv/internal/logging"

// Config holds the tunable policy knobs for a Dict, assembled from
// DefaultConfig plus any Options passed to New. ResizeEnabled replaces the
// original design's hidden process-global dictEnableResize/DisableResize
// toggle with an explicit per-Dict policy, set at construction and
// adjustable later with SetResizeEnabled.
type Config struct {
	ResizeEnabled           bool
	LoadFactorHighWatermark int
}

// DefaultConfig returns resizing enabled with the conventional watermark
// of 5 (growth is forced once used reaches 5x size regardless of the
// ResizeEnabled policy).
func DefaultConfig() Config {
	return Config{ResizeEnabled: true, LoadFactorHighWatermark: 5}
}

type dictConfig[K, V any] struct {
	Config
	logger   *logging.Logger
	observer Observer
}

func defaultDictConfig[K, V any]() *dictConfig[K, V] {
	return &dictConfig[K, V]{Config: DefaultConfig(), observer: NoOpObserver{}}
}

// Option configures a Dict at construction time.
type Option[K, V any] func(*dictConfig[K, V])

// WithConfig overrides the full Config in one call.
func WithConfig[K, V any](cfg Config) Option[K, V] {
	return func(c *dictConfig[K, V]) { c.Config = cfg }
}

// WithResizeEnabled sets the initial resize-enabled policy.
func WithResizeEnabled[K, V any](enabled bool) Option[K, V] {
	return func(c *dictConfig[K, V]) { c.ResizeEnabled = enabled }
}

// WithLogger attaches a logger the dict uses for diagnostic output.
func WithLogger[K, V any](l *logging.Logger) Option[K, V] {
	return func(c *dictConfig[K, V]) { c.logger = l }
}

// WithObserver attaches an Observer notified of rehash/resize activity.
func WithObserver[K, V any](o Observer) Option[K, V] {
	return func(c *dictConfig[K, V]) { c.observer = o }
}
