package graphcodec

import (
	"go.uber.org/zap"

	"meshgraph/pkg/typereg"
)

// DefaultMaxDepth bounds graph nesting for encode and decode.
const DefaultMaxDepth = 512

// Option configures an Encoder or a Decoder.
type Option func(*options)

type options struct {
	registry *typereg.Registry
	rules    *Rules
	logger   *zap.Logger
	maxDepth int
	acquire  *bool
}

func applyOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = typereg.Default()
	}
	if o.rules == nil {
		o.rules = DefaultRules()
	}
	if o.logger == nil {
		o.logger = zap.L().Named("graphcodec")
	}
	if o.maxDepth <= 0 {
		o.maxDepth = DefaultMaxDepth
	}
	return o
}

// WithRegistry replaces the default type registry.
func WithRegistry(r *typereg.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithRules replaces the default delegation rules.
func WithRules(r *Rules) Option {
	return func(o *options) { o.rules = r }
}

// WithLogger sets the logger. The default is the global zap logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMaxDepth limits nesting depth.
func WithMaxDepth(n int) Option {
	return func(o *options) { o.maxDepth = n }
}

// WithAcquire fixes the decode policy, overriding any mode carried by
// the message. Encoders ignore it.
func WithAcquire(acquire bool) Option {
	return func(o *options) { o.acquire = &acquire }
}
