package export

import "github.com/hupe1980/affinity/codec"

type options struct {
	schemas     []string
	codec       codec.Codec
	concurrency int
}

// Option configures an export.
type Option func(*options)

// WithSchemas limits the export to the named schemas.
func WithSchemas(names ...string) Option {
	return func(o *options) {
		o.schemas = names
	}
}

// WithCodec sets the codec of JSON exports. Default: codec.Default.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

// WithConcurrency sets how many schemas are collected in parallel.
// Default: 4.
func WithConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		codec:       codec.Default,
		concurrency: 4,
	}
	for _, fn := range optFns {
		fn(&o)
	}
	if o.codec == nil {
		o.codec = codec.Default
	}
	if o.concurrency <= 0 {
		o.concurrency = 1
	}
	return o
}
