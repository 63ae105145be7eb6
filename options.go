package affinity

import (
	"log/slog"

	"github.com/hupe1980/affinity/internal/fs"
	"github.com/hupe1980/affinity/internal/resource"
	"github.com/hupe1980/affinity/schema"
	"github.com/hupe1980/affinity/tag"
)

type options struct {
	name             string
	description      string
	fixed            bool
	taxonomy         tag.Taxonomy
	schemas          []schema.Schema
	registry         *schema.Registry
	memoryLimit      int64
	ioLimit          int64
	resources        *resource.Controller
	metricsCollector MetricsCollector
	logger           *Logger
	onDirty          func()
	onStructure      func()
	fsys             fs.FileSystem
}

// Option configures Table construction.
type Option func(*options)

// WithName sets the table name used in logs and persisted files.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithDescription sets a free-text description persisted with the table.
func WithDescription(desc string) Option {
	return func(o *options) {
		o.description = desc
	}
}

// WithFixedMode pre-sizes every page to its rows×columns when it is built
// and treats running out of records as a programmer error. Use it for
// tables that are loaded once and only queried, where queries must not
// allocate.
func WithFixedMode(fixed bool) Option {
	return func(o *options) {
		o.fixed = fixed
	}
}

// WithTaxonomy sets the tag provider consulted for tag existence, parents and
// ordering on both axes. The default accepts every well-formed dotted tag.
func WithTaxonomy(tax tag.Taxonomy) Option {
	return func(o *options) {
		o.taxonomy = tax
	}
}

// WithSchemas registers schemas and creates a page for each.
func WithSchemas(schemas ...schema.Schema) Option {
	return func(o *options) {
		o.schemas = append(o.schemas, schemas...)
	}
}

// WithSchemaRegistry sets the registry used to resolve schema names, both
// for RegisterSchemaByName and for pages named in loaded streams. Deferred
// schemas are resolved on first use.
func WithSchemaRegistry(r *schema.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithMemoryLimit caps the bytes held by record pools across all pages.
// Growing past the limit fails with resource.ErrMemoryLimitExceeded.
// It is ignored when WithResourceController is also given.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithIOLimit throttles SaveTo and LoadFrom to bytesPerSec.
// It is ignored when WithResourceController is also given.
func WithIOLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.ioLimit = bytesPerSec
	}
}

// WithResourceController shares a resource controller between tables, so
// several tables draw from one memory budget and one IO limiter.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.resources = rc
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &affinity.BasicMetricsCollector{}
//	tbl, _ := affinity.New(affinity.WithMetricsCollector(metrics))
//	// ... use tbl ...
//	stats := metrics.GetStats()
//	fmt.Printf("Queries: %d, misses: %d\n", stats.QueryCount, stats.QueryMisses)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := affinity.NewJSONLogger(slog.LevelInfo)
//	tbl, _ := affinity.New(affinity.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithDirtyHandler registers a function called after every mutation, so a
// host can mark the owning asset as modified.
func WithDirtyHandler(fn func()) Option {
	return func(o *options) {
		o.onDirty = fn
	}
}

// WithStructureChangeCallback registers a function called after the set of
// schemas changes.
func WithStructureChangeCallback(fn func()) Option {
	return func(o *options) {
		o.onStructure = fn
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		name:             "table",
		taxonomy:         tag.Dotted{},
		metricsCollector: NoopMetricsCollector{},
		logger:           NewLogger(nil),
		fsys:             fs.Default,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.registry == nil {
		o.registry = schema.NewRegistry()
	}
	if o.resources == nil && (o.memoryLimit > 0 || o.ioLimit > 0) {
		o.resources = resource.NewController(resource.Config{
			MemoryLimitBytes:   o.memoryLimit,
			IOLimitBytesPerSec: o.ioLimit,
		})
	}
	return o
}
