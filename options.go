package docvec

import (
	"path/filepath"

	"github.com/hupe1980/docvec/distance"
	"github.com/hupe1980/docvec/persistence"
)

const (
	// DefaultBatchSize is the number of chunks embedded and inserted per batch.
	DefaultBatchSize = 128

	// DefaultNProbes is the number of partitions probed during a search.
	DefaultNProbes = 32

	// DefaultBuildDocID tags rows created by a full rebuild.
	DefaultBuildDocID = "build"

	// trainSampleLimit caps the number of vectors used to train the index.
	trainSampleLimit = 100_000
)

type options struct {
	indexPath        string
	storePath        string
	legacyPath       string
	indexSpec        string
	batchSize        int
	nprobes          int
	buildDocID       string
	metric           distance.Metric
	compression      persistence.CompressionType
	logger           *Logger
	metricsCollector MetricsCollector
}

// Option configures Service construction.
type Option func(*options)

// WithDataDir places all artifacts (index snapshot, metadata database,
// legacy list) under dir. Individual path options override the derived
// locations.
func WithDataDir(dir string) Option {
	return func(o *options) {
		o.indexPath = filepath.Join(dir, "index.dvc")
		o.storePath = filepath.Join(dir, "meta.db")
		o.legacyPath = filepath.Join(dir, "legacy.json")
	}
}

// WithIndexPath sets the index snapshot location.
func WithIndexPath(path string) Option {
	return func(o *options) {
		o.indexPath = path
	}
}

// WithStorePath sets the metadata database location.
func WithStorePath(path string) Option {
	return func(o *options) {
		o.storePath = path
	}
}

// WithLegacyPath sets the location of the legacy chunk list consumed by
// Migrate.
func WithLegacyPath(path string) Option {
	return func(o *options) {
		o.legacyPath = path
	}
}

// WithIndexSpec selects the index layout, e.g. "Flat" or "IVF256,Flat".
// The spec only applies when a new index is created; an existing snapshot
// keeps its layout.
func WithIndexSpec(spec string) Option {
	return func(o *options) {
		o.indexSpec = spec
	}
}

// WithBatchSize sets the number of chunks embedded and inserted per batch.
func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithNProbes sets the number of partitions probed during a search.
// Only meaningful for partitioned index layouts.
func WithNProbes(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.nprobes = n
		}
	}
}

// WithBuildDocID overrides the document id assigned by BuildIndex.
func WithBuildDocID(docID string) Option {
	return func(o *options) {
		if docID != "" {
			o.buildDocID = docID
		}
	}
}

// WithMetric selects the distance metric for newly created indexes. The
// default is inner product, which behaves like cosine similarity because the
// embedder L2-normalizes its output.
func WithMetric(m distance.Metric) Option {
	return func(o *options) {
		o.metric = m
	}
}

// WithCompression selects the snapshot payload compression.
func WithCompression(c persistence.CompressionType) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithLogger configures structured logging. Pass nil to keep the noop
// logger.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
func WithMetricsCollector(collector MetricsCollector) Option {
	return func(o *options) {
		if collector == nil {
			collector = NoopMetricsCollector{}
		}
		o.metricsCollector = collector
	}
}

func defaultOptions() options {
	o := options{
		indexSpec:        "Flat",
		batchSize:        DefaultBatchSize,
		nprobes:          DefaultNProbes,
		buildDocID:       DefaultBuildDocID,
		metric:           distance.MetricInnerProduct,
		compression:      persistence.CompressionZSTD,
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
	}
	WithDataDir("data")(&o)
	return o
}
