// Package partitioner computes partitions: sets of records that can be moved together without
// breaking referential integrity.
package partitioner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/zhangwei5095/metasfresh/internal/concurrency"
	"github.com/zhangwei5095/metasfresh/pkg/logger"
	"github.com/zhangwei5095/metasfresh/pkg/refconfig"
	"github.com/zhangwei5095/metasfresh/pkg/storage"
	"github.com/zhangwei5095/metasfresh/pkg/telemetry"
)

var tracer = otel.Tracer("dlm/pkg/partitioner")

const (
	DefaultMaxIterations  = 100
	DefaultMaxConcurrency = 4
	DefaultStoreRetries   = 3

	defaultRetryInterval = 50 * time.Millisecond
)

// Partitioner creates partitions by alternating closure computation and integrity checks,
// adding the references reported as missing to the configuration until the check passes.
type Partitioner struct {
	reader  storage.RecordReader
	checker storage.IntegrityChecker
	writer  storage.PartitionWriter
	logger  logger.Logger

	maxIterations  int
	maxConcurrency int
	storeRetries   uint64
	retryInterval  time.Duration
	readOptions    storage.ReadUnpartitionedOptions
}

type PartitionerOption func(p *Partitioner)

func WithLogger(l logger.Logger) PartitionerOption {
	return func(p *Partitioner) {
		p.logger = l
	}
}

// WithMaxIterations bounds the number of closures computed for one partition. Zero or less
// selects DefaultMaxIterations.
func WithMaxIterations(n int) PartitionerOption {
	return func(p *Partitioner) {
		p.maxIterations = n
	}
}

// WithOldestFirst makes the record reader return roots in ascending id order.
func WithOldestFirst(oldestFirst bool) PartitionerOption {
	return func(p *Partitioner) {
		p.readOptions.OldestFirst = oldestFirst
	}
}

// WithPartitionWriter enables StorePartition, CreateAndStore and CreatePartitions.
func WithPartitionWriter(w storage.PartitionWriter) PartitionerOption {
	return func(p *Partitioner) {
		p.writer = w
	}
}

func WithMaxConcurrency(n int) PartitionerOption {
	return func(p *Partitioner) {
		p.maxConcurrency = n
	}
}

// WithStoreRetries sets how often CreateAndStore recomputes a partition whose records were
// claimed by a concurrent writer, and how long it waits in between.
func WithStoreRetries(retries uint64, interval time.Duration) PartitionerOption {
	return func(p *Partitioner) {
		p.storeRetries = retries
		p.retryInterval = interval
	}
}

func New(reader storage.RecordReader, checker storage.IntegrityChecker, opts ...PartitionerOption) *Partitioner {
	p := &Partitioner{
		reader:         reader,
		checker:        checker,
		logger:         logger.NewNoopLogger(),
		maxIterations:  DefaultMaxIterations,
		maxConcurrency: DefaultMaxConcurrency,
		storeRetries:   DefaultStoreRetries,
		retryInterval:  defaultRetryInterval,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.maxIterations <= 0 {
		p.maxIterations = DefaultMaxIterations
	}

	return p
}

// NewFromBackend returns a Partitioner that reads, checks and stores through the backend.
func NewFromBackend(backend storage.PartitionBackend, opts ...PartitionerOption) *Partitioner {
	return New(backend, backend, append([]PartitionerOption{WithPartitionWriter(backend)}, opts...)...)
}

// CreatePartition returns a partition that the integrity checker accepts. The partition's
// configuration is the given one, plus every reference that had to be added to get there.
//
// Errors of the reader or the checker are returned as they are, wrapped with context.
// ErrNoProgress is returned if a reported violation is already declared by the configuration,
// ErrNoConvergence if the checker still objects after the maximum number of iterations.
func (p *Partitioner) CreatePartition(ctx context.Context, cfg *refconfig.Config) (*storage.Partition, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	ctx, span := tracer.Start(ctx, "CreatePartition")
	defer span.End()

	for iteration := 1; iteration <= p.maxIterations; iteration++ {
		records, err := ComputeClosure(ctx, p.reader, cfg, p.readOptions)
		if err != nil {
			telemetry.TraceError(span, err)
			return nil, err
		}

		candidate := &storage.Partition{Config: cfg, Records: records}

		p.logger.DebugWithContext(ctx, "closure computed",
			zap.Int("iteration", iteration),
			zap.Int("records", len(records)),
			zap.Stringer("config", cfg),
		)

		result, err := p.checker.DryRun(ctx, candidate)
		if err != nil {
			err = fmt.Errorf("dry run: %w", err)
			telemetry.TraceError(span, err)
			return nil, err
		}

		if result.OK() {
			span.SetAttributes(attribute.Int("iterations", iteration), attribute.Int("records", len(records)))
			repairIterationsHistogram.WithLabelValues("ok").Observe(float64(iteration))
			return candidate, nil
		}

		augmented, changed, err := cfg.Augment(*result.Violation)
		if err != nil {
			err = fmt.Errorf("augment with %s: %w", result.Violation, err)
			telemetry.TraceError(span, err)
			return nil, err
		}
		if !changed {
			repairIterationsHistogram.WithLabelValues("no_progress").Observe(float64(iteration))
			err = fmt.Errorf("%w: %s", ErrNoProgress, result.Violation)
			telemetry.TraceError(span, err)
			return nil, err
		}

		p.logger.InfoWithContext(ctx, "configuration augmented",
			zap.Int("iteration", iteration),
			zap.Stringer("reference", result.Violation),
		)
		augmentationCounter.WithLabelValues(result.Violation.ReferencingTable).Inc()
		span.AddEvent("augmented", trace.WithAttributes(attribute.String("reference", result.Violation.String())))

		cfg = augmented
	}

	repairIterationsHistogram.WithLabelValues("no_convergence").Observe(float64(p.maxIterations))
	err := fmt.Errorf("%w after %d iterations", ErrNoConvergence, p.maxIterations)
	telemetry.TraceError(span, err)
	return nil, err
}

// StorePartition hands the partition to the partition writer and returns the stored partition.
func (p *Partitioner) StorePartition(ctx context.Context, partition *storage.Partition) (*storage.Partition, error) {
	if p.writer == nil {
		return nil, ErrNoPartitionWriter
	}

	ctx, span := tracer.Start(ctx, "StorePartition", trace.WithAttributes(
		attribute.Int("records", len(partition.Records)),
	))
	defer span.End()

	stored, err := p.writer.WritePartition(ctx, partition)
	if err != nil {
		storedPartitionsCounter.WithLabelValues("error").Inc()
		telemetry.TraceError(span, err)
		return nil, err
	}

	storedPartitionsCounter.WithLabelValues("ok").Inc()
	span.SetAttributes(attribute.String("partition_id", stored.ID))
	p.logger.InfoWithContext(ctx, "partition stored",
		zap.String("partition_id", stored.ID),
		zap.Int("records", len(stored.Records)),
	)

	return stored, nil
}

// CreateAndStore creates a partition and stores it. An empty partition is returned without being
// stored. If a concurrent writer claimed some of the records first, the partition is computed
// again, up to the configured number of retries.
func (p *Partitioner) CreateAndStore(ctx context.Context, cfg *refconfig.Config) (*storage.Partition, error) {
	if p.writer == nil {
		return nil, ErrNoPartitionWriter
	}

	attempt := 0
	operation := func() (*storage.Partition, error) {
		attempt++
		partition, err := p.CreatePartition(ctx, cfg)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		if partition.IsEmpty() {
			return partition, nil
		}

		stored, err := p.StorePartition(ctx, partition)
		if err != nil {
			if errors.Is(err, storage.ErrRecordsAlreadyPartitioned) {
				p.logger.WarnWithContext(ctx, "records claimed concurrently, recomputing partition",
					zap.Int("attempt", attempt),
					zap.Error(err),
				)
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return stored, nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.retryInterval), p.storeRetries),
		ctx,
	)
	return backoff.RetryWithData(operation, policy)
}

// CreatePartitions runs CreateAndStore for every configuration, with at most the configured
// number of them at the same time. The result holds one partition per configuration, in the
// same order. The first error cancels the remaining work and is returned.
func (p *Partitioner) CreatePartitions(ctx context.Context, cfgs []*refconfig.Config) ([]*storage.Partition, error) {
	if p.writer == nil {
		return nil, ErrNoPartitionWriter
	}

	partitions := make([]*storage.Partition, len(cfgs))

	pool := concurrency.NewPool(ctx, p.maxConcurrency)
	for i, cfg := range cfgs {
		pool.Go(func(ctx context.Context) error {
			partition, err := p.CreateAndStore(ctx, cfg)
			if err != nil {
				return fmt.Errorf("configuration %d: %w", i, err)
			}
			partitions[i] = partition
			return nil
		})
	}

	if err := pool.Wait(); err != nil {
		return nil, err
	}
	return partitions, nil
}
