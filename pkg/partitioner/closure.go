package partitioner

import (
	"context"
	"errors"
	"fmt"

	"github.com/emirpasic/gods/queues/linkedlistqueue"
	"github.com/emirpasic/gods/sets/hashset"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zhangwei5095/metasfresh/pkg/refconfig"
	"github.com/zhangwei5095/metasfresh/pkg/storage"
	"github.com/zhangwei5095/metasfresh/pkg/telemetry"
)

// ComputeClosure returns the records that have to travel together under the given configuration.
//
// Every unpartitioned record of a table that has a line is a root. From each record the
// references of its table's line are followed. Targets of tables without a line are included but
// not followed further. Records that already belong to a partition are never included, and every
// row is visited once no matter how many paths lead to it.
//
// The records are returned in the order they were discovered: roots line by line, then the
// records found by following references.
func ComputeClosure(
	ctx context.Context,
	reader storage.RecordReader,
	cfg *refconfig.Config,
	opts storage.ReadUnpartitionedOptions,
) ([]*storage.Record, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	ctx, span := tracer.Start(ctx, "ComputeClosure", trace.WithAttributes(
		attribute.Int("lines", len(cfg.Lines())),
	))
	defer span.End()

	c := &closure{
		reader:  reader,
		cfg:     cfg,
		visited: hashset.New(),
		queue:   linkedlistqueue.New(),
	}

	for _, line := range cfg.Lines() {
		if err := c.addRoots(ctx, line, opts); err != nil {
			telemetry.TraceError(span, err)
			return nil, err
		}
	}

	if err := c.drain(ctx); err != nil {
		telemetry.TraceError(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("records", len(c.records)))
	closureSizeHistogram.Observe(float64(len(c.records)))

	return c.records, nil
}

type closure struct {
	reader storage.RecordReader
	cfg    *refconfig.Config

	// keys of the records added so far
	visited *hashset.Set
	// records whose references are still to be followed
	queue   *linkedlistqueue.Queue
	records []*storage.Record
}

func (c *closure) addRoots(ctx context.Context, line *refconfig.Line, opts storage.ReadUnpartitionedOptions) error {
	iter, err := c.reader.ReadUnpartitioned(ctx, line.Table(), opts)
	if err != nil {
		return fmt.Errorf("read unpartitioned %s: %w", line.Table(), err)
	}

	roots, err := storage.Collect(ctx, iter)
	if err != nil {
		return fmt.Errorf("read unpartitioned %s: %w", line.Table(), err)
	}

	for _, root := range roots {
		c.add(root)
	}
	return nil
}

func (c *closure) drain(ctx context.Context) error {
	for !c.queue.Empty() {
		if err := ctx.Err(); err != nil {
			return err
		}

		v, _ := c.queue.Dequeue()
		record := v.(*storage.Record)

		line := c.cfg.Line(record.Table)
		if line == nil {
			continue
		}

		for _, ref := range line.References() {
			target, err := c.reader.ResolveReference(ctx, record, ref)
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					continue
				}
				return fmt.Errorf("resolve %s from %s: %w", ref, record, err)
			}
			c.add(target)
		}
	}
	return nil
}

// add records and enqueues the record unless it is partitioned or was seen before.
func (c *closure) add(record *storage.Record) {
	if record == nil || record.IsPartitioned() {
		return
	}

	key := record.Key()
	if c.visited.Contains(key) {
		return
	}

	c.visited.Add(key)
	c.queue.Enqueue(record)
	c.records = append(c.records, record)
}
