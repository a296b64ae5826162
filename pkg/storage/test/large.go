package test

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zhangwei5095/metasfresh/pkg/refconfig"
	"github.com/zhangwei5095/metasfresh/pkg/storage"
)

// largePartitionSize is above the number of parameters sqlite binds into one statement (32766).
const largePartitionSize = 33000

// LargePartitionTest checks and writes a partition whose id lists do not fit into one statement.
func LargePartitionTest(t *testing.T, newDatastore DatastoreFactory) {
	ctx := context.Background()
	ds, s := newDatastore(t)

	orders := insertMany(t, s, "c_order", make([]map[string]any, largePartitionSize))
	first, middle, last := orders[0], orders[largePartitionSize/2], orders[largePartitionSize-1]
	lines := insertMany(t, s, "c_orderline", []map[string]any{
		{"c_order_id": first.ID},
		{"c_order_id": last.ID},
	})
	outsideLine := insert(t, s, "c_orderline", map[string]any{"c_order_id": middle.ID})

	cfg := refconfig.NewBuilder().
		Line("c_order").
		Line("c_orderline").LinkedRef("c_order_id", "c_order").
		MustBuild()
	want := &refconfig.TableReferenceDescriptor{
		ReferencingTable:  "c_orderline",
		ReferencingColumn: "c_order_id",
		ReferencedTable:   "c_order",
	}

	withLines := func(orders []*storage.Record, lines ...*storage.Record) *storage.Partition {
		records := make([]*storage.Record, 0, len(orders)+len(lines))
		records = append(records, orders...)
		records = append(records, lines...)
		return &storage.Partition{Config: cfg, Records: records}
	}

	t.Run("referenced_from_outside", func(t *testing.T) {
		result, err := ds.DryRun(ctx, withLines(orders, lines...))
		require.NoError(t, err)
		require.Equal(t, want, result.Violation)
	})

	t.Run("references_outside", func(t *testing.T) {
		// no unpartitioned line references these orders, but lines[1] references the last one
		inner := slices.Concat(orders[1:largePartitionSize/2], orders[largePartitionSize/2+1:largePartitionSize-1])
		result, err := ds.DryRun(ctx, withLines(inner, lines[1]))
		require.NoError(t, err)
		require.Equal(t, want, result.Violation)
	})

	t.Run("consistent", func(t *testing.T) {
		result, err := ds.DryRun(ctx, withLines(orders, append(lines, outsideLine)...))
		require.NoError(t, err)
		require.True(t, result.OK(), "violation %v", result.Violation)
	})

	t.Run("write", func(t *testing.T) {
		stored, err := ds.WritePartition(ctx, withLines(orders, append(lines, outsideLine)...))
		require.NoError(t, err)
		require.Len(t, stored.Records, largePartitionSize+3)

		got, err := ds.ReadPartition(ctx, stored.ID)
		require.NoError(t, err)
		require.Len(t, got.Records, largePartitionSize+3)

		require.Empty(t, readUnpartitioned(t, ds, "c_order", false))
		require.Empty(t, readUnpartitioned(t, ds, "c_orderline", false))

		_, err = ds.WritePartition(ctx, withLines([]*storage.Record{last}))
		require.ErrorIs(t, err, storage.ErrRecordsAlreadyPartitioned)
	})
}
