package test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zhangwei5095/metasfresh/pkg/refconfig"
	"github.com/zhangwei5095/metasfresh/pkg/storage"
)

func DryRunTest(t *testing.T, newDatastore DatastoreFactory) {
	ctx := context.Background()
	orderlineToOrder := &refconfig.TableReferenceDescriptor{
		ReferencingTable:  "c_orderline",
		ReferencingColumn: "c_order_id",
		ReferencedTable:   "c_order",
	}

	dryRun := func(t *testing.T, ds storage.Datastore, records ...*storage.Record) storage.DryRunResult {
		t.Helper()
		result, err := ds.DryRun(ctx, &storage.Partition{
			Config:  refconfig.NewBuilder().MustBuild(),
			Records: records,
		})
		require.NoError(t, err)
		return result
	}

	t.Run("empty_partition", func(t *testing.T) {
		ds, s := newDatastore(t)
		order := insert(t, s, "c_order", nil)
		insert(t, s, "c_orderline", map[string]any{"c_order_id": order.ID})

		require.True(t, dryRun(t, ds).OK())
	})

	t.Run("unreferenced_record", func(t *testing.T) {
		ds, s := newDatastore(t)
		order := insert(t, s, "c_order", nil)

		require.True(t, dryRun(t, ds, order).OK())
	})

	t.Run("referenced_from_outside", func(t *testing.T) {
		ds, s := newDatastore(t)
		order := insert(t, s, "c_order", nil)
		insert(t, s, "c_orderline", map[string]any{"c_order_id": order.ID})

		result := dryRun(t, ds, order)
		require.False(t, result.OK())
		require.Equal(t, orderlineToOrder, result.Violation)
	})

	t.Run("references_outside", func(t *testing.T) {
		ds, s := newDatastore(t)
		order := insert(t, s, "c_order", nil)
		line := insert(t, s, "c_orderline", map[string]any{"c_order_id": order.ID})

		result := dryRun(t, ds, line)
		require.False(t, result.OK())
		require.Equal(t, orderlineToOrder, result.Violation)
	})

	t.Run("complete", func(t *testing.T) {
		ds, s := newDatastore(t)
		order := insert(t, s, "c_order", nil)
		line1 := insert(t, s, "c_orderline", map[string]any{"c_order_id": order.ID})
		line2 := insert(t, s, "c_orderline", map[string]any{"c_order_id": order.ID})

		require.True(t, dryRun(t, ds, order, line1, line2).OK())
	})

	t.Run("one_line_missing", func(t *testing.T) {
		ds, s := newDatastore(t)
		order := insert(t, s, "c_order", nil)
		line1 := insert(t, s, "c_orderline", map[string]any{"c_order_id": order.ID})
		insert(t, s, "c_orderline", map[string]any{"c_order_id": order.ID})

		result := dryRun(t, ds, order, line1)
		require.Equal(t, orderlineToOrder, result.Violation)
	})

	t.Run("target_already_partitioned", func(t *testing.T) {
		ds, s := newDatastore(t)
		order := insert(t, s, "c_order", nil)
		invoice := insert(t, s, "c_invoice", map[string]any{"c_order_id": order.ID})
		writePartition(t, ds, order)

		require.True(t, dryRun(t, ds, invoice).OK())
	})

	t.Run("referencing_record_already_partitioned", func(t *testing.T) {
		ds, s := newDatastore(t)
		order := insert(t, s, "c_order", nil)
		line := insert(t, s, "c_orderline", map[string]any{"c_order_id": order.ID})
		writePartition(t, ds, line)

		require.True(t, dryRun(t, ds, order).OK())
	})

	t.Run("self_reference", func(t *testing.T) {
		ds, s := newDatastore(t)
		invoice := insert(t, s, "c_invoice", nil)
		reversal := insert(t, s, "c_invoice", map[string]any{"reversal_id": invoice.ID})

		result := dryRun(t, ds, invoice)
		require.Equal(t, &refconfig.TableReferenceDescriptor{
			ReferencingTable:  "c_invoice",
			ReferencingColumn: "reversal_id",
			ReferencedTable:   "c_invoice",
		}, result.Violation)

		require.True(t, dryRun(t, ds, invoice, reversal).OK())
	})

	t.Run("dry_run_changes_nothing", func(t *testing.T) {
		ds, s := newDatastore(t)
		order := insert(t, s, "c_order", nil)
		insert(t, s, "c_orderline", map[string]any{"c_order_id": order.ID})

		dryRun(t, ds, order)
		require.Equal(t, []int64{order.ID}, readUnpartitioned(t, ds, "c_order", true))
	})
}
