package test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zhangwei5095/metasfresh/pkg/storage"
)

func ReadUnpartitionedTest(t *testing.T, newDatastore DatastoreFactory) {
	t.Run("empty_table", func(t *testing.T) {
		ds, _ := newDatastore(t)
		require.Empty(t, readUnpartitioned(t, ds, "c_order", false))
	})

	t.Run("oldest_first", func(t *testing.T) {
		ds, s := newDatastore(t)
		var want []int64
		for i := 0; i < 5; i++ {
			want = append(want, insert(t, s, "c_order", nil).ID)
		}

		require.Equal(t, want, readUnpartitioned(t, ds, "c_order", true))
		require.ElementsMatch(t, want, readUnpartitioned(t, ds, "c_order", false))
	})

	t.Run("excludes_partitioned", func(t *testing.T) {
		ds, s := newDatastore(t)
		o1 := insert(t, s, "c_order", nil)
		o2 := insert(t, s, "c_order", nil)
		o3 := insert(t, s, "c_order", nil)

		writePartition(t, ds, o2)

		require.Equal(t, []int64{o1.ID, o3.ID}, readUnpartitioned(t, ds, "c_order", true))
	})

	t.Run("stop_before_done", func(t *testing.T) {
		ds, s := newDatastore(t)
		insert(t, s, "c_order", nil)
		insert(t, s, "c_order", nil)

		iter, err := ds.ReadUnpartitioned(context.Background(), "c_order", storage.ReadUnpartitionedOptions{})
		require.NoError(t, err)
		_, err = iter.Next(context.Background())
		require.NoError(t, err)
		iter.Stop()
	})
}

func ResolveReferenceTest(t *testing.T, newDatastore DatastoreFactory) {
	ctx := context.Background()

	t.Run("plain_reference", func(t *testing.T) {
		ds, s := newDatastore(t)
		order := insert(t, s, "c_order", nil)
		line := insert(t, s, "c_orderline", map[string]any{"c_order_id": order.ID})

		got, err := ds.ResolveReference(ctx, line, reference("c_orderline", "c_order_id", "c_order"))
		require.NoError(t, err)
		require.Equal(t, &storage.Record{Table: "c_order", ID: order.ID}, got)
	})

	t.Run("null_reference", func(t *testing.T) {
		ds, s := newDatastore(t)
		line := insert(t, s, "c_orderline", map[string]any{"c_order_id": nil})

		_, err := ds.ResolveReference(ctx, line, reference("c_orderline", "c_order_id", "c_order"))
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("missing_record", func(t *testing.T) {
		ds, _ := newDatastore(t)
		line := &storage.Record{Table: "c_orderline", ID: 4711}

		_, err := ds.ResolveReference(ctx, line, reference("c_orderline", "c_order_id", "c_order"))
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("partitioned_target", func(t *testing.T) {
		ds, s := newDatastore(t)
		order := insert(t, s, "c_order", nil)
		invoice := insert(t, s, "c_invoice", map[string]any{"c_order_id": order.ID})
		stored := writePartition(t, ds, order)

		got, err := ds.ResolveReference(ctx, invoice, reference("c_invoice", "c_order_id", "c_order"))
		require.NoError(t, err)
		require.Equal(t, order.ID, got.ID)
		require.Equal(t, stored.ID, got.PartitionID)
		require.True(t, got.IsPartitioned())
	})

	t.Run("self_reference", func(t *testing.T) {
		ds, s := newDatastore(t)
		invoice := insert(t, s, "c_invoice", nil)
		reversal := insert(t, s, "c_invoice", map[string]any{"reversal_id": invoice.ID})

		got, err := ds.ResolveReference(ctx, reversal, reference("c_invoice", "reversal_id", "c_invoice"))
		require.NoError(t, err)
		require.Equal(t, invoice.ID, got.ID)
		require.Equal(t, "c_invoice", got.Table)
	})

	t.Run("polymorphic_reference", func(t *testing.T) {
		ds, s := newDatastore(t)
		invoice := insert(t, s, "c_invoice", nil)
		request := insert(t, s, "r_request", map[string]any{
			"ad_table_id": tableID(t, s, "c_invoice"),
			"record_id":   invoice.ID,
		})

		got, err := ds.ResolveReference(ctx, request, reference("r_request", "record_id", "c_invoice"))
		require.NoError(t, err)
		require.Equal(t, &storage.Record{Table: "c_invoice", ID: invoice.ID}, got)

		// the request points at an invoice, not at an order with the same id
		insert(t, s, "c_order", nil)
		_, err = ds.ResolveReference(ctx, request, reference("r_request", "record_id", "c_order"))
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("polymorphic_without_table", func(t *testing.T) {
		ds, s := newDatastore(t)
		invoice := insert(t, s, "c_invoice", nil)
		request := insert(t, s, "r_request", map[string]any{"record_id": invoice.ID})

		_, err := ds.ResolveReference(ctx, request, reference("r_request", "record_id", "c_invoice"))
		require.ErrorIs(t, err, storage.ErrNotFound)
	})
}
