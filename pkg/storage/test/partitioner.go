package test

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zhangwei5095/metasfresh/pkg/partitioner"
	"github.com/zhangwei5095/metasfresh/pkg/refconfig"
	"github.com/zhangwei5095/metasfresh/pkg/storage"
)

func keys(records []*storage.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Key())
	}
	slices.Sort(out)
	return out
}

func CreatePartitionTest(t *testing.T, newDatastore DatastoreFactory) {
	ctx := context.Background()

	t.Run("augments_until_consistent", func(t *testing.T) {
		ds, s := newDatastore(t)
		order := insert(t, s, "c_order", nil)
		line := insert(t, s, "c_orderline", map[string]any{"c_order_id": order.ID})
		invoice := insert(t, s, "c_invoice", map[string]any{"c_order_id": order.ID})
		payment := insert(t, s, "c_payment", map[string]any{"c_invoice_id": invoice.ID})

		p := partitioner.NewFromBackend(ds, partitioner.WithOldestFirst(true))
		partition, err := p.CreatePartition(ctx, refconfig.NewBuilder().Line("c_order").MustBuild())
		require.NoError(t, err)
		require.Equal(t, keys([]*storage.Record{order, line, invoice, payment}), keys(partition.Records))

		for _, edge := range []refconfig.TableReferenceDescriptor{
			{ReferencingTable: "c_orderline", ReferencingColumn: "c_order_id", ReferencedTable: "c_order"},
			{ReferencingTable: "c_invoice", ReferencingColumn: "c_order_id", ReferencedTable: "c_order"},
			{ReferencingTable: "c_payment", ReferencingColumn: "c_invoice_id", ReferencedTable: "c_invoice"},
		} {
			line := partition.Config.Line(edge.ReferencingTable)
			require.NotNil(t, line, "no line for %s", edge)
			require.NotNil(t, line.Reference(edge.ReferencingColumn, edge.ReferencedTable), "no reference %s", edge)
		}

		result, err := ds.DryRun(ctx, partition)
		require.NoError(t, err)
		require.True(t, result.OK())
	})

	t.Run("create_and_store", func(t *testing.T) {
		ds, s := newDatastore(t)
		order := insert(t, s, "c_order", nil)
		insert(t, s, "c_orderline", map[string]any{"c_order_id": order.ID})

		p := partitioner.NewFromBackend(ds)
		cfg := refconfig.NewBuilder().Line("c_order").MustBuild()

		stored, err := p.CreateAndStore(ctx, cfg)
		require.NoError(t, err)
		require.NotEmpty(t, stored.ID)
		require.Len(t, stored.Records, 2)

		read, err := ds.ReadPartition(ctx, stored.ID)
		require.NoError(t, err)
		require.Equal(t, keys(stored.Records), keys(read.Records))
		require.True(t, stored.Config.Equal(read.Config))

		// everything is partitioned now
		next, err := p.CreatePartition(ctx, cfg)
		require.NoError(t, err)
		require.True(t, next.IsEmpty())
	})

	t.Run("cycle", func(t *testing.T) {
		ds, s := newDatastore(t)
		a := insert(t, s, "a", nil)
		c := insert(t, s, "c", map[string]any{"a_id": a.ID})
		b := insert(t, s, "b", map[string]any{"c_id": c.ID})
		update(t, s, a, map[string]any{"b_id": b.ID})

		cfg := refconfig.NewBuilder().
			Line("a").Ref("b_id", "b").
			Line("b").Ref("c_id", "c").
			Line("c").Ref("a_id", "a").
			MustBuild()

		partition, err := partitioner.NewFromBackend(ds).CreatePartition(ctx, cfg)
		require.NoError(t, err)
		require.Equal(t, keys([]*storage.Record{a, b, c}), keys(partition.Records))
		require.True(t, cfg.Equal(partition.Config))
	})

	t.Run("polymorphic", func(t *testing.T) {
		ds, s := newDatastore(t)
		order := insert(t, s, "c_order", nil)
		invoice := insert(t, s, "c_invoice", map[string]any{"c_order_id": order.ID})
		request := insert(t, s, "r_request", map[string]any{
			"ad_table_id": tableID(t, s, "c_invoice"),
			"record_id":   invoice.ID,
		})

		cfg := refconfig.NewBuilder().Line("r_request").Ref("record_id", "c_invoice").MustBuild()

		partition, err := partitioner.NewFromBackend(ds).CreatePartition(ctx, cfg)
		require.NoError(t, err)
		require.Equal(t, keys([]*storage.Record{request, invoice, order}), keys(partition.Records))
	})

	t.Run("partitions_are_disjoint", func(t *testing.T) {
		ds, s := newDatastore(t)
		first := insert(t, s, "c_order", nil)
		insert(t, s, "c_orderline", map[string]any{"c_order_id": first.ID})

		p := partitioner.NewFromBackend(ds)
		cfg := refconfig.NewBuilder().Line("c_order").Line("c_orderline").Ref("c_order_id", "c_order").MustBuild()

		p1, err := p.CreateAndStore(ctx, cfg)
		require.NoError(t, err)

		second := insert(t, s, "c_order", nil)
		line := insert(t, s, "c_orderline", map[string]any{"c_order_id": second.ID})

		p2, err := p.CreateAndStore(ctx, cfg)
		require.NoError(t, err)
		require.Equal(t, keys([]*storage.Record{second, line}), keys(p2.Records))
		require.NotEqual(t, p1.ID, p2.ID)
	})
}
