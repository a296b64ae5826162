package test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/zhangwei5095/metasfresh/pkg/refconfig"
	"github.com/zhangwei5095/metasfresh/pkg/storage"
)

var recordCmpOpts = []cmp.Option{
	cmpopts.SortSlices(func(a, b *storage.Record) bool {
		return strings.Compare(a.Key(), b.Key()) < 0
	}),
	cmpopts.EquateEmpty(),
}

func WriteAndReadPartitionTest(t *testing.T, newDatastore DatastoreFactory) {
	ctx := context.Background()
	cfg := refconfig.NewBuilder().
		Line("c_order").
		Line("c_orderline").LinkedRef("c_order_id", "c_order").
		MustBuild()

	t.Run("write_and_read", func(t *testing.T) {
		ds, s := newDatastore(t)
		order := insert(t, s, "c_order", nil)
		line := insert(t, s, "c_orderline", map[string]any{"c_order_id": order.ID})

		before := time.Now().Add(-time.Second)
		stored, err := ds.WritePartition(ctx, &storage.Partition{
			Config:  cfg,
			Records: []*storage.Record{order, line},
		})
		require.NoError(t, err)
		require.NotEmpty(t, stored.ID)
		require.True(t, stored.CreatedAt.After(before))
		require.Len(t, stored.Records, 2)
		for _, r := range stored.Records {
			require.Equal(t, stored.ID, r.PartitionID)
		}

		got, err := ds.ReadPartition(ctx, stored.ID)
		require.NoError(t, err)
		require.Equal(t, stored.ID, got.ID)
		require.True(t, cfg.Equal(got.Config), "got config %s", got.Config)
		require.True(t, stored.CreatedAt.Equal(got.CreatedAt))
		if diff := cmp.Diff(stored.Records, got.Records, recordCmpOpts...); diff != "" {
			t.Errorf("records mismatch (-want +got):\n%s", diff)
		}

		require.Empty(t, readUnpartitioned(t, ds, "c_order", false))
		require.Empty(t, readUnpartitioned(t, ds, "c_orderline", false))
	})

	t.Run("ids_are_unique", func(t *testing.T) {
		ds, s := newDatastore(t)
		p1 := writePartition(t, ds, insert(t, s, "c_order", nil))
		p2 := writePartition(t, ds, insert(t, s, "c_order", nil))
		require.NotEqual(t, p1.ID, p2.ID)
	})

	t.Run("already_partitioned", func(t *testing.T) {
		ds, s := newDatastore(t)
		o1 := insert(t, s, "c_order", nil)
		o2 := insert(t, s, "c_order", nil)
		writePartition(t, ds, o1)

		_, err := ds.WritePartition(ctx, &storage.Partition{
			Config:  cfg,
			Records: []*storage.Record{o2, o1},
		})
		require.ErrorIs(t, err, storage.ErrRecordsAlreadyPartitioned)

		// nothing of the failed partition was written
		require.Equal(t, []int64{o2.ID}, readUnpartitioned(t, ds, "c_order", true))
	})

	t.Run("not_found", func(t *testing.T) {
		ds, _ := newDatastore(t)
		_, err := ds.ReadPartition(ctx, "01JAAAAAAAAAAAAAAAAAAAAAAA")
		require.ErrorIs(t, err, storage.ErrNotFound)
	})
}
