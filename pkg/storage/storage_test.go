package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecordKey(t *testing.T) {
	scanned := &Record{Table: "C_Order", ID: 7}
	resolved := &Record{Table: "c_order", ID: 7, PartitionID: "01H"}

	require.Equal(t, scanned.Key(), resolved.Key())
	require.NotEqual(t, scanned.Key(), (&Record{Table: "c_invoice", ID: 7}).Key())
	require.False(t, scanned.IsPartitioned())
	require.True(t, resolved.IsPartitioned())
	require.Equal(t, "C_Order/7", scanned.String())
}

func TestPartition(t *testing.T) {
	p := &Partition{
		Records: []*Record{
			{Table: "c_order", ID: 1},
			{Table: "C_Invoice", ID: 1},
			{Table: "c_invoice", ID: 2},
		},
	}

	require.False(t, p.IsEmpty())
	require.True(t, p.Contains("C_ORDER", 1))
	require.False(t, p.Contains("c_order", 2))
	require.Equal(t, map[string][]int64{
		"c_order":   {1},
		"c_invoice": {1, 2},
	}, p.RecordsByTable())

	require.True(t, (&Partition{}).IsEmpty())
}

func TestDryRunResult(t *testing.T) {
	require.True(t, DryRunResult{}.OK())
}

func TestStaticRecordIterator(t *testing.T) {
	records := []*Record{{Table: "c_order", ID: 1}, {Table: "c_order", ID: 2}}

	t.Run("collect", func(t *testing.T) {
		got, err := Collect(context.Background(), NewStaticRecordIterator(records))
		require.NoError(t, err)
		require.Equal(t, records, got)
	})

	t.Run("done", func(t *testing.T) {
		iter := NewStaticRecordIterator(nil)
		_, err := iter.Next(context.Background())
		require.ErrorIs(t, err, ErrIteratorDone)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Collect(ctx, NewStaticRecordIterator(records))
		require.True(t, errors.Is(err, context.Canceled))
	})
}

func TestAlreadyPartitionedError(t *testing.T) {
	err := AlreadyPartitionedError(&Record{Table: "c_order", ID: 3})
	require.ErrorIs(t, err, ErrRecordsAlreadyPartitioned)
	require.Contains(t, err.Error(), "c_order/3")
}

func TestInMemoryLRUCache(t *testing.T) {
	cache, err := NewInMemoryLRUCache(WithMaxCacheSize[string](10))
	require.NoError(t, err)
	t.Cleanup(cache.Stop)

	_, ok := cache.Get("missing")
	require.False(t, ok)

	cache.Set("c_order", "1", 0)
	require.Eventually(t, func() bool {
		v, ok := cache.Get("c_order")
		return ok && v == "1"
	}, time.Second, 10*time.Millisecond)

	cache.Delete("c_order")
	require.Eventually(t, func() bool {
		_, ok := cache.Get("c_order")
		return !ok
	}, time.Second, 10*time.Millisecond)

	cache.Stop()
	cache.Stop()
}
