package mocks

import (
	"context"
	"time"

	"github.com/zhangwei5095/metasfresh/pkg/refconfig"
	"github.com/zhangwei5095/metasfresh/pkg/storage"
)

// slowDataStorage is a proxy to the actual datastore except that reads are delayed by readDelay,
// unless the context ends first.
type slowDataStorage struct {
	readDelay time.Duration
	storage.Datastore
}

// NewMockSlowDataStorage returns a wrapper of a datastore that adds artificial delays into the reads of records.
func NewMockSlowDataStorage(ds storage.Datastore, readDelay time.Duration) storage.Datastore {
	return &slowDataStorage{
		readDelay: readDelay,
		Datastore: ds,
	}
}

func (m *slowDataStorage) Close() {}

func (m *slowDataStorage) ReadUnpartitioned(ctx context.Context, table string, options storage.ReadUnpartitionedOptions) (storage.RecordIterator, error) {
	if err := m.sleep(ctx); err != nil {
		return nil, err
	}
	return m.Datastore.ReadUnpartitioned(ctx, table, options)
}

func (m *slowDataStorage) ResolveReference(ctx context.Context, record *storage.Record, ref *refconfig.Reference) (*storage.Record, error) {
	if err := m.sleep(ctx); err != nil {
		return nil, err
	}
	return m.Datastore.ResolveReference(ctx, record, ref)
}

func (m *slowDataStorage) sleep(ctx context.Context) error {
	timer := time.NewTimer(m.readDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
