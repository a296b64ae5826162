package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"

	"github.com/zhangwei5095/metasfresh/pkg/refconfig"
	"github.com/zhangwei5095/metasfresh/pkg/storage"
)

var tracer = otel.Tracer("dlm/pkg/storage/memory")

type row struct {
	id          int64
	partitionID string
	values      map[string]any
}

type table struct {
	name   string
	id     int64
	nextID int64
	rows   []*row
	byID   map[int64]*row
}

// StorageOption defines a function type used for configuring a [MemoryBackend] instance.
type StorageOption func(dataStore *MemoryBackend)

// WithForeignKeys returns a [StorageOption] that declares the foreign keys enforced by DryRun.
func WithForeignKeys(fks ...refconfig.TableReferenceDescriptor) StorageOption {
	return func(ds *MemoryBackend) { ds.foreignKeys = append(ds.foreignKeys, fks...) }
}

// MemoryBackend provides an ephemeral memory-backed implementation of [storage.Datastore].
// Besides the datastore interface it offers methods to create tables and rows.
type MemoryBackend struct {
	mu sync.RWMutex

	// map: lower-cased table name => table, GUARDED_BY(mu).
	tables      map[string]*table
	tablesByID  map[int64]*table
	nextTableID int64

	foreignKeys []refconfig.TableReferenceDescriptor
	partitions  map[string]*storage.Partition
}

// Ensures that [MemoryBackend] implements the [storage.Datastore] interface.
var _ storage.Datastore = (*MemoryBackend)(nil)

// New creates a new [MemoryBackend] given the options.
func New(opts ...StorageOption) *MemoryBackend {
	ds := &MemoryBackend{
		tables:     make(map[string]*table),
		tablesByID: make(map[int64]*table),
		partitions: make(map[string]*storage.Partition),
	}

	for _, opt := range opts {
		opt(ds)
	}

	return ds
}

// Close does not do anything for [MemoryBackend].
func (s *MemoryBackend) Close() {}

// IsReady see [storage.Datastore].IsReady.
func (s *MemoryBackend) IsReady(context.Context) (storage.ReadinessStatus, error) {
	return storage.ReadinessStatus{IsReady: true}, nil
}

// TableID returns the id under which the table is known to polymorphic references, creating
// the table if needed.
func (s *MemoryBackend) TableID(_ context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.table(name).id, nil
}

// Insert adds a row to the table and returns its record. Ids are assigned per table, starting at 1.
// Column names are matched ignoring case; references are int, int32 or int64 ids, nil means null.
func (s *MemoryBackend) Insert(_ context.Context, tableName string, values map[string]any) (*storage.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.table(tableName)
	t.nextID++
	r := &row{id: t.nextID, values: normalizeValues(values)}
	t.rows = append(t.rows, r)
	t.byID[r.id] = r

	return &storage.Record{Table: t.name, ID: r.id}, nil
}

// Update sets column values of an existing row.
func (s *MemoryBackend) Update(_ context.Context, record *storage.Record, values map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.row(record.Table, record.ID)
	if err != nil {
		return err
	}
	for k, v := range normalizeValues(values) {
		r.values[k] = v
	}
	return nil
}

// Record returns the current state of a row.
func (s *MemoryBackend) Record(tableName string, id int64) (*storage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, err := s.row(tableName, id)
	if err != nil {
		return nil, err
	}
	return s.record(tableName, r), nil
}

// ReadUnpartitioned see [storage.RecordReader].ReadUnpartitioned. A table that was never
// written to yields no records.
func (s *MemoryBackend) ReadUnpartitioned(ctx context.Context, tableName string, _ storage.ReadUnpartitionedOptions) (storage.RecordIterator, error) {
	_, span := tracer.Start(ctx, "memory.ReadUnpartitioned")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[strings.ToLower(tableName)]
	if !ok {
		return storage.NewStaticRecordIterator(nil), nil
	}

	// rows are kept in insertion order, which is also the oldest-first order
	var records []*storage.Record
	for _, r := range t.rows {
		if r.partitionID == "" {
			records = append(records, s.record(t.name, r))
		}
	}
	return storage.NewStaticRecordIterator(records), nil
}

// ResolveReference see [storage.RecordReader].ResolveReference.
func (s *MemoryBackend) ResolveReference(ctx context.Context, record *storage.Record, ref *refconfig.Reference) (*storage.Record, error) {
	_, span := tracer.Start(ctx, "memory.ResolveReference")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	source, err := s.row(record.Table, record.ID)
	if err != nil {
		return nil, err
	}

	var targetID int64
	if ref.IsPolymorphic() {
		tableID, ok := toID(source.values[refconfig.GenericTableColumn])
		if !ok {
			return nil, storage.ErrNotFound
		}
		t, ok := s.tablesByID[tableID]
		if !ok || !strings.EqualFold(t.name, ref.ReferencedTable()) {
			return nil, storage.ErrNotFound
		}
		targetID, ok = toID(source.values[refconfig.GenericRecordColumn])
		if !ok {
			return nil, storage.ErrNotFound
		}
	} else {
		var ok bool
		targetID, ok = toID(source.values[strings.ToLower(ref.ReferencingColumn())])
		if !ok {
			return nil, storage.ErrNotFound
		}
	}

	target, err := s.row(ref.ReferencedTable(), targetID)
	if err != nil {
		return nil, err
	}
	return s.record(ref.ReferencedTable(), target), nil
}

// DryRun see [storage.IntegrityChecker].DryRun. It checks the declared foreign keys in both
// directions: no unpartitioned row outside of the partition may reference a row inside of it, and
// no row inside may reference an unpartitioned row outside.
func (s *MemoryBackend) DryRun(ctx context.Context, partition *storage.Partition) (storage.DryRunResult, error) {
	_, span := tracer.Start(ctx, "memory.DryRun")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	included := make(map[string]struct{}, len(partition.Records))
	for _, r := range partition.Records {
		included[r.Key()] = struct{}{}
	}
	contains := func(tableName string, id int64) bool {
		_, ok := included[storage.RecordKey(tableName, id)]
		return ok
	}

	for _, fk := range s.foreignKeys {
		referencing, ok := s.tables[strings.ToLower(fk.ReferencingTable)]
		if !ok {
			continue
		}
		column := strings.ToLower(fk.ReferencingColumn)

		for _, r := range referencing.rows {
			targetID, ok := toID(r.values[column])
			if !ok {
				continue
			}

			inside := contains(fk.ReferencingTable, r.id)
			targetInside := contains(fk.ReferencedTable, targetID)
			if inside == targetInside {
				continue
			}

			if !inside && r.partitionID == "" {
				return violation(fk), nil
			}
			if inside {
				target, err := s.row(fk.ReferencedTable, targetID)
				if err == nil && target.partitionID == "" {
					return violation(fk), nil
				}
			}
		}
	}

	return storage.DryRunResult{}, nil
}

// WritePartition see [storage.PartitionWriter].WritePartition.
func (s *MemoryBackend) WritePartition(ctx context.Context, partition *storage.Partition) (*storage.Partition, error) {
	_, span := tracer.Start(ctx, "memory.WritePartition")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	rows := make([]*row, 0, len(partition.Records))
	for _, rec := range partition.Records {
		r, err := s.row(rec.Table, rec.ID)
		if err != nil {
			return nil, fmt.Errorf("write partition: %s: %w", rec, err)
		}
		if r.partitionID != "" {
			return nil, storage.AlreadyPartitionedError(rec)
		}
		rows = append(rows, r)
	}

	now := time.Now().UTC()
	id := ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()

	stored := &storage.Partition{
		ID:        id,
		Config:    partition.Config,
		Records:   make([]*storage.Record, 0, len(partition.Records)),
		CreatedAt: now,
	}
	for i, r := range rows {
		r.partitionID = id
		stored.Records = append(stored.Records, &storage.Record{
			Table:       partition.Records[i].Table,
			ID:          r.id,
			PartitionID: id,
		})
	}
	s.partitions[id] = stored

	return clonePartition(stored), nil
}

// ReadPartition see [storage.PartitionReader].ReadPartition.
func (s *MemoryBackend) ReadPartition(ctx context.Context, id string) (*storage.Partition, error) {
	_, span := tracer.Start(ctx, "memory.ReadPartition")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.partitions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return clonePartition(p), nil
}

// table returns the table with the given name, creating it if needed. Callers must hold the write lock.
func (s *MemoryBackend) table(name string) *table {
	key := strings.ToLower(name)
	t, ok := s.tables[key]
	if !ok {
		s.nextTableID++
		t = &table{
			name: name,
			id:   s.nextTableID,
			byID: make(map[int64]*row),
		}
		s.tables[key] = t
		s.tablesByID[t.id] = t
	}
	return t
}

func (s *MemoryBackend) row(tableName string, id int64) (*row, error) {
	t, ok := s.tables[strings.ToLower(tableName)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	r, ok := t.byID[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return r, nil
}

func (s *MemoryBackend) record(tableName string, r *row) *storage.Record {
	return &storage.Record{Table: tableName, ID: r.id, PartitionID: r.partitionID}
}

func violation(fk refconfig.TableReferenceDescriptor) storage.DryRunResult {
	return storage.DryRunResult{
		Violation: &refconfig.TableReferenceDescriptor{
			ReferencingTable:  strings.ToLower(fk.ReferencingTable),
			ReferencingColumn: strings.ToLower(fk.ReferencingColumn),
			ReferencedTable:   strings.ToLower(fk.ReferencedTable),
		},
	}
}

func clonePartition(p *storage.Partition) *storage.Partition {
	records := make([]*storage.Record, len(p.Records))
	for i, r := range p.Records {
		c := *r
		records[i] = &c
	}
	return &storage.Partition{
		ID:        p.ID,
		Config:    p.Config,
		Records:   records,
		CreatedAt: p.CreatedAt,
	}
}

func normalizeValues(values map[string]any) map[string]any {
	normalized := make(map[string]any, len(values))
	for k, v := range values {
		normalized[strings.ToLower(k)] = v
	}
	return normalized
}

// toID converts a column value into a record id. Null and zero are no reference.
func toID(v any) (int64, bool) {
	var id int64
	switch n := v.(type) {
	case int:
		id = int64(n)
	case int32:
		id = int64(n)
	case int64:
		id = n
	case *storage.Record:
		if n == nil {
			return 0, false
		}
		id = n.ID
	default:
		return 0, false
	}
	return id, id > 0
}
