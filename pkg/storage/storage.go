// Package storage contains storage interfaces and implementations
//
//go:generate mockgen -source storage.go -destination ../../internal/mocks/mock_storage.go -package mocks Datastore
package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/zhangwei5095/metasfresh/pkg/refconfig"
)

const (
	// PartitionColumn holds the id of the partition a record was assigned to. NULL means the record
	// has not been partitioned yet.
	PartitionColumn = "dlm_partition_id"
)

// Record is a handle to one row of a table.
type Record struct {
	Table string
	ID    int64

	// PartitionID is empty as long as the record was not stored as part of a partition.
	PartitionID string
}

// Key identifies the row regardless of how the record was obtained.
func (r *Record) Key() string {
	return RecordKey(r.Table, r.ID)
}

func (r *Record) IsPartitioned() bool {
	return r.PartitionID != ""
}

func (r *Record) String() string {
	return r.Table + "/" + strconv.FormatInt(r.ID, 10)
}

// RecordKey returns the identity of the row with the given id in the given table.
func RecordKey(table string, id int64) string {
	return strings.ToLower(table) + "/" + strconv.FormatInt(id, 10)
}

// Partition is a set of records that can be moved as a unit, together with the configuration
// that produced it.
type Partition struct {
	// ID is assigned when the partition is written.
	ID        string
	Config    *refconfig.Config
	Records   []*Record
	CreatedAt time.Time
}

func (p *Partition) IsEmpty() bool {
	return len(p.Records) == 0
}

// Contains reports whether the partition holds the row with the given id.
func (p *Partition) Contains(table string, id int64) bool {
	key := RecordKey(table, id)
	for _, r := range p.Records {
		if r.Key() == key {
			return true
		}
	}
	return false
}

// RecordsByTable groups the ids of the partition's records by lower-cased table name.
func (p *Partition) RecordsByTable() map[string][]int64 {
	grouped := make(map[string][]int64)
	for _, r := range p.Records {
		table := strings.ToLower(r.Table)
		grouped[table] = append(grouped[table], r.ID)
	}
	return grouped
}

func (p *Partition) String() string {
	return fmt.Sprintf("partition %q: %d records, config %s", p.ID, len(p.Records), p.Config)
}

type ReadUnpartitionedOptions struct {
	// OldestFirst orders the records by ascending id.
	OldestFirst bool
}

// A RecordReader gives access to the records that are subject to partitioning.
type RecordReader interface {
	// ReadUnpartitioned returns the records of the given table that are not assigned to a
	// partition. The caller must be careful to close the RecordIterator, either by consuming the
	// entire iterator or by calling Stop.
	ReadUnpartitioned(ctx context.Context, table string, options ReadUnpartitionedOptions) (RecordIterator, error)

	// ResolveReference follows the reference from the given record and returns the referenced
	// record, regardless of whether that one is partitioned already.
	// If the referencing column is null, if the referenced row does not exist, or, for polymorphic
	// references, if the record's table column does not name the reference's referenced table, it
	// must return ErrNotFound.
	ResolveReference(ctx context.Context, record *Record, ref *refconfig.Reference) (*Record, error)
}

// DryRunResult is the outcome of IntegrityChecker.DryRun. A nil Violation means the partition
// can be moved without breaking referential integrity.
type DryRunResult struct {
	Violation *refconfig.TableReferenceDescriptor
}

func (r DryRunResult) OK() bool {
	return r.Violation == nil
}

// An IntegrityChecker tests whether moving a partition would violate referential integrity.
type IntegrityChecker interface {
	// DryRun must not change any data. If moving the partition would leave a dangling reference,
	// the result names the referencing table and column and the referenced table of that reference.
	DryRun(ctx context.Context, partition *Partition) (DryRunResult, error)
}

// PartitionWriter persists partitions.
type PartitionWriter interface {
	// WritePartition assigns an id to the partition and marks all of its records as partitioned in
	// one atomic step. If any of the records is already assigned to a partition it must return
	// ErrRecordsAlreadyPartitioned and change nothing.
	WritePartition(ctx context.Context, partition *Partition) (*Partition, error)
}

type PartitionReader interface {
	// ReadPartition returns the stored partition with the given id or ErrNotFound.
	ReadPartition(ctx context.Context, id string) (*Partition, error)
}

// PartitionBackend combines everything needed to create and store partitions.
type PartitionBackend interface {
	RecordReader
	IntegrityChecker
	PartitionWriter
	PartitionReader
}

type ReadinessStatus struct {
	// Message is a human-friendly status message for the current datastore status.
	Message string

	IsReady bool
}

// Datastore is a PartitionBackend with a lifecycle.
type Datastore interface {
	PartitionBackend

	// IsReady reports whether the datastore is ready to accept traffic.
	IsReady(ctx context.Context) (ReadinessStatus, error)

	// Close closes the datastore and cleans up any residual resources.
	Close()
}
