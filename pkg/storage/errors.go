package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound if a record, a referenced record or a partition does not exist.
	ErrNotFound = errors.New("not found")

	// ErrRecordsAlreadyPartitioned if a partition is written that contains a record that was
	// assigned to another partition in the meantime.
	ErrRecordsAlreadyPartitioned = errors.New("records already assigned to a partition")

	// ErrInvalidIdentifier if a table or column name cannot be used in a query.
	ErrInvalidIdentifier = errors.New("invalid table or column name")

	// ErrCollision if an item already exists within the store.
	ErrCollision = errors.New("item already exists")

	ErrCancelled = errors.New("request has been cancelled")
)

// AlreadyPartitionedError returns an error wrapping ErrRecordsAlreadyPartitioned for the record.
func AlreadyPartitionedError(record *Record) error {
	return fmt.Errorf("%w: %s", ErrRecordsAlreadyPartitioned, record)
}
