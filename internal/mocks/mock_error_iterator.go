package mocks

import (
	"context"
	"fmt"

	"github.com/zhangwei5095/metasfresh/pkg/storage"
)

// errorIterator is a mock iterator that returns an error on every Next call after the first one.
type errorIterator[T any] struct {
	items          []T
	originalLength int
}

func (s *errorIterator[T]) Next(ctx context.Context) (T, error) {
	var val T

	if ctx.Err() != nil {
		return val, ctx.Err()
	}

	// we want to simulate returning error after the first read
	if len(s.items) != s.originalLength {
		return val, fmt.Errorf("simulated errors")
	}

	if len(s.items) == 0 {
		return val, storage.ErrIteratorDone
	}

	next, rest := s.items[0], s.items[1:]
	s.items = rest

	return next, nil
}

func (s *errorIterator[T]) Stop() {}

// NewErrorRecordIterator returns an iterator that yields the first record and then fails.
func NewErrorRecordIterator(records []*storage.Record) storage.RecordIterator {
	return &errorIterator[*storage.Record]{
		items:          records,
		originalLength: len(records),
	}
}
