package storage

import (
	"context"
	"errors"
	"sync"
)

var ErrIteratorDone = errors.New("iterator done")

type Iterator[T any] interface {
	// Next will return the next available item or ErrIteratorDone when there are no more items.
	Next(ctx context.Context) (T, error)
	// Stop terminates iteration over the underlying iterator.
	Stop()
}

// RecordIterator is an iterator for Records. It is closed by explicitly calling Stop() or by
// calling Next() until it returns an ErrIteratorDone error.
type RecordIterator = Iterator[*Record]

type staticIterator[T any] struct {
	items []T
	mu    sync.Mutex
}

// NewStaticRecordIterator returns a RecordIterator over the given records.
func NewStaticRecordIterator(records []*Record) RecordIterator {
	return &staticIterator[*Record]{items: records}
}

func (s *staticIterator[T]) Next(ctx context.Context) (T, error) {
	var zero T
	if ctx.Err() != nil {
		return zero, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.items) == 0 {
		return zero, ErrIteratorDone
	}

	next, rest := s.items[0], s.items[1:]
	s.items = rest
	return next, nil
}

func (s *staticIterator[T]) Stop() {}

// Collect drains the iterator and stops it.
func Collect[T any](ctx context.Context, iter Iterator[T]) ([]T, error) {
	defer iter.Stop()

	var items []T
	for {
		item, err := iter.Next(ctx)
		if err != nil {
			if errors.Is(err, ErrIteratorDone) {
				return items, nil
			}
			return nil, err
		}
		items = append(items, item)
	}
}
