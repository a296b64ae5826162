package refconfig

import "errors"

var (
	// ErrDuplicateLine if two lines of one configuration name the same table.
	ErrDuplicateLine = errors.New("duplicate configuration line")
	// ErrDuplicateReference if a line declares the same reference twice.
	ErrDuplicateReference = errors.New("duplicate reference")
	// ErrMissingLine if a reference must be linked to a line that is not part of the configuration.
	ErrMissingLine = errors.New("referenced configuration line does not exist")
	// ErrRefWithoutLine if a reference is added before the first line.
	ErrRefWithoutLine = errors.New("reference declared before any line")
	ErrEmptyName      = errors.New("table and column names must not be empty")
)
