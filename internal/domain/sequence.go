package domain

import "time"

// SequenceCounter tracks the last issued ordinal for a (prefix, year) pair.
// Created lazily on first request, mutated exactly once per number issued,
// never deleted.
type SequenceCounter struct {
	Prefix    string
	Year      int
	Value     int64
	UpdatedAt time.Time
}
