package ast

import "sort"

// OffsetRange is a half-open byte range into a source text.
type OffsetRange struct {
	StartIndex int `json:"startIndex"`
	EndIndex   int `json:"endIndex"`
}

// Len returns the number of bytes covered.
func (r OffsetRange) Len() int {
	return r.EndIndex - r.StartIndex
}

// Contains reports whether other lies inside r. Equal ranges contain each other.
func (r OffsetRange) Contains(other OffsetRange) bool {
	return r.StartIndex <= other.StartIndex && other.EndIndex <= r.EndIndex
}

// Equal reports whether both bounds match.
func (r OffsetRange) Equal(other OffsetRange) bool {
	return CompareOffsets(r, other) == 0
}

// Intersects reports whether the ranges share at least one byte.
func (r OffsetRange) Intersects(other OffsetRange) bool {
	return max(r.StartIndex, other.StartIndex) < min(r.EndIndex, other.EndIndex)
}

// IntersectionSize returns the number of shared bytes.
func (r OffsetRange) IntersectionSize(other OffsetRange) int {
	return max(min(r.EndIndex, other.EndIndex)-max(r.StartIndex, other.StartIndex), 0)
}

// CompareOffsets orders by start ascending, then by end descending, so an
// enclosing range sorts before the ranges it contains.
func CompareOffsets(a, b OffsetRange) int {
	if a.StartIndex != b.StartIndex {
		return a.StartIndex - b.StartIndex
	}
	return b.EndIndex - a.EndIndex
}

// Point is a zero-based row and byte column.
type Point struct {
	Row    int `json:"row"`
	Column int `json:"column"`
}

// Before reports whether p sorts strictly before other.
func (p Point) Before(other Point) bool {
	return p.Row < other.Row || (p.Row == other.Row && p.Column < other.Column)
}

// BeforeOrEqual reports whether p does not sort after other.
func (p Point) BeforeOrEqual(other Point) bool {
	return p.Before(other) || p == other
}

// PointRange is the line and column view of a range.
type PointRange struct {
	StartPosition Point `json:"startPosition"`
	EndPosition   Point `json:"endPosition"`
}

// Contains reports whether other lies inside r.
func (r PointRange) Contains(other PointRange) bool {
	return r.StartPosition.BeforeOrEqual(other.StartPosition) &&
		other.EndPosition.BeforeOrEqual(r.EndPosition)
}

// Equal reports whether both positions match.
func (r PointRange) Equal(other PointRange) bool {
	return r.StartPosition == other.StartPosition && r.EndPosition == other.EndPosition
}

// LinesSpanned counts the rows from the start of a to the end of b.
func LinesSpanned(a, b PointRange) int {
	return b.EndPosition.Row - a.StartPosition.Row + 1
}

// insertionIndex returns the first index whose start does not sort before
// the start of value. ranges must be sorted by start position.
func insertionIndex(ranges []PointRange, value PointRange) int {
	return sort.Search(len(ranges), func(i int) bool {
		return !ranges[i].StartPosition.Before(value.StartPosition)
	})
}
