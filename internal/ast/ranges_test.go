package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOffsetRangeContains(t *testing.T) {
	outer := OffsetRange{StartIndex: 0, EndIndex: 3}
	assert.True(t, outer.Contains(outer), "containment is not strict")
	assert.True(t, outer.Contains(OffsetRange{StartIndex: 1, EndIndex: 2}))
	assert.False(t, outer.Contains(OffsetRange{StartIndex: 2, EndIndex: 4}))
}

func TestOffsetRangeIntersection(t *testing.T) {
	tests := []struct {
		name      string
		a, b      OffsetRange
		intersect bool
		size      int
	}{
		{"overlap", OffsetRange{0, 5}, OffsetRange{3, 8}, true, 2},
		{"touching", OffsetRange{0, 3}, OffsetRange{3, 6}, false, 0},
		{"disjoint", OffsetRange{0, 2}, OffsetRange{5, 6}, false, 0},
		{"nested", OffsetRange{0, 10}, OffsetRange{2, 4}, true, 2},
		{"empty inside", OffsetRange{0, 10}, OffsetRange{4, 4}, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.intersect, tt.a.Intersects(tt.b))
			assert.Equal(t, tt.size, tt.a.IntersectionSize(tt.b))
			assert.Equal(t, tt.size, tt.b.IntersectionSize(tt.a))
		})
	}
}

func TestCompareOffsets(t *testing.T) {
	parent := OffsetRange{StartIndex: 0, EndIndex: 10}
	child := OffsetRange{StartIndex: 0, EndIndex: 4}
	later := OffsetRange{StartIndex: 2, EndIndex: 3}

	assert.Negative(t, CompareOffsets(parent, child), "enclosing range sorts first on equal start")
	assert.Negative(t, CompareOffsets(child, later))
	assert.True(t, parent.Equal(OffsetRange{StartIndex: 0, EndIndex: 10}))
}

func TestPointOrdering(t *testing.T) {
	a := Point{Row: 1, Column: 4}
	b := Point{Row: 1, Column: 7}
	c := Point{Row: 2, Column: 0}

	assert.True(t, a.Before(b))
	assert.True(t, b.Before(c))
	assert.False(t, a.Before(a))
	assert.True(t, a.BeforeOrEqual(a))
	assert.False(t, c.BeforeOrEqual(a))
}

func TestPointRangeContains(t *testing.T) {
	outer := PointRange{StartPosition: Point{0, 0}, EndPosition: Point{5, 1}}
	inner := PointRange{StartPosition: Point{1, 2}, EndPosition: Point{1, 6}}

	assert.True(t, outer.Contains(inner))
	assert.True(t, outer.Contains(outer))
	assert.False(t, inner.Contains(outer))
	assert.Equal(t, 5, LinesSpanned(inner, outer))
}

func TestInsertionIndex(t *testing.T) {
	ranges := []PointRange{
		{StartPosition: Point{0, 0}, EndPosition: Point{0, 5}},
		{StartPosition: Point{2, 0}, EndPosition: Point{2, 5}},
		{StartPosition: Point{4, 0}, EndPosition: Point{4, 5}},
	}
	tests := []struct {
		start Point
		want  int
	}{
		{Point{0, 0}, 0},
		{Point{1, 3}, 1},
		{Point{2, 0}, 1},
		{Point{9, 0}, 3},
	}
	for _, tt := range tests {
		got := insertionIndex(ranges, PointRange{StartPosition: tt.start, EndPosition: tt.start})
		assert.Equal(t, tt.want, got, "start %v", tt.start)
	}
	assert.Equal(t, 0, insertionIndex(nil, ranges[0]))
}
