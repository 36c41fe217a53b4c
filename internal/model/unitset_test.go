package model

import (
	"testing"
)

func TestUnitSet_Intersect(t *testing.T) {
	tests := []struct {
		name  string
		left  UnitSet
		right UnitSet
		want  []UnitID
	}{
		{
			name:  "overlapping sets",
			left:  NewUnitSet(1, 2, 3),
			right: NewUnitSet(2, 3, 4),
			want:  []UnitID{2, 3},
		},
		{
			name:  "disjoint sets",
			left:  NewUnitSet(1, 2),
			right: NewUnitSet(3, 4),
			want:  []UnitID{},
		},
		{
			name:  "identical sets",
			left:  NewUnitSet(5, 6),
			right: NewUnitSet(5, 6),
			want:  []UnitID{5, 6},
		},
		{
			name:  "empty left absorbs",
			left:  NewUnitSet(),
			right: NewUnitSet(1, 2, 3),
			want:  []UnitID{},
		},
		{
			name:  "empty right absorbs",
			left:  NewUnitSet(1, 2, 3),
			right: NewUnitSet(),
			want:  []UnitID{},
		},
		{
			name:  "nil set reads as empty",
			left:  nil,
			right: NewUnitSet(1),
			want:  []UnitID{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.left.Intersect(tt.right)
			if !got.Equal(NewUnitSet(tt.want...)) {
				t.Errorf("Intersect() = %v, want %v", got.IDs(), tt.want)
			}
		})
	}
}

func TestUnitSet_IntersectCommutes(t *testing.T) {
	left := NewUnitSet(1, 2, 3, 4)
	right := NewUnitSet(3, 4, 5)

	if !left.Intersect(right).Equal(right.Intersect(left)) {
		t.Errorf("Intersect() is not commutative: %v vs %v",
			left.Intersect(right).IDs(), right.Intersect(left).IDs())
	}
}

func TestUnitSet_IntersectLeavesInputsUntouched(t *testing.T) {
	left := NewUnitSet(1, 2, 3)
	right := NewUnitSet(2, 3)

	_ = left.Intersect(right)

	if left.Len() != 3 {
		t.Errorf("left set mutated: got %v", left.IDs())
	}
	if right.Len() != 2 {
		t.Errorf("right set mutated: got %v", right.IDs())
	}
}

func TestUnitSet_Subtract(t *testing.T) {
	tests := []struct {
		name  string
		left  UnitSet
		right UnitSet
		want  []UnitID
	}{
		{
			name:  "removes shared ids",
			left:  NewUnitSet(1, 2, 3),
			right: NewUnitSet(2, 3),
			want:  []UnitID{1},
		},
		{
			name:  "disjoint right removes nothing",
			left:  NewUnitSet(1, 2),
			right: NewUnitSet(3, 4),
			want:  []UnitID{1, 2},
		},
		{
			name:  "subtracting a superset empties",
			left:  NewUnitSet(1, 2),
			right: NewUnitSet(1, 2, 3),
			want:  []UnitID{},
		},
		{
			name:  "subtracting nil keeps everything",
			left:  NewUnitSet(1, 2),
			right: nil,
			want:  []UnitID{1, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.left.Subtract(tt.right)
			if !got.Equal(NewUnitSet(tt.want...)) {
				t.Errorf("Subtract() = %v, want %v", got.IDs(), tt.want)
			}
		})
	}
}

func TestUnitSet_Equal(t *testing.T) {
	tests := []struct {
		name  string
		left  UnitSet
		right UnitSet
		want  bool
	}{
		{name: "same ids", left: NewUnitSet(1, 2), right: NewUnitSet(2, 1), want: true},
		{name: "different sizes", left: NewUnitSet(1), right: NewUnitSet(1, 2), want: false},
		{name: "same size different ids", left: NewUnitSet(1, 2), right: NewUnitSet(1, 3), want: false},
		{name: "both empty", left: NewUnitSet(), right: NewUnitSet(), want: true},
		{name: "nil equals empty", left: nil, right: NewUnitSet(), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.left.Equal(tt.right); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUnitSet_CloneIsIndependent(t *testing.T) {
	original := NewUnitSet(1, 2)
	clone := original.Clone()

	clone.Add(3)

	if original.Contains(3) {
		t.Errorf("mutating the clone leaked into the original: %v", original.IDs())
	}
	if !clone.Contains(3) {
		t.Errorf("clone dropped the added id: %v", clone.IDs())
	}
}

func TestUnitSet_IDsSorted(t *testing.T) {
	s := NewUnitSet(30, 1, 22, 5)

	got := s.IDs()

	want := []UnitID{1, 5, 22, 30}
	if len(got) != len(want) {
		t.Fatalf("IDs() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("IDs()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestUnitSet_EmptyAndLen(t *testing.T) {
	var nilSet UnitSet
	if !nilSet.Empty() {
		t.Error("nil set should read as empty")
	}
	if nilSet.Len() != 0 {
		t.Errorf("nil set Len() = %d, want 0", nilSet.Len())
	}
	if nilSet.Contains(1) {
		t.Error("nil set should contain nothing")
	}

	s := NewUnitSet(7)
	if s.Empty() {
		t.Error("one-element set should not be empty")
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}
