package flow

import (
	"reflect"
	"testing"
)

func TestChunk_Invariants(t *testing.T) {
	tests := []struct {
		name   string
		n      int
		size   int
		groups int
	}{
		{"even split", 10, 5, 2},
		{"uneven split", 11, 5, 3},
		{"audit scenario", 120, 49, 3},
		{"single group", 3, 49, 1},
		{"size one", 4, 1, 4},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			items := make([]int, tc.n)
			for i := range items {
				items[i] = i
			}

			chunks := Chunk(items, tc.size)
			if len(chunks) != tc.groups {
				t.Fatalf("groups = %d, want %d", len(chunks), tc.groups)
			}
			for i, c := range chunks[:len(chunks)-1] {
				if len(c) != tc.size {
					t.Errorf("chunk %d has %d items, want %d", i, len(c), tc.size)
				}
			}

			var flat []int
			for _, c := range chunks {
				flat = append(flat, c...)
			}
			if !reflect.DeepEqual(flat, items) {
				t.Error("concatenated chunks do not reproduce the input in order")
			}
		})
	}
}

func TestChunk_Empty(t *testing.T) {
	if got := Chunk([]string(nil), 49); got != nil {
		t.Errorf("Chunk(nil) = %v, want nil", got)
	}
}

func TestChunk_NonPositiveSize(t *testing.T) {
	got := Chunk([]int{1, 2, 3}, 0)
	if len(got) != 1 || len(got[0]) != 3 {
		t.Errorf("Chunk with size 0 = %v, want one group of all items", got)
	}
}
