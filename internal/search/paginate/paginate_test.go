package paginate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestSlice(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		page      int
		size      int
		wantLen   int
		wantFirst int
		wantPages int
	}{
		{"first page", 100, 1, 50, 50, 0, 2},
		{"last full page", 100, 2, 50, 50, 50, 2},
		{"past the end", 100, 3, 50, 0, -1, 2},
		{"partial last page", 101, 3, 50, 1, 100, 3},
		{"empty", 0, 1, 50, 0, -1, 0},
		{"default size", 120, 2, 0, 50, 50, 3},
		{"page below one", 10, 0, 5, 0, -1, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Slice(seq(tt.total), tt.page, tt.size)
			assert.Equal(t, tt.total, p.Total)
			assert.Equal(t, tt.page, p.Page)
			assert.Equal(t, tt.wantPages, p.Pages)
			assert.Len(t, p.Items, tt.wantLen)
			assert.NotNil(t, p.Items)
			if tt.wantFirst >= 0 {
				assert.Equal(t, tt.wantFirst, p.Items[0])
			}
		})
	}
}

func TestPages(t *testing.T) {
	assert.Equal(t, 0, Pages(0, 50))
	assert.Equal(t, 1, Pages(1, 50))
	assert.Equal(t, 1, Pages(50, 50))
	assert.Equal(t, 2, Pages(51, 50))
}
