package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPagination(t *testing.T) {
	p := NewPagination(2, 10, 25)
	assert.Equal(t, 3, p.TotalPages)
	start, end := p.Bounds()
	assert.Equal(t, 10, start)
	assert.Equal(t, 20, end)

	p = NewPagination(3, 10, 25)
	start, end = p.Bounds()
	assert.Equal(t, 20, start)
	assert.Equal(t, 25, end)

	p = NewPagination(9, 10, 25)
	start, end = p.Bounds()
	assert.Equal(t, 25, start)
	assert.Equal(t, 25, end)
}

func TestParsePaginationDefaults(t *testing.T) {
	p := ParsePagination("x", "", 7)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, DefaultPerPage, p.PerPage)
	assert.Equal(t, 1, p.TotalPages)

	p = ParsePagination("1", "100000", 0)
	assert.Equal(t, MaxPerPage, p.PerPage)
	assert.Equal(t, 0, p.TotalPages)
}
