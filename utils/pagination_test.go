package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaginateSplitsThirteenPostsAcrossTwoPages(t *testing.T) {
	first := Paginate("1", 13, PostsPerPage)
	assert.Equal(t, 1, first.Number)
	assert.Equal(t, 2, first.NumPages)
	assert.Equal(t, 0, first.Offset())
	assert.True(t, first.HasNext())
	assert.False(t, first.HasPrev())

	second := Paginate("2", 13, PostsPerPage)
	assert.Equal(t, 2, second.Number)
	assert.Equal(t, 10, second.Offset())
	assert.False(t, second.HasNext())
	assert.True(t, second.HasPrev())
}

func TestPaginateDefaultsToFirstPage(t *testing.T) {
	for _, raw := range []string{"", "abc", "0", "-3"} {
		page := Paginate(raw, 25, PostsPerPage)
		assert.Equal(t, 1, page.Number, "raw=%q", raw)
	}
}

func TestPaginateClampsPastTheEnd(t *testing.T) {
	page := Paginate("99", 13, PostsPerPage)
	assert.Equal(t, 2, page.Number)
	assert.Equal(t, 10, page.Offset())
}

func TestPaginateEmptyListingStillHasOnePage(t *testing.T) {
	page := Paginate("5", 0, PostsPerPage)
	assert.Equal(t, 1, page.Number)
	assert.Equal(t, 1, page.NumPages)
	assert.False(t, page.HasNext())
}
