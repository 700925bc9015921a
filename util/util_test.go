package util_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/simple-thread/pharos/util"
)

func TestStringListContains(t *testing.T) {
	list := []string{"apple", "orange", "banana"}
	assert.True(t, util.StringListContains(list, "orange"))
	assert.False(t, util.StringListContains(list, "wedgewood"))
	assert.False(t, util.StringListContains(nil, "apple"))
}

func TestIsEmptySearchTerm(t *testing.T) {
	assert.True(t, util.IsEmptySearchTerm(""))
	assert.True(t, util.IsEmptySearchTerm("*"))
	assert.True(t, util.IsEmptySearchTerm("%"))
	assert.False(t, util.IsEmptySearchTerm("photos"))
	assert.False(t, util.IsEmptySearchTerm("*.txt"))
}

func TestTestsAreRunning(t *testing.T) {
	assert.True(t, util.TestsAreRunning())
}

func TestLooksLikeUUID(t *testing.T) {
	assert.True(t, util.LooksLikeUUID("8b7b04c7-5972-4b1c-9e4a-8f04cb5ad1b7"))
	assert.False(t, util.LooksLikeUUID("8b7b04c7-5972-4b1c-9e4a"))
	assert.False(t, util.LooksLikeUUID("8b7b04c7x5972x4b1cx9e4ax8f04cb5ad1b7"))
}
