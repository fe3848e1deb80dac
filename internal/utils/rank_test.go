package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRankList(t *testing.T) {
	assert.Equal(t, []uint16{}, CreateRankList(0))
	assert.Equal(t, []uint16{}, CreateRankList(-3))
	assert.Equal(t, []uint16{1, 2, 3}, CreateRankList(3))

	long := CreateRankList(70000)
	require.Len(t, long, 70000)
	assert.Equal(t, uint16(0xFFFE), long[0xFFFD])
	assert.Equal(t, uint16(0xFFFF), long[69999])
}

func TestSuggestionFilter(t *testing.T) {
	f := NewSuggestionFilter(4)
	assert.True(t, f.ShouldInclude(DedupKey("", "provider", "Dr. Sarah Johnson")))
	assert.False(t, f.ShouldInclude(DedupKey("", "provider", "  dr. sarah JOHNSON ")))
	assert.True(t, f.ShouldInclude(DedupKey("", "specialty", "Dr. Sarah Johnson")))
}

func TestDedupKeyPrefersID(t *testing.T) {
	f := NewSuggestionFilter(4)
	assert.True(t, f.ShouldInclude(DedupKey("p1", "provider", "Dr. John Smith")))
	assert.True(t, f.ShouldInclude(DedupKey("p2", "provider", "Dr. John Smith")))
	assert.False(t, f.ShouldInclude(DedupKey("p1", "provider", "Someone Else")))
	assert.True(t, f.ShouldInclude(DedupKey("", "provider", "Dr. John Smith")), "text keys never collide with ids")
}
