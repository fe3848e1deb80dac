package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchRanges(t *testing.T) {
	testCases := []struct {
		name     string
		text     string
		query    string
		expected [][2]int
	}{
		{"prefix", "Orthopedic Surgery", "ortho", [][2]int{{0, 5}}},
		{"case folded", "Dr. Sarah Johnson", "JOHN", [][2]int{{10, 14}}},
		{"accents", "Café Olé", "cafe ole", [][2]int{{0, 8}}},
		{"collapsed spaces", "Dr. John  Smith", "john smith", [][2]int{{4, 15}}},
		{"repeated", "banana", "an", [][2]int{{1, 3}, {3, 5}}},
		{"no match", "Cardiology", "derm", nil},
		{"blank query", "Cardiology", "   ", nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, MatchRanges(tc.text, tc.query))
		})
	}
}
