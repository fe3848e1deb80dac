package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWords(t *testing.T) {
	assert.Equal(t, []string{"mri", "scan", "brain"}, Words("mri scan – brain"))
	assert.Equal(t, []string{"dr", "sarah", "johnson"}, Words("dr. sarah johnson"))
	assert.Empty(t, Words(" - "))
}

func TestFirstWord(t *testing.T) {
	assert.Equal(t, "mri", FirstWord("mri scan – brain"))
	assert.Equal(t, "lipitor", FirstWord("lipitor 20 mg"))
	assert.Equal(t, "cardiology", FirstWord("cardiology"))
	assert.Equal(t, "", FirstWord(""))
}

func TestContainsEither(t *testing.T) {
	assert.True(t, ContainsEither("orthopedic surgery", "ortho"))
	assert.True(t, ContainsEither("ortho", "orthopedic surgery"))
	assert.False(t, ContainsEither("cardiology", "ortho"))
	assert.False(t, ContainsEither("", "ortho"))
	assert.False(t, ContainsEither("ortho", ""))
}

func TestIsValidInput(t *testing.T) {
	valid := []string{"ortho", "mri 3t", "Dr. S", "lipitor 20"}
	invalid := []string{"", "   ", "1234", "12 34", "aaaa", "AAA"}
	for _, s := range valid {
		assert.True(t, IsValidInput(s), s)
	}
	for _, s := range invalid {
		assert.False(t, IsValidInput(s), s)
	}
}

func TestNumberHelpers(t *testing.T) {
	assert.True(t, IsOnlyNumbers("2025"))
	assert.False(t, IsOnlyNumbers(""))
	assert.False(t, IsOnlyNumbers("20mg"))
	assert.False(t, IsRepetitive("aa"))
	assert.True(t, IsRepetitive("zzz"))
}
