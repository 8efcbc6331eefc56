// ABOUTME: Tests for rune-aware title casing
// ABOUTME: Covers ASCII, punctuation-separated and multi-byte input

package textcase

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTitle(t *testing.T) {
	tests := map[string]string{
		"python":      "Python",
		"GO":          "Go",
		"objective-c": "Objective-C",
		"c++":         "C++",
		"rust lang":   "Rust Lang",
		"élan vital":  "Élan Vital",
		"ÜBER straße": "Über Straße",
		"日本語 code":    "日本語 Code",
		"":            "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Title(in), in)
	}
}
