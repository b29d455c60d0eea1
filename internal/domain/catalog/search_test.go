package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildTSQuery(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"single word", "smartphone", "smartphone"},
		{"words become alternatives", "sony tv", "sony | tv"},
		{"case folded", "Sony BRAVIA", "sony | bravia"},
		{"punctuation stripped", "o'neill & sons!", "oneill | sons"},
		{"tsquery operators neutralized", "a | b) (c", "a | b | c"},
		{"digits kept", "iphone 13", "iphone | 13"},
		{"empty input", "", ""},
		{"only punctuation", "&& || !!", ""},
		{"extra whitespace", "  red   shirt  ", "red | shirt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildTSQuery(tt.input))
		})
	}
}
