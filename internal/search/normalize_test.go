package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeQuery(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"zap", "zap"},
		{"  juice   shop\t", "juice shop"},
		{"<script>alert(1)</script>zap", "zap"},
		{"<b>Juice</b> Shop", "Juice Shop"},
		{"R&D", "R&D"},
		{"ｚａｐ", "zap"},
		{"   ", ""},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeQuery(tt.in), "input %q", tt.in)
	}
}
