package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeLanguage(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Python", Python, true},
		{" py ", Python, true},
		{"python3", Python, true},
		{"JS", JavaScript, true},
		{"node", JavaScript, true},
		{"go", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeLanguage(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}
