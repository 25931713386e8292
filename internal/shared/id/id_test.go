package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrefixes(t *testing.T) {
	g := NewGenerator()

	assert.True(t, strings.HasPrefix(g.Message(), "msg_"))
	assert.True(t, strings.HasPrefix(g.Conn(), "conn_"))
}

func TestUniqueness(t *testing.T) {
	g := NewGenerator()

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := g.Message()
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}
