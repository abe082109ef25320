package orders

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewNumber_Format(t *testing.T) {
	re := regexp.MustCompile(`^ORD-\d{13}-[0-9a-z]{6}$`)
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		n := NewNumber()
		assert.Regexp(t, re, n)
		assert.False(t, seen[n], "order number kebentur: %s", n)
		seen[n] = true
	}
}
