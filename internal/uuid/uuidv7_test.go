package uuid

import (
	"testing"

	googleuuid "github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsVersion7(t *testing.T) {
	id := New()

	parsed, err := googleuuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, googleuuid.Version(7), parsed.Version())
	assert.Equal(t, googleuuid.RFC4122, parsed.Variant())
}

func TestNewIsUniqueAndOrdered(t *testing.T) {
	seen := make(map[string]bool)
	prev := ""
	for i := 0; i < 1000; i++ {
		id := New()
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
		if prev != "" {
			assert.Greater(t, id, prev)
		}
		prev = id
	}
}

func TestParse(t *testing.T) {
	got, err := Parse("0190F5A8-9C3B-7D4E-8F00-123456789ABC")
	require.NoError(t, err)
	assert.Equal(t, "0190f5a8-9c3b-7d4e-8f00-123456789abc", got)

	_, err = Parse("not-a-uuid")
	assert.Error(t, err)
}

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid(New()))
	assert.False(t, IsValid(""))
	assert.False(t, IsValid("123"))
}
