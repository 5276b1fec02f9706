package ipallow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContains(t *testing.T) {
	l, err := Parse([]string{"10.0.0.1", " 192.168.0.0/24 ", "", "::1/128"})
	require.NoError(t, err)

	assert.True(t, l.Contains("10.0.0.1"))
	assert.False(t, l.Contains("10.0.0.2"))
	assert.True(t, l.Contains("192.168.0.77"))
	assert.False(t, l.Contains("192.168.1.1"))
	assert.True(t, l.Contains("::1"))
	assert.True(t, l.Contains("::ffff:10.0.0.1"), "v4-mapped")
	assert.False(t, l.Contains("not-an-ip"))
	assert.False(t, l.Contains(""))
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse([]string{"10.0.0.0/33"})
	assert.Error(t, err)
	_, err = Parse([]string{"bogus"})
	assert.Error(t, err)
}

func TestEmpty(t *testing.T) {
	var nilList *List
	assert.True(t, nilList.Empty())
	assert.False(t, nilList.Contains("10.0.0.1"))

	l, err := Parse(nil)
	require.NoError(t, err)
	assert.True(t, l.Empty())
}

func TestContainsShortcut(t *testing.T) {
	ok, err := Contains([]string{"10.0.0.0/8"}, "10.20.30.40")
	require.NoError(t, err)
	assert.True(t, ok)
}
