package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateNumericCode(t *testing.T) {
	for i := 0; i < 50; i++ {
		c, err := GenerateNumericCode(6)
		require.NoError(t, err)
		assert.Regexp(t, `^[0-9]{6}$`, c)
	}
}

func TestGenerateOpaqueToken(t *testing.T) {
	a, err := GenerateOpaqueToken(32)
	require.NoError(t, err)
	b, err := GenerateOpaqueToken(32)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 43)
}

func TestMask(t *testing.T) {
	assert.Equal(t, "****", Mask("abc"))
	assert.Equal(t, "abcd****", Mask("abcdefgh"))
	assert.Equal(t, "j…@j….gov.uk", MaskEmail("Jane.Doe@Justice.gov.uk"))
	assert.Equal(t, "****", MaskEmail("x"))
	assert.Equal(t, "****6789", MaskPhone("07700 906789"))
	assert.Equal(t, "****", MaskPhone("123"))
}
