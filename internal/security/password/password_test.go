package password

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var fast = Params{Memory: 1024, Time: 1, Parallelism: 1, KeyLen: 32}

func TestHashVerify(t *testing.T) {
	h, err := Hash(fast, "correct horse")
	require.NoError(t, err)
	assert.True(t, Verify("correct horse", h))
	assert.False(t, Verify("wrong horse", h))
	assert.True(t, NeedsRehash(Default, h))
	assert.False(t, NeedsRehash(fast, h))

	_, err = Hash(fast, "")
	assert.Error(t, err)
}

func TestVerifyBcrypt(t *testing.T) {
	b, err := bcrypt.GenerateFromPassword([]byte("legacy123"), bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, Verify("legacy123", string(b)))
	assert.False(t, Verify("legacy124", string(b)))
	assert.False(t, Verify("legacy123", "plain-text-hash"))
}

func TestPolicy(t *testing.T) {
	ok, reasons := DefaultPolicy.Validate("password123", "JSMITH")
	assert.True(t, ok)
	assert.Empty(t, reasons)

	ok, reasons = DefaultPolicy.Validate("short1", "")
	assert.False(t, ok)
	assert.Contains(t, reasons, "too_short")

	ok, reasons = DefaultPolicy.Validate("abcdefghijk", "")
	assert.False(t, ok)
	assert.Equal(t, []string{"missing_digit"}, reasons)

	_, reasons = DefaultPolicy.Validate("jsmith12345", "JSMITH")
	assert.Contains(t, reasons, "contains_username")

	strict := Policy{MinLength: 8, RequireUpper: true, RequireSymbol: true}
	_, reasons = strict.Validate("lowercase1", "")
	assert.ElementsMatch(t, []string{"missing_upper", "missing_symbol"}, reasons)
}

func TestBlacklist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "common.txt")
	require.NoError(t, os.WriteFile(path, []byte("# comunes\nPassword123\n\nqwerty12345\n"), 0o600))

	bl, err := LoadBlacklist(path)
	require.NoError(t, err)
	assert.True(t, bl.Contains("password123"))
	assert.True(t, bl.Contains(" QWERTY12345 "))
	assert.False(t, bl.Contains("# comunes"))

	p := DefaultPolicy
	p.Blacklist = bl
	ok, reasons := p.Validate("password123", "")
	assert.False(t, ok)
	assert.Equal(t, []string{"blacklisted"}, reasons)

	assert.Equal(t, 2, bl.Len())

	var none *Blacklist
	assert.False(t, none.Contains("anything"))

	_, err = LoadBlacklist(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)

	inline, err := ReadBlacklist(strings.NewReader("letmein\n"))
	require.NoError(t, err)
	assert.True(t, inline.Contains("LetMeIn"))
}

func TestGenerate(t *testing.T) {
	a, err := Generate(40)
	require.NoError(t, err)
	b, err := Generate(40)
	require.NoError(t, err)
	assert.Len(t, a, 40)
	assert.NotEqual(t, a, b)
	assert.Regexp(t, `^[a-zA-Z0-9]+$`, a)
}
