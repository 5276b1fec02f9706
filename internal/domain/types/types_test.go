package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTokenType(t *testing.T) {
	tt, ok := ParseTokenType(" mfa_code ")
	assert.True(t, ok)
	assert.Equal(t, TokenMFACode, tt)

	_, ok = ParseTokenType("SESSION")
	assert.False(t, ok)

	assert.Equal(t, "ResetPassword", TokenReset.Description())
	assert.Equal(t, "MFACode", TokenMFACode.Description())
	assert.Len(t, AllTokenTypes, 8)
}

func TestAuthSource(t *testing.T) {
	s, ok := ParseAuthSource("AzureAD")
	assert.True(t, ok)
	assert.Equal(t, SourceAzureAD, s)
	assert.False(t, s.OwnsCredentials())
	assert.True(t, SourceDelius.OwnsCredentials())

	assert.Equal(t, SourceNone, SourceOrNone("ldap"))
	assert.Equal(t, SourceNomis, SourceOrNone("nomis"))
	assert.Equal(t, []AuthSource{SourceAuth, SourceNomis, SourceAzureAD, SourceDelius}, MasterPrecedence)
}
