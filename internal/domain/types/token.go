package types

import "strings"

// TokenType indica el propósito de un token de corta vida.
type TokenType string

const (
	TokenReset     TokenType = "RESET"
	TokenChange    TokenType = "CHANGE"
	TokenVerified  TokenType = "VERIFIED"
	TokenSecondary TokenType = "SECONDARY"
	TokenMFA       TokenType = "MFA"
	TokenMFACode   TokenType = "MFA_CODE"
	TokenMFARmbr   TokenType = "MFA_RMBR"
	TokenAccount   TokenType = "ACCOUNT"
)

// AllTokenTypes lista todos los tipos en orden estable.
var AllTokenTypes = []TokenType{
	TokenReset, TokenChange, TokenVerified, TokenSecondary,
	TokenMFA, TokenMFACode, TokenMFARmbr, TokenAccount,
}

// Description es el prefijo usado en los eventos de auditoría
// (ej: "ResetPasswordRequest", "MFACodeFailure").
func (t TokenType) Description() string {
	switch t {
	case TokenReset:
		return "ResetPassword"
	case TokenChange:
		return "ChangePassword"
	case TokenVerified:
		return "VerifiedEmail"
	case TokenSecondary:
		return "VerifiedSecondaryEmail"
	case TokenMFA:
		return "MFA"
	case TokenMFACode:
		return "MFACode"
	case TokenMFARmbr:
		return "MFARememberMe"
	case TokenAccount:
		return "AccountDetails"
	}
	return string(t)
}

// IsValid retorna true si el tipo es conocido.
func (t TokenType) IsValid() bool {
	for _, v := range AllTokenTypes {
		if v == t {
			return true
		}
	}
	return false
}

// ParseTokenType acepta el nombre en cualquier capitalización.
func ParseTokenType(v string) (TokenType, bool) {
	t := TokenType(strings.ToUpper(strings.TrimSpace(v)))
	return t, t.IsValid()
}
