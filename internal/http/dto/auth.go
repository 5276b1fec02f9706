// Package dto contiene los cuerpos de request y response de la API.
package dto

import (
	"strings"
	"time"

	"github.com/dropDatabas3/staffauth/internal/issuance"
)

// SignInRequest es el body de POST /auth/sign-in.
type SignInRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	ClientID string `json:"client_id"`
}

// MfaChallengeRequest es el body de POST /auth/mfa-challenge.
type MfaChallengeRequest struct {
	Token      string `json:"token"`
	Code       string `json:"code"`
	ClientID   string `json:"client_id"`
	RememberMe bool   `json:"remember_me"`
}

// MfaResendRequest es el body de POST /auth/mfa-resend.
type MfaResendRequest struct {
	Token      string `json:"token"`
	Preference string `json:"preference"`
}

// LoginResponse es la respuesta de los flujos de login. Solo uno de los
// bloques viene informado.
type LoginResponse struct {
	*TokenResponse

	MfaRequired   bool   `json:"mfa_required,omitempty"`
	MfaToken      string `json:"mfa_token,omitempty"`
	MfaPreference string `json:"mfa_preference,omitempty"`

	PasswordExpired bool   `json:"password_expired,omitempty"`
	ChangeToken     string `json:"change_token,omitempty"`
}

// TokenResponse sigue el formato OAuth2 de /oauth/token.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
	JTI          string `json:"jti,omitempty"`
}

// NewTokenResponse arma la respuesta a partir de un resultado de emisión.
func NewTokenResponse(res *issuance.Result, now time.Time) *TokenResponse {
	out := &TokenResponse{
		AccessToken: res.AccessToken.Raw,
		TokenType:   "bearer",
		ExpiresIn:   int64(res.AccessToken.ExpiresAt.Sub(now).Seconds()),
		Scope:       strings.Join(res.Scope, " "),
		JTI:         res.AccessToken.JTI,
	}
	if out.ExpiresIn < 0 {
		out.ExpiresIn = 0
	}
	if res.RefreshToken != nil {
		out.RefreshToken = res.RefreshToken.Raw
	}
	return out
}
