// Package auth contiene los controllers de sign-in y del desafío MFA.
package auth

import (
	"time"

	"github.com/dropDatabas3/staffauth/internal/authn"
	"github.com/dropDatabas3/staffauth/internal/domain/repository"
	"github.com/dropDatabas3/staffauth/internal/issuance"
	"github.com/dropDatabas3/staffauth/internal/mfa"
	"github.com/dropDatabas3/staffauth/internal/usertoken"
)

// Deps contiene lo que necesitan los controllers de login.
type Deps struct {
	Authn    *authn.Provider
	Mfa      *mfa.Service
	Tokens   *usertoken.Service
	Issuance *issuance.Service
	Clients  repository.ClientRepository
	// SecureCookies marca la cookie remember-me como Secure.
	SecureCookies bool
	Now           func() time.Time
}

// Controller atiende /auth/sign-in, /auth/mfa-challenge y /auth/mfa-resend.
type Controller struct {
	deps Deps
}

// NewController crea el controller.
func NewController(deps Deps) *Controller {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Controller{deps: deps}
}
