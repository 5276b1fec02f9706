package jwt

import (
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims con nombre propio.
const (
	ClaimJTI = "jti"
	// ClaimATI en un refresh token es el jti del access token emitido junto a él.
	ClaimATI = "ati"
)

var ErrInvalidIssuer = errors.New("invalid_issuer")

// Issuer firma access y refresh tokens con la clave del KeySet.
type Issuer struct {
	Iss        string  // "iss"
	Keys       *KeySet // clave activa
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Now        func() time.Time
}

func NewIssuer(iss string, ks *KeySet) *Issuer {
	return &Issuer{
		Iss:        iss,
		Keys:       ks,
		AccessTTL:  20 * time.Minute,
		RefreshTTL: 12 * time.Hour,
		Now:        time.Now,
	}
}

// Token es un JWT firmado.
type Token struct {
	Raw       string
	JTI       string
	ExpiresAt time.Time
	Claims    map[string]any
}

// IssueAccess emite un access token con claims estándar más extra (flat).
// ttl <= 0 usa AccessTTL.
func (i *Issuer) IssueAccess(sub, aud string, ttl time.Duration, extra map[string]any) (*Token, error) {
	if ttl <= 0 {
		ttl = i.AccessTTL
	}
	return i.issue(sub, aud, ttl, extra)
}

// IssueRefresh emite un refresh token que referencia el access token por ati.
func (i *Issuer) IssueRefresh(sub, aud, ati string, extra map[string]any) (*Token, error) {
	claims := make(map[string]any, len(extra)+1)
	for k, v := range extra {
		claims[k] = v
	}
	claims[ClaimATI] = ati
	return i.issue(sub, aud, i.RefreshTTL, claims)
}

func (i *Issuer) issue(sub, aud string, ttl time.Duration, extra map[string]any) (*Token, error) {
	now := i.now().UTC()
	exp := now.Add(ttl)
	jti := uuid.NewString()

	claims := jwtv5.MapClaims{
		"iss": i.Iss,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": exp.Unix(),
		"jti": jti,
	}
	if sub != "" {
		claims["sub"] = sub
	}
	if aud != "" {
		claims["aud"] = aud
	}
	for k, v := range extra {
		claims[k] = v
	}
	signed, err := i.SignRaw(claims)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(claims))
	for k, v := range claims {
		out[k] = v
	}
	return &Token{Raw: signed, JTI: jti, ExpiresAt: exp, Claims: out}, nil
}

// SignRaw firma un MapClaims arbitrario, seteando header kid/typ.
func (i *Issuer) SignRaw(claims jwtv5.MapClaims) (string, error) {
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodEdDSA, claims)
	tk.Header["kid"] = i.Keys.KID
	tk.Header["typ"] = "JWT"
	return tk.SignedString(i.Keys.Priv)
}

// Keyfunc valida que el kid del token sea el de la clave activa.
func (i *Issuer) Keyfunc() jwtv5.Keyfunc {
	return func(t *jwtv5.Token) (any, error) {
		if kid, _ := t.Header["kid"].(string); kid != "" && kid != i.Keys.KID {
			return nil, errors.New("kid_not_found")
		}
		return i.Keys.Pub, nil
	}
}

// JWKSJSON expone el JWKS actual.
func (i *Issuer) JWKSJSON() []byte { return i.Keys.JWKSJSON() }

func (i *Issuer) now() time.Time {
	if i.Now == nil {
		return time.Now()
	}
	return i.Now()
}
