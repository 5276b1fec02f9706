package jwt

import (
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidJWT = errors.New("invalid_jwt")
	ErrExpired    = errors.New("expired")
)

// Parse valida firma (EdDSA) con la clave del issuer, chequea iss y
// exp/nbf con una pequeña tolerancia. Devuelve las claims como map.
func (i *Issuer) Parse(token string) (map[string]any, error) {
	tok, err := jwtv5.Parse(token, i.Keyfunc(),
		jwtv5.WithValidMethods([]string{"EdDSA"}),
		jwtv5.WithoutClaimsValidation(),
	)
	if err != nil || !tok.Valid {
		return nil, ErrInvalidJWT
	}
	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, errors.New("claims_type")
	}

	if i.Iss != "" {
		if iss, _ := claims["iss"].(string); iss != i.Iss {
			return nil, ErrInvalidIssuer
		}
	}

	now := i.now()
	if expf, ok := claims["exp"].(float64); ok {
		if time.Unix(int64(expf), 0).Before(now.Add(-30 * time.Second)) {
			return nil, ErrExpired
		}
	}
	if nbff, ok := claims["nbf"].(float64); ok {
		if time.Unix(int64(nbff), 0).After(now.Add(30 * time.Second)) {
			return nil, errors.New("not_before")
		}
	}

	out := make(map[string]any, len(claims))
	for k, v := range claims {
		out[k] = v
	}
	return out, nil
}
