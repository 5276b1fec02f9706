package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSeed indica un seed que no es base64 de 32 bytes.
var ErrInvalidSeed = errors.New("jwt: private key seed must be 32 bytes base64")

// KeySet mantiene una sola clave de firma activa.
type KeySet struct {
	Priv ed25519.PrivateKey
	Pub  ed25519.PublicKey
	KID  string
	Alg  string // "EdDSA"
}

// NewDevEd25519 genera una clave Ed25519 en memoria con un KID dado.
// Los tokens firmados no sobreviven un reinicio.
func NewDevEd25519(kid string) (*KeySet, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &KeySet{Priv: priv, Pub: pub, KID: kid, Alg: "EdDSA"}, nil
}

// NewFromSeed deriva la clave desde un seed base64 (std o url) de 32 bytes.
func NewFromSeed(kid, seedB64 string) (*KeySet, error) {
	seedB64 = strings.TrimSpace(seedB64)
	seed, err := base64.StdEncoding.DecodeString(seedB64)
	if err != nil {
		seed, err = base64.RawURLEncoding.DecodeString(strings.TrimRight(seedB64, "="))
	}
	if err != nil || len(seed) != ed25519.SeedSize {
		return nil, ErrInvalidSeed
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &KeySet{
		Priv: priv,
		Pub:  priv.Public().(ed25519.PublicKey),
		KID:  kid,
		Alg:  "EdDSA",
	}, nil
}

// GenerateSeed devuelve un seed nuevo en base64 estándar.
func GenerateSeed() (string, error) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return "", fmt.Errorf("generate seed: %w", err)
	}
	return base64.StdEncoding.EncodeToString(seed), nil
}

// ----- JWKS (serialización) -----

type jwk struct {
	Kty string `json:"kty"` // "OKP"
	Crv string `json:"crv"` // "Ed25519"
	Kid string `json:"kid"`
	Alg string `json:"alg"` // "EdDSA"
	Use string `json:"use"` // "sig"
	X   string `json:"x"`   // base64url(pub)
}

type jwks struct {
	Keys []jwk `json:"keys"`
}

// JWKSJSON devuelve el JWKS (solo la pública) en JSON.
func (k *KeySet) JWKSJSON() []byte {
	j := jwks{
		Keys: []jwk{{
			Kty: "OKP",
			Crv: "Ed25519",
			Kid: k.KID,
			Alg: k.Alg,
			Use: "sig",
			X:   base64.RawURLEncoding.EncodeToString(k.Pub),
		}},
	}
	b, _ := json.Marshal(j)
	return b
}
