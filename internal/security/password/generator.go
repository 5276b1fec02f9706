package password

import (
	"crypto/rand"
	"math/big"
)

const generatorAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Generate crea una password aleatoria de n caracteres alfanuméricos.
// Se usa como credencial inicial no utilizable para cuentas nuevas.
func Generate(n int) (string, error) {
	out := make([]byte, n)
	max := big.NewInt(int64(len(generatorAlphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = generatorAlphabet[idx.Int64()]
	}
	return string(out), nil
}
