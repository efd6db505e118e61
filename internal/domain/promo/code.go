package promo

import (
	"crypto/rand"
	"math/big"

	"github.com/go-faster/errors"
)

// codeAlphabet omits characters that are easy to misread (0/O, 1/I/L).
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// CodeLength is the length of generated promo codes.
const CodeLength = 8

// GenerateCode returns a random promo code.
func GenerateCode() (string, error) {
	limit := big.NewInt(int64(len(codeAlphabet)))
	buf := make([]byte, CodeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", errors.Wrap(err, "read random")
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}
