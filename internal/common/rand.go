package common

import (
	"crypto/rand"
	"io"
	"math/big"
)

// RandomCode returns a uniformly distributed integer in [ResetCodeMin, ResetCodeMax]
// read from r. A nil reader means crypto/rand.
func RandomCode(r io.Reader) (int, error) {
	if r == nil {
		r = rand.Reader
	}
	n, err := rand.Int(r, big.NewInt(ResetCodeMax-ResetCodeMin+1))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()) + ResetCodeMin, nil
}
