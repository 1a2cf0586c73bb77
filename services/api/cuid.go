package api

import (
	"crypto/rand"
	"math/big"
)

const cuidAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// newCUID returns a collision-resistant id: a "c" prefix followed by 24
// random base36 characters. The shape matches the ids already present in the
// users, sessions, and accounts tables.
func newCUID() string {
	buf := make([]byte, 25)
	buf[0] = 'c'
	max := big.NewInt(int64(len(cuidAlphabet)))
	for i := 1; i < len(buf); i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand failing means the platform RNG is broken; there is
			// no sensible degraded mode for id generation.
			panic(err)
		}
		buf[i] = cuidAlphabet[n.Int64()]
	}
	return string(buf)
}
