// Package rand provides cheap, non-cryptographic identifier randomness for
// user ids and locally created entities.
package rand

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"
)

const (
	hexCharset    = "0123456789abcdef"
	base62Charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

var defaultSource = newSource()

// newSource seeds a PCG generator from crypto/rand once, then serves all
// id requests from it behind a mutex.
func newSource() *source {
	seed := make([]byte, 16)
	if _, err := cryptorand.Read(seed); err != nil {
		panic("unreachable")
	}

	return &source{
		//nolint:gosec // ids are not security sensitive
		rng: rand.New(rand.NewPCG(
			binary.LittleEndian.Uint64(seed[:8]),
			binary.LittleEndian.Uint64(seed[8:]),
		)),
	}
}

type source struct {
	mut sync.Mutex
	rng *rand.Rand
}

func (s *source) str(charset string, length int) string {
	buf := make([]byte, length)

	s.mut.Lock()
	for i := range buf {
		buf[i] = charset[s.rng.IntN(len(charset))]
	}
	s.mut.Unlock()

	return string(buf)
}

// NewHexID returns a lowercase hex string of the given length.
// User ids are "user-" + NewHexID(8).
func NewHexID(length int) string {
	return defaultSource.str(hexCharset, length)
}

// NewID returns a base62 string of the given length, used for locally
// created boards, lists, epics and sprints.
func NewID(length int) string {
	return defaultSource.str(base62Charset, length)
}
