// Package rng provides the simulator's single deterministic randomness
// source: a chacha20 stream cipher keyed from the scenario seed, with
// domain-tagged sub-stream derivation so that, e.g., network loss draws can
// never perturb storage fault draws even though both ultimately trace back
// to one seed.
//
// Every exported draw is pure given (key, position): two Sources built from
// the same seed and consulted in the same order produce bit-identical
// output on any platform, since chacha20's keystream has no
// platform-dependent behaviour and no draw touches floating point
// (FractionOf and Float64 convert to and from float64 only for
// configuration and display).
package rng

import (
	"crypto/sha256"
	"encoding/binary"

	"golang.org/x/crypto/chacha20"
)

// Source is a single keyed keystream. The zero value is not usable; build
// one with NewSource or Derive.
type Source struct {
	key    [chacha20.KeySize]byte
	cipher *chacha20.Cipher
	// drawn counts bytes already consumed from the keystream, purely for
	// diagnostics (e.g. telemetry wanting to report RNG consumption); it
	// plays no role in the generated values themselves.
	drawn uint64
}

// NewSource seeds the master stream from the scenario's 64-bit seed. The
// seed is expanded to a 256-bit key via SHA-256, since chacha20 requires a
// 32-byte key and the scenario format only carries a u64.
func NewSource(seed uint64) *Source {
	var seedBytes [8]byte
	binary.LittleEndian.PutUint64(seedBytes[:], seed)
	key := sha256.Sum256(seedBytes[:])
	return fromKey(key)
}

func fromKey(key [chacha20.KeySize]byte) *Source {
	var nonce [chacha20.NonceSize]byte // fixed zero nonce; the key alone distinguishes streams
	cipher, err := chacha20.NewUnauthenticatedCipher(key[:], nonce[:])
	if err != nil {
		// Only NewUnauthenticatedCipher's length checks can fail here, and
		// both key and nonce are built to the exact required sizes above.
		panic("rng: invalid chacha20 parameters: " + err.Error())
	}
	return &Source{key: key, cipher: cipher}
}

// Derive returns an independent sub-stream keyed by this stream's key and
// the given domain tag (e.g. "net", "store", "timer-jitter", or a NodeId's
// string form). Calls against the returned Source never affect this Source
// or any other sub-stream, and deriving the same tag from the same parent
// always yields the same sub-stream.
func (s *Source) Derive(tag string) *Source {
	h := sha256.New()
	h.Write(s.key[:])
	h.Write([]byte(tag))
	var derived [chacha20.KeySize]byte
	copy(derived[:], h.Sum(nil))
	return fromKey(derived)
}

// next reads n raw bytes from the keystream.
func (s *Source) next(n int) []byte {
	src := make([]byte, n)
	dst := make([]byte, n)
	s.cipher.XORKeyStream(dst, src)
	s.drawn += uint64(n)
	return dst
}

// Uint64 draws the next 64 keystream bits as an unsigned integer.
func (s *Source) Uint64() uint64 {
	return binary.LittleEndian.Uint64(s.next(8))
}

// Uint32 draws the next 32 keystream bits.
func (s *Source) Uint32() uint32 {
	return binary.LittleEndian.Uint32(s.next(4))
}

// Drawn returns the number of keystream bytes consumed so far, for
// diagnostics only.
func (s *Source) Drawn() uint64 {
	return s.drawn
}
