package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	algorithmID = "argon2id"

	minMemoryKB    uint32 = 8 * 1024
	minIterations  uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16

	// MaxPasswordBytes bounds the input accepted by Hash and Verify.
	MaxPasswordBytes = 1024
)

var (
	// ErrMismatch is returned by Verify when the password does not match.
	ErrMismatch = errors.New("password mismatch")
	// ErrMalformedHash is returned when an encoded hash cannot be parsed.
	ErrMalformedHash = errors.New("malformed password hash")
	// ErrInvalidPassword is returned for empty or oversized input.
	ErrInvalidPassword = errors.New("invalid password input")
)

// Params are the Argon2id cost parameters.
type Params struct {
	MemoryKB    uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams follows the RFC 9106 second recommended option.
func DefaultParams() Params {
	return Params{
		MemoryKB:    64 * 1024,
		Iterations:  3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Validate rejects parameters below the accepted floor.
func (p Params) Validate() error {
	switch {
	case p.MemoryKB < minMemoryKB:
		return fmt.Errorf("password memory must be >= %d KB", minMemoryKB)
	case p.Iterations < minIterations:
		return errors.New("password iterations must be >= 1")
	case p.Parallelism < minParallelism:
		return errors.New("password parallelism must be >= 1")
	case p.SaltLength < minSaltLength:
		return fmt.Errorf("password salt length must be >= %d", minSaltLength)
	case p.KeyLength < minKeyLength:
		return fmt.Errorf("password key length must be >= %d", minKeyLength)
	}
	return nil
}

// Hasher hashes and verifies passwords. It is safe for concurrent use.
type Hasher struct {
	params Params
	// decoy is verified against when there is no real hash to compare, so
	// that misses cost as much as hits.
	decoy string
}

// New returns a hasher using params.
func New(params Params) (*Hasher, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	h := &Hasher{params: params}

	decoy, err := h.Hash("decoy-password")
	if err != nil {
		return nil, err
	}
	h.decoy = decoy
	return h, nil
}

// Params returns the hasher's parameters.
func (h *Hasher) Params() Params {
	return h.params
}

// Hash returns the PHC encoding of an Argon2id hash of plaintext.
func (h *Hasher) Hash(plaintext string) (string, error) {
	if err := checkInput(plaintext); err != nil {
		return "", err
	}

	salt := make([]byte, h.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(plaintext), salt, h.params.Iterations, h.params.MemoryKB, h.params.Parallelism, h.params.KeyLength)

	return encode(h.params, salt, key), nil
}

// Verify checks plaintext against an encoded hash. It returns nil on match,
// [ErrMismatch] on mismatch and [ErrMalformedHash] for unparsable input.
func (h *Hasher) Verify(plaintext, encoded string) error {
	if err := checkInput(plaintext); err != nil {
		return err
	}

	params, salt, want, err := decode(encoded)
	if err != nil {
		return err
	}

	got := argon2.IDKey([]byte(plaintext), salt, params.Iterations, params.MemoryKB, params.Parallelism, uint32(len(want)))
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return ErrMismatch
	}
	return nil
}

// VerifyDecoy burns the same work as a real verification and always fails.
// Use it when the account being verified does not exist.
func (h *Hasher) VerifyDecoy(plaintext string) error {
	if err := h.Verify(plaintext, h.decoy); err != nil && !errors.Is(err, ErrMismatch) {
		return err
	}
	return ErrMismatch
}

// NeedsRehash reports whether encoded was produced with weaker parameters
// than the hasher's.
func (h *Hasher) NeedsRehash(encoded string) (bool, error) {
	params, _, key, err := decode(encoded)
	if err != nil {
		return false, err
	}
	return params.MemoryKB < h.params.MemoryKB ||
		params.Iterations < h.params.Iterations ||
		params.Parallelism < h.params.Parallelism ||
		uint32(len(key)) != h.params.KeyLength, nil
}

func checkInput(plaintext string) error {
	if plaintext == "" || len(plaintext) > MaxPasswordBytes {
		return ErrInvalidPassword
	}
	return nil
}

// encode writes $argon2id$v=19$m=<kb>,t=<iter>,p=<par>$<salt>$<key> with
// unpadded standard base64.
func encode(p Params, salt, key []byte) string {
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		p.MemoryKB,
		p.Iterations,
		p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
}

func decode(encoded string) (Params, []byte, []byte, error) {
	var p Params

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithmID {
		return p, nil, nil, ErrMalformedHash
	}
	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return p, nil, nil, fmt.Errorf("%w: unsupported version %q", ErrMalformedHash, parts[2])
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.MemoryKB, &p.Iterations, &p.Parallelism); err != nil {
		return p, nil, nil, fmt.Errorf("%w: parameters", ErrMalformedHash)
	}
	if p.MemoryKB < minMemoryKB || p.Iterations < minIterations || p.Parallelism < minParallelism {
		return p, nil, nil, fmt.Errorf("%w: parameters below floor", ErrMalformedHash)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || uint32(len(salt)) < minSaltLength {
		return p, nil, nil, fmt.Errorf("%w: salt", ErrMalformedHash)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || uint32(len(key)) < minKeyLength {
		return p, nil, nil, fmt.Errorf("%w: key", ErrMalformedHash)
	}

	p.SaltLength = uint32(len(salt))
	p.KeyLength = uint32(len(key))
	return p, salt, key, nil
}
