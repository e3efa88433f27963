package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
)

// SessionIDSize is the number of random bytes behind a session identifier.
const SessionIDSize = 16

// SessionIDLength is the length of an encoded session identifier.
var SessionIDLength = base64.RawURLEncoding.EncodedLen(SessionIDSize)

// Entropy is the randomness source for identifiers. Tests may swap it.
var Entropy io.Reader = rand.Reader

type SessionID [SessionIDSize]byte

func NewSessionID() (string, error) {
	var sid SessionID
	if _, err := io.ReadFull(Entropy, sid[:]); err != nil {
		return "", err
	}
	return sid.String(), nil
}

func (s SessionID) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(s[:])
}

func ParseSessionID(sessionID string) (SessionID, error) {
	var sid SessionID
	if len(sessionID) != SessionIDLength {
		return sid, errors.New("invalid session id size")
	}

	raw, err := base64.RawURLEncoding.DecodeString(sessionID)
	if err != nil {
		return sid, err
	}
	if len(raw) != len(sid) {
		return sid, errors.New("invalid session id size")
	}

	copy(sid[:], raw)
	return sid, nil
}

// WellFormedSessionID reports whether s could have been produced by NewSessionID.
func WellFormedSessionID(s string) bool {
	_, err := ParseSessionID(s)
	return err == nil
}
