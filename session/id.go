package session

import "github.com/MrEthical07/authservice/internal"

func newSessionID() (string, error) {
	return internal.NewSessionID()
}

// WellFormedID reports whether id has the shape of a generated session id.
// Transports use it to reject obviously bogus ids before a store lookup.
func WellFormedID(id string) bool {
	return internal.WellFormedSessionID(id)
}
