// Package token mints cancellation tokens: bearer credentials that let whoever
// holds the link inspect or cancel one booking without logging in.
package token

import "github.com/google/uuid"

type Issuer interface {
	Issue() string
}

type uuidIssuer struct{}

// NewIssuer returns an Issuer producing random (version 4) UUIDs, 122 bits of entropy.
func NewIssuer() Issuer {
	return uuidIssuer{}
}

func (uuidIssuer) Issue() string {
	return uuid.NewString()
}

// WellFormed reports whether s could be a token we issued. Lookups skip the
// store for anything else, and callers treat both cases as "not found".
func WellFormed(s string) bool {
	id, err := uuid.Parse(s)
	if err != nil {
		return false
	}
	return id.Version() == 4 && len(s) == 36
}
