// Package room defines the deterministic identifier for a two-party
// conversation. The id is the sorted pair of member ids joined by "_",
// so either member derives the same room independently.
package room

import (
	"fmt"
	"strings"

	"github.com/fathima-sithara/realtime-service/internal/apperr"
)

const sep = "_"

// Derive builds the room id for two distinct member ids. Member ids may
// not be empty or contain the separator, otherwise the id would not
// parse back into its members.
func Derive(a, b string) (string, error) {
	if err := validateMember(a); err != nil {
		return "", err
	}
	if err := validateMember(b); err != nil {
		return "", err
	}
	if a == b {
		return "", fmt.Errorf("%w: members must be distinct", apperr.ErrInvalidRoom)
	}
	if a > b {
		a, b = b, a
	}
	return a + sep + b, nil
}

// Parse decomposes a room id into its two members, in sorted order.
func Parse(id string) (string, string, error) {
	parts := strings.Split(id, sep)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("%w: %q", apperr.ErrInvalidRoom, id)
	}
	a, b := parts[0], parts[1]
	if a == "" || b == "" || a == b {
		return "", "", fmt.Errorf("%w: %q", apperr.ErrInvalidRoom, id)
	}
	if a > b {
		return "", "", fmt.Errorf("%w: %q members out of order", apperr.ErrInvalidRoom, id)
	}
	return a, b, nil
}

// Other returns the member of the room that is not userID.
func Other(id, userID string) (string, error) {
	a, b, err := Parse(id)
	if err != nil {
		return "", err
	}
	switch userID {
	case a:
		return b, nil
	case b:
		return a, nil
	}
	return "", fmt.Errorf("%w: %s is not a member of %s", apperr.ErrForbidden, userID, id)
}

// IsMember reports whether userID is one of the room's two members.
func IsMember(id, userID string) bool {
	a, b, err := Parse(id)
	if err != nil {
		return false
	}
	return userID == a || userID == b
}

func validateMember(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty member id", apperr.ErrInvalidRoom)
	}
	if strings.Contains(id, sep) {
		return fmt.Errorf("%w: member id %q contains separator", apperr.ErrInvalidRoom, id)
	}
	return nil
}
