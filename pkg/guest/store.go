// Package guest persists the device-local cart of anonymous shoppers, keyed by
// the guest profile id carried in their cookie.
package guest

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// ErrNotFound is returned when a profile has no stored cart.
var ErrNotFound = errors.New("guest cart not found")

var profileIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Store keeps one opaque payload per guest profile.
type Store interface {
	Load(ctx context.Context, profileID string) ([]byte, error)
	Save(ctx context.Context, profileID string, payload []byte) error
	Delete(ctx context.Context, profileID string) error
	Ping(ctx context.Context) error
}

// ValidateProfileID rejects ids that cannot be used as a storage key.
func ValidateProfileID(profileID string) error {
	if !profileIDRe.MatchString(profileID) {
		return fmt.Errorf("invalid guest profile id %q", profileID)
	}
	return nil
}
