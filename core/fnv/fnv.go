// Package fnv implements the 32-bit FNV-1a hash Wwise uses to derive numeric
// object identifiers from names, and the WwiseID string form used to address
// sounds in link configurations.
//
// Wwise hashes the lower-cased UTF-8 bytes of the name, so two names that
// differ only in case always collapse to the same identifier.
package fnv

import (
	"fmt"
	"strings"

	"github.com/caldw/bankforge/core/errors"
)

const (
	// OffsetBasis is the FNV-1a 32-bit offset basis.
	OffsetBasis uint32 = 2166136261
	// Prime is the FNV-1a 32-bit prime.
	Prime uint32 = 16777619
)

// Hash computes the case-insensitive 32-bit FNV-1a hash of name.
func Hash(name string) uint32 {
	acc := OffsetBasis
	for _, b := range []byte(strings.ToLower(name)) {
		acc *= Prime
		acc ^= uint32(b)
	}
	return acc
}

// WwiseID is a sound identifier in its configuration form: a one-letter type
// code followed by exactly nine digits, e.g. "c452005011".
type WwiseID string

const wwiseIDLen = 10

// ParseWwiseID validates raw as a Wwise ID, zero-padding short forms first
// ("c5011" becomes "c000005011"). Padding must happen before any hashing:
// the padded and unpadded forms hash differently.
func ParseWwiseID(raw string) (WwiseID, error) {
	if len(raw) < 2 {
		return "", &errors.ConfigError{Field: raw, Message: "wwise ID too short"}
	}
	if len(raw) < wwiseIDLen {
		raw = raw[:1] + strings.Repeat("0", wwiseIDLen-len(raw)) + raw[1:]
	}
	if len(raw) != wwiseIDLen {
		return "", &errors.ConfigError{Field: raw, Message: "wwise ID must be one letter followed by nine digits"}
	}
	if raw[0] < 'a' || raw[0] > 'z' {
		return "", &errors.ConfigError{Field: raw, Message: "wwise ID must start with a lowercase type letter"}
	}
	for i := 1; i < wwiseIDLen; i++ {
		if raw[i] < '0' || raw[i] > '9' {
			return "", &errors.ConfigError{Field: raw, Message: "wwise ID must be one letter followed by nine digits"}
		}
	}
	return WwiseID(raw), nil
}

// PlayEvent returns the name of the Play event for this id.
func (id WwiseID) PlayEvent() string {
	return fmt.Sprintf("Play_%s", string(id))
}

// StopEvent returns the name of the Stop event for this id.
func (id WwiseID) StopEvent() string {
	return fmt.Sprintf("Stop_%s", string(id))
}

func (id WwiseID) String() string {
	return string(id)
}
