package job

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ID is a job's 128-bit identifier. Unlike uuid.UUID's canonical String
// method, ID renders as lowercase hex with no separators, since callers use
// it as a bare filesystem path segment.
type ID [16]byte

// ErrInvalidID reports a string that doesn't parse as an ID.
var ErrInvalidID = errors.New("job: invalid id")

// NewID mints a random job identifier.
func NewID() ID {
	return ID(uuid.New())
}

// ParseID parses a 32-character lowercase hex string produced by ID.String.
func ParseID(s string) (ID, error) {
	if len(s) != 32 {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	var id ID
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return ID{}, fmt.Errorf("%w: %q: %v", ErrInvalidID, s, err)
	}
	return id, nil
}

func (id ID) String() string {
	return hex.EncodeToString(id[:])
}
