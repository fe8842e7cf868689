// Package crypto produces the unguessable identifiers that double as
// access capabilities for stored secrets.
package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
)

const idLength = 16 // 128 bits

const (
	FormatToken = "token"
	FormatUUID  = "uuid"
)

// ErrEntropyUnavailable is returned when the random source cannot be read.
// Callers must fail the operation; there is no weaker fallback.
var ErrEntropyUnavailable = errors.New("entropy source unavailable")

type IDGenerator interface {
	NewID() (string, error)
}

// RandomID encodes 128 random bits as unpadded base64url (22 chars).
type RandomID struct {
	// Reader defaults to crypto/rand.Reader.
	Reader io.Reader
}

func (g RandomID) NewID() (string, error) {
	r := g.Reader
	if r == nil {
		r = rand.Reader
	}

	bytes := make([]byte, idLength)
	if _, err := io.ReadFull(r, bytes); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEntropyUnavailable, err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// UUIDv4 yields random (version 4) UUIDs.
type UUIDv4 struct {
	Reader io.Reader
}

func (g UUIDv4) NewID() (string, error) {
	var (
		id  uuid.UUID
		err error
	)
	if g.Reader != nil {
		id, err = uuid.NewRandomFromReader(g.Reader)
	} else {
		id, err = uuid.NewRandom()
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEntropyUnavailable, err)
	}
	return id.String(), nil
}

// NewIDGenerator returns the generator for a configured id format.
func NewIDGenerator(format string) (IDGenerator, error) {
	switch format {
	case "", FormatToken:
		return RandomID{}, nil
	case FormatUUID:
		return UUIDv4{}, nil
	default:
		return nil, fmt.Errorf("unknown id format: %q", format)
	}
}
