package harness

import (
	"errors"

	"github.com/AntonStoeckl/snapshotting-entitystore-go/entitystore"
)

const (
	// DefaultBandWidth is the distance between the base IDs of neighboring workers.
	DefaultBandWidth = 64

	// DefaultBandMask is applied to the random value before it is added to the worker's base ID.
	DefaultBandMask = 64
)

var (
	// ErrInvalidBandWidth is returned when the band width is not positive.
	ErrInvalidBandWidth = errors.New("band width must be positive")

	// ErrInvalidBandMask is returned when the band mask is negative.
	ErrInvalidBandMask = errors.New("band mask must not be negative")
)

// Band maps a worker's random values to entity IDs: (rnd & Mask) + worker*Width.
//
// With the default mask of 64 a worker only ever touches two entities, its base ID and the base ID
// of the next worker, so neighbors contend on one entity. A mask below Width keeps bands disjoint.
type Band struct {
	Width int64
	Mask  int64
}

// DefaultBand returns the 64-wide band with mask 64.
func DefaultBand() Band {
	return Band{Width: DefaultBandWidth, Mask: DefaultBandMask}
}

// Validate reports whether b can be used.
func (b Band) Validate() error {
	if b.Width <= 0 {
		return ErrInvalidBandWidth
	}

	if b.Mask < 0 {
		return ErrInvalidBandMask
	}

	return nil
}

// EntityID picks the entity for one iteration of worker.
func (b Band) EntityID(rnd int32, worker int) entitystore.EntityID {
	return (int64(rnd) & b.Mask) + int64(worker)*b.Width
}

// ageFrom maps a random value to an age in [0, 100).
func ageFrom(rnd int32) int {
	abs := int64(rnd)
	if abs < 0 {
		abs = -abs
	}

	return int(abs % 100)
}
