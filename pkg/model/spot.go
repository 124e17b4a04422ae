package model

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// DefaultLocation is assigned to spots whose descriptor omits a location
const DefaultLocation = "Main Area"

type SpotID string

type Size string

const (
	SizeS Size = "S"
	SizeM Size = "M"
	SizeL Size = "L"
)

// Sizes lists every accepted size class in ascending order
var Sizes = []Size{SizeS, SizeM, SizeL}

// Validate checks if the size is one of S, M or L
func (s Size) Validate() error {
	switch s {
	case SizeS, SizeM, SizeL:
		return nil
	default:
		return goerr.Wrap(ErrInvalidInput, "size must be one of S, M, L", goerr.V("size", string(s)))
	}
}

// ParseSize accepts exactly the literals S, M and L. Lowercase or padded
// input is rejected rather than guessed.
func ParseSize(v string) (Size, error) {
	s := Size(v)
	if err := s.Validate(); err != nil {
		return "", err
	}
	return s, nil
}

// NormalizeApartment converts an apartment identifier into its canonical
// occupant key. Blank identifiers are rejected because an empty occupant
// is indistinguishable from a free spot.
func NormalizeApartment(v string) (string, error) {
	apt := strings.ToUpper(strings.TrimSpace(v))
	if apt == "" {
		return "", goerr.Wrap(ErrInvalidInput, "apartment number is empty", goerr.V("apartment", v))
	}
	return apt, nil
}

// Spot is a physical storage location on the shelf
type Spot struct {
	ID       SpotID `json:"spot_id" firestore:"spot_id" redis:"spot_id"`
	Size     Size   `json:"size" firestore:"size" redis:"size"`
	Location string `json:"location" firestore:"location" redis:"location"`
	Occupant string `json:"occupant" firestore:"occupant" redis:"occupant"`
	Occupied bool   `json:"occupied" firestore:"occupied" redis:"occupied"`
}

// Validate checks the immutable attributes of the spot
func (s *Spot) Validate() error {
	if s.ID == "" {
		return goerr.Wrap(ErrInvalidInput, "spot_id is empty")
	}
	if err := s.Size.Validate(); err != nil {
		return goerr.Wrap(err, "invalid spot size", goerr.V("spot_id", s.ID))
	}
	return nil
}

// CheckInvariant verifies that the occupancy flag agrees with the occupant
func (s *Spot) CheckInvariant() error {
	if s.Occupied != (s.Occupant != "") {
		return goerr.New("occupancy flag disagrees with occupant",
			goerr.V("spot_id", s.ID),
			goerr.V("occupied", s.Occupied),
			goerr.V("occupant", s.Occupant))
	}
	return nil
}
