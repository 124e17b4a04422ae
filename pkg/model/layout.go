package model

import (
	"github.com/m-mizutani/goerr/v2"
)

// Layout is the static shelf descriptor read at startup
type Layout struct {
	StorageSpaceDetails []LayoutSpot `json:"storage_space_details" yaml:"storage_space_details"`
}

// LayoutSpot is one spot entry of the descriptor
type LayoutSpot struct {
	SpotID   string `json:"spot_id" yaml:"spot_id"`
	Size     string `json:"size" yaml:"size"`
	Location string `json:"location,omitempty" yaml:"location,omitempty"`
}

// Spots converts the descriptor into spots, applying DefaultLocation
// and rejecting duplicate or malformed entries.
func (l *Layout) Spots() ([]*Spot, error) {
	seen := make(map[SpotID]struct{}, len(l.StorageSpaceDetails))
	spots := make([]*Spot, 0, len(l.StorageSpaceDetails))

	for i, entry := range l.StorageSpaceDetails {
		spot := &Spot{
			ID:       SpotID(entry.SpotID),
			Size:     Size(entry.Size),
			Location: entry.Location,
		}
		if spot.Location == "" {
			spot.Location = DefaultLocation
		}
		if err := spot.Validate(); err != nil {
			return nil, goerr.Wrap(err, "invalid layout entry", goerr.V("index", i))
		}
		if _, ok := seen[spot.ID]; ok {
			return nil, goerr.Wrap(ErrInvalidInput, "duplicate spot_id in layout", goerr.V("spot_id", spot.ID))
		}
		seen[spot.ID] = struct{}{}
		spots = append(spots, spot)
	}

	return spots, nil
}
