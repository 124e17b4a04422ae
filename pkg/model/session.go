package model

// SessionID identifies one conversation's scratch record
type SessionID string

// DefaultSessionID is used by the concierge desk, which serves one
// conversation at a time
const DefaultSessionID SessionID = "concierge_desk"

type SessionField string

const (
	FieldSize              SessionField = "size"
	FieldApartmentNumber   SessionField = "apartment_number"
	FieldSpotAvailable     SessionField = "spot_available"
	FieldSpotID            SessionField = "spot_id"
	FieldSpotLocation      SessionField = "spot_location"
	FieldReservationStatus SessionField = "reservation_status"
	FieldPackagesFound     SessionField = "packages_found"
	FieldPackagesInfo      SessionField = "packages_info"
	FieldReleaseStatus     SessionField = "release_status"
	FieldReleasedCount     SessionField = "released_count"
)

// PackageInfo describes one spot held by an apartment
type PackageInfo struct {
	SpotID   SpotID `json:"spot_id" firestore:"spot_id"`
	Size     Size   `json:"size" firestore:"size"`
	Location string `json:"location" firestore:"location"`
}

// Session is the working state of an in-flight store or retrieve
// conversation. A nil field has not been set by the flow yet.
type Session struct {
	Size              *Size   `json:"size,omitempty" firestore:"size,omitempty"`
	ApartmentNumber   *string `json:"apartment_number,omitempty" firestore:"apartment_number,omitempty"`
	SpotAvailable     *bool   `json:"spot_available,omitempty" firestore:"spot_available,omitempty"`
	SpotID            *SpotID `json:"spot_id,omitempty" firestore:"spot_id,omitempty"`
	SpotLocation      *string `json:"spot_location,omitempty" firestore:"spot_location,omitempty"`
	ReservationStatus *bool   `json:"reservation_status,omitempty" firestore:"reservation_status,omitempty"`
	PackagesFound     *bool   `json:"packages_found,omitempty" firestore:"packages_found,omitempty"`
	// PackagesInfo is nil until a lookup runs; an empty slice means the lookup found nothing
	PackagesInfo  []PackageInfo `json:"packages_info" firestore:"packages_info"`
	ReleaseStatus *bool         `json:"release_status,omitempty" firestore:"release_status,omitempty"`
	ReleasedCount *int          `json:"released_count,omitempty" firestore:"released_count,omitempty"`
}

// Clone returns a deep copy so that callers cannot mutate stored state
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := &Session{
		Size:              clonePtr(s.Size),
		ApartmentNumber:   clonePtr(s.ApartmentNumber),
		SpotAvailable:     clonePtr(s.SpotAvailable),
		SpotID:            clonePtr(s.SpotID),
		SpotLocation:      clonePtr(s.SpotLocation),
		ReservationStatus: clonePtr(s.ReservationStatus),
		PackagesFound:     clonePtr(s.PackagesFound),
		ReleaseStatus:     clonePtr(s.ReleaseStatus),
		ReleasedCount:     clonePtr(s.ReleasedCount),
	}
	if s.PackagesInfo != nil {
		c.PackagesInfo = append([]PackageInfo{}, s.PackagesInfo...)
	}
	return c
}

// IsEmpty reports whether no field has been set
func (s *Session) IsEmpty() bool {
	return s.Size == nil &&
		s.ApartmentNumber == nil &&
		s.SpotAvailable == nil &&
		s.SpotID == nil &&
		s.SpotLocation == nil &&
		s.ReservationStatus == nil &&
		s.PackagesFound == nil &&
		s.PackagesInfo == nil &&
		s.ReleaseStatus == nil &&
		s.ReleasedCount == nil
}

// RequireSize returns the recorded size or a MissingFieldError
func (s *Session) RequireSize() (Size, error) {
	if s.Size == nil {
		return "", NewMissingFieldError(FieldSize)
	}
	return *s.Size, nil
}

// RequireApartment returns the recorded apartment or a MissingFieldError
func (s *Session) RequireApartment() (string, error) {
	if s.ApartmentNumber == nil {
		return "", NewMissingFieldError(FieldApartmentNumber)
	}
	return *s.ApartmentNumber, nil
}

// RequireSpotID returns the located spot or a MissingFieldError
func (s *Session) RequireSpotID() (SpotID, error) {
	if s.SpotID == nil {
		return "", NewMissingFieldError(FieldSpotID)
	}
	return *s.SpotID, nil
}

// Ptr returns a pointer to v, for filling optional session fields
func Ptr[T any](v T) *T {
	return &v
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
