package flow

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/smartshelf/pkg/model"
)

type RetrieveOutcome string

const (
	RetrieveReleased RetrieveOutcome = "released"
	RetrieveNone     RetrieveOutcome = "none"
	RetrieveDeclined RetrieveOutcome = "declined"
)

// RetrieveResult is what the desk tells the resident after a retrieval run
type RetrieveResult struct {
	Outcome   RetrieveOutcome
	Apartment string
	Packages  []model.PackageInfo
	Released  int
}

func (r *RetrieveResult) Message() string {
	switch r.Outcome {
	case RetrieveReleased:
		return fmt.Sprintf("Released %d spot(s) for apartment %s: %s. Please collect your packages.",
			r.Released, r.Apartment, describePackages(r.Packages))
	case RetrieveNone:
		return fmt.Sprintf("No packages found for apartment %s.", r.Apartment)
	case RetrieveDeclined:
		return "Retrieval cancelled. Your packages stay on the shelf."
	default:
		return string(r.Outcome)
	}
}

func describePackages(packages []model.PackageInfo) string {
	parts := make([]string, len(packages))
	for i, p := range packages {
		parts[i] = fmt.Sprintf("%s (%s, %s)", p.SpotID, p.Size, p.Location)
	}
	return strings.Join(parts, ", ")
}

// Retrieve runs the retrieval conversation: record apartment, list its
// packages, ask for confirmation, then release the spots.
func (d *Driver) Retrieve(ctx context.Context, apartment string) (*RetrieveResult, error) {
	if _, err := d.engine.Reset(ctx); err != nil {
		return nil, goerr.Wrap(err, "failed to reset session before retrieval")
	}
	defer d.finish(ctx)

	s, err := d.engine.RecordApartment(ctx, apartment)
	if err != nil {
		return nil, err
	}
	result := &RetrieveResult{Apartment: *s.ApartmentNumber}

	if s, err = d.engine.LookupPackages(ctx); err != nil {
		return nil, err
	}
	result.Packages = s.PackagesInfo
	if !*s.PackagesFound {
		result.Outcome = RetrieveNone
		return result, nil
	}

	question := fmt.Sprintf("Apartment %s has packages at %s. Release them now?",
		result.Apartment, describePackages(result.Packages))
	ok, err := d.confirm.Confirm(ctx, question)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get confirmation")
	}
	if !ok {
		result.Outcome = RetrieveDeclined
		return result, nil
	}

	if s, err = d.engine.ReleasePackages(ctx); err != nil {
		return nil, err
	}
	result.Released = *s.ReleasedCount
	if *s.ReleaseStatus {
		result.Outcome = RetrieveReleased
	} else {
		// released concurrently by another desk between lookup and release
		result.Outcome = RetrieveNone
	}
	return result, nil
}
