package shelf_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/smartshelf/pkg/model"
)

func TestTwoFlowsRaceForLastSpot(t *testing.T) {
	ctx := context.Background()
	f := setup(t, &model.Spot{ID: "L-1", Size: model.SizeL, Location: "Main Area"})

	alice := f.uc.ForSession("desk-alice")
	bob := f.uc.ForSession("desk-bob")

	for i, uc := range []interface {
		RecordSize(context.Context, string) (*model.Session, error)
		RecordApartment(context.Context, string) (*model.Session, error)
		LocateSpot(context.Context) (*model.Session, error)
	}{alice, bob} {
		_, err := uc.RecordSize(ctx, "L")
		gt.NoError(t, err)
		_, err = uc.RecordApartment(ctx, fmt.Sprintf("%dA", i+1))
		gt.NoError(t, err)

		s, err := uc.LocateSpot(ctx)
		gt.NoError(t, err)
		gt.True(t, *s.SpotAvailable)
		gt.Equal(t, *s.SpotID, model.SpotID("L-1"))
	}

	var (
		wg      sync.WaitGroup
		results [2]bool
		errs    [2]error
	)
	for i, uc := range []interface {
		CommitReservation(context.Context) (*model.Session, error)
	}{alice, bob} {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := uc.CommitReservation(ctx)
			errs[i] = err
			if err == nil {
				results[i] = *s.ReservationStatus
			}
		}(i)
	}
	wg.Wait()

	gt.NoError(t, errs[0])
	gt.NoError(t, errs[1])
	gt.True(t, results[0] != results[1])

	winner := "1A"
	if results[1] {
		winner = "2A"
	}
	spot := f.spot(t, "L-1")
	gt.True(t, spot.Occupied)
	gt.Equal(t, spot.Occupant, winner)
}

func TestManyCommitsForOneSpot(t *testing.T) {
	ctx := context.Background()
	f := setup(t, &model.Spot{ID: "S-1", Size: model.SizeS, Location: "Main Area"})

	const n = 10
	for i := 0; i < n; i++ {
		uc := f.uc.ForSession(model.SessionID(fmt.Sprintf("conv-%d", i)))
		_, err := uc.RecordSize(ctx, "S")
		gt.NoError(t, err)
		_, err = uc.RecordApartment(ctx, fmt.Sprintf("%dB", i))
		gt.NoError(t, err)
		_, err = uc.LocateSpot(ctx)
		gt.NoError(t, err)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		winner  string
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			uc := f.uc.ForSession(model.SessionID(fmt.Sprintf("conv-%d", i)))
			s, err := uc.CommitReservation(ctx)
			if err != nil {
				t.Error(err)
				return
			}
			if *s.ReservationStatus {
				mu.Lock()
				success++
				winner = fmt.Sprintf("%dB", i)
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	gt.Equal(t, success, 1)
	spot := f.spot(t, "S-1")
	gt.True(t, spot.Occupied)
	gt.Equal(t, spot.Occupant, winner)
}
