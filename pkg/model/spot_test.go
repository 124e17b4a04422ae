package model_test

import (
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/smartshelf/pkg/model"
)

func TestParseSize(t *testing.T) {
	testCases := []struct {
		input string
		want  model.Size
		valid bool
	}{
		{"S", model.SizeS, true},
		{"M", model.SizeM, true},
		{"L", model.SizeL, true},
		{"XL", "", false},
		{"m", "", false},
		{" M", "", false},
		{"", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := model.ParseSize(tc.input)
			if tc.valid {
				gt.NoError(t, err)
				gt.Equal(t, got, tc.want)
			} else {
				gt.Error(t, err)
				gt.True(t, errors.Is(err, model.ErrInvalidInput))
			}
		})
	}
}

func TestNormalizeApartment(t *testing.T) {
	lower, err := model.NormalizeApartment("3b")
	gt.NoError(t, err)
	upper, err := model.NormalizeApartment("3B")
	gt.NoError(t, err)
	gt.Equal(t, lower, upper)
	gt.Equal(t, upper, "3B")

	padded, err := model.NormalizeApartment("  4a ")
	gt.NoError(t, err)
	gt.Equal(t, padded, "4A")

	_, err = model.NormalizeApartment("   ")
	gt.True(t, errors.Is(err, model.ErrInvalidInput))
}

func TestSpotCheckInvariant(t *testing.T) {
	gt.NoError(t, (&model.Spot{ID: "S-1", Size: model.SizeS}).CheckInvariant())
	gt.NoError(t, (&model.Spot{ID: "S-1", Size: model.SizeS, Occupied: true, Occupant: "1A"}).CheckInvariant())
	gt.Error(t, (&model.Spot{ID: "S-1", Size: model.SizeS, Occupied: true}).CheckInvariant())
	gt.Error(t, (&model.Spot{ID: "S-1", Size: model.SizeS, Occupant: "1A"}).CheckInvariant())
}

func TestSpotValidate(t *testing.T) {
	gt.NoError(t, (&model.Spot{ID: "L-1", Size: model.SizeL}).Validate())

	err := (&model.Spot{Size: model.SizeL}).Validate()
	gt.True(t, errors.Is(err, model.ErrInvalidInput))

	err = (&model.Spot{ID: "X-1", Size: "XL"}).Validate()
	gt.True(t, errors.Is(err, model.ErrInvalidInput))
}
