package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/smartshelf/pkg/adapter"
	"github.com/m-mizutani/smartshelf/pkg/model"
	"github.com/m-mizutani/smartshelf/pkg/repository"
	"github.com/m-mizutani/smartshelf/pkg/utils/logging"
	"gopkg.in/yaml.v3"
)

// ErrLayoutNotFound is returned when the descriptor does not exist and the
// inventory is still empty
var ErrLayoutNotFound = goerr.New("shelf layout not found")

// UseCase loads the static shelf descriptor into the spot inventory and
// offers read-only views of it
type UseCase struct {
	spots   repository.SpotRepository
	storage adapter.Storage
}

type Option func(*UseCase)

// WithStorage enables gs:// descriptor paths
func WithStorage(storage adapter.Storage) Option {
	return func(uc *UseCase) {
		uc.storage = storage
	}
}

func New(spots repository.SpotRepository, opts ...Option) *UseCase {
	uc := &UseCase{spots: spots}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// LoadLayout reads a descriptor from a local file or a gs:// URL. Files
// ending in .yaml or .yml are decoded as YAML, everything else as JSON.
func (uc *UseCase) LoadLayout(ctx context.Context, path string) (*model.Layout, error) {
	r, err := uc.open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var layout model.Layout
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.NewDecoder(r).Decode(&layout); err != nil {
			return nil, goerr.Wrap(err, "failed to decode YAML layout", goerr.V("path", path))
		}
	default:
		if err := json.NewDecoder(r).Decode(&layout); err != nil {
			return nil, goerr.Wrap(err, "failed to decode JSON layout", goerr.V("path", path))
		}
	}

	return &layout, nil
}

func (uc *UseCase) open(ctx context.Context, path string) (io.ReadCloser, error) {
	if bucket, object, ok := adapter.ParseGCSURL(path); ok {
		if uc.storage == nil {
			return nil, goerr.New("cloud storage is not configured", goerr.V("path", path))
		}
		return uc.storage.Get(ctx, bucket, object)
	}

	f, err := os.Open(filepath.Clean(path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, goerr.Wrap(ErrLayoutNotFound, "layout file does not exist",
			goerr.V("path", path),
			goerr.V("hint", `create it with {"storage_space_details": [{"spot_id": "S-1", "size": "S", "location": "Main Area"}]}`))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open layout", goerr.V("path", path))
	}
	return f, nil
}

// Bootstrap inserts the spots of the descriptor that are not in the
// inventory yet. A missing descriptor is tolerated once the inventory holds
// spots, so that later runs work without it.
func (uc *UseCase) Bootstrap(ctx context.Context, path string) (int, error) {
	logger := logging.From(ctx)

	layout, err := uc.LoadLayout(ctx, path)
	if errors.Is(err, ErrLayoutNotFound) {
		existing, listErr := uc.spots.ListSpots(ctx)
		if listErr != nil {
			return 0, goerr.Wrap(listErr, "failed to list spots")
		}
		if len(existing) == 0 {
			return 0, err
		}
		logger.Warn("layout not found, using existing inventory", "path", path, "spots", len(existing))
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	spots, err := layout.Spots()
	if err != nil {
		return 0, goerr.Wrap(err, "invalid layout", goerr.V("path", path))
	}

	added, err := uc.spots.EnsureSpots(ctx, spots)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to load spots", goerr.V("path", path))
	}

	logger.Info("inventory loaded", "path", path, "described", len(spots), "added", added)
	return added, nil
}

// List returns every spot ordered by spot ID
func (uc *UseCase) List(ctx context.Context) ([]*model.Spot, error) {
	spots, err := uc.spots.ListSpots(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list spots")
	}
	return spots, nil
}

// SizeSummary counts spots of one size class
type SizeSummary struct {
	Size     model.Size
	Total    int
	Occupied int
}

// Summary counts total and occupied spots per size class, in S, M, L order
func (uc *UseCase) Summary(ctx context.Context) ([]SizeSummary, error) {
	spots, err := uc.List(ctx)
	if err != nil {
		return nil, err
	}

	summary := make([]SizeSummary, len(model.Sizes))
	index := make(map[model.Size]int, len(model.Sizes))
	for i, size := range model.Sizes {
		summary[i].Size = size
		index[size] = i
	}

	for _, spot := range spots {
		i, ok := index[spot.Size]
		if !ok {
			continue
		}
		summary[i].Total++
		if spot.Occupied {
			summary[i].Occupied++
		}
	}
	return summary, nil
}
