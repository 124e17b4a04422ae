package inventory_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/smartshelf/pkg/model"
	"github.com/m-mizutani/smartshelf/pkg/repository"
	"github.com/m-mizutani/smartshelf/pkg/usecase/inventory"
)

type mockStorage struct {
	objects map[string][]byte
}

func (m *mockStorage) Get(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	data, ok := m.objects[bucket+"/"+object]
	if !ok {
		return nil, goerr.New("object not found", goerr.V("object", object))
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func newRepo(t *testing.T) *repository.SQLite {
	repo, err := repository.NewSQLite(filepath.Join(t.TempDir(), "storage.db"))
	gt.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	gt.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

const jsonLayout = `{
  "storage_space_details": [
    {"spot_id": "S-1", "size": "S", "location": "Left Shelf"},
    {"spot_id": "M-1", "size": "M"},
    {"spot_id": "L-1", "size": "L", "location": "Floor"}
  ]
}`

const yamlLayout = `storage_space_details:
  - spot_id: S-1
    size: S
  - spot_id: S-2
    size: S
    location: Right Shelf
`

func TestBootstrapJSON(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	uc := inventory.New(repo)
	path := writeFile(t, "smart_shelf_config.json", jsonLayout)

	added, err := uc.Bootstrap(ctx, path)
	gt.NoError(t, err)
	gt.Equal(t, added, 3)

	// a second run adds nothing
	added, err = uc.Bootstrap(ctx, path)
	gt.NoError(t, err)
	gt.Equal(t, added, 0)

	spots, err := uc.List(ctx)
	gt.NoError(t, err)
	gt.A(t, spots).Length(3)
	gt.Equal(t, spots[1].ID, model.SpotID("M-1"))
	gt.Equal(t, spots[1].Location, model.DefaultLocation)
}

func TestBootstrapYAML(t *testing.T) {
	ctx := context.Background()
	uc := inventory.New(newRepo(t))
	path := writeFile(t, "layout.yaml", yamlLayout)

	added, err := uc.Bootstrap(ctx, path)
	gt.NoError(t, err)
	gt.Equal(t, added, 2)

	summary, err := uc.Summary(ctx)
	gt.NoError(t, err)
	gt.A(t, summary).Length(3)
	gt.Equal(t, summary[0].Size, model.SizeS)
	gt.Equal(t, summary[0].Total, 2)
	gt.Equal(t, summary[1].Total, 0)
}

func TestBootstrapFromCloudStorage(t *testing.T) {
	ctx := context.Background()
	storage := &mockStorage{objects: map[string][]byte{
		"shelf-config/building/layout.json": []byte(jsonLayout),
	}}
	uc := inventory.New(newRepo(t), inventory.WithStorage(storage))

	added, err := uc.Bootstrap(ctx, "gs://shelf-config/building/layout.json")
	gt.NoError(t, err)
	gt.Equal(t, added, 3)

	_, err = inventory.New(newRepo(t)).Bootstrap(ctx, "gs://shelf-config/building/layout.json")
	gt.Error(t, err)
}

func TestBootstrapMissingLayout(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	uc := inventory.New(repo)
	missing := filepath.Join(t.TempDir(), "missing.json")

	_, err := uc.Bootstrap(ctx, missing)
	gt.True(t, errors.Is(err, inventory.ErrLayoutNotFound))

	_, err = repo.EnsureSpots(ctx, []*model.Spot{{ID: "S-1", Size: model.SizeS, Location: "Main Area"}})
	gt.NoError(t, err)

	added, err := uc.Bootstrap(ctx, missing)
	gt.NoError(t, err)
	gt.Equal(t, added, 0)
}

func TestBootstrapInvalidLayout(t *testing.T) {
	ctx := context.Background()
	uc := inventory.New(newRepo(t))

	path := writeFile(t, "bad.json", `{"storage_space_details": [{"spot_id": "X-1", "size": "XL"}]}`)
	_, err := uc.Bootstrap(ctx, path)
	gt.True(t, errors.Is(err, model.ErrInvalidInput))

	path = writeFile(t, "broken.json", `{"storage_space_details": [`)
	_, err = uc.Bootstrap(ctx, path)
	gt.Error(t, err)
}

func TestSummaryCountsOccupied(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	uc := inventory.New(repo)

	_, err := uc.Bootstrap(ctx, writeFile(t, "layout.json", jsonLayout))
	gt.NoError(t, err)
	ok, err := repo.TryOccupy(ctx, "L-1", "2B")
	gt.NoError(t, err)
	gt.True(t, ok)

	summary, err := uc.Summary(ctx)
	gt.NoError(t, err)
	gt.Equal(t, summary[2], inventory.SizeSummary{Size: model.SizeL, Total: 1, Occupied: 1})
}
