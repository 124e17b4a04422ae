package shelf_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/smartshelf/pkg/model"
	"github.com/m-mizutani/smartshelf/pkg/repository"
	"github.com/m-mizutani/smartshelf/pkg/tool"
	shelftool "github.com/m-mizutani/smartshelf/pkg/tool/shelf"
	"github.com/m-mizutani/smartshelf/pkg/usecase/shelf"
	"google.golang.org/genai"
)

func newTool(t *testing.T) *shelftool.Tool {
	repo, err := repository.NewSQLite(filepath.Join(t.TempDir(), "shelf.db"))
	gt.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	_, err = repo.EnsureSpots(context.Background(), []*model.Spot{
		{ID: "S-1", Size: model.SizeS, Location: "Main Area"},
	})
	gt.NoError(t, err)

	st, err := shelftool.New(shelf.New(repo, repo))
	gt.NoError(t, err)
	return st
}

func call(t *testing.T, r *tool.Registry, name string, args map[string]any) map[string]any {
	t.Helper()
	resp, err := r.Execute(context.Background(), genai.FunctionCall{ID: name + "-id", Name: name, Args: args})
	gt.NoError(t, err)
	gt.Equal(t, resp.Name, name)
	gt.Equal(t, resp.ID, name+"-id")
	return resp.Response
}

func session(t *testing.T, resp map[string]any) map[string]any {
	t.Helper()
	s, ok := resp["session"].(map[string]any)
	gt.True(t, ok)
	return s
}

func TestSpec(t *testing.T) {
	st := newTool(t)
	r := tool.New(st)

	gt.Equal(t, r.Names(), []string{
		"commit_reservation",
		"get_session",
		"locate_spot",
		"lookup_packages",
		"record_apartment",
		"record_size",
		"release_packages",
		"reset_session",
	})

	for _, fd := range st.Spec().FunctionDeclarations {
		switch fd.Name {
		case "record_size":
			gt.Equal(t, fd.Parameters.Type, genai.TypeObject)
			gt.Equal(t, fd.Parameters.Properties["size"].Enum, []string{"S", "M", "L"})
			gt.Equal(t, fd.Parameters.Required, []string{"size"})
		case "record_apartment":
			gt.Equal(t, *fd.Parameters.Properties["apartment_number"].MinLength, int64(1))
		default:
			gt.True(t, fd.Parameters == nil)
		}
	}

	gt.S(t, r.Prompts(context.Background())).Contains("error_kind")
}

func TestStorageFlowThroughFunctions(t *testing.T) {
	r := tool.New(newTool(t))

	resp := call(t, r, "reset_session", nil)
	gt.Equal(t, resp["deleted"], any(false))

	call(t, r, "record_size", map[string]any{"size": "S"})
	resp = call(t, r, "record_apartment", map[string]any{"apartment_number": "2d"})
	gt.Equal(t, session(t, resp)["apartment_number"], any("2D"))

	resp = call(t, r, "locate_spot", nil)
	s := session(t, resp)
	gt.Equal(t, s["spot_available"], any(true))
	gt.Equal(t, s["spot_id"], any("S-1"))

	resp = call(t, r, "commit_reservation", nil)
	gt.Equal(t, session(t, resp)["reservation_status"], any(true))

	resp = call(t, r, "lookup_packages", nil)
	s = session(t, resp)
	gt.Equal(t, s["packages_found"], any(true))
	packages, ok := s["packages_info"].([]any)
	gt.True(t, ok)
	gt.A(t, packages).Length(1)

	resp = call(t, r, "release_packages", nil)
	gt.Equal(t, session(t, resp)["release_status"], any(true))

	resp = call(t, r, "reset_session", nil)
	gt.Equal(t, resp["deleted"], any(true))

	resp = call(t, r, "get_session", nil)
	gt.Equal(t, len(session(t, resp)), 0)
}

func TestErrorKinds(t *testing.T) {
	r := tool.New(newTool(t))

	resp := call(t, r, "record_size", map[string]any{"size": "XL"})
	gt.Equal(t, resp["error_kind"], any("invalid_input"))

	resp = call(t, r, "record_size", map[string]any{})
	gt.Equal(t, resp["error_kind"], any("invalid_input"))

	resp = call(t, r, "record_apartment", map[string]any{"apartment_number": 12})
	gt.Equal(t, resp["error_kind"], any("invalid_input"))

	resp = call(t, r, "locate_spot", nil)
	gt.Equal(t, resp["error_kind"], any("missing_field"))
	gt.Equal(t, resp["field"], any("size"))
}

func TestUnknownFunction(t *testing.T) {
	r := tool.New(newTool(t))

	_, err := r.Execute(context.Background(), genai.FunctionCall{Name: "drop_table"})
	gt.Error(t, err)
}
