package shelf

import (
	"context"
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/smartshelf/pkg/model"
)

// Engine is the Reservation Engine surface exposed to agents
type Engine interface {
	Reset(ctx context.Context) (bool, error)
	RecordSize(ctx context.Context, size string) (*model.Session, error)
	RecordApartment(ctx context.Context, apartment string) (*model.Session, error)
	LocateSpot(ctx context.Context) (*model.Session, error)
	CommitReservation(ctx context.Context) (*model.Session, error)
	LookupPackages(ctx context.Context) (*model.Session, error)
	ReleasePackages(ctx context.Context) (*model.Session, error)
	Snapshot(ctx context.Context) (*model.Session, error)
}

// Operation is one engine call described for function calling and MCP
type Operation struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
	Call        func(ctx context.Context, args map[string]any) (map[string]any, error)
}

func noArgs() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:       "object",
		Properties: map[string]*jsonschema.Schema{},
	}
}

func minLength(n int) *int { return &n }

// Operations lists every engine call in the order a storage flow and then a
// retrieval flow would use them
func Operations(engine Engine) []*Operation {
	withSession := func(fn func(ctx context.Context) (*model.Session, error)) func(ctx context.Context, args map[string]any) (map[string]any, error) {
		return func(ctx context.Context, args map[string]any) (map[string]any, error) {
			s, err := fn(ctx)
			if err != nil {
				return nil, err
			}
			return SessionResponse(s)
		}
	}

	return []*Operation{
		{
			Name:        "reset_session",
			Description: "Delete all fields of the current conversation. Call before starting and after finishing a storage or retrieval flow.",
			InputSchema: noArgs(),
			Call: func(ctx context.Context, args map[string]any) (map[string]any, error) {
				deleted, err := engine.Reset(ctx)
				if err != nil {
					return nil, err
				}
				return map[string]any{"deleted": deleted, "session": map[string]any{}}, nil
			},
		},
		{
			Name:        "record_size",
			Description: "Record the package size for a storage request.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"size": {
						Type:        "string",
						Description: "Package size class: S (small), M (medium) or L (large)",
						Enum:        []any{"S", "M", "L"},
					},
				},
				Required: []string{"size"},
			},
			Call: func(ctx context.Context, args map[string]any) (map[string]any, error) {
				size, err := stringArg(args, "size")
				if err != nil {
					return nil, err
				}
				return withSession(func(ctx context.Context) (*model.Session, error) {
					return engine.RecordSize(ctx, size)
				})(ctx, args)
			},
		},
		{
			Name:        "record_apartment",
			Description: "Record the resident's apartment number. It is stored in uppercase.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"apartment_number": {
						Type:        "string",
						Description: "Apartment number such as 3B",
						MinLength:   minLength(1),
					},
				},
				Required: []string{"apartment_number"},
			},
			Call: func(ctx context.Context, args map[string]any) (map[string]any, error) {
				apt, err := stringArg(args, "apartment_number")
				if err != nil {
					return nil, err
				}
				return withSession(func(ctx context.Context) (*model.Session, error) {
					return engine.RecordApartment(ctx, apt)
				})(ctx, args)
			},
		},
		{
			Name:        "locate_spot",
			Description: "Find the first free spot of the recorded size. Sets spot_available, and spot_id and spot_location when one is found. Does not reserve it.",
			InputSchema: noArgs(),
			Call:        withSession(engine.LocateSpot),
		},
		{
			Name:        "commit_reservation",
			Description: "Reserve the located spot for the recorded apartment. Only call after the resident confirmed. reservation_status=false means the spot was taken meanwhile.",
			InputSchema: noArgs(),
			Call:        withSession(engine.CommitReservation),
		},
		{
			Name:        "lookup_packages",
			Description: "List the spots holding packages for the recorded apartment. Sets packages_found and packages_info.",
			InputSchema: noArgs(),
			Call:        withSession(engine.LookupPackages),
		},
		{
			Name:        "release_packages",
			Description: "Free every spot held by the recorded apartment once the resident picked up the packages. Sets release_status and released_count.",
			InputSchema: noArgs(),
			Call:        withSession(engine.ReleasePackages),
		},
		{
			Name:        "get_session",
			Description: "Show the fields recorded so far in the current conversation.",
			InputSchema: noArgs(),
			Call:        withSession(engine.Snapshot),
		},
	}
}

func stringArg(args map[string]any, name string) (string, error) {
	v, ok := args[name]
	if !ok {
		return "", goerr.Wrap(model.ErrInvalidInput, "argument is required", goerr.V("argument", name))
	}
	s, ok := v.(string)
	if !ok {
		return "", goerr.Wrap(model.ErrInvalidInput, "argument must be a string", goerr.V("argument", name))
	}
	return s, nil
}

// SessionResponse renders a session as the JSON object agents receive
func SessionResponse(s *model.Session) (map[string]any, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal session")
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal session")
	}
	if fields["packages_info"] == nil {
		delete(fields, "packages_info")
	}
	return map[string]any{"session": fields}, nil
}
