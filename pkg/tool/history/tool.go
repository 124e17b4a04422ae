package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/smartshelf/pkg/model"
	"github.com/m-mizutani/smartshelf/pkg/tool"
	"google.golang.org/genai"
)

const (
	defaultLimit = 10
	maxLimit     = 50
)

// Source looks up past engine calls of an apartment
type Source interface {
	History(ctx context.Context, apartment string, limit int) ([]*model.AuditEvent, error)
}

// Tool lets the concierge answer questions about earlier deliveries and
// pickups from the audit trail
type Tool struct {
	source Source
}

var _ tool.Tool = (*Tool)(nil)

func New(source Source) *Tool {
	return &Tool{source: source}
}

func (t *Tool) Prompt(ctx context.Context) string {
	return "Use `shelf_history` only when a resident asks about earlier deliveries or pickups. It never changes the shelf."
}

// Spec returns the tool specification for Gemini function calling
func (t *Tool) Spec() *genai.Tool {
	return &genai.Tool{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name:        "shelf_history",
				Description: "List the latest reservations, lookups and releases of an apartment, newest first",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"apartment_number": {
							Type:        genai.TypeString,
							Description: "Apartment number such as 3B",
						},
						"limit": {
							Type:        genai.TypeInteger,
							Description: fmt.Sprintf("Maximum number of events (default: %d, max: %d)", defaultLimit, maxLimit),
						},
					},
					Required: []string{"apartment_number"},
				},
			},
		},
	}
}

// Execute runs the tool with the given function call
func (t *Tool) Execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error) {
	if fc.Name != "shelf_history" {
		return nil, goerr.Wrap(tool.ErrToolNotFound, "unknown function", goerr.V("name", fc.Name))
	}

	type input struct {
		ApartmentNumber string `json:"apartment_number"`
		Limit           int    `json:"limit"`
	}

	paramsJSON, err := json.Marshal(fc.Args)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal function arguments")
	}

	var in input
	if err := json.Unmarshal(paramsJSON, &in); err != nil {
		return nil, goerr.Wrap(err, "failed to parse input parameters")
	}

	apartment, err := model.NormalizeApartment(in.ApartmentNumber)
	if err != nil {
		return &genai.FunctionResponse{
			ID:   fc.ID,
			Name: fc.Name,
			Response: map[string]any{
				"error":      err.Error(),
				"error_kind": "invalid_input",
			},
		}, nil
	}

	limit := in.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	events, err := t.source.History(ctx, apartment, limit)
	if err != nil {
		return &genai.FunctionResponse{
			ID:   fc.ID,
			Name: fc.Name,
			Response: map[string]any{
				"error": fmt.Sprintf("Failed to read history: %v", err),
			},
		}, nil
	}

	rows := make([]map[string]any, 0, len(events))
	for _, e := range events {
		row := map[string]any{
			"operation":  e.Operation,
			"outcome":    e.Outcome,
			"created_at": e.CreatedAt,
		}
		if e.SpotID != "" {
			row["spot_id"] = string(e.SpotID)
		}
		rows = append(rows, row)
	}

	return &genai.FunctionResponse{
		ID:   fc.ID,
		Name: fc.Name,
		Response: map[string]any{
			"apartment_number": apartment,
			"events":           rows,
		},
	}, nil
}
