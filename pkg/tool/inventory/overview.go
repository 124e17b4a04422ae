package inventory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/smartshelf/pkg/model"
	"github.com/m-mizutani/smartshelf/pkg/tool"
	"github.com/m-mizutani/smartshelf/pkg/usecase/inventory"
	"google.golang.org/genai"
)

type overviewInput struct {
	Size string `json:"size"`
}

// Source reports shelf occupancy per size
type Source interface {
	Summary(ctx context.Context) ([]inventory.SizeSummary, error)
}

// Overview answers "is there room?" questions without touching the
// conversation record
type Overview struct {
	source Source
}

var _ tool.Tool = (*Overview)(nil)

// NewOverview creates a new shelf_overview tool
func NewOverview(source Source) *Overview {
	return &Overview{source: source}
}

func (x *Overview) Prompt(ctx context.Context) string {
	return ""
}

// Spec returns the function declaration for Gemini API
func (x *Overview) Spec() *genai.Tool {
	return &genai.Tool{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name:        "shelf_overview",
				Description: "Count total and free spots per size. Use it to answer general questions about capacity; use locate_spot to pick a spot for a package.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"size": {
							Type:        genai.TypeString,
							Description: "Only report this size",
							Enum:        []string{"S", "M", "L"},
						},
					},
				},
			},
		},
	}
}

// Execute runs the tool with given parameters
func (x *Overview) Execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error) {
	if fc.Name != "shelf_overview" {
		return nil, goerr.Wrap(tool.ErrToolNotFound, "unknown function", goerr.V("name", fc.Name))
	}

	paramsJSON, err := json.Marshal(fc.Args)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal function arguments")
	}

	var input overviewInput
	if err := json.Unmarshal(paramsJSON, &input); err != nil {
		return nil, goerr.Wrap(err, "failed to parse input parameters")
	}

	var filter model.Size
	if input.Size != "" {
		if filter, err = model.ParseSize(input.Size); err != nil {
			return &genai.FunctionResponse{
				ID:   fc.ID,
				Name: fc.Name,
				Response: map[string]any{
					"error":      err.Error(),
					"error_kind": "invalid_input",
				},
			}, nil
		}
	}

	sizes, err := x.source.Summary(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to summarize shelf")
	}

	return &genai.FunctionResponse{
		ID:   fc.ID,
		Name: fc.Name,
		Response: map[string]any{
			"result": formatResult(sizes, filter),
		},
	}, nil
}

// formatResult formats the occupancy as a human-readable string
func formatResult(sizes []inventory.SizeSummary, filter model.Size) string {
	result := ""
	for _, s := range sizes {
		if filter != "" && s.Size != filter {
			continue
		}
		result += fmt.Sprintf("%s: %d free of %d\n", s.Size, s.Total-s.Occupied, s.Total)
	}
	if result == "" {
		return "The shelf has no spots of that size."
	}
	return result
}
