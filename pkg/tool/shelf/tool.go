package shelf

import (
	"context"
	_ "embed"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/smartshelf/pkg/tool"
	"google.golang.org/genai"
)

//go:embed prompt.md
var prompt string

// Tool exposes the Reservation Engine for Gemini function calling
type Tool struct {
	ops  map[string]*Operation
	spec *genai.Tool
}

var _ tool.Tool = (*Tool)(nil)

// New builds function declarations for every engine operation
func New(engine Engine) (*Tool, error) {
	t := &Tool{
		ops:  make(map[string]*Operation),
		spec: &genai.Tool{},
	}

	for _, op := range Operations(engine) {
		fd := &genai.FunctionDeclaration{
			Name:        op.Name,
			Description: op.Description,
		}
		// Gemini rejects object parameters without properties
		if len(op.InputSchema.Properties) > 0 {
			params, err := tool.ToGenaiSchema(op.InputSchema)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to convert input schema", goerr.V("name", op.Name))
			}
			fd.Parameters = params
		}

		t.spec.FunctionDeclarations = append(t.spec.FunctionDeclarations, fd)
		t.ops[op.Name] = op
	}

	return t, nil
}

func (t *Tool) Spec() *genai.Tool {
	return t.spec
}

func (t *Tool) Prompt(ctx context.Context) string {
	return prompt
}

// Execute runs the engine call. Engine errors of a known kind are returned
// inside the response so the model can explain them to the resident.
func (t *Tool) Execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error) {
	op, ok := t.ops[fc.Name]
	if !ok {
		return nil, goerr.Wrap(tool.ErrToolNotFound, "unknown shelf function", goerr.V("name", fc.Name))
	}

	result, err := op.Call(ctx, fc.Args)
	if err != nil {
		resp, known := ErrorResponse(err)
		if !known {
			return nil, goerr.Wrap(err, "shelf function failed", goerr.V("name", fc.Name))
		}
		result = resp
	}

	return &genai.FunctionResponse{
		ID:       fc.ID,
		Name:     fc.Name,
		Response: result,
	}, nil
}
