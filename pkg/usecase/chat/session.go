package chat

import (
	"context"
	_ "embed"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/smartshelf/pkg/adapter"
	"github.com/m-mizutani/smartshelf/pkg/tool"
	"github.com/m-mizutani/smartshelf/pkg/utils/logging"
	"google.golang.org/genai"
)

//go:embed prompt/concierge.md
var conciergePrompt string

const defaultMaxIterations = 16

var ErrToolCallLimit = goerr.New("tool call limit reached")

// ToolCallHook observes every function call the model makes
type ToolCallHook func(ctx context.Context, call *genai.FunctionCall, resp *genai.FunctionResponse, err error)

// Session is one conversation between a resident and the concierge model
type Session struct {
	gemini        adapter.Gemini
	registry      *tool.Registry
	maxIterations int
	onToolCall    ToolCallHook
	history       []*genai.Content
}

type Option func(*Session)

// WithMaxIterations bounds the model/function round trips of one Send
func WithMaxIterations(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.maxIterations = n
		}
	}
}

func WithToolCallHook(hook ToolCallHook) Option {
	return func(s *Session) {
		s.onToolCall = hook
	}
}

// WithHistory resumes a previous conversation
func WithHistory(contents []*genai.Content) Option {
	return func(s *Session) {
		s.history = append([]*genai.Content{}, contents...)
	}
}

func New(gemini adapter.Gemini, registry *tool.Registry, opts ...Option) *Session {
	s := &Session{
		gemini:        gemini,
		registry:      registry,
		maxIterations: defaultMaxIterations,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// History returns the conversation so far
func (s *Session) History() []*genai.Content {
	return append([]*genai.Content{}, s.history...)
}

func (s *Session) config(ctx context.Context) *genai.GenerateContentConfig {
	prompt := conciergePrompt
	if s.registry != nil {
		if extra := s.registry.Prompts(ctx); extra != "" {
			prompt += "\n\n" + extra
		}
	}

	thinkingBudget := int32(0)
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(prompt, ""),
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  &thinkingBudget,
		},
	}
	if s.registry != nil {
		config.Tools = s.registry.Specs()
	}
	return config
}

// Send passes the resident's message to the model, runs the functions it
// asks for and returns the model's final reply
func (s *Session) Send(ctx context.Context, message string) (string, error) {
	logger := logging.From(ctx)
	config := s.config(ctx)

	s.history = append(s.history, genai.NewContentFromText(message, genai.RoleUser))

	var reply strings.Builder
	for i := 0; i < s.maxIterations; i++ {
		resp, err := s.generate(ctx, config)
		if err != nil {
			return "", err
		}

		var functionResponses []*genai.Part
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			s.history = append(s.history, candidate.Content)

			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					reply.WriteString(part.Text)
				}
				if part.FunctionCall == nil {
					continue
				}

				logger.Debug("function call", "name", part.FunctionCall.Name, "args", part.FunctionCall.Args)
				funcResp, execErr := s.execute(ctx, *part.FunctionCall)
				if s.onToolCall != nil {
					s.onToolCall(ctx, part.FunctionCall, funcResp, execErr)
				}
				if execErr != nil {
					logger.Warn("function call failed", "name", part.FunctionCall.Name, "error", execErr)
					funcResp = &genai.FunctionResponse{
						ID:       part.FunctionCall.ID,
						Name:     part.FunctionCall.Name,
						Response: map[string]any{"error": execErr.Error()},
					}
				}
				functionResponses = append(functionResponses, &genai.Part{FunctionResponse: funcResp})
			}
		}

		if len(functionResponses) == 0 {
			return strings.TrimSpace(reply.String()), nil
		}

		s.history = append(s.history, &genai.Content{
			Role:  genai.RoleUser,
			Parts: functionResponses,
		})
	}

	return strings.TrimSpace(reply.String()), goerr.Wrap(ErrToolCallLimit, "model kept calling functions",
		goerr.V("max_iterations", s.maxIterations))
}

// generate retries once with a compressed history when the conversation no
// longer fits the model's context window
func (s *Session) generate(ctx context.Context, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	resp, err := s.gemini.GenerateContent(ctx, s.history, config)
	if err == nil {
		return resp, nil
	}
	if !isTokenLimitError(err) {
		return nil, goerr.Wrap(err, "failed to generate content")
	}

	logging.From(ctx).Info("conversation exceeds token limit, compressing history", "contents", len(s.history))
	compressed, cErr := compressHistory(ctx, s.gemini, s.history)
	if cErr != nil {
		return nil, goerr.Wrap(cErr, "failed to compress history", goerr.V("cause", err.Error()))
	}
	s.history = compressed

	resp, err = s.gemini.GenerateContent(ctx, s.history, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate content after compression")
	}
	return resp, nil
}

func (s *Session) execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error) {
	if s.registry == nil {
		return nil, goerr.New("tool registry not available")
	}

	resp, err := s.registry.Execute(ctx, fc)
	if err != nil {
		return nil, goerr.Wrap(err, "tool execution failed")
	}
	return resp, nil
}
