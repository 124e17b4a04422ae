package chat_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/smartshelf/pkg/model"
	"github.com/m-mizutani/smartshelf/pkg/repository"
	"github.com/m-mizutani/smartshelf/pkg/tool"
	shelftool "github.com/m-mizutani/smartshelf/pkg/tool/shelf"
	"github.com/m-mizutani/smartshelf/pkg/usecase/chat"
	"github.com/m-mizutani/smartshelf/pkg/usecase/shelf"
	"google.golang.org/genai"
)

// mockGemini replays responses in order and records what it was sent
type mockGemini struct {
	mu        sync.Mutex
	responses []*genai.GenerateContentResponse
	err       error
	requests  [][]*genai.Content
	configs   []*genai.GenerateContentConfig
}

func (m *mockGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, append([]*genai.Content{}, contents...))
	m.configs = append(m.configs, config)

	if m.err != nil {
		return nil, m.err
	}
	if len(m.responses) == 0 {
		return nil, errors.New("no scripted response left")
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	return resp, nil
}

func callResponse(calls ...*genai.FunctionCall) *genai.GenerateContentResponse {
	content := &genai.Content{Role: genai.RoleModel}
	for _, c := range calls {
		content.Parts = append(content.Parts, &genai.Part{FunctionCall: c})
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: content}},
	}
}

func newEngine(t *testing.T) *shelf.UseCase {
	repo, err := repository.NewSQLite(filepath.Join(t.TempDir(), "shelf.db"))
	gt.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	_, err = repo.EnsureSpots(context.Background(), []*model.Spot{
		{ID: "S-1", Size: model.SizeS, Location: "Main Area"},
		{ID: "S-2", Size: model.SizeS, Location: "Back Room"},
	})
	gt.NoError(t, err)
	return shelf.New(repo, repo)
}

func newRegistry(t *testing.T, engine shelftool.Engine) *tool.Registry {
	st, err := shelftool.New(engine)
	gt.NoError(t, err)
	return tool.New(st)
}

func TestSendRunsFunctionCalls(t *testing.T) {
	ctx := context.Background()
	engine := newEngine(t)

	mock := &mockGemini{
		responses: []*genai.GenerateContentResponse{
			callResponse(
				&genai.FunctionCall{ID: "1", Name: "record_size", Args: map[string]any{"size": "S"}},
				&genai.FunctionCall{ID: "2", Name: "record_apartment", Args: map[string]any{"apartment_number": "3b"}},
			),
			callResponse(&genai.FunctionCall{ID: "3", Name: "locate_spot"}),
			textResponse("Spot S-1 in the Main Area is free. Shall I reserve it?"),
		},
	}

	var called []string
	session := chat.New(mock, newRegistry(t, engine),
		chat.WithToolCallHook(func(ctx context.Context, call *genai.FunctionCall, resp *genai.FunctionResponse, err error) {
			gt.NoError(t, err)
			called = append(called, call.Name)
		}),
	)

	reply, err := session.Send(ctx, "I have a small package for 3B")
	gt.NoError(t, err)
	gt.Equal(t, reply, "Spot S-1 in the Main Area is free. Shall I reserve it?")
	gt.Equal(t, called, []string{"record_size", "record_apartment", "locate_spot"})

	s, err := engine.Snapshot(ctx)
	gt.NoError(t, err)
	gt.Equal(t, *s.ApartmentNumber, "3B")
	gt.Equal(t, *s.SpotID, model.SpotID("S-1"))

	// user, model call, responses, model call, response, model text
	gt.A(t, session.History()).Length(6)
	responses := session.History()[2].Parts
	gt.A(t, responses).Length(2)
	gt.Equal(t, responses[0].FunctionResponse.ID, "1")
	gt.Equal(t, responses[1].FunctionResponse.ID, "2")

	gt.A(t, mock.configs).Length(3)
	gt.S(t, mock.configs[0].SystemInstruction.Parts[0].Text).Contains("commit_reservation")
	gt.A(t, mock.configs[0].Tools).Length(1)
}

func TestSendReportsFunctionErrorsToModel(t *testing.T) {
	ctx := context.Background()

	mock := &mockGemini{
		responses: []*genai.GenerateContentResponse{
			callResponse(&genai.FunctionCall{Name: "open_all_lockers"}),
			textResponse("Sorry, I cannot do that."),
		},
	}

	session := chat.New(mock, newRegistry(t, newEngine(t)))
	reply, err := session.Send(ctx, "open everything")
	gt.NoError(t, err)
	gt.Equal(t, reply, "Sorry, I cannot do that.")

	last := mock.requests[1]
	resp := last[len(last)-1].Parts[0].FunctionResponse
	gt.Equal(t, resp.Name, "open_all_lockers")
	gt.Map(t, resp.Response).HasKey("error")
}

func TestSendDomainErrorIsFunctionResponse(t *testing.T) {
	ctx := context.Background()

	mock := &mockGemini{
		responses: []*genai.GenerateContentResponse{
			callResponse(&genai.FunctionCall{Name: "commit_reservation"}),
			textResponse("Which apartment is it for?"),
		},
	}

	session := chat.New(mock, newRegistry(t, newEngine(t)))
	_, err := session.Send(ctx, "reserve it")
	gt.NoError(t, err)

	last := mock.requests[1]
	resp := last[len(last)-1].Parts[0].FunctionResponse
	gt.Equal(t, resp.Response["error_kind"], any("missing_field"))
}

func TestSendToolCallLimit(t *testing.T) {
	mock := &mockGemini{}
	for i := 0; i < 3; i++ {
		mock.responses = append(mock.responses, callResponse(&genai.FunctionCall{Name: "get_session"}))
	}

	session := chat.New(mock, newRegistry(t, newEngine(t)), chat.WithMaxIterations(3))
	_, err := session.Send(context.Background(), "hello")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, chat.ErrToolCallLimit))
}

type tokenLimitGemini struct {
	mockGemini
	failed bool
}

func (m *tokenLimitGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if !m.failed {
		m.failed = true
		return nil, genai.APIError{
			Code:    400,
			Status:  "INVALID_ARGUMENT",
			Message: "The input token count (2000000) exceeds the maximum number of tokens allowed (1048576).",
		}
	}
	return m.mockGemini.GenerateContent(ctx, contents, config)
}

func TestSendCompressesOnTokenLimit(t *testing.T) {
	history := []*genai.Content{
		genai.NewContentFromText("I would like to store a medium package", genai.RoleUser),
		genai.NewContentFromText("Sure, which apartment is it for?", genai.RoleModel),
		genai.NewContentFromText("It is for apartment 12C, thank you", genai.RoleUser),
	}

	mock := &tokenLimitGemini{
		mockGemini: mockGemini{
			responses: []*genai.GenerateContentResponse{
				textResponse("Medium package for 12C."),
				textResponse("Let me look for a spot."),
			},
		},
	}

	session := chat.New(mock, nil, chat.WithHistory(history))
	reply, err := session.Send(context.Background(), "Any news on my spot?")
	gt.NoError(t, err)
	gt.Equal(t, reply, "Let me look for a spot.")

	gt.S(t, session.History()[0].Parts[0].Text).Contains("Medium package for 12C.")
	gt.True(t, len(session.History()) < len(history)+2)
}

func TestSendGenerateError(t *testing.T) {
	session := chat.New(&mockGemini{err: errors.New("unavailable")}, nil)
	_, err := session.Send(context.Background(), "hello")
	gt.Error(t, err)
	gt.S(t, err.Error()).Contains("failed to generate content")
}
