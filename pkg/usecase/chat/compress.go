package chat

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/smartshelf/pkg/adapter"
	"google.golang.org/genai"
)

// keepRatio is the share of the conversation, by serialized size, that stays
// verbatim after compression
const keepRatio = 0.3

// pinnedFunctions carry spot assignments the concierge must quote back to the
// resident, so their latest results survive compression word for word
var pinnedFunctions = []string{
	"locate_spot",
	"commit_reservation",
	"lookup_packages",
	"release_packages",
}

//go:embed prompt/summarize.md
var summarizePromptRaw string

// isTokenLimitError reports whether Gemini refused the request because the
// conversation no longer fits, e.g. "The input token count (2500030) exceeds
// the maximum number of tokens allowed (1048576)."
func isTokenLimitError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return false
	}

	return apiErr.Code == 400 &&
		apiErr.Status == "INVALID_ARGUMENT" &&
		strings.HasPrefix(apiErr.Message, "The input token count (") &&
		strings.Contains(apiErr.Message, ") exceeds the maximum number of tokens allowed (")
}

func contentSize(content *genai.Content) int {
	data, err := json.Marshal(content)
	if err != nil {
		return 0
	}
	return len(data)
}

// splitPoint returns the index of the first content kept verbatim, or 0 when
// nothing can be folded into a summary
func splitPoint(contents []*genai.Content) int {
	total := 0
	sizes := make([]int, len(contents))
	for i, content := range contents {
		sizes[i] = contentSize(content)
		total += sizes[i]
	}

	budget := int(float64(total) * keepRatio)
	cut, kept := len(contents), 0
	for cut > 0 && kept < budget {
		cut--
		kept += sizes[cut]
	}

	// a function response has to follow its call
	for cut < len(contents) && hasFunctionResponse(contents[cut]) {
		cut++
	}
	if cut >= len(contents) {
		return 0
	}
	return cut
}

// compressHistory folds the older part of the conversation into one summary
// message. The input slice is left untouched.
func compressHistory(ctx context.Context, gemini adapter.Gemini, contents []*genai.Content) ([]*genai.Content, error) {
	if len(contents) == 0 {
		return nil, goerr.New("history is empty")
	}

	cut := splitPoint(contents)
	if cut == 0 {
		return nil, goerr.New("insufficient content to compress", goerr.V("contents", len(contents)))
	}
	older, recent := contents[:cut], contents[cut:]

	summary, err := summarizeContents(ctx, gemini, older)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to summarize contents", goerr.V("compressed", len(older)))
	}

	var text strings.Builder
	text.WriteString("=== Previous Conversation Summary ===\n\n")
	text.WriteString(summary)

	if results := pinnedResults(older); len(results) > 0 {
		text.WriteString("\n\n=== Last Shelf Results ===\n")
		for _, r := range results {
			data, err := json.Marshal(r.Response)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to marshal function result", goerr.V("name", r.Name))
			}
			fmt.Fprintf(&text, "%s: %s\n", r.Name, data)
		}
	}

	compressed := make([]*genai.Content, 0, len(recent)+1)
	compressed = append(compressed, genai.NewContentFromText(text.String(), genai.RoleUser))
	return append(compressed, recent...), nil
}

// pinnedResults returns the latest response of each pinned function in the
// order of pinnedFunctions. A reset_session response discards what came
// before it.
func pinnedResults(contents []*genai.Content) []*genai.FunctionResponse {
	latest := map[string]*genai.FunctionResponse{}
	for _, content := range contents {
		for _, part := range content.Parts {
			resp := part.FunctionResponse
			if resp == nil {
				continue
			}
			if resp.Name == "reset_session" {
				clear(latest)
				continue
			}
			latest[resp.Name] = resp
		}
	}

	var results []*genai.FunctionResponse
	for _, name := range pinnedFunctions {
		if resp, ok := latest[name]; ok {
			results = append(results, resp)
		}
	}
	return results
}

func summarizeContents(ctx context.Context, gemini adapter.Gemini, contents []*genai.Content) (string, error) {
	request := make([]*genai.Content, 0, len(contents)+1)
	request = append(request, contents...)
	request = append(request, genai.NewContentFromText(summarizePromptRaw, genai.RoleUser))

	thinkingBudget := int32(0)
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText("You summarize conversations of a package room concierge.", ""),
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  &thinkingBudget,
		},
	}

	resp, err := gemini.GenerateContent(ctx, request, config)
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate summary")
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", goerr.New("no summary generated")
	}

	var summary strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		summary.WriteString(part.Text)
	}
	if summary.Len() == 0 {
		return "", goerr.New("empty summary generated")
	}

	return summary.String(), nil
}

func hasFunctionResponse(content *genai.Content) bool {
	for _, part := range content.Parts {
		if part.FunctionResponse != nil {
			return true
		}
	}
	return false
}
