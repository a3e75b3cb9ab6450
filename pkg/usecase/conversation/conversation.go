package conversation

import (
	"context"
	_ "embed"
	"encoding/json"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/miru/pkg/adapter"
	"github.com/m-mizutani/miru/pkg/model"
	"github.com/m-mizutani/miru/pkg/repository"
	"github.com/m-mizutani/miru/pkg/utils/timefmt"
	"google.golang.org/genai"
)

// messageHistoryLimit caps how many prior turns are replayed to the model
const messageHistoryLimit = 20

//go:embed prompt/assistant.md
var assistantPrompt string

// UseCase answers user questions about previously saved visual contexts and
// keeps the conversation history.
type UseCase struct {
	repo   repository.Repository
	gemini adapter.Gemini
}

// New creates a new conversation UseCase instance
func New(repo repository.Repository, gemini adapter.Gemini) *UseCase {
	return &UseCase{
		repo:   repo,
		gemini: gemini,
	}
}

// Ask answers a user query using the conversation history and the user's
// visual history as context, then persists both turns.
func (u *UseCase) Ask(ctx context.Context, userID, query string) (string, error) {
	if query == "" {
		return "", goerr.New("query is empty")
	}

	history, err := u.repo.ListMessages(ctx, userID, messageHistoryLimit)
	if err != nil {
		return "", goerr.Wrap(err, "failed to fetch conversation history", goerr.Value("user_id", userID))
	}

	systemPrompt, err := u.buildSystemPrompt(ctx, userID)
	if err != nil {
		return "", err
	}

	contents := make([]*genai.Content, 0, len(history)+1)
	for _, msg := range history {
		var role genai.Role = genai.RoleUser
		if msg.Role == model.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}
	contents = append(contents, genai.NewContentFromText(query, genai.RoleUser))

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, ""),
	}

	resp, err := u.gemini.GenerateContent(ctx, contents, config)
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate response")
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", goerr.New("empty model response")
	}
	answer := resp.Candidates[0].Content.Parts[0].Text

	if err := u.saveTurn(ctx, userID, model.RoleUser, query); err != nil {
		return "", err
	}
	if err := u.saveTurn(ctx, userID, model.RoleAssistant, answer); err != nil {
		return "", err
	}

	return answer, nil
}

// History retrieves the conversation history of a user, oldest first
func (u *UseCase) History(ctx context.Context, userID string) ([]*model.Message, error) {
	messages, err := u.repo.ListMessages(ctx, userID, messageHistoryLimit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch conversation history", goerr.Value("user_id", userID))
	}
	return messages, nil
}

// Wipe removes the user's entire conversation history
func (u *UseCase) Wipe(ctx context.Context, userID string) error {
	if err := u.repo.WipeMessages(ctx, userID); err != nil {
		return goerr.Wrap(err, "failed to wipe conversation history", goerr.Value("user_id", userID))
	}
	return nil
}

// buildSystemPrompt inlines the user's visual history, with relative
// timestamps, below the assistant instructions.
func (u *UseCase) buildSystemPrompt(ctx context.Context, userID string) (string, error) {
	records, err := u.repo.ListRecords(ctx, userID)
	if err != nil {
		return "", goerr.Wrap(err, "failed to fetch visual history", goerr.Value("user_id", userID))
	}

	type entry struct {
		Context      model.VisualContext `json:"visual_context"`
		RelativeTime string              `json:"relative_timestamp"`
	}

	now := time.Now()
	entries := make([]entry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, entry{
			Context:      rec.Context,
			RelativeTime: timefmt.Relative(rec.CreatedAt, now),
		})
	}

	historyJSON, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", goerr.Wrap(err, "failed to marshal visual history")
	}

	return assistantPrompt + "\n\nVisual history:\n" + string(historyJSON), nil
}

func (u *UseCase) saveTurn(ctx context.Context, userID string, role model.Role, content string) error {
	msg := &model.Message{
		ID:        model.NewMessageID(),
		UserID:    userID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if err := u.repo.PutMessage(ctx, msg); err != nil {
		return goerr.Wrap(err, "failed to save message", goerr.Value("role", role))
	}
	return nil
}
