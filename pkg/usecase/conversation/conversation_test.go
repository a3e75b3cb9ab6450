package conversation_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/miru/pkg/model"
	"github.com/m-mizutani/miru/pkg/repository"
	"github.com/m-mizutani/miru/pkg/usecase/conversation"
	"google.golang.org/genai"
)

type mockGemini struct {
	generateFunc func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

func (m *mockGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if m.generateFunc != nil {
		return m.generateFunc(ctx, contents, config)
	}
	return nil, errors.New("generateFunc not set")
}

func (m *mockGemini) Embedding(_ context.Context, _ string) ([]float32, error) {
	return nil, errors.New("not used in conversation")
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content: &genai.Content{
					Parts: []*genai.Part{{Text: text}},
				},
			},
		},
	}
}

func TestAskPersistsBothTurns(t *testing.T) {
	repo := repository.NewMemory()
	gemini := &mockGemini{
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return textResponse("you left your keys on the kitchen counter"), nil
		},
	}
	uc := conversation.New(repo, gemini)
	ctx := context.Background()

	answer, err := uc.Ask(ctx, "user1", "where are my keys?")
	gt.NoError(t, err)
	gt.Equal(t, answer, "you left your keys on the kitchen counter")

	messages, err := uc.History(ctx, "user1")
	gt.NoError(t, err)
	gt.A(t, messages).Length(2)
	gt.Equal(t, messages[0].Role, model.RoleUser)
	gt.Equal(t, messages[0].Content, "where are my keys?")
	gt.Equal(t, messages[1].Role, model.RoleAssistant)
	gt.Equal(t, messages[1].Content, "you left your keys on the kitchen counter")
}

func TestAskReplaysHistoryAndVisualContext(t *testing.T) {
	repo := repository.NewMemory()
	ctx := context.Background()

	// one prior exchange and one visual record
	now := time.Now()
	prior := []*model.Message{
		{ID: model.NewMessageID(), UserID: "user1", Role: model.RoleUser,
			Content: "what do you see?", CreatedAt: now.Add(-2 * time.Minute)},
		{ID: model.NewMessageID(), UserID: "user1", Role: model.RoleAssistant,
			Content: "a basil plant on the windowsill", CreatedAt: now.Add(-time.Minute)},
	}
	for _, msg := range prior {
		gt.NoError(t, repo.PutMessage(ctx, msg))
	}
	gt.NoError(t, repo.PutRecord(ctx, &model.VisualRecord{
		ID:     model.NewRecordID(),
		UserID: "user1",
		Context: model.VisualContext{
			ImageLocation: "kitchen windowsill",
			Description:   "a potted basil plant in morning light",
			Items: []model.VisualItem{
				{Name: "plant", Description: "potted basil plant", Location: "windowsill", Color: "green"},
			},
		},
		CreatedAt: now.Add(-time.Hour),
	}))

	gemini := &mockGemini{
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			// prior turns plus the new query, user/model roles preserved
			gt.A(t, contents).Length(3)
			gt.Equal(t, contents[0].Role, genai.RoleUser)
			gt.Equal(t, contents[1].Role, genai.RoleModel)
			gt.Equal(t, contents[2].Parts[0].Text, "is it still there?")

			// the visual history rides in the system instruction
			gt.V(t, config.SystemInstruction).NotNil()
			sys := config.SystemInstruction.Parts[0].Text
			gt.B(t, strings.Contains(sys, "kitchen windowsill")).True()
			gt.B(t, strings.Contains(sys, "relative_timestamp")).True()

			return textResponse("yes, it is"), nil
		},
	}
	uc := conversation.New(repo, gemini)

	answer, err := uc.Ask(ctx, "user1", "is it still there?")
	gt.NoError(t, err)
	gt.Equal(t, answer, "yes, it is")
}

func TestAskEmptyQuery(t *testing.T) {
	uc := conversation.New(repository.NewMemory(), &mockGemini{})

	_, err := uc.Ask(context.Background(), "user1", "")
	gt.Error(t, err)
}

func TestAskModelFailure(t *testing.T) {
	gemini := &mockGemini{
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return nil, errors.New("model unreachable")
		},
	}
	repo := repository.NewMemory()
	uc := conversation.New(repo, gemini)
	ctx := context.Background()

	_, err := uc.Ask(ctx, "user1", "hello?")
	gt.Error(t, err)

	// a failed exchange leaves no orphan turns behind
	messages, err := uc.History(ctx, "user1")
	gt.NoError(t, err)
	gt.A(t, messages).Length(0)
}

func TestAskEmptyModelResponse(t *testing.T) {
	gemini := &mockGemini{
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return &genai.GenerateContentResponse{}, nil
		},
	}
	uc := conversation.New(repository.NewMemory(), gemini)

	_, err := uc.Ask(context.Background(), "user1", "hello?")
	gt.Error(t, err)
}

func TestWipe(t *testing.T) {
	repo := repository.NewMemory()
	gemini := &mockGemini{
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return textResponse("hi"), nil
		},
	}
	uc := conversation.New(repo, gemini)
	ctx := context.Background()

	_, err := uc.Ask(ctx, "user1", "hello")
	gt.NoError(t, err)

	gt.NoError(t, uc.Wipe(ctx, "user1"))

	messages, err := uc.History(ctx, "user1")
	gt.NoError(t, err)
	gt.A(t, messages).Length(0)
}
