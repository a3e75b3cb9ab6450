package vision_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/miru/pkg/adapter"
	"github.com/m-mizutani/miru/pkg/model"
	"github.com/m-mizutani/miru/pkg/repository"
	"github.com/m-mizutani/miru/pkg/usecase/dedup"
	"github.com/m-mizutani/miru/pkg/usecase/vision"
	"google.golang.org/genai"
)

type mockGemini struct {
	mu           sync.Mutex
	generateFunc func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	dims         map[string]int
}

func (m *mockGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if m.generateFunc != nil {
		return m.generateFunc(ctx, contents, config)
	}
	return nil, errors.New("generateFunc not set")
}

// Embedding hands out a basis vector per distinct phrase so equal texts
// cosine to 1.0 and different texts to 0.0.
func (m *mockGemini) Embedding(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dims == nil {
		m.dims = make(map[string]int)
	}
	key := strings.ToLower(text)
	idx, ok := m.dims[key]
	if !ok {
		idx = len(m.dims)
		m.dims[key] = idx
	}

	vec := make([]float32, 64)
	vec[idx] = 1
	return vec, nil
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

func newUseCase(t *testing.T, repo repository.Repository, gemini *mockGemini, opts ...vision.Option) *vision.UseCase {
	t.Helper()
	engine := dedup.New(repo, adapter.NewEmbedder(gemini))
	return vision.New(repo, gemini, engine, opts...)
}

func windowsillContext() *model.VisualContext {
	return &model.VisualContext{
		ImageLocation: "kitchen windowsill",
		Description:   "a potted basil plant in morning light",
		Items: []model.VisualItem{
			{Name: "plant", Description: "potted basil plant", Location: "windowsill", Color: "green"},
			{Name: "pot", Description: "terracotta pot", Location: "under the plant", Color: "orange"},
		},
	}
}

func TestIngestImage(t *testing.T) {
	repo := repository.NewMemory()
	vc := windowsillContext()

	gemini := &mockGemini{
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			gt.A(t, contents).Length(1)
			gt.Equal(t, config.ResponseMIMEType, "application/json")
			gt.V(t, config.ResponseSchema).NotNil()

			raw, err := json.Marshal(vc)
			gt.NoError(t, err)
			return textResponse(string(raw)), nil
		},
	}
	uc := newUseCase(t, repo, gemini)

	result, err := uc.IngestImage(context.Background(), "user1", []byte("fake-jpeg"), "image/jpeg")
	gt.NoError(t, err)
	gt.V(t, result.Record).NotNil()
	gt.Equal(t, result.Record.Context.ImageLocation, vc.ImageLocation)
	gt.A(t, result.Record.Context.Items).Length(2)
	gt.Equal(t, result.DeletedID, model.RecordID(""))

	// the record is durable
	got, err := repo.GetRecord(context.Background(), result.Record.ID)
	gt.NoError(t, err)
	gt.Equal(t, got.UserID, "user1")
}

func TestIngestImageEmpty(t *testing.T) {
	uc := newUseCase(t, repository.NewMemory(), &mockGemini{})

	_, err := uc.IngestImage(context.Background(), "user1", nil, "image/jpeg")
	gt.Error(t, err)
}

func TestIngestImageBadModelOutput(t *testing.T) {
	gemini := &mockGemini{
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return textResponse("this is not json"), nil
		},
	}
	uc := newUseCase(t, repository.NewMemory(), gemini)

	_, err := uc.IngestImage(context.Background(), "user1", []byte("fake-jpeg"), "image/jpeg")
	gt.Error(t, err)
}

func TestIngestImageEmptyResponse(t *testing.T) {
	gemini := &mockGemini{
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return &genai.GenerateContentResponse{}, nil
		},
	}
	uc := newUseCase(t, repository.NewMemory(), gemini)

	_, err := uc.IngestImage(context.Background(), "user1", []byte("fake-jpeg"), "image/jpeg")
	gt.Error(t, err)
}

func TestSaveContextSuppressesDuplicate(t *testing.T) {
	repo := repository.NewMemory()
	uc := newUseCase(t, repo, &mockGemini{})
	ctx := context.Background()

	first, err := uc.SaveContext(ctx, "user1", windowsillContext(), nil)
	gt.NoError(t, err)
	gt.Equal(t, first.DeletedID, model.RecordID(""))

	// the same scene again: the older record yields
	second, err := uc.SaveContext(ctx, "user1", windowsillContext(), nil)
	gt.NoError(t, err)
	gt.Equal(t, second.DeletedID, first.Record.ID)

	_, err = repo.GetRecord(ctx, first.Record.ID)
	gt.B(t, errors.Is(err, model.ErrRecordNotFound)).True()
	_, err = repo.GetRecord(ctx, second.Record.ID)
	gt.NoError(t, err)
}

func TestSaveContextRejectsInvalid(t *testing.T) {
	uc := newUseCase(t, repository.NewMemory(), &mockGemini{})

	vc := windowsillContext()
	vc.Items[0].Color = ""

	_, err := uc.SaveContext(context.Background(), "user1", vc, nil)
	gt.Error(t, err)
}

// memStorage collects snapshot writes in memory
type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

type memWriter struct {
	buf     bytes.Buffer
	key     string
	storage *memStorage
}

func (w *memWriter) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *memWriter) Close() error {
	w.storage.mu.Lock()
	defer w.storage.mu.Unlock()
	if w.storage.objects == nil {
		w.storage.objects = make(map[string][]byte)
	}
	w.storage.objects[w.key] = w.buf.Bytes()
	return nil
}

func (s *memStorage) Put(_ context.Context, key string) (io.WriteCloser, error) {
	return &memWriter{key: key, storage: s}, nil
}

func (s *memStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, errors.New("no such object")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func TestSaveContextArchivesSnapshot(t *testing.T) {
	repo := repository.NewMemory()
	storage := &memStorage{}
	uc := newUseCase(t, repo, &mockGemini{}, vision.WithStorage(storage))
	ctx := context.Background()

	image := []byte("fake-jpeg-bytes")
	result, err := uc.SaveContext(ctx, "user1", windowsillContext(), image)
	gt.NoError(t, err)
	gt.V(t, result.Record.ImageRef).NotEqual("")

	r, err := storage.Get(ctx, result.Record.ImageRef)
	gt.NoError(t, err)
	stored, err := io.ReadAll(r)
	gt.NoError(t, err)
	gt.Equal(t, stored, image)
}

func TestHistoryAndWipe(t *testing.T) {
	repo := repository.NewMemory()
	uc := newUseCase(t, repo, &mockGemini{})
	ctx := context.Background()

	_, err := uc.SaveContext(ctx, "user1", windowsillContext(), nil)
	gt.NoError(t, err)

	entries, err := uc.History(ctx, "user1")
	gt.NoError(t, err)
	gt.A(t, entries).Length(1)
	gt.Equal(t, entries[0].Context.ImageLocation, "kitchen windowsill")
	gt.V(t, entries[0].RelativeTime).NotEqual("")

	gt.NoError(t, uc.Wipe(ctx, "user1"))
	entries, err = uc.History(ctx, "user1")
	gt.NoError(t, err)
	gt.A(t, entries).Length(0)
}

func TestSearch(t *testing.T) {
	repo := repository.NewMemory()
	uc := newUseCase(t, repo, &mockGemini{})
	ctx := context.Background()

	_, err := uc.SaveContext(ctx, "user1", windowsillContext(), nil)
	gt.NoError(t, err)

	entries, err := uc.Search(ctx, "user1", []string{"basil"}, 10)
	gt.NoError(t, err)
	gt.A(t, entries).Length(1)

	entries, err = uc.Search(ctx, "user1", []string{"submarine"}, 10)
	gt.NoError(t, err)
	gt.A(t, entries).Length(0)
}
