package vision

import (
	"github.com/m-mizutani/miru/pkg/adapter"
	"github.com/m-mizutani/miru/pkg/repository"
	"github.com/m-mizutani/miru/pkg/usecase/dedup"
)

// UseCase provides visual record operations: snapshot ingestion with
// duplicate suppression, history retrieval and history wipe.
type UseCase struct {
	repo    repository.Repository
	gemini  adapter.Gemini
	engine  *dedup.Engine
	storage adapter.Storage
}

// Option is a functional option for UseCase
type Option func(*UseCase)

// WithStorage enables raw snapshot archival to Cloud Storage
func WithStorage(storage adapter.Storage) Option {
	return func(uc *UseCase) {
		uc.storage = storage
	}
}

// New creates a new vision UseCase instance
func New(
	repo repository.Repository,
	gemini adapter.Gemini,
	engine *dedup.Engine,
	opts ...Option,
) *UseCase {
	uc := &UseCase{
		repo:   repo,
		gemini: gemini,
		engine: engine,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}
