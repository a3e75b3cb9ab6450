package cli

import (
	"context"
	"encoding/json"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/miru/pkg/model"
	"github.com/m-mizutani/miru/pkg/usecase/vision"
)

// newVisionUseCase wires repository, Gemini, optional snapshot storage and
// the duplicate engine into a vision UseCase. The returned closer releases
// the repository client.
func newVisionUseCase(ctx context.Context, cfg *config) (*vision.UseCase, func(), error) {
	repo, err := cfg.newRepository(ctx)
	if err != nil {
		return nil, nil, err
	}

	gemini, err := cfg.newGemini(ctx)
	if err != nil {
		_ = repo.Close()
		return nil, nil, err
	}

	engine, err := cfg.newEngine(repo, gemini)
	if err != nil {
		_ = repo.Close()
		return nil, nil, err
	}

	opts := []vision.Option{}
	storage, err := cfg.newStorage(ctx)
	if err != nil {
		_ = repo.Close()
		return nil, nil, err
	}
	if storage != nil {
		opts = append(opts, vision.WithStorage(storage))
	}

	closer := func() { _ = repo.Close() }
	return vision.New(repo, gemini, engine, opts...), closer, nil
}

// readVisualContext loads a VisualContext from a JSON file
func readVisualContext(path string) (*model.VisualContext, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read input file", goerr.Value("path", path))
	}

	var vc model.VisualContext
	if err := json.Unmarshal(data, &vc); err != nil {
		return nil, goerr.Wrap(err, "failed to parse visual context JSON")
	}
	if err := vc.Validate(); err != nil {
		return nil, err
	}
	return &vc, nil
}
