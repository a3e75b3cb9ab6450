package vision

import (
	"context"
	_ "embed"
	"encoding/json"
	"path"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/miru/pkg/model"
	"google.golang.org/genai"
)

//go:embed prompt/visual_context.md
var visualContextPrompt string

// visualContextSchema constrains the vision model output to the
// VisualContext document shape.
var visualContextSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"image_location": {Type: genai.TypeString},
		"description":    {Type: genai.TypeString},
		"items": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"name":        {Type: genai.TypeString},
					"description": {Type: genai.TypeString},
					"location":    {Type: genai.TypeString},
					"color":       {Type: genai.TypeString},
				},
				Required: []string{"name", "description", "location", "color"},
			},
		},
	},
	Required: []string{"image_location", "description", "items"},
}

// IngestResult reports what one snapshot ingestion did
type IngestResult struct {
	Record *model.VisualRecord

	// DeletedID is the record suppressed as a near-duplicate of the new
	// one, empty when nothing was deleted.
	DeletedID model.RecordID
}

// IngestImage runs vision extraction on a snapshot image and stores the
// resulting visual context.
func (u *UseCase) IngestImage(ctx context.Context, userID string, image []byte, mimeType string) (*IngestResult, error) {
	if len(image) == 0 {
		return nil, goerr.New("image is empty")
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(visualContextPrompt),
			genai.NewPartFromBytes(image, mimeType),
		}, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   visualContextSchema,
	}

	resp, err := u.gemini.GenerateContent(ctx, contents, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to extract visual context")
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, goerr.New("empty vision response")
	}

	var vc model.VisualContext
	raw := resp.Candidates[0].Content.Parts[0].Text
	if err := json.Unmarshal([]byte(raw), &vc); err != nil {
		return nil, goerr.Wrap(err, "failed to parse visual context", goerr.Value("raw", raw))
	}

	return u.SaveContext(ctx, userID, &vc, image)
}

// SaveContext persists a visual context as a new record and immediately runs
// duplicate suppression. The new record always survives; when a nearby older
// record scores as a near-duplicate, its ID comes back in the result.
//
// A dedup failure after the record is durable propagates to the caller but
// does not roll back the insertion; at worst a duplicate persists until the
// next cycle.
func (u *UseCase) SaveContext(ctx context.Context, userID string, vc *model.VisualContext, image []byte) (*IngestResult, error) {
	if err := vc.Validate(); err != nil {
		return nil, err
	}

	rec := &model.VisualRecord{
		ID:        model.NewRecordID(),
		UserID:    userID,
		Context:   *vc,
		CreatedAt: time.Now(),
	}

	if u.storage != nil && len(image) > 0 {
		key := path.Join("snapshots", userID, string(rec.ID))
		if err := u.archiveSnapshot(ctx, key, image); err != nil {
			return nil, err
		}
		rec.ImageRef = key
	}

	if err := u.repo.PutRecord(ctx, rec); err != nil {
		return nil, goerr.Wrap(err, "failed to save visual record", goerr.Value("user_id", userID))
	}

	deletedID, err := u.engine.OnRecordInserted(ctx, rec)
	if err != nil {
		return nil, goerr.Wrap(err, "record saved but duplicate check failed", goerr.Value("id", rec.ID))
	}

	return &IngestResult{Record: rec, DeletedID: deletedID}, nil
}

func (u *UseCase) archiveSnapshot(ctx context.Context, key string, image []byte) error {
	w, err := u.storage.Put(ctx, key)
	if err != nil {
		return goerr.Wrap(err, "failed to open snapshot writer", goerr.Value("key", key))
	}
	if _, err := w.Write(image); err != nil {
		_ = w.Close()
		return goerr.Wrap(err, "failed to write snapshot", goerr.Value("key", key))
	}
	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to finalize snapshot", goerr.Value("key", key))
	}
	return nil
}
