package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrRecordNotFound = goerr.New("visual record not found")
	ErrInvalidItem    = goerr.New("invalid visual item")
)

type RecordID string

// NewRecordID generates a new unique RecordID
func NewRecordID() RecordID {
	return RecordID(uuid.New().String())
}

// VisualItem is one detected object within a scene. All four fields are
// required: the comparator must never see an absent field, because two empty
// strings would score as a perfect match.
type VisualItem struct {
	Name        string `firestore:"name" json:"name"`
	Description string `firestore:"description" json:"description"`
	Location    string `firestore:"location" json:"location"`
	Color       string `firestore:"color" json:"color"`
}

// Validate checks that every field of the item is present
func (x *VisualItem) Validate() error {
	if x.Name == "" {
		return goerr.Wrap(ErrInvalidItem, "name is empty")
	}
	if x.Description == "" {
		return goerr.Wrap(ErrInvalidItem, "description is empty", goerr.Value("name", x.Name))
	}
	if x.Location == "" {
		return goerr.Wrap(ErrInvalidItem, "location is empty", goerr.Value("name", x.Name))
	}
	if x.Color == "" {
		return goerr.Wrap(ErrInvalidItem, "color is empty", goerr.Value("name", x.Name))
	}
	return nil
}

// Fingerprint returns a compact set key derived from the item's name and
// color, used for fast set-based comparison.
func (x *VisualItem) Fingerprint() string {
	return strings.ToLower(x.Name) + "|" + strings.ToLower(x.Color)
}

// VisualContext is a structured description of one camera snapshot: where it
// was taken, a scene-level summary, and the detected objects. Item order
// carries no meaning for comparison.
type VisualContext struct {
	ImageLocation string       `firestore:"image_location" json:"image_location"`
	Description   string       `firestore:"description" json:"description"`
	Items         []VisualItem `firestore:"items" json:"items"`
}

// Validate checks every item of the context
func (x *VisualContext) Validate() error {
	for i := range x.Items {
		if err := x.Items[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Fingerprints returns the fingerprint set of all items
func (x *VisualContext) Fingerprints() []string {
	fps := make([]string, 0, len(x.Items))
	for i := range x.Items {
		fps = append(fps, x.Items[i].Fingerprint())
	}
	return fps
}

// VisualRecord is a persisted VisualContext. Records are append-only: once
// created they are never updated in place, only deleted by duplicate
// suppression or by an explicit history wipe.
type VisualRecord struct {
	ID      RecordID      `firestore:"id"`
	UserID  string        `firestore:"user_id"`
	Context VisualContext `firestore:"visual_context"`

	// ImageRef is the Cloud Storage object key of the raw snapshot, empty
	// when the snapshot was not archived.
	ImageRef string `firestore:"image_ref"`

	CreatedAt time.Time `firestore:"created_at"`
}
