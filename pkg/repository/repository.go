package repository

import (
	"context"
	"strings"

	"github.com/m-mizutani/miru/pkg/model"
)

// Repository defines the interface for visual record and conversation
// persistence. The document store owns all persisted data; callers never
// mutate a record in place, they only put, read and delete.
type Repository interface {
	// PutRecord saves a visual record
	PutRecord(ctx context.Context, rec *model.VisualRecord) error

	// GetRecord retrieves a visual record by ID. A missing ID yields
	// model.ErrRecordNotFound.
	GetRecord(ctx context.Context, id model.RecordID) (*model.VisualRecord, error)

	// ListRecent retrieves up to limit records of a user ordered by
	// CreatedAt descending, excluding the given record ID.
	ListRecent(ctx context.Context, userID string, exclude model.RecordID, limit int) ([]*model.VisualRecord, error)

	// ListRecords retrieves all records of a user ordered by CreatedAt descending
	ListRecords(ctx context.Context, userID string) ([]*model.VisualRecord, error)

	// SearchRecords retrieves up to limit records of a user whose visual
	// context matches any of the keywords, newest first. Empty keywords
	// fall back to ListRecent semantics.
	SearchRecords(ctx context.Context, userID string, keywords []string, limit int) ([]*model.VisualRecord, error)

	// DeleteRecord removes a visual record by ID
	DeleteRecord(ctx context.Context, id model.RecordID) error

	// WipeRecords removes all visual records of a user
	WipeRecords(ctx context.Context, userID string) error

	// PutMessage saves a conversation turn
	PutMessage(ctx context.Context, msg *model.Message) error

	// ListMessages retrieves up to limit messages of a user ordered by
	// CreatedAt ascending
	ListMessages(ctx context.Context, userID string, limit int) ([]*model.Message, error)

	// WipeMessages removes all conversation turns of a user
	WipeMessages(ctx context.Context, userID string) error
}

// matchKeywords reports whether any keyword appears (case-insensitive) in
// the record's visual context fields. The document store has no substring
// query over nested fields, so both implementations filter client-side.
func matchKeywords(rec *model.VisualRecord, keywords []string) bool {
	fields := make([]string, 0, 2+len(rec.Context.Items)*4)
	fields = append(fields, rec.Context.Description, rec.Context.ImageLocation)
	for i := range rec.Context.Items {
		item := &rec.Context.Items[i]
		fields = append(fields, item.Name, item.Description, item.Location, item.Color)
	}

	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		for _, f := range fields {
			if strings.Contains(strings.ToLower(f), kw) {
				return true
			}
		}
	}
	return false
}

// hasKeywords reports whether the keyword list contains anything usable
func hasKeywords(keywords []string) bool {
	for _, kw := range keywords {
		if strings.TrimSpace(kw) != "" {
			return true
		}
	}
	return false
}
