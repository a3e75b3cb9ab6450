package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/miru/pkg/model"
)

// Memory is an in-memory Repository for unit tests and local runs. It keeps
// the same ordering semantics as the Firestore implementation.
type Memory struct {
	mu       sync.RWMutex
	records  map[model.RecordID]*model.VisualRecord
	messages map[model.MessageID]*model.Message
}

// NewMemory creates an empty in-memory repository
func NewMemory() *Memory {
	return &Memory{
		records:  make(map[model.RecordID]*model.VisualRecord),
		messages: make(map[model.MessageID]*model.Message),
	}
}

func (r *Memory) PutRecord(ctx context.Context, rec *model.VisualRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *rec
	r.records[rec.ID] = &copied
	return nil
}

func (r *Memory) GetRecord(ctx context.Context, id model.RecordID) (*model.VisualRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, goerr.Wrap(model.ErrRecordNotFound, "no such record", goerr.Value("id", id))
	}
	copied := *rec
	return &copied, nil
}

func (r *Memory) ListRecent(ctx context.Context, userID string, exclude model.RecordID, limit int) ([]*model.VisualRecord, error) {
	all, err := r.ListRecords(ctx, userID)
	if err != nil {
		return nil, err
	}

	filtered := make([]*model.VisualRecord, 0, limit)
	for _, rec := range all {
		if rec.ID == exclude {
			continue
		}
		filtered = append(filtered, rec)
		if len(filtered) >= limit {
			break
		}
	}
	return filtered, nil
}

func (r *Memory) ListRecords(ctx context.Context, userID string) ([]*model.VisualRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var records []*model.VisualRecord
	for _, rec := range r.records {
		if rec.UserID != userID {
			continue
		}
		copied := *rec
		records = append(records, &copied)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

func (r *Memory) SearchRecords(ctx context.Context, userID string, keywords []string, limit int) ([]*model.VisualRecord, error) {
	if !hasKeywords(keywords) {
		return r.ListRecent(ctx, userID, "", limit)
	}

	all, err := r.ListRecords(ctx, userID)
	if err != nil {
		return nil, err
	}

	matched := make([]*model.VisualRecord, 0, limit)
	for _, rec := range all {
		if !matchKeywords(rec, keywords) {
			continue
		}
		matched = append(matched, rec)
		if len(matched) >= limit {
			break
		}
	}
	return matched, nil
}

func (r *Memory) DeleteRecord(ctx context.Context, id model.RecordID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.records, id)
	return nil
}

func (r *Memory) WipeRecords(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, rec := range r.records {
		if rec.UserID == userID {
			delete(r.records, id)
		}
	}
	return nil
}

func (r *Memory) PutMessage(ctx context.Context, msg *model.Message) error {
	if err := msg.Role.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *msg
	r.messages[msg.ID] = &copied
	return nil
}

func (r *Memory) ListMessages(ctx context.Context, userID string, limit int) ([]*model.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var messages []*model.Message
	for _, msg := range r.messages {
		if msg.UserID != userID {
			continue
		}
		copied := *msg
		messages = append(messages, &copied)
	}

	sort.Slice(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	// keep the most recent turns, still oldest first
	if len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return messages, nil
}

func (r *Memory) WipeMessages(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, msg := range r.messages {
		if msg.UserID == userID {
			delete(r.messages, id)
		}
	}
	return nil
}
