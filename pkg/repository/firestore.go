package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/miru/pkg/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	recordCollection  = "visual_records"
	messageCollection = "conversations"
)

// Firestore implements Repository interface using Firestore
type Firestore struct {
	client *firestore.Client
}

// New creates a new Firestore repository
func New(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.Value("project", projectID), goerr.Value("database", databaseID))
	}

	return &Firestore{client: client}, nil
}

// Close releases the underlying client
func (r *Firestore) Close() error {
	return r.client.Close()
}

func (r *Firestore) PutRecord(ctx context.Context, rec *model.VisualRecord) error {
	if _, err := r.client.Collection(recordCollection).Doc(string(rec.ID)).Set(ctx, rec); err != nil {
		return goerr.Wrap(err, "failed to put visual record", goerr.Value("id", rec.ID))
	}
	return nil
}

func (r *Firestore) GetRecord(ctx context.Context, id model.RecordID) (*model.VisualRecord, error) {
	doc, err := r.client.Collection(recordCollection).Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(model.ErrRecordNotFound, "no such record", goerr.Value("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get visual record", goerr.Value("id", id))
	}

	var rec model.VisualRecord
	if err := doc.DataTo(&rec); err != nil {
		return nil, goerr.Wrap(err, "failed to decode visual record", goerr.Value("id", id))
	}
	return &rec, nil
}

func (r *Firestore) ListRecent(ctx context.Context, userID string, exclude model.RecordID, limit int) ([]*model.VisualRecord, error) {
	// Fetch one extra document so the excluded record does not eat into
	// the limit.
	query := r.client.Collection(recordCollection).
		Where("user_id", "==", userID).
		OrderBy("created_at", firestore.Desc).
		Limit(limit + 1)

	records, err := r.queryRecords(ctx, query)
	if err != nil {
		return nil, err
	}

	filtered := make([]*model.VisualRecord, 0, limit)
	for _, rec := range records {
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

func (r *Firestore) ListRecords(ctx context.Context, userID string) ([]*model.VisualRecord, error) {
	query := r.client.Collection(recordCollection).
		Where("user_id", "==", userID).
		OrderBy("created_at", firestore.Desc)

	return r.queryRecords(ctx, query)
}

func (r *Firestore) SearchRecords(ctx context.Context, userID string, keywords []string, limit int) ([]*model.VisualRecord, error) {
	if !hasKeywords(keywords) {
		return r.ListRecent(ctx, userID, "", limit)
	}

	// Keyword match happens client-side: Firestore cannot run substring
	// queries over nested context fields.
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

func (r *Firestore) DeleteRecord(ctx context.Context, id model.RecordID) error {
	if _, err := r.client.Collection(recordCollection).Doc(string(id)).Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete visual record", goerr.Value("id", id))
	}
	return nil
}

func (r *Firestore) WipeRecords(ctx context.Context, userID string) error {
	return r.wipeCollection(ctx, recordCollection, userID)
}

func (r *Firestore) PutMessage(ctx context.Context, msg *model.Message) error {
	if err := msg.Role.Validate(); err != nil {
		return err
	}
	if _, err := r.client.Collection(messageCollection).Doc(string(msg.ID)).Set(ctx, msg); err != nil {
		return goerr.Wrap(err, "failed to put message", goerr.Value("id", msg.ID))
	}
	return nil
}

func (r *Firestore) ListMessages(ctx context.Context, userID string, limit int) ([]*model.Message, error) {
	// Fetch the most recent turns, then flip them back to oldest first.
	query := r.client.Collection(messageCollection).
		Where("user_id", "==", userID).
		OrderBy("created_at", firestore.Desc).
		Limit(limit)

	iter := query.Documents(ctx)
	defer iter.Stop()

	var messages []*model.Message
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate messages", goerr.Value("user_id", userID))
		}

		var msg model.Message
		if err := doc.DataTo(&msg); err != nil {
			return nil, goerr.Wrap(err, "failed to decode message")
		}
		messages = append(messages, &msg)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *Firestore) WipeMessages(ctx context.Context, userID string) error {
	return r.wipeCollection(ctx, messageCollection, userID)
}

func (r *Firestore) queryRecords(ctx context.Context, query firestore.Query) ([]*model.VisualRecord, error) {
	iter := query.Documents(ctx)
	defer iter.Stop()

	var records []*model.VisualRecord
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate visual records")
		}

		var rec model.VisualRecord
		if err := doc.DataTo(&rec); err != nil {
			return nil, goerr.Wrap(err, "failed to decode visual record")
		}
		records = append(records, &rec)
	}
	return records, nil
}

func (r *Firestore) wipeCollection(ctx context.Context, collection, userID string) error {
	iter := r.client.Collection(collection).Where("user_id", "==", userID).Documents(ctx)
	defer iter.Stop()

	writer := r.client.BulkWriter(ctx)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return goerr.Wrap(err, "failed to iterate documents for wipe", goerr.Value("user_id", userID))
		}
		if _, err := writer.Delete(doc.Ref); err != nil {
			return goerr.Wrap(err, "failed to schedule delete", goerr.Value("doc", doc.Ref.ID))
		}
	}
	writer.End()
	return nil
}
