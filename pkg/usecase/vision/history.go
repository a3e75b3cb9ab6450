package vision

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/miru/pkg/model"
	"github.com/m-mizutani/miru/pkg/utils/timefmt"
)

// HistoryEntry is one visual context with a human-readable age, the shape
// handed to the conversation flow and the CLI.
type HistoryEntry struct {
	Context      model.VisualContext `json:"visual_context"`
	RelativeTime string              `json:"relative_timestamp"`
}

// History returns everything the user's camera has seen, newest first, with
// relative timestamps.
func (u *UseCase) History(ctx context.Context, userID string) ([]*HistoryEntry, error) {
	records, err := u.repo.ListRecords(ctx, userID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch visual history", goerr.Value("user_id", userID))
	}

	return toEntries(records), nil
}

// Search returns the user's visual contexts matching any of the keywords,
// newest first.
func (u *UseCase) Search(ctx context.Context, userID string, keywords []string, limit int) ([]*HistoryEntry, error) {
	records, err := u.repo.SearchRecords(ctx, userID, keywords, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search visual history", goerr.Value("user_id", userID))
	}

	return toEntries(records), nil
}

// Wipe removes the user's entire visual history
func (u *UseCase) Wipe(ctx context.Context, userID string) error {
	if err := u.repo.WipeRecords(ctx, userID); err != nil {
		return goerr.Wrap(err, "failed to wipe visual history", goerr.Value("user_id", userID))
	}
	return nil
}

func toEntries(records []*model.VisualRecord) []*HistoryEntry {
	now := time.Now()
	entries := make([]*HistoryEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, &HistoryEntry{
			Context:      rec.Context,
			RelativeTime: timefmt.Relative(rec.CreatedAt, now),
		})
	}
	return entries
}
