package repository_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/miru/pkg/model"
	"github.com/m-mizutani/miru/pkg/repository"
)

func setupFirestore(t *testing.T) *repository.Firestore {
	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")

	if projectID == "" || databaseID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID and TEST_FIRESTORE_DATABASE_ID must be set to run Firestore tests")
	}

	repo, err := repository.New(context.Background(), projectID, databaseID)
	gt.NoError(t, err)
	t.Cleanup(func() {
		_ = repo.Close()
	})

	return repo
}

// testUserID isolates each test run inside the shared test database
func testUserID() string {
	return "test-user-" + uuid.NewString()
}

func TestFirestorePutGetRecord(t *testing.T) {
	repo := setupFirestore(t)
	ctx := context.Background()
	userID := testUserID()

	rec := newRecord(userID, time.Now(), kitchenContext("a kettle on the stove"))
	gt.NoError(t, repo.PutRecord(ctx, rec))

	retrieved, err := repo.GetRecord(ctx, rec.ID)
	gt.NoError(t, err)
	gt.V(t, retrieved).NotNil()
	gt.Equal(t, retrieved.ID, rec.ID)
	gt.Equal(t, retrieved.UserID, userID)
	gt.Equal(t, retrieved.Context.Description, rec.Context.Description)
	gt.A(t, retrieved.Context.Items).Length(1)
}

func TestFirestoreGetRecordNotFound(t *testing.T) {
	repo := setupFirestore(t)

	_, err := repo.GetRecord(context.Background(), model.NewRecordID())
	gt.Error(t, err)
	gt.B(t, errors.Is(err, model.ErrRecordNotFound)).True()
}

func TestFirestoreListRecent(t *testing.T) {
	repo := setupFirestore(t)
	ctx := context.Background()
	userID := testUserID()

	now := time.Now()
	var recs []*model.VisualRecord
	for i := 0; i < 4; i++ {
		rec := newRecord(userID, now.Add(time.Duration(i)*time.Minute),
			kitchenContext("scene"))
		gt.NoError(t, repo.PutRecord(ctx, rec))
		recs = append(recs, rec)
	}

	retrieved, err := repo.ListRecent(ctx, userID, recs[3].ID, 2)
	gt.NoError(t, err)
	gt.A(t, retrieved).Length(2)
	gt.Equal(t, retrieved[0].ID, recs[2].ID)
	gt.Equal(t, retrieved[1].ID, recs[1].ID)
}

func TestFirestoreSearchRecords(t *testing.T) {
	repo := setupFirestore(t)
	ctx := context.Background()
	userID := testUserID()

	now := time.Now()
	kettle := newRecord(userID, now, kitchenContext("a kettle on the stove"))
	desk := newRecord(userID, now.Add(-time.Minute), model.VisualContext{
		ImageLocation: "home office",
		Description:   "a tidy desk",
		Items: []model.VisualItem{
			{Name: "lamp", Description: "white desk lamp", Location: "desk", Color: "white"},
		},
	})
	gt.NoError(t, repo.PutRecord(ctx, kettle))
	gt.NoError(t, repo.PutRecord(ctx, desk))

	retrieved, err := repo.SearchRecords(ctx, userID, []string{"kettle"}, 10)
	gt.NoError(t, err)
	gt.A(t, retrieved).Length(1)
	gt.Equal(t, retrieved[0].ID, kettle.ID)
}

func TestFirestoreDeleteAndWipeRecords(t *testing.T) {
	repo := setupFirestore(t)
	ctx := context.Background()
	userID := testUserID()

	rec := newRecord(userID, time.Now(), kitchenContext("doomed"))
	gt.NoError(t, repo.PutRecord(ctx, rec))
	gt.NoError(t, repo.DeleteRecord(ctx, rec.ID))

	_, err := repo.GetRecord(ctx, rec.ID)
	gt.B(t, errors.Is(err, model.ErrRecordNotFound)).True()

	keep := newRecord(userID, time.Now(), kitchenContext("wiped"))
	gt.NoError(t, repo.PutRecord(ctx, keep))
	gt.NoError(t, repo.WipeRecords(ctx, userID))

	retrieved, err := repo.ListRecords(ctx, userID)
	gt.NoError(t, err)
	gt.A(t, retrieved).Length(0)
}

func TestFirestoreMessages(t *testing.T) {
	repo := setupFirestore(t)
	ctx := context.Background()
	userID := testUserID()

	now := time.Now()
	turns := []*model.Message{
		newMessage(userID, model.RoleUser, "what did you see?", now.Add(-2*time.Minute)),
		newMessage(userID, model.RoleAssistant, "a kettle on the stove", now.Add(-time.Minute)),
		newMessage(userID, model.RoleUser, "anything else?", now),
	}
	for _, msg := range turns {
		gt.NoError(t, repo.PutMessage(ctx, msg))
	}

	retrieved, err := repo.ListMessages(ctx, userID, 20)
	gt.NoError(t, err)
	gt.A(t, retrieved).Length(3)
	gt.Equal(t, retrieved[0].Content, "what did you see?")
	gt.Equal(t, retrieved[2].Content, "anything else?")

	// limit keeps the most recent turns, oldest first
	retrieved, err = repo.ListMessages(ctx, userID, 2)
	gt.NoError(t, err)
	gt.A(t, retrieved).Length(2)
	gt.Equal(t, retrieved[0].Content, "a kettle on the stove")

	gt.NoError(t, repo.WipeMessages(ctx, userID))
	retrieved, err = repo.ListMessages(ctx, userID, 20)
	gt.NoError(t, err)
	gt.A(t, retrieved).Length(0)
}
