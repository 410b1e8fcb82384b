package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/taskflow/apiserver/types"
)

const archiveContentType = "application/json"

// AccountArchive is the document written for a deleted account.
type AccountArchive struct {
	User       ArchivedUser `json:"user"`
	Tasks      []types.Task `json:"tasks"`
	ArchivedAt time.Time    `json:"archivedAt"`
}

type ArchivedUser struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Archiver writes account snapshots to object storage.
type Archiver struct {
	store ObjectStorage
	now   func() time.Time
}

func NewArchiver(store ObjectStorage) *Archiver {
	return &Archiver{store: store, now: time.Now}
}

// Key returns the object key for a snapshot of userID taken at t.
func Key(userID int, t time.Time) string {
	return fmt.Sprintf("accounts/%d/%d.json", userID, t.UnixNano())
}

// Archive stores the user's profile and tasks. The password hash is never
// written.
func (a *Archiver) Archive(ctx context.Context, user types.User, tasks []types.Task) error {
	if tasks == nil {
		tasks = []types.Task{}
	}
	at := a.now().UTC()
	doc := AccountArchive{
		User: ArchivedUser{
			ID:        user.ID,
			Name:      user.Name,
			Email:     user.Email,
			CreatedAt: user.CreatedAt,
		},
		Tasks:      tasks,
		ArchivedAt: at,
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode archive: %w", err)
	}

	key := Key(user.ID, at)
	if err := a.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), archiveContentType); err != nil {
		return fmt.Errorf("put %s/%s: %w", a.store.Bucket(), key, err)
	}
	return nil
}
