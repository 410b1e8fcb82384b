package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/taskflow/apiserver/config"
	"github.com/taskflow/apiserver/types"
)

type memoryStorage struct {
	objects map[string][]byte
	types   map[string]string
	err     error
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memoryStorage) EnsureBucket(context.Context) error { return nil }

func (m *memoryStorage) Put(_ context.Context, key string, r io.Reader, size int64, contentType string) error {
	if m.err != nil {
		return m.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return errors.New("size mismatch")
	}
	m.objects[key] = data
	m.types[key] = contentType
	return nil
}

func (m *memoryStorage) Bucket() string { return "archives" }

func TestArchiverWritesSnapshot(t *testing.T) {
	store := newMemoryStorage()
	archiver := NewArchiver(store)
	at := time.Date(2030, 1, 2, 3, 4, 5, 6, time.UTC)
	archiver.now = func() time.Time { return at }

	due, err := types.ParseDate("2030-02-01")
	require.NoError(t, err)
	user := types.User{ID: 7, Name: "Ann", Email: "ann@example.com", PasswordHash: "$2a$secret"}
	tasks := []types.Task{{ID: 1, UserID: 7, Title: "Buy milk", Status: types.StatusPending, Priority: types.PriorityMedium, DueDate: due}}

	require.NoError(t, archiver.Archive(t.Context(), user, tasks))

	key := Key(7, at)
	require.Equal(t, "accounts/7/1893553445000000006.json", key)
	data, ok := store.objects[key]
	require.True(t, ok)
	require.Equal(t, "application/json", store.types[key])
	require.NotContains(t, string(data), "$2a$secret")

	var doc AccountArchive
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Equal(t, 7, doc.User.ID)
	require.Equal(t, "ann@example.com", doc.User.Email)
	require.Len(t, doc.Tasks, 1)
	require.Equal(t, "Buy milk", doc.Tasks[0].Title)
	require.Equal(t, "2030-02-01", doc.Tasks[0].DueDate.String())
	require.True(t, at.Equal(doc.ArchivedAt))
}

func TestArchiverEmptyTasks(t *testing.T) {
	store := newMemoryStorage()
	archiver := NewArchiver(store)

	require.NoError(t, archiver.Archive(t.Context(), types.User{ID: 3}, nil))
	require.Len(t, store.objects, 1)
	for _, data := range store.objects {
		require.Contains(t, string(data), `"tasks":[]`)
	}
}

func TestArchiverPropagatesPutError(t *testing.T) {
	store := newMemoryStorage()
	store.err = errors.New("bucket offline")

	err := NewArchiver(store).Archive(t.Context(), types.User{ID: 1}, nil)
	require.ErrorIs(t, err, store.err)
}

func TestOpen(t *testing.T) {
	archiver, err := Open(t.Context(), config.ArchiveConfig{Backend: BackendNone})
	require.NoError(t, err)
	require.Nil(t, archiver)

	_, err = Open(t.Context(), config.ArchiveConfig{Backend: "ftp"})
	require.Error(t, err)

	_, err = Open(t.Context(), config.ArchiveConfig{Backend: BackendMinio})
	require.ErrorContains(t, err, "endpoint is required")
}
