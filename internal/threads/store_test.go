package threads

import (
	"path/filepath"
	"testing"

	"github.com/diogo/perplexity-web-api-go/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "threads.db")
	s, err := Open(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestPutAndGet(t *testing.T) {
	s, _ := openStore(t)

	first, err := s.Put("work", models.FollowUpContext{BackendUUID: "b-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Turns)
	assert.Equal(t, []string{}, first.FollowUp.Attachments)

	second, err := s.Put("work", models.FollowUpContext{BackendUUID: "b-2", Attachments: []string{"https://x/a.pdf"}})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Turns)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)

	got, err := s.Get("work")
	require.NoError(t, err)
	assert.Equal(t, "work", got.Name)
	assert.Equal(t, "b-2", got.FollowUp.BackendUUID)
	assert.Equal(t, []string{"https://x/a.pdf"}, got.FollowUp.Attachments)
}

func TestGetMissing(t *testing.T) {
	s, _ := openStore(t)

	_, err := s.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInvalidNames(t *testing.T) {
	s, _ := openStore(t)

	for _, name := range []string{"", "   "} {
		_, err := s.Put(name, models.FollowUpContext{})
		assert.ErrorIs(t, err, ErrInvalidName)
		_, err = s.Get(name)
		assert.ErrorIs(t, err, ErrInvalidName)
		assert.ErrorIs(t, s.Delete(name), ErrInvalidName)
	}
}

func TestNamesAreTrimmed(t *testing.T) {
	s, _ := openStore(t)

	_, err := s.Put("  research ", models.FollowUpContext{BackendUUID: "b"})
	require.NoError(t, err)

	got, err := s.Get("research")
	require.NoError(t, err)
	assert.Equal(t, "research", got.Name)
}

func TestDelete(t *testing.T) {
	s, _ := openStore(t)

	_, err := s.Put("tmp", models.FollowUpContext{BackendUUID: "b"})
	require.NoError(t, err)

	require.NoError(t, s.Delete("tmp"))
	_, err = s.Get("tmp")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete("tmp"), ErrNotFound)
}

func TestList(t *testing.T) {
	s, _ := openStore(t)

	threads, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, threads)

	for _, name := range []string{"zeta", "alpha", "mid"} {
		_, err := s.Put(name, models.FollowUpContext{BackendUUID: name})
		require.NoError(t, err)
	}

	threads, err = s.List()
	require.NoError(t, err)
	require.Len(t, threads, 3)
	assert.Equal(t, "alpha", threads[0].Name)
	assert.Equal(t, "mid", threads[1].Name)
	assert.Equal(t, "zeta", threads[2].Name)
}

func TestReopenKeepsThreads(t *testing.T) {
	s, path := openStore(t)

	_, err := s.Put("kept", models.FollowUpContext{BackendUUID: "b-9"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := Open(path, nil)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get("kept")
	require.NoError(t, err)
	assert.Equal(t, "b-9", got.FollowUp.BackendUUID)
}
