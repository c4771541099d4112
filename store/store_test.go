package store

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/abhirockzz/langchaingo-trip-planner/logging"
	"github.com/abhirockzz/langchaingo-trip-planner/plan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMessages() []plan.ConversationMessage {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	return []plan.ConversationMessage{
		plan.NewMessage(plan.RoleUser, "Make today less packed", now),
		plan.NewMessage(plan.RoleAssistant, "Done, enjoy the slower pace.", now.Add(time.Second)),
	}
}

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()

	t.Run("Unknown session is empty", func(t *testing.T) {
		msgs, err := s.Load(ctx, "never-seen")
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})

	t.Run("Save then load", func(t *testing.T) {
		want := sampleMessages()
		require.NoError(t, s.Save(ctx, "session-1", want))

		got, err := s.Load(ctx, "session-1")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, want[0].ID, got[0].ID)
		assert.Equal(t, want[1].Content, got[1].Content)
		assert.True(t, want[0].CreatedAt.Equal(got[0].CreatedAt))
	})

	t.Run("Save overwrites", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, "session-1", sampleMessages()[:1]))
		got, err := s.Load(ctx, "session-1")
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, "session-1"))
		got, err := s.Load(ctx, "session-1")
		require.NoError(t, err)
		assert.Empty(t, got)

		assert.NoError(t, s.Delete(ctx, "session-1"))
	})

	t.Run("Invalid id", func(t *testing.T) {
		_, err := s.Load(ctx, "../etc/passwd")
		assert.ErrorIs(t, err, ErrInvalidSessionID)
		assert.ErrorIs(t, s.Save(ctx, "", nil), ErrInvalidSessionID)
	})
}

func TestMemory(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestMemoryCopies(t *testing.T) {
	m := NewMemory()
	msgs := sampleMessages()
	require.NoError(t, m.Save(context.Background(), "s", msgs))

	msgs[0].Content = "mutated"
	got, err := m.Load(context.Background(), "s")
	require.NoError(t, err)
	assert.Equal(t, "Make today less packed", got[0].Content)
}

func TestFile(t *testing.T) {
	f, err := NewFile(t.TempDir(), logging.Discard())
	require.NoError(t, err)
	exerciseStore(t, f)
}

func TestFileCorrupted(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFile(dir, logging.Discard())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0o644))

	msgs, err := f.Load(context.Background(), "broken")
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.FileExists(t, filepath.Join(dir, "broken.json.backup"))
	assert.NoFileExists(t, filepath.Join(dir, "broken.json"))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(&azcore.ResponseError{StatusCode: http.StatusNotFound}))
	assert.False(t, isNotFound(&azcore.ResponseError{StatusCode: http.StatusConflict}))
	assert.False(t, isNotFound(assert.AnError))
}
