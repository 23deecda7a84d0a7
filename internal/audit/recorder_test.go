// ABOUTME: Tests for the audit recorder's append and swallow behavior
// ABOUTME: A failing store must never surface to the caller

package audit

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partforge/partforge/internal/store"
)

func TestRecord_AppendsEntry(t *testing.T) {
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	r := NewRecorder(s)
	userID := "user-1"
	r.Record(context.Background(), &userID, "createProject")
	r.Record(context.Background(), nil, "login")

	entries, err := s.ListAuditLog(context.Background(), store.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byAction := map[string]store.AuditEntry{}
	for _, e := range entries {
		byAction[e.Action] = e
	}
	login, ok := byAction["login"]
	require.True(t, ok)
	assert.Nil(t, login.UserID)
	created, ok := byAction["createProject"]
	require.True(t, ok)
	require.NotNil(t, created.UserID)
	assert.Equal(t, "user-1", *created.UserID)
	assert.WithinDuration(t, time.Now(), login.Timestamp, time.Minute)
}

type failingStore struct{}

func (failingStore) AppendAuditLog(context.Context, *store.AuditEntry) error {
	return errors.New("disk full")
}

func TestRecord_SwallowsFailure(t *testing.T) {
	r := NewRecorder(failingStore{})

	// Must not panic or propagate.
	r.Record(context.Background(), nil, "createProject")
}

func TestListAuditLog_Filters(t *testing.T) {
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	r := NewRecorder(s)
	alice, bob := "alice", "bob"
	r.Record(context.Background(), &alice, "createProject")
	r.Record(context.Background(), &bob, "editBOM")

	entries, err := s.ListAuditLog(context.Background(), store.AuditFilter{UserID: &alice})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "createProject", entries[0].Action)
}
