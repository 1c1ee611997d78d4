package leaderboard

import (
	"testing"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/playtime-tracker/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRoundTrip(t *testing.T) {
	store := NewSnapshotStore(t.TempDir(), quartz.NewMock(t), testLogger())
	positions := []domain.Position{
		{ID: uuid.New(), Name: "first", Seconds: 200},
		{ID: uuid.New(), Name: "second", Seconds: 100},
	}

	name, err := store.Save(domain.CategoryWeekly, positions)
	require.NoError(t, err)

	snapshot, err := store.Load(name)
	require.NoError(t, err)
	assert.Equal(t, domain.SnapshotFormatVersion, snapshot.FormatVersion)
	assert.Equal(t, domain.CategoryWeekly, snapshot.Category)
	assert.Equal(t, positions, snapshot.Positions)
}

func TestSnapshotsAreImmutable(t *testing.T) {
	clock := quartz.NewMock(t)
	store := NewSnapshotStore(t.TempDir(), clock, testLogger())

	_, err := store.Save(domain.CategoryDaily, nil)
	require.NoError(t, err)

	// Same category at the same instant collides with the existing file
	// and must not overwrite it.
	_, err = store.Save(domain.CategoryDaily, nil)
	assert.Error(t, err)
}

func TestListSorted(t *testing.T) {
	clock := quartz.NewMock(t)
	store := NewSnapshotStore(t.TempDir(), clock, testLogger())

	_, err := store.Save(domain.CategoryWeekly, nil)
	require.NoError(t, err)
	_, err = store.Save(domain.CategoryDaily, nil)
	require.NoError(t, err)

	names, err := store.List()
	require.NoError(t, err)
	require.Len(t, names, 2)
	assert.Contains(t, names[0], "daily_")
	assert.Contains(t, names[1], "weekly_")
}

func TestListMissingDirectory(t *testing.T) {
	store := NewSnapshotStore(t.TempDir()+"/nothing-here", quartz.NewMock(t), testLogger())

	names, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestLoadRejectsBadNames(t *testing.T) {
	store := NewSnapshotStore(t.TempDir(), quartz.NewMock(t), testLogger())

	_, err := store.Load("no-such-snapshot.json")
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)

	_, err = store.Load("../escape.json")
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
}
