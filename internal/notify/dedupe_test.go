package notify_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/farmtofork/coldchain/internal/notify"
)

func newStore(t *testing.T) *notify.Store {
	path := filepath.Join(t.TempDir(), "notifications.json")
	s, err := notify.NewStore(path, 0)
	assert.NoError(t, err)
	return s
}

func TestStoreRecordAndSeen(t *testing.T) {
	s := newStore(t)

	key := notify.Key(42)
	assert.False(t, s.Seen(notify.CategoryTemperature, key))

	assert.NoError(t, s.Record(notify.CategoryTemperature, key))
	assert.True(t, s.Seen(notify.CategoryTemperature, key))

	// Categories are independent sets.
	assert.False(t, s.Seen(notify.CategoryRejection, key))
}

func TestStorePersistsAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notifications.json")

	s1, err := notify.NewStore(path, 0)
	assert.NoError(t, err)
	assert.NoError(t, s1.Record(notify.CategoryTemperature, notify.Key(7)))

	s2, err := notify.NewStore(path, 0)
	assert.NoError(t, err)
	assert.True(t, s2.Seen(notify.CategoryTemperature, notify.Key(7)))
}

func TestStoreLoadsEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notifications.json")
	assert.NoError(t, os.WriteFile(path, []byte(""), 0644))

	s, err := notify.NewStore(path, 0)
	assert.NoError(t, err)
	assert.False(t, s.Seen(notify.CategoryTemperature, notify.Key(1)))
}

func TestStorePrunesAgedEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notifications.json")
	s, err := notify.NewStore(path, time.Nanosecond)
	assert.NoError(t, err)

	assert.NoError(t, s.Record(notify.CategoryTemperature, notify.Key(1)))
	time.Sleep(time.Millisecond)
	// The next save runs the prune pass with everything aged out.
	assert.NoError(t, s.Record(notify.CategoryTemperature, notify.Key(2)))

	assert.False(t, s.Seen(notify.CategoryTemperature, notify.Key(1)))
}

func TestCenterDedupsByOrder(t *testing.T) {
	c := notify.NewCenter(newStore(t), zerolog.Nop())

	raised, err := c.Raise(42, notify.CategoryTemperature, "order 42 too warm")
	assert.NoError(t, err)
	assert.True(t, raised)

	// Re-detection of the same condition stays quiet, even with different text.
	raised, err = c.Raise(42, notify.CategoryTemperature, "order 42 still too warm")
	assert.NoError(t, err)
	assert.False(t, raised)

	assert.Len(t, c.Active(), 1)
}

func TestCenterDismissIsOneWay(t *testing.T) {
	c := notify.NewCenter(newStore(t), zerolog.Nop())

	raised, err := c.Raise(42, notify.CategoryRejection, "order 42 rejected")
	assert.NoError(t, err)
	assert.True(t, raised)

	assert.NoError(t, c.Dismiss(42, notify.CategoryRejection))
	assert.Empty(t, c.Active())

	// Dismissed notifications never resurface.
	raised, err = c.Raise(42, notify.CategoryRejection, "order 42 rejected")
	assert.NoError(t, err)
	assert.False(t, raised)
	assert.Empty(t, c.Active())
}

func TestCenterDismissSurvivesReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notifications.json")

	s1, err := notify.NewStore(path, 0)
	assert.NoError(t, err)
	c1 := notify.NewCenter(s1, zerolog.Nop())
	_, err = c1.Raise(7, notify.CategoryTemperature, "too warm")
	assert.NoError(t, err)
	assert.NoError(t, c1.Dismiss(7, notify.CategoryTemperature))

	s2, err := notify.NewStore(path, 0)
	assert.NoError(t, err)
	c2 := notify.NewCenter(s2, zerolog.Nop())
	raised, err := c2.Raise(7, notify.CategoryTemperature, "too warm")
	assert.NoError(t, err)
	assert.False(t, raised)
}

func TestCenterDismissOneCategoryKeepsOthers(t *testing.T) {
	c := notify.NewCenter(newStore(t), zerolog.Nop())

	_, err := c.Raise(1, notify.CategoryTemperature, "too warm")
	assert.NoError(t, err)
	_, err = c.Raise(1, notify.CategoryRejection, "rejected")
	assert.NoError(t, err)

	assert.NoError(t, c.Dismiss(1, notify.CategoryTemperature))

	active := c.Active()
	assert.Len(t, active, 1)
	assert.Equal(t, notify.CategoryRejection, active[0].Category)
}
