package infra

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/scrolloff/internal/domain"
)

func TestFilePrefs_MissingFile(t *testing.T) {
	prefs := NewFilePrefs(filepath.Join(t.TempDir(), "prefs", "shared_prefs.json"))

	set, err := prefs.Load()

	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())
}

func TestFilePrefs_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared_prefs.json")
	prefs := NewFilePrefs(path)

	require.NoError(t, prefs.Save(domain.NewBlockedSet("com.instagram.android", "com.reddit.frontpage")))

	set, err := prefs.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"com.instagram.android", "com.reddit.frontpage"}, set.Sorted())
	assert.Equal(t, path, prefs.Location())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.JSONEq(t, `["com.instagram.android","com.reddit.frontpage"]`, string(doc[BlockedAppsKey]),
		"writers always store the native list")
}

func TestFilePrefs_PreservesOtherKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared_prefs.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"flutter.onboarding_done":true,"flutter.scrolloff_blocked_apps":"a,b"}`), 0600))
	prefs := NewFilePrefs(path)

	set, err := prefs.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, set.Sorted(), "legacy comma encoding")

	set.Add("c")
	require.NoError(t, prefs.Save(set))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"flutter.onboarding_done":true,"flutter.scrolloff_blocked_apps":["a","b","c"]}`, string(data))
}

func TestFilePrefs_MalformedDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared_prefs.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0600))
	prefs := NewFilePrefs(path)

	set, err := prefs.Load()
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())

	require.NoError(t, prefs.Save(domain.NewBlockedSet("a")))
	set, err = prefs.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, set.Sorted())
}

func TestFilePrefs_ConcurrentWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared_prefs.json")
	first := NewFilePrefs(path)
	second := NewFilePrefs(path)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, first.Save(domain.NewBlockedSet("a", "b")))
		}()
		go func() {
			defer wg.Done()
			_, err := second.Load()
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	set, err := second.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, set.Sorted())
}

func newTestEncryptedPrefs(t *testing.T) *EncryptedPrefs {
	t.Helper()
	key, err := GenerateKey()
	require.NoError(t, err)

	prefs, err := NewEncryptedPrefs(filepath.Join(t.TempDir(), "data", "prefs.db"), key)
	require.NoError(t, err)
	t.Cleanup(func() { prefs.Close() })
	return prefs
}

func TestEncryptedPrefs_SaveLoad(t *testing.T) {
	prefs := newTestEncryptedPrefs(t)

	set, err := prefs.Load()
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())

	require.NoError(t, prefs.Save(domain.NewBlockedSet("com.b", "com.a")))
	set, err = prefs.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"com.a", "com.b"}, set.Sorted())

	require.NoError(t, prefs.Save(domain.NewBlockedSet()))
	set, err = prefs.Load()
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())
}

func TestEncryptedPrefs_LegacyValue(t *testing.T) {
	prefs := newTestEncryptedPrefs(t)
	require.NoError(t, prefs.Set(BlockedAppsKey, json.RawMessage(`"x,y"`)))

	set, err := prefs.Load()

	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, set.Sorted())
}

func TestEncryptedPrefs_WrongKey(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "prefs.db")
	key, err := GenerateKey()
	require.NoError(t, err)

	prefs, err := NewEncryptedPrefs(dbPath, key)
	require.NoError(t, err)
	require.NoError(t, prefs.Save(domain.NewBlockedSet("a")))
	require.NoError(t, prefs.Close())

	otherKey, err := GenerateKey()
	require.NoError(t, err)
	_, err = NewEncryptedPrefs(dbPath, otherKey)
	assert.Error(t, err, "database must not open with a different key")
}

func TestEncryptedPrefs_FileIsNotPlaintext(t *testing.T) {
	prefs := newTestEncryptedPrefs(t)
	require.NoError(t, prefs.Save(domain.NewBlockedSet("com.instagram.android")))

	data, err := os.ReadFile(prefs.Location())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "com.instagram.android")
	assert.NotContains(t, string(data), "SQLite format 3")
}
