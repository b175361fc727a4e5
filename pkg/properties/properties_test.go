package properties

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/core-tools/hsu-gamesrv/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	root := t.TempDir()
	return NewStore(func(id string) string {
		return filepath.Join(root, "servers", id, "server.properties")
	})
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestParse(t *testing.T) {
	raw := "#Minecraft server properties\r\n" +
		"server-port=25565\r\n" +
		"\n" +
		"  motd = Hello = World  \n" +
		"=orphan\n" +
		"no-separator\n" +
		"level-seed=\n" +
		"   # indented comment\n" +
		"server-port=25566\n"

	m := Parse(raw)

	assert.Equal(t, []string{"server-port", "motd", "level-seed"}, m.Keys())
	port, _ := m.Get("server-port")
	assert.Equal(t, "25566", port)
	motd, _ := m.Get("motd")
	assert.Equal(t, "Hello = World", motd)
	seed, ok := m.Get("level-seed")
	assert.True(t, ok)
	assert.Equal(t, "", seed)
}

func TestSerialize(t *testing.T) {
	m := NewMap()
	m.Set("b", "2")
	m.Set("a", "1")

	assert.Equal(t, "b=2\na=1\n", Serialize(m))
	assert.Equal(t, "\n", Serialize(NewMap()))
}

func TestStore_ReadMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Read("ghost")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestStore_UpdateRoundTrip(t *testing.T) {
	store := newTestStore(t)
	writeFile(t, store.Path("alpha"), "motd=Hi\nmax-players=20\n")

	_, changed, err := store.Update("alpha", map[string]string{"a": "1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, changed)

	_, changed, err = store.Update("alpha", map[string]string{"a": "1"})
	require.NoError(t, err)
	assert.Empty(t, changed)

	result, changed, err := store.Update("alpha", map[string]string{"a": "2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, changed)
	value, _ := result.Get("a")
	assert.Equal(t, "2", value)

	reread, err := store.Read("alpha")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"motd": "Hi", "max-players": "20", "a": "2"}, reread.ToMap())
	assert.Equal(t, []string{"motd", "max-players", "a"}, reread.Keys())
}

func TestStore_UpdateWithoutChangesDoesNotRewrite(t *testing.T) {
	store := newTestStore(t)
	original := "# comment kept\nmotd=Hi\n"
	writeFile(t, store.Path("alpha"), original)

	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(store.Path("alpha"), old, old))

	_, changed, err := store.Update("alpha", map[string]string{"motd": "Hi"})
	require.NoError(t, err)
	assert.Empty(t, changed)

	data, err := os.ReadFile(store.Path("alpha"))
	require.NoError(t, err)
	assert.Equal(t, original, string(data))

	info, err := os.Stat(store.Path("alpha"))
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(old), "file must not be rewritten")
}

func TestStore_UpdateReportsSortedChangedKeys(t *testing.T) {
	store := newTestStore(t)
	writeFile(t, store.Path("alpha"), "pvp=true\ndifficulty=normal\n")

	_, changed, err := store.Update("alpha", map[string]string{
		"pvp":          "false",
		"difficulty":   "normal",
		"allow-nether": "true",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"allow-nether", "pvp"}, changed)
}

func TestStore_UpdateMissingFile(t *testing.T) {
	store := newTestStore(t)

	_, _, err := store.Update("ghost", map[string]string{"a": "1"})
	assert.True(t, errors.IsNotFoundError(err))
}

func TestStore_ConcurrentUpdatesKeepEveryKey(t *testing.T) {
	store := newTestStore(t)
	writeFile(t, store.Path("alpha"), "motd=Hi\n")

	const writers = 20
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := store.Update("alpha", map[string]string{fmt.Sprintf("k%d", i): "v"})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	m, err := store.Read("alpha")
	require.NoError(t, err)
	assert.Equal(t, writers+1, m.Len())
	for i := 0; i < writers; i++ {
		value, ok := m.Get(fmt.Sprintf("k%d", i))
		assert.True(t, ok, "k%d", i)
		assert.Equal(t, "v", value)
	}

	entries, err := os.ReadDir(filepath.Dir(store.Path("alpha")))
	require.NoError(t, err)
	for _, entry := range entries {
		assert.NotContains(t, entry.Name(), ".tmp", "temporary file left behind")
	}
}

func TestStore_Modify(t *testing.T) {
	store := newTestStore(t)

	_, _, err := store.Modify("alpha", false, func(m *Map) []string { return nil })
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))

	m, changed, err := store.Modify("alpha", true, func(m *Map) []string {
		m.Set("server-port", "25565")
		return []string{"server-port"}
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"server-port"}, changed)
	assert.Equal(t, 1, m.Len())

	data, err := os.ReadFile(store.Path("alpha"))
	require.NoError(t, err)
	assert.Equal(t, "server-port=25565\n", string(data))

	// no changes, no rewrite
	info, err := os.Stat(store.Path("alpha"))
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	_, changed, err = store.Modify("alpha", true, func(m *Map) []string { return nil })
	require.NoError(t, err)
	assert.Empty(t, changed)
	after, err := os.Stat(store.Path("alpha"))
	require.NoError(t, err)
	assert.Equal(t, info.ModTime(), after.ModTime())
}

func TestValidateEntry(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		valid bool
	}{
		{name: "plain", key: "motd", value: "Hello world", valid: true},
		{name: "empty value", key: "level-seed", value: "", valid: true},
		{name: "value with separator", key: "motd", value: "a=b", valid: true},
		{name: "empty key", key: "  ", value: "x"},
		{name: "key with separator", key: "a=b", value: "x"},
		{name: "comment key", key: "#motd", value: "x"},
		{name: "padded key", key: " motd", value: "x"},
		{name: "line break in value", key: "motd", value: "a\nb"},
		{name: "padded value", key: "motd", value: " x "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEntry(tt.key, tt.value)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.IsValidationError(err))
			}
		})
	}
}
