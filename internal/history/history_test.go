package history

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	return Open(filepath.Join(t.TempDir(), "history.json"))
}

func readFile(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out []string
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestAdd_NewestFirst(t *testing.T) {
	s := newStore(t)
	require.True(t, s.Add("a"))
	require.True(t, s.Add("b"))
	require.True(t, s.Add("c"))

	assert.Equal(t, []string{"c", "b", "a"}, s.Entries())
	assert.Equal(t, []string{"c", "b", "a"}, readFile(t, s.Path()))
}

func TestAdd_BlankIgnored(t *testing.T) {
	s := newStore(t)
	s.Add("x")

	for _, blank := range []string{"", "   ", "\n\t "} {
		assert.False(t, s.Add(blank), "Add(%q)", blank)
	}
	assert.Equal(t, []string{"x"}, s.Entries())
}

func TestAdd_BlankOnEmptyDoesNotCreateFile(t *testing.T) {
	s := newStore(t)
	s.Add("   ")
	_, err := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestAdd_FrontIsNoop(t *testing.T) {
	s := newStore(t)
	s.Add("a")
	s.Add("b")

	// Remove the file: a no-op Add must not rewrite it.
	require.NoError(t, os.Remove(s.Path()))
	assert.False(t, s.Add("b"))
	assert.Equal(t, []string{"b", "a"}, s.Entries())

	_, err := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err), "front no-op should not persist")
}

func TestAdd_ExistingMovesToFront(t *testing.T) {
	s := newStore(t)
	for _, v := range []string{"a", "b", "c", "d"} {
		s.Add(v)
	}
	require.True(t, s.Add("b"))

	assert.Equal(t, []string{"b", "d", "c", "a"}, s.Entries())
	assert.Equal(t, 4, s.Len())
}

func TestAdd_EqualityNotPrefix(t *testing.T) {
	s := newStore(t)
	s.Add("hello")
	s.Add("hello world")
	assert.Equal(t, []string{"hello world", "hello"}, s.Entries())
}

func TestAdd_TruncatesToLimit(t *testing.T) {
	s := newStore(t)
	for i := range Limit + 5 {
		s.Add(fmt.Sprintf("item-%d", i))
	}

	got := s.Entries()
	require.Len(t, got, Limit)
	assert.Equal(t, fmt.Sprintf("item-%d", Limit+4), got[0])
	assert.Equal(t, "item-5", got[Limit-1])
	assert.Len(t, readFile(t, s.Path()), Limit)
}

func TestAdd_RandomSequencesKeepInvariants(t *testing.T) {
	s := newStore(t)
	r := rand.New(rand.NewPCG(1, 2))
	values := []string{"a", "b", "c", " ", "", "d", "e", "a b", "f"}
	for i := range 40 {
		values = append(values, fmt.Sprintf("v%d", i))
	}

	for range 500 {
		s.Add(values[r.IntN(len(values))])

		got := s.Entries()
		require.LessOrEqual(t, len(got), Limit)
		seen := map[string]bool{}
		for _, e := range got {
			require.False(t, seen[e], "duplicate %q in %v", e, got)
			require.NotEqual(t, "", e)
			require.NotEqual(t, " ", e)
			seen[e] = true
		}
	}
}

func TestPersistReloadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	s := Open(path)
	for _, v := range []string{"one", "two\nlines", `"quoted"`, "ünïcode", "three"} {
		s.Add(v)
	}
	want := s.Entries()

	reloaded := Open(path)
	assert.Equal(t, want, reloaded.Entries())
}

func TestClear(t *testing.T) {
	s := newStore(t)
	s.Add("a")
	s.Add("b")
	s.Clear()

	assert.Empty(t, s.Entries())
	assert.Empty(t, readFile(t, s.Path()))
	_, ok := s.Front()
	assert.False(t, ok)
}

func TestDelete(t *testing.T) {
	s := newStore(t)
	s.Add("a")
	s.Add("b")
	s.Add("c")

	assert.True(t, s.Delete("b"))
	assert.False(t, s.Delete("zzz"))
	assert.Equal(t, []string{"c", "a"}, s.Entries())
	assert.Equal(t, []string{"c", "a"}, readFile(t, s.Path()))
}

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	s := newStore(t)
	assert.Empty(t, s.Entries())
}

func TestLoad_CorruptFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o600))

	s := Open(path)
	assert.Empty(t, s.Entries())

	// Still usable afterwards.
	s.Add("fresh")
	assert.Equal(t, []string{"fresh"}, readFile(t, path))
}

func TestLoad_TruncatesAndNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	var stored []string
	stored = append(stored, "dup", "  ", "dup")
	for i := range Limit + 10 {
		stored = append(stored, fmt.Sprintf("x%d", i))
	}
	data, err := json.Marshal(stored)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	got := Open(path).Entries()
	require.Len(t, got, Limit)
	assert.Equal(t, "dup", got[0])
	assert.Equal(t, "x0", got[1])
}

func TestLoad_ToleratesCommentsAndTrailingCommas(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	body := "[\n  // pinned\n  \"a\",\n  \"b\",\n]\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	assert.Equal(t, []string{"a", "b"}, Open(path).Entries())
}

func TestPersistFailureKeepsMemoryState(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	s := Open(filepath.Join(blocker, "history.json"))
	assert.True(t, s.Add("kept"))
	assert.Equal(t, []string{"kept"}, s.Entries())

	err := s.persist(s.Entries())
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
}

func TestOnChangeReceivesSnapshot(t *testing.T) {
	s := newStore(t)
	var got [][]string
	s.OnChange(func(e []string) { got = append(got, e) })

	s.Add("a")
	s.Add("a")
	s.Add("b")
	s.Clear()

	require.Len(t, got, 3)
	assert.Equal(t, []string{"a"}, got[0])
	assert.Equal(t, []string{"b", "a"}, got[1])
	assert.Empty(t, got[2])
}

func TestConcurrentAdds(t *testing.T) {
	s := newStore(t)
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Add(fmt.Sprintf("c%d", i%30))
			_ = s.Entries()
		}()
	}
	wg.Wait()

	got := s.Entries()
	assert.LessOrEqual(t, len(got), Limit)
	assert.Equal(t, got, readFile(t, s.Path()))
}

func TestAdd_InvalidUTF8SurvivesReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	s := Open(path)
	require.True(t, s.Add("abc\xff"))
	require.True(t, s.Add("other"))
	assert.Equal(t, []string{"other", "abc\uFFFD"}, s.Entries())

	reopened := Open(path)
	assert.Equal(t, s.Entries(), reopened.Entries())

	// The raw bytes and the normalized text are the same entry.
	require.True(t, reopened.Add("abc\xff"))
	assert.Equal(t, []string{"abc\uFFFD", "other"}, reopened.Entries())
	assert.True(t, reopened.Delete("abc\xff"))
	assert.Equal(t, []string{"other"}, reopened.Entries())
}
