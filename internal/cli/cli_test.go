package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booklib/internal/tree"
)

func fb2(title, author, genre string) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="utf-8"?>`)
	sb.WriteString(`<FictionBook><description><title-info>`)
	fmt.Fprintf(&sb, "<genre>%s</genre>", genre)
	fmt.Fprintf(&sb, "<author><first-name>Leo</first-name><last-name>%s</last-name></author>", author)
	fmt.Fprintf(&sb, "<book-title>%s</book-title><lang>en</lang>", title)
	sb.WriteString(`</title-info></description><body><section><p>text</p></section></body></FictionBook>`)
	return sb.String()
}

type testEnv struct {
	envDir   string
	booksDir string
}

// newTestEnv points the configuration at a fresh books and database
// directory. Tests using it cannot run in parallel.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	root := t.TempDir()
	env := &testEnv{
		envDir:   filepath.Join(root, "env"),
		booksDir: filepath.Join(root, "books"),
	}
	require.NoError(t, os.MkdirAll(env.envDir, 0o755))
	require.NoError(t, os.MkdirAll(env.booksDir, 0o755))

	t.Setenv("BOOKS_DIR", env.booksDir)
	t.Setenv("DATABASE_DIR", filepath.Join(root, "data"))
	t.Setenv("LOCALE", "en")

	env.write(t, "war.fb2", fb2("War and Peace", "Tolstoy", "prose_classic"))
	env.write(t, "anna.fb2", fb2("Anna Karenina", "Tolstoy", "love_history"))
	return env
}

func (e *testEnv) write(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(e.booksDir, name), []byte(content), 0o644))
}

func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--env-dir", e.envDir}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	require.NoError(t, err, "booklib %s", strings.Join(args, " "))
	return out
}

func (e *testEnv) view(t *testing.T, args ...string) *tree.View {
	t.Helper()
	var v tree.View
	require.NoError(t, json.Unmarshal([]byte(e.mustRun(t, append(args, "-o", "json")...)), &v))
	return &v
}

// bookID finds the catalog id of the book titled title.
func (e *testEnv) bookID(t *testing.T, title string) string {
	t.Helper()
	for _, child := range e.view(t, "tree", tree.ByTitle).Children {
		if child.Name == title {
			return strconv.FormatInt(child.BookID, 10)
		}
	}
	t.Fatalf("no book titled %q", title)
	return ""
}

func TestVersionCommand(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, "version")
	assert.Contains(t, out, "booklib version dev")
	assert.Contains(t, out, "go version:")

	var info map[string]string
	require.NoError(t, yaml.Unmarshal([]byte(env.mustRun(t, "version", "-o", "yaml")), &info))
	assert.Equal(t, "dev", info["version"])
}

func TestScanCommand(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, "scan")
	// Two files plus the built-in help book.
	assert.Contains(t, out, "Books:     3")
	assert.Contains(t, out, "Authors:   2")

	var stats map[string]int
	require.NoError(t, json.Unmarshal([]byte(env.mustRun(t, "scan", "-o", "json")), &stats))
	assert.Equal(t, 3, stats["totalBooks"])
}

func TestUnknownOutputFormat(t *testing.T) {
	env := newTestEnv(t)

	for _, args := range [][]string{
		{"scan", "-o", "xml"},
		{"tree", "-o", "toml"},
		{"version", "-o", "csv"},
	} {
		_, err := env.run(t, args...)
		assert.ErrorContains(t, err, "unknown output format", args)
	}
}

func TestTreeCommand(t *testing.T) {
	env := newTestEnv(t)

	t.Run("categories", func(t *testing.T) {
		v := env.view(t, "tree")
		var ids []string
		for _, c := range v.Children {
			ids = append(ids, c.ID)
		}
		assert.Contains(t, ids, tree.ByAuthor)
		assert.Contains(t, ids, tree.ByTitle)
		assert.Contains(t, ids, tree.FileTree)
	})

	t.Run("text", func(t *testing.T) {
		out := env.mustRun(t, "tree", tree.ByTitle)
		assert.Contains(t, out, "War and Peace by Leo Tolstoy")
		assert.Contains(t, out, "Anna Karenina by Leo Tolstoy")
	})

	t.Run("yaml", func(t *testing.T) {
		var v tree.View
		require.NoError(t, yaml.Unmarshal([]byte(env.mustRun(t, "tree", tree.ByTitle, "-o", "yaml")), &v))
		assert.Equal(t, tree.ByTitle, v.ID)
		assert.Equal(t, 3, v.ChildCount)
		assert.Len(t, v.Children, 3)
	})

	t.Run("depth", func(t *testing.T) {
		shallow := env.view(t, "tree", "--depth", "0")
		assert.Empty(t, shallow.Children)
		assert.NotZero(t, shallow.ChildCount)
	})

	t.Run("file tree", func(t *testing.T) {
		v := env.view(t, "tree", tree.FileTree, filepath.Base(env.booksDir))
		assert.Equal(t, 2, v.ChildCount)
	})

	t.Run("missing node", func(t *testing.T) {
		_, err := env.run(t, "tree", "noSuchCategory")
		assert.ErrorContains(t, err, "no tree node")
	})
}

func TestSearchCommand(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, "search", "karenina")
	assert.Contains(t, out, "Anna Karenina")
	assert.NotContains(t, out, "War and Peace")

	found := env.view(t, "search", "TOLSTOY")
	assert.Equal(t, tree.Found, found.ID)
	assert.Equal(t, 2, found.ChildCount)

	out = env.mustRun(t, "search", "dostoevsky")
	assert.Contains(t, out, `No books match "dostoevsky"`)

	empty := env.view(t, "search", "dostoevsky")
	assert.Zero(t, empty.ChildCount)
	assert.Equal(t, "dostoevsky", empty.Pattern)
}

func TestFavoritesCommands(t *testing.T) {
	env := newTestEnv(t)
	war := filepath.Join(env.booksDir, "war.fb2")

	assert.Contains(t, env.mustRun(t, "favorites", "add", war), "Added War and Peace")
	assert.Contains(t, env.mustRun(t, "favorites", "add", war), "already a favorite")

	list := env.view(t, "favorites", "list")
	require.Len(t, list.Children, 1)
	assert.Equal(t, "War and Peace", list.Children[0].Name)

	id := env.bookID(t, "War and Peace")
	assert.Contains(t, env.mustRun(t, "favorites", "remove", id), "Removed War and Peace")
	assert.Contains(t, env.mustRun(t, "favorites", "remove", id), "is not a favorite")
	assert.Zero(t, env.view(t, "favorites", "list").ChildCount)
}

func TestRecentCommands(t *testing.T) {
	env := newTestEnv(t)

	war := env.bookID(t, "War and Peace")
	anna := env.bookID(t, "Anna Karenina")
	env.mustRun(t, "recent", "add", war)
	env.mustRun(t, "recent", "add", anna)
	env.mustRun(t, "recent", "add", war)

	recent := env.view(t, "recent")
	require.Len(t, recent.Children, 2)
	assert.Equal(t, "War and Peace", recent.Children[0].Name)
	assert.Equal(t, "Anna Karenina", recent.Children[1].Name)
}

func TestUnknownBook(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "favorites", "add", "999999")
	assert.ErrorIs(t, err, errNoSuchBook)

	_, err = env.run(t, "recent", "add", filepath.Join(env.booksDir, "missing.fb2"))
	assert.ErrorIs(t, err, errNoSuchBook)
}

func TestRemoveCommand(t *testing.T) {
	env := newTestEnv(t)
	anna := filepath.Join(env.booksDir, "anna.fb2")
	env.mustRun(t, "favorites", "add", anna)

	out := env.mustRun(t, "remove", "--disk", anna)
	assert.Contains(t, out, "Removed Anna Karenina")
	assert.NoFileExists(t, anna)

	assert.Zero(t, env.view(t, "favorites", "list").ChildCount)
	assert.Contains(t, env.mustRun(t, "scan"), "Books:     2")
}

func TestRemoveKeepsFileByDefault(t *testing.T) {
	env := newTestEnv(t)
	war := filepath.Join(env.booksDir, "war.fb2")

	env.mustRun(t, "remove", env.bookID(t, "War and Peace"))
	assert.FileExists(t, war)
}

func TestDBCommands(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, "db", "status")
	assert.Contains(t, out, "Last build: never")

	env.mustRun(t, "favorites", "add", filepath.Join(env.booksDir, "war.fb2"))

	var st CatalogStatus
	require.NoError(t, yaml.Unmarshal([]byte(env.mustRun(t, "db", "status", "-o", "yaml")), &st))
	assert.False(t, st.NeverBuilt)
	assert.GreaterOrEqual(t, st.Books, 2)
	assert.Equal(t, 1, st.Favorites)
	assert.Positive(t, st.SizeBytes)

	assert.Contains(t, env.mustRun(t, "db", "vacuum"), "Vacuumed")
}
