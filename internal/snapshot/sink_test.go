package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWriteAndOverwrite(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	sink, err := NewFSSink(Config{Dir: dir}, zap.NewNop())
	require.NoError(t, err)

	snap := Snapshot{
		SourceURL: "https://jobs.example/vaga/contabilista",
		RawHTML:   "<html>v1</html>",
		FetchedAt: time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, sink.Write(snap))

	snap.RawHTML = "<html>v2</html>"
	require.NoError(t, sink.Write(snap))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	var got Snapshot
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, "<html>v2</html>", got.RawHTML)
	require.Equal(t, snap.SourceURL, got.SourceURL)
}

func TestWriteTruncatesOversizedPages(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	sink, err := NewFSSink(Config{Dir: dir, MaxBytes: 16}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, sink.Write(Snapshot{
		SourceURL: "https://jobs.example/vaga/1",
		RawHTML:   strings.Repeat("x", 1_000),
	}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	var got Snapshot
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got.RawHTML, 16)
}

func TestWriteSkipsEmptyPages(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	sink, err := NewFSSink(Config{Dir: dir}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, sink.Write(Snapshot{SourceURL: "https://jobs.example/vaga/1"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestFileNameIsFilesystemSafe(t *testing.T) {
	t.Parallel()

	name := fileName("https://jobs.example/vaga/contabilista?ref=1#x")
	require.NotContains(t, name, "/")
	require.NotContains(t, name, "?")
	require.True(t, strings.HasSuffix(name, ".json"))
}
