package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mozjobs/harvester/internal/harvest"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	return Config{
		Dir:            dir,
		CategoriesFile: filepath.Join(dir, "categories.json"),
		LocationsFile:  filepath.Join(dir, "locations.json"),
	}
}

func record(url, title string) harvest.JobRecord {
	return harvest.JobRecord{SourceURL: url, Title: title}
}

func TestUpsertAndRoundTrip(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)

	s, err := Open(cfg, "emprego", zap.NewNop())
	require.NoError(t, err)
	require.Zero(t, s.Count())

	added, err := s.Upsert(record("https://a.example/vaga/1", "Contabilista"))
	require.NoError(t, err)
	require.True(t, added)
	added, err = s.Upsert(record("https://a.example/vaga/1", "Contabilista Senior"))
	require.NoError(t, err)
	require.False(t, added)
	require.NoError(t, s.Save())

	reopened, err := Open(cfg, "emprego", zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, 1, reopened.Count())
	// Upsert of the same URL keeps only the newest record.
	require.Contains(t, reopened.KnownURLs(), "https://a.example/vaga/1")
	vocabCheck := reopened.records["https://a.example/vaga/1"]
	require.Equal(t, "Contabilista Senior", vocabCheck.Title)
}

func TestUpsertRejectsMissingSourceURL(t *testing.T) {
	t.Parallel()

	s, err := Open(testConfig(t), "emprego", zap.NewNop())
	require.NoError(t, err)
	_, err = s.Upsert(harvest.JobRecord{Title: "sem url"})
	require.Error(t, err)
}

func TestCorruptJobsFileStartsEmpty(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)

	path := filepath.Join(cfg.Dir, "emprego_jobs.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s, err := Open(cfg, "emprego", zap.NewNop())
	require.NoError(t, err)
	require.Zero(t, s.Count())
}

func TestSaveMergesWithDiskState(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)

	first, err := Open(cfg, "emprego", zap.NewNop())
	require.NoError(t, err)
	_, err = first.Upsert(record("https://a.example/vaga/1", "um"))
	require.NoError(t, err)

	// A second handle saves a different record before the first saves.
	second, err := Open(cfg, "emprego", zap.NewNop())
	require.NoError(t, err)
	_, err = second.Upsert(record("https://a.example/vaga/2", "dois"))
	require.NoError(t, err)
	require.NoError(t, second.Save())

	require.NoError(t, first.Save())

	reopened, err := Open(cfg, "emprego", zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, 2, reopened.Count())
}

func TestSaveWithoutChangesWritesNothing(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)

	s, err := Open(cfg, "emprego", zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Save())
	require.NoFileExists(t, filepath.Join(cfg.Dir, "emprego_jobs.json"))

	// A save after an upsert writes; an immediate second save does not
	// touch the file again.
	_, err = s.Upsert(record("https://a.example/vaga/1", "um"))
	require.NoError(t, err)
	require.NoError(t, s.Save())

	path := filepath.Join(cfg.Dir, "emprego_jobs.json")
	before, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Chtimes(path, before.ModTime().Add(-time.Hour), before.ModTime().Add(-time.Hour)))
	require.NoError(t, s.Save())
	after, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, before.ModTime().Add(-time.Hour), after.ModTime())
}

func TestVocabularyGrowsAndStaysSorted(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)

	s, err := Open(cfg, "emprego", zap.NewNop())
	require.NoError(t, err)
	for _, r := range []harvest.JobRecord{
		{SourceURL: "https://a.example/vaga/1", Category: "Logistica", Location: "Maputo"},
		{SourceURL: "https://a.example/vaga/2", Category: "Contabilidade", Location: "Beira"},
		{SourceURL: "https://a.example/vaga/3", Category: "Contabilidade", Location: "Maputo"},
	} {
		_, err := s.Upsert(r)
		require.NoError(t, err)
	}
	require.NoError(t, s.Save())

	vocab := s.Vocabulary()
	require.Equal(t, []string{"Contabilidade", "Logistica"}, vocab.Categories)
	require.Equal(t, []string{"Beira", "Maputo"}, vocab.Locations)

	var onDisk []string
	data, err := os.ReadFile(cfg.CategoriesFile)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &onDisk))
	require.Equal(t, vocab.Categories, onDisk)
}

func TestVocabularySharedAcrossSites(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)

	first, err := Open(cfg, "emprego", zap.NewNop())
	require.NoError(t, err)
	_, err = first.Upsert(harvest.JobRecord{SourceURL: "https://a.example/vaga/1", Category: "Logistica"})
	require.NoError(t, err)
	require.NoError(t, first.Save())

	other, err := Open(cfg, "unjobs", zap.NewNop())
	require.NoError(t, err)
	vocab := other.Vocabulary()
	require.Contains(t, vocab.Categories, "Logistica")
}
