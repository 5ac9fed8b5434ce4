// Package store persists harvested job records as flat JSON files, one
// per site, plus shared vocabulary files for categories and locations.
// Records are keyed by normalized source URL.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/mozjobs/harvester/internal/harvest"
)

// Config locates the data files.
type Config struct {
	Dir            string
	CategoriesFile string
	LocationsFile  string
}

// Store holds one site's records in memory between Open and Save.
// It is not safe for concurrent use.
type Store struct {
	cfg     Config
	site    string
	logger  *zap.Logger
	records map[string]harvest.JobRecord
	dirty   map[string]struct{}
}

// Open loads the site's jobs file. A missing file starts empty; a corrupt
// file is logged and treated as empty rather than aborting the run.
func Open(cfg Config, siteName string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: creating data dir: %w", err)
	}
	s := &Store{
		cfg:     cfg,
		site:    siteName,
		logger:  logger,
		records: make(map[string]harvest.JobRecord),
		dirty:   make(map[string]struct{}),
	}
	loaded, err := s.loadJobsFile()
	if err != nil {
		return nil, err
	}
	s.records = loaded
	return s, nil
}

func (s *Store) jobsPath() string {
	return filepath.Join(s.cfg.Dir, s.site+"_jobs.json")
}

func (s *Store) loadJobsFile() (map[string]harvest.JobRecord, error) {
	records := make(map[string]harvest.JobRecord)
	data, err := os.ReadFile(s.jobsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return records, nil
		}
		return nil, fmt.Errorf("store: reading %s: %w", s.jobsPath(), err)
	}
	var list []harvest.JobRecord
	if err := json.Unmarshal(data, &list); err != nil {
		s.logger.Warn("jobs file is corrupt, starting empty",
			zap.String("path", s.jobsPath()), zap.Error(err))
		return records, nil
	}
	for _, record := range list {
		if record.SourceURL == "" {
			continue
		}
		records[record.SourceURL] = record
	}
	return records, nil
}

// Count returns the number of records currently held.
func (s *Store) Count() int {
	return len(s.records)
}

// KnownURLs returns the set of source URLs already stored, for the
// discoverer to skip.
func (s *Store) KnownURLs() map[string]struct{} {
	known := make(map[string]struct{}, len(s.records))
	for url := range s.records {
		known[url] = struct{}{}
	}
	return known
}

// Upsert stores a record under its source URL. The incoming record wholly
// replaces any previous one; the newest harvest is the truth. It reports
// whether the URL was new.
func (s *Store) Upsert(record harvest.JobRecord) (bool, error) {
	if record.SourceURL == "" {
		return false, fmt.Errorf("store: record without source_url")
	}
	_, existed := s.records[record.SourceURL]
	s.records[record.SourceURL] = record
	s.dirty[record.SourceURL] = struct{}{}
	return !existed, nil
}

// Vocabulary projects the distinct categories and locations out of the
// held records, merged with the shared vocabulary files so terms learned
// from other sites bias extraction here too.
func (s *Store) Vocabulary() harvest.Vocabulary {
	categories := make(map[string]struct{})
	locations := make(map[string]struct{})
	for _, record := range s.records {
		addTerm(categories, record.Category)
		addTerm(locations, record.Location)
	}
	for _, term := range readTermFile(s.cfg.CategoriesFile) {
		addTerm(categories, term)
	}
	for _, term := range readTermFile(s.cfg.LocationsFile) {
		addTerm(locations, term)
	}
	return harvest.Vocabulary{
		Categories: sortedTerms(categories),
		Locations:  sortedTerms(locations),
	}
}

// Save writes the jobs file and the vocabulary files. A store with no
// upserts since the last save writes nothing. The jobs file on disk is
// re-read first and merged under our records, so two sequential runs
// against different sites never clobber each other's rows; for a URL
// present in both, the in-memory record wins.
func (s *Store) Save() error {
	if len(s.dirty) == 0 {
		return nil
	}
	onDisk, err := s.loadJobsFile()
	if err != nil {
		return err
	}
	for url, record := range s.records {
		onDisk[url] = record
	}
	s.records = onDisk

	list := make([]harvest.JobRecord, 0, len(onDisk))
	for _, record := range onDisk {
		list = append(list, record)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].SourceURL < list[j].SourceURL })

	if err := writeJSONAtomic(s.jobsPath(), list); err != nil {
		return err
	}
	if err := s.saveVocabularyFiles(); err != nil {
		return err
	}
	s.dirty = make(map[string]struct{})
	s.logger.Info("store saved",
		zap.String("site", s.site),
		zap.String("path", s.jobsPath()),
		zap.Int("records", len(list)))
	return nil
}

func (s *Store) saveVocabularyFiles() error {
	vocab := s.Vocabulary()
	if s.cfg.CategoriesFile != "" {
		if err := writeJSONAtomic(s.cfg.CategoriesFile, vocab.Categories); err != nil {
			return err
		}
	}
	if s.cfg.LocationsFile != "" {
		if err := writeJSONAtomic(s.cfg.LocationsFile, vocab.Locations); err != nil {
			return err
		}
	}
	return nil
}

func addTerm(set map[string]struct{}, term string) {
	term = strings.TrimSpace(term)
	if term != "" {
		set[term] = struct{}{}
	}
}

func sortedTerms(set map[string]struct{}) []string {
	terms := make([]string, 0, len(set))
	for term := range set {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

// readTermFile loads a vocabulary file, tolerating absence and corruption.
func readTermFile(path string) []string {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var terms []string
	if err := json.Unmarshal(data, &terms); err != nil {
		return nil
	}
	return terms
}

// writeJSONAtomic writes via a temp file and rename so a crash mid-write
// never leaves a truncated data file behind.
func writeJSONAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encoding %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("store: creating dir for %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("store: temp file for %s: %w", path, err)
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("store: writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store: closing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store: replacing %s: %w", path, err)
	}
	return nil
}
