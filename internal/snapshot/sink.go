// Package snapshot archives raw page HTML for postings the extraction
// tiers could not turn into a record, so they can be processed manually
// or replayed offline later.
package snapshot

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Snapshot is one archived page.
type Snapshot struct {
	SourceURL string    `json:"source_url"`
	RawHTML   string    `json:"raw_html"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Config controls the sink.
type Config struct {
	Dir string
	// MaxBytes truncates oversized pages; zero means no limit.
	MaxBytes int
}

// FSSink writes snapshots as JSON files under a directory.
type FSSink struct {
	cfg    Config
	logger *zap.Logger
}

// NewFSSink builds the sink and ensures the directory exists.
func NewFSSink(cfg Config, logger *zap.Logger) (*FSSink, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot: creating dir: %w", err)
	}
	return &FSSink{cfg: cfg, logger: logger}, nil
}

// Write archives one page. The filename is derived from the URL so a
// replayed page overwrites its previous snapshot instead of piling up.
func (s *FSSink) Write(snap Snapshot) error {
	if snap.SourceURL == "" || snap.RawHTML == "" {
		return nil
	}
	if s.cfg.MaxBytes > 0 && len(snap.RawHTML) > s.cfg.MaxBytes {
		snap.RawHTML = snap.RawHTML[:s.cfg.MaxBytes]
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("snapshot: encoding %s: %w", snap.SourceURL, err)
	}
	path := filepath.Join(s.cfg.Dir, fileName(snap.SourceURL))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("snapshot: writing %s: %w", path, err)
	}
	s.logger.Debug("snapshot written",
		zap.String("url", snap.SourceURL), zap.String("path", path))
	return nil
}

// fileName builds a readable, collision-resistant name from a URL: the
// sanitized URL tail plus a short hash of the full URL.
func fileName(url string) string {
	base := safeBasename(url)
	if len(base) > 80 {
		base = base[:80]
	}
	h := fnv.New32a()
	h.Write([]byte(url))
	return fmt.Sprintf("%s-%08x.json", base, h.Sum32())
}

func safeBasename(url string) string {
	url = strings.TrimPrefix(url, "https://")
	url = strings.TrimPrefix(url, "http://")
	var b strings.Builder
	for _, r := range url {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
