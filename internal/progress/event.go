// Package progress defines the event structures emitted by harvest runs.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart Stage = "RUN_START"
	StageRunDone  Stage = "RUN_DONE"
	StageRunError Stage = "RUN_ERROR"
	StageItemDone Stage = "ITEM_DONE"
)

// Outcome classifies how one detail page ended up.
type Outcome string

// Supported item outcomes.
const (
	OutcomeExtracted      Outcome = "extracted"
	OutcomeSkipExpired    Outcome = "skipped_expired"
	OutcomeSkipFetchError Outcome = "skipped_fetch_error"
	OutcomeSkipEmpty      Outcome = "skipped_empty"
	OutcomeFailed         Outcome = "failed"
)

// Event captures a single milestone of a harvest run.
type Event struct {
	// RunID uniquely identifies a run using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// Site names the harvested site.
	Site string
	// URL is the optional detail-page URL.
	URL string
	// Outcome classifies ITEM_DONE events.
	Outcome Outcome
	// Dur captures latency for items and run completions.
	Dur time.Duration
	// Note lets emitters attach low-volume context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	if e.Site == "" {
		return errors.New("site is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError:
	case StageItemDone:
		if e.Outcome == "" {
			return errors.New("item done requires outcome")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// NewRunID generates a fresh run identifier.
func NewRunID() [16]byte {
	id := uuid.New()
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

// RunUUID converts the binary run ID back to uuid.UUID for display.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}
