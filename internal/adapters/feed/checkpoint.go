package feed

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	json "github.com/goccy/go-json"

	"github.com/okian/sortie/internal/domain/model"
	"github.com/okian/sortie/pkg/fileutil"
)

// Checkpoint persists the time of the last successful run for incremental
// fetches.
type Checkpoint struct {
	path string
}

type checkpointFile struct {
	LastRun time.Time `json:"last_run"`
}

// NewCheckpoint returns a checkpoint stored at path.
func NewCheckpoint(path string) *Checkpoint {
	return &Checkpoint{path: path}
}

// Load returns the recorded time, or the zero time when nothing was recorded.
func (c *Checkpoint) Load() (time.Time, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	var cf checkpointFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return time.Time{}, fmt.Errorf("%w: checkpoint: %w", ErrMalformedFeed, err)
	}
	return cf.LastRun, nil
}

// Save records t.
func (c *Checkpoint) Save(t time.Time) error {
	data, err := json.Marshal(checkpointFile{LastRun: t})
	if err != nil {
		return err
	}
	return fileutil.WriteAtomic(c.path, data, 0o644)
}

// Since keeps events starting at or after last. A zero last keeps all.
func Since(events []model.Event, last time.Time) []model.Event {
	if last.IsZero() {
		return events
	}
	out := make([]model.Event, 0, len(events))
	for _, e := range events {
		if !e.Start.IsZero() && e.Start.Before(last) {
			continue
		}
		out = append(out, e)
	}
	return out
}
