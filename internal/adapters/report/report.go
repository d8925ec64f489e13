// Package report writes the weekly digest to disk.
package report

import (
	"context"
	"fmt"

	"github.com/okian/sortie/pkg/fileutil"
)

// DefaultPath is where the digest is written when none is configured.
const DefaultPath = "reports/weekly_tldr.md"

// Publisher overwrites a fixed markdown file on each run.
type Publisher struct {
	path string
}

// NewPublisher returns a Publisher writing to path.
func NewPublisher(path string) *Publisher {
	if path == "" {
		path = DefaultPath
	}
	return &Publisher{path: path}
}

// Publish atomically replaces the report and returns its path.
func (p *Publisher) Publish(ctx context.Context, markdown string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := fileutil.WriteAtomic(p.path, []byte(markdown), 0o644); err != nil {
		return "", fmt.Errorf("write report %s: %w", p.path, err)
	}
	return p.path, nil
}

// Path returns the report location.
func (p *Publisher) Path() string { return p.path }
