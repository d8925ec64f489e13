package feed

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/okian/sortie/internal/domain/model"
)

// FileSource reads a local CSV or JSON export.
type FileSource struct {
	path string
	loc  *time.Location
}

// NewFileSource returns a source for path. A nil loc means UTC.
func NewFileSource(path string, loc *time.Location) *FileSource {
	if loc == nil {
		loc = time.UTC
	}
	return &FileSource{path: path, loc: loc}
}

// Fetch decodes the file, choosing the decoder by extension.
func (s *FileSource) Fetch(ctx context.Context) ([]model.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	format, ok := FormatOf("", s.path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, s.path)
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer f.Close()
	return Decode(f, format, s.loc)
}
