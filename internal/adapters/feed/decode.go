package feed

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/okian/sortie/internal/domain/model"
)

// Format of a dataset resource.
type Format string

// Supported formats.
const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// FormatOf guesses the format from a declared format or a path suffix.
func FormatOf(declared, path string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(declared)) {
	case "csv":
		return FormatCSV, true
	case "json":
		return FormatJSON, true
	}
	p := strings.ToLower(path)
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	switch {
	case strings.HasSuffix(p, ".csv"):
		return FormatCSV, true
	case strings.HasSuffix(p, ".json"):
		return FormatJSON, true
	}
	return "", false
}

// Decode reads events in the given format.
func Decode(r io.Reader, f Format, loc *time.Location) ([]model.Event, error) {
	switch f {
	case FormatCSV:
		return DecodeCSV(r, loc)
	case FormatJSON:
		return DecodeJSON(r, loc)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
	}
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeCSV reads a CSV export with a header row. Unknown columns are ignored.
func DecodeCSV(r io.Reader, loc *time.Location) ([]model.Event, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrMalformedFeed, err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	var out []model.Event
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrMalformedFeed, line, err)
		}
		rec := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(row) {
				rec[col] = row[i]
			}
		}
		out = append(out, FromRecord(rec, loc))
	}
	return out, nil
}

// DecodeJSON reads either an array of row objects or an object holding
// them under "records".
func DecodeJSON(r io.Reader, loc *time.Location) ([]model.Event, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFeed, err)
	}
	data = bytes.TrimPrefix(bytes.TrimSpace(data), utf8BOM)
	if len(data) == 0 {
		return nil, nil
	}

	var rows []map[string]any
	if data[0] == '{' {
		var wrapped struct {
			Records []map[string]any `json:"records"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedFeed, err)
		}
		rows = wrapped.Records
	} else if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFeed, err)
	}

	out := make([]model.Event, 0, len(rows))
	for _, row := range rows {
		rec := make(map[string]string, len(row))
		for k, v := range row {
			rec[strings.ToLower(k)] = stringify(v)
		}
		out = append(out, FromRecord(rec, loc))
	}
	return out, nil
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// EncodeCSV writes events in the dataset's column layout.
func EncodeCSV(w io.Writer, events []model.Event) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for i := range events {
		if err := cw.Write(ToRecord(&events[i])); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
