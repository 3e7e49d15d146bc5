// Package export writes loaded collections to JSON and CSV files.
//
// Records are the decoded JSON objects returned by collection endpoints.
// CSV output flattens nested objects into dotted column names and orders
// columns with PriorityFields first.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Format is an output file format.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// PriorityFields appear first, in this order, in CSV headers.
var PriorityFields = []string{
	"hostname",
	"licenseNumber",
	"retrievedAt",
	"dataModel",
	"index",
	"id",
	"label",
	"name",
}

// timestampLayout is filesystem safe on every platform.
const timestampLayout = "2006-01-02T15-04-05"

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// DefaultFileName returns {collection}__{license}__{timestamp}.{ext}.
func DefaultFileName(collection, license, ext string, now time.Time) string {
	return fmt.Sprintf("%s__%s__%s.%s",
		sanitize(collection),
		sanitize(license),
		now.Format(timestampLayout),
		strings.TrimPrefix(ext, "."))
}

// CollectionName derives a file-friendly name from an endpoint path,
// e.g. /v2/packages/active becomes packages_active.
func CollectionName(endpoint string) string {
	parts := strings.Split(strings.Trim(endpoint, "/"), "/")
	if len(parts) > 1 && len(parts[0]) > 1 && parts[0][0] == 'v' && strings.Trim(parts[0][1:], "0123456789") == "" {
		parts = parts[1:]
	}
	return sanitize(strings.Join(parts, "_"))
}

func sanitize(s string) string {
	s = unsafeName.ReplaceAllString(strings.TrimSpace(s), "_")
	if s == "" {
		return "unknown"
	}
	return s
}

// Options controls file output.
type Options struct {
	// Dir is the output directory, created when missing (default ".").
	Dir string

	// StripEmpty drops CSV columns that are empty in every record.
	StripEmpty bool

	// Now overrides the file name timestamp.
	Now time.Time
}

// Save writes records to a new file named by DefaultFileName and returns
// its path.
func Save(records []map[string]any, collection, license string, format Format, opts Options) (string, error) {
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	path := filepath.Join(dir, DefaultFileName(collection, license, string(format), now))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	switch format {
	case FormatJSON:
		err = WriteJSON(f, records)
	case FormatCSV:
		err = WriteCSV(f, records, opts.StripEmpty)
	default:
		err = fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		os.Remove(path)
		return "", err
	}

	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}

	log.Info().
		Str("path", path).
		Str("format", string(format)).
		Int("records", len(records)).
		Msg("Collection saved")
	return path, nil
}
