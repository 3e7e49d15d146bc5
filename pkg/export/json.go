package export

import (
	"encoding/json"
	"fmt"
	"io"
)

// WriteJSON writes records as an indented JSON array.
func WriteJSON(w io.Writer, records []map[string]any) error {
	if records == nil {
		records = []map[string]any{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
