// Package legacy reads the flat serialized chunk list produced by older
// deployments, so its contents can be migrated into the metadata store.
package legacy

import (
	"encoding/json"
	"fmt"
	"os"
)

// DefaultDocID is assigned to entries that carry no document id of their own.
const DefaultDocID = "legacy"

// Entry is a single chunk from a legacy list.
type Entry struct {
	Text  string
	DocID string
}

// rawEntry accepts both historical shapes: a bare string, or an object with
// text and an optional docId.
type rawEntry struct {
	Text  string `json:"text"`
	DocID string `json:"docId"`
}

// Load reads a legacy chunk list from path. The file must hold a JSON array
// whose elements are either strings or {"text": ..., "docId": ...} objects.
//
// Malformed elements are skipped and counted in the second return value
// rather than failing the whole load. A missing file surfaces as an
// *os.PathError satisfying os.IsNotExist.
func Load(path string) ([]Entry, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0, fmt.Errorf("parse legacy list: %w", err)
	}

	entries := make([]Entry, 0, len(raw))
	skipped := 0

	for _, msg := range raw {
		entry, ok := decode(msg)
		if !ok {
			skipped++
			continue
		}
		entries = append(entries, entry)
	}
	return entries, skipped, nil
}

func decode(msg json.RawMessage) (Entry, bool) {
	var text string
	if err := json.Unmarshal(msg, &text); err == nil {
		if text == "" {
			return Entry{}, false
		}
		return Entry{Text: text, DocID: DefaultDocID}, true
	}

	var obj rawEntry
	if err := json.Unmarshal(msg, &obj); err != nil || obj.Text == "" {
		return Entry{}, false
	}
	if obj.DocID == "" {
		obj.DocID = DefaultDocID
	}
	return Entry{Text: obj.Text, DocID: obj.DocID}, true
}
