package dictionary

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	jsonrepair "github.com/kaptinlin/jsonrepair"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/mariohealth/marioserve/internal/utils"
)

// Record is one loosely typed entity as it arrives from the data provider.
// Field coercion happens in the source package.
type Record = map[string]any

// Document is the on-disk and on-wire snapshot layout:
//
//	{"version": "...", "terms": [...], "candidates": [...]}
//
// A bare array is read as a list of terms.
type Document struct {
	Version     string    `json:"version,omitempty" msgpack:"version,omitempty"`
	GeneratedAt time.Time `json:"generated_at,omitempty" msgpack:"generated_at,omitempty"`
	Terms       []Record  `json:"terms" msgpack:"terms"`
	Candidates  []Record  `json:"candidates,omitempty" msgpack:"candidates,omitempty"`

	// Repaired is set when malformed JSON had to be repaired to decode
	Repaired bool `json:"-" msgpack:"-"`
	// Dropped counts entries that were not objects and were skipped
	Dropped int `json:"-" msgpack:"-"`
}

var (
	termKeys      = []string{"terms", "vocabulary"}
	candidateKeys = []string{"candidates", "results"}
	recordKeys    = []string{"results", "data", "terms", "candidates"}
)

// ReadFile loads a snapshot from disk, choosing the decoder by extension.
func ReadFile(path string) (*Document, error) {
	format, err := DetectFileFormat(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", path, err)
	}
	doc, err := Decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", path, err)
	}
	log.Debugf("Read snapshot %s: %d terms, %d candidates", path, len(doc.Terms), len(doc.Candidates))
	return doc, nil
}

// WriteFile stores doc at path in the format implied by the extension.
func WriteFile(path string, doc *Document) error {
	format := FormatForPath(path)

	var (
		data []byte
		err  error
	)
	switch format {
	case FormatJSON:
		data, err = json.MarshalIndent(doc, "", "  ")
	case FormatMsgpack:
		data, err = msgpack.Marshal(doc)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create snapshot dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot %s: %w", path, err)
	}
	return nil
}

// Decode parses a full snapshot document.
func Decode(data []byte, format FileFormat) (*Document, error) {
	v, repaired, err := decodeAny(data, format)
	if err != nil {
		return nil, err
	}

	doc := &Document{Repaired: repaired}
	switch root := v.(type) {
	case []any:
		doc.Terms, doc.Dropped = toRecords(root)
	case map[string]any:
		if s, ok := root["version"].(string); ok {
			doc.Version = s
		}
		if s, ok := root["generated_at"].(string); ok {
			if ts, err := time.Parse(time.RFC3339, s); err == nil {
				doc.GeneratedAt = ts
			}
		} else if ts, ok := root["generated_at"].(time.Time); ok {
			doc.GeneratedAt = ts
		}

		var dropped int
		doc.Terms, dropped = toRecords(firstOf(root, termKeys))
		doc.Dropped += dropped
		doc.Candidates, dropped = toRecords(firstOf(root, candidateKeys))
		doc.Dropped += dropped
	default:
		return nil, fmt.Errorf("%w: top level is %T", ErrEmptyPayload, v)
	}
	return doc, nil
}

// DecodeRecords parses an endpoint payload that is either a bare array of
// records or an object carrying them under "results" (or "data", "terms",
// "candidates"). The second return value counts repaired or dropped input.
func DecodeRecords(data []byte, format FileFormat) ([]Record, int, error) {
	v, repaired, err := decodeAny(data, format)
	if err != nil {
		return nil, 0, err
	}

	issues := 0
	if repaired {
		issues++
	}

	var records []Record
	var dropped int
	switch root := v.(type) {
	case []any:
		records, dropped = toRecords(root)
	case map[string]any:
		records, dropped = toRecords(firstOf(root, recordKeys))
	default:
		return nil, issues, fmt.Errorf("%w: top level is %T", ErrEmptyPayload, v)
	}
	return records, issues + dropped, nil
}

func decodeAny(data []byte, format FileFormat) (any, bool, error) {
	if len(data) == 0 {
		return nil, false, ErrEmptyPayload
	}

	var v any
	switch format {
	case FormatMsgpack:
		if err := msgpack.Unmarshal(data, &v); err != nil {
			return nil, false, fmt.Errorf("msgpack: %w", err)
		}
		return normalizeMaps(v), false, nil
	case FormatJSON:
		err := json.Unmarshal(data, &v)
		if err == nil {
			return v, false, nil
		}
		repaired, rerr := jsonrepair.JSONRepair(string(data))
		if rerr != nil {
			return nil, false, fmt.Errorf("json: %w", err)
		}
		if err := json.Unmarshal([]byte(repaired), &v); err != nil {
			return nil, false, fmt.Errorf("json after repair: %w", err)
		}
		log.Warnf("Repaired malformed JSON payload (%d bytes)", len(data))
		return v, true, nil
	default:
		return nil, false, ErrUnknownFormat
	}
}

func firstOf(root map[string]any, keys []string) any {
	for _, k := range keys {
		if v, ok := root[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// toRecords keeps the object entries of an array. A non-array value is
// treated as empty and counted as one dropped entry.
func toRecords(v any) ([]Record, int) {
	if v == nil {
		return nil, 0
	}
	items, ok := v.([]any)
	if !ok {
		log.Debugf("Expected an array of records, got %T; treating as empty", v)
		return nil, 1
	}

	records := make([]Record, 0, len(items))
	dropped := 0
	for _, item := range items {
		if rec, ok := item.(map[string]any); ok {
			records = append(records, rec)
			continue
		}
		dropped++
	}
	if dropped > 0 {
		log.Debugf("Dropped %d non-object entries from record array", dropped)
	}
	return records, dropped
}

// normalizeMaps rewrites map[any]any values, which msgpack produces for
// non-string keys, into map[string]any so both formats look the same.
func normalizeMaps(v any) any {
	switch t := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeMaps(val)
		}
		return out
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeMaps(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = normalizeMaps(val)
		}
		return t
	default:
		return v
	}
}
