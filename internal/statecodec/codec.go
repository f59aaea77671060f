// Package statecodec serialises the repository's contents to and from
// the byte forms used by the blob store and the URL share token.
//
// Everything it decodes is untrusted input: corrupt JSON, a wrong-typed
// half, or a garbled token all surface as a recognisable error, never a
// panic, and valid partial data keeps whatever half survived.
package statecodec

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/vale-ieu/calendario/internal/models"
)

// State is the serialised snapshot of events and categories.
type State struct {
	Events     []models.Event `json:"events"`
	Categories []models.Category
}

// wireState is the on-the-wire shape: categories travel as the
// name-to-colour object the original storage format uses.
type wireState struct {
	Events     json.RawMessage `json:"events,omitempty"`
	Categories json.RawMessage `json:"categories,omitempty"`
}

// Encode produces the deterministic JSON form of a snapshot. Category
// keys are emitted in sorted order by encoding/json, so equal snapshots
// always encode to equal bytes.
func Encode(events []models.Event, categories []models.Category) ([]byte, error) {
	if events == nil {
		events = []models.Event{}
	}
	payload := struct {
		Events     []models.Event    `json:"events"`
		Categories map[string]string `json:"categories"`
	}{
		Events:     events,
		Categories: models.CategoriesToMap(categories),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("statecodec: encode: %w", err)
	}
	return data, nil
}

// Decode parses a snapshot. A missing half comes back nil so the caller
// can apply its own defaults; a present but wrong-typed half fails the
// whole decode.
func Decode(data []byte) (*State, error) {
	var wire wireState
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("statecodec: decode: %w", err)
	}

	st := &State{}
	if wire.Events != nil {
		var events []models.Event
		if err := json.Unmarshal(wire.Events, &events); err != nil {
			return nil, fmt.Errorf("statecodec: events must be an array: %w", err)
		}
		st.Events = events
	}
	if wire.Categories != nil {
		byName := map[string]string{}
		if err := json.Unmarshal(wire.Categories, &byName); err != nil {
			return nil, fmt.Errorf("statecodec: categories must be an object: %w", err)
		}
		st.Categories = sortedCategories(byName)
	}
	return st, nil
}

// EncodeEvents renders the events half alone, for the blob store.
func EncodeEvents(events []models.Event) ([]byte, error) {
	if events == nil {
		events = []models.Event{}
	}
	data, err := json.Marshal(events)
	if err != nil {
		return nil, fmt.Errorf("statecodec: encode events: %w", err)
	}
	return data, nil
}

// DecodeEvents parses an events blob.
func DecodeEvents(data []byte) ([]models.Event, error) {
	var events []models.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("statecodec: events must be an array: %w", err)
	}
	return events, nil
}

// EncodeCategories renders the categories half alone, as the
// name-to-colour object.
func EncodeCategories(categories []models.Category) ([]byte, error) {
	data, err := json.Marshal(models.CategoriesToMap(categories))
	if err != nil {
		return nil, fmt.Errorf("statecodec: encode categories: %w", err)
	}
	return data, nil
}

// DecodeCategories parses a categories blob into name order.
func DecodeCategories(data []byte) ([]models.Category, error) {
	byName := map[string]string{}
	if err := json.Unmarshal(data, &byName); err != nil {
		return nil, fmt.Errorf("statecodec: categories must be an object: %w", err)
	}
	return sortedCategories(byName), nil
}

// EncodeToken renders a snapshot as a URL-safe share token:
// base64 of the UTF-8 JSON encoding.
func EncodeToken(events []models.Event, categories []models.Category) (string, error) {
	data, err := Encode(events, categories)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(data), nil
}

// DecodeToken reverses EncodeToken. Tokens produced by other encoders
// may use the standard alphabet, so both are accepted.
func DecodeToken(token string) (*State, error) {
	data, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		data, err = base64.StdEncoding.DecodeString(token)
	}
	if err != nil {
		return nil, fmt.Errorf("statecodec: token: %w", err)
	}
	return Decode(data)
}

// Sum returns the hex SHA-256 digest of data. The state watcher uses it
// to tell self-triggered writes apart from external edits.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func sortedCategories(byName map[string]string) []models.Category {
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	cats := make([]models.Category, 0, len(names))
	for _, name := range names {
		cats = append(cats, models.Category{Name: name, Color: byName[name]})
	}
	return cats
}
