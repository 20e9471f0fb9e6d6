// internal/words/words.go
//
// Dictionary lookup for submitted words.
//
// Responsibilities:
//   - Define Source, something that can produce the full word set.
//   - Provide Dictionary, which answers "is this a word?" for the game loop.
//   - Parse the two on-disk/wire formats: a JSON object keyed by word and a
//     plain newline-separated list.
//
// Lookup rules:
//   • The submitted word is lowercased and matched as an exact key.
//   • A JSON entry counts only if its value is truthy (non-zero number,
//     true, non-empty string, any object or array).
//   • Source failures surface as ErrNetwork or ErrMalformed; they never
//     count as "not a word".

package words

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNetwork reports that the dictionary could not be fetched.
	ErrNetwork = errors.New("words: dictionary unavailable")
	// ErrMalformed reports that the dictionary payload could not be decoded.
	ErrMalformed = errors.New("words: malformed dictionary")
)

// Set is a lowercase word lookup set.
type Set map[string]struct{}

// Has reports whether w is in the set. w must already be lowercase.
func (s Set) Has(w string) bool {
	_, ok := s[w]
	return ok
}

// Source produces the full word set.
type Source interface {
	Load(ctx context.Context) (Set, error)
}

// Dictionary answers word checks against a Source.
type Dictionary struct {
	src Source
}

// NewDictionary wraps src.
func NewDictionary(src Source) *Dictionary {
	return &Dictionary{src: src}
}

// Check reports whether word is in the dictionary.
func (d *Dictionary) Check(ctx context.Context, word string) (bool, error) {
	set, err := d.src.Load(ctx)
	if err != nil {
		return false, err
	}
	return set.Has(strings.ToLower(word)), nil
}

// Parse decodes data as a JSON object when it starts with '{', and as a
// newline list otherwise.
func Parse(data []byte) (Set, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return parseJSON(trimmed)
	}
	return parseLines(trimmed)
}

// parseJSON reads a {"word": 1, ...} object.
func parseJSON(data []byte) (Set, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: not an object", ErrMalformed)
	}
	out := make(Set, len(raw))
	for k, v := range raw {
		if truthy(v) {
			out[k] = struct{}{}
		}
	}
	return out, nil
}

// parseLines reads one word per line, skipping blanks and # comments.
func parseLines(data []byte) (Set, error) {
	out := make(Set)
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		w := strings.TrimSpace(sc.Text())
		if w == "" || strings.HasPrefix(w, "#") {
			continue
		}
		out[strings.ToLower(w)] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return out, nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	default:
		return true
	}
}

// FromList builds a Set from already-normalised words.
func FromList(list []string) Set {
	out := make(Set, len(list))
	for _, w := range list {
		out[strings.ToLower(w)] = struct{}{}
	}
	return out
}
