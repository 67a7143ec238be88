package votewatch

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// UnknownCandidate is the name given to a choice whose label carries no
// usable text.
const UnknownCandidate = "inconnu"

// VoteExtractor turns a raw poll source response body into vote counts keyed
// by candidate name.
//
// Extractors must be total: malformed or unexpected input yields an empty or
// partial map, never a panic. An empty result means "nothing to record" and
// the cycle's snapshot is discarded.
//
// # Panic Safety
//
// Extractors are called within a panic recovery boundary. A panicking
// extractor is logged with a correlation ID and its cycle is treated as an
// empty extraction.
type VoteExtractor func(body []byte) map[string]int64

// ChoicesExtractor is the default [VoteExtractor]. It decodes the body as
// JSON and applies [ExtractVotes].
//
// A body that is not valid JSON yields an empty map.
var ChoicesExtractor VoteExtractor = func(body []byte) map[string]int64 {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var payload any
	if err := dec.Decode(&payload); err != nil {
		return map[string]int64{}
	}
	return ExtractVotes(payload)
}

// ExtractVotes normalizes a decoded poll payload into vote counts.
//
// The payload is expected to be an object with a "choices" array. For each
// choice the candidate name is derived from its "value" label with
// [CandidateName] and the count from "statistics.opinions" with [CoerceCount].
// When two choices derive the same name, the later one wins; counts are not
// summed.
//
// Anything missing or of the wrong type counts as absent: a payload without a
// choices array yields an empty map, and a malformed choice yields
// [UnknownCandidate] and/or a zero count. The result has at most one entry
// per choice.
//
// Example payload:
//
//	{"choices": [
//	    {"value": "Lise Arena: economics\nmore text", "statistics": {"opinions": 12}},
//	    {"value": "Pr Gauci", "statistics": {"opinions": "7"}}
//	]}
func ExtractVotes(payload any) map[string]int64 {
	out := map[string]int64{}

	root, ok := payload.(map[string]any)
	if !ok {
		return out
	}
	choices, ok := root["choices"].([]any)
	if !ok {
		return out
	}

	for _, c := range choices {
		choice, _ := c.(map[string]any) // nil map reads as absent fields
		stats, _ := choice["statistics"].(map[string]any)
		out[CandidateName(choice["value"])] = CoerceCount(stats["opinions"])
	}
	return out
}

// CandidateName derives a normalized candidate name from a choice label.
//
// The label is cut at its first newline, then at its first colon, and only
// the first two whitespace-separated words are kept, joined by one space.
// A label that is not a string or has no words gives [UnknownCandidate].
//
//	CandidateName("Jean-Baptiste Caillau: maths\nbio") // "Jean-Baptiste Caillau"
//	CandidateName("Pr  Gauci Marc")                     // "Pr Gauci"
func CandidateName(label any) string {
	text, ok := label.(string)
	if !ok {
		return UnknownCandidate
	}

	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	if i := strings.IndexByte(text, ':'); i >= 0 {
		text = text[:i]
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return UnknownCandidate
	}
	if len(words) > 2 {
		words = words[:2]
	}
	return strings.Join(words, " ")
}

// CoerceCount converts a raw opinions value into a vote count.
//
// The conversion is total and never yields a non-numeric sentinel:
//   - numbers are truncated toward zero
//   - strings are trimmed and parsed as decimal, float, or 0x/0o/0b integers;
//     a blank string is 0
//   - true is 1 and false is 0
//   - missing, null, non-numeric, negative, and non-finite values are 0
func CoerceCount(v any) int64 {
	switch n := v.(type) {
	case nil:
		return 0
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return nonNegative(i)
		}
		f, err := n.Float64()
		if err != nil {
			return 0
		}
		return floatCount(f)
	case float64:
		return floatCount(n)
	case int:
		return nonNegative(int64(n))
	case int64:
		return nonNegative(n)
	case string:
		return parseCount(n)
	case bool:
		if n {
			return 1
		}
		return 0
	default:
		return 0
	}
}

func parseCount(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "0x") || strings.HasPrefix(lower, "0o") || strings.HasPrefix(lower, "0b") {
		i, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return 0
		}
		return nonNegative(i)
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return floatCount(f)
}

func floatCount(f float64) int64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f >= math.MaxInt64 {
		return 0
	}
	return int64(f)
}

func nonNegative(i int64) int64 {
	if i < 0 {
		return 0
	}
	return i
}
