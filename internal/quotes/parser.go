// Package quotes extracts structured quote candidates from a model reply.
//
// Providers are instructed to end their reply with a trailer of the form
// QUOTES_JSON:{"quotes":[...]}. Models do not always comply: the trailer may
// be missing, truncated by a token limit, or followed by stray text. Parsing
// therefore never fails; a bad trailer just yields zero quotes.
package quotes

import (
	"encoding/json"
	"strings"
)

// Marker introduces the JSON trailer in a model reply.
const Marker = "QUOTES_JSON:"

// Quote is a model-asserted citation. Source and page are echoed from the
// model, not validated against the document store; missing fields decode to
// zero values and are a display concern.
type Quote struct {
	ID     string  `json:"id"`
	Quote  string  `json:"quote"`
	Source string  `json:"source"`
	Page   int     `json:"page"`
	Score  float64 `json:"score"`
}

// Result is one query's parsed reply.
type Result struct {
	Answer string  `json:"answer"`
	Quotes []Quote `json:"quotes"`
}

// Parse splits a raw reply into the human-readable answer and the quote
// candidates. The answer is always the text before the first marker
// occurrence (the whole reply when absent), whitespace-trimmed — independent
// of whether the trailer JSON parsed. Anything after the trailer object is
// ignored.
func Parse(raw string) Result {
	idx := strings.Index(raw, Marker)
	if idx < 0 {
		return Result{Answer: strings.TrimSpace(raw), Quotes: []Quote{}}
	}
	answer := strings.TrimSpace(raw[:idx])

	var trailer struct {
		Quotes []Quote `json:"quotes"`
	}
	// Decode exactly one JSON value after the marker; trailing text (or a
	// repeated trailer) is discarded. Malformed or truncated JSON degrades
	// to zero quotes rather than failing the query.
	dec := json.NewDecoder(strings.NewReader(raw[idx+len(Marker):]))
	if err := dec.Decode(&trailer); err != nil || trailer.Quotes == nil {
		return Result{Answer: answer, Quotes: []Quote{}}
	}
	return Result{Answer: answer, Quotes: trailer.Quotes}
}
