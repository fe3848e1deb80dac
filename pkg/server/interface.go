/*
Package server implements msgpack IPC for search suggestions, query
resolution and result ranking.

The server reads a stream of msgpack requests from stdin and writes msgpack
responses to stdout. Logs go to stderr so the stream stays clean.

# IPC

Every request carries an ID and a command. Other fields depend on the
command:

	{"id": "r1", "cmd": "suggest", "q": "orth", "l": 8}
	{"id": "r2", "cmd": "type", "sid": "search-box", "q": "orth"}
	{"id": "r3", "cmd": "resolve", "q": "orthopedic surgery"}
	{"id": "r4", "cmd": "rank", "q": "mri", "f": {"sort": "price_low", "max_distance": 10}, "l": 20}
	{"id": "r5", "cmd": "spell", "q": "cardiolgy"}
	{"id": "r6", "cmd": "refresh"}
	{"id": "r7", "cmd": "health"}

Suggestions come back ranked, with the request's timing in microseconds:

	{"id": "r1", "s": [{"id": "doctor-0", "w": "Dr. Sarah Johnson", "cat": "provider", "i": "👩‍⚕️", "r": 1}], "c": 1, "t": 85}

The "type" command is for keystrokes. It is acknowledged at once with a
token; the suggestions follow later as a SuggestResponse carrying the same
session and token, and only for the last keystroke of a burst. Responses
to superseded keystrokes are never sent. "cancel" drops the pending
keystroke of a session.

Failed requests get an ErrorResponse with an HTTP-like code.
*/
package server

import (
	"github.com/mariohealth/marioserve/pkg/rank"
	"github.com/mariohealth/marioserve/pkg/resolve"
)

// Request is the single envelope of every IPC command
type Request struct {
	ID      string         `msgpack:"id"`
	Command string         `msgpack:"cmd"`
	Query   string         `msgpack:"q,omitempty"`
	Limit   int            `msgpack:"l,omitempty"`
	Offset  int            `msgpack:"o,omitempty"`
	Session string         `msgpack:"sid,omitempty"`
	Filter  *FilterRequest `msgpack:"f,omitempty"`
}

// FilterRequest overrides parts of the default filter. Nil fields keep
// their defaults.
type FilterRequest struct {
	Network     string   `msgpack:"network,omitempty"`
	MaxDistance *float64 `msgpack:"max_distance,omitempty"`
	MinPrice    *float64 `msgpack:"min_price,omitempty"`
	MaxPrice    *float64 `msgpack:"max_price,omitempty"`
	SortBy      string   `msgpack:"sort,omitempty"`
}

// SuggestionItem is the compact wire form of a suggestion
type SuggestionItem struct {
	ID       string   `msgpack:"id"`
	Text     string   `msgpack:"w"`
	Category string   `msgpack:"cat"`
	Icon     string   `msgpack:"i"`
	Rank     uint16   `msgpack:"r"`
	Matches  [][2]int `msgpack:"m,omitempty"`
}

// SuggestResponse answers "suggest" and delivers "type" results
type SuggestResponse struct {
	ID          string           `msgpack:"id"`
	Session     string           `msgpack:"sid,omitempty"`
	Token       uint64           `msgpack:"tok,omitempty"`
	Query       string           `msgpack:"q"`
	Suggestions []SuggestionItem `msgpack:"s"`
	Count       int              `msgpack:"c"`
	TimeTaken   int64            `msgpack:"t"`
}

// TypeAck acknowledges a keystroke
type TypeAck struct {
	ID      string `msgpack:"id"`
	Session string `msgpack:"sid"`
	Token   uint64 `msgpack:"tok"`
	Status  string `msgpack:"status"`
}

// ResolveResponse answers "resolve"
type ResolveResponse struct {
	ID        string           `msgpack:"id"`
	Result    resolve.Resolved `msgpack:"r"`
	TimeTaken int64            `msgpack:"t"`
}

// RankResponse answers "rank". Resolved is set when the request had a query.
type RankResponse struct {
	ID        string            `msgpack:"id"`
	Page      rank.Page         `msgpack:"p"`
	Resolved  *resolve.Resolved `msgpack:"r,omitempty"`
	TimeTaken int64             `msgpack:"t"`
}

// SpellResponse answers "spell"
type SpellResponse struct {
	ID         string `msgpack:"id"`
	Query      string `msgpack:"q"`
	Correction string `msgpack:"dym,omitempty"`
	Changed    bool   `msgpack:"changed"`
}

// StatusResponse answers "health", "refresh" and "cancel"
type StatusResponse struct {
	ID     string         `msgpack:"id"`
	Status string         `msgpack:"status"`
	Error  string         `msgpack:"error,omitempty"`
	Stats  map[string]int `msgpack:"stats,omitempty"`
}

// ErrorResponse holds basic error information for failed requests
type ErrorResponse struct {
	ID    string `msgpack:"id"`
	Error string `msgpack:"e"`
	Code  int    `msgpack:"c"`
}
