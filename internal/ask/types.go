package ask

import (
	"errors"
	"time"
)

// State tracks pipeline progress.
type State string

const (
	StateReceived           State = "received"
	StateStrategyPlanned    State = "strategy_planned"
	StateSubQueriesAnswered State = "sub_queries_answered"
	StateFinalized          State = "finalized"
	StateFailed             State = "failed"
)

var (
	// ErrStrategy marks fatal strategy-stage failures (empty or unparseable
	// model output). Not retried: these are typically deterministic.
	ErrStrategy = errors.New("strategy stage failed")
	// ErrFinalization marks a final-answer model failure. The response still
	// carries the intermediate answers gathered before the failure.
	ErrFinalization = errors.New("final answer stage failed")
	// ErrTimeout marks an ask call that exceeded its caller-supplied timeout.
	ErrTimeout = errors.New("ask timed out")
)

// Request is one ask call.
type Request struct {
	Question   string        `json:"question"`
	NotebookID string        `json:"notebook_id"`
	// Timeout bounds the whole call. Zero fails immediately.
	Timeout time.Duration `json:"-"`
}

// SubAnswer is one intermediate answer produced for a decomposed sub-query.
// Degraded marks sub-queries whose retrieval came back empty or whose model
// call failed after retry; they never abort the pipeline.
type SubAnswer struct {
	Query     string   `json:"query"`
	Answer    string   `json:"answer,omitempty"`
	Citations []string `json:"citations,omitempty"`
	Degraded  bool     `json:"degraded"`
}

// Response is the result of an ask call. On a finalization failure the
// SubAnswers gathered so far are still populated so callers can show degraded
// results rather than nothing.
type Response struct {
	Question   string      `json:"question"`
	State      State       `json:"state"`
	SubAnswers []SubAnswer `json:"sub_answers,omitempty"`
	Answer     string      `json:"answer,omitempty"`
	// Citations are item IDs deduplicated across sub-answers, ordered by
	// first appearance.
	Citations []string `json:"citations,omitempty"`
}
