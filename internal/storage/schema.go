package storage

import "time"

// CurrentSchemaVersion is written to every saved episode.
const CurrentSchemaVersion = "1"

// Outcome is how an episode ended.
type Outcome string

const (
	// OutcomeComplete: the plan was fully dispatched.
	OutcomeComplete Outcome = "complete"
	// OutcomeNoPlan: search failed and the agent idled.
	OutcomeNoPlan Outcome = "no-plan"
	// OutcomeAborted: dispatch stopped with an error.
	OutcomeAborted Outcome = "aborted"
	// OutcomeTickLimit: the episode ran out of rounds.
	OutcomeTickLimit Outcome = "tick-limit"
)

// Episode is the persisted record of one planning episode.
type Episode struct {
	Version    string         `json:"version"`
	ID         string         `json:"id"`
	Scenario   string         `json:"scenario,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Outcome    Outcome        `json:"outcome"`
	Error      string         `json:"error,omitempty"`
	Plan       []string       `json:"plan"`
	Ticks      int            `json:"ticks"`
	Targets    map[string]int `json:"targets,omitempty"`
	Stock      map[string]int `json:"stock,omitempty"`
	Search     SearchSummary  `json:"search"`
}

// SearchSummary carries the search counters worth keeping.
type SearchSummary struct {
	Expanded    int   `json:"expanded"`
	Generated   int   `json:"generated"`
	Relaxations int   `json:"relaxations"`
	ElapsedMS   int64 `json:"elapsed_ms"`
}
