package websocket

import "github.com/agep/exam-backend/internal/service"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAutosave Action = "autosave"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// Request is the single inbound frame shape. Answers carries the whole
// sheet for autosave; for submit it is optional and the saved draft is
// used when omitted.
type Request struct {
	Action  Action         `json:"action"`
	Answers map[string]any `json:"answers,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventSaved  Event = "saved"
	EventResult Event = "result"
	EventError  Event = "error"
	EventPong   Event = "pong"
)

type SavedResponse struct {
	Event Event `json:"event"`
	Saved int   `json:"saved"`
}

type ResultResponse struct {
	Event Event `json:"event"`
	*service.SubmissionResult
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
