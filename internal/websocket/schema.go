package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAutosave Action = "autosave"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// RequestPayload covers every client action. Autosave fills q_id and ans;
// submit and ping send only the action.
type RequestPayload struct {
	Action Action `json:"action"`
	QID    string `json:"q_id,omitempty"`
	Answer string `json:"ans,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError          Event = "error"
	EventSuccess        Event = "success"
	EventTick           Event = "tick"
	EventWarning        Event = "warning"
	EventTimeEnd        Event = "time_end"
	EventState          Event = "state"
	EventPersistWarning Event = "persist_warning"
	EventPong           Event = "pong"
)

type AutosaveResponse struct {
	Event  Event  `json:"event"`
	Status string `json:"status"`
}

// TickResponse carries the countdown once per second.
type TickResponse struct {
	Event     Event `json:"event"`
	Remaining int   `json:"remaining_seconds"`
}

// WarningResponse is a one-shot threshold notification.
type WarningResponse struct {
	Event       Event `json:"event"`
	Threshold   int   `json:"threshold_seconds"`
	Remaining   int   `json:"remaining_seconds"`
	AutoDismiss int   `json:"auto_dismiss_seconds"`
}

// TimeEndResponse announces that the countdown reached zero and the
// attempt was auto-submitted.
type TimeEndResponse struct {
	Event Event `json:"event"`
}

// StateResponse announces an attempt status transition.
type StateResponse struct {
	Event  Event  `json:"event"`
	Status string `json:"status"`
}

// PersistWarningResponse reports a save degradation. Answers stay safe
// in memory; the client may surface a "saving..." indicator.
type PersistWarningResponse struct {
	Event  Event  `json:"event"`
	Detail string `json:"detail"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
