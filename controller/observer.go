package controller

import "github.com/parleyhq/parley/observability"

// Controller event types emitted over the session and run lifecycle.
const (
	EventSessionCreate observability.EventType = "session.create"
	EventSessionReset  observability.EventType = "session.reset"
	EventSessionClose  observability.EventType = "session.close"
	EventTurnSubmit    observability.EventType = "turn.submit"
	EventRunStart      observability.EventType = "run.start"
	EventRunPoll       observability.EventType = "run.poll"
	EventRunComplete   observability.EventType = "run.complete"
	EventTurnReply     observability.EventType = "turn.reply"
	EventTurnError     observability.EventType = "turn.error"
)
