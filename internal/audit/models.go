package audit

import "time"

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	// Subject is what the action touched, e.g. a recipient id or "report".
	Subject string `json:"subject"`
	// ActorID is who performed it: an operator for console actions, empty
	// for anonymous senders.
	ActorID   string `json:"actor_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

type Action string

const (
	ActionMessageSubmitted Action = "message_submitted"
	ActionReportGenerated  Action = "report_generated"
	ActionCapabilityIssued Action = "capability_issued"
	ActionCapabilityDenied Action = "capability_denied"
)
