package models

// Account event operations.
const (
	OperationRegistered = "registered"
	OperationVerified   = "verified"
	OperationUpdated    = "updated"
	OperationDeleted    = "deleted"
)

// AccountEvent describes a state change of a user account published to Kafka.
type AccountEvent struct {
	EventID   string `json:"event_id"`  // EventID is a unique identifier for the event.
	Timestamp int64  `json:"timestamp"` // Timestamp is the Unix timestamp (in seconds) when the change happened.
	UserID    string `json:"user_id"`   // UserID is the identifier of the affected user.
	Email     string `json:"email"`     // Email of the affected user at the time of the change.
	Operation string `json:"operation"` // Operation is one of registered, verified, updated, deleted.
}
