package runtime

import (
	"encoding/json"
	"time"

	"triageflow/action"
)

// CommandType names the four lifecycle operations reachable across the
// service boundary.
type CommandType string

const (
	CommandIngest   CommandType = "runtime.ingest"
	CommandApprove  CommandType = "runtime.approve"
	CommandDismiss  CommandType = "runtime.dismiss"
	CommandFeedback CommandType = "runtime.feedback"
)

// ErrorCode is the fixed set of wire error codes.
type ErrorCode string

const (
	CodeBadRequest   ErrorCode = "bad_request"
	CodeUnauthorized ErrorCode = "unauthorized"
	CodeNotFound     ErrorCode = "not_found"
	CodeConflict     ErrorCode = "conflict"
	CodeInternal     ErrorCode = "internal"
)

// HTTPStatus maps a wire error code to the HTTP status callers use.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case CodeBadRequest:
		return 400
	case CodeUnauthorized:
		return 401
	case CodeNotFound:
		return 404
	case CodeConflict:
		return 409
	default:
		return 500
	}
}

// CommandContext identifies who issued a command and correlates the reply.
type CommandContext struct {
	UserID    string    `json:"userId"`
	RequestID string    `json:"requestId"`
	Source    string    `json:"source"`
	IssuedAt  time.Time `json:"issuedAt"`
}

// Command is the typed envelope sent across the runtime boundary.
type Command struct {
	Type    CommandType     `json:"type"`
	Context CommandContext  `json:"context"`
	Payload json.RawMessage `json:"payload"`
}

// IngestPayload asks the runtime to poll sources and refresh the queue.
type IngestPayload struct {
	Cursor        string   `json:"cursor,omitempty"`
	WatchKeywords []string `json:"watchKeywords,omitempty"`
}

// ApprovePayload approves one work item, optionally overriding the stored
// proposed action with an operator-edited payload.
type ApprovePayload struct {
	ItemID          string          `json:"itemId"`
	IdempotencyKey  string          `json:"idempotencyKey,omitempty"`
	PayloadOverride json.RawMessage `json:"payloadOverride,omitempty"`
}

type DismissPayload struct {
	ItemID string `json:"itemId"`
}

type FeedbackPayload struct {
	ItemID string `json:"itemId"`
	Rating string `json:"rating"`
	Note   string `json:"note,omitempty"`
}

// Result is the success envelope, keyed by the originating request id.
type Result struct {
	Status     string          `json:"status"`
	Type       CommandType     `json:"type"`
	RequestID  string          `json:"requestId"`
	ReceivedAt time.Time       `json:"receivedAt"`
	Result     json.RawMessage `json:"result"`
}

// ErrorResult is the failure envelope.
type ErrorResult struct {
	Status    string    `json:"status"`
	RequestID string    `json:"requestId"`
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
}

// IngestResult summarizes a queue refresh.
type IngestResult struct {
	Cursor      string `json:"cursor"`
	QueuedCount int    `json:"queuedCount"`
}

// ApproveCommandResult reports the execution routed for an approved item.
type ApproveCommandResult struct {
	ItemID     string                 `json:"itemId"`
	Idempotent bool                   `json:"idempotent"`
	Execution  action.ExecutionResult `json:"execution"`
}

type DismissCommandResult struct {
	ItemID      string    `json:"itemId"`
	Idempotent  bool      `json:"idempotent"`
	DismissedAt time.Time `json:"dismissedAt"`
}

type FeedbackCommandResult struct {
	ItemID  string    `json:"itemId"`
	Rating  string    `json:"rating"`
	NotedAt time.Time `json:"notedAt"`
}

func commandPath(commandType CommandType) string {
	switch commandType {
	case CommandIngest:
		return "/runtime/ingest"
	case CommandApprove:
		return "/runtime/approve"
	case CommandDismiss:
		return "/runtime/dismiss"
	default:
		return "/runtime/feedback"
	}
}

func isKnownCommandType(commandType CommandType) bool {
	switch commandType {
	case CommandIngest, CommandApprove, CommandDismiss, CommandFeedback:
		return true
	}
	return false
}
