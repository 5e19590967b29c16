package runtime

import (
	"encoding/json"
	"fmt"

	"triageflow/action"
	"triageflow/lifecycle"
)

// ValidationError reports an envelope or payload that violates the runtime
// contract. Both the dispatcher and the server validate with the same
// functions so the two sides cannot drift apart.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "runtime: " + e.Message
}

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ParseCommand decodes and validates an inbound command envelope.
func ParseCommand(body []byte) (Command, error) {
	var command Command
	if err := json.Unmarshal(body, &command); err != nil {
		return Command{}, validationErrorf("request body is not valid JSON: %v", err)
	}
	if err := ValidateCommand(command); err != nil {
		return Command{}, err
	}
	return command, nil
}

// ValidateCommand checks the envelope shape and the type-specific payload.
func ValidateCommand(command Command) error {
	if !isKnownCommandType(command.Type) {
		return validationErrorf("unknown command type %q", command.Type)
	}
	if command.Context.UserID == "" {
		return validationErrorf("command context is missing userId")
	}
	if command.Context.RequestID == "" {
		return validationErrorf("command context is missing requestId")
	}
	if command.Context.IssuedAt.IsZero() {
		return validationErrorf("command context is missing issuedAt")
	}
	if len(command.Payload) == 0 {
		return validationErrorf("command payload is required")
	}

	switch command.Type {
	case CommandIngest:
		var payload IngestPayload
		if err := json.Unmarshal(command.Payload, &payload); err != nil {
			return validationErrorf("ingest payload is malformed: %v", err)
		}
	case CommandApprove:
		payload, err := decodeApprovePayload(command.Payload)
		if err != nil {
			return err
		}
		if payload.ItemID == "" {
			return validationErrorf("approve payload is missing itemId")
		}
	case CommandDismiss:
		var payload DismissPayload
		if err := json.Unmarshal(command.Payload, &payload); err != nil {
			return validationErrorf("dismiss payload is malformed: %v", err)
		}
		if payload.ItemID == "" {
			return validationErrorf("dismiss payload is missing itemId")
		}
	case CommandFeedback:
		var payload FeedbackPayload
		if err := json.Unmarshal(command.Payload, &payload); err != nil {
			return validationErrorf("feedback payload is malformed: %v", err)
		}
		if payload.ItemID == "" {
			return validationErrorf("feedback payload is missing itemId")
		}
		if r := lifecycle.Rating(payload.Rating); r != lifecycle.RatingPositive && r != lifecycle.RatingNegative {
			return validationErrorf("feedback rating %q is not recognised", payload.Rating)
		}
	}

	return nil
}

func decodeApprovePayload(raw json.RawMessage) (ApprovePayload, error) {
	var payload ApprovePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ApprovePayload{}, validationErrorf("approve payload is malformed: %v", err)
	}
	if len(payload.PayloadOverride) > 0 {
		if _, err := action.Unmarshal(payload.PayloadOverride); err != nil {
			return ApprovePayload{}, validationErrorf("approve payload override is invalid: %v", err)
		}
	}
	return payload, nil
}

// ParseResult decodes and validates a success envelope returned by the
// runtime server. A structurally invalid body is rejected rather than
// silently accepted.
func ParseResult(body []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return Result{}, validationErrorf("result body is not valid JSON: %v", err)
	}
	if result.Status != "accepted" {
		return Result{}, validationErrorf("result status %q is not accepted", result.Status)
	}
	if !isKnownCommandType(result.Type) {
		return Result{}, validationErrorf("result carries unknown command type %q", result.Type)
	}
	if result.RequestID == "" {
		return Result{}, validationErrorf("result is missing requestId")
	}
	if result.ReceivedAt.IsZero() {
		return Result{}, validationErrorf("result is missing receivedAt")
	}
	if len(result.Result) == 0 {
		return Result{}, validationErrorf("result body is missing the command result")
	}
	return result, nil
}
