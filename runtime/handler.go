package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"triageflow/action"
	"triageflow/lifecycle"
)

// LifecycleService is the slice of the work-item lifecycle the runtime
// boundary invokes.
type LifecycleService interface {
	Approve(ctx context.Context, params lifecycle.ApproveParams) (lifecycle.ApproveResult, error)
	Dismiss(ctx context.Context, itemID string, now time.Time) (lifecycle.DismissResult, error)
	Feedback(ctx context.Context, params lifecycle.FeedbackParams) (lifecycle.FeedbackResult, error)
}

// Ingestor refreshes the decision queue from upstream signal sources.
type Ingestor interface {
	Ingest(ctx context.Context, userID, cursor string, watchKeywords []string) (IngestResult, error)
}

// Handler executes validated commands against the domain services and wraps
// the outcomes in result envelopes.
type Handler struct {
	lifecycle LifecycleService
	ingestor  Ingestor
	now       func() time.Time
}

// NewHandler wires a handler. Both collaborators are required.
func NewHandler(lifecycleSvc LifecycleService, ingestor Ingestor) *Handler {
	return &Handler{
		lifecycle: lifecycleSvc,
		ingestor:  ingestor,
		now:       time.Now,
	}
}

// WithClock overrides the handler clock, mainly for tests.
func (h *Handler) WithClock(now func() time.Time) *Handler {
	h.now = now
	return h
}

// Handle validates and executes one command. Failures come back as a
// ValidationError, a lifecycle error, or a wrapped internal error; the
// server layer maps them to wire codes.
func (h *Handler) Handle(ctx context.Context, cmd Command) (Result, error) {
	if err := ValidateCommand(cmd); err != nil {
		return Result{}, err
	}

	var (
		payload any
		err     error
	)
	switch cmd.Type {
	case CommandIngest:
		payload, err = h.handleIngest(ctx, cmd)
	case CommandApprove:
		payload, err = h.handleApprove(ctx, cmd)
	case CommandDismiss:
		payload, err = h.handleDismiss(ctx, cmd)
	case CommandFeedback:
		payload, err = h.handleFeedback(ctx, cmd)
	}
	if err != nil {
		return Result{}, err
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("runtime: marshal result: %w", err)
	}
	return Result{
		Status:     "accepted",
		Type:       cmd.Type,
		RequestID:  cmd.Context.RequestID,
		ReceivedAt: h.now().UTC(),
		Result:     raw,
	}, nil
}

func (h *Handler) handleIngest(ctx context.Context, cmd Command) (any, error) {
	var payload IngestPayload
	if err := json.Unmarshal(cmd.Payload, &payload); err != nil {
		return nil, validationErrorf("ingest payload is malformed: %v", err)
	}
	result, err := h.ingestor.Ingest(ctx, cmd.Context.UserID, payload.Cursor, payload.WatchKeywords)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (h *Handler) handleApprove(ctx context.Context, cmd Command) (any, error) {
	payload, err := decodeApprovePayload(cmd.Payload)
	if err != nil {
		return nil, err
	}
	var override action.Payload
	if len(payload.PayloadOverride) > 0 {
		override, err = action.Unmarshal(payload.PayloadOverride)
		if err != nil {
			return nil, validationErrorf("approve payload override is invalid: %v", err)
		}
	}
	result, err := h.lifecycle.Approve(ctx, lifecycle.ApproveParams{
		ItemID:          payload.ItemID,
		Now:             h.now().UTC(),
		IdempotencyKey:  payload.IdempotencyKey,
		PayloadOverride: override,
	})
	if err != nil {
		return nil, err
	}
	return ApproveCommandResult{
		ItemID:     result.ItemID,
		Idempotent: result.Idempotent,
		Execution:  result.Execution,
	}, nil
}

func (h *Handler) handleDismiss(ctx context.Context, cmd Command) (any, error) {
	var payload DismissPayload
	if err := json.Unmarshal(cmd.Payload, &payload); err != nil {
		return nil, validationErrorf("dismiss payload is malformed: %v", err)
	}
	result, err := h.lifecycle.Dismiss(ctx, payload.ItemID, h.now().UTC())
	if err != nil {
		return nil, err
	}
	return DismissCommandResult{
		ItemID:      result.ItemID,
		Idempotent:  result.Idempotent,
		DismissedAt: result.DismissedAt,
	}, nil
}

func (h *Handler) handleFeedback(ctx context.Context, cmd Command) (any, error) {
	var payload FeedbackPayload
	if err := json.Unmarshal(cmd.Payload, &payload); err != nil {
		return nil, validationErrorf("feedback payload is malformed: %v", err)
	}
	result, err := h.lifecycle.Feedback(ctx, lifecycle.FeedbackParams{
		ItemID: payload.ItemID,
		Rating: lifecycle.Rating(payload.Rating),
		Note:   payload.Note,
		Now:    h.now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	return FeedbackCommandResult{
		ItemID:  result.ItemID,
		Rating:  string(result.Rating),
		NotedAt: result.NotedAt,
	}, nil
}

// errorCodeFor maps handler failures onto wire error codes.
func errorCodeFor(err error) ErrorCode {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return CodeBadRequest
	}
	var lifecycleErr *lifecycle.Error
	if errors.As(err, &lifecycleErr) {
		switch lifecycleErr.Kind {
		case lifecycle.KindNotFound:
			return CodeNotFound
		case lifecycle.KindConflict:
			return CodeConflict
		case lifecycle.KindInvalidPayload:
			return CodeBadRequest
		}
	}
	return CodeInternal
}
