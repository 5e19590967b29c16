package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"triageflow/lifecycle"
	"triageflow/queue"
	"triageflow/triage"
)

// Ingestor re-ingests the same signal batch over and over. Re-ingestion
// reopens items mid-flight, so approvers and dismissers keep racing it.
func Ingestor(ctx context.Context, svc *queue.Service, signals []triage.IntakeSignal, userID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		if _, err := svc.PersistSignals(ctx, signals, userID, time.Now().UTC()); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("ingestor persist: %w", err)
		}
		time.Sleep(time.Duration(30+rand.Intn(60)) * time.Millisecond)
	}
}

// Approver hammers approve on one item. Conflicts with dismissers are
// expected under contention; anything else is a real failure.
func Approver(ctx context.Context, svc *lifecycle.Service, itemID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		_, err := svc.Approve(ctx, lifecycle.ApproveParams{ItemID: itemID, Now: time.Now().UTC()})
		if err != nil && !expectedLifecycleFailure(err) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("approver %s: %w", itemID, err)
		}
		time.Sleep(time.Duration(10+rand.Intn(30)) * time.Millisecond)
	}
}

// Dismisser races the approver on the same item.
func Dismisser(ctx context.Context, svc *lifecycle.Service, itemID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		_, err := svc.Dismiss(ctx, itemID, time.Now().UTC())
		if err != nil && !expectedLifecycleFailure(err) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("dismisser %s: %w", itemID, err)
		}
		time.Sleep(time.Duration(20+rand.Intn(40)) * time.Millisecond)
	}
}

// FeedbackWriter records alternating verdicts. Feedback on an open item is
// rejected with a conflict, which counts as expected contention here.
func FeedbackWriter(ctx context.Context, svc *lifecycle.Service, itemID string, stop <-chan struct{}) error {
	ratings := []lifecycle.Rating{lifecycle.RatingPositive, lifecycle.RatingNegative}
	notes := []string{"stress verdict", ""}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		_, err := svc.Feedback(ctx, lifecycle.FeedbackParams{
			ItemID: itemID,
			Rating: ratings[rand.Intn(len(ratings))],
			Note:   notes[rand.Intn(len(notes))],
			Now:    time.Now().UTC(),
		})
		if err != nil && !expectedLifecycleFailure(err) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("feedback %s: %w", itemID, err)
		}
		time.Sleep(time.Duration(40+rand.Intn(80)) * time.Millisecond)
	}
}

// expectedLifecycleFailure reports whether err is ordinary contention:
// conflicting state transitions or an item a concurrent reopen swapped out.
func expectedLifecycleFailure(err error) bool {
	var lifecycleErr *lifecycle.Error
	if errors.As(err, &lifecycleErr) {
		return lifecycleErr.Kind == lifecycle.KindConflict || lifecycleErr.Kind == lifecycle.KindNotFound
	}
	return false
}
