package action

import (
	"fmt"
	"hash/fnv"
	"time"
)

// Destination is one of the three fixed execution targets.
type Destination string

const (
	DestinationGmailDrafts    Destination = "gmail_drafts"
	DestinationGoogleCalendar Destination = "google_calendar"
	DestinationRefundQueue    Destination = "refund_queue"
)

var destinations = map[Kind]Destination{
	KindGmailCreateDraft:    DestinationGmailDrafts,
	KindCalendarCreateEvent: DestinationGoogleCalendar,
	KindBillingQueueRefund:  DestinationRefundQueue,
}

// ExecutionResult records where an approved action was routed. The provider
// reference is derived from a content hash of the payload, so byte-identical
// payloads always produce the same reference and key.
type ExecutionResult struct {
	Destination       Destination `json:"destination"`
	ProviderReference string      `json:"providerReference"`
	IdempotencyKey    string      `json:"idempotencyKey"`
	ExecutedAt        time.Time   `json:"executedAt"`
}

func contentHash(seed string) string {
	h := fnv.New32a()
	h.Write([]byte(seed))
	return fmt.Sprintf("%08x", h.Sum32())
}

// Execute routes a payload to its destination. When idempotencyKey is empty,
// the content hash seeds the key so retried executions stay single-flight.
func Execute(payload Payload, now time.Time, idempotencyKey string) ExecutionResult {
	destination := destinations[payload.Kind()]
	digest := contentHash(payload.seed())

	key := idempotencyKey
	if key == "" {
		key = "exec_" + digest
	}

	return ExecutionResult{
		Destination:       destination,
		ProviderReference: fmt.Sprintf("%s_%s", destination, digest),
		IdempotencyKey:    key,
		ExecutedAt:        now,
	}
}
