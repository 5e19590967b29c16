package action

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind discriminates the proposed-action payload variants.
type Kind string

const (
	KindGmailCreateDraft    Kind = "gmail.createDraft"
	KindCalendarCreateEvent Kind = "google-calendar.createEvent"
	KindBillingQueueRefund  Kind = "billing.queueRefund"
)

// ErrInvalidPayload signals a payload that does not satisfy any known variant.
var ErrInvalidPayload = errors.New("action: invalid payload")

// Payload is the typed side-effect a work item would trigger if approved.
type Payload interface {
	Kind() Kind
	// seed returns the order-sensitive canonical join of the payload fields
	// used for content hashing.
	seed() string
}

type GmailCreateDraft struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

func (GmailCreateDraft) Kind() Kind { return KindGmailCreateDraft }

func (p GmailCreateDraft) seed() string {
	return strings.Join([]string{
		string(KindGmailCreateDraft),
		strings.Join(p.To, ","),
		p.Subject,
		p.Body,
	}, "|")
}

type CalendarCreateEvent struct {
	Title       string   `json:"title"`
	StartsAt    string   `json:"startsAt"`
	EndsAt      string   `json:"endsAt"`
	Attendees   []string `json:"attendees"`
	Description string   `json:"description"`
}

func (CalendarCreateEvent) Kind() Kind { return KindCalendarCreateEvent }

func (p CalendarCreateEvent) seed() string {
	return strings.Join([]string{
		string(KindCalendarCreateEvent),
		p.Title,
		p.StartsAt,
		p.EndsAt,
		strings.Join(p.Attendees, ","),
		p.Description,
	}, "|")
}

type BillingQueueRefund struct {
	CustomerName string  `json:"customerName"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	Reason       string  `json:"reason"`
}

func (BillingQueueRefund) Kind() Kind { return KindBillingQueueRefund }

func (p BillingQueueRefund) seed() string {
	return strings.Join([]string{
		string(KindBillingQueueRefund),
		p.CustomerName,
		strconv.FormatFloat(p.Amount, 'f', -1, 64),
		p.Currency,
		p.Reason,
	}, "|")
}

type envelope struct {
	Kind Kind `json:"kind"`
}

// Marshal serializes a payload with its kind discriminator.
func Marshal(payload Payload) ([]byte, error) {
	fields, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("action: marshal payload: %w", err)
	}

	tagged := map[string]json.RawMessage{}
	if err := json.Unmarshal(fields, &tagged); err != nil {
		return nil, fmt.Errorf("action: tag payload: %w", err)
	}
	kind, err := json.Marshal(payload.Kind())
	if err != nil {
		return nil, fmt.Errorf("action: tag payload kind: %w", err)
	}
	tagged["kind"] = kind

	return json.Marshal(tagged)
}

// Unmarshal parses a tagged payload, validating the variant shape.
func Unmarshal(data []byte) (Payload, error) {
	var probe envelope
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	switch probe.Kind {
	case KindGmailCreateDraft:
		var p GmailCreateDraft
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		if p.To == nil {
			return nil, fmt.Errorf("%w: missing recipients", ErrInvalidPayload)
		}
		return p, nil
	case KindCalendarCreateEvent:
		var p CalendarCreateEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		if p.Attendees == nil {
			return nil, fmt.Errorf("%w: missing attendees", ErrInvalidPayload)
		}
		return p, nil
	case KindBillingQueueRefund:
		var p BillingQueueRefund
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		if p.Currency != "USD" {
			return nil, fmt.Errorf("%w: unsupported currency %q", ErrInvalidPayload, p.Currency)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidPayload, probe.Kind)
	}
}
