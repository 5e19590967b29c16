package action

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"triageflow/triage"
)

var refundAmountPattern = regexp.MustCompile(`\$([0-9]+(?:\.[0-9]{1,2})?)`)

func actorToEmail(actor string) string {
	slug := strings.ReplaceAll(strings.ToLower(actor), " ", ".")
	return slug + "@example.com"
}

func parseRefundAmount(preview string) float64 {
	match := refundAmountPattern.FindStringSubmatch(preview)
	if match == nil {
		return 0
	}

	amount, err := strconv.ParseFloat(match[1], 64)
	if err != nil || math.IsInf(amount, 0) || math.IsNaN(amount) {
		return 0
	}
	return amount
}

// Derive maps a work item to its proposed action payload. It is total: every
// work item type yields a payload.
func Derive(item triage.WorkItem) Payload {
	switch item.Type {
	case triage.TypeCalendar:
		return CalendarCreateEvent{
			Title:       item.Actor + " • Board Sync",
			StartsAt:    "2026-01-22T14:00:00.000Z",
			EndsAt:      "2026-01-22T15:00:00.000Z",
			Attendees:   []string{actorToEmail(item.Actor), "team@triageflow.dev"},
			Description: item.Preview,
		}
	case triage.TypeRefund:
		return BillingQueueRefund{
			CustomerName: item.Actor,
			Amount:       parseRefundAmount(item.Preview),
			Currency:     "USD",
			Reason:       item.Summary,
		}
	default:
		return GmailCreateDraft{
			To:      []string{actorToEmail(item.Actor)},
			Subject: "Re: " + item.Summary,
			Body:    item.Preview,
		}
	}
}

// ProposedActionID returns the stable id of the single proposed action owned
// by a work item.
func ProposedActionID(workItemID string) string {
	return workItemID + ":action"
}
