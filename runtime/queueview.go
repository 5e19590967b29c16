package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"triageflow/action"
	"triageflow/queue"
	"triageflow/triage"
)

// QueueReader provides the read side of the decision queue.
type QueueReader interface {
	List(ctx context.Context, userID string, status triage.Status) ([]queue.StoredItem, error)
	Get(ctx context.Context, itemID string) (queue.StoredItem, error)
}

// QueueItemView is the wire shape of one queued work item.
type QueueItemView struct {
	ID             string          `json:"id"`
	UserID         string          `json:"userId"`
	Type           triage.WorkType `json:"type"`
	Source         string          `json:"source"`
	Actor          string          `json:"actor"`
	Summary        string          `json:"summary"`
	Context        string          `json:"context"`
	Preview        string          `json:"preview"`
	Gates          []triage.Gate   `json:"gates"`
	PriorityScore  int             `json:"priorityScore"`
	Status         triage.Status   `json:"status"`
	ProposedAction json.RawMessage `json:"proposedAction"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// QueueListView is the wire shape of the queue listing.
type QueueListView struct {
	Items []QueueItemView `json:"items"`
}

func newQueueItemView(item queue.StoredItem) (QueueItemView, error) {
	payload, err := action.Marshal(item.Payload)
	if err != nil {
		return QueueItemView{}, err
	}
	return QueueItemView{
		ID:             item.ID,
		UserID:         item.UserID,
		Type:           item.Type,
		Source:         item.Source,
		Actor:          item.Actor,
		Summary:        item.Summary,
		Context:        item.Context,
		Preview:        item.Preview,
		Gates:          item.Gates,
		PriorityScore:  item.PriorityScore,
		Status:         item.Status,
		ProposedAction: payload,
		CreatedAt:      item.CreatedAt,
		UpdatedAt:      item.UpdatedAt,
	}, nil
}

func (s *Server) handleQueueList(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	if userID == "" {
		s.writeErrorResult(w, r, "", CodeBadRequest, "user query parameter is required")
		return
	}
	status := triage.Status(r.URL.Query().Get("status"))

	items, err := s.queueReader.List(r.Context(), userID, status)
	if err != nil {
		s.logger.Error("queue list failed", "userId", userID, "error", err)
		s.writeErrorResult(w, r, "", CodeInternal, "listing queue failed")
		return
	}

	view := QueueListView{Items: make([]QueueItemView, 0, len(items))}
	for _, item := range items {
		itemView, err := newQueueItemView(item)
		if err != nil {
			s.logger.Error("queue list failed", "itemId", item.ID, "error", err)
			s.writeErrorResult(w, r, "", CodeInternal, "listing queue failed")
			return
		}
		view.Items = append(view.Items, itemView)
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleQueueGet(w http.ResponseWriter, r *http.Request) {
	itemID := r.PathValue("id")

	item, err := s.queueReader.Get(r.Context(), itemID)
	if err != nil {
		if errors.Is(err, queue.ErrNotFound) {
			s.writeErrorResult(w, r, "", CodeNotFound, "work item not found")
			return
		}
		s.logger.Error("queue get failed", "itemId", itemID, "error", err)
		s.writeErrorResult(w, r, "", CodeInternal, "fetching work item failed")
		return
	}

	view, err := newQueueItemView(item)
	if err != nil {
		s.logger.Error("queue get failed", "itemId", itemID, "error", err)
		s.writeErrorResult(w, r, "", CodeInternal, "fetching work item failed")
		return
	}
	writeJSON(w, http.StatusOK, view)
}
