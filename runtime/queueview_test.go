package runtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"triageflow/action"
	"triageflow/queue"
	"triageflow/triage"
)

type fakeQueueReader struct {
	items map[string]queue.StoredItem

	listUsers    []string
	listStatuses []triage.Status
}

func (f *fakeQueueReader) List(ctx context.Context, userID string, status triage.Status) ([]queue.StoredItem, error) {
	f.listUsers = append(f.listUsers, userID)
	f.listStatuses = append(f.listStatuses, status)
	var items []queue.StoredItem
	for _, item := range f.items {
		if item.UserID == userID && (status == "" || item.Status == status) {
			items = append(items, item)
		}
	}
	return items, nil
}

func (f *fakeQueueReader) Get(ctx context.Context, itemID string) (queue.StoredItem, error) {
	item, ok := f.items[itemID]
	if !ok {
		return queue.StoredItem{}, queue.ErrNotFound
	}
	return item, nil
}

func storedItem(id string) queue.StoredItem {
	return queue.StoredItem{
		WorkItem: triage.WorkItem{
			ID:            id,
			Type:          triage.TypeDraft,
			Source:        "gmail",
			Actor:         "Dana Whitfield",
			Summary:       "Renewal decision needed",
			Preview:       "Contract renews Friday.",
			Gates:         []triage.Gate{triage.GateDecision},
			PriorityScore: 5,
			Status:        triage.StatusAwaitingApproval,
		},
		UserID:    "user-1",
		Payload:   action.GmailCreateDraft{To: []string{"dana@example.com"}, Subject: "Re: renewal", Body: "On it."},
		CreatedAt: time.Date(2026, 1, 20, 8, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2026, 1, 20, 9, 0, 0, 0, time.UTC),
	}
}

func newQueueViewServer(t *testing.T, reader QueueReader, token string) *httptest.Server {
	t.Helper()
	handler := NewHandler(&fakeLifecycle{}, &fakeIngestor{})
	srv := httptest.NewServer(NewServer(handler, token, nil, nil).WithQueueReader(reader).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func TestQueueViewList(t *testing.T) {
	reader := &fakeQueueReader{items: map[string]queue.StoredItem{"w_renewal": storedItem("w_renewal")}}
	srv := newQueueViewServer(t, reader, "")

	resp, err := http.Get(srv.URL + "/runtime/queue?user=user-1&status=awaiting_approval")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var view QueueListView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(view.Items) != 1 || view.Items[0].ID != "w_renewal" {
		t.Fatalf("items = %+v", view.Items)
	}
	if view.Items[0].PriorityScore != 5 {
		t.Errorf("priorityScore = %d", view.Items[0].PriorityScore)
	}
	payload, err := action.Unmarshal(view.Items[0].ProposedAction)
	if err != nil {
		t.Fatalf("unmarshal proposed action: %v", err)
	}
	if payload.Kind() != action.KindGmailCreateDraft {
		t.Errorf("proposed action kind = %q", payload.Kind())
	}
	if len(reader.listStatuses) != 1 || reader.listStatuses[0] != triage.StatusAwaitingApproval {
		t.Errorf("list statuses = %v", reader.listStatuses)
	}
}

func TestQueueViewListRequiresUser(t *testing.T) {
	srv := newQueueViewServer(t, &fakeQueueReader{}, "")

	resp, err := http.Get(srv.URL + "/runtime/queue")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestQueueViewGet(t *testing.T) {
	reader := &fakeQueueReader{items: map[string]queue.StoredItem{"w_renewal": storedItem("w_renewal")}}
	srv := newQueueViewServer(t, reader, "")

	resp, err := http.Get(srv.URL + "/runtime/queue/w_renewal")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var view QueueItemView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.ID != "w_renewal" || view.Status != triage.StatusAwaitingApproval {
		t.Errorf("view = %+v", view)
	}
}

func TestQueueViewGetMissing(t *testing.T) {
	srv := newQueueViewServer(t, &fakeQueueReader{}, "")

	resp, err := http.Get(srv.URL + "/runtime/queue/absent")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestQueueViewBehindAuth(t *testing.T) {
	srv := newQueueViewServer(t, &fakeQueueReader{}, "sekret")

	resp, err := http.Get(srv.URL + "/runtime/queue?user=user-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestQueueViewDisabledWithoutReader(t *testing.T) {
	handler := NewHandler(&fakeLifecycle{}, &fakeIngestor{})
	srv := httptest.NewServer(NewServer(handler, "", nil, nil).Routes())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/runtime/queue?user=user-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
