package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"triageflow/action"
	"triageflow/triage"
	"triageflow/worklog"
)

var testNow = time.Date(2026, 1, 20, 12, 0, 0, 0, time.UTC)

func awaitingItem(id string) Item {
	return Item{
		ID:             id,
		UserID:         "user-1",
		Status:         triage.StatusAwaitingApproval,
		ProposalID:     id + ":action",
		ProposalStatus: "pending",
		Payload:        action.GmailCreateDraft{To: []string{"a@example.com"}, Subject: "Re: hello", Body: "hi"},
		UpdatedAt:      testNow.Add(-time.Hour),
	}
}

func newTestService(items ...Item) (*Service, *fakeRepo, *fakeWorklog, *fakePool) {
	repo := &fakeRepo{items: map[string]Item{}}
	for _, item := range items {
		repo.items[item.ID] = item
	}
	log := &fakeWorklog{}
	pool := &fakePool{}
	return NewService(pool, repo, log, log), repo, log, pool
}

func TestApprove_TransitionsAndLogs(t *testing.T) {
	svc, repo, log, pool := newTestService(awaitingItem("w1"))

	result, err := svc.Approve(context.Background(), ApproveParams{ItemID: "w1", Now: testNow})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Idempotent {
		t.Errorf("expected first approval to not be idempotent")
	}
	if result.Execution.Destination != action.DestinationGmailDrafts {
		t.Errorf("unexpected destination %q", result.Execution.Destination)
	}
	if repo.items["w1"].Status != triage.StatusCompleted {
		t.Errorf("expected completed status, got %q", repo.items["w1"].Status)
	}

	if len(log.runs) != 1 || log.runs[0].Phase != worklog.PhaseApprove {
		t.Fatalf("expected one approve run, got %+v", log.runs)
	}
	if len(log.runs[0].Events) != 2 {
		t.Errorf("expected 2 run events, got %d", len(log.runs[0].Events))
	}
	if len(log.audits) != 1 || log.audits[0].Action != "action.approve" {
		t.Errorf("expected one action.approve audit entry, got %+v", log.audits)
	}
	if len(pool.txs) != 1 || !pool.txs[0].committed {
		t.Errorf("expected a committed transaction")
	}
}

func TestApprove_IdempotentReplay(t *testing.T) {
	svc, _, log, _ := newTestService(awaitingItem("w1"))

	first, err := svc.Approve(context.Background(), ApproveParams{ItemID: "w1", Now: testNow})
	if err != nil {
		t.Fatalf("first approve: %v", err)
	}

	second, err := svc.Approve(context.Background(), ApproveParams{ItemID: "w1", Now: testNow.Add(time.Minute)})
	if err != nil {
		t.Fatalf("second approve: %v", err)
	}

	if !second.Idempotent {
		t.Errorf("expected idempotent replay")
	}
	if second.Execution.ProviderReference != first.Execution.ProviderReference {
		t.Errorf("expected replay to return original reference %q, got %q",
			first.Execution.ProviderReference, second.Execution.ProviderReference)
	}
	if len(log.runs) != 1 {
		t.Errorf("expected zero new workflow runs on replay, got %d total", len(log.runs))
	}
	if len(log.audits) != 1 {
		t.Errorf("expected zero new audit entries on replay, got %d total", len(log.audits))
	}
}

func TestApprove_DismissedConflicts(t *testing.T) {
	item := awaitingItem("w1")
	item.Status = triage.StatusDismissed
	svc, _, _, _ := newTestService(item)

	_, err := svc.Approve(context.Background(), ApproveParams{ItemID: "w1", Now: testNow})
	assertKind(t, err, KindConflict)
}

func TestApprove_MissingItem(t *testing.T) {
	svc, _, _, _ := newTestService()
	_, err := svc.Approve(context.Background(), ApproveParams{ItemID: "absent", Now: testNow})
	assertKind(t, err, KindNotFound)
}

func TestApprove_PayloadOverride(t *testing.T) {
	svc, _, _, _ := newTestService(awaitingItem("w1"))

	override := action.GmailCreateDraft{To: []string{"b@example.com"}, Subject: "Re: edited", Body: "updated"}
	result, err := svc.Approve(context.Background(), ApproveParams{
		ItemID:          "w1",
		Now:             testNow,
		PayloadOverride: override,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := action.Execute(override, testNow, "")
	if result.Execution.ProviderReference != want.ProviderReference {
		t.Errorf("expected execution over the override payload")
	}
}

func TestApprove_CallerIdempotencyKey(t *testing.T) {
	svc, _, _, _ := newTestService(awaitingItem("w1"))

	result, err := svc.Approve(context.Background(), ApproveParams{ItemID: "w1", Now: testNow, IdempotencyKey: "caller-key"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Execution.IdempotencyKey != "caller-key" {
		t.Errorf("expected caller key, got %q", result.Execution.IdempotencyKey)
	}
}

func TestDismiss_TransitionsAndLogs(t *testing.T) {
	svc, repo, log, _ := newTestService(awaitingItem("w1"))

	result, err := svc.Dismiss(context.Background(), "w1", testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Idempotent {
		t.Errorf("expected first dismissal to not be idempotent")
	}
	if repo.items["w1"].Status != triage.StatusDismissed {
		t.Errorf("expected dismissed status, got %q", repo.items["w1"].Status)
	}
	if len(log.runs) != 1 || log.runs[0].Phase != worklog.PhaseDismiss {
		t.Errorf("expected one dismiss run, got %+v", log.runs)
	}
}

func TestDismiss_Idempotent(t *testing.T) {
	svc, _, log, _ := newTestService(awaitingItem("w1"))

	if _, err := svc.Dismiss(context.Background(), "w1", testNow); err != nil {
		t.Fatalf("first dismiss: %v", err)
	}
	result, err := svc.Dismiss(context.Background(), "w1", testNow.Add(time.Minute))
	if err != nil {
		t.Fatalf("second dismiss: %v", err)
	}

	if !result.Idempotent {
		t.Errorf("expected idempotent replay")
	}
	if len(log.runs) != 1 {
		t.Errorf("expected zero new runs on replay, got %d total", len(log.runs))
	}
}

func TestDismiss_CompletedConflicts(t *testing.T) {
	item := awaitingItem("w1")
	item.Status = triage.StatusCompleted
	svc, _, _, _ := newTestService(item)

	_, err := svc.Dismiss(context.Background(), "w1", testNow)
	assertKind(t, err, KindConflict)
}

func TestFeedback_RequiresProcessedItem(t *testing.T) {
	svc, _, _, _ := newTestService(awaitingItem("w1"))

	_, err := svc.Feedback(context.Background(), FeedbackParams{ItemID: "w1", Rating: RatingPositive, Now: testNow})
	assertKind(t, err, KindConflict)
}

func TestFeedback_OnDismissedItem(t *testing.T) {
	item := awaitingItem("w1")
	item.Status = triage.StatusDismissed
	svc, repo, log, _ := newTestService(item)

	result, err := svc.Feedback(context.Background(), FeedbackParams{
		ItemID: "w1",
		Rating: RatingNegative,
		Note:   "  too aggressive  ",
		Now:    testNow,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Rating != RatingNegative {
		t.Errorf("unexpected rating %q", result.Rating)
	}
	entry := repo.feedback["w1"]
	if entry.note != "too aggressive" {
		t.Errorf("expected trimmed note, got %q", entry.note)
	}
	if len(log.runs) != 1 || log.runs[0].Phase != worklog.PhaseFeedback {
		t.Errorf("expected one feedback run, got %+v", log.runs)
	}
}

func TestFeedback_LastWriteWins(t *testing.T) {
	item := awaitingItem("w1")
	item.Status = triage.StatusCompleted
	svc, repo, _, _ := newTestService(item)

	for _, rating := range []Rating{RatingPositive, RatingNegative} {
		if _, err := svc.Feedback(context.Background(), FeedbackParams{ItemID: "w1", Rating: rating, Now: testNow}); err != nil {
			t.Fatalf("feedback %s: %v", rating, err)
		}
	}

	if repo.feedback["w1"].rating != RatingNegative {
		t.Errorf("expected last write to win, got %q", repo.feedback["w1"].rating)
	}
}

func TestFeedback_RejectsUnknownRating(t *testing.T) {
	svc, _, _, _ := newTestService()
	_, err := svc.Feedback(context.Background(), FeedbackParams{ItemID: "w1", Rating: "meh", Now: testNow})
	assertKind(t, err, KindInvalidPayload)
}

func assertKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	var typed *Error
	if !errors.As(err, &typed) {
		t.Fatalf("expected *lifecycle.Error, got %v", err)
	}
	if typed.Kind != kind {
		t.Fatalf("expected kind %q, got %q", kind, typed.Kind)
	}
}

type feedbackEntry struct {
	rating Rating
	note   string
}

type fakeRepo struct {
	items    map[string]Item
	feedback map[string]feedbackEntry
}

func (f *fakeRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, itemID string) (Item, error) {
	item, ok := f.items[itemID]
	if !ok {
		return Item{}, ErrItemMissing
	}
	return item, nil
}

func (f *fakeRepo) SetStatus(ctx context.Context, tx pgx.Tx, itemID string, status triage.Status, now time.Time) error {
	item, ok := f.items[itemID]
	if !ok {
		return ErrItemMissing
	}
	item.Status = status
	item.UpdatedAt = now
	f.items[itemID] = item
	return nil
}

func (f *fakeRepo) MarkActionExecuted(ctx context.Context, tx pgx.Tx, proposalID string, payload action.Payload, execution action.ExecutionResult, now time.Time) error {
	for id, item := range f.items {
		if item.ProposalID == proposalID {
			item.ProposalStatus = "executed"
			item.Payload = payload
			item.Execution = &execution
			f.items[id] = item
		}
	}
	return nil
}

func (f *fakeRepo) MarkActionDismissed(ctx context.Context, tx pgx.Tx, itemID string, now time.Time) error {
	item, ok := f.items[itemID]
	if !ok {
		return ErrItemMissing
	}
	item.ProposalStatus = "dismissed"
	f.items[itemID] = item
	return nil
}

func (f *fakeRepo) UpsertFeedback(ctx context.Context, tx pgx.Tx, itemID string, rating Rating, note string, now time.Time) error {
	if f.feedback == nil {
		f.feedback = map[string]feedbackEntry{}
	}
	f.feedback[itemID] = feedbackEntry{rating: rating, note: note}
	return nil
}

type fakeWorklog struct {
	runs   []worklog.RunInput
	audits []worklog.AuditInput
}

func (f *fakeWorklog) AppendRun(ctx context.Context, tx pgx.Tx, input worklog.RunInput, now time.Time) (string, error) {
	f.runs = append(f.runs, input)
	return input.WorkItemID + ":run", nil
}

func (f *fakeWorklog) AppendAudit(ctx context.Context, tx pgx.Tx, input worklog.AuditInput, now time.Time) error {
	f.audits = append(f.audits, input)
	return nil
}

type fakePool struct {
	txs []*fakeTx
}

func (f *fakePool) Begin(ctx context.Context) (pgx.Tx, error) {
	tx := &fakeTx{}
	f.txs = append(f.txs, tx)
	return tx, nil
}

type fakeTx struct {
	rolled    bool
	committed bool
}

func (f *fakeTx) Begin(context.Context) (pgx.Tx, error) {
	return nil, errors.New("fakeTx does not support nested transactions")
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	f.rolled = true
	return nil
}

func (f *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}

func (f *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}

func (f *fakeTx) LargeObjects() pgx.LargeObjects {
	panic("not implemented")
}

func (f *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}

func (f *fakeTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}

func (f *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("not implemented")
}

func (f *fakeTx) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("not implemented")
}

func (f *fakeTx) Conn() *pgx.Conn {
	return nil
}
