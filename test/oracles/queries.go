package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

// All returns the invariant checks run against the live schema. Each query
// must return zero rows; any row is a violation.
func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_single_proposed_action",
			SQL: `SELECT work_item_id, COUNT(*) FROM proposed_actions
                  GROUP BY work_item_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O2_execution_columns_all_or_none",
			SQL: `SELECT id FROM proposed_actions
                  WHERE status = 'executed'
                    AND (destination IS NULL
                      OR provider_reference IS NULL
                      OR idempotency_key IS NULL
                      OR executed_at IS NULL)`,
		},
		{
			Name: "O3_completed_items_have_execution",
			SQL: `SELECT w.id FROM work_items w
                  JOIN proposed_actions p ON p.work_item_id = w.id
                  WHERE w.status = 'completed' AND p.status <> 'executed'`,
		},
		{
			Name: "O4_event_seq_monotonic",
			SQL: `WITH seqs AS (
                      SELECT run_id, seq,
                             LAG(seq) OVER (PARTITION BY run_id ORDER BY seq) AS prev
                      FROM workflow_events)
                  SELECT * FROM seqs WHERE prev IS NOT NULL AND seq <= prev`,
		},
		{
			Name: "O5_no_orphan_events",
			SQL: `SELECT e.id FROM workflow_events e
                  LEFT JOIN workflow_runs r ON r.id = e.run_id
                  WHERE r.id IS NULL`,
		},
		{
			Name: "O6_items_justified_by_gates",
			SQL: `SELECT id FROM work_items
                  WHERE cardinality(gates) = 0 OR priority_score <= 0`,
		},
		{
			Name: "O7_unmatched_gates_score_zero",
			SQL: `SELECT id FROM gate_evaluations
                  WHERE (NOT matched AND score <> 0) OR (matched AND score <= 0)`,
		},
		{
			Name: "O8_feedback_rating_valid",
			SQL: `SELECT id FROM feedback_entries
                  WHERE rating NOT IN ('positive', 'negative')`,
		},
		{
			Name: "O9_run_phase_valid",
			SQL: `SELECT id FROM workflow_runs
                  WHERE phase NOT IN ('ingest', 'approve', 'dismiss', 'feedback')`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
