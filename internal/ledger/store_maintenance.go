package ledger

import (
	"context"
	"fmt"
	"time"
)

// RequeueInterrupted rolls every in-flight run back to its last durable stage
// boundary and clears its heartbeat so another worker can claim it. It is run
// at daemon startup and shutdown; abandoned work never stays stuck in a
// processing status. The affected run count is returned.
func (s *Store) RequeueInterrupted(ctx context.Context) (int64, error) {
	var total int64
	for from, to := range rollbackByProcessing {
		res, err := s.execWithRetry(ctx,
			`UPDATE runs SET status = ?, last_heartbeat = NULL, updated_at = ? WHERE status = ?`,
			to, time.Now().UTC().Format(time.RFC3339Nano), from,
		)
		if err != nil {
			return total, fmt.Errorf("requeue %s runs: %w", from, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("rows affected: %w", err)
		}
		total += affected
	}
	return total, nil
}

// StatusCounts returns the number of runs per status.
func (s *Store) StatusCounts(ctx context.Context) (map[RunStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM runs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count runs: %w", err)
	}
	defer rows.Close()

	counts := make(map[RunStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[RunStatus(status)] = count
	}
	return counts, rows.Err()
}
