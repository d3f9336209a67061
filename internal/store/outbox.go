package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	TaskStatusPending   = "pending"
	TaskStatusDelivered = "delivered"
	TaskStatusFailed    = "failed"
)

type Task struct {
	ID        string
	Kind      string
	Payload   json.RawMessage
	Attempts  int
	CreatedAt time.Time
}

// EnqueueTaskTx records a side effect in the same transaction as the state
// change that triggers it, so a crash between responding and notifying
// never loses the notification.
func (s *Store) EnqueueTaskTx(tx *sql.Tx, kind string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}
	_, err = tx.Exec(`INSERT INTO outbox (id, kind, payload, status, created_at) VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		uuid.NewString(), kind, string(body), TaskStatusPending)
	return err
}

// EnqueueTask is the non-transactional variant used by webhook and manual
// approval paths, which do not touch stock.
func (s *Store) EnqueueTask(kind string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}
	_, err = s.DB.Exec(`INSERT INTO outbox (id, kind, payload, status, created_at) VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		uuid.NewString(), kind, string(body), TaskStatusPending)
	return err
}

func (s *Store) PendingTasks(limit int) ([]Task, error) {
	rows, err := s.DB.Query(`SELECT id, kind, payload, attempts, created_at FROM outbox WHERE status = ? ORDER BY created_at LIMIT ?`,
		TaskStatusPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var t Task
		var payload string
		if err := rows.Scan(&t.ID, &t.Kind, &payload, &t.Attempts, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Payload = json.RawMessage(payload)
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *Store) MarkTaskDelivered(id string) error {
	_, err := s.DB.Exec(`UPDATE outbox SET status = ?, delivered_at = CURRENT_TIMESTAMP WHERE id = ?`, TaskStatusDelivered, id)
	return err
}

// MarkTaskFailed bumps the attempt counter and gives up for good once
// maxAttempts is reached.
func (s *Store) MarkTaskFailed(id string, maxAttempts int) error {
	_, err := s.DB.Exec(`
		UPDATE outbox
		SET attempts = attempts + 1,
		    status = CASE WHEN attempts + 1 >= ? THEN ? ELSE ? END
		WHERE id = ?`,
		maxAttempts, TaskStatusFailed, TaskStatusPending, id)
	return err
}
