// Package outbox delivers side effects (emails) recorded alongside the
// state change that triggered them. Tasks are enqueued in the same
// transaction as the order write and delivered at least once by a
// background worker, so a crash between "respond to client" and "send
// email" never drops a notification.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/guilucasv/teodorofit/internal/models"
	"github.com/guilucasv/teodorofit/internal/store"
)

// Task kinds.
const (
	TaskOrderConfirmation = "order_confirmation"
	TaskOperatorNotice    = "operator_notice"
	TaskLowStockAlert     = "low_stock_alert"
)

type OrderTaskPayload struct {
	OrderID string `json:"order_id"`
}

type LowStockPayload struct {
	Products []models.Product `json:"products"`
}

// Notifier is what the worker dispatches tasks to; satisfied by
// mailer.Mailer.
type Notifier interface {
	SendOrderConfirmation(order *models.Order) error
	SendOperatorNotice(order *models.Order) error
	SendLowStockAlert(products []models.Product) error
}

type Worker struct {
	Store       *store.Store
	Notifier    Notifier
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
}

func NewWorker(s *store.Store, n Notifier) *Worker {
	return &Worker{
		Store:       s,
		Notifier:    n,
		Interval:    3 * time.Second,
		BatchSize:   20,
		MaxAttempts: 5,
	}
}

// Run polls for pending tasks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Outbox worker stopping")
			return
		case <-ticker.C:
			w.Drain()
		}
	}
}

// Drain processes one batch of pending tasks. Exported so tests and the
// checkout path can flush synchronously.
func (w *Worker) Drain() {
	tasks, err := w.Store.PendingTasks(w.BatchSize)
	if err != nil {
		slog.Error("Failed to load outbox tasks", "error", err)
		return
	}

	for _, task := range tasks {
		if err := w.dispatch(task); err != nil {
			slog.Error("Outbox task failed", "id", task.ID, "kind", task.Kind, "attempts", task.Attempts+1, "error", err)
			if err := w.Store.MarkTaskFailed(task.ID, w.MaxAttempts); err != nil {
				slog.Error("Failed to record outbox failure", "id", task.ID, "error", err)
			}
			continue
		}
		if err := w.Store.MarkTaskDelivered(task.ID); err != nil {
			slog.Error("Failed to mark outbox task delivered", "id", task.ID, "error", err)
		}
	}
}

func (w *Worker) dispatch(task store.Task) error {
	switch task.Kind {
	case TaskOrderConfirmation, TaskOperatorNotice:
		var p OrderTaskPayload
		if err := json.Unmarshal(task.Payload, &p); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		order, err := w.Store.GetOrderByID(p.OrderID)
		if err != nil {
			return fmt.Errorf("load order %s: %w", p.OrderID, err)
		}
		if task.Kind == TaskOrderConfirmation {
			return w.Notifier.SendOrderConfirmation(order)
		}
		return w.Notifier.SendOperatorNotice(order)

	case TaskLowStockAlert:
		var p LowStockPayload
		if err := json.Unmarshal(task.Payload, &p); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		return w.Notifier.SendLowStockAlert(p.Products)

	default:
		return fmt.Errorf("unknown task kind %q", task.Kind)
	}
}
