package repository

import (
	"context"

	"github.com/garnizeh/leavesync/pkg/models"
)

// Repository interfaces for the local ledger. These are the public contracts
// consumers should depend on; concrete implementations live under internal/.

type NotificationRepo interface {
	HasSent(ctx context.Context, requestID, status string) (bool, error)
	RecordSent(ctx context.Context, n *models.Notification) error
	ListByRequest(ctx context.Context, requestID string) ([]models.Notification, error)
}

type RunRepo interface {
	StartRun(ctx context.Context, r *models.SyncRun) error
	FinishRun(ctx context.Context, r *models.SyncRun) error
	GetRun(ctx context.Context, id string) (*models.SyncRun, error)
	ListRuns(ctx context.Context, limit int) ([]models.SyncRun, error)
}
