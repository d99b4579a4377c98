// internal/storage/storage.go
package storage

import (
	"context"

	"github.com/rovshanmuradov/fito-presale/internal/storage/models"
)

// Storage определяет интерфейс для работы с хранилищем
type Storage interface {
	// Транзакции
	SaveTransaction(ctx context.Context, tx *models.Transaction) error
	GetTransaction(ctx context.Context, ticketID string) (*models.Transaction, error)
	ListTransactions(ctx context.Context, account string, limit, offset int) ([]*models.Transaction, error)
	UpdateTransactionStatus(ctx context.Context, update models.TransactionUpdate) error

	// Снимки состояния продажи
	SaveSnapshot(ctx context.Context, snap *models.SaleSnapshot) error
	LatestSnapshot(ctx context.Context) (*models.SaleSnapshot, error)

	RunMigrations() error
	Close() error
}
