// internal/storage/postgres/postgres.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rovshanmuradov/fito-presale/internal/storage"
	"github.com/rovshanmuradov/fito-presale/internal/storage/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const migrationLockID = 7781

var ErrMigrationInProgress = errors.New("another migration is in progress")

// gormLogger реализует интерфейс logger.Interface для GORM
type gormLogger struct {
	zapLogger     *zap.Logger
	logLevel      logger.LogLevel
	slowThreshold time.Duration
}

func newGormLogger(zapLogger *zap.Logger) logger.Interface {
	return &gormLogger{
		zapLogger:     zapLogger,
		logLevel:      logger.Warn,
		slowThreshold: 200 * time.Millisecond,
	}
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *l
	newLogger.logLevel = level
	return &newLogger
}

func (l *gormLogger) Info(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Info {
		l.zapLogger.Sugar().Infof(msg, data...)
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Warn {
		l.zapLogger.Sugar().Warnf(msg, data...)
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Error {
		l.zapLogger.Sugar().Errorf(msg, data...)
	}
}

// Trace пишет SQL запросы: ошибки всегда, медленные на уровне Warn,
// остальные только в режиме Info.
func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.logLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.String("sql", sql),
		zap.Int64("rows", rows),
	}

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		l.zapLogger.Error("query failed", append(fields, zap.Error(err))...)
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.logLevel >= logger.Warn:
		l.zapLogger.Warn("slow query", fields...)
	case l.logLevel >= logger.Info:
		l.zapLogger.Debug("query", fields...)
	}
}

// postgresStorage реализует интерфейс Storage
type postgresStorage struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewStorage opens the journal database. debug raises gorm logging to
// every statement.
func NewStorage(dsn string, debug bool, zapLogger *zap.Logger) (storage.Storage, error) {
	gl := newGormLogger(zapLogger.Named("gorm"))
	if debug {
		gl = gl.LogMode(logger.Info)
	}
	return open(postgres.Open(dsn), gl, zapLogger)
}

func open(dialector gorm.Dialector, gl logger.Interface, zapLogger *zap.Logger) (*postgresStorage, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gl,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// Журнал пишет один воркер, большой пул не нужен
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &postgresStorage{
		db:     db,
		logger: zapLogger.Named("postgres"),
	}, nil
}

// RunMigrations применяет схему под advisory lock
func (p *postgresStorage) RunMigrations() error {
	var lockObtained bool
	err := p.db.Raw("SELECT pg_try_advisory_lock(?)", migrationLockID).Scan(&lockObtained).Error
	if err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	if !lockObtained {
		return ErrMigrationInProgress
	}
	defer p.db.Exec("SELECT pg_advisory_unlock(?)", migrationLockID)

	if err := p.db.AutoMigrate(&models.Transaction{}, &models.SaleSnapshot{}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	p.logger.Info("Migrations applied")
	return nil
}

func (p *postgresStorage) SaveTransaction(ctx context.Context, tx *models.Transaction) error {
	return p.db.WithContext(ctx).Create(tx).Error
}

func (p *postgresStorage) GetTransaction(ctx context.Context, ticketID string) (*models.Transaction, error) {
	var tx models.Transaction
	err := p.db.WithContext(ctx).Where("ticket_id = ?", ticketID).First(&tx).Error
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (p *postgresStorage) ListTransactions(ctx context.Context, account string, limit, offset int) ([]*models.Transaction, error) {
	var txs []*models.Transaction
	q := p.db.WithContext(ctx).Order("created_at desc").Limit(limit).Offset(offset)
	if account != "" {
		q = q.Where("account = ?", account)
	}
	err := q.Find(&txs).Error
	return txs, err
}

func (p *postgresStorage) UpdateTransactionStatus(ctx context.Context, u models.TransactionUpdate) error {
	fields := map[string]interface{}{
		"status":        u.Status,
		"error_message": u.ErrorMessage,
	}
	if u.TxHash != "" {
		fields["tx_hash"] = u.TxHash
	}
	if u.Duration > 0 {
		fields["duration_ms"] = u.Duration.Milliseconds()
	}
	if u.SettledAt != nil {
		fields["settled_at"] = *u.SettledAt
	}

	res := p.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("ticket_id = ?", u.TicketID).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (p *postgresStorage) SaveSnapshot(ctx context.Context, snap *models.SaleSnapshot) error {
	return p.db.WithContext(ctx).Create(snap).Error
}

func (p *postgresStorage) LatestSnapshot(ctx context.Context) (*models.SaleSnapshot, error) {
	var snap models.SaleSnapshot
	err := p.db.WithContext(ctx).Order("fetched_at desc").First(&snap).Error
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (p *postgresStorage) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
