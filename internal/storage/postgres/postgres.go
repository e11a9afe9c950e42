// internal/storage/postgres/postgres.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openclaw/copytrader/internal/storage"
	"github.com/openclaw/copytrader/internal/storage/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// gormLogger adapts zap to the gorm logger.Interface.
type gormLogger struct {
	zapLogger *zap.Logger
	logLevel  logger.LogLevel
}

func newGormLogger(zapLogger *zap.Logger) logger.Interface {
	return &gormLogger{
		zapLogger: zapLogger,
		logLevel:  logger.Warn,
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

	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		l.zapLogger.Error("trace", append(fields, zap.Error(err))...)
		return
	}

	if l.logLevel >= logger.Info {
		l.zapLogger.Info("trace", fields...)
	}
}

type store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// New opens a Postgres-backed store.
func New(dsn string, zapLogger *zap.Logger) (storage.Storage, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: newGormLogger(zapLogger.Named("gorm")),
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

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &store{db: db, logger: zapLogger}, nil
}

func (s *store) Migrate() error {
	var lockObtained bool
	if err := s.db.Raw("SELECT pg_try_advisory_lock(101)").Scan(&lockObtained).Error; err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	if !lockObtained {
		return fmt.Errorf("another migration is in progress")
	}
	defer s.db.Exec("SELECT pg_advisory_unlock(101)")

	if err := s.db.AutoMigrate(
		&models.Signal{},
		&models.Position{},
		&models.AggregateStats{},
	); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func (s *store) Signals() storage.SignalRepository { return (*signalRepo)(s) }

func (s *store) Positions() storage.PositionRepository { return (*positionRepo)(s) }

func (s *store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type signalRepo store

func (r *signalRepo) Push(ctx context.Context, sig *models.Signal) error {
	return r.db.WithContext(ctx).Create(sig).Error
}

// PopPending selects the oldest pending signal and flips it to processing in
// one transaction. The row lock guards against a second instance sharing the
// database, not against concurrent pops in-process.
func (r *signalRepo) PopPending(ctx context.Context) (*models.Signal, error) {
	var sig models.Signal
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ?", models.SignalPending).
			Order("created_at asc").
			First(&sig).Error
		if err != nil {
			return err
		}
		return tx.Model(&sig).Update("status", models.SignalProcessing).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sig.Status = models.SignalProcessing
	return &sig, nil
}

func (r *signalRepo) Complete(ctx context.Context, id string, outcome models.SignalStatus) error {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&models.Signal{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": outcome, "processed_at": &now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *signalRepo) PendingCount(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Signal{}).
		Where("status = ?", models.SignalPending).
		Count(&count).Error
	return count, err
}

type positionRepo store

func (r *positionRepo) SavePosition(ctx context.Context, p *models.Position) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *positionRepo) ActivePositions(ctx context.Context) ([]*models.Position, error) {
	var positions []*models.Position
	err := r.db.WithContext(ctx).
		Where("status IN ?", []models.PositionStatus{models.PositionOpen, models.PositionPartial}).
		Find(&positions).Error
	return positions, err
}

func (r *positionRepo) LoadStats(ctx context.Context) (*models.AggregateStats, error) {
	var stats models.AggregateStats
	err := r.db.WithContext(ctx).First(&stats).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (r *positionRepo) SaveStats(ctx context.Context, stats *models.AggregateStats) error {
	return r.db.WithContext(ctx).Save(stats).Error
}
