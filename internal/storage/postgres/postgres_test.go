package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func observed(level logger.LogLevel) (logger.Interface, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return newGormLogger(zap.New(core)).LogMode(level), logs
}

func sqlFn() (string, int64) { return "SELECT 1", 1 }

func TestTraceLevels(t *testing.T) {
	tests := []struct {
		name    string
		level   logger.LogLevel
		elapsed time.Duration
		err     error
		want    string
	}{
		{"silent drops errors", logger.Silent, 0, errors.New("boom"), ""},
		{"error logged", logger.Warn, 0, errors.New("boom"), "query failed"},
		{"not found ignored", logger.Warn, 0, gorm.ErrRecordNotFound, ""},
		{"slow query", logger.Warn, time.Second, nil, "slow query"},
		{"fast query hidden at warn", logger.Warn, 0, nil, ""},
		{"fast query at info", logger.Info, 0, nil, "query"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, logs := observed(tt.level)
			l.Trace(context.Background(), time.Now().Add(-tt.elapsed), sqlFn, tt.err)

			if tt.want == "" {
				assert.Zero(t, logs.Len())
				return
			}
			if assert.Equal(t, 1, logs.Len()) {
				entry := logs.All()[0]
				assert.Equal(t, tt.want, entry.Message)
				assert.Equal(t, "SELECT 1", entry.ContextMap()["sql"])
			}
		})
	}
}

func TestLogModeCopies(t *testing.T) {
	base, logs := observed(logger.Warn)
	info := base.LogMode(logger.Info)

	base.Info(context.Background(), "hidden %d", 1)
	info.Info(context.Background(), "shown %d", 2)

	if assert.Equal(t, 1, logs.Len()) {
		assert.Equal(t, "shown 2", logs.All()[0].Message)
	}
}
