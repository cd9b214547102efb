package storage

import (
	"errors"
	"testing"

	"github.com/LJTian/HeadlineHub/internal/collector"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newDryRunArchive 只生成 SQL 不连接数据库
func newDryRunArchive(t *testing.T) *Archive {
	t.Helper()
	db, err := gorm.Open(postgres.Open("host=127.0.0.1 port=1 user=test dbname=test sslmode=disable"), &gorm.Config{
		DryRun:                 true,
		DisableAutomaticPing:   true,
		SkipDefaultTransaction: true,
		Logger:                 logger.Discard,
	})
	if err != nil {
		t.Fatalf("open dry-run db: %v", err)
	}
	return &Archive{DB: db}
}

func TestArchiveSaveBatch(t *testing.T) {
	a := newDryRunArchive(t)
	items := []collector.Headline{collector.NewHeadline("T", "https://x", "x", 1)}
	if err := a.SaveBatch(items); err != nil {
		t.Fatalf("SaveBatch: %v", err)
	}
}

func TestArchiveSaveBatchReportsRefreshError(t *testing.T) {
	a := newDryRunArchive(t)
	errRefresh := errors.New("refresh failed")
	if err := a.DB.Callback().Update().Before("gorm:update").Register("test:fail_update", func(tx *gorm.DB) {
		_ = tx.AddError(errRefresh)
	}); err != nil {
		t.Fatalf("register callback: %v", err)
	}

	items := []collector.Headline{collector.NewHeadline("T", "https://x", "x", 1)}
	if err := a.SaveBatch(items); !errors.Is(err, errRefresh) {
		t.Fatalf("SaveBatch error = %v, want refresh error", err)
	}
}
