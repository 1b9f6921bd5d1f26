package db

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

func openLogged(t *testing.T, slow time.Duration) (*gorm.DB, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "db-test", Output: &buf})
	dsn := fmt.Sprintf("file:qlog_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: newQueryLogger(logg, slow)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	buf.Reset()
	return conn, &buf
}

func TestQueryLoggerReportsFailures(t *testing.T) {
	conn, buf := openLogged(t, 0)
	if err := conn.Create(&testModel{Name: "dup"}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("fast successful statements must stay quiet, got %s", buf.String())
	}
	_ = conn.Create(&testModel{Name: "dup"}).Error
	if !strings.Contains(buf.String(), "db.query_failed") || !strings.Contains(buf.String(), "UNIQUE") {
		t.Fatalf("expected failed query log, got %s", buf.String())
	}
}

func TestQueryLoggerSkipsRecordNotFound(t *testing.T) {
	conn, buf := openLogged(t, 0)
	var row testModel
	if err := conn.First(&row, "name = ?", "missing").Error; err == nil {
		t.Fatalf("expected not found")
	}
	if buf.Len() != 0 {
		t.Fatalf("not found is not a failure, got %s", buf.String())
	}
}

func TestQueryLoggerFlagsSlowStatements(t *testing.T) {
	conn, buf := openLogged(t, time.Nanosecond)
	if err := conn.Create(&testModel{Name: "slow"}).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.Contains(buf.String(), "db.slow_query") {
		t.Fatalf("expected slow query log, got %s", buf.String())
	}
}
