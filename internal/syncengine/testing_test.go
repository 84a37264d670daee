package syncengine

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"marketsync/internal/client/marketplace"
	"marketsync/internal/models"
	gormrepository "marketsync/internal/repository/gorm"
)

// openTestStore backs the repository with an in-memory sqlite database, which
// gives real transaction and savepoint behavior without a Postgres instance.
func openTestStore(t *testing.T) *gormrepository.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	// Shared-cache sqlite tolerates one writer; serialize connections.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(
		&models.SyncRun{},
		&models.SyncProgress{},
		&models.SyncTransition{},
		&models.SyncLease{},
		&models.Product{},
		&models.Order{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gormrepository.New(db)
}

// productRecord builds a wire record the way the listing endpoint would
// deliver it.
func productRecord(t *testing.T, remoteID, sku, title, price string, stock int, updatedAt *time.Time) marketplace.Record {
	t.Helper()
	body := map[string]any{
		"id":        remoteID,
		"sku":       sku,
		"title":     title,
		"price":     price,
		"stock_qty": float64(stock),
		"active":    true,
	}
	if updatedAt != nil {
		body["updated_at"] = updatedAt.UTC().Format(time.RFC3339)
	}
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal record: %v", err)
	}
	var rec marketplace.Record
	rec.RemoteID = remoteID
	rec.Body = body
	rec.Raw = raw
	if updatedAt != nil {
		utc := updatedAt.UTC()
		rec.UpdatedAt = &utc
	}
	return rec
}

// malformedRecord is missing its required sku.
func malformedRecord(t *testing.T, remoteID string) marketplace.Record {
	t.Helper()
	body := map[string]any{"id": remoteID, "title": "broken", "price": "1.00"}
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal record: %v", err)
	}
	return marketplace.Record{RemoteID: remoteID, Body: body, Raw: raw}
}
