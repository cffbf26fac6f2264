package notification

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"scrap-pickup/database"
	notificationModel "scrap-pickup/models/notification"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.MigrateForTest(db))
	return db
}

func TestNotifyPersistsThroughWorker(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	go svc.Run()

	svc.Notify(42, "Collector Assigned", "A collector has been assigned to your pickup",
		"booking_assigned", map[string]interface{}{"booking_id": "b-1"})
	svc.Notify(42, "Pickup Started", "Your collector has started the pickup",
		"booking_in_progress", nil)
	svc.Close()

	rows, err := svc.ListForUser(42, 20, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	var assigned notificationModel.Notification
	for _, row := range rows {
		if row.Type == "booking_assigned" {
			assigned = row
		}
		assert.Equal(t, "unread", row.Status)
	}
	assert.Contains(t, assigned.Payload, "b-1")
}

func TestNotifyNeverBlocksCaller(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	// Worker intentionally not running, so the queue can only fill up.

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			svc.Notify(1, "title", "body", "noise", nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Notify blocked on a full queue")
	}
}

func TestMarkReadScopedToOwner(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	go svc.Run()
	svc.Notify(7, "Pickup Completed", "Your pickup has been completed successfully", "booking_completed", nil)
	svc.Close()

	rows, err := svc.ListForUser(7, 20, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	// Another user cannot flip it.
	require.NoError(t, svc.MarkRead(8, rows[0].ID))
	rows, err = svc.ListForUser(7, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, "unread", rows[0].Status)

	require.NoError(t, svc.MarkRead(7, rows[0].ID))
	rows, err = svc.ListForUser(7, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, "read", rows[0].Status)
}
