package store

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Requires a live MySQL with the `messages` table; set DMHUB_TEST_DSN,
// e.g. "root:@tcp(127.0.0.1:3306)/dmhub_test?parseTime=true".
func openTestDB(t *testing.T) *sql.DB {
	dsn := os.Getenv("DMHUB_TEST_DSN")
	if dsn == "" {
		t.Skip("DMHUB_TEST_DSN not set")
	}

	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err)

	if _, err := db.Exec("DELETE FROM messages"); err != nil {
		t.Fatalf("clean messages table: %v", err)
	}
	return db
}

func TestMysqlSendReadCycle(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	s := NewMysqlStore(db)
	ctx := context.Background()

	m1, err := s.Append(ctx, 1, 2, "hello", time.Time{})
	require.NoError(t, err)
	m2, err := s.Append(ctx, 1, 2, "again", time.Time{})
	require.NoError(t, err)
	assert.True(t, m2.ID > m1.ID)

	require.NoError(t, s.UpdateStatus(ctx, m1.ID, StatusDelivered))
	assert.ErrorIs(t, s.UpdateStatus(ctx, m1.ID, StatusSent), ErrStatusRegression)
	assert.ErrorIs(t, s.UpdateStatus(ctx, m2.ID+1000, StatusRead), ErrMessageNotFound)

	got, err := s.QueryRange(ctx, 2, 1, 100)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "hello", got[0].Body)
	assert.Equal(t, "again", got[1].Body)

	n, err := s.CountUnread(ctx, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.BatchMarkRead(ctx, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.BatchMarkRead(ctx, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	chats, err := s.QueryConversationSummaries(ctx, 2)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, int32(1), chats[0].CounterpartID)
	assert.Equal(t, "again", chats[0].LastMessage)
	assert.Equal(t, int32(0), chats[0].UnreadCount)
}
