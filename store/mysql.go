package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/golang/glog"
)

const (
	insertMessageSQL = "INSERT INTO messages (sender_id, receiver_id, body, sent_at, status) VALUES (?,?,?,?,?)"

	// The FIELD guard keeps the lifecycle forward-only at the row level,
	// whatever the caller believes the current status is.
	updateStatusSQL = "UPDATE messages SET status=? WHERE id=? AND " +
		"FIELD(status,'sent','delivered','read') < FIELD(?,'sent','delivered','read')"

	batchMarkReadSQL = "UPDATE messages SET status='read' WHERE receiver_id=? AND sender_id=? AND status<>'read'"

	countUnreadSQL = "SELECT COUNT(*) FROM messages WHERE receiver_id=? AND sender_id=? AND status<>'read'"

	messageExistsSQL = "SELECT 1 FROM messages WHERE id=?"

	// Most-recent window, returned in ascending order.
	queryRangeSQL = "SELECT id, sender_id, receiver_id, body, sent_at, status FROM (" +
		"SELECT id, sender_id, receiver_id, body, sent_at, status FROM messages " +
		"WHERE (sender_id=? AND receiver_id=?) OR (sender_id=? AND receiver_id=?) " +
		"ORDER BY sent_at DESC, id DESC LIMIT ?" +
		") AS w ORDER BY w.sent_at ASC, w.id ASC"

	// Rank-1 row per counterpart plus unread counts, newest conversation
	// first. The counterpart expression is the SQL twin of convo.Key.
	querySummariesSQL = "WITH ranked AS (" +
		"SELECT body, sent_at, IF(sender_id=?, receiver_id, sender_id) AS other_id, " +
		"ROW_NUMBER() OVER (PARTITION BY IF(sender_id=?, receiver_id, sender_id) " +
		"ORDER BY sent_at DESC, id DESC) AS rn " +
		"FROM messages WHERE sender_id=? OR receiver_id=?" +
		"), unread AS (" +
		"SELECT sender_id AS other_id, COUNT(*) AS unread_count " +
		"FROM messages WHERE receiver_id=? AND status<>'read' GROUP BY sender_id" +
		") " +
		"SELECT r.other_id, r.body, r.sent_at, COALESCE(u.unread_count, 0) " +
		"FROM ranked r LEFT JOIN unread u ON r.other_id = u.other_id " +
		"WHERE r.rn = 1 ORDER BY r.sent_at DESC"
)

// mysqlStore implements MessageStore on a MySQL `messages` table.
// The table DDL is owned by the deployment, not this process.
type mysqlStore struct {
	*sql.DB
}

func NewMysqlStore(db *sql.DB) MessageStore {
	return &mysqlStore{db}
}

func (s *mysqlStore) withTx(ctx context.Context, exec func(ctx context.Context, tx *sql.Tx) error) error {
	tx, err := s.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return err
	}

	if err := exec(ctx, tx); err != nil {
		if err2 := tx.Rollback(); err2 != nil {
			glog.Errorf("failed to rollback: %v", err2)
		}
		return err
	}

	return tx.Commit()
}

func (s *mysqlStore) Append(ctx context.Context, senderID, receiverID int32, body string, sentAt time.Time) (*Message, error) {
	if sentAt.IsZero() {
		sentAt = time.Now()
	}

	msg := &Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Body:       body,
		SentAt:     sentAt,
		Status:     StatusSent,
	}

	res, err := s.ExecContext(ctx, insertMessageSQL, senderID, receiverID, body, sentAt, StatusSent)
	if err != nil {
		glog.Errorf("append message exec err: %v", err)
		return nil, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	msg.ID = id
	return msg, nil
}

func (s *mysqlStore) UpdateStatus(ctx context.Context, id int64, status Status) error {
	if !status.Valid() {
		return ErrStatusRegression
	}

	res, err := s.ExecContext(ctx, updateStatusSQL, status, id, status)
	if err != nil {
		glog.Errorf("update status exec err: %v", err)
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Zero rows means either the row is missing or the guard
		// rejected a backward transition; tell them apart.
		var one int
		if err := s.QueryRowContext(ctx, messageExistsSQL, id).Scan(&one); err == sql.ErrNoRows {
			return ErrMessageNotFound
		}
		return ErrStatusRegression
	}
	return nil
}

func (s *mysqlStore) BatchMarkRead(ctx context.Context, receiverID, senderID int32) (int64, error) {
	res, err := s.ExecContext(ctx, batchMarkReadSQL, receiverID, senderID)
	if err != nil {
		glog.Errorf("batch mark read exec err: %v", err)
		return 0, err
	}
	return res.RowsAffected()
}

func (s *mysqlStore) CountUnread(ctx context.Context, receiverID, senderID int32) (int64, error) {
	var n int64
	if err := s.QueryRowContext(ctx, countUnreadSQL, receiverID, senderID).Scan(&n); err != nil {
		glog.Errorf("count unread scan err: %v", err)
		return 0, err
	}
	return n, nil
}

func (s *mysqlStore) QueryRange(ctx context.Context, idA, idB int32, limit int32) ([]*Message, error) {
	var out []*Message

	if err := s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, queryRangeSQL, idA, idB, idB, idA, limit)
		if err != nil {
			glog.Errorf("query range err: %v", err)
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var m Message
			if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Body, &m.SentAt, &m.Status); err != nil {
				glog.Errorf("query range scan err: %v", err)
				return err
			}
			out = append(out, &m)
		}
		return rows.Err()
	}); err != nil {
		return nil, err
	}

	return out, nil
}

func (s *mysqlStore) QueryConversationSummaries(ctx context.Context, uid int32) ([]*ChatSummary, error) {
	var out []*ChatSummary

	if err := s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, querySummariesSQL, uid, uid, uid, uid, uid)
		if err != nil {
			glog.Errorf("query summaries err: %v", err)
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var c ChatSummary
			if err := rows.Scan(&c.CounterpartID, &c.LastMessage, &c.LastMessageTime, &c.UnreadCount); err != nil {
				glog.Errorf("query summaries scan err: %v", err)
				return err
			}
			out = append(out, &c)
		}
		return rows.Err()
	}); err != nil {
		return nil, err
	}

	return out, nil
}
