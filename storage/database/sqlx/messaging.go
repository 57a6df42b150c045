package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core/messaging"
)

type messageRow struct {
	ID         string      `db:"id"`
	SenderID   string      `db:"sender_id"`
	ReceiverID string      `db:"receiver_id"`
	Content    null.String `db:"content"`
	SentAt     null.Time   `db:"sent_at"`
	UpdatedAt  null.Time   `db:"updated_at"`
}

type notificationRow struct {
	ID         string      `db:"id"`
	MessageID  string      `db:"message_id"`
	SenderID   string      `db:"sender_id"`
	ReceiverID string      `db:"receiver_id"`
	Content    null.String `db:"content"`
	Status     null.String `db:"status"`
	CreatedAt  null.Time   `db:"created_at"`
}

func packMessage(m messaging.Message) messageRow {
	return messageRow{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    null.NewString(m.Content, m.Content != ""),
		SentAt:     null.NewTime(m.SentAt.UTC(), !m.SentAt.IsZero()),
		UpdatedAt:  null.NewTime(m.UpdatedAt.UTC(), !m.UpdatedAt.IsZero()),
	}
}

func unpackMessage(row messageRow) messaging.Message {
	return messaging.Message{
		ID:         row.ID,
		SenderID:   row.SenderID,
		ReceiverID: row.ReceiverID,
		Content:    row.Content.String,
		SentAt:     row.SentAt.Time,
		UpdatedAt:  row.UpdatedAt.Time,
	}
}

func packNotification(n messaging.Notification) notificationRow {
	return notificationRow{
		ID:         n.ID,
		MessageID:  n.MessageID,
		SenderID:   n.SenderID,
		ReceiverID: n.ReceiverID,
		Content:    null.NewString(n.Content, n.Content != ""),
		Status:     null.NewString(n.Status, n.Status != ""),
		CreatedAt:  null.NewTime(n.CreatedAt.UTC(), !n.CreatedAt.IsZero()),
	}
}

func unpackNotification(row notificationRow) messaging.Notification {
	return messaging.Notification{
		ID:         row.ID,
		MessageID:  row.MessageID,
		SenderID:   row.SenderID,
		ReceiverID: row.ReceiverID,
		Content:    row.Content.String,
		Status:     row.Status.String,
		CreatedAt:  row.CreatedAt.Time,
	}
}

type messagingRepository struct {
	db  *sqlx.DB
	ext sqlx.ExtContext
}

var _ messaging.Repository = (*messagingRepository)(nil) // interface compliance check

func NewMessagingRepository(db *sqlx.DB) *messagingRepository {
	return &messagingRepository{db: db, ext: db}
}

func (repo *messagingRepository) Atomic(ctx context.Context, fn func(repo messaging.Repository) error) error {
	return atomic(ctx, repo.db, repo.ext, func(ext sqlx.ExtContext) error {
		return fn(&messagingRepository{db: repo.db, ext: ext})
	})
}

func (repo *messagingRepository) CreateMessage(ctx context.Context, m messaging.Message) (messaging.Message, error) {
	m.ID = uuid.New().String()
	if _, err := sqlx.NamedExecContext(ctx, repo.ext, `
		INSERT INTO message (id, sender_id, receiver_id, content, sent_at, updated_at)
		VALUES (:id, :sender_id, :receiver_id, :content, :sent_at, :updated_at)`,
		packMessage(m),
	); err != nil {
		return messaging.Message{}, errors.Wrap(err, "inserting message")
	}
	return m, nil
}

func (repo *messagingRepository) GetMessageByID(ctx context.Context, id string) (messaging.Message, error) {
	if _, err := uuid.Parse(id); err != nil {
		return messaging.Message{}, messaging.ErrMessageNotFound
	}
	var row messageRow
	if err := sqlx.GetContext(ctx, repo.ext, &row, `SELECT * FROM message WHERE id = $1`, id); err != nil {
		return messaging.Message{}, trapNoRowsErr(err, messaging.ErrMessageNotFound, "finding message by ID")
	}
	return unpackMessage(row), nil
}

func (repo *messagingRepository) QueryMessagesBySenderID(ctx context.Context, senderID string) ([]messaging.Message, error) {
	return repo.queryMessages(ctx, `SELECT * FROM message WHERE sender_id = $1 ORDER BY sent_at DESC`, senderID)
}

func (repo *messagingRepository) QueryMessagesByReceiverID(ctx context.Context, receiverID string) ([]messaging.Message, error) {
	return repo.queryMessages(ctx, `SELECT * FROM message WHERE receiver_id = $1 ORDER BY sent_at DESC`, receiverID)
}

func (repo *messagingRepository) queryMessages(ctx context.Context, query, arg string) ([]messaging.Message, error) {
	var rows []messageRow
	if err := sqlx.SelectContext(ctx, repo.ext, &rows, query, arg); err != nil {
		return nil, errors.Wrap(err, "querying messages")
	}
	msgs := make([]messaging.Message, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, unpackMessage(row))
	}
	return msgs, nil
}

func (repo *messagingRepository) UpdateMessage(ctx context.Context, m messaging.Message) (messaging.Message, error) {
	res, err := sqlx.NamedExecContext(ctx, repo.ext, `
		UPDATE message SET content = :content, updated_at = :updated_at WHERE id = :id`,
		packMessage(m),
	)
	if err != nil {
		return messaging.Message{}, errors.Wrap(err, "updating message")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return messaging.Message{}, messaging.ErrMessageNotFound
	}
	return m, nil
}

func (repo *messagingRepository) DeleteMessage(ctx context.Context, id string) error {
	if _, err := repo.ext.ExecContext(ctx, `DELETE FROM message WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting message")
	}
	return nil
}

func (repo *messagingRepository) CreateNotification(ctx context.Context, n messaging.Notification) (messaging.Notification, error) {
	n.ID = uuid.New().String()
	if _, err := sqlx.NamedExecContext(ctx, repo.ext, `
		INSERT INTO notification (id, message_id, sender_id, receiver_id, content, status, created_at)
		VALUES (:id, :message_id, :sender_id, :receiver_id, :content, :status, :created_at)`,
		packNotification(n),
	); err != nil {
		return messaging.Notification{}, errors.Wrap(err, "inserting notification")
	}
	return n, nil
}

func (repo *messagingRepository) GetNotificationByID(ctx context.Context, id string) (messaging.Notification, error) {
	if _, err := uuid.Parse(id); err != nil {
		return messaging.Notification{}, messaging.ErrNotificationNotFound
	}
	var row notificationRow
	if err := sqlx.GetContext(ctx, repo.ext, &row, `SELECT * FROM notification WHERE id = $1`, id); err != nil {
		return messaging.Notification{}, trapNoRowsErr(err, messaging.ErrNotificationNotFound, "finding notification by ID")
	}
	return unpackNotification(row), nil
}

func (repo *messagingRepository) QueryNotificationsByReceiverID(ctx context.Context, receiverID string, status ...string) ([]messaging.Notification, error) {
	query := `SELECT * FROM notification WHERE receiver_id = $1`
	args := []interface{}{receiverID}
	if len(status) > 0 {
		query += ` AND status = $2`
		args = append(args, status[0])
	}
	query += ` ORDER BY created_at DESC`

	var rows []notificationRow
	if err := sqlx.SelectContext(ctx, repo.ext, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	notifs := make([]messaging.Notification, 0, len(rows))
	for _, row := range rows {
		notifs = append(notifs, unpackNotification(row))
	}
	return notifs, nil
}

func (repo *messagingRepository) UpdateNotification(ctx context.Context, n messaging.Notification) (messaging.Notification, error) {
	res, err := sqlx.NamedExecContext(ctx, repo.ext, `
		UPDATE notification SET status = :status WHERE id = :id`,
		packNotification(n),
	)
	if err != nil {
		return messaging.Notification{}, errors.Wrap(err, "updating notification")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return messaging.Notification{}, messaging.ErrNotificationNotFound
	}
	return n, nil
}

func (repo *messagingRepository) DeleteNotificationsByMessageID(ctx context.Context, messageID string) error {
	if _, err := repo.ext.ExecContext(ctx, `DELETE FROM notification WHERE message_id = $1`, messageID); err != nil {
		return errors.Wrap(err, "deleting message notifications")
	}
	return nil
}

func (repo *messagingRepository) MarkAllNotificationsRead(ctx context.Context, receiverID string) error {
	if _, err := repo.ext.ExecContext(ctx,
		`UPDATE notification SET status = $2 WHERE receiver_id = $1 AND status <> $2`,
		receiverID, messaging.StatusRead,
	); err != nil {
		return errors.Wrap(err, "marking notifications read")
	}
	return nil
}
