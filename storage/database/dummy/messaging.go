package dummydb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core/messaging"
)

type messagingRepository struct {
	lockable
}

var _ messaging.Repository = (*messagingRepository)(nil) // interface compliance check

func NewMessagingRepository(db *DB) messaging.Repository {
	return &messagingRepository{lockable: lockable{db: db}}
}

func (repo *messagingRepository) Atomic(ctx context.Context, fn func(repo messaging.Repository) error) error {
	if repo.tx {
		return fn(repo)
	}
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	return fn(&messagingRepository{lockable: lockable{db: repo.db, tx: true}})
}

// messages

func (repo *messagingRepository) CreateMessage(ctx context.Context, m messaging.Message) (messaging.Message, error) {
	defer repo.lock()()

	m.ID = uuid.New().String()
	repo.db.messages[m.ID] = &m
	return m, nil
}

func (repo *messagingRepository) GetMessageByID(ctx context.Context, id string) (messaging.Message, error) {
	defer repo.rLock()()

	if m, ok := repo.db.messages[id]; ok {
		return *m, nil
	}
	return messaging.Message{}, messaging.ErrMessageNotFound
}

func (repo *messagingRepository) QueryMessagesBySenderID(ctx context.Context, senderID string) ([]messaging.Message, error) {
	defer repo.rLock()()

	var msgs []messaging.Message
	for _, m := range repo.db.messages {
		if m.SenderID == senderID {
			msgs = append(msgs, *m)
		}
	}
	return msgs, nil
}

func (repo *messagingRepository) QueryMessagesByReceiverID(ctx context.Context, receiverID string) ([]messaging.Message, error) {
	defer repo.rLock()()

	var msgs []messaging.Message
	for _, m := range repo.db.messages {
		if m.ReceiverID == receiverID {
			msgs = append(msgs, *m)
		}
	}
	return msgs, nil
}

func (repo *messagingRepository) UpdateMessage(ctx context.Context, m messaging.Message) (messaging.Message, error) {
	defer repo.lock()()

	if _, ok := repo.db.messages[m.ID]; !ok {
		return messaging.Message{}, messaging.ErrMessageNotFound
	}
	repo.db.messages[m.ID] = &m
	return m, nil
}

func (repo *messagingRepository) DeleteMessage(ctx context.Context, id string) error {
	defer repo.lock()()
	delete(repo.db.messages, id)
	return nil
}

// notifications

func (repo *messagingRepository) CreateNotification(ctx context.Context, n messaging.Notification) (messaging.Notification, error) {
	defer repo.lock()()

	n.ID = uuid.New().String()
	repo.db.notifications[n.ID] = &n
	return n, nil
}

func (repo *messagingRepository) GetNotificationByID(ctx context.Context, id string) (messaging.Notification, error) {
	defer repo.rLock()()

	if n, ok := repo.db.notifications[id]; ok {
		return *n, nil
	}
	return messaging.Notification{}, messaging.ErrNotificationNotFound
}

func (repo *messagingRepository) QueryNotificationsByReceiverID(ctx context.Context, receiverID string, status ...string) ([]messaging.Notification, error) {
	defer repo.rLock()()

	var notifs []messaging.Notification
	for _, n := range repo.db.notifications {
		if n.ReceiverID != receiverID {
			continue
		}
		if len(status) > 0 && n.Status != status[0] {
			continue
		}
		notifs = append(notifs, *n)
	}
	return notifs, nil
}

func (repo *messagingRepository) UpdateNotification(ctx context.Context, n messaging.Notification) (messaging.Notification, error) {
	defer repo.lock()()

	if _, ok := repo.db.notifications[n.ID]; !ok {
		return messaging.Notification{}, messaging.ErrNotificationNotFound
	}
	repo.db.notifications[n.ID] = &n
	return n, nil
}

func (repo *messagingRepository) DeleteNotificationsByMessageID(ctx context.Context, messageID string) error {
	defer repo.lock()()

	for id, n := range repo.db.notifications {
		if n.MessageID == messageID {
			delete(repo.db.notifications, id)
		}
	}
	return nil
}

func (repo *messagingRepository) MarkAllNotificationsRead(ctx context.Context, receiverID string) error {
	defer repo.lock()()

	for _, n := range repo.db.notifications {
		if n.ReceiverID == receiverID {
			n.Status = messaging.StatusRead
		}
	}
	return nil
}
