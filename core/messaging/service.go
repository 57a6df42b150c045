package messaging

import (
	"context"
	"errors"
	"net/mail"
	"time"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

var (
	// errors
	ErrMessageNotFound      = errors.New("message not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrReceiverNotFound     = errors.New("receiver not found")
	ErrPermissionDenied     = errors.New("permission denied")
)

type (
	// Repository is the durability boundary for messages and notifications.
	// Atomic runs fn against a transaction-bound Repository; the message ->
	// notification cascade always runs inside one such block so a message can
	// never be persisted without its notification.
	Repository interface {
		Atomic(ctx context.Context, fn func(repo Repository) error) error

		CreateMessage(ctx context.Context, m Message) (Message, error)
		GetMessageByID(ctx context.Context, id string) (Message, error)
		QueryMessagesBySenderID(ctx context.Context, senderID string) ([]Message, error)
		QueryMessagesByReceiverID(ctx context.Context, receiverID string) ([]Message, error)
		UpdateMessage(ctx context.Context, m Message) (Message, error)
		DeleteMessage(ctx context.Context, id string) error

		CreateNotification(ctx context.Context, n Notification) (Notification, error)
		GetNotificationByID(ctx context.Context, id string) (Notification, error)
		// QueryNotificationsByReceiverID optionally narrows by status.
		QueryNotificationsByReceiverID(ctx context.Context, receiverID string, status ...string) ([]Notification, error)
		UpdateNotification(ctx context.Context, n Notification) (Notification, error)
		DeleteNotificationsByMessageID(ctx context.Context, messageID string) error
		MarkAllNotificationsRead(ctx context.Context, receiverID string) error
	}

	Service interface {
		Send(ctx context.Context, nm NewMessage, actor user.User) (Message, error)
		UpdateMessage(ctx context.Context, id, content string, actor user.User) (Message, error)
		DeleteMessage(ctx context.Context, id string, actor user.User) error
		MarkRead(ctx context.Context, notificationID string) (Notification, error)
		MarkUnread(ctx context.Context, notificationID string) (Notification, error)
		MarkAllRead(ctx context.Context, receiverID string) error
		Inbox(ctx context.Context, actor user.User) ([]Message, error)
		Sent(ctx context.Context, actor user.User) ([]Message, error)
		Notifications(ctx context.Context, actor user.User, status ...string) ([]Notification, error)
	}

	service struct {
		repo    Repository
		usrRepo user.Repository
		mailSvc core.EmailService
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, usrRepo user.Repository, mailSvc core.EmailService) Service {
	return &service{
		repo:    repo,
		usrRepo: usrRepo,
		mailSvc: mailSvc,
	}
}

// Send persists the message and derives exactly one UNREAD notification for
// the receiver, both in one transaction. The receiver is also notified by
// email.
func (svc *service) Send(ctx context.Context, nm NewMessage, actor user.User) (Message, error) {
	if err := nm.Validate(); err != nil {
		return Message{}, err
	}

	receiver, err := svc.usrRepo.GetUserByID(ctx, nm.ReceiverID)
	if err != nil {
		if err == user.ErrNotFound {
			return Message{}, ErrReceiverNotFound
		}
		return Message{}, err
	}

	now := time.Now().UTC()
	m := Message{
		SenderID:   actor.ID,
		ReceiverID: receiver.ID,
		Content:    nm.Content,
		SentAt:     now,
		UpdatedAt:  now,
	}

	err = svc.repo.Atomic(ctx, func(repo Repository) error {
		m, err = repo.CreateMessage(ctx, m)
		if err != nil {
			return err
		}
		_, err = repo.CreateNotification(ctx, Notification{
			MessageID:  m.ID,
			SenderID:   m.SenderID,
			ReceiverID: m.ReceiverID,
			Content:    m.Content,
			Status:     StatusUnread,
			CreatedAt:  now,
		})
		return err
	})
	if err != nil {
		return Message{}, err
	}

	svc.sendNewMessageMail(actor, receiver)
	return m, nil
}

// UpdateMessage replaces a message's content. The linked notification keeps
// the content it was created with. Sender only.
func (svc *service) UpdateMessage(ctx context.Context, id, content string, actor user.User) (Message, error) {
	m, err := svc.repo.GetMessageByID(ctx, id)
	if err != nil {
		return Message{}, err
	}
	if m.SenderID != actor.ID && !actor.IsAdmin() {
		return Message{}, ErrPermissionDenied
	}
	m.Content = core.CleanString(content)
	m.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateMessage(ctx, m)
}

// DeleteMessage removes a message together with its derived notifications so
// no notification is left pointing at a missing message. Sender only.
func (svc *service) DeleteMessage(ctx context.Context, id string, actor user.User) error {
	m, err := svc.repo.GetMessageByID(ctx, id)
	if err != nil {
		return err
	}
	if m.SenderID != actor.ID && !actor.IsAdmin() {
		return ErrPermissionDenied
	}
	return svc.repo.Atomic(ctx, func(repo Repository) error {
		if err := repo.DeleteNotificationsByMessageID(ctx, m.ID); err != nil {
			return err
		}
		return repo.DeleteMessage(ctx, m.ID)
	})
}

// MarkRead flips a notification to READ. Idempotent.
func (svc *service) MarkRead(ctx context.Context, notificationID string) (Notification, error) {
	return svc.setStatus(ctx, notificationID, StatusRead)
}

// MarkUnread flips a notification back to UNREAD. Idempotent.
func (svc *service) MarkUnread(ctx context.Context, notificationID string) (Notification, error) {
	return svc.setStatus(ctx, notificationID, StatusUnread)
}

func (svc *service) setStatus(ctx context.Context, notificationID, status string) (Notification, error) {
	n, err := svc.repo.GetNotificationByID(ctx, notificationID)
	if err != nil {
		return Notification{}, err
	}
	if n.Status == status {
		return n, nil
	}
	n.Status = status
	return svc.repo.UpdateNotification(ctx, n)
}

// MarkAllRead flips every notification addressed to receiverID to READ.
// Notifications addressed to other receivers are untouched.
func (svc *service) MarkAllRead(ctx context.Context, receiverID string) error {
	return svc.repo.MarkAllNotificationsRead(ctx, receiverID)
}

func (svc *service) Inbox(ctx context.Context, actor user.User) ([]Message, error) {
	return svc.repo.QueryMessagesByReceiverID(ctx, actor.ID)
}

func (svc *service) Sent(ctx context.Context, actor user.User) ([]Message, error) {
	return svc.repo.QueryMessagesBySenderID(ctx, actor.ID)
}

func (svc *service) Notifications(ctx context.Context, actor user.User, status ...string) ([]Notification, error) {
	return svc.repo.QueryNotificationsByReceiverID(ctx, actor.ID, status...)
}

func (svc *service) sendNewMessageMail(sender, receiver user.User) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: receiver.Name, Address: receiver.Email}},
		Subject:      "You have a new message",
		TemplateName: "message-received",
		TemplateData: struct{ Sender user.User }{sender},
	})
}
