package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/zerohunger/zerohunger-backend/pkg/db/models"
	"github.com/zerohunger/zerohunger-backend/pkg/enums"
	pkgerrors "github.com/zerohunger/zerohunger-backend/pkg/errors"
	"github.com/zerohunger/zerohunger-backend/pkg/pagination"
)

// Service defines notification delivery and inbox operations.
type Service interface {
	Notify(ctx context.Context, msg Message) (bool, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

// Message is a notification addressed to one user, derived from one event.
type Message struct {
	EventID    uuid.UUID
	UserID     uuid.UUID
	Type       enums.NotificationType
	Title      string
	Body       string
	DonationID *uuid.UUID
}

// ListParams configures pagination for notifications.
type ListParams struct {
	UserID     uuid.UUID
	Limit      int
	Cursor     string
	UnreadOnly bool
}

// View is the API representation of a notification.
type View struct {
	ID         uuid.UUID              `json:"id"`
	Type       enums.NotificationType `json:"type"`
	Title      string                 `json:"title"`
	Message    string                 `json:"message"`
	DonationID *uuid.UUID             `json:"donation_id,omitempty"`
	ReadAt     *time.Time             `json:"read_at"`
	CreatedAt  time.Time              `json:"created_at"`
}

// ListResult wraps returned notifications and the cursor for the next page.
type ListResult struct {
	Items       []View `json:"items"`
	Cursor      string `json:"cursor"`
	UnreadCount int64  `json:"unread_count"`
}

// NewService wires notifications dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &service{repo: repo, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Notify stores msg once per event and recipient. It reports whether a new
// notification was written.
func (s *service) Notify(ctx context.Context, msg Message) (bool, error) {
	if msg.UserID == uuid.Nil || msg.EventID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "notification requires user and event")
	}
	if !msg.Type.IsValid() {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "invalid notification type")
	}
	eventID := msg.EventID
	row := models.Notification{
		ID:         uuid.New(),
		UserID:     msg.UserID,
		Type:       msg.Type,
		Title:      msg.Title,
		Message:    msg.Body,
		DonationID: msg.DonationID,
		EventID:    &eventID,
		CreatedAt:  s.now(),
	}
	inserted, err := s.repo.Create(ctx, &row)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create notification")
	}
	return inserted, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if err := requireID(params.UserID, "user id"); err != nil {
		return nil, err
	}
	query := listNotificationsParams{UserID: params.UserID, Limit: params.Limit, UnreadOnly: params.UnreadOnly}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}
	unread, err := s.repo.CountUnread(ctx, params.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread notifications")
	}

	out := &ListResult{Items: make([]View, len(rows)), UnreadCount: unread}
	for i := range rows {
		out.Items[i] = toView(rows[i])
	}
	if next != nil {
		out.Cursor = pagination.EncodeCursor(*next)
	}
	return out, nil
}

// MarkRead is idempotent for the owner. Someone else's notification reads
// as not found.
func (s *service) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	if err := requireID(userID, "user id"); err != nil {
		return err
	}
	if err := requireID(notificationID, "notification id"); err != nil {
		return err
	}
	result, err := s.repo.MarkRead(ctx, userID, notificationID, s.now())
	switch {
	case err != nil:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	case !result.Found:
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	if err := requireID(userID, "user id"); err != nil {
		return 0, err
	}
	n, err := s.repo.MarkAllRead(ctx, userID, s.now())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return n, nil
}

func requireID(id uuid.UUID, label string) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, label+" required")
	}
	return nil
}

func toView(row models.Notification) View {
	return View{
		ID:         row.ID,
		Type:       row.Type,
		Title:      row.Title,
		Message:    row.Message,
		DonationID: row.DonationID,
		ReadAt:     row.ReadAt,
		CreatedAt:  row.CreatedAt,
	}
}
