package notifications

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/mesa-backend/pkg/db/models"
	"github.com/angelmondragon/mesa-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mesa-backend/pkg/errors"
	"github.com/angelmondragon/mesa-backend/pkg/pagination"
)

// Service defines notification publish/list/read operations.
type Service interface {
	Publish(ctx context.Context, tx *gorm.DB, input PublishInput) (*models.Notification, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	MarkRead(ctx context.Context, actor string, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, actor string) (int64, error)
}

type service struct {
	repo Repository
}

// PublishInput describes a notification to raise. TargetActor nil means
// broadcast.
type PublishInput struct {
	Kind        enums.NotificationKind
	Title       string
	Message     string
	CreatedBy   string
	TargetActor *string
}

// ListParams configures pagination for one actor's notification feed.
type ListParams struct {
	Actor      string
	Limit      int
	Cursor     string
	UnreadOnly bool
}

// ListResult wraps returned notifications and the cursor for the next page.
type ListResult struct {
	Items  []models.Notification `json:"items"`
	Cursor string                `json:"cursor"`
}

// NewService wires notifications dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &service{repo: repo}, nil
}

// Publish writes the notification, joining the caller's transaction when one
// is given so a rolled-back settlement leaves no orphan messages.
func (s *service) Publish(ctx context.Context, tx *gorm.DB, input PublishInput) (*models.Notification, error) {
	if !input.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid notification kind")
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notification title required")
	}
	if strings.TrimSpace(input.CreatedBy) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notification creator required")
	}

	notification := &models.Notification{
		Kind:        input.Kind,
		Title:       input.Title,
		Message:     input.Message,
		CreatedBy:   input.CreatedBy,
		TargetActor: input.TargetActor,
	}
	if err := s.repo.WithTx(tx).Create(ctx, notification); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create notification")
	}
	return notification, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if strings.TrimSpace(params.Actor) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor required")
	}

	query := listNotificationsParams{
		Actor:      params.Actor,
		Limit:      params.Limit,
		UnreadOnly: params.UnreadOnly,
	}
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

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}

	return &ListResult{
		Items:  rows,
		Cursor: cursor,
	}, nil
}

func (s *service) MarkRead(ctx context.Context, actor string, notificationID uuid.UUID) error {
	if strings.TrimSpace(actor) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "actor required")
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	result, err := s.repo.MarkRead(ctx, actor, notificationID, time.Now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !result.Found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, actor string) (int64, error) {
	if strings.TrimSpace(actor) == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "actor required")
	}

	count, err := s.repo.MarkAllRead(ctx, actor, time.Now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return count, nil
}
