package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
	"github.com/angelmondragon/orderdesk-backend/pkg/pagination"
)

type fakeInboxRepository struct {
	listParams listNotificationsParams
	listRows   []models.Notification
	listNext   *pagination.Cursor
	listErr    error
	markResult notificationMarkResult
	markErr    error
	markAll    int64
	markAllErr error
	unread     int64
	unreadErr  error
}

func (f *fakeInboxRepository) WithTx(*gorm.DB) InboxRepository { return f }

func (f *fakeInboxRepository) Create(context.Context, *models.Notification) (bool, error) {
	return true, nil
}

func (f *fakeInboxRepository) List(_ context.Context, params listNotificationsParams) ([]models.Notification, *pagination.Cursor, error) {
	f.listParams = params
	return f.listRows, f.listNext, f.listErr
}

func (f *fakeInboxRepository) MarkRead(context.Context, uuid.UUID, uuid.UUID, time.Time) (notificationMarkResult, error) {
	return f.markResult, f.markErr
}

func (f *fakeInboxRepository) MarkAllRead(context.Context, uuid.UUID, time.Time) (int64, error) {
	return f.markAll, f.markAllErr
}

func (f *fakeInboxRepository) CountUnread(context.Context, uuid.UUID) (int64, error) {
	return f.unread, f.unreadErr
}

func (f *fakeInboxRepository) DeleteOlderThan(context.Context, *gorm.DB, time.Time) (int64, error) {
	return 0, nil
}

func TestInboxServiceListEncodesCursor(t *testing.T) {
	next := &pagination.Cursor{CreatedAt: time.Date(2026, 3, 4, 19, 0, 0, 0, time.UTC), ID: uuid.New()}
	repo := &fakeInboxRepository{listRows: []models.Notification{{ID: uuid.New()}}, listNext: next}
	svc, err := NewInboxService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	tenantID := uuid.New()
	result, err := svc.List(context.Background(), ListParams{TenantID: tenantID, Limit: 10, UnreadOnly: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if repo.listParams.TenantID != tenantID || repo.listParams.Limit != 10 || !repo.listParams.UnreadOnly {
		t.Fatalf("unexpected repo params: %+v", repo.listParams)
	}
	if result.Cursor != pagination.EncodeCursor(*next) {
		t.Fatalf("unexpected cursor %q", result.Cursor)
	}

	parsed, err := pagination.ParseCursor(result.Cursor)
	if err != nil {
		t.Fatalf("parse cursor: %v", err)
	}
	if _, err := svc.List(context.Background(), ListParams{TenantID: tenantID, Cursor: result.Cursor}); err != nil {
		t.Fatalf("list with cursor: %v", err)
	}
	if repo.listParams.Cursor == nil || repo.listParams.Cursor.ID != parsed.ID {
		t.Fatalf("cursor not forwarded: %+v", repo.listParams.Cursor)
	}
}

func TestInboxServiceListEmptyIsNotNil(t *testing.T) {
	svc, _ := NewInboxService(&fakeInboxRepository{})
	result, err := svc.List(context.Background(), ListParams{TenantID: uuid.New()})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if result.Items == nil || result.Cursor != "" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestInboxServiceListValidates(t *testing.T) {
	svc, _ := NewInboxService(&fakeInboxRepository{})

	if _, err := svc.List(context.Background(), ListParams{}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.List(context.Background(), ListParams{TenantID: uuid.New(), Cursor: "%%%"}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for cursor, got %v", err)
	}
}

func TestInboxServiceListWrapsRepositoryErrors(t *testing.T) {
	svc, _ := NewInboxService(&fakeInboxRepository{listErr: errors.New("boom")})
	if _, err := svc.List(context.Background(), ListParams{TenantID: uuid.New()}); !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestInboxServiceListReportsUnreadTotal(t *testing.T) {
	repo := &fakeInboxRepository{listRows: []models.Notification{{ID: uuid.New()}}, unread: 7}
	svc, _ := NewInboxService(repo)
	result, err := svc.List(context.Background(), ListParams{TenantID: uuid.New(), Limit: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if result.Unread != 7 {
		t.Fatalf("expected unread total 7, got %d", result.Unread)
	}

	repo.unreadErr = errors.New("timeout")
	if _, err := svc.List(context.Background(), ListParams{TenantID: uuid.New()}); !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestInboxServiceMarkRead(t *testing.T) {
	repo := &fakeInboxRepository{markResult: notificationMarkResult{Found: true}}
	svc, _ := NewInboxService(repo)

	if err := svc.MarkRead(context.Background(), uuid.New(), uuid.New()); err != nil {
		t.Fatalf("already-read entry should succeed: %v", err)
	}

	repo.markResult = notificationMarkResult{}
	if err := svc.MarkRead(context.Background(), uuid.New(), uuid.New()); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := svc.MarkRead(context.Background(), uuid.New(), uuid.Nil); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestInboxServiceMarkAllRead(t *testing.T) {
	svc, _ := NewInboxService(&fakeInboxRepository{markAll: 3})
	count, err := svc.MarkAllRead(context.Background(), uuid.New())
	if err != nil || count != 3 {
		t.Fatalf("unexpected result %d %v", count, err)
	}
	if _, err := svc.MarkAllRead(context.Background(), uuid.Nil); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNewInboxServiceRequiresRepository(t *testing.T) {
	if _, err := NewInboxService(nil); err == nil {
		t.Fatal("expected error")
	}
}
