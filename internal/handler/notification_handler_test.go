package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/sigep-hr/sigep-api/internal/dto"
	"github.com/sigep-hr/sigep-api/internal/middleware"
	appErrors "github.com/sigep-hr/sigep-api/pkg/errors"
)

type fakeNotificationSrv struct {
	listUser   string
	unreadOnly bool
	markedID   string
	markErr    error
}

func (f *fakeNotificationSrv) List(_ context.Context, userID string, unreadOnly bool) ([]dto.NotificationView, error) {
	f.listUser = userID
	f.unreadOnly = unreadOnly
	return []dto.NotificationView{{ID: "n-1"}}, nil
}

func (f *fakeNotificationSrv) UnreadCount(_ context.Context, userID string) (*dto.UnreadCountView, error) {
	return &dto.UnreadCountView{Unread: 3}, nil
}

func (f *fakeNotificationSrv) MarkRead(_ context.Context, id, userID string) error {
	f.markedID = id
	return f.markErr
}

func (f *fakeNotificationSrv) MarkAllRead(context.Context, string) error {
	return nil
}

func TestNotificationHandlerListScopedToCaller(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &fakeNotificationSrv{}
	handler := NewNotificationHandler(service)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/notifications?unread=true", nil)
	c.Set(middleware.ContextUserKey, testClaims())

	handler.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", service.listUser)
	assert.True(t, service.unreadOnly)
}

func TestNotificationHandlerMarkReadNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &fakeNotificationSrv{markErr: appErrors.ErrNotFound}
	handler := NewNotificationHandler(service)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/notifications/n-9/read", nil)
	c.Params = gin.Params{{Key: "id", Value: "n-9"}}
	c.Set(middleware.ContextUserKey, testClaims())

	handler.MarkRead(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "n-9", service.markedID)
}
