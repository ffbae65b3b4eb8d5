package controllers

import (
	"net/http"
	"strings"

	"github.com/zerohunger/zerohunger-backend/api/validators"
	"github.com/zerohunger/zerohunger-backend/internal/notifications"
	"github.com/zerohunger/zerohunger-backend/pkg/logger"
)

const maxNotificationPage = 100

// ListNotifications pages through the caller's notifications, newest first.
func ListNotifications(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(logg, http.StatusOK, func(c *call) (any, error) {
		limit, err := validators.ParseQueryInt(c.r, "limit", 0, 1, maxNotificationPage)
		if err != nil {
			return nil, err
		}
		unread, err := validators.ParseQueryBool(c.r, "unreadOnly")
		if err != nil {
			return nil, err
		}
		return svc.List(c.ctx, notifications.ListParams{
			UserID:     c.viewer.UserID,
			Limit:      limit,
			Cursor:     strings.TrimSpace(c.r.URL.Query().Get("cursor")),
			UnreadOnly: unread,
		})
	})
}

func MarkNotificationRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(logg, http.StatusOK, func(c *call) (any, error) {
		id, err := pathUUID(c.r, "notificationId", "notification id")
		if err != nil {
			return nil, err
		}
		if err := svc.MarkRead(c.ctx, c.viewer.UserID, id); err != nil {
			return nil, err
		}
		return map[string]bool{"read": true}, nil
	})
}

func MarkAllNotificationsRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(logg, http.StatusOK, func(c *call) (any, error) {
		updated, err := svc.MarkAllRead(c.ctx, c.viewer.UserID)
		if err != nil {
			return nil, err
		}
		return map[string]int64{"updated": updated}, nil
	})
}
