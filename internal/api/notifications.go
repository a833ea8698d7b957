package api

import (
	"coin_portal/internal/ledger" // Ledger service
	"net/http"                    // HTTP status codes

	"github.com/gin-gonic/gin" // Gin web framework
)

// ListNotificationsHandler returns the notifications of the authenticated account, newest
// first. ?unread=true restricts the list to unread ones.
func ListNotificationsHandler(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		id := accountID(c)
		notifications, err := svc.ListNotifications(ctx, id, c.Query("unread") == "true")
		if err != nil {
			respondError(c, err)
			return
		}
		unread, err := svc.UnreadCount(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"notifications": notifications, "unread": unread})
	}
}

// MarkReadHandler marks one notification read
func MarkReadHandler(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := svc.MarkRead(c.Request.Context(), accountID(c), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"notification": n})
	}
}

// MarkAllReadHandler marks every notification of the account read
func MarkAllReadHandler(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		marked, err := svc.MarkAllRead(c.Request.Context(), accountID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"marked": marked})
	}
}

// ClaimHandler claims a coin reward
func ClaimHandler(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := svc.Claim(c.Request.Context(), accountID(c), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Reward claimed", "notification": n})
	}
}

// DeleteNotificationHandler deletes one notification. A pending reward is forfeited.
func DeleteNotificationHandler(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.DeleteNotification(c.Request.Context(), accountID(c), c.Param("id")); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Notification deleted"})
	}
}
