package gateway

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"hrportal/internal/auth"
	"hrportal/internal/worksystem"
)

func callerEmployeeID(c *gin.Context) (int64, bool) {
	claims, _ := auth.ClaimsFrom(c)
	if claims.EmployeeID <= 0 {
		c.JSON(http.StatusForbidden, gin.H{"error": "token carries no employee id"})
		return 0, false
	}
	return claims.EmployeeID, true
}

func notificationParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return 0, false
	}
	return id, true
}

func (h *handlers) listNotifications(c *gin.Context) {
	employeeID, ok := callerEmployeeID(c)
	if !ok {
		return
	}
	list, err := h.notifications.GetNotifications(c.Request.Context(), employeeID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

func (h *handlers) listDeletedNotifications(c *gin.Context) {
	employeeID, ok := callerEmployeeID(c)
	if !ok {
		return
	}
	list, err := h.notifications.GetDeletedNotifications(c.Request.Context(), employeeID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

func (h *handlers) unreadCount(c *gin.Context) {
	employeeID, ok := callerEmployeeID(c)
	if !ok {
		return
	}
	n, err := h.notifications.GetUnreadCount(c.Request.Context(), employeeID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unreadCount": n})
}

func (h *handlers) markAllRead(c *gin.Context) {
	employeeID, ok := callerEmployeeID(c)
	if !ok {
		return
	}
	if err := h.notifications.MarkAllAsRead(c.Request.Context(), employeeID); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// notificationAction adapts a per-notification backend call into a handler.
func (h *handlers) notificationAction(call func(h *handlers, c *gin.Context, id int64) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := notificationParam(c)
		if !ok {
			return
		}
		if err := call(h, c, id); err != nil {
			h.fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func markRead(h *handlers, c *gin.Context, id int64) error {
	return h.notifications.MarkAsRead(c.Request.Context(), id)
}

func softDelete(h *handlers, c *gin.Context, id int64) error {
	return h.notifications.SoftDelete(c.Request.Context(), id)
}

func restore(h *handlers, c *gin.Context, id int64) error {
	return h.notifications.Restore(c.Request.Context(), id)
}

func hardDelete(h *handlers, c *gin.Context, id int64) error {
	return h.notifications.HardDelete(c.Request.Context(), id)
}

func (h *handlers) listTemplates(c *gin.Context) {
	list, err := h.templates.ListWorkSystemTemplates(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"templates": list})
}

func (h *handlers) putTemplates(c *gin.Context) {
	var body []worksystem.UpsertRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.templates.UpsertWorkSystemTemplates(c.Request.Context(), body); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
