package notify

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"miblog/accounts"
	"miblog/models"
)

// NotificationsModule serves the per-user notification inbox.
type NotificationsModule struct {
	db *gorm.DB
}

func NewNotificationsModule(db *gorm.DB) *NotificationsModule {
	return &NotificationsModule{db: db}
}

func (m *NotificationsModule) RegisterRoutes(router *gin.Engine) {
	router.GET("/notifications", accounts.RequireAuth, m.list)
	router.POST("/notification/:id/read", accounts.RequireAuth, m.markRead)
	router.GET("/notifications/count", accounts.RequireAuth, m.unreadCount)
}

func (m *NotificationsModule) list(c *gin.Context) {
	user, ok := accounts.CurrentUser(c, m.db)
	if !ok {
		c.Redirect(http.StatusFound, "/login")
		return
	}

	var notifications []models.Notification
	if err := m.db.Where("user_id = ?", user.ID).
		Order("created_at DESC").
		Limit(20).
		Find(&notifications).Error; err != nil {
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{
			"error": "Error loading notifications",
		})
		return
	}

	var unread int64
	m.db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", user.ID, false).
		Count(&unread)

	c.HTML(http.StatusOK, "notifications.html", gin.H{
		"notifications": notifications,
		"unread_count":  unread,
	})
}

func (m *NotificationsModule) markRead(c *gin.Context) {
	user, ok := accounts.CurrentUser(c, m.db)
	if !ok {
		c.Redirect(http.StatusFound, "/login")
		return
	}

	notificationID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Notification not found"})
		return
	}

	var notification models.Notification
	if err := m.db.Where("id = ? AND user_id = ?", notificationID, user.ID).
		First(&notification).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Notification not found"})
		return
	}

	notification.IsRead = true
	if err := m.db.Save(&notification).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Error saving notification"})
		return
	}

	if c.GetHeader("X-Requested-With") == "XMLHttpRequest" {
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}

	c.Redirect(http.StatusFound, "/notifications")
}

func (m *NotificationsModule) unreadCount(c *gin.Context) {
	user, ok := accounts.CurrentUser(c, m.db)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"count": 0})
		return
	}

	var count int64
	m.db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", user.ID, false).
		Count(&count)

	c.JSON(http.StatusOK, gin.H{"count": count})
}
