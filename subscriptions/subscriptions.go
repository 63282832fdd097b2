package subscriptions

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"miblog/accounts"
	"miblog/email"
	"miblog/models"
)

// SubscriptionsModule lets users follow authors or tags and owns the digest
// batch job that mails them about new posts.
type SubscriptionsModule struct {
	db     *gorm.DB
	mailer email.Mailer
}

func NewSubscriptionsModule(db *gorm.DB, mailer email.Mailer) *SubscriptionsModule {
	return &SubscriptionsModule{db: db, mailer: mailer}
}

func (m *SubscriptionsModule) RegisterRoutes(router *gin.Engine) {
	router.GET("/subscriptions", accounts.RequireAuth, m.list)
	router.POST("/subscriptions", accounts.RequireAuth, m.toggle)
}

func (m *SubscriptionsModule) list(c *gin.Context) {
	user, ok := accounts.CurrentUser(c, m.db)
	if !ok {
		c.Redirect(http.StatusFound, "/login")
		return
	}

	var subs []models.Subscription
	if err := m.db.Where("user_id = ?", user.ID).Find(&subs).Error; err != nil {
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{
			"error": "Error loading subscriptions",
		})
		return
	}

	// authors with at least one published post, offered as follow targets
	var authors []models.User
	m.db.Table("users").
		Joins("INNER JOIN posts ON posts.author_id = users.id").
		Where("posts.published = ?", true).
		Distinct("users.*").
		Order("users.username").
		Find(&authors)

	c.HTML(http.StatusOK, "subscriptions.html", gin.H{
		"subscriptions": subs,
		"authors":       authors,
	})
}

// toggle creates the requested subscription, or removes it when it already
// exists.
func (m *SubscriptionsModule) toggle(c *gin.Context) {
	user, ok := accounts.CurrentUser(c, m.db)
	if !ok {
		c.Redirect(http.StatusFound, "/login")
		return
	}

	subType := models.SubscriptionType(c.PostForm("subscription_type"))
	if !subType.Valid() {
		c.HTML(http.StatusBadRequest, "error.html", gin.H{"error": "Invalid subscription type"})
		return
	}

	switch subType {
	case models.SubscriptionAuthor:
		authorID, err := strconv.Atoi(c.PostForm("author_id"))
		if err != nil {
			c.HTML(http.StatusBadRequest, "error.html", gin.H{"error": "Invalid author"})
			return
		}

		var author models.User
		if err := m.db.First(&author, authorID).Error; err != nil {
			c.HTML(http.StatusNotFound, "error.html", gin.H{"error": "Author not found"})
			return
		}

		var existing models.Subscription
		err = m.db.Where("user_id = ? AND type = ? AND author_id = ?", user.ID, subType, author.ID).
			First(&existing).Error
		if err == nil {
			m.db.Delete(&existing)
		} else {
			m.db.Create(&models.Subscription{
				UserID:   user.ID,
				Type:     models.SubscriptionAuthor,
				AuthorID: &author.ID,
			})
		}

	case models.SubscriptionTag:
		tagName := c.PostForm("tag_name")
		if tagName == "" {
			c.HTML(http.StatusBadRequest, "error.html", gin.H{"error": "Invalid tag"})
			return
		}

		var existing models.Subscription
		err := m.db.Where("user_id = ? AND type = ? AND tag = ?", user.ID, subType, tagName).
			First(&existing).Error
		if err == nil {
			m.db.Delete(&existing)
		} else {
			m.db.Create(&models.Subscription{
				UserID: user.ID,
				Type:   models.SubscriptionTag,
				Tag:    tagName,
			})
		}
	}

	c.Redirect(http.StatusFound, "/subscriptions")
}
