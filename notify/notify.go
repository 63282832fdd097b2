package notify

import (
	"fmt"
	"log"

	"gorm.io/gorm"

	"miblog/common"
	"miblog/models"
)

// Notifier fans a domain event out to the interested recipient as a stored
// notification row. Creation is best-effort: a failed insert is logged and
// never rolls back the action that triggered it.
type Notifier struct {
	db *gorm.DB
}

func NewNotifier(db *gorm.DB) *Notifier {
	return &Notifier{db: db}
}

// IsSelfAction reports whether the actor owns the target. Self-actions never
// produce notifications.
func IsSelfAction(actorID, ownerID int) bool {
	return actorID == ownerID
}

// CommentPosted notifies a post's author that someone commented.
func (n *Notifier) CommentPosted(post *models.Post, actor *models.User) {
	if IsSelfAction(actor.ID, post.AuthorID) {
		return
	}

	n.create(&models.Notification{
		UserID:  post.AuthorID,
		Type:    models.NotificationComment,
		Title:   "New comment on your post",
		Message: fmt.Sprintf("%s commented on your post \"%s\"", DisplayName(actor), post.Title),
		URL:     common.PostURL(post.Slug),
	})
}

// ReactionAdded notifies a post's author about a newly added reaction. Only
// the first submission notifies; toggles and swaps stay silent.
func (n *Notifier) ReactionAdded(post *models.Post, actor *models.User, reaction models.ReactionType) {
	if IsSelfAction(actor.ID, post.AuthorID) {
		return
	}

	n.create(&models.Notification{
		UserID:  post.AuthorID,
		Type:    models.NotificationReaction,
		Title:   "New reaction on your post",
		Message: fmt.Sprintf("%s reacted with %s to your post \"%s\"", DisplayName(actor), reaction, post.Title),
		URL:     common.PostURL(post.Slug),
	})
}

// Mentioned notifies a user that someone mentioned them in a comment.
func (n *Notifier) Mentioned(post *models.Post, mentioned *models.User, actor *models.User) *models.Notification {
	notification := &models.Notification{
		UserID:  mentioned.ID,
		Type:    models.NotificationMention,
		Title:   "You were mentioned in a comment",
		Message: fmt.Sprintf("%s mentioned you in a comment on \"%s\"", DisplayName(actor), post.Title),
		URL:     common.PostURL(post.Slug),
	}
	if !n.create(notification) {
		return nil
	}
	return notification
}

func (n *Notifier) create(notification *models.Notification) bool {
	if err := n.db.Create(notification).Error; err != nil {
		log.Printf("Error creating %s notification for user %d: %v", notification.Type, notification.UserID, err)
		return false
	}
	return true
}

// DisplayName prefers the user's display name, falling back to the username.
func DisplayName(user *models.User) string {
	if user.DisplayName != "" {
		return user.DisplayName
	}
	return user.Username
}
