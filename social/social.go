package social

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"miblog/accounts"
	"miblog/common"
	"miblog/engagement"
	"miblog/models"
	"miblog/notify"
)

// Reaction toggle outcomes.
const (
	ReactionAdded   = "added"
	ReactionUpdated = "updated"
	ReactionRemoved = "removed"
)

// SocialModule owns the per-user reaction and vote state machines and their
// HTTP endpoints.
type SocialModule struct {
	db         *gorm.DB
	aggregator *engagement.Aggregator
	notifier   *notify.Notifier
}

func NewSocialModule(db *gorm.DB, notifier *notify.Notifier) *SocialModule {
	return &SocialModule{
		db:         db,
		aggregator: engagement.NewAggregator(db),
		notifier:   notifier,
	}
}

func (s *SocialModule) RegisterRoutes(router *gin.Engine) {
	router.POST("/post/:slug/react", accounts.RequireAuth, s.react)
	router.POST("/comment/:id/vote", accounts.RequireAuth, s.vote)
	router.POST("/comment/:id/pin", accounts.RequireAuth, s.togglePin)
}

// ToggleReaction applies toggle semantics for a user's single reaction per
// post: first submission creates the row (and notifies the post author),
// resubmitting the same type removes it, a different type replaces it.
func (s *SocialModule) ToggleReaction(post *models.Post, user *models.User, reactionType models.ReactionType) (string, error) {
	var existing models.Reaction
	err := s.db.Where("post_id = ? AND user_id = ?", post.ID, user.ID).First(&existing).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		reaction := models.Reaction{
			PostID: int(post.ID),
			UserID: user.ID,
			Type:   reactionType,
		}
		// a concurrent first submission updates the existing row instead of
		// failing on the unique index
		err := s.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "post_id"}, {Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"type": reactionType}),
		}).Create(&reaction).Error
		if err != nil {
			return "", err
		}
		// only a brand new reaction notifies
		s.notifier.ReactionAdded(post, user, reactionType)
		return ReactionAdded, nil
	}
	if err != nil {
		return "", err
	}

	if existing.Type == reactionType {
		if err := s.db.Delete(&existing).Error; err != nil {
			return "", err
		}
		return ReactionRemoved, nil
	}

	existing.Type = reactionType
	if err := s.db.Save(&existing).Error; err != nil {
		return "", err
	}
	return ReactionUpdated, nil
}

// CastVote upserts a user's vote on a comment. An explicit 0 is stored, which
// keeps "voted neutral" distinct from "never voted". The write is a single
// ON CONFLICT upsert, so concurrent submissions serialize into the one
// (comment, user) row.
func (s *SocialModule) CastVote(commentID uint, userID int, value int) (int, error) {
	vote := models.CommentVote{
		CommentID: int(commentID),
		UserID:    userID,
		Value:     value,
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "comment_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"value":      value,
			"updated_at": time.Now(),
		}),
	}).Create(&vote).Error
	if err != nil {
		return 0, err
	}

	return s.aggregator.CommentScore(commentID)
}

func (s *SocialModule) react(c *gin.Context) {
	user, ok := accounts.CurrentUser(c, s.db)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Login required"})
		return
	}

	var post models.Post
	if err := s.db.Where("slug = ? AND published = ?", c.Param("slug"), true).First(&post).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Post not found"})
		return
	}

	reactionType := models.ReactionType(c.PostForm("reaction_type"))
	if !reactionType.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid reaction type"})
		return
	}

	action, err := s.ToggleReaction(&post, user, reactionType)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Error saving reaction"})
		return
	}

	counts, err := s.aggregator.ReactionCounts(post.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Error loading reactions"})
		return
	}

	var userReaction interface{}
	if action != ReactionRemoved {
		userReaction = reactionType
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"action":          action,
		"reaction_counts": counts,
		"user_reaction":   userReaction,
	})
}

func (s *SocialModule) vote(c *gin.Context) {
	user, ok := accounts.CurrentUser(c, s.db)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Login required"})
		return
	}

	commentID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid comment id"})
		return
	}

	var comment models.Comment
	if err := s.db.First(&comment, commentID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Comment not found"})
		return
	}

	value, err := strconv.Atoi(c.PostForm("vote"))
	if err != nil || !models.ValidVote(value) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid vote value"})
		return
	}

	score, err := s.CastVote(comment.ID, user.ID, value)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Error saving vote"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"score":     score,
		"user_vote": value,
	})
}

func (s *SocialModule) togglePin(c *gin.Context) {
	user, ok := accounts.CurrentUser(c, s.db)
	if !ok {
		c.Redirect(http.StatusFound, "/login")
		return
	}

	commentID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.HTML(http.StatusNotFound, "error.html", gin.H{"error": "Comment not found"})
		return
	}

	var comment models.Comment
	if err := s.db.First(&comment, commentID).Error; err != nil {
		c.HTML(http.StatusNotFound, "error.html", gin.H{"error": "Comment not found"})
		return
	}

	var post models.Post
	if err := s.db.First(&post, comment.PostID).Error; err != nil {
		c.HTML(http.StatusNotFound, "error.html", gin.H{"error": "Post not found"})
		return
	}

	if user.ID != post.AuthorID {
		c.HTML(http.StatusForbidden, "error.html", gin.H{
			"error": "You do not have permission to pin this comment",
		})
		return
	}

	comment.Pinned = !comment.Pinned
	if err := s.db.Save(&comment).Error; err != nil {
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{"error": "Error saving comment"})
		return
	}

	c.Redirect(http.StatusFound, common.PostURL(post.Slug))
}
