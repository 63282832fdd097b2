package models

import "time"

type User struct {
	ID           int       `gorm:"primary_key;autoIncrement" json:"id"`
	Username     string    `gorm:"unique;not null;index" json:"username"`
	Email        string    `gorm:"unique;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"` // json:"-" prevents password from being exposed in API
	DisplayName  string    `json:"display_name"`
	Bio          string    `gorm:"type:text" json:"bio"`
	CreatedAt    time.Time `json:"created_at"`
}

type Post struct {
	ID          uint       `gorm:"primary_key"`
	AuthorID    int        `gorm:"not null;index" json:"author_id"` // auto-filled
	Title       string     `gorm:"not null" json:"title"`           // mandatory
	Slug        string     `gorm:"unique;not null;index" json:"slug"`
	Content     string     `gorm:"type:text" json:"content"`
	Excerpt     string     `gorm:"type:text" json:"excerpt"` // short summary for listings and feeds
	Published   bool       `gorm:"default:false;index" json:"published"`
	PublishedAt *time.Time `gorm:"index" json:"published_at,omitempty"` // set once, when first published
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type Tag struct {
	ID   uint   `gorm:"primary_key"`
	Name string `gorm:"unique;not null;index" json:"name"`
}

type PostTag struct {
	ID     uint `gorm:"primary_key"`
	PostID int  `gorm:"not null;index" json:"post_id"`
	TagID  int  `gorm:"not null;index" json:"tag_id"`
}

type Comment struct {
	ID        uint      `gorm:"primary_key"`
	PostID    int       `gorm:"not null;index" json:"post_id"`
	AuthorID  *int      `gorm:"index" json:"author_id,omitempty"` // nullable, display falls back to Name
	Name      string    `json:"name"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Approved  bool      `gorm:"default:false;index" json:"approved"`
	Pinned    bool      `gorm:"default:false" json:"pinned"`
	CreatedAt time.Time `json:"created_at"`
}

// CommentVote holds a single user's vote on a comment. The unique index keeps
// one row per (comment, user); resubmitting updates Value in place.
type CommentVote struct {
	ID        uint      `gorm:"primary_key"`
	CommentID int       `gorm:"not null;index;uniqueIndex:uk_comment_user" json:"comment_id"`
	UserID    int       `gorm:"not null;uniqueIndex:uk_comment_user" json:"user_id"`
	Value     int       `gorm:"not null" json:"value"` // -1, 0 or 1
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Reaction holds a single user's reaction to a post, one row per (post, user).
type Reaction struct {
	ID        uint         `gorm:"primary_key"`
	PostID    int          `gorm:"not null;index;uniqueIndex:uk_post_user_reaction" json:"post_id"`
	UserID    int          `gorm:"not null;uniqueIndex:uk_post_user_reaction" json:"user_id"`
	Type      ReactionType `gorm:"size:8;not null" json:"type"`
	CreatedAt time.Time    `json:"created_at"`
}

type Review struct {
	ID        uint      `gorm:"primary_key"`
	PostID    int       `gorm:"not null;index;uniqueIndex:uk_post_user_review" json:"post_id"`
	UserID    int       `gorm:"not null;uniqueIndex:uk_post_user_review" json:"user_id"`
	Rating    int       `gorm:"not null" json:"rating"` // 1..5
	Comment   string    `gorm:"type:text" json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

type Notification struct {
	ID        uint             `gorm:"primary_key"`
	UserID    int              `gorm:"not null;index" json:"user_id"` // recipient
	Type      NotificationType `gorm:"size:20;not null" json:"type"`
	Title     string           `gorm:"not null" json:"title"`
	Message   string           `gorm:"type:text" json:"message"`
	URL       string           `json:"url"`
	IsRead    bool             `gorm:"default:false;index" json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}

// Subscription follows either an author or a tag. AuthorID is set only for
// author subscriptions, Tag only for tag subscriptions. The unique index spans
// all discriminating columns so a user cannot duplicate a subscription.
type Subscription struct {
	ID        uint             `gorm:"primary_key"`
	UserID    int              `gorm:"not null;index;uniqueIndex:uk_subscription" json:"user_id"`
	Type      SubscriptionType `gorm:"size:10;not null;uniqueIndex:uk_subscription" json:"type"`
	AuthorID  *int             `gorm:"uniqueIndex:uk_subscription" json:"author_id,omitempty"`
	Tag       string           `gorm:"uniqueIndex:uk_subscription" json:"tag,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}
