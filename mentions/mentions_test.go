package mentions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"miblog/models"
	"miblog/notify"
)

func setupTestDB() *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		panic("failed to connect database")
	}

	db.AutoMigrate(&models.User{}, &models.Post{}, &models.Notification{})
	return db
}

func createTestUser(db *gorm.DB, username string) *models.User {
	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hashedpassword",
	}
	db.Create(user)
	return user
}

func createTestPost(db *gorm.DB, authorID int) *models.Post {
	now := time.Now()
	post := &models.Post{
		AuthorID:    authorID,
		Title:       "Test Post",
		Slug:        "test-post",
		Content:     "Test content",
		Published:   true,
		PublishedAt: &now,
	}
	db.Create(post)
	return post
}

func newTestDetector(db *gorm.DB) *Detector {
	return NewDetector(db, notify.NewNotifier(db))
}

func TestDetect_OrderAndDuplicatesPreserved(t *testing.T) {
	db := setupTestDB()
	detector := newTestDetector(db)

	alice := createTestUser(db, "alice")
	bob := createTestUser(db, "bob")
	carol := createTestUser(db, "carol")
	post := createTestPost(db, carol.ID)

	created := detector.Detect("hello @alice and @bob, cc @alice", post, carol)

	// duplicates are intentionally not deduplicated
	assert.Equal(t, 3, len(created))
	assert.Equal(t, alice.ID, created[0].UserID)
	assert.Equal(t, bob.ID, created[1].UserID)
	assert.Equal(t, alice.ID, created[2].UserID)

	var stored []models.Notification
	db.Order("id").Find(&stored)
	assert.Equal(t, 3, len(stored))
	for _, n := range stored {
		assert.Equal(t, models.NotificationMention, n.Type)
		assert.Equal(t, "/post/test-post/", n.URL)
		assert.False(t, n.IsRead)
	}
}

func TestDetect_SelfMentionSkipped(t *testing.T) {
	db := setupTestDB()
	detector := newTestDetector(db)

	alice := createTestUser(db, "alice")
	post := createTestPost(db, alice.ID)

	created := detector.Detect("talking to myself @alice", post, alice)

	assert.Equal(t, 0, len(created))

	var count int64
	db.Model(&models.Notification{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestDetect_UnknownUsernameIgnored(t *testing.T) {
	db := setupTestDB()
	detector := newTestDetector(db)

	carol := createTestUser(db, "carol")
	post := createTestPost(db, carol.ID)

	created := detector.Detect("hey @ghost, anyone home?", post, carol)

	assert.Equal(t, 0, len(created))
}

func TestDetect_NoMentions(t *testing.T) {
	db := setupTestDB()
	detector := newTestDetector(db)

	carol := createTestUser(db, "carol")
	post := createTestPost(db, carol.ID)

	created := detector.Detect("plain text without any mention", post, carol)

	assert.Equal(t, 0, len(created))
}

func TestDetect_MessageNamesActor(t *testing.T) {
	db := setupTestDB()
	detector := newTestDetector(db)

	createTestUser(db, "alice")
	carol := createTestUser(db, "carol")
	carol.DisplayName = "Carol C."
	db.Save(carol)
	post := createTestPost(db, carol.ID)

	created := detector.Detect("fyi @alice", post, carol)

	assert.Equal(t, 1, len(created))
	assert.Contains(t, created[0].Message, "Carol C.")
	assert.Contains(t, created[0].Message, post.Title)
}
