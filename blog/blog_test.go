package blog

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

	db.AutoMigrate(&models.User{}, &models.Post{}, &models.Tag{}, &models.PostTag{},
		&models.Comment{}, &models.CommentVote{}, &models.Reaction{},
		&models.Review{}, &models.Notification{})
	return db
}

func setupTestModule(db *gorm.DB) *BlogModule {
	return NewBlogModule(db, notify.NewNotifier(db))
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

func createTestPost(db *gorm.DB, authorID int, slug string, published bool) *models.Post {
	post := &models.Post{
		AuthorID: authorID,
		Title:    "Test Post",
		Slug:     slug,
		Content:  "# Test Content\n\nThis is a **test** post.",
	}
	if published {
		now := time.Now()
		post.Published = true
		post.PublishedAt = &now
	}
	db.Create(post)
	return post
}

func TestIndex_OnlyPublishedPosts(t *testing.T) {
	db := setupTestDB()

	user := createTestUser(db, "author")
	createTestPost(db, user.ID, "published-post", true)
	createTestPost(db, user.ID, "draft-post", false)

	var posts []models.Post
	db.Where("published = ?", true).Order("published_at DESC").Find(&posts)

	assert.Equal(t, 1, len(posts))
	assert.Equal(t, "published-post", posts[0].Slug)
}

func TestIndex_Search(t *testing.T) {
	db := setupTestDB()

	user := createTestUser(db, "author")
	now := time.Now()
	db.Create(&models.Post{
		AuthorID: user.ID, Title: "Gardening tips", Slug: "gardening",
		Content: "Plant things", Published: true, PublishedAt: &now,
	})
	db.Create(&models.Post{
		AuthorID: user.ID, Title: "Cooking", Slug: "cooking",
		Content: "About gardening too", Published: true, PublishedAt: &now,
	})
	db.Create(&models.Post{
		AuthorID: user.ID, Title: "Travel", Slug: "travel",
		Content: "Unrelated", Published: true, PublishedAt: &now,
	})

	like := "%gardening%"
	var posts []models.Post
	db.Where("published = ?", true).
		Where("title LIKE ? OR content LIKE ? OR excerpt LIKE ?", like, like, like).
		Find(&posts)

	assert.Equal(t, 2, len(posts))
}

func TestPostDetail_DraftNotVisible(t *testing.T) {
	db := setupTestDB()

	user := createTestUser(db, "author")
	post := createTestPost(db, user.ID, "draft-post", false)

	var retrieved models.Post
	err := db.Where("slug = ? AND published = ?", post.Slug, true).First(&retrieved).Error

	assert.Error(t, err)
}

func TestSetPostTags(t *testing.T) {
	db := setupTestDB()
	module := setupTestModule(db)

	user := createTestUser(db, "author")
	post := createTestPost(db, user.ID, "tagged-post", true)

	module.setPostTags(post, "go, web, go-web")

	assert.Equal(t, []string{"go", "go-web", "web"}, module.postTags(post.ID))
}

func TestSetPostTags_ReplacesExisting(t *testing.T) {
	db := setupTestDB()
	module := setupTestModule(db)

	user := createTestUser(db, "author")
	post := createTestPost(db, user.ID, "tagged-post", true)

	module.setPostTags(post, "go, web")
	module.setPostTags(post, "rust")

	assert.Equal(t, []string{"rust"}, module.postTags(post.ID))

	// the old tag rows survive for other posts
	var tagCount int64
	db.Model(&models.Tag{}).Count(&tagCount)
	assert.Equal(t, int64(3), tagCount)
}

func TestSetPostTags_SharedBetweenPosts(t *testing.T) {
	db := setupTestDB()
	module := setupTestModule(db)

	user := createTestUser(db, "author")
	first := createTestPost(db, user.ID, "first", true)
	second := createTestPost(db, user.ID, "second", true)

	module.setPostTags(first, "go")
	module.setPostTags(second, "go")

	// both posts share one tag row
	var tagCount int64
	db.Model(&models.Tag{}).Count(&tagCount)
	assert.Equal(t, int64(1), tagCount)

	var linkCount int64
	db.Model(&models.PostTag{}).Count(&linkCount)
	assert.Equal(t, int64(2), linkCount)
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "hello-world"},
		{"Testing 123", "testing-123"},
		{"Multiple   Spaces", "multiple-spaces"},
		{"Special@#Characters!", "special-characters"},
		{"--Trimmed--", "trimmed"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Slugify(tt.input))
		})
	}
}

func TestRenderMarkdown_Basics(t *testing.T) {
	result := renderMarkdown("# Title\n\nSome **bold** text.")

	assert.Contains(t, result, "<h1>Title</h1>")
	assert.Contains(t, result, "<strong>bold</strong>")
}

func TestRenderMarkdown_List(t *testing.T) {
	result := renderMarkdown("- Item 1\n- Item 2")

	assert.Contains(t, result, "<ul>")
	assert.Contains(t, result, "<li>Item 1</li>")
	assert.Contains(t, result, "<li>Item 2</li>")
}

func TestReviewUpsert_SingleRowPerUser(t *testing.T) {
	db := setupTestDB()

	author := createTestUser(db, "author")
	reviewer := createTestUser(db, "reviewer")
	post := createTestPost(db, author.ID, "reviewed-post", true)

	review := models.Review{PostID: int(post.ID), UserID: reviewer.ID, Rating: 3}
	db.Create(&review)

	// resubmission updates the same row, mirroring the handler's upsert path
	var existing models.Review
	err := db.Where("post_id = ? AND user_id = ?", post.ID, reviewer.ID).First(&existing).Error
	assert.NoError(t, err)

	existing.Rating = 5
	db.Save(&existing)

	var count int64
	db.Model(&models.Review{}).Where("post_id = ?", post.ID).Count(&count)
	assert.Equal(t, int64(1), count)

	var updated models.Review
	db.Where("post_id = ? AND user_id = ?", post.ID, reviewer.ID).First(&updated)
	assert.Equal(t, 5, updated.Rating)
}
