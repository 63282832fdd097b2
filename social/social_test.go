package social

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

	db.AutoMigrate(&models.User{}, &models.Post{}, &models.Comment{},
		&models.CommentVote{}, &models.Reaction{}, &models.Notification{})
	return db
}

func setupTestModule(db *gorm.DB) *SocialModule {
	return NewSocialModule(db, notify.NewNotifier(db))
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

func createTestComment(db *gorm.DB, postID uint) *models.Comment {
	comment := &models.Comment{
		PostID:   int(postID),
		Content:  "Test comment",
		Approved: true,
	}
	db.Create(comment)
	return comment
}

func reactionRows(db *gorm.DB, postID uint, userID int) []models.Reaction {
	var rows []models.Reaction
	db.Where("post_id = ? AND user_id = ?", postID, userID).Find(&rows)
	return rows
}

func TestToggleReaction_FirstSubmissionAdds(t *testing.T) {
	db := setupTestDB()
	module := setupTestModule(db)

	author := createTestUser(db, "author")
	reader := createTestUser(db, "reader")
	post := createTestPost(db, author.ID)

	action, err := module.ToggleReaction(post, reader, models.ReactionLike)

	assert.NoError(t, err)
	assert.Equal(t, ReactionAdded, action)

	rows := reactionRows(db, post.ID, reader.ID)
	assert.Equal(t, 1, len(rows))
	assert.Equal(t, models.ReactionLike, rows[0].Type)

	// first creation notifies the post author
	var notifications int64
	db.Model(&models.Notification{}).Where("user_id = ?", author.ID).Count(&notifications)
	assert.Equal(t, int64(1), notifications)
}

func TestToggleReaction_SameTypeRemoves(t *testing.T) {
	db := setupTestDB()
	module := setupTestModule(db)

	author := createTestUser(db, "author")
	reader := createTestUser(db, "reader")
	post := createTestPost(db, author.ID)

	module.ToggleReaction(post, reader, models.ReactionLike)
	action, err := module.ToggleReaction(post, reader, models.ReactionLike)

	assert.NoError(t, err)
	assert.Equal(t, ReactionRemoved, action)
	assert.Equal(t, 0, len(reactionRows(db, post.ID, reader.ID)))
}

func TestToggleReaction_DifferentTypeUpdates(t *testing.T) {
	db := setupTestDB()
	module := setupTestModule(db)

	author := createTestUser(db, "author")
	reader := createTestUser(db, "reader")
	post := createTestPost(db, author.ID)

	module.ToggleReaction(post, reader, models.ReactionLike)
	action, err := module.ToggleReaction(post, reader, models.ReactionLove)

	assert.NoError(t, err)
	assert.Equal(t, ReactionUpdated, action)

	rows := reactionRows(db, post.ID, reader.ID)
	assert.Equal(t, 1, len(rows))
	assert.Equal(t, models.ReactionLove, rows[0].Type)

	// swapping the reaction does not notify again
	var notifications int64
	db.Model(&models.Notification{}).Count(&notifications)
	assert.Equal(t, int64(1), notifications)
}

func TestToggleReaction_AddSwapAddBack(t *testing.T) {
	db := setupTestDB()
	module := setupTestModule(db)

	author := createTestUser(db, "author")
	reader := createTestUser(db, "reader")
	post := createTestPost(db, author.ID)

	module.ToggleReaction(post, reader, models.ReactionLike)
	module.ToggleReaction(post, reader, models.ReactionLove)
	action, err := module.ToggleReaction(post, reader, models.ReactionLike)

	assert.NoError(t, err)
	assert.Equal(t, ReactionUpdated, action)

	rows := reactionRows(db, post.ID, reader.ID)
	assert.Equal(t, 1, len(rows))
	assert.Equal(t, models.ReactionLike, rows[0].Type)
}

func TestToggleReaction_SelfReactionDoesNotNotify(t *testing.T) {
	db := setupTestDB()
	module := setupTestModule(db)

	author := createTestUser(db, "author")
	post := createTestPost(db, author.ID)

	action, err := module.ToggleReaction(post, author, models.ReactionLike)

	assert.NoError(t, err)
	assert.Equal(t, ReactionAdded, action)

	var notifications int64
	db.Model(&models.Notification{}).Count(&notifications)
	assert.Equal(t, int64(0), notifications)
}

func TestCastVote_CreatesThenUpdates(t *testing.T) {
	db := setupTestDB()
	module := setupTestModule(db)

	author := createTestUser(db, "author")
	voter := createTestUser(db, "voter")
	post := createTestPost(db, author.ID)
	comment := createTestComment(db, post.ID)

	score, err := module.CastVote(comment.ID, voter.ID, models.VoteUp)
	assert.NoError(t, err)
	assert.Equal(t, 1, score)

	score, err = module.CastVote(comment.ID, voter.ID, models.VoteDown)
	assert.NoError(t, err)
	assert.Equal(t, -1, score)

	// still a single row for the (comment, user) pair
	var count int64
	db.Model(&models.CommentVote{}).
		Where("comment_id = ? AND user_id = ?", comment.ID, voter.ID).
		Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestCastVote_ExplicitNeutralIsStored(t *testing.T) {
	db := setupTestDB()
	module := setupTestModule(db)

	author := createTestUser(db, "author")
	voter := createTestUser(db, "voter")
	post := createTestPost(db, author.ID)
	comment := createTestComment(db, post.ID)

	module.CastVote(comment.ID, voter.ID, models.VoteUp)
	score, err := module.CastVote(comment.ID, voter.ID, models.VoteNeutral)

	assert.NoError(t, err)
	assert.Equal(t, 0, score)

	var vote models.CommentVote
	err = db.Where("comment_id = ? AND user_id = ?", comment.ID, voter.ID).First(&vote).Error
	assert.NoError(t, err)
	assert.Equal(t, models.VoteNeutral, vote.Value)
}

func TestCastVote_UpsertsOverExistingRow(t *testing.T) {
	db := setupTestDB()
	module := setupTestModule(db)

	author := createTestUser(db, "author")
	voter := createTestUser(db, "voter")
	post := createTestPost(db, author.ID)
	comment := createTestComment(db, post.ID)

	// a row created outside CastVote, as a concurrent request would
	db.Create(&models.CommentVote{CommentID: int(comment.ID), UserID: voter.ID, Value: models.VoteUp})

	score, err := module.CastVote(comment.ID, voter.ID, models.VoteDown)

	assert.NoError(t, err)
	assert.Equal(t, -1, score)

	var count int64
	db.Model(&models.CommentVote{}).Where("comment_id = ?", comment.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestCastVote_MultipleVoters(t *testing.T) {
	db := setupTestDB()
	module := setupTestModule(db)

	author := createTestUser(db, "author")
	post := createTestPost(db, author.ID)
	comment := createTestComment(db, post.ID)

	module.CastVote(comment.ID, createTestUser(db, "a").ID, models.VoteUp)
	module.CastVote(comment.ID, createTestUser(db, "b").ID, models.VoteUp)
	score, err := module.CastVote(comment.ID, createTestUser(db, "c").ID, models.VoteDown)

	assert.NoError(t, err)
	assert.Equal(t, 1, score)
}

func TestValidVote(t *testing.T) {
	assert.True(t, models.ValidVote(-1))
	assert.True(t, models.ValidVote(0))
	assert.True(t, models.ValidVote(1))
	assert.False(t, models.ValidVote(2))
	assert.False(t, models.ValidVote(-7))
}

func TestReactionTypeValid(t *testing.T) {
	for _, reaction := range models.ReactionTypes {
		assert.True(t, reaction.Valid())
	}
	assert.False(t, models.ReactionType("🎉").Valid())
	assert.False(t, models.ReactionType("like").Valid())
}
