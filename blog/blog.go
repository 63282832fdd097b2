package blog

import (
	"bytes"
	"html/template"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"
	"gorm.io/gorm"

	"miblog/accounts"
	"miblog/cache"
	"miblog/common"
	"miblog/engagement"
	"miblog/mentions"
	"miblog/models"
	"miblog/notify"
)

const postsPerPage = 10

type BlogModule struct {
	db         *gorm.DB
	aggregator *engagement.Aggregator
	detector   *mentions.Detector
	notifier   *notify.Notifier
}

// markdown renderer configured with Goldmark and useful extensions
var md = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,     // tables, strikethrough, task lists, autolinks (GFM set)
		extension.Linkify, // linkify raw URLs
	),
	goldmark.WithRendererOptions(
		htmlrenderer.WithUnsafe(), // allow raw HTML passthrough in Markdown
	),
)

func NewBlogModule(db *gorm.DB, notifier *notify.Notifier) *BlogModule {
	return &BlogModule{
		db:         db,
		aggregator: engagement.NewAggregator(db),
		detector:   mentions.NewDetector(db, notifier),
		notifier:   notifier,
	}
}

func (b *BlogModule) RegisterRoutes(router *gin.Engine) {
	router.GET("/", b.index)
	router.GET("/tag/:tagName", b.postsByTag)

	router.GET("/post/create", accounts.RequireAuth, b.newPost)
	router.POST("/post/create", accounts.RequireAuth, b.createPost)
	router.GET("/post/:slug/", b.postDetail)
	router.GET("/post/:slug/edit", accounts.RequireAuth, b.editPost)
	router.POST("/post/:slug/edit", accounts.RequireAuth, b.updatePost)
	router.POST("/post/:slug/delete", accounts.RequireAuth, b.deletePost)
	router.POST("/post/:slug/comment", accounts.RequireAuth, b.createComment)
	router.POST("/post/:slug/review", accounts.RequireAuth, b.createReview)

	router.GET("/comment/:id/:action", accounts.RequireAuth, b.moderateComment)
}

func (b *BlogModule) index(c *gin.Context) {
	query := b.db.Model(&models.Post{}).Where("published = ?", true)

	searchQuery := c.Query("q")
	if searchQuery != "" {
		like := "%" + searchQuery + "%"
		query = query.Where("title LIKE ? OR content LIKE ? OR excerpt LIKE ?", like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{"error": "Error loading posts"})
		return
	}

	page, err := strconv.Atoi(c.Query("page"))
	if err != nil || page < 1 {
		page = 1
	}

	var posts []models.Post
	err = query.Order("published_at DESC").
		Offset((page - 1) * postsPerPage).
		Limit(postsPerPage).
		Find(&posts).Error
	if err != nil {
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{"error": "Error loading posts"})
		return
	}

	totalPages := int((total + postsPerPage - 1) / postsPerPage)

	c.HTML(http.StatusOK, "post_list.html", gin.H{
		"posts":       posts,
		"searchQuery": searchQuery,
		"page":        page,
		"totalPages":  totalPages,
	})
}

func (b *BlogModule) postsByTag(c *gin.Context) {
	tagName := c.Param("tagName")

	var tag models.Tag
	if err := b.db.Where("name = ?", tagName).First(&tag).Error; err != nil {
		c.HTML(http.StatusNotFound, "error.html", gin.H{"error": "Tag not found"})
		return
	}

	var posts []models.Post
	err := b.db.Table("posts").
		Joins("INNER JOIN post_tags ON post_tags.post_id = posts.id").
		Where("posts.published = ? AND post_tags.tag_id = ?", true, tag.ID).
		Order("posts.published_at DESC").
		Find(&posts).Error
	if err != nil {
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{"error": "Error loading posts"})
		return
	}

	c.HTML(http.StatusOK, "posts_by_tag.html", gin.H{
		"tag":   tag,
		"posts": posts,
	})
}

func (b *BlogModule) postDetail(c *gin.Context) {
	var post models.Post
	if err := b.db.Where("slug = ? AND published = ?", c.Param("slug"), true).First(&post).Error; err != nil {
		c.HTML(http.StatusNotFound, "error.html", gin.H{"error": "Post not found"})
		return
	}

	user, loggedIn := accounts.CurrentUser(c, b.db)

	// the post author sees unapproved comments for moderation
	canModerate := loggedIn && user.ID == post.AuthorID

	comments, err := b.aggregator.PostComments(post.ID, canModerate)
	if err != nil {
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{"error": "Error loading comments"})
		return
	}

	approvedCount, _ := b.aggregator.ApprovedCommentCount(post.ID)
	averageRating, _ := b.aggregator.AverageRating(post.ID)
	ratingCount, _ := b.aggregator.RatingCount(post.ID)
	reactionCounts, _ := b.aggregator.ReactionCounts(post.ID)

	var userReaction models.ReactionType
	var userReview *models.Review
	userVotes := make(map[uint]int)
	if loggedIn {
		userReaction, _ = b.aggregator.UserReaction(post.ID, user.ID)
		userReview, _ = b.aggregator.UserReview(post.ID, user.ID)
		for _, comment := range comments {
			userVotes[comment.ID] = b.aggregator.UserVote(comment.ID, user.ID)
		}
	}

	c.HTML(http.StatusOK, "post_detail.html", gin.H{
		"post":           post,
		"contentHTML":    template.HTML(renderMarkdown(post.Content)),
		"tags":           b.postTags(post.ID),
		"comments":       comments,
		"approvedCount":  approvedCount,
		"averageRating":  averageRating,
		"ratingCount":    ratingCount,
		"reactionCounts": reactionCounts,
		"reactionTypes":  models.ReactionTypes,
		"userReaction":   userReaction,
		"userReview":     userReview,
		"userVotes":      userVotes,
		"canModerate":    canModerate,
	})
}

func (b *BlogModule) newPost(c *gin.Context) {
	c.HTML(http.StatusOK, "post_form.html", gin.H{})
}

func (b *BlogModule) createPost(c *gin.Context) {
	user, ok := accounts.CurrentUser(c, b.db)
	if !ok {
		c.Redirect(http.StatusFound, "/login")
		return
	}

	title := c.PostForm("title")
	if title == "" {
		c.HTML(http.StatusBadRequest, "post_form.html", gin.H{"error": "Title is required"})
		return
	}

	slug := c.PostForm("slug")
	if slug == "" {
		slug = Slugify(title)
	}

	post := models.Post{
		AuthorID: user.ID,
		Title:    title,
		Slug:     slug,
		Content:  c.PostForm("content"),
		Excerpt:  c.PostForm("excerpt"),
	}

	if c.PostForm("published") == "on" {
		now := time.Now()
		post.Published = true
		post.PublishedAt = &now
	}

	if err := b.db.Create(&post).Error; err != nil {
		c.HTML(http.StatusInternalServerError, "post_form.html", gin.H{
			"error": "Error creating post",
			"post":  post,
		})
		return
	}

	b.setPostTags(&post, c.PostForm("tags"))
	invalidateFeeds()

	c.Redirect(http.StatusFound, common.PostURL(post.Slug))
}

func (b *BlogModule) editPost(c *gin.Context) {
	user, ok := accounts.CurrentUser(c, b.db)
	if !ok {
		c.Redirect(http.StatusFound, "/login")
		return
	}

	// authors can only edit their own posts
	var post models.Post
	if err := b.db.Where("slug = ? AND author_id = ?", c.Param("slug"), user.ID).First(&post).Error; err != nil {
		c.HTML(http.StatusNotFound, "error.html", gin.H{"error": "Post not found"})
		return
	}

	c.HTML(http.StatusOK, "post_form.html", gin.H{
		"post": post,
		"tags": strings.Join(b.postTags(post.ID), ", "),
	})
}

func (b *BlogModule) updatePost(c *gin.Context) {
	user, ok := accounts.CurrentUser(c, b.db)
	if !ok {
		c.Redirect(http.StatusFound, "/login")
		return
	}

	var post models.Post
	if err := b.db.Where("slug = ? AND author_id = ?", c.Param("slug"), user.ID).First(&post).Error; err != nil {
		c.HTML(http.StatusNotFound, "error.html", gin.H{"error": "Post not found"})
		return
	}

	title := c.PostForm("title")
	if title == "" {
		c.HTML(http.StatusBadRequest, "post_form.html", gin.H{"error": "Title is required", "post": post})
		return
	}

	post.Title = title
	post.Content = c.PostForm("content")
	post.Excerpt = c.PostForm("excerpt")
	post.Published = c.PostForm("published") == "on"

	// the publish timestamp is stamped once and survives later edits
	if post.Published && post.PublishedAt == nil {
		now := time.Now()
		post.PublishedAt = &now
	}

	if err := b.db.Save(&post).Error; err != nil {
		c.HTML(http.StatusInternalServerError, "post_form.html", gin.H{
			"error": "Error saving post",
			"post":  post,
		})
		return
	}

	b.setPostTags(&post, c.PostForm("tags"))
	invalidateFeeds()

	c.Redirect(http.StatusFound, common.PostURL(post.Slug))
}

func (b *BlogModule) deletePost(c *gin.Context) {
	user, ok := accounts.CurrentUser(c, b.db)
	if !ok {
		c.Redirect(http.StatusFound, "/login")
		return
	}

	var post models.Post
	if err := b.db.Where("slug = ? AND author_id = ?", c.Param("slug"), user.ID).First(&post).Error; err != nil {
		c.HTML(http.StatusNotFound, "error.html", gin.H{"error": "Post not found"})
		return
	}

	// clean up dependent rows, foreign keys are not enforced by the driver
	var commentIDs []uint
	b.db.Model(&models.Comment{}).Where("post_id = ?", post.ID).Pluck("id", &commentIDs)
	if len(commentIDs) > 0 {
		b.db.Where("comment_id IN ?", commentIDs).Delete(&models.CommentVote{})
	}
	b.db.Where("post_id = ?", post.ID).Delete(&models.Comment{})
	b.db.Where("post_id = ?", post.ID).Delete(&models.Reaction{})
	b.db.Where("post_id = ?", post.ID).Delete(&models.Review{})
	b.db.Where("post_id = ?", post.ID).Delete(&models.PostTag{})

	if err := b.db.Delete(&post).Error; err != nil {
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{"error": "Error deleting post"})
		return
	}

	invalidateFeeds()
	c.Redirect(http.StatusFound, "/")
}

func (b *BlogModule) createComment(c *gin.Context) {
	user, ok := accounts.CurrentUser(c, b.db)
	if !ok {
		c.Redirect(http.StatusFound, "/login")
		return
	}

	var post models.Post
	if err := b.db.Where("slug = ? AND published = ?", c.Param("slug"), true).First(&post).Error; err != nil {
		c.HTML(http.StatusNotFound, "error.html", gin.H{"error": "Post not found"})
		return
	}

	content := c.PostForm("content")
	if content == "" {
		c.Redirect(http.StatusFound, common.PostURL(post.Slug))
		return
	}

	comment := models.Comment{
		PostID:   int(post.ID),
		AuthorID: &user.ID,
		Name:     notify.DisplayName(user),
		Content:  content,
	}
	if err := b.db.Create(&comment).Error; err != nil {
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{"error": "Error saving comment"})
		return
	}

	// mention and comment notifications are best-effort side effects
	b.detector.Detect(comment.Content, &post, user)
	b.notifier.CommentPosted(&post, user)

	c.Redirect(http.StatusFound, common.PostURL(post.Slug))
}

func (b *BlogModule) createReview(c *gin.Context) {
	user, ok := accounts.CurrentUser(c, b.db)
	if !ok {
		c.Redirect(http.StatusFound, "/login")
		return
	}

	var post models.Post
	if err := b.db.Where("slug = ? AND published = ?", c.Param("slug"), true).First(&post).Error; err != nil {
		c.HTML(http.StatusNotFound, "error.html", gin.H{"error": "Post not found"})
		return
	}

	rating, err := strconv.Atoi(c.PostForm("rating"))
	if err != nil || rating < 1 || rating > 5 {
		c.HTML(http.StatusBadRequest, "error.html", gin.H{"error": "Rating must be between 1 and 5"})
		return
	}

	// one review per (post, user): update in place when it already exists
	var review models.Review
	err = b.db.Where("post_id = ? AND user_id = ?", post.ID, user.ID).First(&review).Error
	if err != nil {
		review = models.Review{
			PostID:  int(post.ID),
			UserID:  user.ID,
			Rating:  rating,
			Comment: c.PostForm("comment"),
		}
		err = b.db.Create(&review).Error
	} else {
		review.Rating = rating
		review.Comment = c.PostForm("comment")
		err = b.db.Save(&review).Error
	}
	if err != nil {
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{"error": "Error saving review"})
		return
	}

	c.Redirect(http.StatusFound, common.PostURL(post.Slug))
}

func (b *BlogModule) moderateComment(c *gin.Context) {
	user, ok := accounts.CurrentUser(c, b.db)
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
	if err := b.db.First(&comment, commentID).Error; err != nil {
		c.HTML(http.StatusNotFound, "error.html", gin.H{"error": "Comment not found"})
		return
	}

	var post models.Post
	if err := b.db.First(&post, comment.PostID).Error; err != nil {
		c.HTML(http.StatusNotFound, "error.html", gin.H{"error": "Post not found"})
		return
	}

	if user.ID != post.AuthorID {
		c.HTML(http.StatusForbidden, "error.html", gin.H{
			"error": "You do not have permission to moderate this comment",
		})
		return
	}

	switch c.Param("action") {
	case "approve":
		comment.Approved = true
	case "reject":
		comment.Approved = false
	default:
		c.HTML(http.StatusNotFound, "error.html", gin.H{"error": "Unknown action"})
		return
	}

	if err := b.db.Save(&comment).Error; err != nil {
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{"error": "Error saving comment"})
		return
	}

	c.Redirect(http.StatusFound, common.PostURL(post.Slug))
}

// postTags returns the tag names attached to a post.
func (b *BlogModule) postTags(postID uint) []string {
	var names []string
	b.db.Table("tags").
		Joins("INNER JOIN post_tags ON post_tags.tag_id = tags.id").
		Where("post_tags.post_id = ?", postID).
		Order("tags.name").
		Pluck("tags.name", &names)
	return names
}

// setPostTags replaces a post's tags with the comma-separated list submitted
// by the form, creating tags that do not exist yet.
func (b *BlogModule) setPostTags(post *models.Post, tagList string) {
	b.db.Where("post_id = ?", post.ID).Delete(&models.PostTag{})

	for _, name := range strings.Split(tagList, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		var tag models.Tag
		if err := b.db.Where("name = ?", name).First(&tag).Error; err != nil {
			tag = models.Tag{Name: name}
			if err := b.db.Create(&tag).Error; err != nil {
				continue
			}
		}

		b.db.Create(&models.PostTag{PostID: int(post.ID), TagID: int(tag.ID)})
	}
}

// invalidateFeeds drops the cached RSS and sitemap documents after a post
// changes, so syndication picks the change up on the next request.
func invalidateFeeds() {
	cache.ClearKind("feeds")
	cache.ClearKind("sitemap")
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify turns a title into a URL-safe slug.
func Slugify(title string) string {
	slug := strings.ToLower(title)
	slug = slugPattern.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

func renderMarkdown(content string) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(content), &buf); err != nil {
		// on error, fall back to the raw content rather than breaking the page
		return content
	}
	return buf.String()
}
