package feed

import (
	"bytes"
	"encoding/xml"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"miblog/cache"
	"miblog/common"
	"miblog/models"
)

const (
	feedLimit    = 20
	feedCacheTTL = 10 * time.Minute
)

// FeedModule serves syndication documents: RSS feeds (site-wide, per author,
// per tag) and the sitemap. Rendered XML is cached to files between requests.
type FeedModule struct {
	db *gorm.DB
}

func NewFeedModule(db *gorm.DB) *FeedModule {
	return &FeedModule{db: db}
}

func (f *FeedModule) RegisterRoutes(router *gin.Engine) {
	router.GET("/rss", f.rss)
	router.GET("/rss/:feedType/:feedID", f.rss)
	router.GET("/sitemap.xml", f.sitemap)
}

type rssFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate,omitempty"`
}

func (f *FeedModule) rss(c *gin.Context) {
	feedType := c.Param("feedType")
	feedID := c.Param("feedID")

	cacheKey := "all"
	if feedType != "" {
		cacheKey = feedType + "/" + feedID
	}

	if doc, ok := cache.ReadCache("feeds", cacheKey, feedCacheTTL); ok {
		c.Data(http.StatusOK, "application/rss+xml; charset=utf-8", []byte(doc))
		return
	}

	var posts []models.Post
	var feedTitle string

	switch {
	case feedType == "author" && feedID != "":
		authorID, err := strconv.Atoi(feedID)
		if err != nil {
			c.String(http.StatusNotFound, "feed not found")
			return
		}
		var author models.User
		if err := f.db.First(&author, authorID).Error; err != nil {
			c.String(http.StatusNotFound, "feed not found")
			return
		}
		feedTitle = "Posts by " + author.Username
		f.db.Where("published = ? AND author_id = ?", true, author.ID).
			Order("published_at DESC").
			Limit(feedLimit).
			Find(&posts)

	case feedType == "tag" && feedID != "":
		var tag models.Tag
		if err := f.db.Where("name = ?", feedID).First(&tag).Error; err != nil {
			c.String(http.StatusNotFound, "feed not found")
			return
		}
		feedTitle = "Posts about " + tag.Name
		f.db.Table("posts").
			Joins("INNER JOIN post_tags ON post_tags.post_id = posts.id").
			Where("posts.published = ? AND post_tags.tag_id = ?", true, tag.ID).
			Order("posts.published_at DESC").
			Limit(feedLimit).
			Find(&posts)

	default:
		feedTitle = "All posts"
		f.db.Where("published = ?", true).
			Order("published_at DESC").
			Limit(feedLimit).
			Find(&posts)
	}

	domain := common.Domain()
	channel := rssChannel{
		Title:       feedTitle,
		Link:        domain + "/",
		Description: "Blog RSS feed",
	}

	for _, post := range posts {
		item := rssItem{
			Title:       post.Title,
			Link:        domain + common.PostURL(post.Slug),
			Description: Summary(&post),
		}
		if post.PublishedAt != nil {
			item.PubDate = post.PublishedAt.Format(time.RFC1123Z)
		}
		channel.Items = append(channel.Items, item)
	}

	body, err := xml.MarshalIndent(rssFeed{Version: "2.0", Channel: channel}, "", "  ")
	if err != nil {
		c.String(http.StatusInternalServerError, "error rendering feed")
		return
	}
	doc := xml.Header + string(body)

	cache.WriteCache("feeds", cacheKey, doc)
	c.Data(http.StatusOK, "application/rss+xml; charset=utf-8", []byte(doc))
}

// Summary is a post's feed description: its excerpt, or the first 200
// characters of the content when no excerpt was written.
func Summary(post *models.Post) string {
	if post.Excerpt != "" {
		return post.Excerpt
	}

	runes := []rune(post.Content)
	if len(runes) <= 200 {
		return post.Content
	}
	return string(runes[:200])
}

func (f *FeedModule) sitemap(c *gin.Context) {
	domain := common.Domain()

	if doc, ok := cache.ReadCache("sitemap", "all", feedCacheTTL); ok {
		c.Header("Content-Type", "application/xml; charset=utf-8")
		c.String(http.StatusOK, doc)
		return
	}

	// Build sitemap XML
	var sitemap strings.Builder
	sitemap.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	sitemap.WriteString("\n")
	sitemap.WriteString(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	sitemap.WriteString("\n")

	sitemap.WriteString("  <url>\n")
	sitemap.WriteString("    <loc>" + domain + "/</loc>\n")
	sitemap.WriteString("    <changefreq>daily</changefreq>\n")
	sitemap.WriteString("    <priority>1.0</priority>\n")
	sitemap.WriteString("  </url>\n")

	var posts []models.Post
	f.db.Where("published = ?", true).Find(&posts)

	for _, post := range posts {
		sitemap.WriteString("  <url>\n")
		sitemap.WriteString("    <loc>" + domain + common.PostURL(post.Slug) + "</loc>\n")
		sitemap.WriteString("    <lastmod>" + post.UpdatedAt.Format(time.RFC3339) + "</lastmod>\n")
		sitemap.WriteString("    <changefreq>monthly</changefreq>\n")
		sitemap.WriteString("    <priority>0.6</priority>\n")
		sitemap.WriteString("  </url>\n")
	}

	// Tag listing pages for tags attached to published posts
	var tags []string
	f.db.Table("tags").
		Joins("INNER JOIN post_tags ON post_tags.tag_id = tags.id").
		Joins("INNER JOIN posts ON posts.id = post_tags.post_id").
		Where("posts.published = ?", true).
		Distinct("tags.name").
		Pluck("tags.name", &tags)

	for _, tag := range tags {
		sitemap.WriteString("  <url>\n")
		sitemap.WriteString("    <loc>" + domain + "/tag/" + xmlEscape(tag) + "</loc>\n")
		sitemap.WriteString("    <changefreq>weekly</changefreq>\n")
		sitemap.WriteString("    <priority>0.4</priority>\n")
		sitemap.WriteString("  </url>\n")
	}

	sitemap.WriteString("</urlset>\n")

	cache.WriteCache("sitemap", "all", sitemap.String())
	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.String(http.StatusOK, sitemap.String())
}

// xmlEscape makes free-form text (tag names come straight from forms) safe
// inside hand-built XML.
func xmlEscape(s string) string {
	var buf bytes.Buffer
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
