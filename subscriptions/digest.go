package subscriptions

import (
	"fmt"
	"log"
	"strings"
	"time"

	"miblog/common"
	"miblog/models"
	"miblog/notify"
)

// RunDigest finds posts published within the lookback window and mails one
// digest per matching subscription. Author and tag subscriptions are handled
// independently, so a user following both an author and a tag can receive two
// mails about the same posts. Send failures are logged and skipped; the
// returned count covers successful sends only.
//
// The job is meant to be invoked by an external scheduler and assumes it is
// not running concurrently with itself.
func (m *SubscriptionsModule) RunDigest(lookbackHours int) (int, error) {
	cutoff := time.Now().Add(-time.Duration(lookbackHours) * time.Hour)

	var newPosts []models.Post
	err := m.db.Where("published = ? AND published_at >= ?", true, cutoff).
		Order("published_at DESC").
		Find(&newPosts).Error
	if err != nil {
		return 0, err
	}

	if len(newPosts) == 0 {
		log.Printf("No new posts in the last %d hours", lookbackHours)
		return 0, nil
	}

	log.Printf("Found %d new posts", len(newPosts))

	sent := 0
	sent += m.sendAuthorDigests(newPosts)
	sent += m.sendTagDigests(newPosts)

	log.Printf("Sent %d digest emails", sent)
	return sent, nil
}

func (m *SubscriptionsModule) sendAuthorDigests(newPosts []models.Post) int {
	var subs []models.Subscription
	if err := m.db.Where("type = ?", models.SubscriptionAuthor).Find(&subs).Error; err != nil {
		log.Printf("Error loading author subscriptions: %v", err)
		return 0
	}

	sent := 0
	for _, sub := range subs {
		if sub.AuthorID == nil {
			continue
		}

		var matching []models.Post
		for _, post := range newPosts {
			if post.AuthorID == *sub.AuthorID {
				matching = append(matching, post)
			}
		}
		if len(matching) == 0 {
			continue
		}

		var subscriber, author models.User
		if err := m.db.First(&subscriber, sub.UserID).Error; err != nil {
			continue
		}
		if err := m.db.First(&author, *sub.AuthorID).Error; err != nil {
			continue
		}

		subject := fmt.Sprintf("New posts from %s", notify.DisplayName(&author))
		intro := fmt.Sprintf("%s published %d new post(s):", notify.DisplayName(&author), len(matching))
		text, html := digestBodies(intro, matching)

		if err := m.mailer.Send(subscriber.Email, subject, text, html); err != nil {
			log.Printf("Error sending digest to %s: %v", subscriber.Email, err)
			continue
		}
		log.Printf("Sent digest to %s about %d posts by %s", subscriber.Email, len(matching), author.Username)
		sent++
	}
	return sent
}

func (m *SubscriptionsModule) sendTagDigests(newPosts []models.Post) int {
	var subs []models.Subscription
	if err := m.db.Where("type = ?", models.SubscriptionTag).Find(&subs).Error; err != nil {
		log.Printf("Error loading tag subscriptions: %v", err)
		return 0
	}

	sent := 0
	for _, sub := range subs {
		if sub.Tag == "" {
			continue
		}

		tagged, err := m.postIDsWithTag(sub.Tag)
		if err != nil {
			log.Printf("Error loading posts for tag %q: %v", sub.Tag, err)
			continue
		}

		var matching []models.Post
		for _, post := range newPosts {
			if tagged[post.ID] {
				matching = append(matching, post)
			}
		}
		if len(matching) == 0 {
			continue
		}

		var subscriber models.User
		if err := m.db.First(&subscriber, sub.UserID).Error; err != nil {
			continue
		}

		subject := fmt.Sprintf("New posts about %q", sub.Tag)
		intro := fmt.Sprintf("%d new post(s) tagged %q:", len(matching), sub.Tag)
		text, html := digestBodies(intro, matching)

		if err := m.mailer.Send(subscriber.Email, subject, text, html); err != nil {
			log.Printf("Error sending digest to %s: %v", subscriber.Email, err)
			continue
		}
		log.Printf("Sent digest to %s about %d posts tagged %q", subscriber.Email, len(matching), sub.Tag)
		sent++
	}
	return sent
}

func (m *SubscriptionsModule) postIDsWithTag(tagName string) (map[uint]bool, error) {
	var ids []uint
	err := m.db.Table("post_tags").
		Joins("INNER JOIN tags ON tags.id = post_tags.tag_id").
		Where("tags.name = ?", tagName).
		Pluck("post_tags.post_id", &ids).Error
	if err != nil {
		return nil, err
	}

	tagged := make(map[uint]bool, len(ids))
	for _, id := range ids {
		tagged[id] = true
	}
	return tagged, nil
}

func digestBodies(intro string, posts []models.Post) (string, string) {
	domain := common.Domain()

	var text strings.Builder
	text.WriteString(intro + "\n\n")
	for _, post := range posts {
		text.WriteString(fmt.Sprintf("- %s\n  %s%s\n", post.Title, domain, common.PostURL(post.Slug)))
	}
	text.WriteString("\nManage your subscriptions: " + domain + "/subscriptions\n")

	var html strings.Builder
	html.WriteString("<p>" + intro + "</p>\n<ul>\n")
	for _, post := range posts {
		link := domain + common.PostURL(post.Slug)
		html.WriteString(fmt.Sprintf("  <li><a href=\"%s\">%s</a></li>\n", link, post.Title))
	}
	html.WriteString("</ul>\n")
	html.WriteString(fmt.Sprintf("<p><a href=\"%s/subscriptions\">Manage your subscriptions</a></p>\n", domain))

	return text.String(), html.String()
}
