package mentions

import (
	"regexp"

	"gorm.io/gorm"

	"miblog/models"
	"miblog/notify"
)

var mentionPattern = regexp.MustCompile(`@(\w+)`)

// Detector scans free text for @username mentions and turns them into
// notifications for the mentioned users.
type Detector struct {
	db       *gorm.DB
	notifier *notify.Notifier
}

func NewDetector(db *gorm.DB, notifier *notify.Notifier) *Detector {
	return &Detector{db: db, notifier: notifier}
}

// Detect creates one mention notification per @username occurrence in text,
// in order of appearance. Unknown usernames are skipped silently; mentioning
// the author themselves never notifies. Repeated mentions of the same user are
// not deduplicated.
func (d *Detector) Detect(text string, post *models.Post, author *models.User) []models.Notification {
	matches := mentionPattern.FindAllStringSubmatch(text, -1)

	var created []models.Notification
	for _, match := range matches {
		username := match[1]

		var mentioned models.User
		if err := d.db.Where("username = ?", username).First(&mentioned).Error; err != nil {
			// unknown username, not an error
			continue
		}

		if notify.IsSelfAction(mentioned.ID, author.ID) {
			continue
		}

		if notification := d.notifier.Mentioned(post, &mentioned, author); notification != nil {
			created = append(created, *notification)
		}
	}
	return created
}
