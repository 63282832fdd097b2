package engagement

import (
	"math"
	"sort"

	"gorm.io/gorm"

	"miblog/models"
)

// Aggregator computes read-side engagement numbers (comment scores, reaction
// tallies, review averages) straight from the stored rows. Nothing is cached;
// per-post volumes are small enough to recompute on every request.
type Aggregator struct {
	db *gorm.DB
}

func NewAggregator(db *gorm.DB) *Aggregator {
	return &Aggregator{db: db}
}

// RankedComment is a comment annotated with its vote score for display.
type RankedComment struct {
	models.Comment
	Score int
}

// CommentScore sums all vote values for a comment. No votes means 0.
func (a *Aggregator) CommentScore(commentID uint) (int, error) {
	var score int
	err := a.db.Model(&models.CommentVote{}).
		Where("comment_id = ?", commentID).
		Select("COALESCE(SUM(value), 0)").
		Scan(&score).Error
	return score, err
}

// PostComments returns a post's comments in display order. Unapproved comments
// are only included when the caller moderates the post.
func (a *Aggregator) PostComments(postID uint, includeUnapproved bool) ([]RankedComment, error) {
	query := a.db.Where("post_id = ?", postID)
	if !includeUnapproved {
		query = query.Where("approved = ?", true)
	}

	var comments []models.Comment
	if err := query.Find(&comments).Error; err != nil {
		return nil, err
	}

	scores, err := a.commentScores(postID)
	if err != nil {
		return nil, err
	}

	ranked := make([]RankedComment, 0, len(comments))
	for _, c := range comments {
		ranked = append(ranked, RankedComment{Comment: c, Score: scores[c.ID]})
	}

	SortComments(ranked)
	return ranked, nil
}

// commentScores sums votes for every comment of a post in one pass.
func (a *Aggregator) commentScores(postID uint) (map[uint]int, error) {
	rows, err := a.db.Table("comment_votes").
		Select("comments.id, SUM(comment_votes.value)").
		Joins("INNER JOIN comments ON comments.id = comment_votes.comment_id").
		Where("comments.post_id = ?", postID).
		Group("comments.id").
		Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scores := make(map[uint]int)
	for rows.Next() {
		var id uint
		var sum int
		if err := rows.Scan(&id, &sum); err != nil {
			return nil, err
		}
		scores[id] = sum
	}
	return scores, rows.Err()
}

// SortComments orders comments for display: pinned first, then by score
// descending, ties broken by earliest creation time.
func SortComments(comments []RankedComment) {
	sort.SliceStable(comments, func(i, j int) bool {
		if comments[i].Pinned != comments[j].Pinned {
			return comments[i].Pinned
		}
		if comments[i].Score != comments[j].Score {
			return comments[i].Score > comments[j].Score
		}
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})
}

// AverageRating is the mean review rating for a post rounded to one decimal,
// or 0 when the post has no reviews.
func (a *Aggregator) AverageRating(postID uint) (float64, error) {
	var ratings []int
	err := a.db.Model(&models.Review{}).
		Where("post_id = ?", postID).
		Pluck("rating", &ratings).Error
	if err != nil || len(ratings) == 0 {
		return 0, err
	}

	sum := 0
	for _, r := range ratings {
		sum += r
	}
	avg := float64(sum) / float64(len(ratings))
	return math.Round(avg*10) / 10, nil
}

func (a *Aggregator) RatingCount(postID uint) (int64, error) {
	var count int64
	err := a.db.Model(&models.Review{}).
		Where("post_id = ?", postID).
		Count(&count).Error
	return count, err
}

func (a *Aggregator) ApprovedCommentCount(postID uint) (int64, error) {
	var count int64
	err := a.db.Model(&models.Comment{}).
		Where("post_id = ? AND approved = ?", postID, true).
		Count(&count).Error
	return count, err
}

// ReactionCounts tallies reactions per type. Types without reactions are
// present with a zero count so templates can render the full picker.
func (a *Aggregator) ReactionCounts(postID uint) (map[models.ReactionType]int64, error) {
	counts := make(map[models.ReactionType]int64, len(models.ReactionTypes))
	for _, t := range models.ReactionTypes {
		counts[t] = 0
	}

	rows, err := a.db.Model(&models.Reaction{}).
		Select("type, COUNT(*)").
		Where("post_id = ?", postID).
		Group("type").
		Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var t models.ReactionType
		var count int64
		if err := rows.Scan(&t, &count); err != nil {
			return nil, err
		}
		counts[t] = count
	}
	return counts, rows.Err()
}

// UserReaction returns the caller's current reaction to a post, if any.
func (a *Aggregator) UserReaction(postID uint, userID int) (models.ReactionType, bool) {
	var reaction models.Reaction
	err := a.db.Where("post_id = ? AND user_id = ?", postID, userID).First(&reaction).Error
	if err != nil {
		return "", false
	}
	return reaction.Type, true
}

// UserVote returns the caller's vote on a comment, 0 when absent.
func (a *Aggregator) UserVote(commentID uint, userID int) int {
	var vote models.CommentVote
	err := a.db.Where("comment_id = ? AND user_id = ?", commentID, userID).First(&vote).Error
	if err != nil {
		return 0
	}
	return vote.Value
}

// UserReview returns the caller's review of a post, if any.
func (a *Aggregator) UserReview(postID uint, userID int) (*models.Review, bool) {
	var review models.Review
	err := a.db.Where("post_id = ? AND user_id = ?", postID, userID).First(&review).Error
	if err != nil {
		return nil, false
	}
	return &review, true
}
