package models

// ReactionType is the closed set of quick reactions a post accepts.
type ReactionType string

const (
	ReactionLike  ReactionType = "👍"
	ReactionLove  ReactionType = "❤️"
	ReactionFunny ReactionType = "😂"
	ReactionWow   ReactionType = "😮"
	ReactionSad   ReactionType = "😢"
	ReactionAngry ReactionType = "😡"
)

// ReactionTypes lists every valid reaction in display order.
var ReactionTypes = []ReactionType{
	ReactionLike,
	ReactionLove,
	ReactionFunny,
	ReactionWow,
	ReactionSad,
	ReactionAngry,
}

func (r ReactionType) Valid() bool {
	for _, t := range ReactionTypes {
		if r == t {
			return true
		}
	}
	return false
}

// Comment vote values. Zero is an explicit neutral vote, distinct from having
// never voted.
const (
	VoteDown    = -1
	VoteNeutral = 0
	VoteUp      = 1
)

func ValidVote(v int) bool {
	return v == VoteDown || v == VoteNeutral || v == VoteUp
}

type NotificationType string

const (
	NotificationMention  NotificationType = "mention"
	NotificationComment  NotificationType = "comment"
	NotificationReaction NotificationType = "reaction"
)

type SubscriptionType string

const (
	SubscriptionAuthor SubscriptionType = "author"
	SubscriptionTag    SubscriptionType = "tag"
)

func (s SubscriptionType) Valid() bool {
	return s == SubscriptionAuthor || s == SubscriptionTag
}
