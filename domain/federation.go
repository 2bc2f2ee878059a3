package domain

import (
	"time"

	"github.com/google/uuid"
)

// InboxItem is an object delivered to a local author, either pushed by a followed
// author on this server or received over federation.
type InboxItem struct {
	Id         uuid.UUID
	AuthorId   uuid.UUID
	Type       string
	Payload    string
	ReceivedAt time.Time
}

// DeliveryItem is a queued outbound POST to a remote inbox.
type DeliveryItem struct {
	Id             uuid.UUID
	InboxURL       string
	Payload        string
	SignerAuthorId uuid.UUID
	Attempts       int
	NextRetryAt    time.Time
	CreatedAt      time.Time
}

// Event types published after a successful write.
const (
	EventAuthorCreated   = "author.created"
	EventPostCreated     = "post.created"
	EventCommentCreated  = "comment.created"
	EventLikeCreated     = "like.created"
	EventFollowRequested = "follow.requested"
	EventFollowAccepted  = "follow.accepted"
)
