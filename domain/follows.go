package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const MaxFollowSummaryLength = 200

type FollowStatus string

const (
	FollowPending  FollowStatus = "PENDING"
	FollowAccepted FollowStatus = "ACCEPTED"
)

func (s FollowStatus) Label() string {
	switch s {
	case FollowPending:
		return "Pending"
	case FollowAccepted:
		return "Accepted"
	}
	return ""
}

func ParseFollowStatus(s string) (FollowStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(FollowPending):
		return FollowPending, nil
	case string(FollowAccepted):
		return FollowAccepted, nil
	}
	return "", invalid("status", fmt.Sprintf("%q is not a valid choice", s))
}

// Follower records that FollowerURL follows the local author FolloweeId.
type Follower struct {
	Id          uuid.UUID
	FolloweeId  uuid.UUID
	FollowerURL string
	CreatedAt   time.Time
}

// Following records that the local author FollowerId follows FolloweeURL.
type Following struct {
	Id          uuid.UUID
	FollowerId  uuid.UUID
	FolloweeURL string
	CreatedAt   time.Time
}

// Follow is a friend request from Actor to Object. Both sides are Author rows, either
// local or mirrored.
type Follow struct {
	Id        uuid.UUID
	ActorId   uuid.UUID
	ObjectId  uuid.UUID
	Status    FollowStatus
	Summary   string
	CreatedAt time.Time
}

func (f *Follow) Clean(actor, object *Author) error {
	if f.ActorId == f.ObjectId {
		return invalid("object", "an author cannot follow themselves")
	}
	if f.Status == "" {
		f.Status = FollowPending
	}
	if _, err := ParseFollowStatus(string(f.Status)); err != nil {
		return err
	}
	f.Summary = strings.TrimSpace(f.Summary)
	if f.Summary == "" && actor != nil && object != nil {
		f.Summary = fmt.Sprintf("%s wants to follow %s", actor.DisplayName, object.DisplayName)
	}
	if len([]rune(f.Summary)) > MaxFollowSummaryLength {
		return invalid("summary", fmt.Sprintf("must be at most %d characters", MaxFollowSummaryLength))
	}
	return nil
}

// Accept moves a pending follow to accepted. It can only happen once.
func (f *Follow) Accept() error {
	if f.Status == FollowAccepted {
		return ErrAlreadyAccepted
	}
	f.Status = FollowAccepted
	return nil
}

func (f *Follow) IsAccepted() bool {
	return f.Status == FollowAccepted
}
