package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/socialdistance/socialdistance/activitypub"
	"github.com/socialdistance/socialdistance/db"
	"github.com/socialdistance/socialdistance/domain"
	"github.com/socialdistance/socialdistance/logging"
)

// InboxPage is one page of an author's inbox.
type InboxPage struct {
	Items []json.RawMessage
	Total int
}

// inboxResult carries what a dispatched inbox item needs published after commit.
type inboxResult struct {
	event, actor, object string
	invalidate           bool
}

// ReceiveInbox handles an object POSTed to a local author's inbox. Follows, likes,
// comments, accepts and undos are applied; every item is also stored in the inbox.
func (s *Service) ReceiveInbox(ctx context.Context, caller Caller, authorId uuid.UUID, body []byte) (string, error) {
	if !caller.IsAuthor() && !caller.IsPeer() {
		return "", domain.ErrUnauthorized
	}
	in, err := activitypub.ParseInbound(body)
	if err != nil {
		return "", err
	}

	logger := logging.Ctx(ctx).With().Str("component", "inbox").Str("type", in.Kind()).Logger()

	var res inboxResult
	err = s.db.WithTx(ctx, func(q *db.Queries) error {
		owner, err := s.readLocalAuthor(ctx, q, authorId)
		if err != nil {
			return err
		}
		switch in.Kind() {
		case "follow":
			res, err = s.inboxFollow(ctx, q, caller, owner, in)
		case "like":
			res, err = s.inboxLike(ctx, q, caller, owner, in)
		case "comment":
			res, err = s.inboxComment(ctx, q, caller, owner, in)
		case "accept":
			res, err = s.inboxAccept(ctx, q, owner, in)
		case "undo":
			res, err = s.inboxUndo(ctx, q, owner, in)
		}
		if err != nil {
			return err
		}
		return q.CreateInboxItem(ctx, &domain.InboxItem{
			Id:         uuid.New(),
			AuthorId:   owner.Id,
			Type:       in.Type,
			Payload:    string(in.Raw),
			ReceivedAt: s.timestamp(),
		})
	})
	if err != nil {
		logger.Debug().Err(err).Msg("inbox item rejected")
		return "", err
	}
	logger.Info().Str(logging.FieldAuthorID, authorId.String()).Msg("inbox item received")

	if res.invalidate {
		s.invalidateFollowers(ctx, authorId)
	}
	if res.event != "" {
		s.publish(ctx, res.event, res.actor, res.object)
	}
	return in.Kind(), nil
}

// inboxFollow records a pending follow of the inbox owner.
func (s *Service) inboxFollow(ctx context.Context, q *db.Queries, caller Caller, owner *domain.Author, in *activitypub.Inbound) (inboxResult, error) {
	obj, err := in.Follow()
	if err != nil {
		return inboxResult{}, err
	}
	if obj.Object != nil {
		if id, ok := s.resolver.LocalID(obj.Object.Identifier()); !ok || id != owner.Id {
			return inboxResult{}, &domain.ValidationError{Field: "object", Reason: "must be the owner of this inbox"}
		}
	}
	actor, err := s.UpsertAuthor(ctx, q, &obj.Actor.AuthorObject)
	if err != nil {
		return inboxResult{}, err
	}
	if caller.IsAuthor() && actor.Id != caller.Author.Id {
		return inboxResult{}, domain.ErrForbidden
	}
	if caller.IsPeer() && (actor.IsLocal(s.Base()) || !caller.hosts(actor)) {
		return inboxResult{}, domain.ErrForbidden
	}
	f := &domain.Follow{
		Id:        uuid.New(),
		ActorId:   actor.Id,
		ObjectId:  owner.Id,
		Summary:   obj.Summary,
		CreatedAt: s.timestamp(),
	}
	if err := f.Clean(actor, owner); err != nil {
		return inboxResult{}, err
	}
	if err := q.CreateFollow(ctx, f); err != nil {
		return inboxResult{}, err
	}
	return inboxResult{event: domain.EventFollowRequested, actor: actor.URL, object: owner.URL}, nil
}

func (s *Service) inboxLike(ctx context.Context, q *db.Queries, caller Caller, owner *domain.Author, in *activitypub.Inbound) (inboxResult, error) {
	obj, err := in.Like()
	if err != nil {
		return inboxResult{}, err
	}
	author, err := s.commenter(ctx, q, caller, obj.Author)
	if err != nil {
		return inboxResult{}, err
	}
	l, err := s.insertLike(ctx, q, author, obj)
	if err != nil {
		return inboxResult{}, err
	}
	return inboxResult{event: domain.EventLikeCreated, actor: author.URL, object: l.Object}, nil
}

// inboxComment adds a comment to the owner's post named by the post or id field.
func (s *Service) inboxComment(ctx context.Context, q *db.Queries, caller Caller, owner *domain.Author, in *activitypub.Inbound) (inboxResult, error) {
	obj, err := in.Comment()
	if err != nil {
		return inboxResult{}, err
	}
	target := obj.Post
	if target == "" {
		target = obj.ID
	}
	postId, ok := postIdOf(target)
	if !ok {
		return inboxResult{}, &domain.ValidationError{Field: "post", Reason: "must name a post of this author"}
	}
	author, err := s.commenter(ctx, q, caller, obj.Author)
	if err != nil {
		return inboxResult{}, err
	}
	c, err := s.insertComment(ctx, q, author, owner.Id, postId, obj)
	if err != nil {
		return inboxResult{}, err
	}
	return inboxResult{event: domain.EventCommentCreated, actor: author.URL, object: c.URL}, nil
}

// inboxAccept marks the owner's follow of a remote author accepted.
func (s *Service) inboxAccept(ctx context.Context, q *db.Queries, owner *domain.Author, in *activitypub.Inbound) (inboxResult, error) {
	obj, err := in.Activity()
	if err != nil {
		return inboxResult{}, err
	}
	if id, ok := s.resolver.LocalID(obj.Object.Actor.Identifier()); !ok || id != owner.Id {
		return inboxResult{}, &domain.ValidationError{Field: "object.actor", Reason: "must be the owner of this inbox"}
	}
	object, err := s.matchAuthor(ctx, q, obj.Object.Object.Identifier())
	if err != nil {
		return inboxResult{}, err
	}
	f, err := q.ReadFollowByPair(ctx, owner.Id, object.Id)
	if err != nil {
		return inboxResult{}, err
	}
	if err := q.AcceptFollow(ctx, f.Id); err != nil {
		return inboxResult{}, err
	}
	if err := s.ensureEdges(ctx, q, owner, object); err != nil {
		return inboxResult{}, err
	}
	return inboxResult{event: domain.EventFollowAccepted, actor: owner.URL, object: object.URL}, nil
}

// inboxUndo withdraws a remote author's follow of the owner.
func (s *Service) inboxUndo(ctx context.Context, q *db.Queries, owner *domain.Author, in *activitypub.Inbound) (inboxResult, error) {
	obj, err := in.Activity()
	if err != nil {
		return inboxResult{}, err
	}
	if id, ok := s.resolver.LocalID(obj.Object.Object.Identifier()); !ok || id != owner.Id {
		return inboxResult{}, &domain.ValidationError{Field: "object.object", Reason: "must be the owner of this inbox"}
	}
	actor, err := s.matchAuthor(ctx, q, obj.Object.Actor.Identifier())
	if err != nil {
		return inboxResult{}, err
	}
	f, err := q.ReadFollowByPair(ctx, actor.Id, owner.Id)
	if err != nil {
		return inboxResult{}, err
	}
	if err := s.removeFollow(ctx, q, f, false); err != nil {
		return inboxResult{}, err
	}
	return inboxResult{invalidate: true}, nil
}

func (s *Service) Inbox(ctx context.Context, caller Caller, authorId uuid.UUID, page, size int) (*InboxPage, error) {
	if err := requireSelf(caller, authorId); err != nil {
		return nil, err
	}
	limit, offset := db.Page(page, size)
	items, total, err := s.db.ReadInboxItems(ctx, authorId, limit, offset)
	if err != nil {
		return nil, err
	}
	out := &InboxPage{Items: make([]json.RawMessage, 0, len(items)), Total: total}
	for _, item := range items {
		out.Items = append(out.Items, json.RawMessage(item.Payload))
	}
	return out, nil
}

func (s *Service) ClearInbox(ctx context.Context, caller Caller, authorId uuid.UUID) error {
	if err := requireSelf(caller, authorId); err != nil {
		return err
	}
	return s.db.ClearInbox(ctx, authorId)
}

// postIdOf extracts the post id from a post or comment URL, or accepts a bare id.
func postIdOf(raw string) (uuid.UUID, bool) {
	raw = domain.NormalizeURL(raw)
	if id, err := uuid.Parse(raw); err == nil && len(raw) == 36 {
		return id, true
	}
	i := strings.LastIndex(raw, "/posts/")
	if i < 0 {
		return uuid.Nil, false
	}
	rest := raw[i+len("/posts/"):]
	if j := strings.Index(rest, "/"); j >= 0 {
		rest = rest[:j]
	}
	id, err := uuid.Parse(rest)
	return id, err == nil
}
