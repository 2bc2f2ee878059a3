package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/socialdistance/socialdistance/activitypub"
	"github.com/socialdistance/socialdistance/db"
	"github.com/socialdistance/socialdistance/domain"
	"github.com/socialdistance/socialdistance/logging"
)

type FollowRequest struct {
	Object  *activitypub.AuthorRef `json:"object"`
	Summary string                 `json:"summary"`
}

func (s *Service) followToWire(ctx context.Context, q *db.Queries, f *domain.Follow) (*activitypub.FollowObject, error) {
	actor, err := q.ReadAuthorById(ctx, f.ActorId)
	if err != nil {
		return nil, err
	}
	object, err := q.ReadAuthorById(ctx, f.ObjectId)
	if err != nil {
		return nil, err
	}
	return activitypub.FollowToWire(f, actor, object), nil
}

// FollowRequests lists follows addressed to the author, optionally filtered by status.
func (s *Service) FollowRequests(ctx context.Context, caller Caller, authorId uuid.UUID, status string) ([]*activitypub.FollowObject, error) {
	return s.listFollows(ctx, caller, authorId, status, s.db.ReadFollowsForObject)
}

// AllFollows lists follows the author sent or received, optionally filtered by status.
func (s *Service) AllFollows(ctx context.Context, caller Caller, authorId uuid.UUID, status string) ([]*activitypub.FollowObject, error) {
	involving := func(ctx context.Context, id uuid.UUID, st domain.FollowStatus) ([]domain.Follow, error) {
		follows, err := s.db.ReadFollowsInvolving(ctx, id)
		if err != nil || st == "" {
			return follows, err
		}
		kept := follows[:0]
		for _, f := range follows {
			if f.Status == st {
				kept = append(kept, f)
			}
		}
		return kept, nil
	}
	return s.listFollows(ctx, caller, authorId, status, involving)
}

func (s *Service) listFollows(ctx context.Context, caller Caller, authorId uuid.UUID, status string,
	read func(context.Context, uuid.UUID, domain.FollowStatus) ([]domain.Follow, error)) ([]*activitypub.FollowObject, error) {
	if err := requireSelf(caller, authorId); err != nil {
		return nil, err
	}
	var st domain.FollowStatus
	if status != "" {
		parsed, err := domain.ParseFollowStatus(status)
		if err != nil {
			return nil, err
		}
		st = parsed
	}
	follows, err := read(ctx, authorId, st)
	if err != nil {
		return nil, err
	}
	out := make([]*activitypub.FollowObject, 0, len(follows))
	for i := range follows {
		obj, err := s.followToWire(ctx, s.db.Queries, &follows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}

// resolveTarget completes a follow target named by URL only. Unknown remote authors
// are fetched; when that fails a stub derived from the URL is used.
func (s *Service) resolveTarget(ctx context.Context, ref *activitypub.AuthorRef) (*activitypub.AuthorObject, error) {
	if ref == nil {
		return nil, &domain.ValidationError{Field: "object", Reason: "this field is required"}
	}
	obj := ref.AuthorObject
	if err := obj.Validate(); err != nil {
		return nil, err
	}
	identifier := obj.Identifier()
	ident, err := s.resolver.Resolve(ctx, s.db, identifier)
	if err != nil {
		return nil, err
	}
	if ident.HasRow() {
		return activitypub.AuthorToWire(ident.Author), nil
	}
	if _, local := s.resolver.LocalID(identifier); local {
		return nil, domain.ErrNotFound
	}
	if obj.DisplayName != "" {
		return &obj, nil
	}
	if s.fetcher != nil {
		fetched, err := s.fetcher.FetchAuthor(ctx, identifier)
		if err == nil && fetched.Identifier() != identifier {
			err = fmt.Errorf("fetched author identifies as %s", fetched.Identifier())
		}
		if err == nil {
			return fetched, nil
		}
		logger := logging.Ctx(ctx)
		logger.Warn().Err(err).Str("author", identifier).Msg("could not fetch follow target, using a stub")
	}
	return activitypub.RemoteStub(identifier), nil
}

// SendFollow creates a pending follow from the caller to the target and notifies the
// target's server.
func (s *Service) SendFollow(ctx context.Context, caller Caller, actorId uuid.UUID, req FollowRequest) (*activitypub.FollowObject, error) {
	if err := requireSelf(caller, actorId); err != nil {
		return nil, err
	}
	target, err := s.resolveTarget(ctx, req.Object)
	if err != nil {
		return nil, err
	}

	var out *activitypub.FollowObject
	var actor, object *domain.Author
	err = s.db.WithTx(ctx, func(q *db.Queries) error {
		a, err := s.readLocalAuthor(ctx, q, actorId)
		if err != nil {
			return err
		}
		o, err := s.UpsertAuthor(ctx, q, target)
		if err != nil {
			return err
		}
		f := &domain.Follow{
			Id:        uuid.New(),
			ActorId:   a.Id,
			ObjectId:  o.Id,
			Summary:   req.Summary,
			CreatedAt: s.timestamp(),
		}
		if err := f.Clean(a, o); err != nil {
			return err
		}
		if err := q.CreateFollow(ctx, f); err != nil {
			return err
		}
		if err := s.outbox.SendFollow(ctx, q, f, a, o); err != nil {
			return err
		}
		actor, object = a, o
		out = activitypub.FollowToWire(f, a, o)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, domain.EventFollowRequested, actor.URL, object.URL)
	return out, nil
}

// ownFollow loads a follow and checks that authorId is its object.
func ownFollow(ctx context.Context, q *db.Queries, authorId, followId uuid.UUID) (*domain.Follow, error) {
	f, err := q.ReadFollowById(ctx, followId)
	if err != nil {
		return nil, err
	}
	if f.ObjectId != authorId {
		return nil, domain.ErrNotFound
	}
	return f, nil
}

// ensureEdges records an accepted follow on whichever side lives here.
func (s *Service) ensureEdges(ctx context.Context, q *db.Queries, actor, object *domain.Author) error {
	now := s.timestamp()
	if object.IsLocal(s.Base()) {
		err := q.EnsureFollower(ctx, &domain.Follower{Id: uuid.New(), FolloweeId: object.Id, FollowerURL: actor.URL, CreatedAt: now})
		if err != nil {
			return err
		}
	}
	if actor.IsLocal(s.Base()) {
		err := q.EnsureFollowing(ctx, &domain.Following{Id: uuid.New(), FollowerId: actor.Id, FolloweeURL: object.URL, CreatedAt: now})
		if err != nil {
			return err
		}
	}
	return nil
}

// AcceptFollow moves a pending follow addressed to authorId to accepted, records the
// edges and tells the actor.
func (s *Service) AcceptFollow(ctx context.Context, caller Caller, authorId, followId uuid.UUID) (*activitypub.FollowObject, error) {
	if err := requireSelf(caller, authorId); err != nil {
		return nil, err
	}
	var out *activitypub.FollowObject
	var actor, object *domain.Author
	err := s.db.WithTx(ctx, func(q *db.Queries) error {
		f, err := ownFollow(ctx, q, authorId, followId)
		if err != nil {
			return err
		}
		if err := f.Accept(); err != nil {
			return err
		}
		if err := q.AcceptFollow(ctx, f.Id); err != nil {
			return err
		}
		a, err := q.ReadAuthorById(ctx, f.ActorId)
		if err != nil {
			return err
		}
		o, err := q.ReadAuthorById(ctx, f.ObjectId)
		if err != nil {
			return err
		}
		if err := s.ensureEdges(ctx, q, a, o); err != nil {
			return err
		}
		if err := s.outbox.SendAccept(ctx, q, f, a, o); err != nil {
			return err
		}
		actor, object = a, o
		out = activitypub.FollowToWire(f, a, o)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidateFollowers(ctx, authorId)
	s.publish(ctx, domain.EventFollowAccepted, actor.URL, object.URL)
	return out, nil
}

// RejectFollow drops a pending follow addressed to authorId.
func (s *Service) RejectFollow(ctx context.Context, caller Caller, authorId, followId uuid.UUID) error {
	if err := requireSelf(caller, authorId); err != nil {
		return err
	}
	return s.db.WithTx(ctx, func(q *db.Queries) error {
		f, err := ownFollow(ctx, q, authorId, followId)
		if err != nil {
			return err
		}
		if f.IsAccepted() {
			return domain.ErrAlreadyAccepted
		}
		return q.DeleteFollow(ctx, f.Id)
	})
}

// Unfollow removes a follow the author is either side of, in any state, together
// with its edges. When the author is the actor the object's server is told.
func (s *Service) Unfollow(ctx context.Context, caller Caller, authorId, followId uuid.UUID) error {
	if err := requireSelf(caller, authorId); err != nil {
		return err
	}
	var objectId uuid.UUID
	err := s.db.WithTx(ctx, func(q *db.Queries) error {
		f, err := q.ReadFollowById(ctx, followId)
		if err != nil {
			return err
		}
		if f.ActorId != authorId && f.ObjectId != authorId {
			return domain.ErrNotFound
		}
		objectId = f.ObjectId
		return s.removeFollow(ctx, q, f, f.ActorId == authorId)
	})
	if err != nil {
		return err
	}
	s.invalidateFollowers(ctx, objectId)
	return nil
}

func (s *Service) removeFollow(ctx context.Context, q *db.Queries, f *domain.Follow, notify bool) error {
	actor, err := q.ReadAuthorById(ctx, f.ActorId)
	if err != nil {
		return err
	}
	object, err := q.ReadAuthorById(ctx, f.ObjectId)
	if err != nil {
		return err
	}
	if err := q.DeleteFollow(ctx, f.Id); err != nil {
		return err
	}
	if err := q.DeleteFollowerIfExists(ctx, object.Id, actor.URL); err != nil {
		return err
	}
	if err := q.DeleteFollowingIfExists(ctx, actor.Id, object.URL); err != nil {
		return err
	}
	if notify && !object.IsLocal(s.Base()) {
		return s.outbox.SendUndo(ctx, q, f, actor, object)
	}
	return nil
}
