package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/socialdistance/socialdistance/activitypub"
	"github.com/socialdistance/socialdistance/db"
	"github.com/socialdistance/socialdistance/domain"
	"github.com/socialdistance/socialdistance/logging"
)

// ForeignURL turns a path parameter naming another author into an absolute author URL.
// Bare ids are taken to be authors on this server.
func (s *Service) ForeignURL(raw string) (string, error) {
	raw = domain.NormalizeURL(raw)
	if id, err := uuid.Parse(raw); err == nil && len(raw) == 36 {
		return domain.AuthorURL(s.Base(), id), nil
	}
	if !domain.IsAbsoluteURL(raw) {
		return "", &domain.ValidationError{Field: "foreign_author_id", Reason: "must be an author URL or id"}
	}
	return raw, nil
}

// describe renders the author at url, falling back to a stub for authors we have no
// row for.
func (s *Service) describe(ctx context.Context, q activitypub.AuthorReader, url string) (*activitypub.AuthorObject, error) {
	ident, err := s.resolver.Resolve(ctx, q, url)
	if err != nil {
		return nil, err
	}
	if ident.HasRow() {
		return activitypub.AuthorToWire(ident.Author), nil
	}
	return activitypub.RemoteStub(ident.URL), nil
}

func (s *Service) Followers(ctx context.Context, authorId uuid.UUID) ([]*activitypub.AuthorObject, error) {
	if _, err := s.readLocalAuthor(ctx, s.db.Queries, authorId); err != nil {
		return nil, err
	}
	edges, err := s.db.ReadFollowers(ctx, authorId)
	if err != nil {
		return nil, err
	}
	out := make([]*activitypub.AuthorObject, 0, len(edges))
	for _, e := range edges {
		obj, err := s.describe(ctx, s.db, e.FollowerURL)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}

// Follower reports whether foreign follows the author.
func (s *Service) Follower(ctx context.Context, authorId uuid.UUID, foreign string) (*activitypub.AuthorObject, error) {
	url, err := s.ForeignURL(foreign)
	if err != nil {
		return nil, err
	}
	edge, err := s.db.ReadFollower(ctx, authorId, url)
	if err != nil {
		return nil, err
	}
	return s.describe(ctx, s.db, edge.FollowerURL)
}

func (s *Service) AddFollower(ctx context.Context, caller Caller, authorId uuid.UUID, foreign string) (*activitypub.AuthorObject, error) {
	if err := requireSelf(caller, authorId); err != nil {
		return nil, err
	}
	url, err := s.ForeignURL(foreign)
	if err != nil {
		return nil, err
	}
	if url == caller.Author.URL {
		return nil, &domain.ValidationError{Field: "foreign_author_id", Reason: "an author cannot follow themselves"}
	}
	err = s.db.CreateFollower(ctx, &domain.Follower{
		Id:          uuid.New(),
		FolloweeId:  authorId,
		FollowerURL: url,
		CreatedAt:   s.timestamp(),
	})
	if err != nil {
		return nil, err
	}
	s.invalidateFollowers(ctx, authorId)
	return s.describe(ctx, s.db, url)
}

func (s *Service) RemoveFollower(ctx context.Context, caller Caller, authorId uuid.UUID, foreign string) error {
	if err := requireSelf(caller, authorId); err != nil {
		return err
	}
	url, err := s.ForeignURL(foreign)
	if err != nil {
		return err
	}
	if err := s.db.DeleteFollower(ctx, authorId, url); err != nil {
		return err
	}
	s.invalidateFollowers(ctx, authorId)
	return nil
}

func (s *Service) Followings(ctx context.Context, authorId uuid.UUID) ([]*activitypub.AuthorObject, error) {
	if _, err := s.readLocalAuthor(ctx, s.db.Queries, authorId); err != nil {
		return nil, err
	}
	edges, err := s.db.ReadFollowings(ctx, authorId)
	if err != nil {
		return nil, err
	}
	out := make([]*activitypub.AuthorObject, 0, len(edges))
	for _, e := range edges {
		obj, err := s.describe(ctx, s.db, e.FolloweeURL)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}

func (s *Service) AddFollowing(ctx context.Context, caller Caller, authorId uuid.UUID, foreign string) (*activitypub.AuthorObject, error) {
	if err := requireSelf(caller, authorId); err != nil {
		return nil, err
	}
	url, err := s.ForeignURL(foreign)
	if err != nil {
		return nil, err
	}
	if url == caller.Author.URL {
		return nil, &domain.ValidationError{Field: "foreign_author_id", Reason: "an author cannot follow themselves"}
	}
	err = s.db.CreateFollowing(ctx, &domain.Following{
		Id:          uuid.New(),
		FollowerId:  authorId,
		FolloweeURL: url,
		CreatedAt:   s.timestamp(),
	})
	if err != nil {
		return nil, err
	}
	return s.describe(ctx, s.db, url)
}

func (s *Service) RemoveFollowing(ctx context.Context, caller Caller, authorId uuid.UUID, foreign string) error {
	if err := requireSelf(caller, authorId); err != nil {
		return err
	}
	url, err := s.ForeignURL(foreign)
	if err != nil {
		return err
	}
	return s.db.DeleteFollowing(ctx, authorId, url)
}

// FollowerCount is read through the follower-count cache. Cache failures fall back to
// the database.
func (s *Service) FollowerCount(ctx context.Context, authorId uuid.UUID) (int64, error) {
	key := authorId.String()
	logger := logging.Ctx(ctx)
	if n, ok, err := s.followers.Get(ctx, key); err != nil {
		logger.Warn().Err(err).Str(logging.FieldAuthorID, key).Msg("follower count cache read failed")
	} else if ok {
		return n, nil
	}

	if _, err := s.readLocalAuthor(ctx, s.db.Queries, authorId); err != nil {
		return 0, err
	}
	n, err := s.db.CountFollowers(ctx, authorId)
	if err != nil {
		return 0, err
	}
	if err := s.followers.Set(ctx, key, int64(n)); err != nil {
		logger.Warn().Err(err).Str(logging.FieldAuthorID, key).Msg("follower count cache write failed")
	}
	return int64(n), nil
}

// Friends are the authors sharing an accepted follow with authorId, in either
// direction.
func (s *Service) Friends(ctx context.Context, authorId uuid.UUID) ([]domain.Author, error) {
	if _, err := s.db.ReadAuthorById(ctx, authorId); err != nil {
		return nil, err
	}
	ids, err := s.db.ReadFriendIds(ctx, authorId)
	if err != nil {
		return nil, err
	}
	friends := make([]domain.Author, 0, len(ids))
	for _, id := range ids {
		a, err := s.db.ReadAuthorById(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		friends = append(friends, *a)
	}
	return friends, nil
}

// canSee reports whether viewer may read posts of the given visibility by owner.
func (s *Service) canSee(ctx context.Context, q *db.Queries, viewerId, ownerId uuid.UUID, v domain.Visibility) (bool, error) {
	switch {
	case v == domain.VisibilityPublic:
		return true, nil
	case viewerId == uuid.Nil:
		return false, nil
	case viewerId == ownerId:
		return true, nil
	case v == domain.VisibilityFriends:
		return q.AreFriends(ctx, viewerId, ownerId)
	}
	return false, nil
}
