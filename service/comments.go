package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/socialdistance/socialdistance/activitypub"
	"github.com/socialdistance/socialdistance/db"
	"github.com/socialdistance/socialdistance/domain"
)

// Comments pages through the comments on a post the caller may see.
func (s *Service) Comments(ctx context.Context, caller Caller, authorId, postId uuid.UUID, page, size int) ([]*activitypub.CommentObject, int, error) {
	if _, _, err := s.readPost(ctx, s.db.Queries, caller, authorId, postId); err != nil {
		return nil, 0, err
	}
	limit, offset := db.Page(page, size)
	comments, total, err := s.db.ReadCommentsByPost(ctx, postId, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	out := make([]*activitypub.CommentObject, 0, len(comments))
	for i := range comments {
		author, err := s.db.ReadAuthorById(ctx, comments[i].AuthorId)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, activitypub.CommentToWire(&comments[i], author))
	}
	return out, total, nil
}

// commenter resolves the author of an inbound comment or like. Local callers act as
// themselves; peers name the author in the payload, and it must live elsewhere.
func (s *Service) commenter(ctx context.Context, q *db.Queries, caller Caller, embedded *activitypub.AuthorObject) (*domain.Author, error) {
	switch {
	case caller.IsAuthor():
		if embedded != nil {
			a, err := s.UpsertAuthor(ctx, q, embedded)
			if err != nil {
				return nil, err
			}
			if a.Id != caller.Author.Id {
				return nil, domain.ErrForbidden
			}
			return a, nil
		}
		return q.ReadAuthorById(ctx, caller.Author.Id)
	case caller.IsPeer():
		a, err := s.UpsertAuthor(ctx, q, embedded)
		if err != nil {
			return nil, err
		}
		if a.IsLocal(s.Base()) || !caller.hosts(a) {
			return nil, domain.ErrForbidden
		}
		return a, nil
	}
	return nil, domain.ErrUnauthorized
}

// AddComment comments on a post. The commenter must be able to see the post.
func (s *Service) AddComment(ctx context.Context, caller Caller, authorId, postId uuid.UUID, in *activitypub.CommentObject) (*activitypub.CommentObject, error) {
	if in == nil {
		return nil, &domain.ValidationError{Field: "body", Reason: "a comment is required"}
	}
	var out *activitypub.CommentObject
	var author *domain.Author
	err := s.db.WithTx(ctx, func(q *db.Queries) error {
		a, err := s.commenter(ctx, q, caller, in.Author)
		if err != nil {
			return err
		}
		c, err := s.insertComment(ctx, q, a, authorId, postId, in)
		if err != nil {
			return err
		}
		author = a
		out = activitypub.CommentToWire(c, a)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, domain.EventCommentCreated, author.URL, out.ID)
	return out, nil
}

func (s *Service) insertComment(ctx context.Context, q *db.Queries, author *domain.Author, ownerId, postId uuid.UUID, in *activitypub.CommentObject) (*domain.Comment, error) {
	p, _, err := s.readPost(ctx, q, Caller{Author: author}, ownerId, postId)
	if err != nil {
		return nil, err
	}
	c := &domain.Comment{
		Id:        uuid.New(),
		PostId:    p.Id,
		AuthorId:  author.Id,
		Comment:   in.Comment,
		Published: s.timestamp(),
	}
	if in.ContentType != "" {
		ct, err := domain.ParseContentType(in.ContentType)
		if err != nil {
			return nil, err
		}
		c.ContentType = ct
	}
	if err := c.Clean(); err != nil {
		return nil, err
	}
	c.URL = domain.CommentURL(p.URL, c.Id)
	if err := q.CreateComment(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// PostLikes lists the likes on a post the caller may see.
func (s *Service) PostLikes(ctx context.Context, caller Caller, authorId, postId uuid.UUID) ([]*activitypub.LikeObject, error) {
	p, _, err := s.readPost(ctx, s.db.Queries, caller, authorId, postId)
	if err != nil {
		return nil, err
	}
	likes, err := s.db.ReadLikesByObject(ctx, p.URL)
	if err != nil {
		return nil, err
	}
	return s.likesToWire(ctx, likes)
}

// Liked lists what the author has liked.
func (s *Service) Liked(ctx context.Context, authorId uuid.UUID) ([]*activitypub.LikeObject, error) {
	if _, err := s.db.ReadAuthorById(ctx, authorId); err != nil {
		return nil, err
	}
	likes, err := s.db.ReadLikesByAuthor(ctx, authorId)
	if err != nil {
		return nil, err
	}
	return s.likesToWire(ctx, likes)
}

func (s *Service) likesToWire(ctx context.Context, likes []domain.Like) ([]*activitypub.LikeObject, error) {
	out := make([]*activitypub.LikeObject, 0, len(likes))
	for i := range likes {
		author, err := s.db.ReadAuthorById(ctx, likes[i].AuthorId)
		if err != nil {
			return nil, err
		}
		out = append(out, activitypub.LikeToWire(&likes[i], author))
	}
	return out, nil
}

// Like records that the caller likes an object URL. Likes of local posts notify the
// post's author; likes of remote objects are delivered to the remote author. Peers
// send likes to the inbox instead.
func (s *Service) Like(ctx context.Context, caller Caller, authorId uuid.UUID, in *activitypub.LikeObject) (*activitypub.LikeObject, error) {
	if err := requireSelf(caller, authorId); err != nil {
		return nil, err
	}
	if in == nil {
		return nil, &domain.ValidationError{Field: "body", Reason: "a like is required"}
	}
	var out *activitypub.LikeObject
	var author *domain.Author
	err := s.db.WithTx(ctx, func(q *db.Queries) error {
		a, err := s.commenter(ctx, q, caller, in.Author)
		if err != nil {
			return err
		}
		l, err := s.insertLike(ctx, q, a, in)
		if err != nil {
			return err
		}
		if target := objectAuthorURL(l.Object); target != "" && target != a.URL {
			if err := s.outbox.SendLike(ctx, q, l, a, target); err != nil {
				return err
			}
		}
		author = a
		out = activitypub.LikeToWire(l, a)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, domain.EventLikeCreated, author.URL, out.Object)
	return out, nil
}

func (s *Service) insertLike(ctx context.Context, q *db.Queries, author *domain.Author, in *activitypub.LikeObject) (*domain.Like, error) {
	l := &domain.Like{
		Id:        uuid.New(),
		AuthorId:  author.Id,
		Object:    in.Object,
		Summary:   in.Summary,
		CreatedAt: s.timestamp(),
	}
	if err := l.Clean(author); err != nil {
		return nil, err
	}
	if err := q.CreateLike(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// objectAuthorURL extracts the author URL from a post or comment URL.
func objectAuthorURL(object string) string {
	i := strings.Index(object, "/posts/")
	if i < 0 {
		return ""
	}
	return object[:i]
}
