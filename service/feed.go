package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/socialdistance/socialdistance/domain"
)

const feedSize = 20

// AuthorByUsername finds a local author for webfinger lookups.
func (s *Service) AuthorByUsername(ctx context.Context, username string) (*domain.Author, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, domain.ErrNotFound
	}
	a, err := s.db.ReadAuthorByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if !a.IsLocal(s.Base()) {
		return nil, domain.ErrNotFound
	}
	return a, nil
}

// PublicFeed returns a local author with their latest listed public posts.
func (s *Service) PublicFeed(ctx context.Context, authorId uuid.UUID) (*domain.Author, []domain.Post, error) {
	a, err := s.readLocalAuthor(ctx, s.db.Queries, authorId)
	if err != nil {
		return nil, nil, err
	}
	posts, err := s.db.ReadPublicPosts(ctx, authorId, feedSize)
	if err != nil {
		return nil, nil, err
	}
	return a, posts, nil
}
