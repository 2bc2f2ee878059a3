package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/socialdistance/socialdistance/activitypub"
	"github.com/socialdistance/socialdistance/cache"
	"github.com/socialdistance/socialdistance/db"
	"github.com/socialdistance/socialdistance/domain"
	"github.com/socialdistance/socialdistance/events"
	"github.com/socialdistance/socialdistance/logging"
)

// AuthorFetcher retrieves remote author documents.
type AuthorFetcher interface {
	FetchAuthor(ctx context.Context, authorURL string) (*activitypub.AuthorObject, error)
}

// Caller is whoever issued a request: a local author holding a token, a configured
// peer node, or nobody.
type Caller struct {
	Author   *domain.Author
	Node     string
	NodeHost string
}

func (c Caller) IsAuthor() bool { return c.Author != nil }
func (c Caller) IsPeer() bool   { return c.Author == nil && c.Node != "" }

// hosts reports whether a is an author served by the caller's node.
func (c Caller) hosts(a *domain.Author) bool {
	if !c.IsPeer() || c.NodeHost == "" {
		return false
	}
	return strings.HasPrefix(domain.NormalizeURL(a.URL)+"/", domain.NormalizeBase(c.NodeHost))
}

func (c Caller) viewerId() uuid.UUID {
	if c.Author == nil {
		return uuid.Nil
	}
	return c.Author.Id
}

type Options struct {
	DB             *db.DB
	BaseURL        string
	Federate       bool
	Fetcher        AuthorFetcher
	FollowerCounts cache.FollowerCounts
	Events         events.Publisher
}

// Service implements every operation exposed over HTTP. All writes run in a single
// transaction; events and cache invalidation happen after commit.
type Service struct {
	db        *db.DB
	resolver  *activitypub.Resolver
	outbox    *activitypub.Outbox
	fetcher   AuthorFetcher
	followers cache.FollowerCounts
	events    events.Publisher
	now       func() time.Time
}

func New(opts Options) *Service {
	resolver := activitypub.NewResolver(opts.BaseURL)
	s := &Service{
		db:        opts.DB,
		resolver:  resolver,
		outbox:    activitypub.NewOutbox(resolver, opts.Federate),
		fetcher:   opts.Fetcher,
		followers: opts.FollowerCounts,
		events:    opts.Events,
		now:       time.Now,
	}
	if s.followers == nil {
		s.followers = cache.NewMemoryFollowerCounts(cache.DefaultTTL)
	}
	if s.events == nil {
		s.events = events.NewLogPublisher(logging.Component("events"))
	}
	return s
}

func (s *Service) Base() string {
	return s.resolver.Base()
}

func (s *Service) Resolver() *activitypub.Resolver {
	return s.resolver
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC()
}

func (s *Service) publish(ctx context.Context, typ, actor, object string) {
	err := s.events.Publish(ctx, events.Event{Type: typ, Actor: actor, Object: object, At: s.timestamp()})
	if err != nil {
		logger := logging.Ctx(ctx)
		logger.Warn().Err(err).Str("event", typ).Msg("failed to publish event")
	}
}

func (s *Service) invalidateFollowers(ctx context.Context, authorId uuid.UUID) {
	if err := s.followers.Invalidate(ctx, authorId.String()); err != nil {
		logger := logging.Ctx(ctx)
		logger.Warn().Err(err).Str(logging.FieldAuthorID, authorId.String()).Msg("failed to invalidate follower count")
	}
}

// requireSelf checks that the caller is the local author named by authorId.
func requireSelf(caller Caller, authorId uuid.UUID) error {
	if caller.Author == nil {
		return domain.ErrUnauthorized
	}
	if caller.Author.Id != authorId {
		return domain.ErrForbidden
	}
	return nil
}

// readLocalAuthor loads an author hosted here. Mirrors are reported as not found.
func (s *Service) readLocalAuthor(ctx context.Context, q *db.Queries, id uuid.UUID) (*domain.Author, error) {
	a, err := q.ReadAuthorById(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.IsLocal(s.Base()) {
		return nil, domain.ErrNotFound
	}
	return a, nil
}

// Ping checks that the database answers.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
