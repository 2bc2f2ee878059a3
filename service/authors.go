package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/socialdistance/socialdistance/activitypub"
	"github.com/socialdistance/socialdistance/db"
	"github.com/socialdistance/socialdistance/domain"
	"github.com/socialdistance/socialdistance/util"
)

const maxUsernameAttempts = 20

type Registration struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
	Github      string `json:"github"`
}

// AuthorUpdate carries the fields an author may change on themselves. Nil leaves a
// field untouched.
type AuthorUpdate struct {
	DisplayName *string `json:"displayName"`
	Github      *string `json:"github"`
}

// Register creates a local account with its author and signing keys.
func (s *Service) Register(ctx context.Context, r Registration) (*domain.Author, error) {
	username := strings.TrimSpace(r.Username)
	if username == "" {
		return nil, &domain.ValidationError{Field: "username", Reason: "this field is required"}
	}
	if len([]rune(username)) > domain.MaxUsernameLength {
		return nil, &domain.ValidationError{Field: "username", Reason: fmt.Sprintf("must be at most %d characters", domain.MaxUsernameLength)}
	}
	if strings.ContainsAny(username, " /@:") {
		return nil, &domain.ValidationError{Field: "username", Reason: "may not contain spaces, '/', '@' or ':'"}
	}
	if r.Password == "" {
		return nil, &domain.ValidationError{Field: "password", Reason: "this field is required"}
	}

	hash, err := util.HashPassword(r.Password)
	if err != nil {
		return nil, err
	}
	keys, err := util.GeneratePemKeypair()
	if err != nil {
		return nil, err
	}

	now := s.timestamp()
	acc := &domain.Account{
		Id:            uuid.New(),
		Username:      username,
		PasswordHash:  hash,
		CreatedAt:     now,
		WebPublicKey:  keys.Public,
		WebPrivateKey: keys.Private,
	}
	author := &domain.Author{
		Id:          uuid.New(),
		AccountId:   acc.Id,
		DisplayName: r.DisplayName,
		GithubURL:   strings.TrimSpace(r.Github),
		CreatedAt:   now,
	}
	if err := author.Clean(acc); err != nil {
		return nil, err
	}
	author.BindToHost(s.Base())

	err = s.db.WithTx(ctx, func(q *db.Queries) error {
		if err := q.CreateAccount(ctx, acc); err != nil {
			return err
		}
		return q.CreateAuthor(ctx, author)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, domain.EventAuthorCreated, author.URL, author.URL)
	return author, nil
}

// Login checks a username/password pair and returns the author behind it.
func (s *Service) Login(ctx context.Context, username, password string) (*domain.Author, error) {
	acc, err := s.db.ReadAccountByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if !acc.CanLogin() || !util.CheckPassword(acc.PasswordHash, password) {
		return nil, domain.ErrUnauthorized
	}
	return s.db.ReadAuthorByAccountId(ctx, acc.Id)
}

func (s *Service) GetAuthor(ctx context.Context, id uuid.UUID) (*domain.Author, error) {
	return s.db.ReadAuthorById(ctx, id)
}

// ListAuthors pages through the authors hosted on this server.
func (s *Service) ListAuthors(ctx context.Context, page, size int) ([]domain.Author, int, error) {
	limit, offset := db.Page(page, size)
	return s.db.ReadAuthorsByHost(ctx, s.Base(), limit, offset)
}

func (s *Service) UpdateAuthor(ctx context.Context, caller Caller, id uuid.UUID, u AuthorUpdate) (*domain.Author, error) {
	if err := requireSelf(caller, id); err != nil {
		return nil, err
	}
	var author *domain.Author
	err := s.db.WithTx(ctx, func(q *db.Queries) error {
		a, err := s.readLocalAuthor(ctx, q, id)
		if err != nil {
			return err
		}
		acc, err := q.ReadAccountById(ctx, a.AccountId)
		if err != nil {
			return err
		}
		if u.DisplayName != nil {
			a.DisplayName = *u.DisplayName
		}
		if u.Github != nil {
			a.GithubURL = strings.TrimSpace(*u.Github)
		}
		if err := a.Clean(acc); err != nil {
			return err
		}
		a.BindToHost(s.Base())
		if err := q.UpdateAuthor(ctx, a); err != nil {
			return err
		}
		author = a
		return nil
	})
	return author, err
}

// DeleteAuthor removes the author's account; everything the author owns goes with it.
func (s *Service) DeleteAuthor(ctx context.Context, caller Caller, id uuid.UUID) error {
	if err := requireSelf(caller, id); err != nil {
		return err
	}
	err := s.db.WithTx(ctx, func(q *db.Queries) error {
		a, err := s.readLocalAuthor(ctx, q, id)
		if err != nil {
			return err
		}
		return q.DeleteAccount(ctx, a.AccountId)
	})
	if err != nil {
		return err
	}
	s.invalidateFollowers(ctx, id)
	return nil
}

// UpsertAuthor resolves an embedded author object to a row, creating a mirror for
// authors seen for the first time. It runs on the caller's transaction so a failure
// later in the same unit rolls the mirror back too.
func (s *Service) UpsertAuthor(ctx context.Context, q *db.Queries, obj *activitypub.AuthorObject) (*domain.Author, error) {
	if obj == nil {
		return nil, &domain.ValidationError{Field: "author", Reason: "this field is required"}
	}
	if err := obj.Validate(); err != nil {
		return nil, err
	}
	identifier := obj.Identifier()

	author, err := s.matchAuthor(ctx, q, identifier)
	if err == nil {
		return s.refreshAuthor(ctx, q, author, obj)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	if _, local := s.resolver.LocalID(identifier); local {
		return nil, &domain.ValidationError{Field: "author.id", Reason: "no such author on this server"}
	}
	return s.createMirror(ctx, q, identifier, obj)
}

// matchAuthor looks up a local-shaped identifier by id and anything else by url.
func (s *Service) matchAuthor(ctx context.Context, q *db.Queries, identifier string) (*domain.Author, error) {
	if id, ok := s.resolver.LocalID(identifier); ok {
		return q.ReadAuthorById(ctx, id)
	}
	return q.ReadAuthorByURL(ctx, identifier)
}

// refreshAuthor updates a mirror from the payload. Local authors only change through
// UpdateAuthor.
func (s *Service) refreshAuthor(ctx context.Context, q *db.Queries, a *domain.Author, obj *activitypub.AuthorObject) (*domain.Author, error) {
	if a.IsLocal(s.Base()) {
		a.BindToHost(s.Base())
		return a, nil
	}
	changed := false
	if name := strings.TrimSpace(obj.DisplayName); name != "" && name != a.DisplayName {
		a.DisplayName = name
		changed = true
	}
	if obj.Github != "" && obj.Github != a.GithubURL {
		a.GithubURL = obj.Github
		changed = true
	}
	if obj.Host != "" && obj.Host != a.Host {
		a.Host = obj.Host
		changed = true
	}
	if !changed {
		return a, nil
	}
	acc, err := q.ReadAccountById(ctx, a.AccountId)
	if err != nil {
		return nil, err
	}
	if err := a.Clean(acc); err != nil {
		return nil, err
	}
	if err := q.UpdateAuthor(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) createMirror(ctx context.Context, q *db.Queries, authorURL string, obj *activitypub.AuthorObject) (*domain.Author, error) {
	host := obj.Host
	if host == "" {
		h, err := domain.HostOf(authorURL)
		if err != nil {
			return nil, err
		}
		host = h
	}

	seed := obj.DisplayName
	if strings.TrimSpace(seed) == "" {
		seed = authorURL[strings.LastIndex(authorURL, "/")+1:]
	}
	username, err := uniqueUsername(ctx, q, seed)
	if err != nil {
		return nil, err
	}

	now := s.timestamp()
	acc := &domain.Account{Id: uuid.New(), Username: username, CreatedAt: now}
	author := &domain.Author{
		Id:          uuid.New(),
		AccountId:   acc.Id,
		DisplayName: obj.DisplayName,
		GithubURL:   obj.Github,
		URL:         authorURL,
		Host:        host,
		CreatedAt:   now,
	}
	if err := author.Clean(acc); err != nil {
		return nil, err
	}
	if err := q.CreateAccount(ctx, acc); err != nil {
		return nil, err
	}
	if err := q.CreateAuthor(ctx, author); err != nil {
		return nil, err
	}
	return author, nil
}

// uniqueUsername derives a free username from seed by appending a counter, and falls
// back to a random suffix when the counter space is crowded.
func uniqueUsername(ctx context.Context, q *db.Queries, seed string) (string, error) {
	base := util.Slugify(seed)
	if base == "" {
		base = "author"
	}
	candidate := base
	for i := 2; i <= maxUsernameAttempts; i++ {
		taken, err := q.UsernameTaken(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s_%d", base, i)
	}
	return fmt.Sprintf("%s_%s", base, util.RandomString(8)), nil
}
