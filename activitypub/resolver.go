package activitypub

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/socialdistance/socialdistance/domain"
)

// AuthorReader is the part of the store the resolver needs. Both *db.DB and
// *db.Queries satisfy it.
type AuthorReader interface {
	ReadAuthorById(ctx context.Context, id uuid.UUID) (*domain.Author, error)
	ReadAuthorByURL(ctx context.Context, url string) (*domain.Author, error)
}

type IdentityKind int

const (
	// IdentityRemote is an author known only by URL.
	IdentityRemote IdentityKind = iota
	// IdentityLocal is an author hosted on this server.
	IdentityLocal
	// IdentityMirror is a remote author with a mirrored row.
	IdentityMirror
)

func (k IdentityKind) String() string {
	switch k {
	case IdentityLocal:
		return "local"
	case IdentityMirror:
		return "mirror"
	}
	return "remote"
}

type Identity struct {
	Kind   IdentityKind
	URL    string
	Author *domain.Author
}

func (i Identity) HasRow() bool {
	return i.Author != nil
}

// Resolver maps author URLs onto rows of the local store.
type Resolver struct {
	base string
}

func NewResolver(base string) *Resolver {
	return &Resolver{base: domain.NormalizeBase(base)}
}

func (r *Resolver) Base() string {
	return r.base
}

// LocalID extracts the author id from a URL of the form <base>/authors/<uuid>[/...].
// A bare uuid is accepted as well.
func (r *Resolver) LocalID(raw string) (uuid.UUID, bool) {
	raw = domain.NormalizeURL(raw)
	if id, err := uuid.Parse(raw); err == nil && isUUID(raw) {
		return id, true
	}
	prefix := r.base + "authors/"
	if !strings.HasPrefix(raw, prefix) {
		return uuid.Nil, false
	}
	rest := strings.TrimPrefix(raw, prefix)
	if i := strings.Index(rest, "/"); i >= 0 {
		rest = rest[:i]
	}
	id, err := uuid.Parse(rest)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// IsLocalURL reports whether raw points at this server.
func (r *Resolver) IsLocalURL(raw string) bool {
	return strings.HasPrefix(domain.NormalizeURL(raw)+"/", r.base)
}

// Resolve classifies url as a local author, a mirrored remote author or an author we
// only know by URL. Store errors other than not-found are returned.
func (r *Resolver) Resolve(ctx context.Context, store AuthorReader, url string) (Identity, error) {
	url = domain.NormalizeURL(url)

	if id, ok := r.LocalID(url); ok {
		a, err := store.ReadAuthorById(ctx, id)
		if err == nil {
			kind := IdentityMirror
			if a.IsLocal(r.base) {
				kind = IdentityLocal
			}
			return Identity{Kind: kind, URL: a.URL, Author: a}, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return Identity{}, err
		}
	}

	a, err := store.ReadAuthorByURL(ctx, url)
	if err == nil {
		kind := IdentityMirror
		if a.IsLocal(r.base) {
			kind = IdentityLocal
		}
		return Identity{Kind: kind, URL: a.URL, Author: a}, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return Identity{}, err
	}
	return Identity{Kind: IdentityRemote, URL: url}, nil
}

// InboxURL is where objects for the author at authorURL are delivered.
func InboxURL(authorURL string) string {
	return domain.NormalizeURL(authorURL) + "/inbox"
}

func isUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
