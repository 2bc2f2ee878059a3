package domain

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	MaxUsernameLength    = 100
	MaxDisplayNameLength = 30
)

// Account is the login identity behind an Author. Mirrors of remote authors get an
// account without a password hash or signing keys.
type Account struct {
	Id            uuid.UUID
	Username      string
	PasswordHash  string
	CreatedAt     time.Time
	WebPublicKey  string
	WebPrivateKey string
}

func (acc *Account) CanLogin() bool {
	return acc.PasswordHash != ""
}

func (acc *Account) ToString() string {
	return fmt.Sprintf("\n\tId: %s \n\tUsername: %s \n\tCREATED_AT: %s)", acc.Id, acc.Username, acc.CreatedAt)
}

// Author is a participant identity addressed by URL. Local authors get URL and Host
// from the server that created them; mirrored remote authors keep the identity their
// home server gave them.
type Author struct {
	Id          uuid.UUID
	AccountId   uuid.UUID
	DisplayName string
	GithubURL   string
	URL         string
	Host        string
	CreatedAt   time.Time
}

// Clean enforces the author/account link and defaults the display name to the
// account's username.
func (a *Author) Clean(acc *Account) error {
	if acc == nil || acc.Id == uuid.Nil {
		return invalid("account", "author has to have an account linked")
	}
	if a.AccountId == uuid.Nil {
		a.AccountId = acc.Id
	}
	if a.AccountId != acc.Id {
		return invalid("account", "author is linked to a different account")
	}

	a.DisplayName = strings.TrimSpace(a.DisplayName)
	if a.DisplayName == "" {
		a.DisplayName = acc.Username
	}
	if len([]rune(a.DisplayName)) > MaxDisplayNameLength {
		return invalid("displayName", fmt.Sprintf("must be at most %d characters", MaxDisplayNameLength))
	}

	if a.GithubURL != "" && !IsAbsoluteURL(a.GithubURL) {
		return invalid("github", "must be an absolute URL")
	}
	return nil
}

// BindToHost derives URL and Host from the base URL of the server handling the request.
func (a *Author) BindToHost(base string) {
	base = NormalizeBase(base)
	a.URL = AuthorURL(base, a.Id)
	a.Host = base
}

// PublicID is the identifier exposed on the wire.
func (a *Author) PublicID() string {
	if a.URL != "" {
		return a.URL
	}
	return a.Id.String()
}

// IsLocal reports whether the author lives on the server with the given base URL.
func (a *Author) IsLocal(base string) bool {
	return a.URL == AuthorURL(NormalizeBase(base), a.Id)
}

func (a *Author) ToString() string {
	return fmt.Sprintf("\n\tId: %s \n\tDisplayName: %s \n\tURL: %s \n\tHost: %s)", a.Id, a.DisplayName, a.URL, a.Host)
}

// NormalizeBase returns the base URL with exactly one trailing slash.
func NormalizeBase(base string) string {
	return strings.TrimRight(base, "/") + "/"
}

// NormalizeURL trims the trailing slash so "https://a/authors/1/" and
// "https://a/authors/1" name the same author.
func NormalizeURL(u string) string {
	return strings.TrimRight(strings.TrimSpace(u), "/")
}

func AuthorURL(base string, id uuid.UUID) string {
	return fmt.Sprintf("%sauthors/%s", NormalizeBase(base), id)
}

func IsAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// HostOf returns scheme://host/ for an absolute URL.
func HostOf(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", invalid("url", fmt.Sprintf("%q is not an absolute URL", raw))
	}
	return fmt.Sprintf("%s://%s/", u.Scheme, u.Host), nil
}
