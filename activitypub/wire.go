package activitypub

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/socialdistance/socialdistance/domain"
)

// Wire type discriminators.
const (
	TypeAuthor  = "author"
	TypePost    = "post"
	TypeComment = "comment"
	TypeLike    = "Like"
	TypeFollow  = "Follow"
	TypeAccept  = "Accept"
	TypeUndo    = "Undo"
)

// AuthorObject is the federated representation of an author. Id and url are both the
// author's absolute URL for authors we serialize; inbound payloads may carry only one.
type AuthorObject struct {
	Type        string `json:"type"`
	ID          string `json:"id"`
	URL         string `json:"url"`
	Host        string `json:"host"`
	DisplayName string `json:"displayName"`
	Github      string `json:"github,omitempty"`
}

// Identifier is the URL naming the author, or the bare id when no URL was given.
func (o *AuthorObject) Identifier() string {
	if o.URL != "" {
		return domain.NormalizeURL(o.URL)
	}
	return domain.NormalizeURL(o.ID)
}

// Validate checks an embedded author before it is upserted.
func (o *AuthorObject) Validate() error {
	if o.Type != "" && !strings.EqualFold(o.Type, TypeAuthor) {
		return &domain.ValidationError{Field: "author.type", Reason: fmt.Sprintf("expected %q, got %q", TypeAuthor, o.Type)}
	}
	if o.ID == "" && o.URL == "" {
		return &domain.ValidationError{Field: "author", Reason: "id or url is required"}
	}
	if o.URL != "" && !domain.IsAbsoluteURL(o.URL) {
		return &domain.ValidationError{Field: "author.url", Reason: "must be an absolute URL"}
	}
	if o.URL == "" && !domain.IsAbsoluteURL(o.ID) && !isUUID(o.ID) {
		return &domain.ValidationError{Field: "author.id", Reason: "must be an absolute URL"}
	}
	if o.Host != "" && !domain.IsAbsoluteURL(o.Host) {
		return &domain.ValidationError{Field: "author.host", Reason: "must be an absolute URL"}
	}
	if len([]rune(strings.TrimSpace(o.DisplayName))) > domain.MaxDisplayNameLength {
		return &domain.ValidationError{Field: "author.displayName", Reason: fmt.Sprintf("must be at most %d characters", domain.MaxDisplayNameLength)}
	}
	if o.Github != "" && !domain.IsAbsoluteURL(o.Github) {
		return &domain.ValidationError{Field: "author.github", Reason: "must be a URL"}
	}
	return nil
}

// AuthorRef decodes either a full author object or a bare URL string.
type AuthorRef struct {
	AuthorObject
}

func (r *AuthorRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var u string
		if err := json.Unmarshal(data, &u); err != nil {
			return err
		}
		r.AuthorObject = AuthorObject{ID: u, URL: u}
		return nil
	}
	return json.Unmarshal(data, &r.AuthorObject)
}

func (r AuthorRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.AuthorObject)
}

type PostObject struct {
	Type        string        `json:"type"`
	ID          string        `json:"id,omitempty"`
	Title       string        `json:"title"`
	Source      string        `json:"source"`
	Origin      string        `json:"origin"`
	Description string        `json:"description"`
	ContentType string        `json:"contentType"`
	Content     string        `json:"content"`
	Author      *AuthorObject `json:"author"`
	Count       int           `json:"count"`
	Comments    string        `json:"comments,omitempty"`
	Published   *time.Time    `json:"published,omitempty"`
	Visibility  string        `json:"visibility"`
	Unlisted    bool          `json:"unlisted"`
}

type CommentObject struct {
	Type        string        `json:"type"`
	ID          string        `json:"id,omitempty"`
	Author      *AuthorObject `json:"author,omitempty"`
	Comment     string        `json:"comment"`
	ContentType string        `json:"contentType"`
	Published   *time.Time    `json:"published,omitempty"`
	// Post names the commented post on inbound comments.
	Post string `json:"post,omitempty"`
}

type LikeObject struct {
	Type    string        `json:"type"`
	Summary string        `json:"summary"`
	Author  *AuthorObject `json:"author,omitempty"`
	Object  string        `json:"object"`
}

type FollowObject struct {
	Type    string     `json:"type"`
	ID      string     `json:"id,omitempty"`
	Summary string     `json:"summary"`
	Actor   *AuthorRef `json:"actor"`
	Object  *AuthorRef `json:"object"`
	Status  string     `json:"status,omitempty"`
}

// ActivityObject wraps a follow for Accept and Undo.
type ActivityObject struct {
	Type   string        `json:"type"`
	Actor  *AuthorRef    `json:"actor"`
	Object *FollowObject `json:"object"`
}

// List is the envelope every collection is returned in.
type List[T any] struct {
	Type  string `json:"type"`
	Items []T    `json:"items"`
}

func NewList[T any](kind string, items []T) List[T] {
	if items == nil {
		items = []T{}
	}
	return List[T]{Type: kind, Items: items}
}

func AuthorToWire(a *domain.Author) *AuthorObject {
	return &AuthorObject{
		Type:        TypeAuthor,
		ID:          a.PublicID(),
		URL:         a.URL,
		Host:        a.Host,
		DisplayName: a.DisplayName,
		Github:      a.GithubURL,
	}
}

// StubAuthor stands in for an author we only know by URL.
func StubAuthor(url string) *AuthorObject {
	host, _ := domain.HostOf(url)
	return &AuthorObject{Type: TypeAuthor, ID: url, URL: url, Host: host}
}

func PostToWire(p *domain.Post, author *domain.Author) *PostObject {
	published := p.Published
	return &PostObject{
		Type:        TypePost,
		ID:          p.URL,
		Title:       p.Title,
		Source:      p.Source,
		Origin:      p.Origin,
		Description: p.Description,
		ContentType: string(p.ContentType),
		Content:     p.Content,
		Author:      AuthorToWire(author),
		Count:       p.CommentCount,
		Comments:    p.CommentsURL(),
		Published:   &published,
		Visibility:  p.Visibility.Label(),
		Unlisted:    p.Unlisted,
	}
}

func CommentToWire(c *domain.Comment, author *domain.Author) *CommentObject {
	published := c.Published
	return &CommentObject{
		Type:        TypeComment,
		ID:          c.URL,
		Author:      AuthorToWire(author),
		Comment:     c.Comment,
		ContentType: string(c.ContentType),
		Published:   &published,
	}
}

func LikeToWire(l *domain.Like, author *domain.Author) *LikeObject {
	return &LikeObject{
		Type:    TypeLike,
		Summary: l.Summary,
		Author:  AuthorToWire(author),
		Object:  l.Object,
	}
}

// FollowURL names a follow request on the object's server.
func FollowURL(object *domain.Author, f *domain.Follow) string {
	return fmt.Sprintf("%s/follow-requests/%s", domain.NormalizeURL(object.URL), f.Id)
}

func FollowToWire(f *domain.Follow, actor, object *domain.Author) *FollowObject {
	return &FollowObject{
		Type:    TypeFollow,
		ID:      FollowURL(object, f),
		Summary: f.Summary,
		Actor:   &AuthorRef{*AuthorToWire(actor)},
		Object:  &AuthorRef{*AuthorToWire(object)},
		Status:  f.Status.Label(),
	}
}

func AcceptToWire(f *domain.Follow, actor, object *domain.Author) *ActivityObject {
	return &ActivityObject{
		Type:   TypeAccept,
		Actor:  &AuthorRef{*AuthorToWire(object)},
		Object: FollowToWire(f, actor, object),
	}
}

func UndoToWire(f *domain.Follow, actor, object *domain.Author) *ActivityObject {
	return &ActivityObject{
		Type:   TypeUndo,
		Actor:  &AuthorRef{*AuthorToWire(actor)},
		Object: FollowToWire(f, actor, object),
	}
}
