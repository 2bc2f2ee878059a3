package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/socialdistance/socialdistance/activitypub"
	"github.com/socialdistance/socialdistance/db"
	"github.com/socialdistance/socialdistance/domain"
)

const maxImageBytes = 5 << 20

// ImageUpload is a single uploaded image that becomes an image post.
type ImageUpload struct {
	MIME        string
	Data        []byte
	Title       string
	Description string
	Visibility  string
	Unlisted    bool
}

// applyPost copies the writable fields of a wire post onto p.
func applyPost(p *domain.Post, in *activitypub.PostObject) error {
	p.Title = in.Title
	p.Source = in.Source
	p.Origin = in.Origin
	p.Description = in.Description
	p.Content = in.Content
	p.Unlisted = in.Unlisted
	if in.ContentType != "" {
		ct, err := domain.ParseContentType(in.ContentType)
		if err != nil {
			return err
		}
		p.ContentType = ct
	}
	if in.Visibility != "" {
		v, err := domain.ParseVisibility(in.Visibility)
		if err != nil {
			return err
		}
		p.Visibility = v
	}
	return p.Clean()
}

// postOwner resolves who a new post belongs to and checks the caller may post as
// them. An embedded author is upserted first; local callers must end up as that
// author, peers may only post for authors hosted elsewhere.
func (s *Service) postOwner(ctx context.Context, q *db.Queries, caller Caller, authorRef string, embedded *activitypub.AuthorObject) (*domain.Author, error) {
	var owner *domain.Author
	var err error
	switch {
	case embedded != nil:
		owner, err = s.UpsertAuthor(ctx, q, embedded)
	case caller.IsAuthor():
		owner, err = q.ReadAuthorById(ctx, caller.Author.Id)
	default:
		return nil, &domain.ValidationError{Field: "author", Reason: "this field is required"}
	}
	if err != nil {
		return nil, err
	}

	switch {
	case caller.IsAuthor():
		if owner.Id != caller.Author.Id || authorRef != owner.Id.String() {
			return nil, domain.ErrForbidden
		}
	case caller.IsPeer():
		if owner.IsLocal(s.Base()) || !caller.hosts(owner) || lastSegment(owner.URL) != authorRef {
			return nil, domain.ErrForbidden
		}
	default:
		return nil, domain.ErrUnauthorized
	}
	return owner, nil
}

// CreatePost stores a post for the author named by authorRef (the author id as it
// appears in the request path) and pushes it to the owner's followers.
func (s *Service) CreatePost(ctx context.Context, caller Caller, authorRef string, in *activitypub.PostObject) (*activitypub.PostObject, error) {
	if in == nil {
		return nil, &domain.ValidationError{Field: "body", Reason: "a post is required"}
	}
	var out *activitypub.PostObject
	var owner *domain.Author
	err := s.db.WithTx(ctx, func(q *db.Queries) error {
		o, err := s.postOwner(ctx, q, caller, authorRef, in.Author)
		if err != nil {
			return err
		}
		p, err := s.insertPost(ctx, q, o, in)
		if err != nil {
			return err
		}
		owner = o
		out = activitypub.PostToWire(p, o)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, domain.EventPostCreated, owner.URL, out.ID)
	return out, nil
}

func (s *Service) insertPost(ctx context.Context, q *db.Queries, owner *domain.Author, in *activitypub.PostObject) (*domain.Post, error) {
	p := &domain.Post{
		Id:        uuid.New(),
		AuthorId:  owner.Id,
		Published: s.timestamp(),
	}
	if err := applyPost(p, in); err != nil {
		return nil, err
	}
	p.URL = domain.PostURL(owner.URL, p.Id)
	if !owner.IsLocal(s.Base()) {
		if in.ID != "" && domain.IsAbsoluteURL(in.ID) {
			p.URL = domain.NormalizeURL(in.ID)
		}
		if in.Published != nil {
			p.Published = in.Published.UTC()
		}
	}
	if err := q.CreatePost(ctx, p); err != nil {
		return nil, err
	}
	if owner.IsLocal(s.Base()) {
		followers, err := s.audience(ctx, q, owner, p.Visibility)
		if err != nil {
			return nil, err
		}
		if err := s.outbox.SendPost(ctx, q, p, owner, followers); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// audience is the followers of owner allowed to read a post of visibility v. Followers
// without a row here can only see public posts.
func (s *Service) audience(ctx context.Context, q *db.Queries, owner *domain.Author, v domain.Visibility) ([]domain.Follower, error) {
	followers, err := q.ReadFollowers(ctx, owner.Id)
	if err != nil || v == domain.VisibilityPublic {
		return followers, err
	}
	out := followers[:0]
	for _, f := range followers {
		ident, err := s.resolver.Resolve(ctx, q, f.FollowerURL)
		if err != nil {
			return nil, err
		}
		if !ident.HasRow() {
			continue
		}
		ok, err := s.canSee(ctx, q, ident.Author.Id, owner.Id, v)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, f)
		}
	}
	return out, nil
}

// UploadImage turns an uploaded image into a base64 image post.
func (s *Service) UploadImage(ctx context.Context, caller Caller, authorId uuid.UUID, img ImageUpload) (*activitypub.PostObject, error) {
	if err := requireSelf(caller, authorId); err != nil {
		return nil, err
	}
	ct, err := domain.NormalizeImageType(img.MIME)
	if err != nil {
		return nil, err
	}
	if len(img.Data) == 0 {
		return nil, &domain.ValidationError{Field: "image", Reason: "file is empty"}
	}
	if len(img.Data) > maxImageBytes {
		return nil, &domain.ValidationError{Field: "image", Reason: fmt.Sprintf("must be at most %d bytes", maxImageBytes)}
	}
	in := &activitypub.PostObject{
		Title:       img.Title,
		Description: img.Description,
		ContentType: string(ct),
		Content:     base64.StdEncoding.EncodeToString(img.Data),
		Visibility:  img.Visibility,
		Unlisted:    img.Unlisted,
	}
	return s.CreatePost(ctx, caller, authorId.String(), in)
}

// readPost loads a post of authorId that the caller may see. Posts the caller may not
// see are reported as forbidden.
func (s *Service) readPost(ctx context.Context, q *db.Queries, caller Caller, authorId, postId uuid.UUID) (*domain.Post, *domain.Author, error) {
	p, err := q.ReadPostById(ctx, postId)
	if err != nil {
		return nil, nil, err
	}
	if p.AuthorId != authorId {
		return nil, nil, domain.ErrNotFound
	}
	ok, err := s.canSee(ctx, q, caller.viewerId(), p.AuthorId, p.Visibility)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, domain.ErrForbidden
	}
	owner, err := q.ReadAuthorById(ctx, p.AuthorId)
	if err != nil {
		return nil, nil, err
	}
	return p, owner, nil
}

func (s *Service) GetPost(ctx context.Context, caller Caller, authorId, postId uuid.UUID) (*activitypub.PostObject, error) {
	p, owner, err := s.readPost(ctx, s.db.Queries, caller, authorId, postId)
	if err != nil {
		return nil, err
	}
	return activitypub.PostToWire(p, owner), nil
}

// ListPosts pages through the author's posts the caller may see. Unlisted posts are
// only listed for their owner.
func (s *Service) ListPosts(ctx context.Context, caller Caller, authorId uuid.UUID, page, size int) ([]*activitypub.PostObject, error) {
	owner, err := s.db.ReadAuthorById(ctx, authorId)
	if err != nil {
		return nil, err
	}
	visible := []domain.Visibility{domain.VisibilityPublic}
	self := caller.viewerId() == authorId
	switch {
	case self:
		visible = append(visible, domain.VisibilityFriends, domain.VisibilityPrivate)
	case caller.IsAuthor():
		friends, err := s.db.AreFriends(ctx, caller.Author.Id, authorId)
		if err != nil {
			return nil, err
		}
		if friends {
			visible = append(visible, domain.VisibilityFriends)
		}
	}

	limit, offset := db.Page(page, size)
	posts, err := s.db.ReadPostsByAuthor(ctx, authorId, visible, self, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]*activitypub.PostObject, 0, len(posts))
	for i := range posts {
		out = append(out, activitypub.PostToWire(&posts[i], owner))
	}
	return out, nil
}

func (s *Service) UpdatePost(ctx context.Context, caller Caller, authorId, postId uuid.UUID, in *activitypub.PostObject) (*activitypub.PostObject, error) {
	if err := requireSelf(caller, authorId); err != nil {
		return nil, err
	}
	if in == nil {
		return nil, &domain.ValidationError{Field: "body", Reason: "a post is required"}
	}
	var out *activitypub.PostObject
	err := s.db.WithTx(ctx, func(q *db.Queries) error {
		p, owner, err := s.readPost(ctx, q, caller, authorId, postId)
		if err != nil {
			return err
		}
		if in.Author != nil && in.Author.Identifier() != owner.URL && in.Author.Identifier() != owner.Id.String() {
			return &domain.ValidationError{Field: "author", Reason: "a post cannot change its author"}
		}
		if err := applyPost(p, in); err != nil {
			return err
		}
		if err := q.UpdatePost(ctx, p); err != nil {
			return err
		}
		out = activitypub.PostToWire(p, owner)
		return nil
	})
	return out, err
}

func (s *Service) DeletePost(ctx context.Context, caller Caller, authorId, postId uuid.UUID) error {
	if err := requireSelf(caller, authorId); err != nil {
		return err
	}
	return s.db.WithTx(ctx, func(q *db.Queries) error {
		if _, _, err := s.readPost(ctx, q, caller, authorId, postId); err != nil {
			return err
		}
		return q.DeletePost(ctx, postId)
	})
}

// Image decodes an image post for serving.
func (s *Service) Image(ctx context.Context, caller Caller, authorId, postId uuid.UUID) ([]byte, string, error) {
	p, _, err := s.readPost(ctx, s.db.Queries, caller, authorId, postId)
	if err != nil {
		return nil, "", err
	}
	if !p.ContentType.IsImage() {
		return nil, "", domain.ErrNotFound
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(p.Content))
	if err != nil {
		return nil, "", fmt.Errorf("post %s holds invalid base64: %w", p.Id, err)
	}
	return data, p.ContentType.MIME(), nil
}

func lastSegment(url string) string {
	url = domain.NormalizeURL(url)
	return url[strings.LastIndex(url, "/")+1:]
}
