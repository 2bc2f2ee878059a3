package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	MaxTitleLength       = 100
	MaxLikeSummaryLength = 200
)

type Visibility string

const (
	VisibilityPublic  Visibility = "PUB"
	VisibilityFriends Visibility = "FRI"
	VisibilityPrivate Visibility = "PRI"
)

var visibilityLabels = map[Visibility]string{
	VisibilityPublic:  "PUBLIC",
	VisibilityFriends: "FRIENDS",
	VisibilityPrivate: "PRIVATE",
}

// Label is the wire form of the visibility, e.g. "PUBLIC".
func (v Visibility) Label() string {
	return visibilityLabels[v]
}

// ParseVisibility accepts either the stored code or the wire label.
func ParseVisibility(s string) (Visibility, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for code, label := range visibilityLabels {
		if s == string(code) || s == label {
			return code, nil
		}
	}
	return "", invalid("visibility", fmt.Sprintf("%q is not a valid choice", s))
}

type ContentType string

const (
	ContentTypePlain    ContentType = "text/plain"
	ContentTypeMarkdown ContentType = "text/markdown"
	ContentTypeBase64   ContentType = "application/base64"
	ContentTypePNG      ContentType = "image/png;base64"
	ContentTypeJPEG     ContentType = "image/jpeg;base64"
)

var contentTypes = []ContentType{
	ContentTypePlain,
	ContentTypeMarkdown,
	ContentTypeBase64,
	ContentTypePNG,
	ContentTypeJPEG,
}

func ParseContentType(s string) (ContentType, error) {
	s = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	for _, ct := range contentTypes {
		if s == string(ct) {
			return ct, nil
		}
	}
	return "", invalid("contentType", fmt.Sprintf("%q is not a valid choice", s))
}

func (ct ContentType) IsImage() bool {
	return ct == ContentTypePNG || ct == ContentTypeJPEG
}

// MIME returns the media type without the ;base64 suffix.
func (ct ContentType) MIME() string {
	return strings.TrimSuffix(string(ct), ";base64")
}

// NormalizeImageType maps an uploaded file's MIME type onto the image content types.
func NormalizeImageType(mime string) (ContentType, error) {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	switch mime {
	case "image/jpg", "image/jpeg":
		return ContentTypeJPEG, nil
	case "image/png":
		return ContentTypePNG, nil
	}
	return "", invalid("contentType", fmt.Sprintf("unsupported image type %q", mime))
}

type Post struct {
	Id          uuid.UUID
	AuthorId    uuid.UUID
	URL         string
	Title       string
	Source      string
	Origin      string
	Description string
	ContentType ContentType
	Content     string
	Visibility  Visibility
	Unlisted    bool
	Published   time.Time

	// Derived at read time.
	CommentCount int
	LikeCount    int
}

func (p *Post) Clean() error {
	p.Title = strings.TrimSpace(p.Title)
	if len([]rune(p.Title)) > MaxTitleLength {
		return invalid("title", fmt.Sprintf("must be at most %d characters", MaxTitleLength))
	}
	if p.ContentType == "" {
		p.ContentType = ContentTypePlain
	}
	if _, err := ParseContentType(string(p.ContentType)); err != nil {
		return err
	}
	if p.Visibility == "" {
		p.Visibility = VisibilityPublic
	}
	if _, err := ParseVisibility(string(p.Visibility)); err != nil {
		return err
	}
	if p.Source != "" && !IsAbsoluteURL(p.Source) {
		return invalid("source", "must be an absolute URL")
	}
	if p.Origin != "" && !IsAbsoluteURL(p.Origin) {
		return invalid("origin", "must be an absolute URL")
	}
	return nil
}

// Syndicated reports whether the post is pushed to followers.
func (p *Post) Syndicated() bool {
	return !p.Unlisted && p.Visibility != VisibilityPrivate
}

func PostURL(authorURL string, id uuid.UUID) string {
	return fmt.Sprintf("%s/posts/%s", NormalizeURL(authorURL), id)
}

func (p *Post) CommentsURL() string {
	return NormalizeURL(p.URL) + "/comments"
}

type Comment struct {
	Id          uuid.UUID
	PostId      uuid.UUID
	AuthorId    uuid.UUID
	URL         string
	Comment     string
	ContentType ContentType
	Published   time.Time
}

func (c *Comment) Clean() error {
	if strings.TrimSpace(c.Comment) == "" {
		return invalid("comment", "may not be blank")
	}
	if c.ContentType == "" {
		c.ContentType = ContentTypePlain
	}
	_, err := ParseContentType(string(c.ContentType))
	return err
}

func CommentURL(postURL string, id uuid.UUID) string {
	return fmt.Sprintf("%s/comments/%s", NormalizeURL(postURL), id)
}

type Like struct {
	Id        uuid.UUID
	AuthorId  uuid.UUID
	Object    string
	Summary   string
	CreatedAt time.Time
}

// Clean defaults the summary using the liking author's display name.
func (l *Like) Clean(author *Author) error {
	l.Object = NormalizeURL(l.Object)
	if !IsAbsoluteURL(l.Object) {
		return invalid("object", "must be an absolute URL")
	}
	l.Summary = strings.TrimSpace(l.Summary)
	if l.Summary == "" && author != nil {
		l.Summary = fmt.Sprintf("%s Likes your post", author.DisplayName)
	}
	if len([]rune(l.Summary)) > MaxLikeSummaryLength {
		return invalid("summary", fmt.Sprintf("must be at most %d characters", MaxLikeSummaryLength))
	}
	return nil
}
