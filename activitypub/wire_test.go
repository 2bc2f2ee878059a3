package activitypub

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/socialdistance/socialdistance/domain"
)

func TestAuthorRefAcceptsStringOrObject(t *testing.T) {
	var f FollowObject
	body := `{"type":"Follow","actor":"http://remote.test/authors/1","object":{"type":"author","id":"http://local.test/authors/2","displayName":"bob"}}`
	if err := json.Unmarshal([]byte(body), &f); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if f.Actor.URL != "http://remote.test/authors/1" || f.Actor.ID != f.Actor.URL {
		t.Errorf("Unexpected actor %+v", f.Actor)
	}
	if f.Object.DisplayName != "bob" || f.Object.Identifier() != "http://local.test/authors/2" {
		t.Errorf("Unexpected object %+v", f.Object)
	}

	out, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(out), `"actor":{"type":""`) {
		t.Errorf("Expected actor to marshal as object, got %s", out)
	}
}

func TestAuthorObjectValidate(t *testing.T) {
	tests := []struct {
		name  string
		obj   AuthorObject
		field string
	}{
		{"valid url", AuthorObject{Type: "Author", URL: "http://a.test/authors/1"}, ""},
		{"valid bare uuid", AuthorObject{ID: uuid.NewString()}, ""},
		{"wrong type", AuthorObject{Type: "post", URL: "http://a.test/authors/1"}, "author.type"},
		{"no identity", AuthorObject{Type: "author", DisplayName: "x"}, "author"},
		{"relative url", AuthorObject{URL: "/authors/1"}, "author.url"},
		{"relative id", AuthorObject{ID: "authors/1"}, "author.id"},
		{"long name", AuthorObject{URL: "http://a.test/authors/1", DisplayName: strings.Repeat("n", 31)}, "author.displayName"},
		{"bad github", AuthorObject{URL: "http://a.test/authors/1", Github: "nope"}, "author.github"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.obj.Validate()
			if tt.field == "" {
				if err != nil {
					t.Errorf("Expected valid, got %v", err)
				}
				return
			}
			var verr *domain.ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.field {
				t.Errorf("Expected validation error on %s, got %v", tt.field, err)
			}
		})
	}
}

func TestPostToWire(t *testing.T) {
	author := &domain.Author{Id: uuid.New(), DisplayName: "alice"}
	author.BindToHost(testBase)
	post := &domain.Post{
		Id:           uuid.New(),
		Title:        "hello",
		ContentType:  domain.ContentTypeMarkdown,
		Visibility:   domain.VisibilityFriends,
		Published:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		CommentCount: 2,
	}
	post.URL = domain.PostURL(author.URL, post.Id)

	obj := PostToWire(post, author)
	if obj.Type != "post" || obj.ID != post.URL || obj.Visibility != "FRIENDS" {
		t.Errorf("Unexpected post object %+v", obj)
	}
	if obj.Count != 2 || obj.Comments != post.URL+"/comments" {
		t.Errorf("Unexpected count/comments %d %s", obj.Count, obj.Comments)
	}
	if obj.Author.ID != author.URL || obj.Author.Type != "author" || obj.Author.Host != testBase {
		t.Errorf("Unexpected author %+v", obj.Author)
	}
}

func TestFollowToWireUsesLabels(t *testing.T) {
	actor := &domain.Author{Id: uuid.New(), DisplayName: "a", URL: "http://remote.test/authors/1", Host: "http://remote.test/"}
	object := &domain.Author{Id: uuid.New(), DisplayName: "b"}
	object.BindToHost(testBase)
	f := &domain.Follow{Id: uuid.New(), Status: domain.FollowAccepted, Summary: "a wants to follow b"}

	obj := FollowToWire(f, actor, object)
	if obj.Type != "Follow" || obj.Status != "Accepted" {
		t.Errorf("Unexpected follow object %+v", obj)
	}
	if !strings.HasPrefix(obj.ID, object.URL+"/follow-requests/") {
		t.Errorf("Unexpected follow id %s", obj.ID)
	}

	accept := AcceptToWire(f, actor, object)
	if accept.Type != "Accept" || accept.Actor.URL != object.URL {
		t.Errorf("Unexpected accept %+v", accept)
	}
}

func TestLikeToWire(t *testing.T) {
	author := &domain.Author{Id: uuid.New(), DisplayName: "alice"}
	author.BindToHost(testBase)
	l := &domain.Like{Object: "http://remote.test/authors/1/posts/1", Summary: "alice Likes your post"}
	obj := LikeToWire(l, author)
	if obj.Type != "Like" || obj.Object != l.Object || obj.Author.DisplayName != "alice" {
		t.Errorf("Unexpected like %+v", obj)
	}
}

func TestNewListNeverNull(t *testing.T) {
	out, _ := json.Marshal(NewList[*AuthorObject]("followers", nil))
	if string(out) != `{"type":"followers","items":[]}` {
		t.Errorf("Unexpected list JSON %s", out)
	}
}

func TestRemoteStub(t *testing.T) {
	stub := RemoteStub("http://remote.test/authors/abc/")
	if stub.URL != "http://remote.test/authors/abc" || stub.Host != "http://remote.test/" || stub.DisplayName != "abc" {
		t.Errorf("Unexpected stub %+v", stub)
	}
}
