package web

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/google/uuid"
)

type postResp struct {
	Type        string `json:"type"`
	ID          string `json:"id"`
	Title       string `json:"title"`
	ContentType string `json:"contentType"`
	Visibility  string `json:"visibility"`
	Count       int    `json:"count"`
	Author      struct {
		URL         string `json:"url"`
		DisplayName string `json:"displayName"`
	} `json:"author"`
}

// path strips the test base from a post URL.
func (p postResp) path() string {
	return "/" + strings.TrimPrefix(p.ID, testBase)
}

func (s *testServer) createPost(a author, body map[string]any) postResp {
	s.t.Helper()
	w := s.do(request{method: "POST", path: "/authors/" + a.ID + "/posts", body: body, token: a.Token})
	expectStatus(s.t, w, http.StatusCreated)
	var p postResp
	decode(s.t, w, &p)
	return p
}

func TestCreateAndReadPost(t *testing.T) {
	s := newTestServer(t)
	alice := s.register("alice")

	p := s.createPost(alice, map[string]any{"title": "hello", "content": "first", "visibility": "PUBLIC"})
	if p.Type != "post" || p.Title != "hello" || p.Visibility != "PUBLIC" || p.ContentType != "text/plain" {
		t.Errorf("Unexpected post %+v", p)
	}
	if !strings.HasPrefix(p.ID, alice.URL+"/posts/") {
		t.Errorf("Expected post URL under the author, got %s", p.ID)
	}

	w := s.do(request{method: "GET", path: p.path()})
	expectStatus(t, w, http.StatusOK)

	w = s.do(request{method: "GET", path: "/authors/" + alice.ID + "/posts"})
	var l list
	decode(t, w, &l)
	if l.Type != "posts" || len(l.Items) != 1 {
		t.Errorf("Unexpected posts list %+v", l)
	}

	w = s.do(request{method: "POST", path: "/authors/" + alice.ID + "/posts", body: map[string]any{"title": "x", "visibility": "SECRET"}, token: alice.Token})
	expectStatus(t, w, http.StatusBadRequest)

	w = s.do(request{method: "POST", path: "/authors/" + alice.ID + "/posts", body: "{not json", token: alice.Token})
	expectStatus(t, w, http.StatusBadRequest)
}

func TestPostVisibilityOverHTTP(t *testing.T) {
	s := newTestServer(t)
	alice := s.register("alice")
	bob := s.register("bob")

	private := s.createPost(alice, map[string]any{"title": "diary", "visibility": "PRIVATE"})

	expectStatus(t, s.do(request{method: "GET", path: private.path()}), http.StatusForbidden)
	expectStatus(t, s.do(request{method: "GET", path: private.path(), token: bob.Token}), http.StatusForbidden)
	expectStatus(t, s.do(request{method: "GET", path: private.path(), token: alice.Token}), http.StatusOK)

	wrongOwner := "/authors/" + bob.ID + "/posts/" + private.ID[len(private.ID)-36:]
	expectStatus(t, s.do(request{method: "GET", path: wrongOwner, token: alice.Token}), http.StatusNotFound)
}

func TestUpdateAndDeletePostOverHTTP(t *testing.T) {
	s := newTestServer(t)
	alice := s.register("alice")
	bob := s.register("bob")
	p := s.createPost(alice, map[string]any{"title": "draft"})

	w := s.do(request{method: "POST", path: p.path(), body: map[string]any{"title": "final"}, token: bob.Token})
	expectStatus(t, w, http.StatusForbidden)

	w = s.do(request{method: "POST", path: p.path(), body: map[string]any{"title": "final"}, token: alice.Token})
	expectStatus(t, w, http.StatusOK)
	var updated postResp
	decode(t, w, &updated)
	if updated.Title != "final" {
		t.Errorf("Expected updated title, got %q", updated.Title)
	}

	expectStatus(t, s.do(request{method: "DELETE", path: p.path(), token: alice.Token}), http.StatusNoContent)
	expectStatus(t, s.do(request{method: "GET", path: p.path()}), http.StatusNotFound)
}

func TestPeerPushesPostForNewAuthor(t *testing.T) {
	s := newTestServer(t)
	remoteId := uuid.NewString()
	remoteURL := "http://remote.test/authors/" + remoteId
	body := map[string]any{
		"type":  "post",
		"id":    remoteURL + "/posts/" + uuid.NewString(),
		"title": "from afar",
		"author": map[string]any{
			"type":        "author",
			"id":          remoteURL,
			"url":         remoteURL,
			"host":        "http://remote.test/",
			"displayName": "carol",
		},
	}

	w := s.do(request{method: "POST", path: "/authors/" + remoteId + "/posts", body: body})
	expectStatus(t, w, http.StatusUnauthorized)

	w = s.do(request{method: "POST", path: "/authors/" + remoteId + "/posts", body: body, basic: [2]string{"remote", "pw"}})
	expectStatus(t, w, http.StatusCreated)
	var p postResp
	decode(t, w, &p)
	if p.Author.URL != remoteURL || p.Author.DisplayName != "carol" {
		t.Errorf("Unexpected author %+v", p.Author)
	}

	// the mirror is not listed as a local author
	w = s.do(request{method: "GET", path: "/authors"})
	var l list
	decode(t, w, &l)
	if len(l.Items) != 0 {
		t.Errorf("Expected no local authors, got %d", len(l.Items))
	}
}

func imageRequest(t *testing.T, path, token, mime string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="image"; filename="pic"`)
	h.Set("Content-Type", mime)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("CreatePart failed: %v", err)
	}
	part.Write(data)
	mw.WriteField("title", "pic")
	mw.WriteField("visibility", "PUBLIC")
	mw.Close()

	req, _ := http.NewRequest("POST", path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestImageUploadAndServe(t *testing.T) {
	s := newTestServer(t)
	alice := s.register("alice")
	data := []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10}
	path := "/authors/" + alice.ID + "/posts/image"

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, imageRequest(t, path, alice.Token, "image/jpg", data))
	expectStatus(t, w, http.StatusCreated)
	var p postResp
	decode(t, w, &p)
	if p.ContentType != "image/jpeg;base64" {
		t.Errorf("Expected image/jpeg;base64, got %s", p.ContentType)
	}

	w = s.do(request{method: "GET", path: p.path() + "/image"})
	expectStatus(t, w, http.StatusOK)
	if ct := w.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Expected image/jpeg, got %s", ct)
	}
	if !bytes.Equal(w.Body.Bytes(), data) {
		t.Errorf("Served image differs: %x", w.Body.Bytes())
	}

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, imageRequest(t, path, alice.Token, "image/gif", data))
	expectStatus(t, w, http.StatusBadRequest)
	if !strings.Contains(w.Body.String(), "unsupported image type") {
		t.Errorf("Expected unsupported image type, got %s", w.Body.String())
	}
}

func TestCommentsAndLikesOverHTTP(t *testing.T) {
	s := newTestServer(t)
	alice := s.register("alice")
	bob := s.register("bob")
	p := s.createPost(alice, map[string]any{"title": "hello"})

	w := s.do(request{method: "POST", path: p.path() + "/comments", body: map[string]any{"comment": "nice"}, token: bob.Token})
	expectStatus(t, w, http.StatusCreated)
	var c struct {
		Type    string `json:"type"`
		Comment string `json:"comment"`
		Author  struct {
			URL string `json:"url"`
		} `json:"author"`
	}
	decode(t, w, &c)
	if c.Type != "comment" || c.Comment != "nice" || c.Author.URL != bob.URL {
		t.Errorf("Unexpected comment %+v", c)
	}

	w = s.do(request{method: "GET", path: p.path() + "/comments"})
	expectStatus(t, w, http.StatusOK)
	if w.Header().Get("X-Total-Count") != "1" {
		t.Errorf("Expected 1 comment, got %s", w.Header().Get("X-Total-Count"))
	}

	w = s.do(request{method: "POST", path: "/authors/" + bob.ID + "/likes", body: map[string]any{"object": p.ID, "summary": "bob likes your post"}, token: bob.Token})
	expectStatus(t, w, http.StatusCreated)
	w = s.do(request{method: "POST", path: "/authors/" + bob.ID + "/likes", body: map[string]any{"object": p.ID}, token: alice.Token})
	expectStatus(t, w, http.StatusForbidden)

	var l list
	decode(t, s.do(request{method: "GET", path: p.path() + "/likes"}), &l)
	if l.Type != "likes" || len(l.Items) != 1 {
		t.Errorf("Unexpected likes %+v", l)
	}
	decode(t, s.do(request{method: "GET", path: "/authors/" + bob.ID + "/liked"}), &l)
	if l.Type != "liked" || len(l.Items) != 1 {
		t.Errorf("Unexpected liked %+v", l)
	}

	w = s.do(request{method: "GET", path: p.path()})
	var got postResp
	decode(t, w, &got)
	if got.Count != 1 {
		t.Errorf("Expected comment count 1, got %d", got.Count)
	}
}
