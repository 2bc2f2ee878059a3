package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/socialdistance/socialdistance/db"
	"github.com/socialdistance/socialdistance/service"
	"github.com/socialdistance/socialdistance/util"
)

const testBase = "http://local.test/"

type testServer struct {
	t      *testing.T
	router *gin.Engine
	db     *db.DB
	svc    *service.Service
	tokens *TokenManager
}

func testConf() *util.AppConfig {
	conf := &util.AppConfig{}
	conf.Conf.PublicUrl = testBase
	conf.Conf.JwtSecret = "test-secret"
	conf.Conf.TokenTtl = time.Hour
	conf.Conf.RateLimit = 1000
	conf.Conf.RateBurst = 1000
	conf.Conf.Nodes = []util.Node{{Host: "http://remote.test/", Username: "remote", Password: "pw"}}
	return conf
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	conf := testConf()
	svc := service.New(service.Options{DB: database, BaseURL: testBase, Federate: true})
	return &testServer{
		t:      t,
		router: Router(ctx, conf, svc),
		db:     database,
		svc:    svc,
		tokens: NewTokenManager(conf.Conf.JwtSecret, conf.Conf.TokenTtl),
	}
}

type request struct {
	method string
	path   string
	body   any
	token  string
	basic  [2]string
	header map[string]string
}

func (s *testServer) do(r request) *httptest.ResponseRecorder {
	s.t.Helper()
	var body io.Reader
	switch b := r.body.(type) {
	case nil:
	case []byte:
		body = bytes.NewReader(b)
	case string:
		body = bytes.NewBufferString(b)
	default:
		buf, err := json.Marshal(b)
		if err != nil {
			s.t.Fatalf("Marshal failed: %v", err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(r.method, r.path, body)
	if err != nil {
		s.t.Fatalf("NewRequest failed: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	if r.basic[0] != "" {
		req.SetBasicAuth(r.basic[0], r.basic[1])
	}
	for k, v := range r.header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// author is a registered local author with a valid token.
type author struct {
	ID    string
	URL   string
	Token string
}

func (s *testServer) register(username string) author {
	s.t.Helper()
	w := s.do(request{method: "POST", path: "/authors", body: map[string]string{
		"username": username,
		"password": "secret-" + username,
	}})
	if w.Code != http.StatusCreated {
		s.t.Fatalf("register %s: expected 201, got %d: %s", username, w.Code, w.Body.String())
	}
	w = s.do(request{method: "POST", path: "/api/login", body: map[string]string{
		"username": username,
		"password": "secret-" + username,
	}})
	if w.Code != http.StatusOK {
		s.t.Fatalf("login %s: expected 200, got %d: %s", username, w.Code, w.Body.String())
	}
	var resp struct {
		Token  string `json:"token"`
		Author struct {
			ID  string `json:"id"`
			URL string `json:"url"`
		} `json:"author"`
	}
	decode(s.t, w, &resp)
	return author{ID: resp.Author.URL[len(resp.Author.URL)-36:], URL: resp.Author.URL, Token: resp.Token}
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to decode %q: %v", w.Body.String(), err)
	}
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("Expected status %d, got %d: %s", want, w.Code, w.Body.String())
	}
}

type list struct {
	Type  string            `json:"type"`
	Items []json.RawMessage `json:"items"`
}
