package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewAddsService(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Config{Level: "info", ServiceName: "socialdistance"})
	logger.Info().Msg("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("Expected JSON output, got %q: %v", buf.String(), err)
	}
	if line[FieldService] != "socialdistance" {
		t.Errorf("Expected service field, got %v", line[FieldService])
	}
}

func TestCtxFallsBackToGlobal(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Config{})
	ctx := WithLogger(context.Background(), logger)

	l := Ctx(ctx)
	l.Info().Msg("scoped")
	if buf.Len() == 0 {
		t.Error("Expected the context logger to be used")
	}

	// no logger in context
	_ = Ctx(context.Background())
}

func TestGinMiddlewareRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	logger := New(&buf, Config{})

	router := gin.New()
	router.Use(GinMiddleware(logger))
	router.GET("/ping", func(c *gin.Context) {
		c.Set(FieldAuthorID, "abc")
		c.String(http.StatusOK, "pong")
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get(HeaderRequestID); got != "req-1" {
		t.Errorf("Expected request id to be echoed, got %q", got)
	}

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("Expected JSON log line, got %q", buf.String())
	}
	if line[FieldRequestID] != "req-1" || line[FieldAuthorID] != "abc" {
		t.Errorf("Unexpected log fields %v", line)
	}
	if line[FieldStatus].(float64) != 200 {
		t.Errorf("Expected status 200, got %v", line[FieldStatus])
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if w.Header().Get(HeaderRequestID) == "" {
		t.Error("Expected a generated request id")
	}
}
