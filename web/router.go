package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/socialdistance/socialdistance/domain"
	"github.com/socialdistance/socialdistance/logging"
	"github.com/socialdistance/socialdistance/service"
	"github.com/socialdistance/socialdistance/util"
	"golang.org/x/time/rate"
)

const (
	maxJSONBody   = 1 << 20
	maxUploadBody = 6 << 20
)

// Handler serves the HTTP API on top of the service layer.
type Handler struct {
	conf   *util.AppConfig
	svc    *service.Service
	tokens *TokenManager
}

func NewHandler(conf *util.AppConfig, svc *service.Service, tokens *TokenManager) *Handler {
	return &Handler{conf: conf, svc: svc, tokens: tokens}
}

// Router builds the gin engine. The limiters stop sweeping when ctx is done.
func Router(ctx context.Context, conf *util.AppConfig, svc *service.Service) *gin.Engine {
	h := NewHandler(conf, svc, NewTokenManager(conf.Conf.JwtSecret, conf.Conf.TokenTtl))

	g := gin.New()
	// :foreign carries an escaped author URL; route on the raw path so %2F stays inside
	// the segment.
	g.UseRawPath = true
	g.UnescapePathValues = true
	g.Use(gin.Recovery())
	g.Use(logging.GinMiddleware(logging.Component("web")))
	g.Use(gzip.Gzip(gzip.DefaultCompression))

	// Global per-IP rate limiter
	globalLimiter := NewRateLimiter(rate.Limit(conf.Conf.RateLimit), conf.Conf.RateBurst)
	go globalLimiter.Run(ctx)
	g.Use(RateLimitMiddleware(globalLimiter))

	// Stricter limit for server-to-server traffic
	inboxLimiter := NewRateLimiter(rate.Limit(conf.Conf.RateLimit/2), halfBurst(conf.Conf.RateBurst))
	go inboxLimiter.Run(ctx)

	g.NoRoute(notFound)

	jsonBody := MaxBytesMiddleware(maxJSONBody)
	auth := AuthMiddleware(conf, h.tokens, svc)
	authed := RequireCaller()

	g.GET("/health", h.health)
	g.POST("/api/login", jsonBody, h.login)
	g.GET("/.well-known/webfinger", h.webfinger)

	api := g.Group("/authors", auth)
	api.POST("", jsonBody, h.register)
	api.GET("", h.listAuthors)

	a := api.Group("/:author_id")
	a.GET("", h.getAuthor)
	a.POST("", authed, jsonBody, h.updateAuthor)
	a.DELETE("", authed, h.deleteAuthor)

	a.GET("/followers", h.followers)
	a.GET("/followers/:foreign", h.follower)
	a.PUT("/followers/:foreign", authed, h.addFollower)
	a.DELETE("/followers/:foreign", authed, h.removeFollower)
	a.GET("/following", h.followings)
	a.PUT("/following/:foreign", authed, h.addFollowing)
	a.DELETE("/following/:foreign", authed, h.removeFollowing)
	a.GET("/friends", h.friends)

	a.GET("/follow-requests", authed, h.followRequests)
	a.POST("/follow-requests", authed, jsonBody, h.sendFollow)
	a.POST("/follow-requests/:follow_id/accept", authed, h.acceptFollow)
	a.POST("/follow-requests/:follow_id/reject", authed, h.rejectFollow)
	a.DELETE("/follow-requests/:follow_id", authed, h.unfollow)

	a.GET("/posts", h.listPosts)
	a.POST("/posts", authed, jsonBody, h.createPost)
	a.POST("/posts/image", authed, MaxBytesMiddleware(maxUploadBody), h.uploadImage)
	a.GET("/posts/:post_id", h.getPost)
	a.POST("/posts/:post_id", authed, jsonBody, h.updatePost)
	a.DELETE("/posts/:post_id", authed, h.deletePost)
	a.GET("/posts/:post_id/image", h.image)
	a.GET("/posts/:post_id/comments", h.comments)
	a.POST("/posts/:post_id/comments", authed, jsonBody, h.addComment)
	a.GET("/posts/:post_id/likes", h.postLikes)
	a.GET("/liked", h.liked)
	a.POST("/likes", authed, jsonBody, h.like)

	a.GET("/inbox", authed, h.inbox)
	a.POST("/inbox", RateLimitMiddleware(inboxLimiter), authed, jsonBody, h.receiveInbox)
	a.DELETE("/inbox", authed, h.clearInbox)

	a.GET("/feed", h.feed)

	return g
}

func (h *Handler) health(c *gin.Context) {
	if err := h.svc.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "name": util.Name, "version": util.GetVersion()})
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		notFound(c)
		return uuid.Nil, false
	}
	return id, true
}

func pageParams(c *gin.Context) (page, size int, err error) {
	if v := c.Query("page"); v != "" {
		if page, err = strconv.Atoi(v); err != nil || page < 1 {
			return 0, 0, &domain.ValidationError{Field: "page", Reason: "must be a positive integer"}
		}
	}
	if v := c.Query("size"); v != "" {
		if size, err = strconv.Atoi(v); err != nil || size < 1 {
			return 0, 0, &domain.ValidationError{Field: "size", Reason: "must be a positive integer"}
		}
	}
	return page, size, nil
}

// bindJSON decodes the request body into v, reporting malformed input as a validation
// error.
func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abortWithError(c, err)
			return false
		}
		abortWithError(c, &domain.ValidationError{Field: "body", Reason: err.Error()})
		return false
	}
	return true
}
