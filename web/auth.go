package web

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/socialdistance/socialdistance/domain"
	"github.com/socialdistance/socialdistance/logging"
	"github.com/socialdistance/socialdistance/service"
	"github.com/socialdistance/socialdistance/util"
)

const callerKey = "caller"

var ErrInvalidToken = errors.New("invalid token")

// TokenManager issues and validates bearer tokens for local authors.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token whose subject is the author id.
func (m *TokenManager) Issue(authorId uuid.UUID) (string, time.Time, error) {
	now := m.now()
	exp := now.Add(m.ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    util.Name,
		Subject:   authorId.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, exp, nil
}

// Validate returns the author id a token was issued for.
func (m *TokenManager) Validate(raw string) (uuid.UUID, error) {
	token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	}, jwt.WithIssuer(util.Name), jwt.WithTimeFunc(m.now))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return uuid.Nil, ErrInvalidToken
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return id, nil
}

// AuthMiddleware identifies the caller from a bearer token or peer node basic auth.
// Anonymous requests pass through; handlers decide what they require. Credentials
// that are present but wrong are rejected right away.
func AuthMiddleware(conf *util.AppConfig, tokens *TokenManager, svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}

		if user, pass, ok := c.Request.BasicAuth(); ok {
			node, found := conf.NodeByCredentials(user, pass)
			if !found {
				abortWithError(c, fmt.Errorf("%w: unknown node credentials", domain.ErrUnauthorized))
				return
			}
			c.Set(callerKey, service.Caller{Node: node.Username, NodeHost: node.Host})
			c.Set(logging.FieldPeer, node.Host)
			c.Next()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortWithError(c, fmt.Errorf("%w: invalid Authorization header", domain.ErrUnauthorized))
			return
		}
		id, err := tokens.Validate(strings.TrimSpace(parts[1]))
		if err != nil {
			abortWithError(c, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err))
			return
		}
		author, err := svc.GetAuthor(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, fmt.Errorf("%w: token subject no longer exists", domain.ErrUnauthorized))
			return
		}
		c.Set(callerKey, service.Caller{Author: author})
		c.Set(logging.FieldAuthorID, author.Id.String())
		c.Next()
	}
}

// RequireCaller rejects anonymous requests.
func RequireCaller() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := callerFrom(c)
		if !caller.IsAuthor() && !caller.IsPeer() {
			abortWithError(c, fmt.Errorf("%w: authentication required", domain.ErrUnauthorized))
			return
		}
		c.Next()
	}
}

func callerFrom(c *gin.Context) service.Caller {
	if v, ok := c.Get(callerKey); ok {
		if caller, ok := v.(service.Caller); ok {
			return caller
		}
	}
	return service.Caller{}
}
