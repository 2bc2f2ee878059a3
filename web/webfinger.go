package web

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/socialdistance/socialdistance/domain"
)

type webfingerLink struct {
	Rel  string `json:"rel"`
	Type string `json:"type"`
	Href string `json:"href"`
}

type webfingerResponse struct {
	Subject string          `json:"subject"`
	Aliases []string        `json:"aliases,omitempty"`
	Links   []webfingerLink `json:"links"`
}

// webfingerUser extracts the username from acct:user@domain when domain is ours.
func webfingerUser(resource, host string) (string, bool) {
	if !strings.HasPrefix(resource, "acct:") {
		return "", false
	}
	acct := strings.TrimPrefix(resource, "acct:")
	user, domainPart, found := strings.Cut(acct, "@")
	if user == "" {
		return "", false
	}
	if found && !strings.EqualFold(domainPart, host) {
		return "", false
	}
	return user, true
}

func (h *Handler) webfinger(c *gin.Context) {
	base, err := url.Parse(h.svc.Base())
	if err != nil {
		abortWithError(c, err)
		return
	}
	user, ok := webfingerUser(c.Query("resource"), base.Host)
	if !ok {
		notFound(c)
		return
	}
	author, err := h.svc.AuthorByUsername(c.Request.Context(), user)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Header("Content-Type", "application/jrd+json; charset=utf-8")
	c.JSON(http.StatusOK, webfingerResponse{
		Subject: fmt.Sprintf("acct:%s@%s", user, base.Host),
		Aliases: []string{author.URL},
		Links: []webfingerLink{
			{Rel: "self", Type: "application/json", Href: author.URL},
			{Rel: "http://schemas.google.com/g/2010#updates-from", Type: "application/rss+xml", Href: domain.NormalizeURL(author.URL) + "/feed"},
		},
	})
}
