package web

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/feeds"
	"github.com/socialdistance/socialdistance/domain"
	"github.com/socialdistance/socialdistance/util"
)

// BuildFeed renders an author's public posts as RSS.
func BuildFeed(author *domain.Author, posts []domain.Post) (string, error) {
	feed := &feeds.Feed{
		Title:       fmt.Sprintf("%s - posts", author.DisplayName),
		Link:        &feeds.Link{Href: author.URL},
		Description: fmt.Sprintf("Public posts by %s", author.DisplayName),
		Author:      &feeds.Author{Name: author.DisplayName},
		Created:     author.CreatedAt,
	}
	if len(posts) > 0 {
		feed.Updated = posts[0].Published
	}

	for _, p := range posts {
		item := &feeds.Item{
			Id:          p.URL,
			Title:       p.Title,
			Link:        &feeds.Link{Href: p.URL},
			Description: p.Description,
			Author:      &feeds.Author{Name: author.DisplayName},
			Created:     p.Published,
		}
		switch {
		case p.ContentType.IsImage():
			item.Enclosure = &feeds.Enclosure{Url: p.URL + "/image", Type: p.ContentType.MIME(), Length: "0"}
		case p.ContentType == domain.ContentTypeMarkdown:
			item.Content = util.MarkdownLinksToHTML(p.Content)
		default:
			item.Content = p.Content
		}
		if item.Title == "" {
			item.Title = p.Published.Format("2006-01-02 15:04")
		}
		feed.Items = append(feed.Items, item)
	}
	return feed.ToRss()
}

func (h *Handler) feed(c *gin.Context) {
	id, ok := uuidParam(c, "author_id")
	if !ok {
		return
	}
	author, posts, err := h.svc.PublicFeed(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	rss, err := BuildFeed(author, posts)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/rss+xml; charset=utf-8", []byte(rss))
}
