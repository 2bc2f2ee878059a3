package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/socialdistance/socialdistance/activitypub"
	"github.com/socialdistance/socialdistance/logging"
	"github.com/socialdistance/socialdistance/service"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Token     string                    `json:"token"`
	ExpiresAt time.Time                 `json:"expiresAt"`
	Author    *activitypub.AuthorObject `json:"author"`
}

// authorView is an author with their follower count.
type authorView struct {
	*activitypub.AuthorObject
	Followers int64 `json:"followers"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	author, err := h.svc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}
	token, exp, err := h.tokens.Issue(author.Id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Set(logging.FieldAuthorID, author.Id.String())
	c.JSON(http.StatusOK, loginResponse{Token: token, ExpiresAt: exp, Author: activitypub.AuthorToWire(author)})
}

func (h *Handler) register(c *gin.Context) {
	var req service.Registration
	if !bindJSON(c, &req) {
		return
	}
	author, err := h.svc.Register(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Header("Location", author.URL)
	c.JSON(http.StatusCreated, activitypub.AuthorToWire(author))
}

func (h *Handler) listAuthors(c *gin.Context) {
	page, size, err := pageParams(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	authors, total, err := h.svc.ListAuthors(c.Request.Context(), page, size)
	if err != nil {
		abortWithError(c, err)
		return
	}
	items := make([]*activitypub.AuthorObject, 0, len(authors))
	for i := range authors {
		items = append(items, activitypub.AuthorToWire(&authors[i]))
	}
	c.Header("X-Total-Count", strconv.Itoa(total))
	c.JSON(http.StatusOK, activitypub.NewList("authors", items))
}

func (h *Handler) getAuthor(c *gin.Context) {
	id, ok := uuidParam(c, "author_id")
	if !ok {
		return
	}
	author, err := h.svc.GetAuthor(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	count, err := h.svc.FollowerCount(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, authorView{AuthorObject: activitypub.AuthorToWire(author), Followers: count})
}

func (h *Handler) updateAuthor(c *gin.Context) {
	id, ok := uuidParam(c, "author_id")
	if !ok {
		return
	}
	var req service.AuthorUpdate
	if !bindJSON(c, &req) {
		return
	}
	author, err := h.svc.UpdateAuthor(c.Request.Context(), callerFrom(c), id, req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, activitypub.AuthorToWire(author))
}

func (h *Handler) deleteAuthor(c *gin.Context) {
	id, ok := uuidParam(c, "author_id")
	if !ok {
		return
	}
	if err := h.svc.DeleteAuthor(c.Request.Context(), callerFrom(c), id); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) followers(c *gin.Context) {
	id, ok := uuidParam(c, "author_id")
	if !ok {
		return
	}
	items, err := h.svc.Followers(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, activitypub.NewList("followers", items))
}

func (h *Handler) follower(c *gin.Context) {
	id, ok := uuidParam(c, "author_id")
	if !ok {
		return
	}
	obj, err := h.svc.Follower(c.Request.Context(), id, c.Param("foreign"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, obj)
}

func (h *Handler) addFollower(c *gin.Context) {
	id, ok := uuidParam(c, "author_id")
	if !ok {
		return
	}
	obj, err := h.svc.AddFollower(c.Request.Context(), callerFrom(c), id, c.Param("foreign"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, obj)
}

func (h *Handler) removeFollower(c *gin.Context) {
	id, ok := uuidParam(c, "author_id")
	if !ok {
		return
	}
	if err := h.svc.RemoveFollower(c.Request.Context(), callerFrom(c), id, c.Param("foreign")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) followings(c *gin.Context) {
	id, ok := uuidParam(c, "author_id")
	if !ok {
		return
	}
	items, err := h.svc.Followings(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, activitypub.NewList("following", items))
}

func (h *Handler) addFollowing(c *gin.Context) {
	id, ok := uuidParam(c, "author_id")
	if !ok {
		return
	}
	obj, err := h.svc.AddFollowing(c.Request.Context(), callerFrom(c), id, c.Param("foreign"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, obj)
}

func (h *Handler) removeFollowing(c *gin.Context) {
	id, ok := uuidParam(c, "author_id")
	if !ok {
		return
	}
	if err := h.svc.RemoveFollowing(c.Request.Context(), callerFrom(c), id, c.Param("foreign")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) friends(c *gin.Context) {
	id, ok := uuidParam(c, "author_id")
	if !ok {
		return
	}
	friends, err := h.svc.Friends(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	items := make([]*activitypub.AuthorObject, 0, len(friends))
	for i := range friends {
		items = append(items, activitypub.AuthorToWire(&friends[i]))
	}
	c.JSON(http.StatusOK, activitypub.NewList("friends", items))
}
