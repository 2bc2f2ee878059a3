package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/socialdistance/socialdistance/activitypub"
	"github.com/socialdistance/socialdistance/service"
)

func (h *Handler) followRequests(c *gin.Context) {
	id, ok := uuidParam(c, "author_id")
	if !ok {
		return
	}
	list := h.svc.FollowRequests
	if c.Query("scope") == "all" {
		list = h.svc.AllFollows
	}
	items, err := list(c.Request.Context(), callerFrom(c), id, c.Query("status"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, activitypub.NewList("follow-requests", items))
}

func (h *Handler) sendFollow(c *gin.Context) {
	id, ok := uuidParam(c, "author_id")
	if !ok {
		return
	}
	var req service.FollowRequest
	if !bindJSON(c, &req) {
		return
	}
	follow, err := h.svc.SendFollow(c.Request.Context(), callerFrom(c), id, req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, follow)
}

func (h *Handler) acceptFollow(c *gin.Context) {
	id, ok := uuidParam(c, "author_id")
	if !ok {
		return
	}
	followId, ok := uuidParam(c, "follow_id")
	if !ok {
		return
	}
	follow, err := h.svc.AcceptFollow(c.Request.Context(), callerFrom(c), id, followId)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, follow)
}

func (h *Handler) rejectFollow(c *gin.Context) {
	id, ok := uuidParam(c, "author_id")
	if !ok {
		return
	}
	followId, ok := uuidParam(c, "follow_id")
	if !ok {
		return
	}
	if err := h.svc.RejectFollow(c.Request.Context(), callerFrom(c), id, followId); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) unfollow(c *gin.Context) {
	id, ok := uuidParam(c, "author_id")
	if !ok {
		return
	}
	followId, ok := uuidParam(c, "follow_id")
	if !ok {
		return
	}
	if err := h.svc.Unfollow(c.Request.Context(), callerFrom(c), id, followId); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
