package web

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/socialdistance/socialdistance/activitypub"
	"github.com/socialdistance/socialdistance/logging"
)

type inboxView struct {
	activitypub.List[json.RawMessage]
	Total int `json:"total"`
}

func (h *Handler) inbox(c *gin.Context) {
	id, ok := uuidParam(c, "author_id")
	if !ok {
		return
	}
	page, size, err := pageParams(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	items, err := h.svc.Inbox(c.Request.Context(), callerFrom(c), id, page, size)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, inboxView{
		List:  activitypub.NewList("inbox", items.Items),
		Total: items.Total,
	})
}

func (h *Handler) receiveInbox(c *gin.Context) {
	id, ok := uuidParam(c, "author_id")
	if !ok {
		return
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		abortWithError(c, err)
		return
	}
	kind, err := h.svc.ReceiveInbox(c.Request.Context(), callerFrom(c), id, body)
	if err != nil {
		abortWithError(c, err)
		return
	}
	logger := logging.Ctx(c.Request.Context())
	logger.Debug().Str("kind", kind).Str(logging.FieldAuthorID, id.String()).Msg("inbox item received")
	c.JSON(http.StatusCreated, gin.H{"type": kind})
}

func (h *Handler) clearInbox(c *gin.Context) {
	id, ok := uuidParam(c, "author_id")
	if !ok {
		return
	}
	if err := h.svc.ClearInbox(c.Request.Context(), callerFrom(c), id); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
