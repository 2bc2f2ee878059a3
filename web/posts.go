package web

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/socialdistance/socialdistance/activitypub"
	"github.com/socialdistance/socialdistance/domain"
	"github.com/socialdistance/socialdistance/service"
)

func (h *Handler) listPosts(c *gin.Context) {
	id, ok := uuidParam(c, "author_id")
	if !ok {
		return
	}
	page, size, err := pageParams(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	items, err := h.svc.ListPosts(c.Request.Context(), callerFrom(c), id, page, size)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, activitypub.NewList("posts", items))
}

// createPost accepts posts from local authors and from peer nodes pushing their
// authors' posts. Peers address the author by the last segment of its URL, which need
// not be a uuid.
func (h *Handler) createPost(c *gin.Context) {
	var in activitypub.PostObject
	if !bindJSON(c, &in) {
		return
	}
	post, err := h.svc.CreatePost(c.Request.Context(), callerFrom(c), c.Param("author_id"), &in)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Header("Location", post.ID)
	c.JSON(http.StatusCreated, post)
}

func (h *Handler) uploadImage(c *gin.Context) {
	id, ok := uuidParam(c, "author_id")
	if !ok {
		return
	}
	fh, err := c.FormFile("image")
	if err != nil {
		abortWithError(c, &domain.ValidationError{Field: "image", Reason: "a file is required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		abortWithError(c, err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		abortWithError(c, err)
		return
	}

	upload := service.ImageUpload{
		MIME:        fh.Header.Get("Content-Type"),
		Data:        data,
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Visibility:  c.PostForm("visibility"),
	}
	if v := c.PostForm("unlisted"); v != "" {
		if upload.Unlisted, err = strconv.ParseBool(v); err != nil {
			abortWithError(c, &domain.ValidationError{Field: "unlisted", Reason: "must be a boolean"})
			return
		}
	}
	post, err := h.svc.UploadImage(c.Request.Context(), callerFrom(c), id, upload)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Header("Location", post.ID)
	c.JSON(http.StatusCreated, post)
}

func (h *Handler) getPost(c *gin.Context) {
	id, ok := uuidParam(c, "author_id")
	if !ok {
		return
	}
	postId, ok := uuidParam(c, "post_id")
	if !ok {
		return
	}
	post, err := h.svc.GetPost(c.Request.Context(), callerFrom(c), id, postId)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *Handler) updatePost(c *gin.Context) {
	id, ok := uuidParam(c, "author_id")
	if !ok {
		return
	}
	postId, ok := uuidParam(c, "post_id")
	if !ok {
		return
	}
	var in activitypub.PostObject
	if !bindJSON(c, &in) {
		return
	}
	post, err := h.svc.UpdatePost(c.Request.Context(), callerFrom(c), id, postId, &in)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *Handler) deletePost(c *gin.Context) {
	id, ok := uuidParam(c, "author_id")
	if !ok {
		return
	}
	postId, ok := uuidParam(c, "post_id")
	if !ok {
		return
	}
	if err := h.svc.DeletePost(c.Request.Context(), callerFrom(c), id, postId); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) image(c *gin.Context) {
	id, ok := uuidParam(c, "author_id")
	if !ok {
		return
	}
	postId, ok := uuidParam(c, "post_id")
	if !ok {
		return
	}
	data, mime, err := h.svc.Image(c.Request.Context(), callerFrom(c), id, postId)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Data(http.StatusOK, mime, data)
}

func (h *Handler) comments(c *gin.Context) {
	id, ok := uuidParam(c, "author_id")
	if !ok {
		return
	}
	postId, ok := uuidParam(c, "post_id")
	if !ok {
		return
	}
	page, size, err := pageParams(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	items, total, err := h.svc.Comments(c.Request.Context(), callerFrom(c), id, postId, page, size)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Header("X-Total-Count", strconv.Itoa(total))
	c.JSON(http.StatusOK, activitypub.NewList("comments", items))
}

func (h *Handler) addComment(c *gin.Context) {
	id, ok := uuidParam(c, "author_id")
	if !ok {
		return
	}
	postId, ok := uuidParam(c, "post_id")
	if !ok {
		return
	}
	var in activitypub.CommentObject
	if !bindJSON(c, &in) {
		return
	}
	comment, err := h.svc.AddComment(c.Request.Context(), callerFrom(c), id, postId, &in)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *Handler) postLikes(c *gin.Context) {
	id, ok := uuidParam(c, "author_id")
	if !ok {
		return
	}
	postId, ok := uuidParam(c, "post_id")
	if !ok {
		return
	}
	items, err := h.svc.PostLikes(c.Request.Context(), callerFrom(c), id, postId)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, activitypub.NewList("likes", items))
}

func (h *Handler) liked(c *gin.Context) {
	id, ok := uuidParam(c, "author_id")
	if !ok {
		return
	}
	items, err := h.svc.Liked(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, activitypub.NewList("liked", items))
}

func (h *Handler) like(c *gin.Context) {
	id, ok := uuidParam(c, "author_id")
	if !ok {
		return
	}
	var in activitypub.LikeObject
	if !bindJSON(c, &in) {
		return
	}
	like, err := h.svc.Like(c.Request.Context(), callerFrom(c), id, &in)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, like)
}
