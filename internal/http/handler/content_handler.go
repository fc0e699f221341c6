package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"github.com/inkwellhq/inkwell/internal/domain"
	"github.com/inkwellhq/inkwell/internal/http/middleware"
	"github.com/inkwellhq/inkwell/internal/service"
)

// ContentHandler exposes the posts and categories endpoints.
type ContentHandler struct {
	Content *service.ContentService
}

// NewContentHandler creates the handler set.
func NewContentHandler(content *service.ContentService) *ContentHandler {
	return &ContentHandler{Content: content}
}

type postResponse struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Slug          string     `json:"slug"`
	Excerpt       string     `json:"excerpt,omitempty"`
	Body          string     `json:"body,omitempty"`
	CoverImageURL string     `json:"cover_image_url,omitempty"`
	CategoryID    string     `json:"category_id,omitempty"`
	AuthorID      string     `json:"author_id"`
	Status        string     `json:"status"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func newPostResponse(post domain.Post) postResponse {
	resp := postResponse{
		ID:            strconv.FormatInt(post.ID, 10),
		Title:         post.Title,
		Slug:          post.Slug,
		Excerpt:       post.Excerpt,
		Body:          post.Body,
		CoverImageURL: post.CoverImageURL,
		AuthorID:      strconv.FormatInt(post.AuthorID, 10),
		Status:        string(post.Status),
		PublishedAt:   post.PublishedAt,
		CreatedAt:     post.CreatedAt,
		UpdatedAt:     post.UpdatedAt,
	}
	if post.CategoryID != 0 {
		resp.CategoryID = strconv.FormatInt(post.CategoryID, 10)
	}
	return resp
}

type categoryResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type postRequest struct {
	Title         string `json:"title"`
	Slug          string `json:"slug"`
	Excerpt       string `json:"excerpt"`
	Body          string `json:"body"`
	CoverImageURL string `json:"cover_image_url"`
	CategoryID    string `json:"category_id"`
}

func (r postRequest) toInput() service.PostInput {
	categoryID, _ := strconv.ParseInt(r.CategoryID, 10, 64)
	return service.PostInput{
		Title:         r.Title,
		Slug:          r.Slug,
		Excerpt:       r.Excerpt,
		Body:          r.Body,
		CoverImageURL: r.CoverImageURL,
		CategoryID:    categoryID,
	}
}

// ListPublishedPosts lists published posts for public readers.
func (h *ContentHandler) ListPublishedPosts(c *gin.Context) {
	h.listPosts(c, true)
}

// ListAllPosts lists every post, drafts included, for the admin UI.
func (h *ContentHandler) ListAllPosts(c *gin.Context) {
	h.listPosts(c, false)
}

func (h *ContentHandler) listPosts(c *gin.Context, onlyPublished bool) {
	categoryID, _ := strconv.ParseInt(c.Query("category_id"), 10, 64)
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	posts, err := h.Content.ListPosts(c.Request.Context(), service.ListPostsQuery{
		OnlyPublished: onlyPublished,
		CategoryID:    categoryID,
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		respondAuthError(c, err)
		return
	}

	out := make([]postResponse, 0, len(posts))
	for _, post := range posts {
		out = append(out, newPostResponse(post))
	}
	c.JSON(http.StatusOK, gin.H{"posts": out})
}

// GetPublishedPost returns one published post by slug.
func (h *ContentHandler) GetPublishedPost(c *gin.Context) {
	post, err := h.Content.GetPublishedPostBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		h.respondContentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": newPostResponse(post)})
}

// CreatePost creates a draft post authored by the requesting admin.
func (h *ContentHandler) CreatePost(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "MISSING_TOKEN"})
		return
	}

	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}

	post, err := h.Content.CreatePost(c.Request.Context(), userID, req.toInput())
	if err != nil {
		h.respondContentError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"post": newPostResponse(post)})
}

// UpdatePost rewrites a post's writable fields.
func (h *ContentHandler) UpdatePost(c *gin.Context) {
	postID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}

	post, err := h.Content.UpdatePost(c.Request.Context(), postID, req.toInput())
	if err != nil {
		h.respondContentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": newPostResponse(post)})
}

// PublishPost transitions a post to PUBLISHED.
func (h *ContentHandler) PublishPost(c *gin.Context) {
	postID, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.Content.PublishPost(c.Request.Context(), postID); err != nil {
		h.respondContentError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UnpublishPost returns a post to DRAFT.
func (h *ContentHandler) UnpublishPost(c *gin.Context) {
	postID, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.Content.UnpublishPost(c.Request.Context(), postID); err != nil {
		h.respondContentError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeletePost removes a post permanently.
func (h *ContentHandler) DeletePost(c *gin.Context) {
	postID, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.Content.DeletePost(c.Request.Context(), postID); err != nil {
		h.respondContentError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetPost returns one post by id, drafts included.
func (h *ContentHandler) GetPost(c *gin.Context) {
	postID, ok := parseID(c, "id")
	if !ok {
		return
	}
	post, err := h.Content.GetPost(c.Request.Context(), postID)
	if err != nil {
		h.respondContentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": newPostResponse(post)})
}

// ListCategories lists every category.
func (h *ContentHandler) ListCategories(c *gin.Context) {
	categories, err := h.Content.ListCategories(c.Request.Context())
	if err != nil {
		respondAuthError(c, err)
		return
	}
	out := make([]categoryResponse, 0, len(categories))
	for _, category := range categories {
		out = append(out, categoryResponse{
			ID:   strconv.FormatInt(category.ID, 10),
			Name: category.Name,
			Slug: category.Slug,
		})
	}
	c.JSON(http.StatusOK, gin.H{"categories": out})
}

// CreateCategory creates a category.
func (h *ContentHandler) CreateCategory(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
		Slug string `json:"slug"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "error_description": "name is required."})
		return
	}

	category, err := h.Content.CreateCategory(c.Request.Context(), req.Name, req.Slug)
	if err != nil {
		h.respondContentError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"category": categoryResponse{
		ID:   strconv.FormatInt(category.ID, 10),
		Name: category.Name,
		Slug: category.Slug,
	}})
}

func (h *ContentHandler) respondContentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		c.JSON(http.StatusNotFound, gin.H{"error": "NOT_FOUND"})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "SERVER_ERROR"})
	}
}

func parseID(c *gin.Context, param string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "error_description": "invalid id."})
		return 0, false
	}
	return id, true
}
