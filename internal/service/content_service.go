package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/inkwellhq/inkwell/internal/domain"
	"github.com/inkwellhq/inkwell/internal/repository"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ErrInvalidInput flags a request the content service refused to act on.
var ErrInvalidInput = errors.New("content: invalid input")

// PostInput carries the writable fields of a post.
type PostInput struct {
	Title         string
	Slug          string
	Excerpt       string
	Body          string
	CoverImageURL string
	CategoryID    int64
}

// ListPostsQuery narrows a post listing.
type ListPostsQuery struct {
	OnlyPublished bool
	CategoryID    int64
	Limit         int
	Offset        int
}

// ContentService manages posts and categories.
type ContentService struct {
	posts      repository.PostRepository
	categories repository.CategoryRepository
	node       *snowflake.Node
	logger     *zap.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// NewContentService wires dependencies.
func NewContentService(posts repository.PostRepository, categories repository.CategoryRepository, node *snowflake.Node, logger *zap.Logger) *ContentService {
	return &ContentService{
		posts:      posts,
		categories: categories,
		node:       node,
		logger:     logger,
		tracer:     otel.Tracer("github.com/inkwellhq/inkwell/internal/service"),
		now:        time.Now,
	}
}

// CreatePost creates a draft post authored by authorID. An empty slug is
// derived from the title.
func (s *ContentService) CreatePost(ctx context.Context, authorID int64, input PostInput) (domain.Post, error) {
	ctx, span := s.startSpan(ctx, "ContentService.CreatePost")
	defer span.End()

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return domain.Post{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	slug := strings.TrimSpace(input.Slug)
	if slug == "" {
		slug = Slugify(title)
	}
	if slug == "" {
		return domain.Post{}, fmt.Errorf("%w: slug could not be derived", ErrInvalidInput)
	}

	post := domain.Post{
		ID:            s.node.Generate().Int64(),
		Title:         title,
		Slug:          slug,
		Excerpt:       input.Excerpt,
		Body:          input.Body,
		CoverImageURL: input.CoverImageURL,
		CategoryID:    input.CategoryID,
		AuthorID:      authorID,
		Status:        domain.PostDraft,
	}
	created, err := s.posts.Create(ctx, post)
	if err != nil {
		span.RecordError(err)
		return domain.Post{}, fmt.Errorf("create post: %w", err)
	}
	s.log().Info("post created", zap.Int64("post_id", created.ID), zap.Int64("author_id", authorID))
	return created, nil
}

// UpdatePost rewrites the writable fields of an existing post.
func (s *ContentService) UpdatePost(ctx context.Context, postID int64, input PostInput) (domain.Post, error) {
	ctx, span := s.startSpan(ctx, "ContentService.UpdatePost")
	defer span.End()

	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		span.RecordError(err)
		return domain.Post{}, fmt.Errorf("load post: %w", err)
	}

	if title := strings.TrimSpace(input.Title); title != "" {
		post.Title = title
	}
	if slug := strings.TrimSpace(input.Slug); slug != "" {
		post.Slug = slug
	}
	post.Excerpt = input.Excerpt
	post.Body = input.Body
	post.CoverImageURL = input.CoverImageURL
	if input.CategoryID != 0 {
		post.CategoryID = input.CategoryID
	}

	updated, err := s.posts.Update(ctx, post)
	if err != nil {
		span.RecordError(err)
		return domain.Post{}, fmt.Errorf("update post: %w", err)
	}
	return updated, nil
}

// PublishPost transitions a post to PUBLISHED, stamping publication time on
// the first publish only.
func (s *ContentService) PublishPost(ctx context.Context, postID int64) error {
	ctx, span := s.startSpan(ctx, "ContentService.PublishPost")
	defer span.End()

	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("load post: %w", err)
	}

	publishedAt := post.PublishedAt
	if publishedAt == nil {
		now := s.now().UTC()
		publishedAt = &now
	}
	if err := s.posts.SetStatus(ctx, postID, domain.PostPublished, publishedAt); err != nil {
		span.RecordError(err)
		return fmt.Errorf("publish post: %w", err)
	}
	s.log().Info("post published", zap.Int64("post_id", postID))
	return nil
}

// UnpublishPost returns a post to DRAFT. The original publication timestamp
// is retained.
func (s *ContentService) UnpublishPost(ctx context.Context, postID int64) error {
	ctx, span := s.startSpan(ctx, "ContentService.UnpublishPost")
	defer span.End()

	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("load post: %w", err)
	}
	if err := s.posts.SetStatus(ctx, postID, domain.PostDraft, post.PublishedAt); err != nil {
		span.RecordError(err)
		return fmt.Errorf("unpublish post: %w", err)
	}
	return nil
}

// DeletePost removes a post permanently.
func (s *ContentService) DeletePost(ctx context.Context, postID int64) error {
	ctx, span := s.startSpan(ctx, "ContentService.DeletePost")
	defer span.End()

	if err := s.posts.Delete(ctx, postID); err != nil {
		span.RecordError(err)
		return fmt.Errorf("delete post: %w", err)
	}
	s.log().Info("post deleted", zap.Int64("post_id", postID))
	return nil
}

// GetPost loads one post by id.
func (s *ContentService) GetPost(ctx context.Context, postID int64) (domain.Post, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return domain.Post{}, fmt.Errorf("load post: %w", err)
	}
	return post, nil
}

// GetPublishedPostBySlug loads one published post for public reading.
func (s *ContentService) GetPublishedPostBySlug(ctx context.Context, slug string) (domain.Post, error) {
	post, err := s.posts.GetBySlug(ctx, slug)
	if err != nil {
		return domain.Post{}, fmt.Errorf("load post: %w", err)
	}
	if post.Status != domain.PostPublished {
		return domain.Post{}, pgx.ErrNoRows
	}
	return post, nil
}

// ListPosts lists posts with pagination clamped to sane bounds.
func (s *ContentService) ListPosts(ctx context.Context, query ListPostsQuery) ([]domain.Post, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := query.Offset
	if offset < 0 {
		offset = 0
	}

	posts, err := s.posts.List(ctx, query.OnlyPublished, query.CategoryID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

// CreateCategory creates a category, deriving the slug from the name when
// absent.
func (s *ContentService) CreateCategory(ctx context.Context, name, slug string) (domain.Category, error) {
	ctx, span := s.startSpan(ctx, "ContentService.CreateCategory")
	defer span.End()

	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Category{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	slug = strings.TrimSpace(slug)
	if slug == "" {
		slug = Slugify(name)
	}

	category, err := s.categories.Create(ctx, domain.Category{
		ID:   s.node.Generate().Int64(),
		Name: name,
		Slug: slug,
	})
	if err != nil {
		span.RecordError(err)
		return domain.Category{}, fmt.Errorf("create category: %w", err)
	}
	return category, nil
}

// ListCategories lists every category.
func (s *ContentService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// Slugify lowercases the input and collapses non-alphanumeric runs into
// single hyphens.
func Slugify(value string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(strings.TrimSpace(value)) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func (s *ContentService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s == nil || s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}

func (s *ContentService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}
