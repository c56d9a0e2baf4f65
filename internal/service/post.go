package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/capitalize-ai/community-platform/internal/docstore"
	"github.com/capitalize-ai/community-platform/internal/model"
	"github.com/capitalize-ai/community-platform/pkg/logger"
	"github.com/capitalize-ai/community-platform/pkg/metrics"
)

const (
	defaultPostLimit = 20
	maxPostLimit     = 100
)

// PostService manages feed posts, bookmarks and view counts.
type PostService struct {
	store     docstore.Store
	moderator Moderator
	logger    *logger.Logger
}

// NewPostService creates a post service. moderator may be nil.
func NewPostService(store docstore.Store, moderator Moderator, log *logger.Logger) *PostService {
	return &PostService{store: store, moderator: moderator, logger: log}
}

func cleanTags(tags []string) []any {
	seen := make(map[string]bool, len(tags))
	out := []any{}
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// Create publishes a post authored by the session user.
func (s *PostService) Create(ctx context.Context, sess *Session, req *model.CreatePostRequest) (id string, err error) {
	ctx, span := startSpan(ctx, "PostService.Create")
	defer endSpan(span, &err)

	userID, err := sess.user()
	if err != nil {
		return "", err
	}
	title := strings.TrimSpace(req.Title)
	content := strings.TrimSpace(req.Content)
	if title == "" || content == "" {
		return "", invalid("title and content are required")
	}
	if err := screen(ctx, s.moderator, s.logger, title+"\n\n"+content); err != nil {
		return "", err
	}

	id, err = s.store.Add(ctx, model.PostsCollection, map[string]any{
		"authorId":     userID,
		"title":        title,
		"content":      content,
		"category":     strings.TrimSpace(req.Category),
		"tags":         cleanTags(req.Tags),
		"reactions":    map[string]any{},
		"commentCount": 0,
		"bookmarkedBy": []any{},
		"views":        0,
		"score":        0,
		"createdAt":    docstore.ServerTimestamp,
		"updatedAt":    docstore.ServerTimestamp,
	})
	if err != nil {
		s.logger.WithContext(ctx).Error("failed to create post", zap.Error(err))
		return "", fmt.Errorf("failed to create post: %w", err)
	}
	return id, nil
}

// Get returns a post.
func (s *PostService) Get(ctx context.Context, postID string) (*model.Post, error) {
	return loadPost(ctx, s.store, postID)
}

// List returns the newest posts, optionally of one category.
func (s *PostService) List(ctx context.Context, category string, limit int) (_ []model.Post, err error) {
	ctx, span := startSpan(ctx, "PostService.List", attribute.String("category", category))
	defer endSpan(span, &err)

	if limit <= 0 {
		limit = defaultPostLimit
	}
	if limit > maxPostLimit {
		limit = maxPostLimit
	}
	q := docstore.NewQuery(model.PostsCollection)
	if category != "" {
		q = q.Where("category", docstore.OpEqual, category)
	}
	docs, err := s.store.Query(ctx, q.OrderBy("createdAt", docstore.Desc).Limit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return decodeAll(docs, decodePost)
}

func (s *PostService) authored(ctx context.Context, sess *Session, postID string) (*model.Post, error) {
	userID, err := sess.user()
	if err != nil {
		return nil, err
	}
	post, err := loadPost(ctx, s.store, postID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != userID {
		return nil, fmt.Errorf("%w: only the author may change a post", ErrForbidden)
	}
	return post, nil
}

// Update edits the author's post. Nil request fields are left unchanged.
func (s *PostService) Update(ctx context.Context, sess *Session, postID string, req *model.UpdatePostRequest) (err error) {
	ctx, span := startSpan(ctx, "PostService.Update", attribute.String("post_id", postID))
	defer endSpan(span, &err)

	if _, err := s.authored(ctx, sess, postID); err != nil {
		return err
	}

	var (
		updates  []docstore.Update
		screened []string
	)
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return invalid("title must not be empty")
		}
		updates = append(updates, docstore.Update{Path: "title", Value: title})
		screened = append(screened, title)
	}
	if req.Content != nil {
		content := strings.TrimSpace(*req.Content)
		if content == "" {
			return invalid("content must not be empty")
		}
		updates = append(updates, docstore.Update{Path: "content", Value: content})
		screened = append(screened, content)
	}
	if req.Category != nil {
		updates = append(updates, docstore.Update{Path: "category", Value: strings.TrimSpace(*req.Category)})
	}
	if req.Tags != nil {
		updates = append(updates, docstore.Update{Path: "tags", Value: cleanTags(req.Tags)})
	}
	if len(updates) == 0 {
		return nil
	}
	if len(screened) > 0 {
		if err := screen(ctx, s.moderator, s.logger, strings.Join(screened, "\n\n")); err != nil {
			return err
		}
	}
	updates = append(updates, docstore.Update{Path: "updatedAt", Value: docstore.ServerTimestamp})

	if err := s.store.Update(ctx, model.PostsCollection, postID, updates); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return notFound("post")
		}
		return fmt.Errorf("failed to update post: %w", err)
	}
	return nil
}

// Delete removes the author's post. Its comments are left in place.
func (s *PostService) Delete(ctx context.Context, sess *Session, postID string) (err error) {
	ctx, span := startSpan(ctx, "PostService.Delete", attribute.String("post_id", postID))
	defer endSpan(span, &err)

	if _, err := s.authored(ctx, sess, postID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, model.PostsCollection, postID); err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	return nil
}

// ToggleBookmark adds or removes the post from the session user's bookmarks.
func (s *PostService) ToggleBookmark(ctx context.Context, sess *Session, postID string) (res model.BookmarkResult, err error) {
	ctx, span := startSpan(ctx, "PostService.ToggleBookmark", attribute.String("post_id", postID))
	defer endSpan(span, &err)

	userID, err := sess.user()
	if err != nil {
		return res, err
	}
	post, err := loadPost(ctx, s.store, postID)
	if err != nil {
		return res, err
	}
	present := false
	for _, u := range post.BookmarkedBy {
		if u == userID {
			present = true
			break
		}
	}

	added, changed, err := membershipToggle{
		collection: model.PostsCollection,
		id:         postID,
		setPath:    "bookmarkedBy",
		member:     userID,
		present:    present,
	}.apply(ctx, s.store)
	if errors.Is(err, docstore.ErrNotFound) {
		return res, notFound("post")
	}
	if err != nil {
		return res, fmt.Errorf("failed to toggle bookmark: %w", err)
	}
	if changed {
		action := model.ReactionRemoved
		if added {
			action = model.ReactionAdded
		}
		metrics.ReactionsToggled.WithLabelValues(string(action)).Inc()
	}
	return model.BookmarkResult{Bookmarked: added, Changed: changed}, nil
}

// RecordView counts one view of a post.
func (s *PostService) RecordView(ctx context.Context, postID string) error {
	if postID == "" {
		return invalid("post id is required")
	}
	err := s.store.Update(ctx, model.PostsCollection, postID, []docstore.Update{
		{Path: "views", Value: docstore.Increment(1)},
		{Path: "score", Value: docstore.Increment(1)},
	})
	if errors.Is(err, docstore.ErrNotFound) || errors.Is(err, docstore.ErrInvalidPath) {
		return notFound("post")
	}
	if err != nil {
		return fmt.Errorf("failed to record view: %w", err)
	}
	return nil
}
