package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/capitalize-ai/community-platform/internal/docstore"
	"github.com/capitalize-ai/community-platform/internal/model"
	"github.com/capitalize-ai/community-platform/pkg/logger"
	"github.com/capitalize-ai/community-platform/pkg/metrics"
)

var mentionPattern = regexp.MustCompile(`(?:^|[^\w@])@([\w-]{1,64})`)

// mentions returns the distinct user ids @-mentioned in content, in order.
func mentions(content string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range mentionPattern.FindAllStringSubmatch(content, -1) {
		if id := m[1]; !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// CommentService manages threaded comments on posts.
type CommentService struct {
	store         docstore.Store
	notifications *NotificationService
	events        EventPublisher
	moderator     Moderator
	logger        *logger.Logger
}

// NewCommentService creates a comment service. moderator may be nil.
func NewCommentService(store docstore.Store, notifications *NotificationService, events EventPublisher, moderator Moderator, log *logger.Logger) *CommentService {
	return &CommentService{
		store:         store,
		notifications: notifications,
		events:        events,
		moderator:     moderator,
		logger:        log,
	}
}

func (s *CommentService) load(ctx context.Context, commentID string) (*model.Comment, error) {
	if commentID == "" {
		return nil, invalid("comment id is required")
	}
	doc, err := s.store.Get(ctx, model.CommentsCollection, commentID)
	if errors.Is(err, docstore.ErrNotFound) || errors.Is(err, docstore.ErrInvalidPath) {
		return nil, notFound("comment")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load comment: %w", err)
	}
	c, err := decodeComment(*doc)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Add writes a comment, or a reply when parentID is set, and bumps the
// post's comment count. The post author is notified, the parent author is
// notified of a reply, and every existing user @-mentioned in content gets
// a mention notification. The actor is never notified.
//
// The comment and the count bump are separate writes; if the count bump or
// a notification fails the comment id is returned together with the error.
func (s *CommentService) Add(ctx context.Context, sess *Session, postID, content string, parentID *string) (id string, err error) {
	ctx, span := startSpan(ctx, "CommentService.Add", attribute.String("post_id", postID))
	defer endSpan(span, &err)

	userID, err := sess.user()
	if err != nil {
		return "", err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return "", invalid("comment content is empty")
	}

	post, err := loadPost(ctx, s.store, postID)
	if err != nil {
		return "", err
	}

	var parent *model.Comment
	if parentID != nil && *parentID != "" {
		parent, err = s.load(ctx, *parentID)
		if errors.Is(err, ErrNotFound) {
			return "", notFound("parent comment")
		}
		if err != nil {
			return "", err
		}
		if parent.PostID != postID {
			return "", invalid("parent comment belongs to another post")
		}
	}
	if err := screen(ctx, s.moderator, s.logger, content); err != nil {
		return "", err
	}

	data := map[string]any{
		"postId":    postID,
		"authorId":  userID,
		"content":   content,
		"parentId":  nil,
		"likes":     0,
		"likedBy":   []any{},
		"edited":    false,
		"createdAt": docstore.ServerTimestamp,
	}
	if parent != nil {
		data["parentId"] = parent.ID
	}

	log := s.logger.WithContext(ctx).With(zap.String("post_id", postID))
	id, err = s.store.Add(ctx, model.CommentsCollection, data)
	if err != nil {
		log.Error("failed to add comment", zap.Error(err))
		return "", fmt.Errorf("failed to add comment: %w", err)
	}

	err = s.store.Update(ctx, model.PostsCollection, postID, []docstore.Update{
		{Path: "commentCount", Value: docstore.Increment(1)},
	})
	if err != nil {
		log.Error("comment stored but count update failed", zap.String("comment_id", id), zap.Error(err))
		return id, fmt.Errorf("failed to update comment count: %w", err)
	}

	publish(ctx, s.events, s.logger, &model.Event{
		Type:      model.EventCommentCreated,
		SubjectID: id,
		ActorID:   userID,
		Data:      map[string]any{"postId": postID, "reply": parent != nil},
	})

	if err := s.notify(ctx, userID, post, parent, id, content); err != nil {
		return id, fmt.Errorf("comment saved but notification failed: %w", err)
	}
	return id, nil
}

func (s *CommentService) notify(ctx context.Context, actor string, post *model.Post, parent *model.Comment, commentID, content string) error {
	notified := map[string]bool{actor: true}
	base := model.Notification{
		Type:       model.NotificationComment,
		FromUserID: actor,
		PostID:     post.ID,
		CommentID:  commentID,
	}

	if !notified[post.AuthorID] {
		n := base
		n.UserID = post.AuthorID
		n.Data = map[string]any{"postTitle": post.Title}
		if err := s.notifications.notifyOther(ctx, n); err != nil {
			return err
		}
		notified[post.AuthorID] = true
	}
	if parent != nil && !notified[parent.AuthorID] {
		n := base
		n.UserID = parent.AuthorID
		n.Data = map[string]any{"postTitle": post.Title, "reply": true}
		if err := s.notifications.notifyOther(ctx, n); err != nil {
			return err
		}
		notified[parent.AuthorID] = true
	}

	for _, mentioned := range mentions(content) {
		if notified[mentioned] || validateKey("user id", mentioned) != nil {
			continue
		}
		_, err := s.store.Get(ctx, model.UsersCollection, mentioned)
		if errors.Is(err, docstore.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to look up mentioned user: %w", err)
		}
		n := base
		n.UserID = mentioned
		n.Type = model.NotificationMention
		n.Data = map[string]any{"postTitle": post.Title}
		if err := s.notifications.notifyOther(ctx, n); err != nil {
			return err
		}
		notified[mentioned] = true
	}
	return nil
}

func (s *CommentService) authored(ctx context.Context, sess *Session, commentID string) (*model.Comment, error) {
	userID, err := sess.user()
	if err != nil {
		return nil, err
	}
	c, err := s.load(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if c.AuthorID != userID {
		return nil, fmt.Errorf("%w: only the author may change a comment", ErrForbidden)
	}
	return c, nil
}

// Edit replaces the content of the author's comment.
func (s *CommentService) Edit(ctx context.Context, sess *Session, commentID, content string) (err error) {
	ctx, span := startSpan(ctx, "CommentService.Edit", attribute.String("comment_id", commentID))
	defer endSpan(span, &err)

	content = strings.TrimSpace(content)
	if content == "" {
		return invalid("comment content is empty")
	}
	if _, err := s.authored(ctx, sess, commentID); err != nil {
		return err
	}
	if err := screen(ctx, s.moderator, s.logger, content); err != nil {
		return err
	}
	err = s.store.Update(ctx, model.CommentsCollection, commentID, []docstore.Update{
		{Path: "content", Value: content},
		{Path: "edited", Value: true},
		{Path: "updatedAt", Value: docstore.ServerTimestamp},
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return notFound("comment")
	}
	if err != nil {
		return fmt.Errorf("failed to edit comment: %w", err)
	}
	return nil
}

// Delete removes the author's comment. The post's comment count is not
// decremented, and replies stay in place.
func (s *CommentService) Delete(ctx context.Context, sess *Session, commentID string) (err error) {
	ctx, span := startSpan(ctx, "CommentService.Delete", attribute.String("comment_id", commentID))
	defer endSpan(span, &err)

	if _, err := s.authored(ctx, sess, commentID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, model.CommentsCollection, commentID); err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	return nil
}

// ToggleLike likes the comment for the session user, or unlikes it.
func (s *CommentService) ToggleLike(ctx context.Context, sess *Session, commentID string) (res model.ReactionResult, err error) {
	ctx, span := startSpan(ctx, "CommentService.ToggleLike", attribute.String("comment_id", commentID))
	defer endSpan(span, &err)

	userID, err := sess.user()
	if err != nil {
		return res, err
	}
	c, err := s.load(ctx, commentID)
	if err != nil {
		return res, err
	}
	present := false
	for _, u := range c.LikedBy {
		if u == userID {
			present = true
			break
		}
	}

	added, changed, err := membershipToggle{
		collection: model.CommentsCollection,
		id:         commentID,
		setPath:    "likedBy",
		countPath:  "likes",
		member:     userID,
		present:    present,
	}.apply(ctx, s.store)
	if errors.Is(err, docstore.ErrNotFound) {
		return res, notFound("comment")
	}
	if err != nil {
		s.logger.WithContext(ctx).Error("failed to toggle like", zap.String("comment_id", commentID), zap.Error(err))
		return res, fmt.Errorf("failed to toggle like: %w", err)
	}

	res.Action = model.ReactionRemoved
	if added {
		res.Action = model.ReactionAdded
	}
	res.Changed = changed
	if changed {
		metrics.ReactionsToggled.WithLabelValues(string(res.Action)).Inc()
	}

	current, err := s.load(ctx, commentID)
	if err != nil {
		return res, err
	}
	users := current.LikedBy
	if users == nil {
		users = []string{}
	}
	res.Reaction = model.Reaction{Count: current.Likes, Users: users}
	return res, nil
}

// ListThreaded returns the top-level comments of a post, oldest first, each
// with its direct replies. Replies to replies are not part of the view.
func (s *CommentService) ListThreaded(ctx context.Context, postID string) (_ []model.ThreadedComment, err error) {
	ctx, span := startSpan(ctx, "CommentService.ListThreaded", attribute.String("post_id", postID))
	defer endSpan(span, &err)

	if _, err := loadPost(ctx, s.store, postID); err != nil {
		return nil, err
	}
	docs, err := s.store.Query(ctx, docstore.NewQuery(model.CommentsCollection).
		Where("postId", docstore.OpEqual, postID).
		OrderBy("createdAt", docstore.Asc))
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	comments, err := decodeAll(docs, decodeComment)
	if err != nil {
		return nil, err
	}
	return thread(comments), nil
}

// thread groups replies one level under their top-level parent, keeping
// the incoming order at both levels.
func thread(comments []model.Comment) []model.ThreadedComment {
	out := []model.ThreadedComment{}
	index := map[string]int{}
	for _, c := range comments {
		if c.ParentID == nil {
			index[c.ID] = len(out)
			out = append(out, model.ThreadedComment{Comment: c, Replies: []model.Comment{}})
		}
	}
	for _, c := range comments {
		if c.ParentID == nil {
			continue
		}
		if i, ok := index[*c.ParentID]; ok {
			out[i].Replies = append(out[i].Replies, c)
		}
	}
	return out
}
