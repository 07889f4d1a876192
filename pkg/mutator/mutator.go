// Package mutator implements optimistic mutations: every user action is
// applied to the entity store before the network confirms it, with a
// snapshot-based revert that runs exactly once on failure.
package mutator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hocanet/feedcore/pkg/api"
	"github.com/hocanet/feedcore/pkg/store"
	"github.com/hocanet/feedcore/pkg/types"
)

var (
	// ErrMutationInFlight rejects a second action on the same
	// (entity, mutation-kind) pair before the first settles.
	ErrMutationInFlight = errors.New("mutation already in flight")
	// ErrEmptyComment rejects blank comment text before any network call.
	ErrEmptyComment = errors.New("comment text is empty")
	// ErrPostNotFound is returned when the target post is not in the store.
	ErrPostNotFound = errors.New("post not found")
	// ErrCommentNotFound is returned when the target comment is not in the store.
	ErrCommentNotFound = errors.New("comment not found")
)

// MutationKind distinguishes concurrent-mutation classes per entity.
type MutationKind string

const (
	MutationLike        MutationKind = "like"
	MutationCommentLike MutationKind = "comment_like"
	MutationBookmark    MutationKind = "bookmark"
)

// PendingMutation tracks one optimistic change from application to
// settlement. Settlement either discards it (success) or consumes it to
// run the revert (failure); it can never revert twice.
type PendingMutation struct {
	EntityID  string
	Kind      MutationKind
	AppliedAt time.Time

	revert func()
}

type pendingKey struct {
	entityID string
	kind     MutationKind
}

// Annotations is the hook the mutator hands successfully created
// comments to. Implemented by the annotation pipeline.
type Annotations interface {
	Triggered(text string) bool
	Start(post types.Post, trigger types.Comment) string
}

// Config configures a Mutator.
type Config struct {
	Store       *store.Store
	Client      api.Client
	Annotations Annotations // optional
	UserID      string
	UserName    string
	Logger      *zap.Logger
}

// Mutator owns all user-initiated writes to the entity store.
type Mutator struct {
	store       *store.Store
	client      api.Client
	annotations Annotations
	userID      string
	userName    string
	log         *zap.Logger

	mu      sync.Mutex
	pending map[pendingKey]*PendingMutation
}

// New creates a mutator.
func New(cfg Config) *Mutator {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Mutator{
		store:       cfg.Store,
		client:      cfg.Client,
		annotations: cfg.Annotations,
		userID:      cfg.UserID,
		userName:    cfg.UserName,
		log:         cfg.Logger,
		pending:     make(map[pendingKey]*PendingMutation),
	}
}

// settle removes the pending mutation for key and, on failure, runs its
// revert. The entry is deleted before the revert runs so a revert can
// only ever happen once per mutation.
func (m *Mutator) settle(key pendingKey, failed bool) {
	m.mu.Lock()
	pm := m.pending[key]
	delete(m.pending, key)
	m.mu.Unlock()

	if pm != nil && failed {
		pm.revert()
	}
}

// ToggleLike optimistically flips the liked flag and adjusts the like
// count by one (floored at zero), then confirms with the backend. On
// failure the exact pre-toggle snapshot is restored, so rapid toggles
// can never drift the count.
func (m *Mutator) ToggleLike(ctx context.Context, postID string) error {
	key := pendingKey{postID, MutationLike}

	m.mu.Lock()
	if _, busy := m.pending[key]; busy {
		m.mu.Unlock()
		return fmt.Errorf("toggle like on post %s: %w", postID, ErrMutationInFlight)
	}
	post, ok := m.store.GetPost(postID)
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("toggle like on post %s: %w", postID, ErrPostNotFound)
	}
	prevLiked, prevCount := post.Liked, post.LikeCount
	if post.Liked {
		post.Liked = false
		if post.LikeCount > 0 {
			post.LikeCount--
		}
	} else {
		post.Liked = true
		post.LikeCount++
	}
	m.store.UpsertPost(post)
	m.pending[key] = &PendingMutation{
		EntityID:  postID,
		Kind:      MutationLike,
		AppliedAt: time.Now(),
		revert: func() {
			cur, ok := m.store.GetPost(postID)
			if !ok {
				return
			}
			cur.Liked, cur.LikeCount = prevLiked, prevCount
			m.store.UpsertPost(cur)
		},
	}
	m.mu.Unlock()

	if err := m.client.TogglePostLike(ctx, postID); err != nil {
		m.settle(key, true)
		m.log.Debug("like toggle reverted", zap.String("post_id", postID), zap.Error(err))
		return fmt.Errorf("toggle like on post %s: %w", postID, err)
	}
	m.settle(key, false)
	return nil
}

// ToggleCommentLike flips the liked flag on a comment with the same
// snapshot/revert discipline as post likes.
func (m *Mutator) ToggleCommentLike(ctx context.Context, commentID string) error {
	key := pendingKey{commentID, MutationCommentLike}

	m.mu.Lock()
	if _, busy := m.pending[key]; busy {
		m.mu.Unlock()
		return fmt.Errorf("toggle like on comment %s: %w", commentID, ErrMutationInFlight)
	}
	comment, ok := m.store.GetComment(commentID)
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("toggle like on comment %s: %w", commentID, ErrCommentNotFound)
	}
	prevLiked := comment.Liked
	comment.Liked = !comment.Liked
	m.store.UpsertComment(comment)
	m.pending[key] = &PendingMutation{
		EntityID:  commentID,
		Kind:      MutationCommentLike,
		AppliedAt: time.Now(),
		revert: func() {
			cur, ok := m.store.GetComment(commentID)
			if !ok {
				return
			}
			cur.Liked = prevLiked
			m.store.UpsertComment(cur)
		},
	}
	m.mu.Unlock()

	if err := m.client.ToggleCommentLike(ctx, commentID); err != nil {
		m.settle(key, true)
		return fmt.Errorf("toggle like on comment %s: %w", commentID, err)
	}
	m.settle(key, false)
	return nil
}

// ToggleBookmark flips the saved flag and delegates to the save/unsave
// capability. A second toggle while one is outstanding is rejected, so
// the external call is never re-entered for the same post.
func (m *Mutator) ToggleBookmark(ctx context.Context, postID string) error {
	key := pendingKey{postID, MutationBookmark}

	m.mu.Lock()
	if _, busy := m.pending[key]; busy {
		m.mu.Unlock()
		return fmt.Errorf("toggle bookmark on post %s: %w", postID, ErrMutationInFlight)
	}
	post, ok := m.store.GetPost(postID)
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("toggle bookmark on post %s: %w", postID, ErrPostNotFound)
	}
	prevSaved := post.Saved
	post.Saved = !post.Saved
	saving := post.Saved
	m.store.UpsertPost(post)
	m.pending[key] = &PendingMutation{
		EntityID:  postID,
		Kind:      MutationBookmark,
		AppliedAt: time.Now(),
		revert: func() {
			cur, ok := m.store.GetPost(postID)
			if !ok {
				return
			}
			cur.Saved = prevSaved
			m.store.UpsertPost(cur)
		},
	}
	m.mu.Unlock()

	var err error
	if saving {
		err = m.client.SavePost(ctx, postID)
	} else {
		err = m.client.UnsavePost(ctx, postID)
	}
	if err != nil {
		m.settle(key, true)
		return fmt.Errorf("toggle bookmark on post %s: %w", postID, err)
	}
	m.settle(key, false)
	return nil
}

// CreateComment inserts the comment locally under a generated ID, then
// reconciles the server-issued identifier into the store on success. On
// failure the local comment is removed and the error surfaced. A
// successfully created comment that carries a mention token is handed
// to the annotation pipeline.
func (m *Mutator) CreateComment(ctx context.Context, postID, parentID, text string) (types.Comment, error) {
	if strings.TrimSpace(text) == "" {
		return types.Comment{}, ErrEmptyComment
	}
	post, ok := m.store.GetPost(postID)
	if !ok {
		return types.Comment{}, fmt.Errorf("create comment on post %s: %w", postID, ErrPostNotFound)
	}

	local := types.Comment{
		ID:         uuid.NewString(),
		PostID:     postID,
		ParentID:   parentID,
		AuthorID:   m.userID,
		AuthorName: m.userName,
		Text:       text,
		Kind:       types.KindNormal,
		IsOwn:      true,
		IsNew:      true,
		CreatedAt:  time.Now(),
	}
	m.store.UpsertComment(local)
	post.CommentCount++
	m.store.UpsertPost(post)

	created, err := m.client.CreateComment(ctx, postID, types.CreateCommentRequest{
		Text:            text,
		ParentCommentID: parentID,
	})
	if err != nil {
		m.store.RemoveComment(local.ID)
		if cur, ok := m.store.GetPost(postID); ok && cur.CommentCount > 0 {
			cur.CommentCount--
			m.store.UpsertPost(cur)
		}
		return types.Comment{}, fmt.Errorf("create comment on post %s: %w", postID, err)
	}

	// Canonical merge: the server ID replaces the local one and the
	// server-confirmed fields win, without disturbing local state.
	m.store.RekeyComment(local.ID, created.ID)
	final, ok := m.store.GetComment(created.ID)
	if !ok {
		// The thread was torn down while the call was in flight.
		return types.Comment{}, nil
	}
	if created.UserID != "" {
		final.AuthorID = created.UserID
	}
	if !created.CreatedAt.IsZero() {
		final.CreatedAt = created.CreatedAt
	}
	m.store.UpsertComment(final)

	if m.annotations != nil && m.annotations.Triggered(final.Text) {
		corrID := m.annotations.Start(post, final)
		m.log.Debug("annotation triggered",
			zap.String("comment_id", final.ID),
			zap.String("correlation_id", corrID))
	}
	return final, nil
}

// DeleteComment removes the comment immediately. A failed network
// delete is surfaced as an error but the comment is not restored:
// re-inserting it at a guessed position would fabricate ordering.
// Deleting an unknown comment is a no-op.
func (m *Mutator) DeleteComment(ctx context.Context, commentID string) error {
	c, ok := m.store.GetComment(commentID)
	if !ok {
		return nil
	}
	m.store.RemoveComment(commentID)
	if post, ok := m.store.GetPost(c.PostID); ok && post.CommentCount > 0 {
		post.CommentCount--
		m.store.UpsertPost(post)
	}

	if err := m.client.DeleteComment(ctx, commentID); err != nil {
		m.log.Warn("comment delete failed on server, local removal kept",
			zap.String("comment_id", commentID), zap.Error(err))
		return fmt.Errorf("delete comment %s: %w", commentID, err)
	}
	return nil
}

// PendingCount reports outstanding optimistic mutations, mainly for
// tests and diagnostics.
func (m *Mutator) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
