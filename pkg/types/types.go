// Package types defines core types for the feedcore reconciliation engine.
package types

import "time"

// CommentKind classifies a comment entity in the store.
type CommentKind string

const (
	// KindNormal is a regular user-authored comment.
	KindNormal CommentKind = "normal"
	// KindLoadingPlaceholder marks a transient "annotation in progress" entity.
	KindLoadingPlaceholder CommentKind = "loading_placeholder"
	// KindAnnotationResult carries the final text of a settled annotation.
	KindAnnotationResult CommentKind = "annotation_result"
	// KindAnnotationError is the terminal entity for an annotation that
	// exhausted its retries or returned no usable payload.
	KindAnnotationError CommentKind = "annotation_error"
)

// Terminal reports whether the kind is a settled annotation outcome.
func (k CommentKind) Terminal() bool {
	return k == KindAnnotationResult || k == KindAnnotationError
}

// Post is a feed entry. Like count and liked flag are updated together,
// only through the mutator or a canonical server merge.
type Post struct {
	ID           string    `json:"id"`
	AuthorID     string    `json:"author_id"`
	IsOwn        bool      `json:"is_own"`
	LikeCount    int       `json:"like_count"`
	Liked        bool      `json:"liked"`
	Saved        bool      `json:"saved"`
	CommentCount int       `json:"comment_count"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	PostType     string    `json:"post_type"`
	CreatedAt    time.Time `json:"created_at"`
}

// Comment is a threaded comment under a post. The ID may be a locally
// generated identifier until the server confirms creation.
type Comment struct {
	ID            string      `json:"id"`
	PostID        string      `json:"post_id"`
	ParentID      string      `json:"parent_id,omitempty"`
	AuthorID      string      `json:"author_id"`
	AuthorName    string      `json:"author_name"`
	Text          string      `json:"text"`
	Kind          CommentKind `json:"kind"`
	CorrelationID string      `json:"correlation_id,omitempty"`
	Liked         bool        `json:"liked"`
	IsOwn         bool        `json:"is_own"`
	IsNew         bool        `json:"is_new"`
	CreatedAt     time.Time   `json:"created_at"`
}

// EventKind identifies a notification channel event.
type EventKind string

const (
	EventAnnotationLoading  EventKind = "annotation_loading"
	EventAnnotationResolved EventKind = "annotation_resolved"
)

// AnnotationEvent is the payload delivered on the notification channel
// when an annotation starts loading or settles on a result.
type AnnotationEvent struct {
	Kind      EventKind `json:"kind"`
	PostID    string    `json:"post_id"`
	CommentID string    `json:"comment_id"`
	Result    string    `json:"result,omitempty"`
}
