// Package api defines the backend transport capability consumed by the
// reconciliation engine, plus an HTTP implementation and an in-memory
// fake for tests and demos.
package api

import (
	"context"

	"github.com/hocanet/feedcore/pkg/types"
)

// Client is the opaque transport capability. The engine never builds
// requests itself; it calls these operations and reacts to the result.
type Client interface {
	ListComments(ctx context.Context, postID string) ([]types.Comment, error)
	CreateComment(ctx context.Context, postID string, req types.CreateCommentRequest) (types.CreatedComment, error)
	DeleteComment(ctx context.Context, commentID string) error
	ToggleCommentLike(ctx context.Context, commentID string) error
	TogglePostLike(ctx context.Context, postID string) error
	SavePost(ctx context.Context, postID string) error
	UnsavePost(ctx context.Context, postID string) error
}

// TokenProvider supplies the bearer token attached to outgoing requests.
// Credential storage lives outside the engine.
type TokenProvider func() (string, error)
