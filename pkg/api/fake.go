package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hocanet/feedcore/pkg/types"
)

// Fake is an in-memory Client for tests and the demo binary. Failures
// are scripted per operation by setting the matching error field.
type Fake struct {
	mu sync.Mutex

	CreateErr      error
	DeleteErr      error
	PostLikeErr    error
	CommentLikeErr error
	SaveErr        error
	ListErr        error

	comments map[string][]types.Comment // post ID -> server-side comments
	seq      int

	CreateCalls   int
	DeleteCalls   int
	PostLikeCalls int
	SaveCalls     int
	UnsaveCalls   int
	ListCalls     int
}

// NewFake creates an empty fake backend.
func NewFake() *Fake {
	return &Fake{comments: make(map[string][]types.Comment)}
}

// SeedComment adds a server-side comment visible to ListComments.
func (f *Fake) SeedComment(c types.Comment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comments[c.PostID] = append(f.comments[c.PostID], c)
}

// ListComments returns the server's view of a post's comments.
func (f *Fake) ListComments(ctx context.Context, postID string) ([]types.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ListCalls++
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	out := make([]types.Comment, len(f.comments[postID]))
	copy(out, f.comments[postID])
	return out, nil
}

// CreateComment stores the comment under a server-issued ID.
func (f *Fake) CreateComment(ctx context.Context, postID string, req types.CreateCommentRequest) (types.CreatedComment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CreateCalls++
	if f.CreateErr != nil {
		return types.CreatedComment{}, f.CreateErr
	}
	f.seq++
	created := types.CreatedComment{
		ID:        fmt.Sprintf("srv-%d", f.seq),
		UserID:    "user-local",
		Text:      req.Text,
		CreatedAt: time.Now(),
	}
	f.comments[postID] = append(f.comments[postID], types.Comment{
		ID:        created.ID,
		PostID:    postID,
		ParentID:  req.ParentCommentID,
		AuthorID:  created.UserID,
		Text:      req.Text,
		Kind:      types.KindNormal,
		CreatedAt: created.CreatedAt,
	})
	return created, nil
}

// DeleteComment drops the comment from the server's view.
func (f *Fake) DeleteComment(ctx context.Context, commentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DeleteCalls++
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	for postID, list := range f.comments {
		for i, c := range list {
			if c.ID == commentID {
				f.comments[postID] = append(list[:i], list[i+1:]...)
				return nil
			}
		}
	}
	return nil
}

// ToggleCommentLike succeeds unless scripted otherwise.
func (f *Fake) ToggleCommentLike(ctx context.Context, commentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.CommentLikeErr
}

// TogglePostLike succeeds unless scripted otherwise.
func (f *Fake) TogglePostLike(ctx context.Context, postID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PostLikeCalls++
	return f.PostLikeErr
}

// SavePost succeeds unless scripted otherwise.
func (f *Fake) SavePost(ctx context.Context, postID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SaveCalls++
	return f.SaveErr
}

// UnsavePost succeeds unless scripted otherwise.
func (f *Fake) UnsavePost(ctx context.Context, postID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.UnsaveCalls++
	return f.SaveErr
}
