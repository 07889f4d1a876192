// Package store implements the in-memory entity store. It is the sole
// owner of canonical Post/Comment state: every component reads and
// writes through its methods, and entities cross the boundary by value
// so callers cannot mutate stored state directly.
package store

import (
	"sync"

	"github.com/hocanet/feedcore/pkg/types"
)

// Store holds posts and comments keyed by identifier, comment ordering
// per post, and a correlation index for annotation placeholders.
type Store struct {
	mu sync.RWMutex

	posts    map[string]*types.Post
	comments map[string]*types.Comment
	order    map[string][]string // post ID -> comment IDs in insertion order
	byCorr   map[string]string   // correlation ID -> comment ID
}

// New creates an empty store.
func New() *Store {
	return &Store{
		posts:    make(map[string]*types.Post),
		comments: make(map[string]*types.Comment),
		order:    make(map[string][]string),
		byCorr:   make(map[string]string),
	}
}

// UpsertPost inserts or fully replaces a post.
func (s *Store) UpsertPost(p types.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := p
	s.posts[p.ID] = &cp
}

// GetPost returns a copy of the post, if present.
func (s *Store) GetPost(id string) (types.Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[id]
	if !ok {
		return types.Post{}, false
	}
	return *p, true
}

// UpsertComment inserts or fully replaces a comment keyed by its ID. A
// new comment is appended at the end of its post's ordering; an existing
// one keeps its position.
func (s *Store) UpsertComment(c types.Comment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertCommentLocked(c)
}

func (s *Store) upsertCommentLocked(c types.Comment) {
	cp := c
	if prev, ok := s.comments[c.ID]; ok {
		if prev.CorrelationID != "" && prev.CorrelationID != cp.CorrelationID {
			delete(s.byCorr, prev.CorrelationID)
		}
	} else {
		s.order[c.PostID] = append(s.order[c.PostID], c.ID)
	}
	s.comments[c.ID] = &cp
	if cp.CorrelationID != "" {
		s.byCorr[cp.CorrelationID] = cp.ID
	}
}

// GetComment returns a copy of the comment, if present.
func (s *Store) GetComment(id string) (types.Comment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.comments[id]
	if !ok {
		return types.Comment{}, false
	}
	return *c, true
}

// RemoveComment deletes a comment. Removing an unknown ID is a no-op:
// placeholder cleanup may race with a view being torn down.
func (s *Store) RemoveComment(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeCommentLocked(id)
}

func (s *Store) removeCommentLocked(id string) {
	c, ok := s.comments[id]
	if !ok {
		return
	}
	delete(s.comments, id)
	if c.CorrelationID != "" && s.byCorr[c.CorrelationID] == id {
		delete(s.byCorr, c.CorrelationID)
	}
	ids := s.order[c.PostID]
	for i, cid := range ids {
		if cid == id {
			s.order[c.PostID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
}

// ListComments returns copies of a post's comments in insertion order.
func (s *Store) ListComments(postID string) []types.Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.order[postID]
	result := make([]types.Comment, 0, len(ids))
	for _, id := range ids {
		if c, ok := s.comments[id]; ok {
			result = append(result, *c)
		}
	}
	return result
}

// RekeyComment merges a server-issued identifier over a local one:
// the comment moves to the new key, keeps its ordering position, and
// all threading references to the old ID are rewritten. If the new ID
// already exists (a refresh fetched the server copy first), the local
// comment is dropped in its favor. Returns false when oldID is unknown.
func (s *Store) RekeyComment(oldID, newID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[oldID]
	if !ok || oldID == newID {
		return ok
	}

	if _, exists := s.comments[newID]; exists {
		s.removeCommentLocked(oldID)
	} else {
		delete(s.comments, oldID)
		c.ID = newID
		s.comments[newID] = c
		ids := s.order[c.PostID]
		for i, cid := range ids {
			if cid == oldID {
				ids[i] = newID
				break
			}
		}
		if c.CorrelationID != "" && s.byCorr[c.CorrelationID] == oldID {
			s.byCorr[c.CorrelationID] = newID
		}
	}

	for _, other := range s.comments {
		if other.ParentID == oldID {
			other.ParentID = newID
		}
	}
	return true
}

// FindByCorrelation returns the comment currently carrying the given
// correlation identifier.
func (s *Store) FindByCorrelation(corrID string) (types.Comment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byCorr[corrID]
	if !ok {
		return types.Comment{}, false
	}
	c, ok := s.comments[id]
	if !ok {
		return types.Comment{}, false
	}
	return *c, true
}

// ReplaceByCorrelation atomically swaps the placeholder carrying corrID
// for its terminal comment: no reader ever observes both, or neither.
// The terminal comment takes over the placeholder's ordering position.
// Returns false (and inserts nothing) when no placeholder is present,
// which makes settlement after view teardown a safe no-op.
func (s *Store) ReplaceByCorrelation(corrID string, terminal types.Comment) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldID, ok := s.byCorr[corrID]
	if !ok {
		return false
	}
	old, ok := s.comments[oldID]
	if !ok {
		delete(s.byCorr, corrID)
		return false
	}

	delete(s.comments, oldID)
	cp := terminal
	cp.CorrelationID = corrID
	s.comments[cp.ID] = &cp
	s.byCorr[corrID] = cp.ID

	ids := s.order[old.PostID]
	for i, cid := range ids {
		if cid == oldID {
			ids[i] = cp.ID
			return true
		}
	}
	// Placeholder had no ordering slot (should not happen); append.
	s.order[cp.PostID] = append(s.order[cp.PostID], cp.ID)
	return true
}

// CommentCount returns the number of stored comments for a post.
func (s *Store) CommentCount(postID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order[postID])
}
