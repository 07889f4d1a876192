// Package refresh implements the polling refresh loop that keeps an
// active comment view in sync with the backend without clobbering
// in-flight optimistic state.
package refresh

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hocanet/feedcore/pkg/api"
	"github.com/hocanet/feedcore/pkg/store"
	"github.com/hocanet/feedcore/pkg/types"
)

// DefaultInterval is the production polling cadence.
const DefaultInterval = 10 * time.Second

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	Store    *store.Store
	Client   api.Client
	Interval time.Duration
	Logger   *zap.Logger
}

// Scheduler re-fetches a post's comments at a fixed interval while its
// view is active.
type Scheduler struct {
	store    *store.Store
	client   api.Client
	interval time.Duration
	log      *zap.Logger
}

// NewScheduler creates a scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Scheduler{store: cfg.Store, client: cfg.Client, interval: cfg.Interval, log: cfg.Logger}
}

// Task is the cancellable handle for one polling loop.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Stop cancels the loop and blocks until its goroutine has exited, so a
// torn-down view leaves no orphaned timers behind. Stop is idempotent.
func (t *Task) Stop() {
	t.cancel()
	<-t.done
}

// Start launches the polling loop for one post and returns its handle.
// Switching posts is stopping one task and starting another.
func (s *Scheduler) Start(postID string) *Task {
	ctx, cancel := context.WithCancel(context.Background())
	t := &Task{cancel: cancel, done: make(chan struct{})}
	go s.loop(ctx, postID, t.done)
	return t
}

func (s *Scheduler) loop(ctx context.Context, postID string, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.RefreshOnce(ctx, postID); err != nil && ctx.Err() == nil {
				s.log.Warn("comment refresh failed",
					zap.String("post_id", postID), zap.Error(err))
			}
		}
	}
}

// RefreshOnce fetches the post's comments and merges them one by one
// through the store's upsert. Merging per comment, never replacing the
// list, keeps loading placeholders and unreconciled optimistic comments
// the server does not know about yet.
func (s *Scheduler) RefreshOnce(ctx context.Context, postID string) error {
	comments, err := s.client.ListComments(ctx, postID)
	if err != nil {
		return fmt.Errorf("refresh comments for post %s: %w", postID, err)
	}
	for _, c := range comments {
		if c.Kind == "" {
			c.Kind = types.KindNormal
		}
		s.store.UpsertComment(c)
	}
	return nil
}
