package mutator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hocanet/feedcore/pkg/api"
	"github.com/hocanet/feedcore/pkg/store"
	"github.com/hocanet/feedcore/pkg/types"
)

func newTestMutator(t *testing.T) (*Mutator, *store.Store, *api.Fake) {
	t.Helper()
	s := store.New()
	f := api.NewFake()
	m := New(Config{Store: s, Client: f, UserID: "user-local", UserName: "Local User"})
	return m, s, f
}

func seedPost(s *store.Store) types.Post {
	post := types.Post{ID: "p1", LikeCount: 5, Liked: false, Body: "a photo", PostType: "photo"}
	s.UpsertPost(post)
	return post
}

func TestToggleLike_OptimisticAndRoundTrip(t *testing.T) {
	m, s, _ := newTestMutator(t)
	seedPost(s)
	ctx := context.Background()

	if err := m.ToggleLike(ctx, "p1"); err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	p, _ := s.GetPost("p1")
	if !p.Liked || p.LikeCount != 6 {
		t.Fatalf("after like: liked=%v count=%d, want true/6", p.Liked, p.LikeCount)
	}

	if err := m.ToggleLike(ctx, "p1"); err != nil {
		t.Fatalf("second toggle: %v", err)
	}
	p, _ = s.GetPost("p1")
	if p.Liked || p.LikeCount != 5 {
		t.Fatalf("double toggle must restore original: liked=%v count=%d", p.Liked, p.LikeCount)
	}
	if m.PendingCount() != 0 {
		t.Fatalf("pending mutations leaked: %d", m.PendingCount())
	}
}

func TestToggleLike_FailureRestoresExactSnapshot(t *testing.T) {
	m, s, f := newTestMutator(t)
	seedPost(s)
	f.PostLikeErr = errors.New("503")

	err := m.ToggleLike(context.Background(), "p1")
	if err == nil {
		t.Fatal("expected error from failing backend")
	}
	p, _ := s.GetPost("p1")
	if p.Liked || p.LikeCount != 5 {
		t.Fatalf("revert must restore snapshot exactly: liked=%v count=%d", p.Liked, p.LikeCount)
	}
	if m.PendingCount() != 0 {
		t.Fatalf("pending mutation survived settlement: %d", m.PendingCount())
	}
}

func TestToggleLike_CountFlooredAtZero(t *testing.T) {
	m, s, _ := newTestMutator(t)
	s.UpsertPost(types.Post{ID: "p1", LikeCount: 0, Liked: true})

	if err := m.ToggleLike(context.Background(), "p1"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	p, _ := s.GetPost("p1")
	if p.LikeCount != 0 {
		t.Fatalf("count must not go negative, got %d", p.LikeCount)
	}
}

// gatedClient blocks TogglePostLike until released, keeping the
// mutation in flight for concurrency tests.
type gatedClient struct {
	*api.Fake
	gate chan struct{}
}

func (g *gatedClient) TogglePostLike(ctx context.Context, postID string) error {
	<-g.gate
	return g.Fake.TogglePostLike(ctx, postID)
}

func TestToggleLike_RejectsSecondWhileInFlight(t *testing.T) {
	s := store.New()
	seedPost(s)
	g := &gatedClient{Fake: api.NewFake(), gate: make(chan struct{})}
	m := New(Config{Store: s, Client: g})
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := m.ToggleLike(ctx, "p1"); err != nil {
			t.Errorf("in-flight toggle failed: %v", err)
		}
	}()

	// Wait for the optimistic write to land.
	deadline := time.Now().Add(time.Second)
	for {
		if p, _ := s.GetPost("p1"); p.Liked {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("optimistic write never became visible")
		}
		time.Sleep(time.Millisecond)
	}

	if err := m.ToggleLike(ctx, "p1"); !errors.Is(err, ErrMutationInFlight) {
		t.Fatalf("expected ErrMutationInFlight, got %v", err)
	}

	close(g.gate)
	wg.Wait()

	// Settled: a new toggle is accepted again.
	if err := m.ToggleLike(ctx, "p1"); err != nil {
		t.Fatalf("toggle after settlement: %v", err)
	}
}

func TestToggleBookmark_DelegatesAndGuards(t *testing.T) {
	m, s, f := newTestMutator(t)
	seedPost(s)
	ctx := context.Background()

	if err := m.ToggleBookmark(ctx, "p1"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if f.SaveCalls != 1 || f.UnsaveCalls != 0 {
		t.Fatalf("expected one save call, got save=%d unsave=%d", f.SaveCalls, f.UnsaveCalls)
	}
	p, _ := s.GetPost("p1")
	if !p.Saved {
		t.Fatal("saved flag not set")
	}

	if err := m.ToggleBookmark(ctx, "p1"); err != nil {
		t.Fatalf("unsave: %v", err)
	}
	if f.UnsaveCalls != 1 {
		t.Fatalf("expected one unsave call, got %d", f.UnsaveCalls)
	}

	f.SaveErr = errors.New("backend down")
	if err := m.ToggleBookmark(ctx, "p1"); err == nil {
		t.Fatal("expected bookmark failure")
	}
	p, _ = s.GetPost("p1")
	if p.Saved {
		t.Fatal("failed bookmark toggle must revert the saved flag")
	}
}

// gatedSaveClient blocks SavePost until released, keeping the bookmark
// mutation in flight for concurrency tests.
type gatedSaveClient struct {
	*api.Fake
	gate chan struct{}
}

func (g *gatedSaveClient) SavePost(ctx context.Context, postID string) error {
	<-g.gate
	return g.Fake.SavePost(ctx, postID)
}

func TestToggleBookmark_RejectsSecondWhileInFlight(t *testing.T) {
	s := store.New()
	seedPost(s)
	g := &gatedSaveClient{Fake: api.NewFake(), gate: make(chan struct{})}
	m := New(Config{Store: s, Client: g})
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := m.ToggleBookmark(ctx, "p1"); err != nil {
			t.Errorf("in-flight bookmark failed: %v", err)
		}
	}()

	// Wait for the optimistic write to land.
	deadline := time.Now().Add(time.Second)
	for {
		if p, _ := s.GetPost("p1"); p.Saved {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("optimistic write never became visible")
		}
		time.Sleep(time.Millisecond)
	}

	if err := m.ToggleBookmark(ctx, "p1"); !errors.Is(err, ErrMutationInFlight) {
		t.Fatalf("expected ErrMutationInFlight, got %v", err)
	}

	close(g.gate)
	wg.Wait()

	// The rejected toggle must not have reached the network with the
	// opposite intent.
	if g.SaveCalls != 1 || g.UnsaveCalls != 0 {
		t.Fatalf("expected one save call, got save=%d unsave=%d", g.SaveCalls, g.UnsaveCalls)
	}

	// Settled: a new toggle is accepted again.
	if err := m.ToggleBookmark(ctx, "p1"); err != nil {
		t.Fatalf("bookmark after settlement: %v", err)
	}
	if g.UnsaveCalls != 1 {
		t.Fatalf("expected one unsave call after settlement, got %d", g.UnsaveCalls)
	}
}

func TestToggleCommentLike_FailureReverts(t *testing.T) {
	m, s, f := newTestMutator(t)
	seedPost(s)
	s.UpsertComment(types.Comment{ID: "c1", PostID: "p1", Kind: types.KindNormal})
	f.CommentLikeErr = errors.New("503")

	if err := m.ToggleCommentLike(context.Background(), "c1"); err == nil {
		t.Fatal("expected error")
	}
	c, _ := s.GetComment("c1")
	if c.Liked {
		t.Fatal("liked flag not reverted")
	}
}

type stubAnnotations struct {
	started []types.Comment
}

func (a *stubAnnotations) Triggered(text string) bool {
	return strings.Contains(text, "@GeminiHoca")
}

func (a *stubAnnotations) Start(post types.Post, trigger types.Comment) string {
	a.started = append(a.started, trigger)
	return "corr-test"
}

func TestCreateComment_ReconcilesServerID(t *testing.T) {
	s := store.New()
	seedPost(s)
	f := api.NewFake()
	ann := &stubAnnotations{}
	m := New(Config{Store: s, Client: f, Annotations: ann, UserID: "u1", UserName: "Me"})

	c, err := m.CreateComment(context.Background(), "p1", "", "hello there")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasPrefix(c.ID, "srv-") {
		t.Fatalf("expected server-issued ID, got %q", c.ID)
	}
	stored, ok := s.GetComment(c.ID)
	if !ok || stored.Text != "hello there" || !stored.IsOwn {
		t.Fatalf("stored comment wrong: %+v", stored)
	}
	p, _ := s.GetPost("p1")
	if p.CommentCount != 1 {
		t.Fatalf("comment count = %d, want 1", p.CommentCount)
	}
	if len(ann.started) != 0 {
		t.Fatal("plain comment must not trigger annotation")
	}
}

func TestCreateComment_RewritesReplyThreading(t *testing.T) {
	s := store.New()
	seedPost(s)
	f := api.NewFake()
	m := New(Config{Store: s, Client: f})
	ctx := context.Background()

	root, err := m.CreateComment(ctx, "p1", "", "root")
	if err != nil {
		t.Fatalf("create root: %v", err)
	}
	reply, err := m.CreateComment(ctx, "p1", root.ID, "reply")
	if err != nil {
		t.Fatalf("create reply: %v", err)
	}
	stored, _ := s.GetComment(reply.ID)
	if stored.ParentID != root.ID {
		t.Fatalf("reply parent = %q, want %q", stored.ParentID, root.ID)
	}
}

func TestCreateComment_FailureRemovesLocalComment(t *testing.T) {
	s := store.New()
	seedPost(s)
	f := api.NewFake()
	f.CreateErr = errors.New("400")
	m := New(Config{Store: s, Client: f})

	if _, err := m.CreateComment(context.Background(), "p1", "", "doomed"); err == nil {
		t.Fatal("expected create failure")
	}
	if got := s.CommentCount("p1"); got != 0 {
		t.Fatalf("local comment must be removed on failure, count=%d", got)
	}
	p, _ := s.GetPost("p1")
	if p.CommentCount != 0 {
		t.Fatalf("comment count not restored, got %d", p.CommentCount)
	}
}

func TestCreateComment_EmptyTextRejectedBeforeNetwork(t *testing.T) {
	m, _, f := newTestMutator(t)

	if _, err := m.CreateComment(context.Background(), "p1", "", "   "); !errors.Is(err, ErrEmptyComment) {
		t.Fatalf("expected ErrEmptyComment, got %v", err)
	}
	if f.CreateCalls != 0 {
		t.Fatalf("validation failure must not reach the network, calls=%d", f.CreateCalls)
	}
}

func TestCreateComment_MentionHandsOffToAnnotations(t *testing.T) {
	s := store.New()
	seedPost(s)
	f := api.NewFake()
	ann := &stubAnnotations{}
	m := New(Config{Store: s, Client: f, Annotations: ann})

	if _, err := m.CreateComment(context.Background(), "p1", "", "@GeminiHoca what is this?"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(ann.started) != 1 {
		t.Fatalf("expected one pipeline start, got %d", len(ann.started))
	}
	if !strings.HasPrefix(ann.started[0].ID, "srv-") {
		t.Fatalf("pipeline must receive the reconciled comment, got ID %q", ann.started[0].ID)
	}
}

func TestDeleteComment_FailureKeepsLocalRemoval(t *testing.T) {
	m, s, f := newTestMutator(t)
	post := seedPost(s)
	post.CommentCount = 1
	s.UpsertPost(post)
	s.UpsertComment(types.Comment{ID: "c1", PostID: "p1", Kind: types.KindNormal})
	f.DeleteErr = errors.New("403")

	if err := m.DeleteComment(context.Background(), "c1"); err == nil {
		t.Fatal("expected delete failure to surface")
	}
	if _, ok := s.GetComment("c1"); ok {
		t.Fatal("comment must stay removed after a failed delete")
	}
}

func TestDeleteComment_UnknownIDIsNoop(t *testing.T) {
	m, _, f := newTestMutator(t)

	if err := m.DeleteComment(context.Background(), "ghost"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.DeleteCalls != 0 {
		t.Fatalf("no network call expected for unknown comment, got %d", f.DeleteCalls)
	}
}
