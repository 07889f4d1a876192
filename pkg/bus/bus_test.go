package bus

import (
	"testing"

	"github.com/hocanet/feedcore/pkg/types"
)

func TestBus_PublishRoutesByKind(t *testing.T) {
	b := New()

	var loading, resolved []types.AnnotationEvent
	b.Subscribe(types.EventAnnotationLoading, func(ev types.AnnotationEvent) {
		loading = append(loading, ev)
	})
	b.Subscribe(types.EventAnnotationResolved, func(ev types.AnnotationEvent) {
		resolved = append(resolved, ev)
	})

	b.Publish(types.AnnotationEvent{Kind: types.EventAnnotationLoading, PostID: "p1", CommentID: "c1"})
	b.Publish(types.AnnotationEvent{Kind: types.EventAnnotationResolved, PostID: "p1", CommentID: "c2", Result: "done"})

	if len(loading) != 1 || loading[0].CommentID != "c1" {
		t.Fatalf("loading handler got %+v", loading)
	}
	if len(resolved) != 1 || resolved[0].Result != "done" {
		t.Fatalf("resolved handler got %+v", resolved)
	}
}

func TestBus_SubscribeOnceFiresOnce(t *testing.T) {
	b := New()

	calls := 0
	sub := b.SubscribeOnce(types.EventAnnotationResolved, func(types.AnnotationEvent) {
		calls++
	})

	ev := types.AnnotationEvent{Kind: types.EventAnnotationResolved}
	b.Publish(ev)
	b.Publish(ev)

	if calls != 1 {
		t.Fatalf("expected one delivery, got %d", calls)
	}

	// Cancelling after auto-removal must be a silent no-op.
	sub.Cancel()
	sub.Cancel()
	if got := b.SubscriberCount(types.EventAnnotationResolved); got != 0 {
		t.Fatalf("expected 0 subscribers, got %d", got)
	}
}

func TestBus_CancelDetaches(t *testing.T) {
	b := New()

	calls := 0
	sub := b.Subscribe(types.EventAnnotationLoading, func(types.AnnotationEvent) {
		calls++
	})
	sub.Cancel()

	b.Publish(types.AnnotationEvent{Kind: types.EventAnnotationLoading})
	if calls != 0 {
		t.Fatalf("cancelled handler still invoked %d times", calls)
	}
}
