package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hocanet/feedcore/pkg/annotation"
	"github.com/hocanet/feedcore/pkg/api"
	"github.com/hocanet/feedcore/pkg/bus"
	"github.com/hocanet/feedcore/pkg/mutator"
	"github.com/hocanet/feedcore/pkg/refresh"
	"github.com/hocanet/feedcore/pkg/store"
	"github.com/hocanet/feedcore/pkg/types"
)

// localAnnotator stands in for the AI service when no API key is set.
type localAnnotator struct{}

func (localAnnotator) Annotate(ctx context.Context, req types.AnnotationRequest) (*annotation.Result, error) {
	select {
	case <-time.After(300 * time.Millisecond):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &annotation.Result{
		Response: fmt.Sprintf("Local analysis of this %s post: %s", req.PostType, req.Content),
	}, nil
}

func main() {
	// Load .env file if exists
	_ = godotenv.Load()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	var annotator annotation.Annotator = localAnnotator{}
	if os.Getenv("GOOGLE_API_KEY") != "" {
		gemini, err := annotation.NewGeminiAnnotator(ctx, "", "")
		if err != nil {
			log.Fatalf("Failed to create Gemini annotator: %v", err)
		}
		annotator = gemini
		fmt.Println("Annotator: Gemini")
	} else {
		fmt.Println("Annotator: local stub (set GOOGLE_API_KEY for Gemini)")
	}

	entities := store.New()
	notifications := bus.New()
	backend := api.NewFake()

	pipeline := annotation.NewPipeline(annotation.PipelineConfig{
		Store:     entities,
		Bus:       notifications,
		Annotator: annotator,
		Retry:     annotation.RetryPolicy{MaxAttempts: 3, Delay: time.Second, AttemptTimeout: 30 * time.Second},
		Logger:    logger,
	})
	actions := mutator.New(mutator.Config{
		Store:       entities,
		Client:      backend,
		Annotations: pipeline,
		UserID:      "user-demo",
		UserName:    "Demo User",
		Logger:      logger,
	})
	scheduler := refresh.NewScheduler(refresh.SchedulerConfig{
		Store:    entities,
		Client:   backend,
		Interval: 2 * time.Second,
		Logger:   logger,
	})

	post := types.Post{
		ID:        "post-1",
		AuthorID:  "user-other",
		LikeCount: 5,
		Title:     "Bosphorus at dusk",
		Body:      "A photo of the Bosphorus bridge at dusk.",
		PostType:  "photo",
		CreatedAt: time.Now(),
	}
	entities.UpsertPost(post)

	fmt.Println("=== feedcore demo ===")
	fmt.Printf("Seeded post %q (likes=%d)\n\n", post.Title, post.LikeCount)

	events := make(chan types.AnnotationEvent, 16)
	loadingSub := notifications.Subscribe(types.EventAnnotationLoading, func(ev types.AnnotationEvent) {
		events <- ev
	})
	resolvedSub := notifications.Subscribe(types.EventAnnotationResolved, func(ev types.AnnotationEvent) {
		events <- ev
	})
	defer loadingSub.Cancel()
	defer resolvedSub.Cancel()

	task := scheduler.Start(post.ID)
	defer task.Stop()

	runCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)

	printEvent := func(ev types.AnnotationEvent) {
		if ev.Kind == types.EventAnnotationResolved {
			fmt.Printf("[event] annotation resolved for comment %s: %s\n", ev.CommentID, ev.Result)
		} else {
			fmt.Printf("[event] annotation loading for comment %s\n", ev.CommentID)
		}
	}
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				// Drain anything published before the scenario finished.
				for {
					select {
					case ev := <-events:
						printEvent(ev)
					default:
						return nil
					}
				}
			case ev := <-events:
				printEvent(ev)
			}
		}
	})

	g.Go(func() error {
		defer cancel()

		if err := actions.ToggleLike(gctx, post.ID); err != nil {
			return fmt.Errorf("like: %w", err)
		}
		p, _ := entities.GetPost(post.ID)
		fmt.Printf("Liked post: liked=%v count=%d\n", p.Liked, p.LikeCount)

		if _, err := actions.CreateComment(gctx, post.ID, "", "Beautiful view!"); err != nil {
			return fmt.Errorf("comment: %w", err)
		}
		comment, err := actions.CreateComment(gctx, post.ID, "", "@GeminiHoca what is this?")
		if err != nil {
			return fmt.Errorf("mention comment: %w", err)
		}
		fmt.Printf("Posted mention comment %s, waiting for annotation...\n", comment.ID)

		pipeline.Wait()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("demo failed", zap.Error(err))
	}

	fmt.Println("\nFinal thread:")
	for _, c := range entities.ListComments(post.ID) {
		author := c.AuthorName
		if author == "" {
			author = c.AuthorID
		}
		fmt.Printf("  [%s] %s: %s\n", c.Kind, author, c.Text)
	}
}
