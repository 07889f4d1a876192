package annotation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hocanet/feedcore/pkg/bus"
	"github.com/hocanet/feedcore/pkg/store"
	"github.com/hocanet/feedcore/pkg/types"
)

// State is the lifecycle phase of one annotation request.
type State string

const (
	StateIdle             State = "idle"
	StateSubmitted        State = "submitted"
	StatePlaceholderShown State = "placeholder_shown"
	StateRetrying         State = "retrying"
	StateResolved         State = "resolved"
	StateFailed           State = "failed"
)

// ErrNoPayload marks a success response lacking a usable payload. It is
// terminal: the pipeline settles on an error comment without retrying.
var ErrNoPayload = errors.New("annotation response has no usable payload")

// DefaultFailureMessage is rendered in place of the placeholder when an
// annotation settles on a terminal failure.
const DefaultFailureMessage = "The analysis could not be completed. Please try again later."

// RetryPolicy bounds the pipeline's retry loop. The attempt timeout is
// enforced here, not in the transport, so a hung call settles as a
// retryable failure.
type RetryPolicy struct {
	MaxAttempts    uint
	Delay          time.Duration
	AttemptTimeout time.Duration
}

// DefaultRetryPolicy returns the production policy: 3 attempts, 3s
// apart, 30s per attempt.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Delay: 3 * time.Second, AttemptTimeout: 30 * time.Second}
}

// PipelineConfig configures a Pipeline.
type PipelineConfig struct {
	Store          *store.Store
	Bus            *bus.Bus
	Annotator      Annotator
	Detector       *Detector // nil means NewDetector() defaults
	Retry          RetryPolicy
	AssistantName  string // author shown on placeholder and terminal comments
	FailureMessage string
	Logger         *zap.Logger
}

// Pipeline runs one bounded retry sequence per annotation-eligible
// comment, settling each on exactly one terminal store entity.
type Pipeline struct {
	store     *store.Store
	bus       *bus.Bus
	annotator Annotator
	detector  *Detector
	retry     RetryPolicy
	assistant string
	failMsg   string
	log       *zap.Logger

	mu     sync.Mutex
	states map[string]State // in-flight phases only, destroyed at settlement
	wg     sync.WaitGroup
}

// NewPipeline creates a pipeline. Zero-valued retry fields fall back to
// the defaults.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	if cfg.Detector == nil {
		cfg.Detector = NewDetector()
	}
	def := DefaultRetryPolicy()
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = def.MaxAttempts
	}
	if cfg.Retry.Delay <= 0 {
		cfg.Retry.Delay = def.Delay
	}
	if cfg.Retry.AttemptTimeout <= 0 {
		cfg.Retry.AttemptTimeout = def.AttemptTimeout
	}
	if cfg.AssistantName == "" {
		cfg.AssistantName = "Gemini Hoca"
	}
	if cfg.FailureMessage == "" {
		cfg.FailureMessage = DefaultFailureMessage
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Pipeline{
		store:     cfg.Store,
		bus:       cfg.Bus,
		annotator: cfg.Annotator,
		detector:  cfg.Detector,
		retry:     cfg.Retry,
		assistant: cfg.AssistantName,
		failMsg:   cfg.FailureMessage,
		log:       cfg.Logger,
		states:    make(map[string]State),
	}
}

// Triggered reports whether comment text is annotation-eligible.
func (p *Pipeline) Triggered(text string) bool {
	return p.detector.Triggered(text)
}

// Start inserts a loading placeholder threaded under the triggering
// comment, publishes the loading event, and launches the retry sequence
// in the background. It returns the correlation identifier linking the
// placeholder to its eventual terminal replacement. Each call is an
// independent pipeline instance with its own identifier.
func (p *Pipeline) Start(post types.Post, trigger types.Comment) string {
	corrID := uuid.NewString()
	p.setState(corrID, StateSubmitted)

	placeholder := types.Comment{
		ID:            uuid.NewString(),
		PostID:        post.ID,
		ParentID:      trigger.ID,
		AuthorName:    p.assistant,
		Kind:          types.KindLoadingPlaceholder,
		CorrelationID: corrID,
		CreatedAt:     time.Now(),
	}
	p.store.UpsertComment(placeholder)
	p.setState(corrID, StatePlaceholderShown)

	p.bus.Publish(types.AnnotationEvent{
		Kind:      types.EventAnnotationLoading,
		PostID:    post.ID,
		CommentID: placeholder.ID,
	})

	req := types.AnnotationRequest{
		Content:  post.Body,
		Comment:  trigger.Text,
		PostType: post.PostType,
	}

	p.wg.Add(1)
	go p.run(corrID, post.ID, trigger.ID, req)

	p.log.Info("annotation started",
		zap.String("post_id", post.ID),
		zap.String("comment_id", trigger.ID),
		zap.String("correlation_id", corrID))
	return corrID
}

// run executes the bounded retry sequence to completion. It is detached
// from any view lifetime on purpose: settlement writes through the
// store, which no-ops if the placeholder is already gone.
func (p *Pipeline) run(corrID, postID, triggerID string, req types.AnnotationRequest) {
	defer p.wg.Done()

	attempt := 0
	operation := func() (*Result, error) {
		attempt++
		if attempt > 1 {
			p.setState(corrID, StateRetrying)
		}
		ctx, cancel := context.WithTimeout(context.Background(), p.retry.AttemptTimeout)
		defer cancel()

		res, err := p.annotator.Annotate(ctx, req)
		if err != nil {
			p.log.Warn("annotation attempt failed",
				zap.String("correlation_id", corrID),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return nil, err
		}
		if res == nil || strings.TrimSpace(res.Response) == "" {
			return nil, backoff.Permanent(ErrNoPayload)
		}
		return res, nil
	}

	res, err := backoff.Retry(context.Background(), operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(p.retry.Delay)),
		backoff.WithMaxTries(p.retry.MaxAttempts),
	)

	terminal := types.Comment{
		ID:         uuid.NewString(),
		PostID:     postID,
		ParentID:   triggerID,
		AuthorName: p.assistant,
		CreatedAt:  time.Now(),
	}
	if err != nil {
		terminal.Kind = types.KindAnnotationError
		terminal.Text = p.failMsg
	} else {
		terminal.Kind = types.KindAnnotationResult
		terminal.Text = res.Response
	}

	replaced := p.store.ReplaceByCorrelation(corrID, terminal)
	p.clearState(corrID)

	if err != nil {
		p.log.Warn("annotation settled on failure",
			zap.String("phase", string(StateFailed)),
			zap.String("correlation_id", corrID),
			zap.Int("attempts", attempt),
			zap.Bool("replaced", replaced),
			zap.Error(err))
		return
	}

	if replaced {
		p.bus.Publish(types.AnnotationEvent{
			Kind:      types.EventAnnotationResolved,
			PostID:    postID,
			CommentID: terminal.ID,
			Result:    terminal.Text,
		})
	}
	p.log.Info("annotation resolved",
		zap.String("phase", string(StateResolved)),
		zap.String("correlation_id", corrID),
		zap.Int("attempts", attempt),
		zap.Bool("replaced", replaced))
}

// State returns the phase of an in-flight run, or StateIdle once the
// run has settled. Settled outcomes live in the store and on the bus,
// not here.
func (p *Pipeline) State(corrID string) State {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.states[corrID]; ok {
		return s
	}
	return StateIdle
}

func (p *Pipeline) setState(corrID string, s State) {
	p.mu.Lock()
	p.states[corrID] = s
	p.mu.Unlock()
}

func (p *Pipeline) clearState(corrID string) {
	p.mu.Lock()
	delete(p.states, corrID)
	p.mu.Unlock()
}

// Wait blocks until all in-flight pipeline runs have settled.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}
