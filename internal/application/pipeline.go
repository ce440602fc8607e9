package application

import (
	"context"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/egdigital/egassist/internal/domain"
)

// Pipeline is the single input-submission path for outbound user messages.
// Manual typing and prompt shortcuts both go through Submit, so every
// downstream stage sees prompt-originated messages identically to typed ones.
type Pipeline struct {
	poster   Poster
	userID   string
	userName string
	log      logrus.FieldLogger

	mu            sync.Mutex
	firstSubmit   bool
	onFirstSubmit func()
}

func NewPipeline(poster Poster, userID, userName string, log logrus.FieldLogger) *Pipeline {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Pipeline{
		poster:   poster,
		userID:   userID,
		userName: userName,
		log:      log,
	}
}

// OnFirstSubmit registers a callback fired once, on the first non-empty
// submission. The chat UI uses it to dismiss the prompt overlay.
func (p *Pipeline) OnFirstSubmit(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onFirstSubmit = fn
}

// Submit posts one user message. Empty input is ignored. A failed post is
// logged and reported, but the first-submit latch stays set either way.
func (p *Pipeline) Submit(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	p.mu.Lock()
	var fire func()
	if !p.firstSubmit {
		p.firstSubmit = true
		fire = p.onFirstSubmit
	}
	p.mu.Unlock()
	if fire != nil {
		fire()
	}

	activity := domain.Activity{
		Type: domain.ActivityMessage,
		Text: text,
		From: domain.ChannelAccount{ID: p.userID, Name: p.userName},
	}
	if err := p.poster.Post(ctx, activity); err != nil {
		p.log.WithError(err).Warn("message post failed")
		return err
	}
	return nil
}

// SelectPrompt submits a canned prompt's title through the same path as
// typed input.
func (p *Pipeline) SelectPrompt(ctx context.Context, prompt domain.Prompt) error {
	return p.Submit(ctx, prompt.Title)
}
