// Package chat runs assistant conversations, either against the backend or with
// the canned prototype replies.
package chat

import (
	"context"
	"time"

	"moodle-assistant/internal/cache"
	"moodle-assistant/internal/common/errors"
	"moodle-assistant/internal/common/logger"
	"moodle-assistant/internal/models"
)

// KeySuggestions caches the server's suggestion list.
const KeySuggestions = "chat-suggestions"

// DefaultSuggestions are offered when the backend has none to give.
var DefaultSuggestions = []string{
	"Show me my courses",
	"Help me organize my study materials",
	"What assignments are coming up?",
	"Explain this course topic",
	"Find my recent downloads",
	"Create a study schedule",
}

// API is the chat side of api.Client.
type API interface {
	SendMessage(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error)
	ChatSuggestions(ctx context.Context) (*models.ChatSuggestions, error)
}

type Options struct {
	Mock       bool
	ReplyDelay time.Duration
}

type Assistant struct {
	api    API
	cache  *cache.Cache
	opts   Options
	logger logger.Logger
}

// NewAssistant builds an Assistant. queryCache may be nil.
func NewAssistant(api API, queryCache *cache.Cache, opts Options, log logger.Logger) *Assistant {
	if opts.ReplyDelay < 0 {
		opts.ReplyDelay = 0
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Assistant{
		api:    api,
		cache:  queryCache,
		opts:   opts,
		logger: log.WithFields(map[string]interface{}{"component": "chat"}),
	}
}

// Suggestions returns the server's prompts, or DefaultSuggestions when the call
// fails for any reason other than an expired session.
func (a *Assistant) Suggestions(ctx context.Context) ([]string, error) {
	if a.opts.Mock {
		return DefaultSuggestions, nil
	}

	fetch := func(ctx context.Context) (*models.ChatSuggestions, error) {
		return a.api.ChatSuggestions(ctx)
	}

	var (
		resp *models.ChatSuggestions
		err  error
	)
	if a.cache != nil {
		resp, err = cache.Fetch(ctx, a.cache, KeySuggestions, fetch)
	} else {
		resp, err = fetch(ctx)
	}

	switch {
	case errors.IsUnauthorized(err):
		return nil, err
	case err != nil:
		a.logger.WithError(err).Warn("using built-in chat suggestions", nil)
		return DefaultSuggestions, nil
	case len(resp.Suggestions) == 0:
		return DefaultSuggestions, nil
	}
	return resp.Suggestions, nil
}

func (a *Assistant) reply(ctx context.Context, text string, history int) (string, error) {
	if a.opts.Mock {
		timer := time.NewTimer(a.opts.ReplyDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
		return mockReply(text), nil
	}

	resp, err := a.api.SendMessage(ctx, models.ChatRequest{
		Message: text,
		Context: map[string]interface{}{"history_length": history},
	})
	if err != nil {
		return "", err
	}
	return resp.Response, nil
}
