package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"moodle-assistant/internal/common/errors"
	"moodle-assistant/internal/models"

	"github.com/google/uuid"
)

func greeting(user *models.UserInfo) string {
	name := user.FirstName()
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf("Hello %s! I'm your AI learning assistant. I can help you navigate your Moodle courses, "+
		"understand course materials, and answer questions about your studies. What would you like to know?", name)
}

func mockReply(text string) string {
	return fmt.Sprintf("I understand you're asking about \"%s\". This is a prototype AI assistant. In the full version, "+
		"I'll be able to provide intelligent responses based on your course content and learning materials. "+
		"For now, you can explore your courses in the Courses section!", text)
}

// Conversation is an ordered transcript. It is safe for concurrent use, though
// sends are serialized.
type Conversation struct {
	assistant *Assistant
	now       func() time.Time

	sendMu sync.Mutex

	mu       sync.RWMutex
	messages []models.ChatMessage
}

// NewConversation starts a transcript with a greeting addressed to user.
func (a *Assistant) NewConversation(user *models.UserInfo) *Conversation {
	c := &Conversation{assistant: a, now: time.Now}
	c.append(greeting(user), models.SenderAI)
	return c
}

func (c *Conversation) append(text string, sender models.Sender) models.ChatMessage {
	msg := models.ChatMessage{
		ID:        uuid.NewString(),
		Content:   text,
		Sender:    sender,
		Timestamp: c.now(),
	}

	c.mu.Lock()
	c.messages = append(c.messages, msg)
	c.mu.Unlock()
	return msg
}

// Messages returns a copy of the transcript.
func (c *Conversation) Messages() []models.ChatMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.ChatMessage(nil), c.messages...)
}

// Send appends text as a user message and then the assistant's reply. Blank
// text is rejected. When the reply fails, the user message stays in the
// transcript and the error is returned.
func (c *Conversation) Send(ctx context.Context, text string) (models.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.ChatMessage{}, errors.NewValidationError("message", "message must not be blank")
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	c.append(text, models.SenderUser)

	c.mu.RLock()
	history := len(c.messages)
	c.mu.RUnlock()

	answer, err := c.assistant.reply(ctx, text, history)
	if err != nil {
		c.assistant.logger.WithError(err).Warn("chat reply failed", nil)
		return models.ChatMessage{}, err
	}
	return c.append(answer, models.SenderAI), nil
}
