// File: internal/services/chat/stream.go
package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/iyunix/go-chatrelay/internal/domain"
	"github.com/iyunix/go-chatrelay/internal/services/ai"
)

var ErrStreamConsumed = errors.New("stream already consumed")

// OpenStream runs every pre-stream step of a turn and opens the upstream stream.
// All validation, authorization and upstream-open failures surface here, before
// the caller has written anything. The caller must Forward or Close the stream.
func (s *Service) OpenStream(ctx context.Context, userID, conversationID uint, in TurnInput) (*Stream, error) {
	in, err := validateTurn("stream", in)
	if err != nil {
		return nil, err
	}
	conv, err := s.ownedConversation(ctx, "stream", userID, conversationID)
	if err != nil {
		return nil, err
	}
	acting, err := s.actingUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	t, err := s.prepareTurn(ctx, acting, conv, in)
	if err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithTimeout(ctx, s.config.StreamTimeout)
	upstream, err := s.provider.Stream(streamCtx, t.request)
	if err != nil {
		cancel()
		t.release()
		s.logger.Error("stream open failed, user message kept",
			"conversation_id", conv.ID, "model", t.request.Model, "error", err)
		return nil, NewProviderError("stream", "the assistant could not answer", err)
	}

	return &Stream{
		service:      s,
		parent:       ctx,
		upstream:     upstream,
		cancel:       cancel,
		release:      t.release,
		conversation: conv,
		userMessage:  t.userMessage,
		model:        t.request.Model,
	}, nil
}

// Stream relays one streaming turn. Every forwarded fragment is also accumulated, and
// whatever was accumulated is stored as the assistant message exactly once, on every exit path.
type Stream struct {
	service  *Service
	parent   context.Context
	upstream ai.ChatStream
	cancel   context.CancelFunc
	release  func()

	conversation *domain.Conversation
	userMessage  *domain.Message
	model        string

	mu        sync.Mutex
	consumed  bool
	text      strings.Builder
	fragments int

	once      sync.Once
	assistant *domain.Message
	saveErr   error
}

func (st *Stream) Conversation() *domain.Conversation { return st.conversation }
func (st *Stream) UserMessage() *domain.Message       { return st.userMessage }
func (st *Stream) Model() string                      { return st.model }

// Forward reads fragments until the upstream ends and hands each non-empty one to onDelta.
// A nil return means the upstream finished normally. An onDelta error (client gone)
// stops the relay and is returned as is. Each fragment is accumulated before it is handed
// to onDelta, so the persisted reply can hold one fragment the client never received.
func (st *Stream) Forward(onDelta func(string) error) error {
	st.mu.Lock()
	if st.consumed {
		st.mu.Unlock()
		return ErrStreamConsumed
	}
	st.consumed = true
	st.mu.Unlock()

	defer st.finalize()

	for {
		fragment, err := st.upstream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return NewProviderError("stream", "upstream stream interrupted", err)
		}
		if fragment == "" {
			continue
		}

		st.mu.Lock()
		st.text.WriteString(fragment)
		st.fragments++
		st.mu.Unlock()

		if err := onDelta(fragment); err != nil {
			return err
		}
	}
}

// Close finalizes a stream that was never forwarded, or returns the result of an earlier finalization.
func (st *Stream) Close() error {
	st.mu.Lock()
	st.consumed = true
	st.mu.Unlock()
	st.finalize()
	return st.saveErr
}

// Text is the accumulated assistant text so far.
func (st *Stream) Text() string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.text.String()
}

// AssistantMessage is the stored reply, nil until finalized or when nothing arrived.
func (st *Stream) AssistantMessage() *domain.Message {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.assistant
}

func (st *Stream) finalize() {
	st.once.Do(func() {
		defer st.release()
		defer st.cancel()

		if err := st.upstream.Close(); err != nil {
			st.service.logger.Debug("closing upstream stream", "conversation_id", st.conversation.ID, "error", err)
		}

		st.mu.Lock()
		text := st.text.String()
		fragments := st.fragments
		st.mu.Unlock()

		if text == "" {
			st.service.logger.Warn("stream ended without content", "conversation_id", st.conversation.ID, "model", st.model)
			return
		}

		// The request context may already be cancelled by a client disconnect.
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(st.parent), st.service.config.SaveTimeout)
		defer cancel()

		msg, err := st.service.saveMessage(saveCtx, st.conversation.ID, domain.RoleAssistant, text)
		if err != nil {
			st.service.logger.Error("failed to save streamed reply", "conversation_id", st.conversation.ID, "error", err)
			err = NewPersistenceError("stream", "could not store assistant reply", err)
		}
		st.mu.Lock()
		st.assistant, st.saveErr = msg, err
		st.mu.Unlock()
		if err != nil {
			return
		}
		st.service.logger.Info("stream completed",
			"conversation_id", st.conversation.ID, "model", st.model,
			"fragments", fragments, "response_length", len(text))
	})
}
