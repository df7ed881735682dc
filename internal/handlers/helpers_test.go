package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/iyunix/go-chatrelay/internal/database"
	"github.com/iyunix/go-chatrelay/internal/domain"
	"github.com/iyunix/go-chatrelay/internal/ratelimit"
	"github.com/iyunix/go-chatrelay/internal/repository/conversation"
	"github.com/iyunix/go-chatrelay/internal/repository/message"
	"github.com/iyunix/go-chatrelay/internal/repository/user"
	"github.com/iyunix/go-chatrelay/internal/services"
	"github.com/iyunix/go-chatrelay/internal/services/ai"
	"github.com/iyunix/go-chatrelay/internal/services/chat"
	"github.com/iyunix/go-chatrelay/internal/services/user_services"
)

const (
	defaultModel = "fallback/default"
	validModel   = "vendor/valid"
)

type staticLister struct{}

func (staticLister) ListModels(ctx context.Context) ([]ai.Model, error) {
	return []ai.Model{
		{ID: defaultModel, Name: "Default", ContextLength: 8192},
		{ID: validModel, Name: "Valid", ContextLength: 32000},
	}, nil
}

type scriptedStream struct {
	fragments []string
	err       error
	pos       int
}

func (s *scriptedStream) Recv() (string, error) {
	if s.pos < len(s.fragments) {
		s.pos++
		return s.fragments[s.pos-1], nil
	}
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

func (s *scriptedStream) Close() error { return nil }

type fakeProvider struct {
	mu        sync.Mutex
	reply     string
	err       error
	fragments []string
	streamErr error
	calls     int
}

func (p *fakeProvider) Complete(ctx context.Context, req ai.CompletionRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	last := req.Messages[len(req.Messages)-1].Content
	if strings.HasPrefix(last, "Generate a short, concise title") {
		return "Generated Title", nil
	}
	if p.reply != "" {
		return p.reply, nil
	}
	return "assistant reply", nil
}

func (p *fakeProvider) Stream(ctx context.Context, req ai.CompletionRequest) (ai.ChatStream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &scriptedStream{fragments: p.fragments, err: p.streamErr}, nil
}

type testEnv struct {
	handler  http.Handler
	provider *fakeProvider
	convs    conversation.ConversationRepository
	msgs     message.MessageRepository
	users    user.UserRepository
	alice    *domain.User
	bob      *domain.User
	aliceJWT string
	bobJWT   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_pragma=foreign_keys(1)"
	db, err := database.Open(database.DriverSQLite, dsn, logger.Silent)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	log := &services.NoOpLogger{}
	env := &testEnv{
		provider: &fakeProvider{},
		convs:    conversation.NewConversationRepository(db),
		msgs:     message.NewMessageRepository(db),
		users:    user.NewGormUserRepository(db),
	}

	catalog := ai.NewCatalog(staticLister{}, cache.New(time.Hour, time.Hour), time.Hour, defaultModel, log)
	cfg := chat.DefaultConfig()
	cfg.ProviderTimeout = 5 * time.Second
	cfg.StreamTimeout = 5 * time.Second
	chatService, err := chat.NewService(cfg, env.convs, env.msgs, env.users, env.provider, catalog, chat.NewPromptComposer(time.UTC), log)
	require.NoError(t, err)

	authService := user_services.NewAuthService(env.users, "handler-test-secret", log)
	ctx := context.Background()
	env.alice, env.aliceJWT, err = authService.Register(ctx, user_services.RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "alice-password"})
	require.NoError(t, err)
	env.bob, env.bobJWT, err = authService.Register(ctx, user_services.RegisterInput{Name: "Bob", Email: "bob@example.com", Password: "bob-password"})
	require.NoError(t, err)

	generous := &ratelimit.Config{RPS: 1000, Burst: 1000, IdleTTL: time.Hour}
	turns, logins := ratelimit.New(generous), ratelimit.New(generous)
	t.Cleanup(func() {
		turns.Close()
		logins.Close()
	})

	env.handler = NewRouter(RouterDeps{
		Chat:         NewChatHandler(chatService, log),
		Auth:         NewAuthHandler(authService, false, log),
		Instructions: NewInstructionsHandler(user_services.NewInstructionsService(env.users, log), log),
		Logs:         NewLogHandler(log),
		Tokens:       authService,
		TurnLimiter:  turns,
		AuthLimiter:  logins,
		CORSOrigins:  []string{"*"},
		Logger:       log,
	})
	return env
}

// api sends a JSON request as an API client.
func (e *testEnv) api(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	r := httptest.NewRequest(method, path, reader)
	r.Header.Set("Accept", "application/json")
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	return w
}

// browser sends a form request carrying the session cookie.
func (e *testEnv) browser(t *testing.T, method, path, token string, form map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	values := url.Values{}
	for k, v := range form {
		values.Set(k, v)
	}
	r := httptest.NewRequest(method, path, strings.NewReader(values.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if token != "" {
		r.AddCookie(&http.Cookie{Name: "auth_token", Value: token})
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	return w
}

func (e *testEnv) seedConversation(t *testing.T, owner *domain.User) *domain.Conversation {
	t.Helper()
	conv, err := e.convs.Create(context.Background(), &domain.Conversation{
		UserID: owner.ID, Title: "Seeded", Model: validModel, LastActivityAt: time.Now(),
	})
	require.NoError(t, err)
	return conv
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}
