package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/iyunix/go-chatrelay/internal/database"
	"github.com/iyunix/go-chatrelay/internal/domain"
	"github.com/iyunix/go-chatrelay/internal/repository/conversation"
	"github.com/iyunix/go-chatrelay/internal/repository/message"
	"github.com/iyunix/go-chatrelay/internal/repository/user"
	"github.com/iyunix/go-chatrelay/internal/services"
	"github.com/iyunix/go-chatrelay/internal/services/ai"
)

const (
	defaultModel = "fallback/default"
	validModel   = "vendor/valid"
	otherModel   = "vendor/other"
)

type fakeCatalog struct {
	models []ai.Model
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{models: []ai.Model{
		{ID: defaultModel, Name: "Default"},
		{ID: validModel, Name: "Valid"},
		{ID: otherModel, Name: "Other"},
	}}
}

func (c *fakeCatalog) Models(ctx context.Context) []ai.Model { return c.models }
func (c *fakeCatalog) DefaultModel() string                  { return defaultModel }
func (c *fakeCatalog) Resolve(ctx context.Context, requested string) (string, bool) {
	for _, m := range c.models {
		if m.ID == requested {
			return requested, true
		}
	}
	return defaultModel, false
}

type fakeStream struct {
	fragments []string
	err       error
	pos       int
	closed    bool
	block     <-chan struct{}
}

func (s *fakeStream) Recv() (string, error) {
	if s.pos < len(s.fragments) {
		f := s.fragments[s.pos]
		s.pos++
		return f, nil
	}
	if s.block != nil {
		<-s.block
	}
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

type fakeProvider struct {
	mu       sync.Mutex
	requests []ai.CompletionRequest
	reply    func(req ai.CompletionRequest) (string, error)
	title    func(req ai.CompletionRequest) (string, error)
	stream   func(ctx context.Context, req ai.CompletionRequest) (ai.ChatStream, error)
}

func isTitleRequest(req ai.CompletionRequest) bool {
	last := req.Messages[len(req.Messages)-1]
	return strings.HasPrefix(last.Content, "Generate a short, concise title")
}

func (p *fakeProvider) Complete(ctx context.Context, req ai.CompletionRequest) (string, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()
	if isTitleRequest(req) {
		if p.title != nil {
			return p.title(req)
		}
		return "TCP Handshake Basics", nil
	}
	if p.reply != nil {
		return p.reply(req)
	}
	return "assistant reply", nil
}

func (p *fakeProvider) Stream(ctx context.Context, req ai.CompletionRequest) (ai.ChatStream, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()
	if p.stream != nil {
		return p.stream(ctx, req)
	}
	return &fakeStream{fragments: []string{"streamed"}}, nil
}

func (p *fakeProvider) turnRequests() []ai.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []ai.CompletionRequest
	for _, r := range p.requests {
		if !isTitleRequest(r) {
			out = append(out, r)
		}
	}
	return out
}

type fixture struct {
	svc      *Service
	db       *gorm.DB
	convs    conversation.ConversationRepository
	msgs     message.MessageRepository
	users    user.UserRepository
	provider *fakeProvider
	alice    *domain.User
	bob      *domain.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_pragma=foreign_keys(1)"
	db, err := database.Open(database.DriverSQLite, dsn, logger.Silent)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	f := &fixture{
		db:       db,
		convs:    conversation.NewConversationRepository(db),
		msgs:     message.NewMessageRepository(db),
		users:    user.NewGormUserRepository(db),
		provider: &fakeProvider{},
	}
	f.alice, err = f.users.Create(context.Background(), &domain.User{Name: "Alice", Email: "alice@example.com", Password: "x"})
	require.NoError(t, err)
	f.bob, err = f.users.Create(context.Background(), &domain.User{Name: "Bob", Email: "bob@example.com", Password: "x"})
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.ProviderTimeout = 5 * time.Second
	cfg.StreamTimeout = 5 * time.Second
	f.svc, err = NewService(cfg, f.convs, f.msgs, f.users, f.provider, newFakeCatalog(), NewPromptComposer(time.UTC), &services.NoOpLogger{})
	require.NoError(t, err)
	return f
}

func (f *fixture) seedConversation(t *testing.T, owner *domain.User, model string) *domain.Conversation {
	t.Helper()
	conv, err := f.convs.Create(context.Background(), &domain.Conversation{
		UserID: owner.ID, Title: "Seeded", Model: model, LastActivityAt: time.Now(),
	})
	require.NoError(t, err)
	return conv
}

func (f *fixture) messages(t *testing.T, convID uint) []domain.Message {
	t.Helper()
	msgs, err := f.msgs.FindByConversationID(context.Background(), convID)
	require.NoError(t, err)
	return msgs
}

func (f *fixture) reload(t *testing.T, convID uint) *domain.Conversation {
	t.Helper()
	conv, err := f.convs.FindByID(context.Background(), convID)
	require.NoError(t, err)
	return conv
}

func TestCreateConversation_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.CreateConversation(ctx, f.alice.ID, TurnInput{Message: "Explain TCP handshakes", Model: validModel})
	require.NoError(t, err)

	assert.Equal(t, f.alice.ID, res.Conversation.UserID)
	assert.Equal(t, validModel, res.Conversation.Model)
	assert.Equal(t, "TCP Handshake Basics", res.Conversation.Title)
	assert.Equal(t, domain.RoleUser, res.UserMessage.Role)
	assert.Equal(t, "assistant reply", res.AssistantMessage.Content)
	require.Len(t, res.Conversation.Messages, 2)
	assert.Equal(t, res.UserMessage.ID, res.Conversation.Messages[0].ID)
	assert.Equal(t, res.AssistantMessage.ID, res.Conversation.Messages[1].ID)

	msgs := f.messages(t, res.Conversation.ID)
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.RoleUser, msgs[0].Role)
	assert.Equal(t, domain.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "TCP Handshake Basics", f.reload(t, res.Conversation.ID).Title)

	u, err := f.users.FindByID(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, validModel, u.PreferredModel)
}

func TestCreateConversation_InitialTitleKeptWhenTitlingFails(t *testing.T) {
	f := newFixture(t)
	f.provider.title = func(ai.CompletionRequest) (string, error) { return "", errors.New("provider down") }
	long := strings.Repeat("x", 80)

	res, err := f.svc.CreateConversation(context.Background(), f.alice.ID, TurnInput{Message: long, Model: validModel})
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("x", 50)+"...", f.reload(t, res.Conversation.ID).Title)
}

func TestCreateConversation_ValidationHasNoSideEffects(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateConversation(context.Background(), f.alice.ID, TurnInput{Message: "   "})
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	var chatErr *ChatError
	require.ErrorAs(t, err, &chatErr)
	assert.Contains(t, chatErr.Fields, "message")

	convs, err := f.svc.ListConversations(context.Background(), f.alice.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, convs)
	assert.Empty(t, f.provider.requests)
}

func TestSendMessage_SystemPromptFirstAndFullHistory(t *testing.T) {
	f := newFixture(t)
	conv := f.seedConversation(t, f.alice, validModel)
	ctx := context.Background()

	_, err := f.svc.SendMessage(ctx, f.alice.ID, conv.ID, TurnInput{Message: "first"})
	require.NoError(t, err)
	_, err = f.svc.SendMessage(ctx, f.alice.ID, conv.ID, TurnInput{Message: "second"})
	require.NoError(t, err)

	turns := f.provider.turnRequests()
	require.Len(t, turns, 2)
	last := turns[1]
	require.Len(t, last.Messages, 4)
	assert.Equal(t, domain.RoleSystem, last.Messages[0].Role)
	assert.Contains(t, last.Messages[0].Content, "Alice")
	assert.Equal(t, []string{"first", "assistant reply", "second"},
		[]string{last.Messages[1].Content, last.Messages[2].Content, last.Messages[3].Content})
	assert.Equal(t, float32(0.7), last.Temperature)

	for _, m := range f.messages(t, conv.ID) {
		assert.NotEqual(t, domain.RoleSystem, m.Role)
	}
}

func TestSendMessage_TitlesOnlyAfterFirstReply(t *testing.T) {
	f := newFixture(t)
	conv := f.seedConversation(t, f.alice, validModel)
	ctx := context.Background()

	_, err := f.svc.SendMessage(ctx, f.alice.ID, conv.ID, TurnInput{Message: "first"})
	require.NoError(t, err)
	assert.Equal(t, "TCP Handshake Basics", f.reload(t, conv.ID).Title)

	f.provider.title = func(ai.CompletionRequest) (string, error) { return "Should Not Appear", nil }
	_, err = f.svc.SendMessage(ctx, f.alice.ID, conv.ID, TurnInput{Message: "second"})
	require.NoError(t, err)
	assert.Equal(t, "TCP Handshake Basics", f.reload(t, conv.ID).Title)
}

func TestSendMessage_RecentHistoryPolicy(t *testing.T) {
	f := newFixture(t)
	f.svc.history = HistoryPolicyFor(2)
	conv := f.seedConversation(t, f.alice, validModel)

	for _, text := range []string{"one", "two", "three"} {
		_, err := f.svc.SendMessage(context.Background(), f.alice.ID, conv.ID, TurnInput{Message: text})
		require.NoError(t, err)
	}

	turns := f.provider.turnRequests()
	last := turns[len(turns)-1]
	require.Len(t, last.Messages, 3)
	assert.Equal(t, "assistant reply", last.Messages[1].Content)
	assert.Equal(t, "three", last.Messages[2].Content)
}

func TestOwnershipEnforcement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.svc.CreateConversation(ctx, f.alice.ID, TurnInput{Message: "mine", Model: validModel})
	require.NoError(t, err)
	convID := res.Conversation.ID
	before := f.reload(t, convID)
	beforeMsgs := f.messages(t, convID)

	ops := map[string]func() error{
		"get": func() error {
			_, _, err := f.svc.GetConversation(ctx, f.bob.ID, convID)
			return err
		},
		"send": func() error {
			_, err := f.svc.SendMessage(ctx, f.bob.ID, convID, TurnInput{Message: "hijack"})
			return err
		},
		"stream": func() error {
			_, err := f.svc.OpenStream(ctx, f.bob.ID, convID, TurnInput{Message: "hijack"})
			return err
		},
		"update model": func() error {
			_, err := f.svc.UpdateModel(ctx, f.bob.ID, convID, otherModel)
			return err
		},
		"regenerate title": func() error {
			_, err := f.svc.RegenerateTitle(ctx, f.bob.ID, convID, "hijack")
			return err
		},
		"toggle favorite": func() error {
			_, err := f.svc.ToggleFavorite(ctx, f.bob.ID, convID)
			return err
		},
		"delete": func() error {
			return f.svc.DeleteConversation(ctx, f.bob.ID, convID)
		},
		"delete many": func() error {
			_, err := f.svc.DeleteConversations(ctx, f.bob.ID, []uint{convID})
			return err
		},
	}

	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			err := op()
			require.Error(t, err)
			assert.True(t, IsUnauthorized(err), "got %v", err)
		})
	}

	after := f.reload(t, convID)
	assert.Equal(t, before.Title, after.Title)
	assert.Equal(t, before.Model, after.Model)
	assert.Equal(t, before.IsFavorite, after.IsFavorite)
	assert.Equal(t, before.LastActivityAt.Unix(), after.LastActivityAt.Unix())
	assert.Equal(t, len(beforeMsgs), len(f.messages(t, convID)))
}

func TestMissingConversationIsNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.SendMessage(context.Background(), f.alice.ID, 4242, TurnInput{Message: "hello"})
	assert.True(t, IsNotFound(err))
}

func TestProviderFailureKeepsUserMessage(t *testing.T) {
	f := newFixture(t)
	f.provider.reply = func(ai.CompletionRequest) (string, error) { return "", errors.New("upstream 500") }
	conv := f.seedConversation(t, f.alice, validModel)

	_, err := f.svc.SendMessage(context.Background(), f.alice.ID, conv.ID, TurnInput{Message: "please remember me"})
	require.Error(t, err)
	assert.True(t, IsProvider(err))

	msgs := f.messages(t, conv.ID)
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.RoleUser, msgs[0].Role)
	assert.Equal(t, "please remember me", msgs[0].Content)

	// Retrying resends the stored message alongside the new one.
	f.provider.reply = nil
	_, err = f.svc.SendMessage(context.Background(), f.alice.ID, conv.ID, TurnInput{Message: "again"})
	require.NoError(t, err)
	turns := f.provider.turnRequests()
	assert.Equal(t, "please remember me", turns[len(turns)-1].Messages[1].Content)
}

func TestModelFallback(t *testing.T) {
	tests := []struct {
		name          string
		requested     string
		wantCallModel string
		wantConvModel string
		wantPreferred string
	}{
		{name: "valid id rebinds", requested: otherModel, wantCallModel: otherModel, wantConvModel: otherModel, wantPreferred: otherModel},
		{name: "invalid id falls back", requested: "bogus/model", wantCallModel: defaultModel, wantConvModel: validModel},
		{name: "absent id keeps conversation model", requested: "", wantCallModel: validModel, wantConvModel: validModel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			conv := f.seedConversation(t, f.alice, validModel)

			for i := 0; i < 2; i++ {
				_, err := f.svc.SendMessage(context.Background(), f.alice.ID, conv.ID, TurnInput{Message: "hi", Model: tt.requested})
				require.NoError(t, err)
			}

			for _, req := range f.provider.turnRequests() {
				assert.Equal(t, tt.wantCallModel, req.Model)
			}
			assert.Equal(t, tt.wantConvModel, f.reload(t, conv.ID).Model)

			u, err := f.users.FindByID(context.Background(), f.alice.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPreferred, u.PreferredModel)
		})
	}
}

func TestModelFallback_StaleConversationModel(t *testing.T) {
	f := newFixture(t)
	conv := f.seedConversation(t, f.alice, "retired/model")

	_, err := f.svc.SendMessage(context.Background(), f.alice.ID, conv.ID, TurnInput{Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, defaultModel, f.provider.turnRequests()[0].Model)
	assert.Equal(t, "retired/model", f.reload(t, conv.ID).Model)
}

func TestUpdateModel(t *testing.T) {
	f := newFixture(t)
	conv := f.seedConversation(t, f.alice, validModel)
	ctx := context.Background()

	got, err := f.svc.UpdateModel(ctx, f.alice.ID, conv.ID, otherModel)
	require.NoError(t, err)
	assert.Equal(t, otherModel, got)
	assert.Equal(t, otherModel, f.reload(t, conv.ID).Model)

	got, err = f.svc.UpdateModel(ctx, f.alice.ID, conv.ID, "bogus/model")
	require.NoError(t, err)
	assert.Equal(t, otherModel, got)
	assert.Equal(t, otherModel, f.reload(t, conv.ID).Model)

	_, err = f.svc.UpdateModel(ctx, f.alice.ID, conv.ID, " ")
	assert.True(t, IsValidation(err))
}

func TestRegenerateTitle(t *testing.T) {
	t.Run("truncates long titles to 100 characters", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.svc.CreateConversation(context.Background(), f.alice.ID, TurnInput{Message: "hello", Model: validModel})
		require.NoError(t, err)

		f.provider.title = func(ai.CompletionRequest) (string, error) { return "  " + strings.Repeat("é", 150) + "  ", nil }
		conv, err := f.svc.RegenerateTitle(context.Background(), f.alice.ID, res.Conversation.ID, "hello")
		require.NoError(t, err)
		assert.Equal(t, strings.Repeat("é", 100), conv.Title)
		assert.Equal(t, strings.Repeat("é", 100), f.reload(t, conv.ID).Title)
	})

	t.Run("failure leaves title byte for byte", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.svc.CreateConversation(context.Background(), f.alice.ID, TurnInput{Message: "hello", Model: validModel})
		require.NoError(t, err)
		before := f.reload(t, res.Conversation.ID).Title

		for _, failure := range []func(ai.CompletionRequest) (string, error){
			func(ai.CompletionRequest) (string, error) { return "", errors.New("boom") },
			func(ai.CompletionRequest) (string, error) { return "   ", nil },
		} {
			f.provider.title = failure
			conv, err := f.svc.RegenerateTitle(context.Background(), f.alice.ID, res.Conversation.ID, "hello")
			require.NoError(t, err)
			assert.Equal(t, before, conv.Title)
			assert.Equal(t, before, f.reload(t, res.Conversation.ID).Title)
		}
	})

	t.Run("no assistant reply yet", func(t *testing.T) {
		f := newFixture(t)
		conv, err := f.svc.CreateEmptyConversation(context.Background(), f.alice.ID, validModel)
		require.NoError(t, err)
		assert.Equal(t, domain.DefaultConversationTitle, conv.Title)

		_, err = f.svc.RegenerateTitle(context.Background(), f.alice.ID, conv.ID, "hello")
		assert.True(t, IsValidation(err))
	})

	t.Run("uses the conversation model", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.svc.CreateConversation(context.Background(), f.alice.ID, TurnInput{Message: "hello", Model: otherModel})
		require.NoError(t, err)

		var titleModel string
		f.provider.title = func(req ai.CompletionRequest) (string, error) {
			titleModel = req.Model
			return "Greeting", nil
		}
		_, err = f.svc.RegenerateTitle(context.Background(), f.alice.ID, res.Conversation.ID, "hello")
		require.NoError(t, err)
		assert.Equal(t, otherModel, titleModel)
	})
}

func TestToggleFavoriteAndListOrdering(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	t1 := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	mk := func(title string, at time.Time) *domain.Conversation {
		conv, err := f.convs.Create(ctx, &domain.Conversation{UserID: f.alice.ID, Title: title, LastActivityAt: at})
		require.NoError(t, err)
		return conv
	}
	a := mk("a", t1)
	b := mk("b", t1.Add(2*time.Hour))
	c := mk("c", t1.Add(time.Hour))

	fav, err := f.svc.ToggleFavorite(ctx, f.alice.ID, a.ID)
	require.NoError(t, err)
	assert.True(t, fav)
	fav, err = f.svc.ToggleFavorite(ctx, f.alice.ID, c.ID)
	require.NoError(t, err)
	assert.True(t, fav)

	convs, err := f.svc.ListConversations(ctx, f.alice.ID, 0)
	require.NoError(t, err)
	require.Len(t, convs, 3)
	assert.Equal(t, []uint{c.ID, a.ID, b.ID}, []uint{convs[0].ID, convs[1].ID, convs[2].ID})

	fav, err = f.svc.ToggleFavorite(ctx, f.alice.ID, a.ID)
	require.NoError(t, err)
	assert.False(t, fav)
}

func TestDeleteConversations_Atomic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c1 := f.seedConversation(t, f.alice, validModel)
	c2 := f.seedConversation(t, f.alice, validModel)
	c3 := f.seedConversation(t, f.bob, validModel)

	deleted, err := f.svc.DeleteConversations(ctx, f.alice.ID, []uint{c1.ID, c2.ID, c3.ID})
	assert.True(t, IsUnauthorized(err))
	assert.Zero(t, deleted)
	for _, id := range []uint{c1.ID, c2.ID, c3.ID} {
		f.reload(t, id)
	}

	deleted, err = f.svc.DeleteConversations(ctx, f.alice.ID, []uint{c1.ID, c2.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	_, err = f.svc.DeleteConversations(ctx, f.alice.ID, nil)
	assert.True(t, IsValidation(err))
}

func TestDeleteConversation(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.CreateConversation(context.Background(), f.alice.ID, TurnInput{Message: "bye", Model: validModel})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteConversation(context.Background(), f.alice.ID, res.Conversation.ID))
	_, _, err = f.svc.GetConversation(context.Background(), f.alice.ID, res.Conversation.ID)
	assert.True(t, IsNotFound(err))
	assert.Empty(t, f.messages(t, res.Conversation.ID))
}

func TestAsk(t *testing.T) {
	f := newFixture(t)

	reply, model, err := f.svc.Ask(context.Background(), 0, TurnInput{Message: "quick question", Model: "bogus"})
	require.NoError(t, err)
	assert.Equal(t, "assistant reply", reply)
	assert.Equal(t, defaultModel, model)
	assert.Contains(t, f.provider.turnRequests()[0].Messages[0].Content, "Guest")

	_, model, err = f.svc.Ask(context.Background(), f.alice.ID, TurnInput{Message: "again", Model: otherModel})
	require.NoError(t, err)
	assert.Equal(t, otherModel, model)
	u, err := f.users.FindByID(context.Background(), f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, otherModel, u.PreferredModel)

	convs, err := f.svc.ListConversations(context.Background(), f.alice.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, convs)
}

func TestAvailableModels(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.users.UpdatePreferredModel(context.Background(), f.alice.ID, otherModel))

	models, selected, err := f.svc.AvailableModels(context.Background(), f.alice.ID)
	require.NoError(t, err)
	assert.Len(t, models, 3)
	assert.Equal(t, otherModel, selected)

	_, selected, err = f.svc.AvailableModels(context.Background(), f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, defaultModel, selected)
}

func TestConcurrentTurnsAreSerialized(t *testing.T) {
	f := newFixture(t)
	conv := f.seedConversation(t, f.alice, validModel)

	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0
	f.provider.reply = func(req ai.CompletionRequest) (string, error) {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
		return "ok", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.SendMessage(context.Background(), f.alice.ID, conv.ID, TurnInput{Message: "parallel"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInFlight)
	msgs := f.messages(t, conv.ID)
	require.Len(t, msgs, 8)
	for i, m := range msgs {
		want := domain.RoleUser
		if i%2 == 1 {
			want = domain.RoleAssistant
		}
		assert.Equal(t, want, m.Role, "message %d", i)
	}
	assert.Zero(t, f.svc.locks.size())
}
