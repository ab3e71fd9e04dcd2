package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"mitra-ai/internal/config"
	"mitra-ai/internal/repository/db"
	"mitra-ai/internal/repository/memory"
	"mitra-ai/internal/service/credits"
	"mitra-ai/internal/service/llm"
	"mitra-ai/internal/service/registry"
	"mitra-ai/internal/testutil"
)

const premiumModel = "test/premium-model"

type fixture struct {
	store   *memory.Store
	ledger  *credits.Ledger
	client  *testutil.MockModelClient
	service *ChatService
	userID  string
	chatID  string
}

func newFixture(t *testing.T, allowance int) *fixture {
	t.Helper()
	ctx := context.Background()

	store := memory.NewStore()
	reg := registry.NewRegistry(store, 1, time.Minute)
	if err := reg.Seed(ctx, []config.Model{
		{ID: "test/default-model", Name: "Default", Provider: "Test", CostPerMessage: 1},
		{ID: premiumModel, Name: "Premium", Provider: "Test", CostPerMessage: 5},
	}); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	user, err := store.CreateUser(ctx, "alice", "alice@example.com", "hash", false)
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	chat, err := store.CreateChat(ctx, user.ID, db.ModeResearch, DefaultTitle(db.ModeResearch))
	if err != nil {
		t.Fatalf("CreateChat() error = %v", err)
	}

	ledger := credits.NewLedger(store, allowance)
	client := &testutil.MockModelClient{}
	service := NewChatService(store, ledger, reg, client, Options{
		DefaultModel: "test/default-model",
		Timeout:      time.Second,
	})

	return &fixture{store: store, ledger: ledger, client: client, service: service, userID: user.ID, chatID: chat.ID}
}

func (f *fixture) send(content, model string) (*SendMessageResult, error) {
	return f.service.SendMessage(context.Background(), SendMessageCommand{
		ChatID:  f.chatID,
		UserID:  f.userID,
		Content: content,
		ModelID: model,
	})
}

func (f *fixture) messages(t *testing.T) []db.Message {
	t.Helper()
	msgs, err := f.store.GetMessages(context.Background(), f.chatID)
	if err != nil {
		t.Fatalf("GetMessages() error = %v", err)
	}
	return msgs
}

func (f *fixture) used(t *testing.T) int {
	t.Helper()
	b, err := f.ledger.GetBalance(context.Background(), f.userID)
	if err != nil {
		t.Fatalf("GetBalance() error = %v", err)
	}
	return b.Used
}

func TestSendMessage_DeductsModelCost(t *testing.T) {
	f := newFixture(t, 100)

	result, err := f.send("Jelaskan metode penelitian kualitatif", premiumModel)
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if result.CreditsRemaining != 95 {
		t.Errorf("CreditsRemaining = %d, want 95", result.CreditsRemaining)
	}
	if result.Cost != 5 || result.Model != premiumModel {
		t.Errorf("Cost/Model = %d/%s, want 5/%s", result.Cost, result.Model, premiumModel)
	}
	if result.AssistantMessage.Content != "mock reply" {
		t.Errorf("AssistantMessage.Content = %q", result.AssistantMessage.Content)
	}
	if result.AssistantMessage.ModelID == nil || *result.AssistantMessage.ModelID != premiumModel {
		t.Errorf("assistant message should be tagged with %s", premiumModel)
	}

	result, err = f.send("Lanjutkan", premiumModel)
	if err != nil {
		t.Fatalf("second SendMessage() error = %v", err)
	}
	if result.CreditsRemaining != 90 {
		t.Errorf("CreditsRemaining = %d, want 90", result.CreditsRemaining)
	}
}

func TestSendMessage_HistoryPassedInOrder(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()
	if _, err := f.store.AppendMessage(ctx, f.chatID, db.RoleUser, "A", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := f.store.AppendMessage(ctx, f.chatID, db.RoleAssistant, "B", nil); err != nil {
		t.Fatal(err)
	}

	if _, err := f.send("C", ""); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	calls := f.client.Calls()
	if len(calls) != 1 {
		t.Fatalf("model called %d times, want 1", len(calls))
	}
	want := []llm.Message{
		{Role: db.RoleUser, Content: "A"},
		{Role: db.RoleAssistant, Content: "B"},
		{Role: db.RoleUser, Content: "C"},
	}
	got := calls[0].History
	if len(got) != len(want) {
		t.Fatalf("history length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("history[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
	if calls[0].ModelID != "test/default-model" {
		t.Errorf("ModelID = %q, want default model", calls[0].ModelID)
	}
	if calls[0].SystemPrompt != llm.SystemPrompt(db.ModeResearch) {
		t.Error("system prompt should follow the chat mode")
	}
}

func TestSendMessage_ModeOverridesSystemPrompt(t *testing.T) {
	f := newFixture(t, 100)

	_, err := f.service.SendMessage(context.Background(), SendMessageCommand{
		ChatID: f.chatID, UserID: f.userID, Content: "Periksa draf saya", Mode: db.ModeEdit,
	})
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if got := f.client.Calls()[0].SystemPrompt; got != llm.SystemPrompt(db.ModeEdit) {
		t.Error("explicit mode should select the edit prompt")
	}
}

func TestSendMessage_HistoryLimit(t *testing.T) {
	f := newFixture(t, 100)
	f.service.opts.HistoryLimit = 2
	ctx := context.Background()
	for _, c := range []string{"A", "B", "C"} {
		if _, err := f.store.AppendMessage(ctx, f.chatID, db.RoleUser, c, nil); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := f.send("D", ""); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	got := f.client.Calls()[0].History
	if len(got) != 2 || got[0].Content != "C" || got[1].Content != "D" {
		t.Errorf("history = %+v, want [C D]", got)
	}
}

func TestSendMessage_ModelFailureKeepsUserMessage(t *testing.T) {
	f := newFixture(t, 100)
	f.client.CompleteFunc = func(ctx context.Context, _ string, _ []llm.Message, _ string) (string, error) {
		return "", &llm.UpstreamError{Code: 503, Message: "provider down", Retryable: true}
	}

	result, err := f.send("Halo", premiumModel)
	if result != nil {
		t.Error("result should be nil on upstream failure")
	}
	var upstream *llm.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("SendMessage() error = %v, want *llm.UpstreamError", err)
	}
	if upstream.Code != 503 {
		t.Errorf("Code = %d, want 503", upstream.Code)
	}

	msgs := f.messages(t)
	if len(msgs) != 1 || msgs[0].Role != db.RoleUser || msgs[0].Content != "Halo" {
		t.Errorf("messages = %+v, want only the user message", msgs)
	}
	if used := f.used(t); used != 0 {
		t.Errorf("used credits = %d, want 0", used)
	}
}

func TestSendMessage_PlainClientErrorBecomesUpstream(t *testing.T) {
	f := newFixture(t, 100)
	f.client.CompleteFunc = func(context.Context, string, []llm.Message, string) (string, error) {
		return "", errors.New("connection reset")
	}

	_, err := f.send("Halo", "")
	var upstream *llm.UpstreamError
	if !errors.As(err, &upstream) || !upstream.Retryable {
		t.Fatalf("SendMessage() error = %v, want retryable *llm.UpstreamError", err)
	}
}

func TestSendMessage_EmptyReplyIsUpstreamError(t *testing.T) {
	f := newFixture(t, 100)
	f.client.CompleteFunc = func(context.Context, string, []llm.Message, string) (string, error) {
		return "", nil
	}

	_, err := f.send("Halo", "")
	if !errors.Is(err, llm.ErrEmptyCompletion) {
		t.Fatalf("SendMessage() error = %v, want ErrEmptyCompletion", err)
	}
	if len(f.messages(t)) != 1 {
		t.Error("no assistant message should be stored for an empty reply")
	}
}

func TestSendMessage_Timeout(t *testing.T) {
	f := newFixture(t, 100)
	f.service.opts.Timeout = 20 * time.Millisecond
	f.client.CompleteFunc = func(ctx context.Context, _ string, _ []llm.Message, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}

	_, err := f.send("Halo", premiumModel)

	var upstream *llm.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("SendMessage() error = %v, want *llm.UpstreamError", err)
	}
	if upstream.Code != 504 || !upstream.Retryable {
		t.Errorf("got %+v, want retryable 504", upstream)
	}
	if msgs := f.messages(t); len(msgs) != 1 {
		t.Errorf("stored %d messages, want 1", len(msgs))
	}
	if used := f.used(t); used != 0 {
		t.Errorf("used credits = %d, want 0", used)
	}
}

func TestSendMessage_InsufficientCreditsPersistsNothing(t *testing.T) {
	f := newFixture(t, 3)
	if _, err := f.ledger.Deduct(context.Background(), f.userID, 3); err != nil {
		t.Fatal(err)
	}

	result, err := f.send("Halo", premiumModel)
	if result != nil {
		t.Error("result should be nil")
	}
	var insufficient *credits.InsufficientCreditsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("SendMessage() error = %v, want *credits.InsufficientCreditsError", err)
	}
	if insufficient.Remaining != 0 || insufficient.Required != 5 {
		t.Errorf("got %+v, want Required 5 Remaining 0", insufficient)
	}
	if msgs := f.messages(t); len(msgs) != 0 {
		t.Errorf("stored %d messages, want 0", len(msgs))
	}
	if calls := f.client.Calls(); len(calls) != 0 {
		t.Errorf("model called %d times, want 0", len(calls))
	}
}

func TestSendMessage_ForeignChatForbidden(t *testing.T) {
	f := newFixture(t, 100)
	other, err := f.store.CreateUser(context.Background(), "mallory", "m@example.com", "hash", false)
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.service.SendMessage(context.Background(), SendMessageCommand{
		ChatID: f.chatID, UserID: other.ID, Content: "Halo",
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("SendMessage() error = %v, want ErrForbidden", err)
	}
	if msgs := f.messages(t); len(msgs) != 0 {
		t.Errorf("stored %d messages, want 0", len(msgs))
	}
}

func TestSendMessage_UnknownChatForbidden(t *testing.T) {
	f := newFixture(t, 100)

	_, err := f.service.SendMessage(context.Background(), SendMessageCommand{
		ChatID: "does-not-exist", UserID: f.userID, Content: "Halo",
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("SendMessage() error = %v, want ErrForbidden", err)
	}
}

func TestSendMessage_UnknownModelChargesFallback(t *testing.T) {
	f := newFixture(t, 100)

	result, err := f.send("Halo", "nonexistent-model-id")
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if result.Cost != 1 || result.CreditsRemaining != 99 {
		t.Errorf("Cost/Remaining = %d/%d, want 1/99", result.Cost, result.CreditsRemaining)
	}
	if result.UserMessage.ModelID == nil || *result.UserMessage.ModelID != "nonexistent-model-id" {
		t.Error("user message should carry the requested model id")
	}
}

func TestSendMessage_SettlementShortfallReturnsReply(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	user, _ := store.CreateUser(ctx, "alice", "", "hash", false)
	chat, _ := store.CreateChat(ctx, user.ID, db.ModeCreate, "Buat Dokumen")

	ledger := &testutil.MockLedger{
		AuthorizeFunc: func(context.Context, string, int) (bool, credits.Balance, error) {
			return true, credits.Balance{Total: 5, Remaining: 5}, nil
		},
		DeductFunc: func(context.Context, string, int) (credits.Balance, error) {
			return credits.Balance{}, &credits.InsufficientCreditsError{Required: 5, Remaining: 2}
		},
	}
	service := NewChatService(store, ledger, testutil.FixedCost(5), &testutil.MockModelClient{}, Options{DefaultModel: "m"})

	result, err := service.SendMessage(ctx, SendMessageCommand{ChatID: chat.ID, UserID: user.ID, Content: "Buat outline"})

	var insufficient *credits.InsufficientCreditsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("SendMessage() error = %v, want *credits.InsufficientCreditsError", err)
	}
	if result == nil || result.AssistantMessage == nil || result.UserMessage == nil {
		t.Fatal("result with both messages should accompany a settlement shortfall")
	}
	if result.CreditsRemaining != 2 {
		t.Errorf("CreditsRemaining = %d, want 2", result.CreditsRemaining)
	}
	msgs, _ := store.GetMessages(ctx, chat.ID)
	if len(msgs) != 2 {
		t.Errorf("stored %d messages, want 2", len(msgs))
	}
}

func TestSendMessage_ConcurrentSendsNeverOverdraw(t *testing.T) {
	f := newFixture(t, 12)
	release := make(chan struct{})
	f.client.CompleteFunc = func(ctx context.Context, _ string, _ []llm.Message, _ string) (string, error) {
		<-release
		return "ok", nil
	}

	const senders = 5
	var wg sync.WaitGroup
	errs := make(chan error, senders)
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.send("Halo", premiumModel)
			errs <- err
		}()
	}
	// Let every sender pass the advisory check before any settles.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	refused := 0
	for err := range errs {
		var insufficient *credits.InsufficientCreditsError
		if errors.As(err, &insufficient) {
			refused++
		} else if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if refused == 0 {
		t.Error("an over-subscribed batch must refuse at least one settlement")
	}

	b, err := f.ledger.GetBalance(context.Background(), f.userID)
	if err != nil {
		t.Fatal(err)
	}
	if b.Used > b.Total || b.Used != 10 {
		t.Errorf("used = %d of %d, want 10", b.Used, b.Total)
	}
}

func TestSendMessage_RetitlesAfterFirstExchange(t *testing.T) {
	f := newFixture(t, 100)

	if _, err := f.send("Buatkan proposal tentang energi terbarukan", ""); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	chat, err := f.store.GetChat(context.Background(), f.chatID)
	if err != nil {
		t.Fatal(err)
	}
	if chat.Title != "Proposal Penelitian" {
		t.Errorf("Title = %q, want %q", chat.Title, "Proposal Penelitian")
	}

	if _, err := f.send("Tambahkan tentang pendidikan", ""); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	chat, _ = f.store.GetChat(context.Background(), f.chatID)
	if chat.Title != "Proposal Penelitian" {
		t.Errorf("title changed after later exchange: %q", chat.Title)
	}
}

func TestSendMessage_TitleFailureIgnored(t *testing.T) {
	now := time.Now()
	var appended []db.Message
	store := &testutil.MockChatStore{
		GetChatFunc: func(ctx context.Context, chatID string) (*db.Chat, error) {
			return &db.Chat{ID: chatID, UserID: "u1", Mode: db.ModeResearch, Title: "Riset Baru"}, nil
		},
		AppendMessageFunc: func(ctx context.Context, chatID, role, content string, modelID *string) (*db.Message, error) {
			m := db.Message{ID: role, Seq: int64(len(appended) + 1), ChatID: chatID, Role: role, Content: content, ModelID: modelID, CreatedAt: now}
			appended = append(appended, m)
			return &m, nil
		},
		GetMessagesFunc: func(ctx context.Context, chatID string) ([]db.Message, error) {
			return appended, nil
		},
		UpdateChatTitleFunc: func(ctx context.Context, chatID, title string) error {
			return errors.New("database is read-only")
		},
	}
	ledger := &testutil.MockLedger{
		AuthorizeFunc: func(context.Context, string, int) (bool, credits.Balance, error) {
			return true, credits.Balance{Total: 10, Remaining: 10}, nil
		},
		DeductFunc: func(context.Context, string, int) (credits.Balance, error) {
			return credits.Balance{Total: 10, Used: 1, Remaining: 9}, nil
		},
	}
	service := NewChatService(store, ledger, testutil.FixedCost(1), &testutil.MockModelClient{}, Options{DefaultModel: "m"})

	result, err := service.SendMessage(context.Background(), SendMessageCommand{ChatID: "c1", UserID: "u1", Content: "Pertanyaan pertama"})
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if result.CreditsRemaining != 9 {
		t.Errorf("CreditsRemaining = %d, want 9", result.CreditsRemaining)
	}
}

func TestGenerateTitle(t *testing.T) {
	tests := []struct {
		name    string
		content string
		mode    db.ChatMode
		want    string
	}{
		{"empty uses default", "   ", db.ModeEdit, "Edit Dokumen"},
		{"topic keyword", "Dampak perubahan iklim di pesisir", db.ModeResearch, "Riset Perubahan Iklim"},
		{"document type", "Tolong review skripsi saya", db.ModeEdit, "Skripsi"},
		{"first meaningful words", "buatkan outline mengenai blockchain perbankan", db.ModeCreate, "Dokumen Outline Blockchain"},
		{"short words fallback", "apa itu ai?", db.ModeResearch, "apa itu ai?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GenerateTitle(tt.content, tt.mode); got != tt.want {
				t.Errorf("GenerateTitle(%q) = %q, want %q", tt.content, got, tt.want)
			}
		})
	}

	long := strings.Repeat("ab ", 20)
	if got := GenerateTitle(long, db.ModeResearch); !strings.HasSuffix(got, "...") {
		t.Errorf("long fallback title should be truncated, got %q", got)
	}
}
