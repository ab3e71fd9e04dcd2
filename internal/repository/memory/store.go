package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"mitra-ai/internal/repository/db"

	"github.com/google/uuid"
)

// Ensure Store implements db.Database interface
var _ db.Database = (*Store)(nil)

// Store keeps all state in-process. Used for local runs and tests.
// A single mutex serializes writes, which makes DeductCredits atomic
// per user the same way the conditional UPDATE is in postgres.
type Store struct {
	mu       sync.RWMutex
	seq      int64
	users    map[string]db.User
	byName   map[string]string // username -> user ID
	chats    map[string]db.Chat
	messages map[string][]db.Message // chat ID -> messages in append order
	models   map[string]db.ModelDescriptor
	credits  map[string]db.CreditBalance
	docs     map[string]db.Document
	now      func() time.Time
}

// NewStore initializes an empty in-memory store
func NewStore() *Store {
	return &Store{
		users:    make(map[string]db.User),
		byName:   make(map[string]string),
		chats:    make(map[string]db.Chat),
		messages: make(map[string][]db.Message),
		models:   make(map[string]db.ModelDescriptor),
		credits:  make(map[string]db.CreditBalance),
		docs:     make(map[string]db.Document),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Ping always succeeds
func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

// Close is a no-op
func (s *Store) Close() error { return nil }

// CreateUser registers a user; usernames are unique
func (s *Store) CreateUser(ctx context.Context, username, email, passwordHash string, isAdmin bool) (*db.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byName[username]; exists {
		return nil, db.ErrAlreadyExists
	}
	u := db.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		IsAdmin:      isAdmin,
		CreatedAt:    s.now(),
	}
	s.users[u.ID] = u
	s.byName[username] = u.ID
	return &u, nil
}

// GetUserByUsername looks a user up by username
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*db.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[username]
	if !ok {
		return nil, db.ErrNotFound
	}
	u := s.users[id]
	return &u, nil
}

// GetUserByID looks a user up by ID
func (s *Store) GetUserByID(ctx context.Context, id string) (*db.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &u, nil
}

// CreateChat stores a new chat
func (s *Store) CreateChat(ctx context.Context, userID string, mode db.ChatMode, title string) (*db.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	c := db.Chat{
		ID:        uuid.New().String(),
		UserID:    userID,
		Mode:      mode,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.chats[c.ID] = c
	return &c, nil
}

// GetChat retrieves a chat by ID
func (s *Store) GetChat(ctx context.Context, chatID string) (*db.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chats[chatID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &c, nil
}

// GetChatsForUser returns a user's chats, most recently active first
func (s *Store) GetChatsForUser(ctx context.Context, userID string) ([]db.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := []db.Chat{}
	for _, c := range s.chats {
		if c.UserID == userID {
			res = append(res, c)
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		if res[i].UpdatedAt.Equal(res[j].UpdatedAt) {
			return res[i].ID < res[j].ID
		}
		return res[i].UpdatedAt.After(res[j].UpdatedAt)
	})
	return res, nil
}

// ChatBelongsToUser checks chat ownership
func (s *Store) ChatBelongsToUser(ctx context.Context, chatID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chats[chatID]
	return ok && c.UserID == userID, nil
}

// UpdateChatTitle replaces a chat title
func (s *Store) UpdateChatTitle(ctx context.Context, chatID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatID]
	if !ok {
		return db.ErrNotFound
	}
	c.Title = title
	c.UpdatedAt = s.now()
	s.chats[chatID] = c
	return nil
}

// DeleteChat removes a chat and its messages
func (s *Store) DeleteChat(ctx context.Context, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chats[chatID]; !ok {
		return db.ErrNotFound
	}
	delete(s.chats, chatID)
	delete(s.messages, chatID)
	for id, d := range s.docs {
		if d.ChatID != nil && *d.ChatID == chatID {
			d.ChatID = nil
			s.docs[id] = d
		}
	}
	return nil
}

// AppendMessage records a message with the next sequence number
func (s *Store) AppendMessage(ctx context.Context, chatID, role, content string, modelID *string) (*db.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatID]
	if !ok {
		return nil, db.ErrNotFound
	}
	s.seq++
	now := s.now()
	msg := db.Message{
		ID:        uuid.New().String(),
		Seq:       s.seq,
		ChatID:    chatID,
		Role:      role,
		Content:   content,
		ModelID:   copyString(modelID),
		CreatedAt: now,
	}
	s.messages[chatID] = append(s.messages[chatID], msg)
	c.UpdatedAt = now
	s.chats[chatID] = c
	return &msg, nil
}

// GetMessages returns a copy of a chat's messages in append order
func (s *Store) GetMessages(ctx context.Context, chatID string) ([]db.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.messages[chatID]
	res := make([]db.Message, len(src))
	copy(res, src)
	return res, nil
}

// ListModels returns every descriptor ordered by cost then ID
func (s *Store) ListModels(ctx context.Context) ([]db.ModelDescriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]db.ModelDescriptor, 0, len(s.models))
	for _, m := range s.models {
		res = append(res, m)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].CostPerMessage != res[j].CostPerMessage {
			return res[i].CostPerMessage < res[j].CostPerMessage
		}
		return res[i].ModelID < res[j].ModelID
	})
	return res, nil
}

// GetModel retrieves a descriptor by model ID
func (s *Store) GetModel(ctx context.Context, modelID string) (*db.ModelDescriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.models[modelID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &m, nil
}

// CreateModel inserts a descriptor
func (s *Store) CreateModel(ctx context.Context, model db.ModelDescriptor) (*db.ModelDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.models[model.ModelID]; exists {
		return nil, db.ErrAlreadyExists
	}
	now := s.now()
	model.CreatedAt = now
	model.UpdatedAt = now
	s.models[model.ModelID] = model
	return &model, nil
}

// UpdateModel applies the non-nil fields of patch
func (s *Store) UpdateModel(ctx context.Context, modelID string, patch db.ModelPatch) (*db.ModelDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.models[modelID]
	if !ok {
		return nil, db.ErrNotFound
	}
	if patch.DisplayName != nil {
		m.DisplayName = *patch.DisplayName
	}
	if patch.Provider != nil {
		m.Provider = *patch.Provider
	}
	if patch.CostPerMessage != nil {
		m.CostPerMessage = *patch.CostPerMessage
	}
	if patch.IsActive != nil {
		m.IsActive = *patch.IsActive
	}
	if patch.IsFree != nil {
		m.IsFree = *patch.IsFree
	}
	m.UpdatedAt = s.now()
	s.models[modelID] = m
	return &m, nil
}

// EnsureCredits returns the balance, creating it with defaultTotal if absent
func (s *Store) EnsureCredits(ctx context.Context, userID string, defaultTotal int) (*db.CreditBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.credits[userID]; ok {
		return &b, nil
	}
	if _, ok := s.users[userID]; !ok {
		return nil, db.ErrNotFound
	}
	now := s.now()
	b := db.CreditBalance{UserID: userID, TotalCredits: defaultTotal, CreatedAt: now, UpdatedAt: now}
	s.credits[userID] = b
	return &b, nil
}

// DeductCredits charges amount only if it fits the remaining balance
func (s *Store) DeductCredits(ctx context.Context, userID string, amount int) (*db.CreditBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.credits[userID]
	if !ok || b.UsedCredits+amount > b.TotalCredits {
		return nil, db.ErrInsufficientCredits
	}
	b.UsedCredits += amount
	b.UpdatedAt = s.now()
	s.credits[userID] = b
	return &b, nil
}

// AddCredits raises the total allowance
func (s *Store) AddCredits(ctx context.Context, userID string, amount int) (*db.CreditBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.credits[userID]
	if !ok {
		return nil, db.ErrNotFound
	}
	b.TotalCredits += amount
	b.UpdatedAt = s.now()
	s.credits[userID] = b
	return &b, nil
}

// CreateDocument stores a new document
func (s *Store) CreateDocument(ctx context.Context, doc db.Document) (*db.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	doc.ID = uuid.New().String()
	doc.ChatID = copyString(doc.ChatID)
	doc.CreatedAt = now
	doc.UpdatedAt = now
	s.docs[doc.ID] = doc
	return &doc, nil
}

// GetDocument retrieves a document by ID
func (s *Store) GetDocument(ctx context.Context, id string) (*db.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	d.ChatID = copyString(d.ChatID)
	return &d, nil
}

// GetDocumentsForUser returns a user's documents, most recently updated first
func (s *Store) GetDocumentsForUser(ctx context.Context, userID string) ([]db.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := []db.Document{}
	for _, d := range s.docs {
		if d.UserID == userID {
			d.ChatID = copyString(d.ChatID)
			res = append(res, d)
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		if res[i].UpdatedAt.Equal(res[j].UpdatedAt) {
			return res[i].ID < res[j].ID
		}
		return res[i].UpdatedAt.After(res[j].UpdatedAt)
	})
	return res, nil
}

// UpdateDocument applies a partial update
func (s *Store) UpdateDocument(ctx context.Context, id string, patch db.DocumentPatch) (*db.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	if patch.Title != nil {
		d.Title = *patch.Title
	}
	if patch.Content != nil {
		d.Content = *patch.Content
	}
	if patch.Kind != nil {
		d.Kind = *patch.Kind
	}
	if patch.WordCount != nil {
		d.WordCount = *patch.WordCount
	}
	d.UpdatedAt = s.now()
	s.docs[id] = d
	d.ChatID = copyString(d.ChatID)
	return &d, nil
}

// DeleteDocument removes a document
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return db.ErrNotFound
	}
	delete(s.docs, id)
	return nil
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
