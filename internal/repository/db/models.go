package db

import "time"

// ChatMode selects the assistant persona for a chat
type ChatMode string

const (
	ModeResearch ChatMode = "research"
	ModeCreate   ChatMode = "create"
	ModeEdit     ChatMode = "edit"
)

// Valid reports whether m is one of the known modes
func (m ChatMode) Valid() bool {
	switch m {
	case ModeResearch, ModeCreate, ModeEdit:
		return true
	}
	return false
}

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// User represents a user in the database
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
}

// Chat represents a conversation owned by a single user
type Chat struct {
	ID        string
	UserID    string
	Mode      ChatMode
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message represents a message in a chat.
// Seq is the persisted append order and defines history order.
type Message struct {
	ID        string
	Seq       int64
	ChatID    string
	Role      string
	Content   string
	ModelID   *string
	CreatedAt time.Time
}

// ModelDescriptor describes a selectable language model and its price
type ModelDescriptor struct {
	ModelID        string
	DisplayName    string
	Provider       string
	CostPerMessage int
	IsActive       bool
	IsFree         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ModelPatch carries a partial update; nil fields are left untouched
type ModelPatch struct {
	DisplayName    *string
	Provider       *string
	CostPerMessage *int
	IsActive       *bool
	IsFree         *bool
}

// CreditBalance is a user's credit ledger row
type CreditBalance struct {
	UserID       string
	TotalCredits int
	UsedCredits  int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Remaining returns total minus used credits
func (b CreditBalance) Remaining() int {
	return b.TotalCredits - b.UsedCredits
}

// DocumentKind records where a document came from
type DocumentKind string

const (
	KindUploaded  DocumentKind = "uploaded"
	KindGenerated DocumentKind = "generated"
	KindAcademic  DocumentKind = "academic"
)

// Valid reports whether k is one of the known kinds
func (k DocumentKind) Valid() bool {
	switch k {
	case KindUploaded, KindGenerated, KindAcademic:
		return true
	}
	return false
}

// Document is a user's saved text, optionally produced from a chat.
// ChatID is cleared when the chat is deleted.
type Document struct {
	ID        string
	UserID    string
	ChatID    *string
	Title     string
	Content   string
	Kind      DocumentKind
	WordCount int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DocumentPatch carries a partial update; nil fields are left untouched
type DocumentPatch struct {
	Title     *string
	Content   *string
	Kind      *DocumentKind
	WordCount *int
}
