package handlers

import (
	"mime"
	"net/http"
	"strings"
	"time"

	"mitra-ai/internal/app"
	"mitra-ai/internal/logger"
	"mitra-ai/internal/repository/db"
	documentService "mitra-ai/internal/service/document"
	"mitra-ai/pkg/validation"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// DocumentRequest is the body of document create and update requests.
// On update, absent fields are left untouched.
type DocumentRequest struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
	Type    *string `json:"type,omitempty"`
	ChatID  *string `json:"chat_id,omitempty"`
}

type DocumentInfo struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Content   string  `json:"content"`
	Type      string  `json:"type"`
	ChatID    *string `json:"chat_id"`
	WordCount int     `json:"word_count"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

type DocumentsResponse struct {
	Documents []DocumentInfo `json:"documents"`
}

// DocumentHandlers serves the caller's saved documents
type DocumentHandlers struct {
	validator       *validation.DocumentRequestValidator
	documentService *documentService.DocumentService
}

// NewDocumentHandlers creates a new DocumentHandlers
func NewDocumentHandlers(config *app.Config) *DocumentHandlers {
	return &DocumentHandlers{
		validator:       validation.NewDocumentRequestValidator(),
		documentService: config.DocumentService,
	}
}

// ListHandler returns the caller's documents, most recently updated first
func (dh *DocumentHandlers) ListHandler(w http.ResponseWriter, r *http.Request) {
	id := mustIdentity(r)

	docs, err := dh.documentService.List(r.Context(), id.UserID)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}

	infos := make([]DocumentInfo, 0, len(docs))
	for _, d := range docs {
		infos = append(infos, toDocumentInfo(d))
	}
	sendJSON(w, http.StatusOK, DocumentsResponse{Documents: infos})
}

// CreateHandler saves a new document for the caller
func (dh *DocumentHandlers) CreateHandler(w http.ResponseWriter, r *http.Request) {
	id := mustIdentity(r)

	var req DocumentRequest
	if err := decodeBody(w, r, &req); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in, err := dh.validator.ValidateCreate(toDocumentInput(req))
	if err != nil {
		sendError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	doc, err := dh.documentService.Create(r.Context(), documentService.CreateDocumentCommand{
		UserID:  id.UserID,
		ChatID:  in.ChatID,
		Title:   *in.Title,
		Content: *in.Content,
		Kind:    db.DocumentKind(*in.Kind),
	})
	if err != nil {
		sendServiceError(w, r, err)
		return
	}

	logger.FromRequest(r).WithFields(logrus.Fields{"user_id": id.UserID, "document_id": doc.ID, "kind": doc.Kind}).Info("Document created")
	sendJSON(w, http.StatusCreated, toDocumentInfo(*doc))
}

// GetHandler returns one of the caller's documents
func (dh *DocumentHandlers) GetHandler(w http.ResponseWriter, r *http.Request) {
	id := mustIdentity(r)

	doc, err := dh.documentService.Get(r.Context(), chi.URLParam(r, "documentID"), id.UserID)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, toDocumentInfo(*doc))
}

// DownloadHandler returns the document content as a plain text attachment
func (dh *DocumentHandlers) DownloadHandler(w http.ResponseWriter, r *http.Request) {
	id := mustIdentity(r)

	doc, err := dh.documentService.Get(r.Context(), chi.URLParam(r, "documentID"), id.UserID)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": downloadName(doc.Title)}))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(doc.Content)); err != nil {
		logger.FromRequest(r).WithError(err).Warn("Failed to write document download")
	}
}

// UpdateHandler applies a partial update to one of the caller's documents
func (dh *DocumentHandlers) UpdateHandler(w http.ResponseWriter, r *http.Request) {
	id := mustIdentity(r)
	documentID := chi.URLParam(r, "documentID")

	var req DocumentRequest
	if err := decodeBody(w, r, &req); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in, err := dh.validator.ValidateUpdate(toDocumentInput(req))
	if err != nil {
		sendError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	patch := db.DocumentPatch{Title: in.Title, Content: in.Content}
	if in.Kind != nil {
		kind := db.DocumentKind(*in.Kind)
		patch.Kind = &kind
	}

	doc, err := dh.documentService.Update(r.Context(), documentID, id.UserID, patch)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}

	logger.FromRequest(r).WithFields(logrus.Fields{"user_id": id.UserID, "document_id": documentID}).Info("Document updated")
	sendJSON(w, http.StatusOK, toDocumentInfo(*doc))
}

// DeleteHandler removes one of the caller's documents
func (dh *DocumentHandlers) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	id := mustIdentity(r)

	if err := dh.documentService.Delete(r.Context(), chi.URLParam(r, "documentID"), id.UserID); err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, DeleteResponse{Success: true, Message: "Document deleted successfully"})
}

func toDocumentInput(req DocumentRequest) validation.DocumentInput {
	return validation.DocumentInput{
		Title:   req.Title,
		Content: req.Content,
		Kind:    req.Type,
		ChatID:  req.ChatID,
	}
}

func toDocumentInfo(d db.Document) DocumentInfo {
	return DocumentInfo{
		ID:        d.ID,
		Title:     d.Title,
		Content:   d.Content,
		Type:      string(d.Kind),
		ChatID:    d.ChatID,
		WordCount: d.WordCount,
		CreatedAt: d.CreatedAt.Format(time.RFC3339),
		UpdatedAt: d.UpdatedAt.Format(time.RFC3339),
	}
}

// downloadName turns a title into a .txt file name without path separators
func downloadName(title string) string {
	name := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r < ' ' {
			return '_'
		}
		return r
	}, strings.TrimSpace(title))
	if name == "" {
		name = "document"
	}
	return name + ".txt"
}
