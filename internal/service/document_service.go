package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"docflow/api/internal/apperr"
	"docflow/api/internal/config"
	"docflow/api/internal/ids"
	"docflow/api/internal/jobs"
	"docflow/api/internal/models"
	"docflow/api/internal/repository"
)

// DocumentStore is the recording-store surface for documents.
// *repository.DocumentRepository satisfies it.
type DocumentStore interface {
	Create(ctx context.Context, doc models.Document) error
	GetByID(ctx context.Context, id string) (models.Document, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Document, error)
	List(ctx context.Context, limit, offset int) ([]models.Document, error)
	Search(ctx context.Context, filter repository.SearchFilter) ([]models.Document, int, error)
	ListApproved(ctx context.Context, filename string, limit, offset int) ([]models.Document, int, error)
	Delete(ctx context.Context, id string) error
	Transition(ctx context.Context, docID string, target models.DocumentStatus, actorID string, comment *string) (models.Document, error)
}

type HistoryStore interface {
	ListByDocument(ctx context.Context, documentID string) ([]models.StatusHistoryEntry, error)
}

// ObjectSink is the opaque byte sink documents are stored in.
// *storage.ObjectStore satisfies it.
type ObjectSink interface {
	Bucket() string
	Store(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error
	Remove(ctx context.Context, objectKey string) error
}

// EffectScheduler hands fire-and-forget side effects to the dispatcher.
// Scheduling never blocks and never fails the triggering call.
type EffectScheduler interface {
	TransitionCommitted(event jobs.TransitionEvent)
	Schedule(job jobs.Job)
}

type DocumentService struct {
	documents DocumentStore
	history   HistoryStore
	users     UserStore
	store     ObjectSink
	effects   EffectScheduler
	cfg       *config.AppConfig
	log       zerolog.Logger
}

func NewDocumentService(
	documents DocumentStore,
	history HistoryStore,
	users UserStore,
	store ObjectSink,
	effects EffectScheduler,
	cfg *config.AppConfig,
	log zerolog.Logger,
) *DocumentService {
	return &DocumentService{
		documents: documents,
		history:   history,
		users:     users,
		store:     store,
		effects:   effects,
		cfg:       cfg,
		log:       log,
	}
}

type UploadInput struct {
	Filename    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// Upload validates the file constraints, stores the bytes, and records a
// pending document. Constraint failures happen before any byte is
// persisted.
func (s *DocumentService) Upload(ctx context.Context, actor models.Principal, input UploadInput) (models.Document, error) {
	if input.Filename == "" || input.Reader == nil {
		return models.Document{}, apperr.Validation("file is required")
	}
	if !s.contentTypeAllowed(input.ContentType) {
		return models.Document{}, apperr.Validation(
			"invalid file type, allowed: " + strings.Join(s.cfg.Upload.AllowedTypes, ", "))
	}
	if input.Size > s.cfg.Upload.MaxSizeBytes {
		return models.Document{}, apperr.Validation(
			fmt.Sprintf("file exceeds maximum size of %d bytes", s.cfg.Upload.MaxSizeBytes))
	}

	docID := ids.New()
	objectKey := buildObjectKey(docID, input.Filename)

	if err := s.store.Store(ctx, objectKey, input.Reader, input.Size, input.ContentType); err != nil {
		return models.Document{}, fmt.Errorf("store file: %w", err)
	}

	doc := models.Document{
		ID:          docID,
		Filename:    input.Filename,
		Bucket:      s.store.Bucket(),
		ObjectKey:   objectKey,
		SizeBytes:   input.Size,
		ContentType: input.ContentType,
		Status:      models.DocumentStatusPending,
		UploadedBy:  actor.UserID,
	}
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	if err := s.documents.Create(ctx, doc); err != nil {
		s.scheduleObjectCleanup(objectKey)
		return models.Document{}, fmt.Errorf("save metadata: %w", err)
	}

	s.log.Info().
		Str("document_id", doc.ID).
		Str("user_id", actor.UserID).
		Msg("document uploaded")
	return doc, nil
}

func (s *DocumentService) ListMine(ctx context.Context, actor models.Principal) ([]models.Document, error) {
	return s.documents.ListByOwner(ctx, actor.UserID)
}

// Get returns a document to its owner or any admin.
func (s *DocumentService) Get(ctx context.Context, actor models.Principal, docID string) (models.Document, error) {
	doc, err := s.load(ctx, docID)
	if err != nil {
		return models.Document{}, err
	}
	if doc.UploadedBy != actor.UserID && !actor.IsAdmin() {
		return models.Document{}, apperr.Forbidden("not your document")
	}
	return doc, nil
}

func (s *DocumentService) ListAll(ctx context.Context, limit, offset int) ([]models.Document, error) {
	return s.documents.List(ctx, limit, offset)
}

type SearchInput struct {
	Status    string
	Filename  string
	StartDate string
	EndDate   string
	Limit     int
	Offset    int
}

type SearchResult struct {
	Documents []models.Document
	Total     int
}

func (s *DocumentService) Search(ctx context.Context, input SearchInput) (SearchResult, error) {
	filter := repository.SearchFilter{
		Filename: input.Filename,
		Limit:    input.Limit,
		Offset:   input.Offset,
	}
	if filter.Limit <= 0 {
		filter.Limit = 10
	}

	if input.Status != "" {
		status := models.DocumentStatus(input.Status)
		if !status.Valid() {
			return SearchResult{}, apperr.Validation("invalid status, must be pending, approved or rejected")
		}
		filter.Status = status
	}

	if input.StartDate != "" {
		start, err := time.Parse("2006-01-02", input.StartDate)
		if err != nil {
			return SearchResult{}, apperr.Validation("invalid start_date format, use YYYY-MM-DD")
		}
		filter.CreatedAfter = &start
	}
	if input.EndDate != "" {
		end, err := time.Parse("2006-01-02", input.EndDate)
		if err != nil {
			return SearchResult{}, apperr.Validation("invalid end_date format, use YYYY-MM-DD")
		}
		filter.CreatedBefore = &end
	}

	docs, total, err := s.documents.Search(ctx, filter)
	if err != nil {
		return SearchResult{}, err
	}
	return SearchResult{Documents: docs, Total: total}, nil
}

// ListApproved is the public read-only listing: only approved documents
// are ever visible without authentication.
func (s *DocumentService) ListApproved(ctx context.Context, filename string, limit, offset int) (SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}
	docs, total, err := s.documents.ListApproved(ctx, filename, limit, offset)
	if err != nil {
		return SearchResult{}, err
	}
	return SearchResult{Documents: docs, Total: total}, nil
}

// Delete removes a document. The owner or any admin may delete at any
// status; history rows go with the document (cascade), the dispatcher's
// audit stream is the trail that outlives it.
func (s *DocumentService) Delete(ctx context.Context, actor models.Principal, docID string) error {
	doc, err := s.load(ctx, docID)
	if err != nil {
		return err
	}
	if doc.UploadedBy != actor.UserID && !actor.IsAdmin() {
		return apperr.Forbidden("you can only delete your own documents")
	}

	if err := s.documents.Delete(ctx, docID); err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return apperr.NotFound("document not found")
		}
		return err
	}

	s.scheduleObjectCleanup(doc.ObjectKey)
	s.log.Info().
		Str("document_id", docID).
		Str("actor_id", actor.UserID).
		Msg("document deleted")
	return nil
}

// Approve moves a pending document to approved.
func (s *DocumentService) Approve(ctx context.Context, actor models.User, docID string, comment *string) (models.Document, error) {
	return s.transition(ctx, actor, docID, models.DocumentStatusApproved, comment)
}

// Reject moves a pending document to rejected.
func (s *DocumentService) Reject(ctx context.Context, actor models.User, docID string, comment *string) (models.Document, error) {
	return s.transition(ctx, actor, docID, models.DocumentStatusRejected, comment)
}

// transition runs the state machine: guard on pending, atomically update
// the document and append its history entry, then hand the side-effect
// jobs to the dispatcher. The dispatcher is only reached after the
// transaction committed, and is never awaited.
func (s *DocumentService) transition(
	ctx context.Context,
	actor models.User,
	docID string,
	target models.DocumentStatus,
	comment *string,
) (models.Document, error) {
	doc, err := s.load(ctx, docID)
	if err != nil {
		return models.Document{}, err
	}
	if doc.Status != models.DocumentStatusPending {
		return models.Document{}, apperr.InvalidTransition(string(doc.Status), transitionAction(target))
	}

	updated, err := s.documents.Transition(ctx, docID, target, actor.ID, comment)
	if err != nil {
		if errors.Is(err, repository.ErrNotPending) {
			// lost the race: a concurrent transition committed first
			if current, loadErr := s.documents.GetByID(ctx, docID); loadErr == nil {
				return models.Document{}, apperr.InvalidTransition(string(current.Status), transitionAction(target))
			}
			return models.Document{}, apperr.NotFound("document not found")
		}
		return models.Document{}, err
	}

	event := jobs.TransitionEvent{
		DocumentID: updated.ID,
		Filename:   updated.Filename,
		Status:     updated.Status,
		ActorID:    actor.ID,
		ActorEmail: actor.Email,
		OwnerID:    updated.UploadedBy,
		Comment:    comment,
	}
	if owner, err := s.users.GetByID(ctx, updated.UploadedBy); err == nil {
		event.OwnerEmail = owner.Email
	}
	s.effects.TransitionCommitted(event)

	s.log.Info().
		Str("document_id", docID).
		Str("status", string(target)).
		Str("actor_id", actor.ID).
		Msg("document transitioned")
	return updated, nil
}

// History returns the audit trail, newest first. A document still pending
// has an empty history.
func (s *DocumentService) History(ctx context.Context, docID string) (models.Document, []models.StatusHistoryEntry, error) {
	doc, err := s.load(ctx, docID)
	if err != nil {
		return models.Document{}, nil, err
	}
	entries, err := s.history.ListByDocument(ctx, docID)
	if err != nil {
		return models.Document{}, nil, err
	}
	return doc, entries, nil
}

func (s *DocumentService) load(ctx context.Context, docID string) (models.Document, error) {
	doc, err := s.documents.GetByID(ctx, docID)
	if err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return models.Document{}, apperr.NotFound("document not found")
		}
		return models.Document{}, err
	}
	return doc, nil
}

func (s *DocumentService) contentTypeAllowed(contentType string) bool {
	for _, allowed := range s.cfg.Upload.AllowedTypes {
		if strings.EqualFold(strings.TrimSpace(allowed), contentType) {
			return true
		}
	}
	return false
}

func (s *DocumentService) scheduleObjectCleanup(objectKey string) {
	store := s.store
	s.effects.Schedule(jobs.Job{
		Name: "storage-cleanup",
		Run: func(ctx context.Context) error {
			return store.Remove(ctx, objectKey)
		},
	})
}

func buildObjectKey(docID, filename string) string {
	datePrefix := time.Now().UTC().Format("2006/01/02")
	ext := path.Ext(filename)
	return path.Join(datePrefix, docID+ext)
}

func transitionAction(target models.DocumentStatus) string {
	if target == models.DocumentStatusApproved {
		return "approve"
	}
	return "reject"
}
