package service

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"docflow/api/internal/config"
	"docflow/api/internal/ids"
	"docflow/api/internal/jobs"
	"docflow/api/internal/models"
	"docflow/api/internal/repository"
)

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		Environment: "test",
		Security: config.SecurityConfig{
			JWTSecret:     "service-test-secret",
			JWTAccessTTL:  30 * time.Minute,
			JWTRefreshTTL: 7 * 24 * time.Hour,
		},
		Upload: config.UploadConfig{
			MaxSizeBytes: 5 * 1024 * 1024,
			AllowedTypes: []string{"application/pdf", "image/jpeg", "image/png"},
		},
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]models.User)}
}

func (f *fakeUserStore) Create(_ context.Context, user models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == user.Email {
			return repository.ErrEmailTaken
		}
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserStore) FindByEmail(_ context.Context, email string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (f *fakeUserStore) GetByID(_ context.Context, id string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeUserStore) List(_ context.Context) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	users := make([]models.User, 0, len(f.users))
	for _, user := range f.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return users, nil
}

func (f *fakeUserStore) UpdateRole(_ context.Context, id string, role models.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.Role = role
	f.users[id] = user
	return nil
}

func (f *fakeUserStore) UpdatePassword(_ context.Context, id string, passwordHash []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.PasswordHash = passwordHash
	f.users[id] = user
	return nil
}

func (f *fakeUserStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return repository.ErrUserNotFound
	}
	delete(f.users, id)
	return nil
}

// fakeDocumentStore mirrors the recording store's transition semantics:
// the row guard and the history append happen under one lock, all or
// nothing.
type fakeDocumentStore struct {
	mu      sync.Mutex
	docs    map[string]models.Document
	history []models.StatusHistoryEntry
}

func newFakeDocumentStore() *fakeDocumentStore {
	return &fakeDocumentStore{docs: make(map[string]models.Document)}
}

func (f *fakeDocumentStore) Create(_ context.Context, doc models.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[doc.ID] = doc
	return nil
}

func (f *fakeDocumentStore) GetByID(_ context.Context, id string) (models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return models.Document{}, repository.ErrDocumentNotFound
	}
	return doc, nil
}

func (f *fakeDocumentStore) ListByOwner(_ context.Context, ownerID string) ([]models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var docs []models.Document
	for _, doc := range f.docs {
		if doc.UploadedBy == ownerID {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func (f *fakeDocumentStore) List(_ context.Context, limit, offset int) ([]models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var docs []models.Document
	for _, doc := range f.docs {
		docs = append(docs, doc)
	}
	return docs, nil
}

func (f *fakeDocumentStore) Search(_ context.Context, filter repository.SearchFilter) ([]models.Document, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var docs []models.Document
	for _, doc := range f.docs {
		if filter.Status != "" && doc.Status != filter.Status {
			continue
		}
		if filter.CreatedAfter != nil && doc.CreatedAt.Before(*filter.CreatedAfter) {
			continue
		}
		if filter.CreatedBefore != nil && doc.CreatedAt.After(*filter.CreatedBefore) {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, len(docs), nil
}

func (f *fakeDocumentStore) ListApproved(_ context.Context, filename string, limit, offset int) ([]models.Document, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var docs []models.Document
	for _, doc := range f.docs {
		if doc.Status == models.DocumentStatusApproved {
			docs = append(docs, doc)
		}
	}
	return docs, len(docs), nil
}

func (f *fakeDocumentStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[id]; !ok {
		return repository.ErrDocumentNotFound
	}
	delete(f.docs, id)
	// cascade, matching the schema
	kept := f.history[:0]
	for _, entry := range f.history {
		if entry.DocumentID != id {
			kept = append(kept, entry)
		}
	}
	f.history = kept
	return nil
}

func (f *fakeDocumentStore) Transition(
	_ context.Context,
	docID string,
	target models.DocumentStatus,
	actorID string,
	comment *string,
) (models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, ok := f.docs[docID]
	if !ok || doc.Status != models.DocumentStatusPending {
		return models.Document{}, repository.ErrNotPending
	}

	now := time.Now().UTC()
	doc.Status = target
	doc.ApprovedBy = &actorID
	doc.ApprovalDate = &now
	doc.ApprovalComment = comment
	doc.UpdatedAt = now
	f.docs[docID] = doc

	f.history = append(f.history, models.StatusHistoryEntry{
		ID:         ids.NewSortable(),
		DocumentID: docID,
		Status:     target,
		ChangedBy:  actorID,
		Comment:    comment,
		CreatedAt:  now,
	})
	return doc, nil
}

func (f *fakeDocumentStore) ListByDocument(_ context.Context, documentID string) ([]models.StatusHistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries := make([]models.StatusHistoryEntry, 0)
	for _, entry := range f.history {
		if entry.DocumentID == documentID {
			entries = append(entries, entry)
		}
	}
	// newest first, matching the repository ordering
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID > entries[j].ID })
	return entries, nil
}

type fakeObjectSink struct {
	mu      sync.Mutex
	stored  map[string][]byte
	removed []string
	failPut bool
}

func newFakeObjectSink() *fakeObjectSink {
	return &fakeObjectSink{stored: make(map[string][]byte)}
}

func (f *fakeObjectSink) Bucket() string { return "test-bucket" }

func (f *fakeObjectSink) Store(_ context.Context, objectKey string, reader io.Reader, size int64, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPut {
		return io.ErrClosedPipe
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return err
	}
	f.stored[objectKey] = buf.Bytes()
	return nil
}

func (f *fakeObjectSink) Remove(_ context.Context, objectKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, objectKey)
	delete(f.stored, objectKey)
	return nil
}

// fakeEffects records what the service hands to the dispatcher.
type fakeEffects struct {
	mu     sync.Mutex
	events []jobs.TransitionEvent
	jobs   []jobs.Job
}

func (f *fakeEffects) TransitionCommitted(event jobs.TransitionEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeEffects) Schedule(job jobs.Job) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
}

func (f *fakeEffects) Events() []jobs.TransitionEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]jobs.TransitionEvent(nil), f.events...)
}
