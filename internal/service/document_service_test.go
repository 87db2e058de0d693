package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docflow/api/internal/apperr"
	"docflow/api/internal/models"
)

type documentFixture struct {
	svc     *DocumentService
	users   *fakeUserStore
	docs    *fakeDocumentStore
	sink    *fakeObjectSink
	effects *fakeEffects
	owner   models.User
	admin   models.User
}

func newDocumentFixture(t *testing.T) *documentFixture {
	t.Helper()
	users := newFakeUserStore()
	docs := newFakeDocumentStore()
	sink := newFakeObjectSink()
	effects := &fakeEffects{}

	svc := NewDocumentService(docs, docs, users, sink, effects, testConfig(), testLogger())

	return &documentFixture{
		svc:     svc,
		users:   users,
		docs:    docs,
		sink:    sink,
		effects: effects,
		owner:   seedUser(t, users, "owner-1", models.RoleUser),
		admin:   seedUser(t, users, "admin-1", models.RoleAdmin),
	}
}

func (f *documentFixture) ownerPrincipal() models.Principal {
	return models.Principal{UserID: f.owner.ID, Role: models.RoleUser}
}

func (f *documentFixture) adminPrincipal() models.Principal {
	return models.Principal{UserID: f.admin.ID, Role: models.RoleAdmin}
}

func (f *documentFixture) upload(t *testing.T) models.Document {
	t.Helper()
	doc, err := f.svc.Upload(context.Background(), f.ownerPrincipal(), UploadInput{
		Filename:    "report.pdf",
		ContentType: "application/pdf",
		Size:        1024,
		Reader:      strings.NewReader(strings.Repeat("x", 1024)),
	})
	require.NoError(t, err)
	return doc
}

func TestUploadCreatesPendingDocument(t *testing.T) {
	f := newDocumentFixture(t)
	doc := f.upload(t)

	assert.Equal(t, models.DocumentStatusPending, doc.Status)
	assert.Equal(t, f.owner.ID, doc.UploadedBy)
	assert.Equal(t, "test-bucket", doc.Bucket)
	assert.Contains(t, f.sink.stored, doc.ObjectKey, "bytes must be in the sink")

	history, err := f.docs.ListByDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Empty(t, history, "a document that never transitioned has no history")
}

func TestUploadRejectsDisallowedType(t *testing.T) {
	f := newDocumentFixture(t)

	_, err := f.svc.Upload(context.Background(), f.ownerPrincipal(), UploadInput{
		Filename:    "malware.exe",
		ContentType: "application/octet-stream",
		Size:        10,
		Reader:      strings.NewReader("MZ"),
	})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Empty(t, f.sink.stored, "nothing may be persisted on a constraint failure")
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	f := newDocumentFixture(t)

	_, err := f.svc.Upload(context.Background(), f.ownerPrincipal(), UploadInput{
		Filename:    "big.pdf",
		ContentType: "application/pdf",
		Size:        6 * 1024 * 1024,
		Reader:      strings.NewReader("does not matter"),
	})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Empty(t, f.sink.stored)
}

func TestApprovePendingDocument(t *testing.T) {
	f := newDocumentFixture(t)
	doc := f.upload(t)
	comment := "ok"

	approved, err := f.svc.Approve(context.Background(), f.admin, doc.ID, &comment)
	require.NoError(t, err)

	assert.Equal(t, models.DocumentStatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, f.admin.ID, *approved.ApprovedBy)
	require.NotNil(t, approved.ApprovalComment)
	assert.Equal(t, "ok", *approved.ApprovalComment)
	require.NotNil(t, approved.ApprovalDate)

	history, err := f.docs.ListByDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Len(t, history, 1, "exactly one history entry per transition")
	assert.Equal(t, models.DocumentStatusApproved, history[0].Status)
	assert.Equal(t, f.admin.ID, history[0].ChangedBy)

	events := f.effects.Events()
	require.Len(t, events, 1, "one committed transition, one job hand-off")
	assert.Equal(t, doc.ID, events[0].DocumentID)
	assert.Equal(t, f.owner.Email, events[0].OwnerEmail)
	assert.Equal(t, f.admin.Email, events[0].ActorEmail)
}

func TestTerminalStatesAreFinal(t *testing.T) {
	f := newDocumentFixture(t)
	doc := f.upload(t)
	comment := "ok"

	_, err := f.svc.Approve(context.Background(), f.admin, doc.ID, &comment)
	require.NoError(t, err)

	// approved → rejected is not a legal transition
	_, err = f.svc.Reject(context.Background(), f.admin, doc.ID, nil)
	assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err))
	assert.Contains(t, apperr.MessageOf(err), "approved")

	current, getErr := f.docs.GetByID(context.Background(), doc.ID)
	require.NoError(t, getErr)
	assert.Equal(t, models.DocumentStatusApproved, current.Status, "document unchanged")

	history, histErr := f.docs.ListByDocument(context.Background(), doc.ID)
	require.NoError(t, histErr)
	assert.Len(t, history, 1, "history unchanged")

	assert.Len(t, f.effects.Events(), 1, "no side effects for a refused transition")
}

func TestRejectRecordsHistory(t *testing.T) {
	f := newDocumentFixture(t)
	doc := f.upload(t)
	reason := "illegible scan"

	rejected, err := f.svc.Reject(context.Background(), f.admin, doc.ID, &reason)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusRejected, rejected.Status)

	history, err := f.docs.ListByDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.DocumentStatusRejected, history[0].Status)
	require.NotNil(t, history[0].Comment)
	assert.Equal(t, reason, *history[0].Comment)
}

// staleReadStore serves one read with a stale pending status, simulating
// a concurrent transition committing between the guard read and the
// store update.
type staleReadStore struct {
	*fakeDocumentStore
	staleReads int
}

func (s *staleReadStore) GetByID(ctx context.Context, id string) (models.Document, error) {
	doc, err := s.fakeDocumentStore.GetByID(ctx, id)
	if err == nil && s.staleReads > 0 {
		s.staleReads--
		doc.Status = models.DocumentStatusPending
	}
	return doc, err
}

func TestConcurrentTransitionLoserFails(t *testing.T) {
	f := newDocumentFixture(t)
	doc := f.upload(t)

	_, err := f.docs.Transition(context.Background(), doc.ID, models.DocumentStatusRejected, f.admin.ID, nil)
	require.NoError(t, err)

	racey := &staleReadStore{fakeDocumentStore: f.docs, staleReads: 1}
	svc := NewDocumentService(racey, racey, f.users, f.sink, f.effects, testConfig(), testLogger())

	// guard read sees pending, the store refuses the update, and the
	// error names the status that actually won
	_, err = svc.Approve(context.Background(), f.admin, doc.ID, nil)
	assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err))
	assert.Contains(t, apperr.MessageOf(err), "rejected")

	history, histErr := f.docs.ListByDocument(context.Background(), doc.ID)
	require.NoError(t, histErr)
	assert.Len(t, history, 1, "only the winning transition is recorded")
}

func TestTransitionUnknownDocument(t *testing.T) {
	f := newDocumentFixture(t)

	_, err := f.svc.Approve(context.Background(), f.admin, "ghost", nil)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestGetEnforcesOwnership(t *testing.T) {
	f := newDocumentFixture(t)
	doc := f.upload(t)
	stranger := seedUser(t, f.users, "stranger-1", models.RoleUser)

	_, err := f.svc.Get(context.Background(), models.Principal{UserID: stranger.ID, Role: models.RoleUser}, doc.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	// owner and admin both read fine
	_, err = f.svc.Get(context.Background(), f.ownerPrincipal(), doc.ID)
	assert.NoError(t, err)
	_, err = f.svc.Get(context.Background(), f.adminPrincipal(), doc.ID)
	assert.NoError(t, err)
}

func TestDeleteEnforcesOwnership(t *testing.T) {
	f := newDocumentFixture(t)
	doc := f.upload(t)
	stranger := seedUser(t, f.users, "stranger-1", models.RoleUser)

	err := f.svc.Delete(context.Background(), models.Principal{UserID: stranger.ID, Role: models.RoleUser}, doc.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	err = f.svc.Delete(context.Background(), f.ownerPrincipal(), doc.ID)
	assert.NoError(t, err)

	_, err = f.svc.Get(context.Background(), f.ownerPrincipal(), doc.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestDeleteCascadesHistory(t *testing.T) {
	f := newDocumentFixture(t)
	doc := f.upload(t)

	_, err := f.svc.Approve(context.Background(), f.admin, doc.ID, nil)
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(context.Background(), f.adminPrincipal(), doc.ID))

	history, err := f.docs.ListByDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Empty(t, history, "history rows go with the document")
}

func TestHistoryOrderNewestFirst(t *testing.T) {
	f := newDocumentFixture(t)
	first := f.upload(t)
	second := f.upload(t)

	_, err := f.svc.Approve(context.Background(), f.admin, first.ID, nil)
	require.NoError(t, err)
	_, err = f.svc.Reject(context.Background(), f.admin, second.ID, nil)
	require.NoError(t, err)

	doc, entries, err := f.svc.History(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, doc.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, models.DocumentStatusApproved, entries[0].Status)
}

func TestSearchValidatesFilters(t *testing.T) {
	f := newDocumentFixture(t)

	_, err := f.svc.Search(context.Background(), SearchInput{Status: "archived"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = f.svc.Search(context.Background(), SearchInput{StartDate: "01-02-2026"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = f.svc.Search(context.Background(), SearchInput{EndDate: "soon"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestSearchFiltersByStatus(t *testing.T) {
	f := newDocumentFixture(t)
	doc := f.upload(t)
	f.upload(t)

	_, err := f.svc.Approve(context.Background(), f.admin, doc.ID, nil)
	require.NoError(t, err)

	result, err := f.svc.Search(context.Background(), SearchInput{Status: "approved"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)
	require.Len(t, result.Documents, 1)
	assert.Equal(t, doc.ID, result.Documents[0].ID)
}

func TestDeleteSchedulesStorageCleanup(t *testing.T) {
	f := newDocumentFixture(t)
	doc := f.upload(t)

	require.NoError(t, f.svc.Delete(context.Background(), f.ownerPrincipal(), doc.ID))

	require.Len(t, f.effects.jobs, 1)
	assert.Equal(t, "storage-cleanup", f.effects.jobs[0].Name)

	require.NoError(t, f.effects.jobs[0].Run(context.Background()))
	assert.NotContains(t, f.sink.stored, doc.ObjectKey)
	assert.Contains(t, f.sink.removed, doc.ObjectKey)
}

func TestUploadStoreFailure(t *testing.T) {
	f := newDocumentFixture(t)
	f.sink.failPut = true

	_, err := f.svc.Upload(context.Background(), f.ownerPrincipal(), UploadInput{
		Filename:    "report.pdf",
		ContentType: "application/pdf",
		Size:        64,
		Reader:      strings.NewReader(strings.Repeat("x", 64)),
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))

	docs, listErr := f.docs.ListByOwner(context.Background(), f.owner.ID)
	require.NoError(t, listErr)
	assert.Empty(t, docs, "no metadata row without the bytes")
}

func TestPublicListingOnlyApproved(t *testing.T) {
	f := newDocumentFixture(t)
	approvedDoc := f.upload(t)
	f.upload(t) // stays pending

	_, err := f.svc.Approve(context.Background(), f.admin, approvedDoc.ID, nil)
	require.NoError(t, err)

	result, err := f.svc.ListApproved(context.Background(), "", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)
	require.Len(t, result.Documents, 1)
	assert.Equal(t, approvedDoc.ID, result.Documents[0].ID)
}
