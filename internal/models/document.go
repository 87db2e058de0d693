package models

import "time"

type DocumentStatus string

const (
	DocumentStatusPending  DocumentStatus = "pending"
	DocumentStatusApproved DocumentStatus = "approved"
	DocumentStatusRejected DocumentStatus = "rejected"
)

func (s DocumentStatus) Valid() bool {
	switch s {
	case DocumentStatusPending, DocumentStatusApproved, DocumentStatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further status transition is defined.
func (s DocumentStatus) Terminal() bool {
	return s == DocumentStatusApproved || s == DocumentStatusRejected
}

type Document struct {
	ID              string
	Filename        string
	Bucket          string
	ObjectKey       string
	SizeBytes       int64
	ContentType     string
	Status          DocumentStatus
	UploadedBy      string
	ApprovedBy      *string
	ApprovalDate    *time.Time
	ApprovalComment *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// StatusHistoryEntry is an append-only audit record. One entry is written
// in the same transaction as every document status mutation; entries are
// never updated or deleted while the document exists.
type StatusHistoryEntry struct {
	ID         string
	DocumentID string
	Status     DocumentStatus
	ChangedBy  string
	Comment    *string
	CreatedAt  time.Time
}
