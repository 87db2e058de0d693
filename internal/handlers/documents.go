package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"docflow/api/internal/apperr"
	"docflow/api/internal/middleware"
	"docflow/api/internal/models"
	"docflow/api/internal/service"
)

type documentResponse struct {
	ID              string     `json:"id"`
	Filename        string     `json:"filename"`
	Status          string     `json:"status"`
	SizeBytes       int64      `json:"sizeBytes"`
	ContentType     string     `json:"contentType"`
	UploadedBy      string     `json:"uploadedBy"`
	ApprovedBy      *string    `json:"approvedBy,omitempty"`
	ApprovalDate    *time.Time `json:"approvalDate,omitempty"`
	ApprovalComment *string    `json:"approvalComment,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

func toDocumentResponse(doc models.Document) documentResponse {
	return documentResponse{
		ID:              doc.ID,
		Filename:        doc.Filename,
		Status:          string(doc.Status),
		SizeBytes:       doc.SizeBytes,
		ContentType:     doc.ContentType,
		UploadedBy:      doc.UploadedBy,
		ApprovedBy:      doc.ApprovedBy,
		ApprovalDate:    doc.ApprovalDate,
		ApprovalComment: doc.ApprovalComment,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}
}

func toDocumentResponses(docs []models.Document) []documentResponse {
	resp := make([]documentResponse, 0, len(docs))
	for _, doc := range docs {
		resp = append(resp, toDocumentResponse(doc))
	}
	return resp
}

func (h HandlerSet) UploadDocument(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		h.respondError(c, apperr.Unauthenticated("unauthorized"))
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		h.respondError(c, apperr.Validation("file is required"))
		return
	}
	defer file.Close()

	doc, err := h.documentService.Upload(c.Request.Context(), principal, service.UploadInput{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Reader:      file,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"document": toDocumentResponse(doc)})
}

func (h HandlerSet) MyDocuments(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		h.respondError(c, apperr.Unauthenticated("unauthorized"))
		return
	}

	docs, err := h.documentService.ListMine(c.Request.Context(), principal)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": toDocumentResponses(docs)})
}

func (h HandlerSet) DeleteDocument(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		h.respondError(c, apperr.Unauthenticated("unauthorized"))
		return
	}

	if err := h.documentService.Delete(c.Request.Context(), principal, c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) ListDocuments(c *gin.Context) {
	limit, offset := pagination(c, 50, 200)

	docs, err := h.documentService.ListAll(c.Request.Context(), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": toDocumentResponses(docs)})
}

func (h HandlerSet) GetDocument(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		h.respondError(c, apperr.Unauthenticated("unauthorized"))
		return
	}

	doc, err := h.documentService.Get(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"document": toDocumentResponse(doc)})
}

func (h HandlerSet) SearchDocuments(c *gin.Context) {
	limit, offset := pagination(c, 10, 100)

	result, err := h.documentService.Search(c.Request.Context(), service.SearchInput{
		Status:    c.Query("status"),
		Filename:  c.Query("search"),
		StartDate: c.Query("startDate"),
		EndDate:   c.Query("endDate"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":     result.Total,
		"count":     len(result.Documents),
		"documents": toDocumentResponses(result.Documents),
	})
}

type approvalRequest struct {
	Comment *string `json:"comment"`
}

func (h HandlerSet) ApproveDocument(c *gin.Context) {
	h.transitionDocument(c, models.DocumentStatusApproved)
}

func (h HandlerSet) RejectDocument(c *gin.Context) {
	h.transitionDocument(c, models.DocumentStatusRejected)
}

func (h HandlerSet) transitionDocument(c *gin.Context, target models.DocumentStatus) {
	actor, ok := middleware.UserFrom(c)
	if !ok {
		h.respondError(c, apperr.Unauthenticated("unauthorized"))
		return
	}

	// comment body is optional
	var req approvalRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.respondError(c, apperr.Validation(err.Error()))
		return
	}

	var (
		doc models.Document
		err error
	)
	if target == models.DocumentStatusApproved {
		doc, err = h.documentService.Approve(c.Request.Context(), actor, c.Param("id"), req.Comment)
	} else {
		doc, err = h.documentService.Reject(c.Request.Context(), actor, c.Param("id"), req.Comment)
	}
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"document": toDocumentResponse(doc)})
}

type historyEntryResponse struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	ChangedBy string    `json:"changedBy"`
	Comment   *string   `json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (h HandlerSet) DocumentHistory(c *gin.Context) {
	doc, entries, err := h.documentService.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := make([]historyEntryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, historyEntryResponse{
			ID:        entry.ID,
			Status:    string(entry.Status),
			ChangedBy: entry.ChangedBy,
			Comment:   entry.Comment,
			CreatedAt: entry.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"documentId":    doc.ID,
		"filename":      doc.Filename,
		"currentStatus": string(doc.Status),
		"historyCount":  len(resp),
		"history":       resp,
	})
}

func (h HandlerSet) ListApprovedDocuments(c *gin.Context) {
	limit, offset := pagination(c, 10, 100)

	result, err := h.documentService.ListApproved(c.Request.Context(), c.Query("search"), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":     result.Total,
		"count":     len(result.Documents),
		"documents": toDocumentResponses(result.Documents),
	})
}

func pagination(c *gin.Context, defaultLimit, maxLimit int) (int, int) {
	limit := defaultLimit
	offset := 0

	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= maxLimit {
			limit = v
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			offset = v
		}
	}
	return limit, offset
}
