package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yanqian/chat-assistant/internal/domain/qa"
	apperrors "github.com/yanqian/chat-assistant/pkg/errors"
)

// Handler wires the HTTP transport to the versioning engine.
type Handler struct {
	qaSvc  qa.Service
	logger *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(qaSvc qa.Service, logger *slog.Logger) *Handler {
	return &Handler{
		qaSvc:  qaSvc,
		logger: logger.With("component", "http.handler"),
	}
}

// ListQA returns question records, most recently used first. Supports
// optional search (case-insensitive substring on the question) and
// skip/limit pagination.
func (h *Handler) ListQA(c *gin.Context) {
	records, err := h.qaSvc.ListRecords(c.Request.Context())
	if err != nil {
		abortWithError(c, qaHTTPError(err))
		return
	}

	if search := strings.TrimSpace(c.Query("search")); search != "" {
		needle := strings.ToLower(search)
		filtered := records[:0]
		for _, record := range records {
			if strings.Contains(strings.ToLower(record.Question), needle) {
				filtered = append(filtered, record)
			}
		}
		records = filtered
	}

	total := len(records)
	skip, ok := queryInt(c, "skip", 0)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", total)
	if !ok {
		return
	}
	if skip > len(records) {
		skip = len(records)
	}
	records = records[skip:]
	if limit < len(records) {
		records = records[:limit]
	}

	c.JSON(http.StatusOK, gin.H{"records": records, "total": total})
}

func queryInt(c *gin.Context, name string, fallback int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "malformed "+name+" parameter", err))
		return 0, false
	}
	return value, true
}

// GetQA returns a single record including its full version history.
func (h *Handler) GetQA(c *gin.Context) {
	id, ok := recordID(c)
	if !ok {
		return
	}
	record, err := h.qaSvc.GetRecord(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, qaHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, record)
}

type updateAnswerRequest struct {
	Answer string `json:"answer" binding:"required"`
}

// UpdateAnswer replaces the current answer with an admin authored version.
func (h *Handler) UpdateAnswer(c *gin.Context) {
	id, ok := recordID(c)
	if !ok {
		return
	}
	var req updateAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	record, err := h.qaSvc.UpdateAnswer(c.Request.Context(), id, req.Answer)
	if err != nil {
		abortWithError(c, qaHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, record)
}

// ApproveQA flips the most recent chatgpt version to approved.
func (h *Handler) ApproveQA(c *gin.Context) {
	id, ok := recordID(c)
	if !ok {
		return
	}
	record, err := h.qaSvc.Approve(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, qaHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, record)
}

// DeleteQA removes a record and its history.
func (h *Handler) DeleteQA(c *gin.Context) {
	id, ok := recordID(c)
	if !ok {
		return
	}
	if err := h.qaSvc.Delete(c.Request.Context(), id); err != nil {
		abortWithError(c, qaHTTPError(err))
		return
	}
	c.Status(http.StatusNoContent)
}

// ClearCache drops every cached answer while leaving records intact.
func (h *Handler) ClearCache(c *gin.Context) {
	if err := h.qaSvc.ClearCache(c.Request.Context()); err != nil {
		abortWithError(c, qaHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

// Stats reports aggregate counters over the question store.
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.qaSvc.Statistics(c.Request.Context())
	if err != nil {
		abortWithError(c, qaHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, stats)
}

func recordID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "malformed record id", err))
		return uuid.Nil, false
	}
	return id, true
}

func qaHTTPError(err error) *HTTPError {
	status := http.StatusInternalServerError
	code := "qa_failed"
	switch {
	case apperrors.IsCode(err, "not_found"):
		status = http.StatusNotFound
		code = "not_found"
	case apperrors.IsCode(err, "invalid_input"):
		status = http.StatusBadRequest
		code = "invalid_request"
	case apperrors.IsCode(err, "nothing_to_approve"):
		status = http.StatusConflict
		code = "nothing_to_approve"
	case apperrors.IsCode(err, "llm_error"):
		status = http.StatusBadGateway
		code = "llm_error"
	}
	return NewHTTPError(status, code, errMessage(err), err)
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
