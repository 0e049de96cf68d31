package wine

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// Archiver copies an uploaded wine-list file to object storage for
// audit and reprocessing. Optional; a nil archiver skips archival.
type Archiver interface {
	Upload(ctx context.Context, key string, body io.Reader) (string, error)
}

type Handler struct {
	service *Service
	archive Archiver
}

func NewHandler(service *Service, archive Archiver) *Handler {
	return &Handler{service: service, archive: archive}
}

// --------------------------------------------------
// START INGESTION (JSON BODY OR MULTIPART FILE)
// --------------------------------------------------
func (h *Handler) StartIngestion(c *gin.Context) {
	text, filename, err := readListText(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	handle, err := h.service.StartIngestion(c.Request.Context(), text)
	if err != nil {
		c.JSON(statusFor(err), gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	if h.archive != nil && filename != "" {
		key := "wine-lists/" + handle + strings.ToLower(filepath.Ext(filename))
		if _, err := h.archive.Upload(
			c.Request.Context(), key, strings.NewReader(text),
		); err != nil {
			// archival is best effort, never fails the request
			log.Printf("WINE_LIST_ARCHIVE_FAILED handle=%s err=%v", handle, err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"handle":  handle,
		"message": "Wine list accepted. Poll progress for status.",
	})
}

func readListText(c *gin.Context) (text, filename string, err error) {
	contentType := c.ContentType()

	if strings.HasPrefix(contentType, "multipart/form-data") {
		file, header, err := c.Request.FormFile("file")
		if err != nil {
			return "", "", errors.New("file is required")
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return "", "", errors.New("could not read uploaded file")
		}
		return string(data), header.Filename, nil
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := c.BindJSON(&req); err != nil {
		return "", "", errors.New("text is required")
	}
	return req.Text, "", nil
}

// --------------------------------------------------
// PROGRESS / RESULT POLLING
// --------------------------------------------------
func (h *Handler) GetProgress(c *gin.Context) {
	progress, err := h.service.GetProgress(c.Param("handle"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, progress)
}

func (h *Handler) GetResult(c *gin.Context) {
	result, err := h.service.GetResult(c.Param("handle"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// --------------------------------------------------
// CANCEL A RUNNING INGESTION
// --------------------------------------------------
func (h *Handler) Cancel(c *gin.Context) {
	handle := c.Param("handle")

	if err := h.service.Cancel(handle); err != nil {
		c.JSON(statusFor(err), gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Cancellation requested.",
	})
}

// --------------------------------------------------
// SYNCHRONOUS SINGLE-LINE ANALYSIS
// --------------------------------------------------
func (h *Handler) Analyze(c *gin.Context) {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "text is required",
		})
		return
	}

	stored, err := h.service.AnalyzeOne(c.Request.Context(), req.Text)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "wine": stored})
}

// --------------------------------------------------
// STORED WINE READS
// --------------------------------------------------
func (h *Handler) ListWines(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	search := c.Query("search")

	result, err := h.service.ListWines(c.Request.Context(), page, pageSize, search)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) GetWine(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "invalid wine id",
		})
		return
	}

	stored, err := h.service.GetWine(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stored)
}

// statusFor maps service errors to HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrTextTooShort),
		errors.Is(err, ErrNoLines),
		errors.Is(err, ErrLineTooShort):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotAWine):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrUnknownHandle),
		errors.Is(err, ErrNotFinished):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyFinished):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
