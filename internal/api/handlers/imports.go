// Package handlers implements the import and recipe HTTP endpoints.
package handlers

import (
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"recipe-importer/internal/core/extract"
	"recipe-importer/internal/core/jobs"
	"recipe-importer/internal/core/store"
	"recipe-importer/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler carries the queue and store shared by all endpoints.
type Handler struct {
	queue *jobs.Queue
	store *store.Store
}

// NewHandler creates the endpoint handler.
func NewHandler(queue *jobs.Queue, st *store.Store) *Handler {
	return &Handler{queue: queue, store: st}
}

// ownerRef extracts the acting user. Imports always run on a worker, so the
// owner has to travel with the job.
func ownerRef(c *gin.Context) (string, bool) {
	owner := strings.TrimSpace(c.GetHeader("X-User-ID"))
	if owner == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "X-User-ID header is required",
			"code":  "MISSING_USER",
		})
		return "", false
	}
	return owner, true
}

func (h *Handler) enqueue(c *gin.Context, payload *jobs.Payload) {
	id, err := h.queue.Enqueue(c.Request.Context(), payload)
	if err != nil {
		common.LogError("Failed to enqueue import",
			zap.String("flow", payload.Flow),
			zap.Error(err),
		)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Import queue is unavailable",
			"code":  "QUEUE_UNAVAILABLE",
		})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": id})
}

type urlImportRequest struct {
	URL                string `json:"url" binding:"required"`
	TransformVegan     bool   `json:"transform_vegan"`
	CustomInstructions string `json:"custom_instruction"`
	CustomTitle        string `json:"custom_title"`
}

// StartURLImport queues a from-URL import.
func (h *Handler) StartURLImport(c *gin.Context) {
	owner, ok := ownerRef(c)
	if !ok {
		return
	}

	var req urlImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "url is required",
			"code":  "INVALID_REQUEST",
		})
		return
	}

	h.enqueue(c, &jobs.Payload{
		Flow:               jobs.FlowURL,
		UserRef:            owner,
		URL:                req.URL,
		TransformVegan:     req.TransformVegan,
		CustomInstructions: req.CustomInstructions,
		CustomTitle:        req.CustomTitle,
	})
}

// StartImageImport queues a from-image import from multipart photos.
func (h *Handler) StartImageImport(c *gin.Context) {
	owner, ok := ownerRef(c)
	if !ok {
		return
	}

	uploads, err := readUploads(c, "images")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "at least one image file is required",
			"code":  "INVALID_REQUEST",
		})
		return
	}

	h.enqueue(c, &jobs.Payload{
		Flow:               jobs.FlowImage,
		UserRef:            owner,
		Uploads:            uploads,
		TransformVegan:     c.PostForm("transform_vegan") == "true",
		CustomInstructions: c.PostForm("custom_instruction"),
		CustomTitle:        c.PostForm("custom_title"),
	})
}

// StartDocumentImport queues a from-document import. A batch mixing photos
// and documents runs the mixed flow instead.
func (h *Handler) StartDocumentImport(c *gin.Context) {
	owner, ok := ownerRef(c)
	if !ok {
		return
	}

	uploads, err := readUploads(c, "files")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "at least one file is required",
			"code":  "INVALID_REQUEST",
		})
		return
	}

	flow := jobs.FlowDocument
	for _, upload := range uploads {
		if strings.HasPrefix(strings.ToLower(upload.ContentType), "image/") {
			flow = jobs.FlowMixed
			break
		}
	}

	h.enqueue(c, &jobs.Payload{
		Flow:               flow,
		UserRef:            owner,
		Uploads:            uploads,
		TransformVegan:     c.PostForm("transform_vegan") == "true",
		CustomInstructions: c.PostForm("custom_instruction"),
		CustomTitle:        c.PostForm("custom_title"),
	})
}

type textImportRequest struct {
	Text               string `json:"text" binding:"required"`
	UseLLM             bool   `json:"use_llm"`
	TransformVegan     bool   `json:"transform_vegan"`
	CustomInstructions string `json:"custom_instruction"`
	CustomTitle        string `json:"custom_title"`
}

// StartTextImport queues a from-text import.
func (h *Handler) StartTextImport(c *gin.Context) {
	owner, ok := ownerRef(c)
	if !ok {
		return
	}

	var req textImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "text is required",
			"code":  "INVALID_REQUEST",
		})
		return
	}

	h.enqueue(c, &jobs.Payload{
		Flow:               jobs.FlowText,
		UserRef:            owner,
		Text:               req.Text,
		UseLLM:             req.UseLLM,
		TransformVegan:     req.TransformVegan,
		CustomInstructions: req.CustomInstructions,
		CustomTitle:        req.CustomTitle,
	})
}

// GetJob is the poll endpoint for an import job.
func (h *Handler) GetJob(c *gin.Context) {
	job, err := h.queue.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		if err == jobs.ErrJobNotFound {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
				"code":  "JOB_NOT_FOUND",
			})
			return
		}
		common.LogError("Failed to load job",
			zap.String("job_id", c.Param("id")),
			zap.Error(err),
		)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Import queue is unavailable",
			"code":  "QUEUE_UNAVAILABLE",
		})
		return
	}

	if job.Status == jobs.StatusFinished {
		c.JSON(http.StatusOK, gin.H{
			"ok":        true,
			"status":    job.Status,
			"recipe_id": job.RecipeID,
			"title":     job.Title,
		})
		return
	}
	if job.Status == jobs.StatusFailed {
		c.JSON(http.StatusOK, gin.H{
			"ok":            false,
			"status":        job.Status,
			"error_code":    job.ErrorCode,
			"error_message": job.ErrorMessage,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":     false,
		"status": job.Status,
	})
}

// readUploads copies multipart files into memory. Bytes cross the queue
// boundary, so upload handles must not outlive the request.
func readUploads(c *gin.Context, field string) ([]extract.Upload, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, err
	}
	files := form.File[field]
	if len(files) == 0 {
		return nil, http.ErrMissingFile
	}

	uploads := make([]extract.Upload, 0, len(files))
	for _, file := range files {
		data, err := readMultipartFile(file)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, extract.Upload{
			Name:        file.Filename,
			ContentType: file.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return uploads, nil
}

func readMultipartFile(file *multipart.FileHeader) ([]byte, error) {
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
