package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/abhinav-singh-5383/rift-money-mulling/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Upload Job Handlers
// ════════════════════════════════════════════════════════════════════

// POST /upload
// Accepts a multipart CSV under the "file" field and analyzes it in the
// background. Parse and pipeline failures show up only in the job state.
func (h *APIHandler) handleUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+(1<<20))

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"detail": "Upload is too large."})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"detail": "A CSV file is required in the 'file' field."})
		return
	}

	if !strings.HasSuffix(header.Filename, ".csv") {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Only CSV files are accepted."})
		return
	}

	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Failed to read upload."})
		return
	}
	defer f.Close()

	raw, err := io.ReadAll(io.LimitReader(f, h.maxUpload+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Failed to read upload."})
		return
	}
	if int64(len(raw)) > h.maxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"detail": "Upload is too large."})
		return
	}

	jobID := h.jobs.Submit(raw)
	h.logger.Info().Str("job_id", jobID).Str("file", header.Filename).Int("bytes", len(raw)).Msg("upload accepted")

	c.JSON(http.StatusAccepted, gin.H{
		"job_id": jobID,
		"status": models.JobProcessing,
	})
}

// GET /result/:job_id
// Returns the job snapshot; result is null until the job is done.
func (h *APIHandler) handleGetResult(c *gin.Context) {
	job, err := h.jobs.Poll(c.Param("job_id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}
