package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pagesift/jobs"
	"github.com/use-agent/pagesift/models"
)

// jobView is a job record whose data has been projected by ?fields=.
type jobView struct {
	jobs.Record
	Data any `json:"data,omitempty"`
}

// GetJob returns a handler for GET /api/jobs/:jobId. The ?fields= filter
// applies to the job's data, not to the record itself.
func GetJob(ledger *jobs.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, ok := ledger.Get(c.Param("jobId"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}

		fields := parseFields(c.Query("fields"))
		if len(fields) == 0 || rec.Data == nil {
			c.JSON(http.StatusOK, rec)
			return
		}
		c.JSON(http.StatusOK, jobView{Record: rec, Data: models.PickFields(rec.Data, fields)})
	}
}

// ListJobs returns a handler for GET /api/jobs.
func ListJobs(ledger *jobs.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, ledger.List())
	}
}
