package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/roach88/subvote/internal/abuse"
	"github.com/roach88/subvote/internal/dnsprovider"
	"github.com/roach88/subvote/internal/model"
	"github.com/roach88/subvote/internal/store"
	"github.com/roach88/subvote/internal/submission"
)

type applicationRequest struct {
	UserID  int64  `json:"user_id" binding:"required"`
	Name    string `json:"name"`
	Type    string `json:"type" binding:"required"`
	Value   string `json:"value" binding:"required"`
	Purpose string `json:"purpose"`
}

func (r applicationRequest) toRequest() submission.Request {
	return submission.Request{
		UserID:  r.UserID,
		Name:    r.Name,
		Type:    r.Type,
		Value:   r.Value,
		Purpose: r.Purpose,
	}
}

type applicationDetail struct {
	Application model.Application `json:"application"`
	Votes       []model.Vote      `json:"votes"`
	Tally       model.Tally       `json:"tally"`
}

// POST /api/applications
func (s *Server) createApplication(c *gin.Context) {
	var req applicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	app, err := s.submissions.Submit(c.Request.Context(), req.toRequest())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, app)
}

// POST /api/records/:id/applications
func (s *Server) updateApplication(c *gin.Context) {
	var req applicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	app, err := s.submissions.SubmitUpdate(c.Request.Context(), c.Param("id"), req.toRequest())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, app)
}

// DELETE /api/records/:id?user_id=N
func (s *Server) deleteRecord(c *gin.Context) {
	userID, ok := queryID(c, "user_id", true)
	if !ok {
		return
	}
	if err := s.submissions.DeleteRecord(c.Request.Context(), userID, c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/applications?user_id=&status=
func (s *Server) listApplications(c *gin.Context) {
	var filter store.ApplicationFilter
	userID, ok := queryID(c, "user_id", false)
	if !ok {
		return
	}
	filter.UserID = userID

	if raw := c.Query("status"); raw != "" {
		status, err := model.ParseStatus(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		filter.Status = status
	}

	apps, err := s.store.ListApplications(c.Request.Context(), filter)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, apps)
}

// GET /api/applications/:id
func (s *Server) getApplication(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	app, err := s.store.GetApplication(ctx, id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	votes, err := s.store.ListVotes(ctx, id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, applicationDetail{Application: app, Votes: votes, Tally: model.Count(votes)})
}

// GET /api/users/:id/records
func (s *Server) listUserRecords(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if _, err := s.store.GetUser(ctx, id); err != nil {
		s.writeError(c, err)
		return
	}
	records, err := s.store.ListRecords(ctx, id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

type abuseReportRequest struct {
	Subdomain string `json:"subdomain" binding:"required"`
	Reason    string `json:"reason" binding:"required"`
	Details   string `json:"details"`
}

// POST /api/abuse-reports
func (s *Server) createAbuseReport(c *gin.Context) {
	var req abuseReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := s.reports.Report(c.Request.Context(), abuse.Request{
		Name:       req.Subdomain,
		Reason:     req.Reason,
		Details:    req.Details,
		ReporterIP: c.ClientIP(),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, report)
}

// GET /api/abuse-reports?status=
func (s *Server) listAbuseReports(c *gin.Context) {
	var status model.ReportStatus
	if raw := c.Query("status"); raw != "" {
		parsed, err := model.ParseReportStatus(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		status = parsed
	}

	reports, err := s.store.ListAbuseReports(c.Request.Context(), status)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reports)
}

// POST /api/abuse-reports/:id/acknowledge
func (s *Server) acknowledgeAbuseReport(c *gin.Context) {
	s.handleReport(c, s.reports.Acknowledge)
}

// POST /api/abuse-reports/:id/ignore
func (s *Server) ignoreAbuseReport(c *gin.Context) {
	s.handleReport(c, s.reports.Ignore)
}

// POST /api/abuse-reports/:id/suspend
func (s *Server) suspendAbuseReport(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	suspension, err := s.reports.Suspend(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, suspension)
}

func (s *Server) handleReport(c *gin.Context, fn func(context.Context, int64) (model.AbuseReport, error)) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	report, err := fn(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a positive integer"})
		return 0, false
	}
	return id, true
}

func queryID(c *gin.Context, key string, required bool) (int64, bool) {
	raw := c.Query(key)
	if raw == "" {
		if required {
			c.JSON(http.StatusBadRequest, gin.H{"error": key + " is required"})
			return 0, false
		}
		return 0, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": key + " must be a positive integer"})
		return 0, false
	}
	return id, true
}

func (s *Server) writeError(c *gin.Context, err error) {
	var ve *submission.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error(), "field": ve.Field})
	case errors.Is(err, submission.ErrRecordNotOwned):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, abuse.ErrReportClosed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, submission.ErrUserNotFound), errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, abuse.ErrNoRecord):
		c.JSON(http.StatusNotFound, gin.H{"error": abuse.ErrNoRecord.Error()})
	case dnsprovider.IsProviderError(err):
		s.logger.Error("dns provider call failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "dns provider call failed"})
	default:
		s.logger.Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
