package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/blinkpay/blinkpay/go/audit"
)

// handleAuditEvents lists events newest first, filtered by the optional
// sessionId, severity, kind, since, until (RFC 3339) and limit parameters.
func (s *Server) handleAuditEvents(c *gin.Context) {
	sessionID := c.Query("sessionId")
	severity := audit.Severity(c.Query("severity"))
	kind := audit.Kind(c.Query("kind"))

	since, until, ok := parseRange(c)
	if !ok {
		return
	}
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}

	var events []audit.Event
	switch {
	case sessionID != "":
		events = s.cfg.Audit.BySession(sessionID)
	case severity != "":
		events = s.cfg.Audit.BySeverity(severity)
	case !since.IsZero() || !until.IsZero():
		end := until
		if end.IsZero() {
			end = s.now()
		}
		events = s.cfg.Audit.InRange(since, end)
	default:
		events = s.cfg.Audit.Events()
	}

	out := events[:0]
	for _, e := range events {
		if severity != "" && e.Severity != severity {
			continue
		}
		if kind != "" && e.Kind != kind {
			continue
		}
		if !since.IsZero() && e.Timestamp.Before(since) {
			continue
		}
		if !until.IsZero() && e.Timestamp.After(until) {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	c.JSON(http.StatusOK, out)
}

func parseRange(c *gin.Context) (since, until time.Time, ok bool) {
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"since", &since}, {"until", &until}} {
		v := c.Query(p.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			badRequest(c, p.name+" must be an RFC 3339 timestamp")
			return time.Time{}, time.Time{}, false
		}
		*p.dst = t
	}
	return since, until, true
}

func (s *Server) handleAuditSummary(c *gin.Context) {
	c.JSON(http.StatusOK, s.cfg.Audit.Summarize())
}

func (s *Server) handleAuditExport(c *gin.Context) {
	data, err := s.cfg.Audit.Export()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="audit.json"`)
	c.Data(http.StatusOK, "application/json", data)
}
