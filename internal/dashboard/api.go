package dashboard

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zulandar/atila/internal/normalize"
	"github.com/zulandar/atila/internal/project"
	"github.com/zulandar/atila/internal/ticket"
)

type createProjectRequest struct {
	Name             string `json:"name"`
	Description      string `json:"description"`
	Type             string `json:"type"`
	Priority         string `json:"priority"`
	Tags             string `json:"tags"`
	PlannedStartDate string `json:"planned_start_date"`
	PlannedEndDate   string `json:"planned_end_date"`
}

type createTicketRequest struct {
	ProjectID        uint   `json:"project_id"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	Priority         string `json:"priority"`
	Status           string `json:"status"`
	Category         string `json:"category"`
	Assignee         string `json:"assignee"`
	PlannedStartDate string `json:"planned_start_date"`
	PlannedEndDate   string `json:"planned_end_date"`
}

// bindJSON decodes the request body, rendering a 400 on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		renderError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return false
	}
	return true
}

func handleListProjects(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		projects, err := project.List(d.svc.DB().WithContext(c.Request.Context()))
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, projects)
	}
}

func handleCreateProject(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createProjectRequest
		if !bindJSON(c, &req) {
			return
		}
		start, err := optionalDate(req.PlannedStartDate)
		if err != nil {
			renderError(c, err)
			return
		}
		end, err := optionalDate(req.PlannedEndDate)
		if err != nil {
			renderError(c, err)
			return
		}
		p, err := d.svc.CreateProject(c.Request.Context(), project.CreateOpts{
			Name:             req.Name,
			Description:      req.Description,
			Type:             req.Type,
			Priority:         req.Priority,
			Tags:             req.Tags,
			PlannedStartDate: start,
			PlannedEndDate:   end,
		})
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusCreated, p)
	}
}

func handleListTickets(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, err := optionalID(c.Query("project_id"))
		if err != nil {
			renderError(c, err)
			return
		}
		tickets, err := ticket.List(d.svc.DB().WithContext(c.Request.Context()), ticket.ListFilters{
			ProjectID: projectID,
			Status:    c.Query("status"),
			Priority:  c.Query("priority"),
			Assignee:  c.Query("assignee"),
		})
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, tickets)
	}
}

func handleGetTicket(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := requiredID(c.Param("id"), "id")
		if err != nil {
			renderError(c, err)
			return
		}
		t, err := ticket.Get(d.svc.DB().WithContext(c.Request.Context()), id)
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

func handleCreateTicket(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createTicketRequest
		if !bindJSON(c, &req) {
			return
		}
		if req.ProjectID == 0 {
			renderError(c, fmt.Errorf("%w: project_id is required", errBadRequest))
			return
		}
		start, err := optionalDate(req.PlannedStartDate)
		if err != nil {
			renderError(c, err)
			return
		}
		end, err := optionalDate(req.PlannedEndDate)
		if err != nil {
			renderError(c, err)
			return
		}
		t, err := d.svc.CreateTicket(c.Request.Context(), ticket.CreateOpts{
			ProjectID:        req.ProjectID,
			Title:            req.Title,
			Description:      req.Description,
			Priority:         req.Priority,
			Status:           req.Status,
			Category:         req.Category,
			Assignee:         req.Assignee,
			PlannedStartDate: start,
			PlannedEndDate:   end,
		})
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusCreated, t)
	}
}

func handleUpdateTicket(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := requiredID(c.Param("id"), "id")
		if err != nil {
			renderError(c, err)
			return
		}
		var updates map[string]interface{}
		if !bindJSON(c, &updates) {
			return
		}
		t, err := d.svc.UpdateTicket(c.Request.Context(), id, updates)
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

// handleRecalc recomputes one project when project_id is given, otherwise
// every project.
func handleRecalc(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, err := optionalID(c.Query("project_id"))
		if err != nil {
			renderError(c, err)
			return
		}
		ctx := c.Request.Context()
		r := d.svc.Recalculator()
		if projectID == 0 {
			n, err := r.All(ctx)
			if err != nil {
				renderError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"projects": n})
			return
		}
		if _, err := project.Get(d.svc.DB().WithContext(ctx), projectID); err != nil {
			renderError(c, err)
			return
		}
		sum, err := r.Project(ctx, projectID)
		if err != nil {
			renderError(c, err)
			return
		}
		unrecognized := sum.Unrecognized
		if unrecognized == nil {
			unrecognized = []uint{}
		}
		c.JSON(http.StatusOK, gin.H{
			"project_id":   projectID,
			"active":       sum.Active,
			"backlog":      sum.Backlog,
			"completed":    sum.Completed,
			"unrecognized": unrecognized,
		})
	}
}

// handleNormalize maps a raw tracker payload into ATILA's schema. With a
// project_id query parameter the record is also imported as a ticket.
func handleNormalize(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, err := optionalID(c.Query("project_id"))
		if err != nil {
			renderError(c, err)
			return
		}
		var raw map[string]any
		if !bindJSON(c, &raw) {
			return
		}
		rec, err := normalize.Normalize(c.Param("source"), raw, d.platforms, time.Now())
		if err != nil {
			renderError(c, err)
			return
		}
		if projectID == 0 {
			c.JSON(http.StatusOK, gin.H{"record": rec})
			return
		}

		t, created, err := d.svc.ImportTicket(c.Request.Context(), rec.TicketOpts(projectID))
		if err != nil {
			renderError(c, err)
			return
		}
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		c.JSON(status, gin.H{"record": rec, "ticket": t, "created": created})
	}
}
