package dashboard

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zulandar/atila/internal/normalize"
	"github.com/zulandar/atila/internal/project"
	"github.com/zulandar/atila/internal/ranking"
	"github.com/zulandar/atila/internal/ticket"
	"github.com/zulandar/atila/internal/worklist"
)

// deps is what every handler needs.
type deps struct {
	svc       *worklist.Service
	platforms normalize.PlatformMap
	log       *zap.Logger
	poll      time.Duration
}

// registerRoutes sets up all dashboard routes on the Gin router.
func registerRoutes(router *gin.Engine, d *deps) {
	// Embedded static assets (served from assets/ subdir of the embed.FS).
	staticFS, _ := fs.Sub(assetsFS, "assets")
	router.StaticFS("/static", http.FS(staticFS))

	// Pages and form posts.
	router.GET("/", handleIndex(d))
	router.POST("/create_project", handleCreateProjectForm(d))
	router.POST("/add_ticket", handleAddTicketForm(d))
	router.POST("/set_project_active", handleSetProjectActiveForm(d))

	api := router.Group("/api")
	api.GET("/projects", handleListProjects(d))
	api.POST("/projects", handleCreateProject(d))
	api.GET("/tickets", handleListTickets(d))
	api.POST("/tickets", handleCreateTicket(d))
	api.POST("/tickets/recalc", handleRecalc(d))
	api.GET("/tickets/:id", handleGetTicket(d))
	api.PATCH("/tickets/:id", handleUpdateTicket(d))
	api.GET("/events", handleSSE(d))

	router.POST("/normalize/:source", handleNormalize(d))
}

func handleIndex(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, err := optionalID(c.Query("project"))
		if err != nil {
			renderError(c, err)
			return
		}
		ctx := c.Request.Context()
		board, err := d.svc.Board(ctx, projectID)
		if err != nil {
			renderError(c, err)
			return
		}
		var counts BandCount
		if board.Selected != nil {
			if counts, err = BandCounts(d.svc.DB().WithContext(ctx), board.Selected.ID); err != nil {
				renderError(c, err)
				return
			}
		}
		c.HTML(http.StatusOK, "layout.html", gin.H{
			"board":      board,
			"counts":     counts,
			"priorities": ranking.Priorities(),
			"statuses":   ranking.Statuses(),
		})
	}
}

func handleCreateProjectForm(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		start, err := optionalDate(c.PostForm("planned_start_date"))
		if err != nil {
			renderError(c, err)
			return
		}
		end, err := optionalDate(c.PostForm("planned_end_date"))
		if err != nil {
			renderError(c, err)
			return
		}
		p, err := d.svc.CreateProject(c.Request.Context(), project.CreateOpts{
			Name:             c.PostForm("name"),
			Description:      c.PostForm("description"),
			Type:             c.PostForm("type"),
			Priority:         c.PostForm("priority"),
			Tags:             c.PostForm("tags"),
			PlannedStartDate: start,
			PlannedEndDate:   end,
		})
		if err != nil {
			renderError(c, err)
			return
		}
		c.Redirect(http.StatusSeeOther, boardURL(p.ID))
	}
}

func handleAddTicketForm(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, err := requiredID(c.PostForm("project_id"), "project_id")
		if err != nil {
			renderError(c, err)
			return
		}
		_, err = d.svc.CreateTicket(c.Request.Context(), ticket.CreateOpts{
			ProjectID:   projectID,
			Title:       c.PostForm("title"),
			Description: c.PostForm("description"),
			Priority:    c.PostForm("priority"),
			Status:      c.PostForm("status"),
			Category:    c.PostForm("category"),
			Assignee:    c.PostForm("assignee"),
		})
		if err != nil {
			renderError(c, err)
			return
		}
		c.Redirect(http.StatusSeeOther, boardURL(projectID))
	}
}

func handleSetProjectActiveForm(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, err := requiredID(c.PostForm("project_id"), "project_id")
		if err != nil {
			renderError(c, err)
			return
		}
		if _, err := d.svc.ActivateProject(c.Request.Context(), projectID); err != nil {
			renderError(c, err)
			return
		}
		c.Redirect(http.StatusSeeOther, boardURL(projectID))
	}
}

func boardURL(projectID uint) string {
	return fmt.Sprintf("/?project=%d", projectID)
}

// errBadRequest marks malformed request parameters.
var errBadRequest = errors.New("bad request")

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var overflow *ranking.BandOverflowError
	switch {
	case errors.Is(err, project.ErrNotFound), errors.Is(err, ticket.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, project.ErrInvalid),
		errors.Is(err, project.ErrDuplicateName),
		errors.Is(err, ticket.ErrInvalid),
		errors.Is(err, normalize.ErrUnknownPlatform):
		return http.StatusBadRequest
	case errors.As(err, &overflow):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// renderError writes {"error": "..."} with the status matching err.
func renderError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusFor(err), gin.H{"error": err.Error()})
}

// optionalID parses an id parameter; empty means zero.
func optionalID(s string) (uint, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid id %q", errBadRequest, s)
	}
	return uint(id), nil
}

// requiredID parses a non-zero id parameter.
func requiredID(s, name string) (uint, error) {
	id, err := optionalID(s)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, fmt.Errorf("%w: %s is required", errBadRequest, name)
	}
	return id, nil
}

// optionalDate parses a YYYY-MM-DD form value; empty means unset.
func optionalDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid date %q", errBadRequest, s)
	}
	return &t, nil
}
