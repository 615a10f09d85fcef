package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/loomhq/loom/engine/internal/cells"
	"github.com/loomhq/loom/engine/internal/comments"
	"github.com/loomhq/loom/engine/internal/presence"
	"github.com/loomhq/loom/engine/internal/schema"
	"github.com/loomhq/loom/engine/internal/workspace"
)

var (
	errMissingWorkspace = errors.New("workspace dependency required")
	errMissingTracker   = errors.New("presence tracker dependency required")
)

// Dependencies wires the HTTP facade. The facade is read-only: it exposes the
// engine's selectors for inspection, and every mutation path stays behind the
// dispatch layer.
type Dependencies struct {
	Workspace *workspace.Workspace
	Presence  *presence.Tracker
	Logger    *zap.Logger
}

// NewHTTPHandler builds the gin router for the read-only facade.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Workspace == nil {
		return nil, errMissingWorkspace
	}
	if deps.Presence == nil {
		return nil, errMissingTracker
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{"Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		workspace: deps.Workspace,
		presence:  deps.Presence,
		logger:    logger,
	}

	router.GET("/databases/:databaseID/views/:viewID/rows", handler.handleViewRows)
	router.GET("/databases/:databaseID/views/:viewID/groups", handler.handleViewGroups)
	router.GET("/rows/:rowID/comments", handler.handleRowComments)
	router.GET("/presence/users", handler.handlePresenceUsers)
	router.GET("/presence/stream", handler.handlePresenceStream)

	return router, nil
}

type httpHandler struct {
	workspace *workspace.Workspace
	presence  *presence.Tracker
	logger    *zap.Logger
}

type rowPayload struct {
	ID           string            `json:"id"`
	CreatedAt    int64             `json:"created_at"`
	LastModified int64             `json:"last_modified"`
	Cells        map[string]string `json:"cells"`
}

type viewRowsResponse struct {
	ViewID string       `json:"view_id"`
	Rows   []rowPayload `json:"rows"`
}

func (h *httpHandler) resolveView(c *gin.Context) (schema.View, bool) {
	if c.Param("databaseID") != h.workspace.Database().ID() {
		c.JSON(http.StatusNotFound, gin.H{"error": "database_not_found"})
		return schema.View{}, false
	}
	view, ok := h.workspace.Database().View(c.Param("viewID"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "view_not_found"})
		return schema.View{}, false
	}
	return view, true
}

func (h *httpHandler) handleViewRows(c *gin.Context) {
	view, ok := h.resolveView(c)
	if !ok {
		return
	}

	fields := h.workspace.Database().Fields()
	response := viewRowsResponse{ViewID: view.ID, Rows: make([]rowPayload, 0)}
	for _, rowID := range h.workspace.VisibleRows(view) {
		row, loaded := h.workspace.LookupRow(rowID)
		if !loaded {
			// Still loading; the client refreshes on the next change event.
			continue
		}
		payload := rowPayload{
			ID:           rowID,
			CreatedAt:    row.CreatedAt(),
			LastModified: row.LastModified(),
			Cells:        make(map[string]string, len(fields)),
		}
		for _, field := range fields {
			if view.HiddenFields[field.ID] {
				continue
			}
			value := cells.DecodeCell(row, field)
			payload.Cells[field.ID] = cells.DisplayText(value, field)
		}
		response.Rows = append(response.Rows, payload)
	}

	c.JSON(http.StatusOK, response)
}

type viewGroupsResponse struct {
	ViewID  string              `json:"view_id"`
	Buckets map[string][]string `json:"buckets"`
}

func (h *httpHandler) handleViewGroups(c *gin.Context) {
	view, ok := h.resolveView(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, viewGroupsResponse{
		ViewID:  view.ID,
		Buckets: h.workspace.GroupRows(view),
	})
}

type commentsResponse struct {
	RowID    string             `json:"row_id"`
	Comments []comments.Comment `json:"comments"`
}

func (h *httpHandler) handleRowComments(c *gin.Context) {
	rowID := c.Param("rowID")
	row, loaded := h.workspace.LookupRow(rowID)
	if !loaded {
		// Unloaded rows have no readable comments yet; an empty list lets
		// the caller render a skeleton instead of an error.
		c.JSON(http.StatusOK, commentsResponse{RowID: rowID, Comments: []comments.Comment{}})
		return
	}

	projection := comments.Project(comments.DecodeAll(row.Comments(false)))
	switch c.Query("state") {
	case "open":
		projection = projection.Filter(false)
	case "resolved":
		projection = projection.Filter(true)
	}
	flattened := projection.Flattened()
	c.JSON(http.StatusOK, commentsResponse{RowID: rowID, Comments: flattened})
}

type presenceUserPayload struct {
	Key       string `json:"key"`
	UserName  string `json:"user_name"`
	Avatar    string `json:"user_avatar,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

func (h *httpHandler) handlePresenceUsers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"users": h.presenceUsers()})
}

func (h *httpHandler) presenceUsers() []presenceUserPayload {
	users := h.presence.Users()
	payload := make([]presenceUserPayload, 0, len(users))
	for _, user := range users {
		payload = append(payload, presenceUserPayload{
			Key:       user.Key,
			UserName:  user.Metadata.UserName,
			Avatar:    user.Metadata.UserAvatar,
			Timestamp: user.Timestamp,
		})
	}
	return payload
}

const (
	presenceEventChanged   = "presence-change"
	presenceEventHeartbeat = "heartbeat"
	heartbeatInterval      = 30 * time.Second
)

// handlePresenceStream pushes a presence snapshot on every tracker change
// and a heartbeat on idle, until the client disconnects.
func (h *httpHandler) handlePresenceStream(c *gin.Context) {
	stream, cleanup := h.presence.Subscribe(c.Request.Context())
	defer cleanup()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	c.Writer.Header().Set("Cache-Control", "no-cache")

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case <-stream:
			c.SSEvent(presenceEventChanged, gin.H{"users": h.presenceUsers()})
			return true
		case <-heartbeat.C:
			c.SSEvent(presenceEventHeartbeat, gin.H{"at": time.Now().UTC().Unix()})
			return true
		}
	})
}
