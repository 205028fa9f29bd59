package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/agentfelt/agentfelt/internal/game"
	"github.com/agentfelt/agentfelt/internal/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Agents connect from anywhere; auth happens via session tokens.
	CheckOrigin: func(*http.Request) bool { return true },
}

// API is the HTTP and WebSocket surface.
type API struct {
	svc     *Service
	metrics *Metrics
	logger  *log.Logger
}

// NewAPI builds the router facade.
func NewAPI(svc *Service, metrics *Metrics, logger *log.Logger) *API {
	return &API{svc: svc, metrics: metrics, logger: logger.WithPrefix("http")}
}

// Router assembles all routes on a fresh gin engine.
func (a *API) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", a.handleHealth)
	r.GET("/metrics", gin.WrapH(a.metrics.Handler()))

	v1 := r.Group("/v1")
	{
		v1.POST("/agents", a.handleRegisterAgent)
		v1.GET("/tables", a.handleListTables)
		v1.GET("/tables/:tableId", a.handleTableDetails)
		v1.GET("/tables/:tableId/events", a.handleTableEvents)
		v1.POST("/tables/:tableId/join", a.requireAgent, a.handleJoin)
		v1.POST("/tables/:tableId/leave", a.requireAgent, a.handleLeave)
		v1.POST("/tables", a.requireAdmin, a.handleCreateTable)
		v1.POST("/tables/:tableId/end", a.requireAdmin, a.handleEndTable)
		v1.GET("/ws", a.handlePlayerWS)
		v1.GET("/ws/observe/:tableId", a.handleObserverWS)
	}
	return r
}

func (a *API) abortError(c *gin.Context, err error) {
	var aerr *APIError
	if errors.As(err, &aerr) {
		c.AbortWithStatusJSON(aerr.Status, gin.H{"code": aerr.Code, "message": aerr.Message})
		return
	}
	a.logger.Error("request failed", "path", c.FullPath(), "error", err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"code":    game.CodeInternalError,
		"message": "internal error",
	})
}

// requireAgent authenticates the Authorization bearer API key and stores the
// agent on the context.
func (a *API) requireAgent(c *gin.Context) {
	header := c.GetHeader("Authorization")
	key, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || key == "" {
		a.abortError(c, apiErr(http.StatusUnauthorized, game.CodeUnauthorized, "missing bearer API key"))
		return
	}
	agent, err := a.svc.Authenticate(c.Request.Context(), key)
	if err != nil {
		a.abortError(c, err)
		return
	}
	c.Set("agent", agent)
	c.Next()
}

// requireAdmin gates admin endpoints on the email allowlist.
func (a *API) requireAdmin(c *gin.Context) {
	email := c.GetHeader("X-Admin-Email")
	if !a.svc.cfg.IsAdmin(email) {
		a.abortError(c, apiErr(http.StatusForbidden, game.CodeUnauthorized, "admin access required"))
		return
	}
	c.Next()
}

func (a *API) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type registerAgentRequest struct {
	Name string `json:"name"`
}

func (a *API) handleRegisterAgent(c *gin.Context) {
	var req registerAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.abortError(c, apiErr(http.StatusBadRequest, game.CodeValidationError, "invalid JSON body"))
		return
	}
	agent, apiKey, err := a.svc.RegisterAgent(c.Request.Context(), req.Name)
	if err != nil {
		a.abortError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"agent_id": agent.ID, "api_key": apiKey})
}

type tableSummary struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Seed      bool   `json:"seeded"`
	CreatedAt string `json:"created_at"`
}

func (a *API) handleListTables(c *gin.Context) {
	tables, err := a.svc.ListTables(c.Request.Context(), store.TableStatus(c.Query("status")))
	if err != nil {
		a.abortError(c, err)
		return
	}
	out := make([]tableSummary, 0, len(tables))
	for _, t := range tables {
		out = append(out, tableSummary{
			ID:        t.ID,
			Status:    string(t.Status),
			Seed:      t.Seed != "",
			CreatedAt: t.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	c.JSON(http.StatusOK, gin.H{"tables": out})
}

func (a *API) handleTableDetails(c *gin.Context) {
	rec, seats, err := a.svc.TableDetails(c.Request.Context(), c.Param("tableId"))
	if err != nil {
		a.abortError(c, err)
		return
	}
	seatViews := make([]gin.H, 0, len(seats))
	for _, s := range seats {
		seatViews = append(seatViews, gin.H{
			"seat":      s.SeatID,
			"agent_id":  s.AgentID,
			"stack":     s.Stack,
			"is_active": s.IsActive,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"id":     rec.ID,
		"status": string(rec.Status),
		"config": json.RawMessage(rec.ConfigJSON),
		"seats":  seatViews,
	})
}

func (a *API) handleTableEvents(c *gin.Context) {
	fromSeq, _ := strconv.ParseUint(c.DefaultQuery("fromSeq", "0"), 10, 64)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	events, err := a.svc.TableEvents(c.Request.Context(), c.Param("tableId"), fromSeq, limit)
	if err != nil {
		a.abortError(c, err)
		return
	}
	out := make([]gin.H, 0, len(events))
	for _, e := range events {
		entry := gin.H{
			"seq":        e.Seq,
			"type":       e.Type,
			"payload":    json.RawMessage(e.Payload),
			"created_at": e.CreatedAt.UTC(),
		}
		if e.HandNumber > 0 {
			entry["hand_number"] = e.HandNumber
		}
		out = append(out, entry)
	}
	c.JSON(http.StatusOK, gin.H{"table_id": c.Param("tableId"), "events": out})
}

type joinRequest struct {
	ClientProtocolVersion int  `json:"client_protocol_version"`
	PreferredSeat         *int `json:"preferred_seat"`
}

func (a *API) handleJoin(c *gin.Context) {
	agent := c.MustGet("agent").(store.AgentRecord)

	var req joinRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			a.abortError(c, apiErr(http.StatusBadRequest, game.CodeValidationError, "invalid JSON body"))
			return
		}
	}

	resp, err := a.svc.Join(c.Request.Context(), c.Param("tableId"), agent, req.ClientProtocolVersion, req.PreferredSeat)
	if err != nil {
		a.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a *API) handleLeave(c *gin.Context) {
	agent := c.MustGet("agent").(store.AgentRecord)
	if err := a.svc.Leave(c.Request.Context(), c.Param("tableId"), agent.ID); err != nil {
		a.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "left table"})
}

type createTableRequest struct {
	TableID    string `json:"table_id"`
	SmallBlind int    `json:"small_blind"`
	BigBlind   int    `json:"big_blind"`
	MaxSeats   int    `json:"max_seats"`
	Stack      int    `json:"stack"`
	MinPlayers int    `json:"min_players"`
	Seed       string `json:"seed"`
}

func (a *API) handleCreateTable(c *gin.Context) {
	var req createTableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.abortError(c, apiErr(http.StatusBadRequest, game.CodeValidationError, "invalid JSON body"))
		return
	}
	rec, err := a.svc.CreateTable(c.Request.Context(), CreateTableRequest{
		TableID:    req.TableID,
		SmallBlind: req.SmallBlind,
		BigBlind:   req.BigBlind,
		MaxSeats:   req.MaxSeats,
		Stack:      req.Stack,
		MinPlayers: req.MinPlayers,
		Seed:       req.Seed,
	})
	if err != nil {
		a.abortError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"table_id": rec.ID, "status": string(rec.Status)})
}

type endTableRequest struct {
	Reason string `json:"reason"`
}

func (a *API) handleEndTable(c *gin.Context) {
	var req endTableRequest
	if c.Request.ContentLength > 0 {
		_ = c.ShouldBindJSON(&req)
	}
	if req.Reason == "" {
		req.Reason = "admin_stop"
	}
	a.svc.EndTable(c.Request.Context(), c.Param("tableId"), req.Reason, SourceAdmin)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// handlePlayerWS upgrades an authenticated player socket.
func (a *API) handlePlayerWS(c *gin.Context) {
	sess, err := a.svc.VerifySession(c.Request.Context(), c.Query("token"))
	if err != nil {
		a.abortError(c, err)
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		a.logger.Debug("upgrade failed", "error", err)
		return
	}
	compact := c.Query("compact") == "true"
	conn := NewConn(ws, compact, a.logger, a.svc.HandleMessage(sess))
	conn.Start()
	a.svc.AttachPlayerSocket(sess, conn)
}

// handleObserverWS upgrades a read-only observer socket. showCards requires
// admin credentials.
func (a *API) handleObserverWS(c *gin.Context) {
	tableID := c.Param("tableId")
	showCards := c.Query("showCards") == "true"
	if showCards && !a.svc.cfg.IsAdmin(c.GetHeader("X-Admin-Email")) {
		a.abortError(c, apiErr(http.StatusForbidden, game.CodeUnauthorized, "showCards requires admin access"))
		return
	}
	if !a.svc.manager.Has(tableID) {
		rec, err := a.svc.store.TableByID(c.Request.Context(), tableID)
		if err != nil || rec.Status != store.TableWaiting {
			a.abortError(c, apiErr(http.StatusNotFound, game.CodeTableNotFound, "no such table"))
			return
		}
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		a.logger.Debug("upgrade failed", "error", err)
		return
	}
	conn := NewConn(ws, c.Query("compact") == "true", a.logger, nil)
	conn.Start()
	a.svc.AttachObserver(tableID, conn, showCards)
}
