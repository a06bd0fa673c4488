package handlers

import (
	"errors"
	"net/http"

	"gamedash/internal/accounts"
	"gamedash/internal/middleware"
	"gamedash/internal/models"
	"gamedash/internal/orchestrator"
	"gamedash/internal/power"
	"gamedash/internal/reconcile"
	"gamedash/internal/registry"
	"gamedash/internal/telemetry"

	"github.com/gin-gonic/gin"
)

// ServerHandlers serves the server listing, telemetry, power and command routes.
type ServerHandlers struct {
	users      *accounts.Store
	reg        registry.Registry
	reconciler *reconcile.Reconciler
	controller *power.Controller
	collector  *telemetry.Collector
	samples    telemetry.Store
	client     *orchestrator.Client
}

// NewServerHandlers wires the server routes to the engine components.
func NewServerHandlers(
	users *accounts.Store,
	reg registry.Registry,
	reconciler *reconcile.Reconciler,
	controller *power.Controller,
	collector *telemetry.Collector,
	samples telemetry.Store,
	client *orchestrator.Client,
) *ServerHandlers {
	return &ServerHandlers{
		users:      users,
		reg:        reg,
		reconciler: reconciler,
		controller: controller,
		collector:  collector,
		samples:    samples,
		client:     client,
	}
}

// currentUser resolves the authenticated account from the request context.
func (h *ServerHandlers) currentUser(c *gin.Context) (*accounts.User, bool) {
	id, ok := c.Get(middleware.ContextUserKey)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return nil, false
	}
	userID, ok := id.(int64)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return nil, false
	}
	user, ok := h.users.GetByID(userID)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Account no longer exists"})
		return nil, false
	}
	return user, true
}

// ownedServer resolves the external id path parameter to a record owned by
// the current user. Records of other users are reported as not found.
func (h *ServerHandlers) ownedServer(c *gin.Context, user *accounts.User) (*models.ServerRecord, bool) {
	rec, err := h.reg.ByExternalID(c.Param("external_id"))
	if err != nil || rec.OwnerID != user.ID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Server not found"})
		return nil, false
	}
	return rec, true
}

// writeError maps engine errors onto the HTTP surface.
func writeError(c *gin.Context, err error) {
	var transportErr *orchestrator.TransportError
	switch {
	case errors.Is(err, orchestrator.ErrMissingCredential):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No panel credential configured for this account"})
	case errors.Is(err, power.ErrUnknownAction), errors.Is(err, power.ErrInvalidTransition):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, registry.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Server not found"})
	case errors.As(err, &transportErr):
		if transportErr.Status == http.StatusNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Server not found"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "Orchestrator request failed"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}

// APIServers runs a reconciliation pass for the current user and returns the
// resulting record set. Per-item merge failures ride along in the payload
// instead of failing the request.
func (h *ServerHandlers) APIServers(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	result, err := h.reconciler.SyncOwner(c.Request.Context(), user.ID, user.PanelKey)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"servers":  result.Records,
		"failures": result.Failures,
	})
}

// APIServer reconciles and returns a single server.
func (h *ServerHandlers) APIServer(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	rec, err := h.reconciler.SyncServer(c.Request.Context(), user.ID, user.PanelKey, c.Param("external_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"server": rec})
}

// APIServerStats fetches fresh usage samples for all the user's servers and
// returns the subset that succeeded. A degraded fetch is still a 200: one
// unreachable server must not blank the rest of the dashboard.
func (h *ServerHandlers) APIServerStats(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	servers, err := h.reg.ListByOwner(user.ID)
	if err != nil {
		writeError(c, err)
		return
	}

	samples := h.collector.Collect(c.Request.Context(), user.PanelKey, servers)
	c.JSON(http.StatusOK, gin.H{"stats": samples})
}

// APIServerHistory returns the stored sample history and latest reading for
// one owned server.
func (h *ServerHandlers) APIServerHistory(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	rec, ok := h.ownedServer(c, user)
	if !ok {
		return
	}

	history, err := h.samples.History(rec.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	latest, err := h.samples.Latest(rec.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"server_id": rec.ID,
		"history":   history,
		"latest":    latest,
	})
}

type powerRequest struct {
	Action string `json:"action" validate:"required"`
}

// APIServerPower validates and applies a power action to an owned server.
func (h *ServerHandlers) APIServerPower(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	var req powerRequest
	if !bindAndValidate(c, &req) {
		return
	}
	action, err := power.ParseAction(req.Action)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec, ok := h.ownedServer(c, user)
	if !ok {
		return
	}

	updated, err := h.controller.Apply(c.Request.Context(), rec.ID, user.PanelKey, action)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"server": updated})
}

type commandRequest struct {
	Command string `json:"command" validate:"required,min=1"`
}

// APIServerCommand forwards a console command to an owned server.
func (h *ServerHandlers) APIServerCommand(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	var req commandRequest
	if !bindAndValidate(c, &req) {
		return
	}

	rec, ok := h.ownedServer(c, user)
	if !ok {
		return
	}

	if err := h.client.SendCommand(c.Request.Context(), user.PanelKey, rec.ExternalID, req.Command); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}
