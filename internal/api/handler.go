package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/kcb43/profitorbit.io-sub006/internal/marketplace"
	"github.com/kcb43/profitorbit.io-sub006/internal/models"
	"github.com/kcb43/profitorbit.io-sub006/internal/redisclient"
	"github.com/kcb43/profitorbit.io-sub006/internal/service"
	"github.com/kcb43/profitorbit.io-sub006/internal/store"
	"github.com/kcb43/profitorbit.io-sub006/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	orchestrator *service.Orchestrator
	controller   *service.SmartListingController
	store        *store.Store
	redis        *redisclient.Client
	sessionTTL   time.Duration
}

// NewHandler creates a new HTTP handler
func NewHandler(
	orchestrator *service.Orchestrator,
	controller *service.SmartListingController,
	st *store.Store,
	redis *redisclient.Client,
	sessionTTL time.Duration,
) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		controller:   controller,
		store:        st,
		redis:        redis,
		sessionTTL:   sessionTTL,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/marketplaces", h.marketplaceStatus)

		v1.POST("/items/:id/list", h.listItem)
		v1.POST("/items/:id/crosslist", h.crosslistItem)
		v1.POST("/items/:id/delist", h.delistItem)
		v1.GET("/items/:id/listings", h.getListings)
		v1.DELETE("/items/:id/listings/:marketplace", h.removeListing)

		v1.POST("/bulk/list", h.bulkList)
		v1.POST("/bulk/delist", h.bulkDelist)
		v1.POST("/bulk/relist", h.bulkRelist)

		v1.POST("/sync", h.syncSoldItems)

		v1.POST("/sessions", h.openSession)
		v1.POST("/sessions/:id/validate", h.validateSession)
		v1.POST("/sessions/:id/marketplaces/:marketplace/toggle", h.toggleMarketplace)
		v1.POST("/sessions/:id/autofill/toggle", h.toggleAutoFill)
		v1.POST("/sessions/:id/fixes", h.applyFix)
		v1.POST("/sessions/:id/list", h.listNow)
		v1.DELETE("/sessions/:id", h.closeSession)
	}
}

func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// marketplaceStatus reports per-marketplace connection state, consulting the
// Redis activity cache before the database
func (h *Handler) marketplaceStatus(c *gin.Context) {
	ctx := c.Request.Context()

	statuses := make([]gin.H, 0, len(marketplace.Names()))
	for _, mkt := range marketplace.Names() {
		cached, err := h.redis.IsCredentialActiveCached(ctx, mkt)
		if err == nil && cached {
			statuses = append(statuses, gin.H{"marketplace": mkt, "connected": true})
			continue
		}

		cred, err := h.store.GetCredential(ctx, mkt)
		connected := err == nil && cred.IsActive()
		if connected {
			_ = h.redis.CacheCredentialActive(ctx, mkt, cred.ExpiresAt)
		}
		statuses = append(statuses, gin.H{"marketplace": mkt, "connected": connected})
	}

	c.JSON(http.StatusOK, gin.H{"marketplaces": statuses})
}

type listOptionsRequest struct {
	PriceMultiplier     float64 `json:"price_multiplier"`
	DelayBetweenItemsMs int64   `json:"delay_between_items_ms"`
}

func (r listOptionsRequest) toOptions() service.ListOptions {
	return service.ListOptions{
		PriceMultiplier:   r.PriceMultiplier,
		DelayBetweenItems: time.Duration(r.DelayBetweenItemsMs) * time.Millisecond,
	}
}

type listRequest struct {
	Marketplace string             `json:"marketplace" binding:"required"`
	Options     listOptionsRequest `json:"options"`
}

func (h *Handler) listItem(c *gin.Context) {
	var req listRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	ctx := c.Request.Context()
	cred, err := h.store.GetCredential(ctx, req.Marketplace)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load credential", "details": err.Error()})
		return
	}

	outcome, err := h.orchestrator.ListOnMarketplace(ctx, c.Param("id"), req.Marketplace, cred, req.Options.toOptions())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Listing failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, outcome)
}

type crosslistRequest struct {
	Marketplaces []string           `json:"marketplaces" binding:"required,min=1"`
	Options      listOptionsRequest `json:"options"`
}

func (h *Handler) crosslistItem(c *gin.Context) {
	var req crosslistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	ctx := c.Request.Context()
	creds, err := h.store.GetCredentials(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load credentials", "details": err.Error()})
		return
	}

	result := h.orchestrator.Crosslist(ctx, c.Param("id"), req.Marketplaces, creds, req.Options.toOptions())
	c.JSON(http.StatusOK, result)
}

func (h *Handler) delistItem(c *gin.Context) {
	ctx := c.Request.Context()
	creds, err := h.store.GetCredentials(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load credentials", "details": err.Error()})
		return
	}

	result, err := h.orchestrator.DelistEverywhere(ctx, c.Param("id"), creds)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Delist failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) getListings(c *gin.Context) {
	listings, err := h.store.GetListingsByItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load listings", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"listings": listings})
}

// removeListing drops a registry record without touching the marketplace.
// Used to clean up records for listings removed out of band.
func (h *Handler) removeListing(c *gin.Context) {
	if err := h.store.RemoveListing(c.Request.Context(), c.Param("id"), c.Param("marketplace")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove listing", "details": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

type bulkRequest struct {
	ItemIDs      []string           `json:"item_ids" binding:"required,min=1"`
	Marketplaces []string           `json:"marketplaces"`
	Options      listOptionsRequest `json:"options"`
}

func (h *Handler) bulkList(c *gin.Context) {
	h.runBulk(c, func(req bulkRequest, creds map[string]*models.Credential) *service.BulkResult {
		return h.orchestrator.BulkListItems(c.Request.Context(), req.ItemIDs, req.Marketplaces, creds, req.Options.toOptions())
	})
}

func (h *Handler) bulkDelist(c *gin.Context) {
	h.runBulk(c, func(req bulkRequest, creds map[string]*models.Credential) *service.BulkResult {
		return h.orchestrator.BulkDelistItems(c.Request.Context(), req.ItemIDs, creds, req.Options.toOptions())
	})
}

func (h *Handler) bulkRelist(c *gin.Context) {
	h.runBulk(c, func(req bulkRequest, creds map[string]*models.Credential) *service.BulkResult {
		return h.orchestrator.BulkRelistItems(c.Request.Context(), req.ItemIDs, req.Marketplaces, creds, req.Options.toOptions())
	})
}

func (h *Handler) runBulk(c *gin.Context, run func(bulkRequest, map[string]*models.Credential) *service.BulkResult) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	creds, err := h.store.GetCredentials(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load credentials", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, run(req, creds))
}

func (h *Handler) syncSoldItems(c *gin.Context) {
	ctx := c.Request.Context()
	creds, err := h.store.GetCredentials(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load credentials", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, h.orchestrator.SyncSoldItems(ctx, creds))
}

type openSessionRequest struct {
	ItemID               string                       `json:"item_id" binding:"required"`
	GeneralForm          map[string]string            `json:"general_form" binding:"required"`
	MarketplaceForms     map[string]map[string]string `json:"marketplace_forms"`
	Defaults             map[string]map[string]string `json:"defaults"`
	FulfillmentProfile   map[string]string            `json:"fulfillment_profile"`
	SelectedMarketplaces []string                     `json:"selected_marketplaces"`
}

func (h *Handler) openSession(c *gin.Context) {
	var req openSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	session := service.NewSession(req.ItemID, req.GeneralForm)
	if req.MarketplaceForms != nil {
		session.MarketplaceForms = req.MarketplaceForms
	}
	session.Defaults = req.Defaults
	session.FulfillmentProfile = req.FulfillmentProfile
	if len(req.SelectedMarketplaces) > 0 {
		session.SelectedMarketplaces = req.SelectedMarketplaces
	}

	ctx := c.Request.Context()
	if err := h.controller.OpenModal(ctx, session); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Item not ready to list", "details": err.Error()})
		return
	}

	if err := h.redis.SaveSession(ctx, session, h.sessionTTL); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save session", "details": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, session)
}

func (h *Handler) validateSession(c *gin.Context) {
	h.withSession(c, func(session *service.SmartListingSession) (any, error) {
		if err := h.controller.HandleStartListing(c.Request.Context(), session); err != nil {
			return nil, err
		}
		return session, nil
	})
}

func (h *Handler) toggleMarketplace(c *gin.Context) {
	h.withSession(c, func(session *service.SmartListingSession) (any, error) {
		h.controller.ToggleMarketplace(session, c.Param("marketplace"))
		return session, nil
	})
}

func (h *Handler) toggleAutoFill(c *gin.Context) {
	h.withSession(c, func(session *service.SmartListingSession) (any, error) {
		h.controller.ToggleAutoFillMode(session)
		return session, nil
	})
}

type applyFixRequest struct {
	Issue service.ValidationIssue `json:"issue" binding:"required"`
	Value service.FieldValue      `json:"value" binding:"required"`
}

func (h *Handler) applyFix(c *gin.Context) {
	var req applyFixRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	h.withSession(c, func(session *service.SmartListingSession) (any, error) {
		if err := h.controller.HandleApplyFix(c.Request.Context(), session, req.Issue, req.Value); err != nil {
			return nil, err
		}
		return session, nil
	})
}

type listNowRequest struct {
	Marketplaces []string `json:"marketplaces"`
}

func (h *Handler) listNow(c *gin.Context) {
	var req listNowRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	ctx := c.Request.Context()
	session, ok := h.loadSession(c)
	if !ok {
		return
	}

	result, err := h.controller.HandleListNow(ctx, session, req.Marketplaces)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Dispatch rejected", "details": err.Error()})
		return
	}

	if session.ModalState == service.StateIdle && !session.ModalOpen {
		// Full success discards the session.
		_ = h.redis.DeleteSession(ctx, session.ID)
	} else if err := h.redis.SaveSession(ctx, session, h.sessionTTL); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save session", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result, "session": session})
}

func (h *Handler) closeSession(c *gin.Context) {
	session, ok := h.loadSession(c)
	if !ok {
		return
	}

	h.controller.CloseModal(session)
	if err := h.redis.DeleteSession(c.Request.Context(), session.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete session", "details": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

// withSession loads, mutates, and saves a session around fn
func (h *Handler) withSession(c *gin.Context, fn func(*service.SmartListingSession) (any, error)) {
	session, ok := h.loadSession(c)
	if !ok {
		return
	}

	body, err := fn(session)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Session operation failed", "details": err.Error()})
		return
	}

	if err := h.redis.SaveSession(c.Request.Context(), session, h.sessionTTL); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save session", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, body)
}

func (h *Handler) loadSession(c *gin.Context) (*service.SmartListingSession, bool) {
	session, err := h.redis.LoadSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load session", "details": err.Error()})
		return nil, false
	}
	if session == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return nil, false
	}
	return session, true
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
