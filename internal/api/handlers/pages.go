package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"crosplit/internal/api/middleware"
	"crosplit/internal/apperr"
	shopifyconnector "crosplit/internal/connectors/shopify"
	"crosplit/internal/database"
	"crosplit/internal/logger"
	"crosplit/internal/services/ai"
	"crosplit/internal/services/experiment"
	"crosplit/internal/services/shopify"

	"github.com/gin-gonic/gin"
)

type PageHandler struct {
	store       *database.Database
	coordinator *experiment.Coordinator
	suggester   *ai.Suggester
	connector   *shopifyconnector.ShopifyConnector
	logger      *logger.Logger
}

func NewPageHandler(store *database.Database, coordinator *experiment.Coordinator, suggester *ai.Suggester, connector *shopifyconnector.ShopifyConnector, logger *logger.Logger) *PageHandler {
	return &PageHandler{
		store:       store,
		coordinator: coordinator,
		suggester:   suggester,
		connector:   connector,
		logger:      logger,
	}
}

// Suggest looks up the page behind a storefront URL and asks the model for alternative titles.
func (h *PageHandler) Suggest(c *gin.Context) {
	var request struct {
		PageURL string `json:"page_url"`
		Handle  string `json:"handle"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(request.PageURL) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page_url is required"})
		return
	}

	handle := strings.TrimSpace(request.Handle)
	if handle == "" {
		var err error
		if handle, err = shopify.HandleFromURL(request.PageURL); err != nil {
			respondError(c, h.logger, err, nil)
			return
		}
	}

	settings, err := h.store.GetSettings(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, nil)
		return
	}

	client := middleware.ShopClient(c)
	page, err := client.GetPageByHandle(c.Request.Context(), handle)
	if err != nil {
		respondError(c, h.logger, err, nil)
		return
	}

	suggestions, err := h.suggester.Suggest(c.Request.Context(), settings, request.PageURL)
	if err != nil {
		respondError(c, h.logger, err, gin.H{"pages": suggestions})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pages":        suggestions,
		"originalPage": page,
	})
}

// Submit creates the accepted duplicates and registers the experiment.
func (h *PageHandler) Submit(c *gin.Context) {
	var request struct {
		Pages    []ai.Suggestion `json:"pages"`
		Body     string          `json:"body"`
		Original *shopify.Page   `json:"original"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(request.Pages) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pages array is required"})
		return
	}
	if request.Original == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "original page is required"})
		return
	}

	settings, err := h.store.GetSettings(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, nil)
		return
	}

	result, err := h.coordinator.CreateDuplicatesAndExperiment(c.Request.Context(), middleware.ShopClient(c), settings, experiment.CreateRequest{
		Original:    *request.Original,
		Body:        request.Body,
		Suggestions: request.Pages,
	})
	if err != nil {
		extra := gin.H{}
		if result != nil {
			extra["results"] = result.Results
		}
		respondError(c, h.logger, err, extra)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Delete removes a duplicate page and retires its experiment arm.
func (h *PageHandler) Delete(c *gin.Context) {
	var request struct {
		PageID interface{} `json:"pageId"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var ref string
	switch v := request.PageID.(type) {
	case string:
		ref = v
	case float64:
		ref = strconv.FormatInt(int64(v), 10)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "pageId is required"})
		return
	}

	settings, err := h.store.GetSettings(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, nil)
		return
	}

	result, err := h.coordinator.DeleteDuplicate(c.Request.Context(), middleware.ShopClient(c), settings, ref)
	if err != nil {
		extra := gin.H{}
		if result != nil {
			extra["page_deleted"] = true
		}
		respondError(c, h.logger, err, extra)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
}

// List returns original pages that have duplicates.
func (h *PageHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	if pageSize > 100 {
		pageSize = 100
	}

	filter := database.PageFilter{
		Search:   c.Query("search"),
		Page:     page,
		PageSize: pageSize,
	}
	pages, total, err := h.store.ListOriginalPages(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err, nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":     pages,
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
	})
}

// Sync mirrors every store page into the local table.
func (h *PageHandler) Sync(c *gin.Context) {
	client := middleware.ShopClient(c)
	if client == nil {
		respondError(c, h.logger, apperr.Configuration("no shop client on request"), nil)
		return
	}
	result, err := h.connector.SyncPages(c.Request.Context(), client)
	if err != nil {
		respondError(c, h.logger, err, nil)
		return
	}
	c.JSON(http.StatusOK, result)
}
