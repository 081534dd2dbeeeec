package handlers

import (
	"io"
	"net/http"
	"strconv"

	"baidu-face-go/config"
	"baidu-face-go/internal/core/processor"
	"baidu-face-go/internal/core/store"
	"baidu-face-go/internal/db/repository"
	syncservice "baidu-face-go/internal/services/sync"
	"baidu-face-go/internal/utils"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// maxUploadSize bounds manual frame uploads.
const maxUploadSize = 16 << 20 // 16 MiB

// APIHandler serves the HTTP API.
type APIHandler struct {
	cfg         *config.Config
	store       *store.Store
	repo        repository.DetectionRepository
	identifiers map[string]*processor.Identifier
	syncService *syncservice.Service
}

// NewAPIHandler creates a new API handler. repo may be nil when the database
// is disabled.
func NewAPIHandler(cfg *config.Config, st *store.Store, repo repository.DetectionRepository, identifiers map[string]*processor.Identifier, syncService *syncservice.Service) *APIHandler {
	return &APIHandler{
		cfg:         cfg,
		store:       st,
		repo:        repo,
		identifiers: identifiers,
		syncService: syncService,
	}
}

// RegisterRoutes registers all API routes.
func (h *APIHandler) RegisterRoutes(router *gin.RouterGroup) {
	// Group/person store
	router.GET("/groups", h.ListGroups)
	router.GET("/groups/:id", h.GetGroup)

	// Detection history
	router.GET("/detections", h.ListDetections)
	router.GET("/detections/:id", h.GetDetection)
	router.DELETE("/detections/:id", h.DeleteDetection)

	// Processing
	router.POST("/process/:camera", h.ProcessFrame)

	// System
	router.GET("/status", h.GetStatus)
	router.POST("/sync", h.TriggerSync)
}

// ListGroups returns all groups with their person counts.
func (h *APIHandler) ListGroups(c *gin.Context) {
	type groupEntry struct {
		GroupID string `json:"group_id"`
		Count   int    `json:"count"`
	}

	groups := h.store.Groups()
	entries := make([]groupEntry, 0, len(groups))
	for _, groupID := range groups {
		entries = append(entries, groupEntry{
			GroupID: groupID,
			Count:   h.store.Count(groupID),
		})
	}

	c.JSON(http.StatusOK, gin.H{"groups": entries})
}

// GetGroup returns the person mapping of one group.
func (h *APIHandler) GetGroup(c *gin.Context) {
	groupID := c.Param("id")
	persons, ok := h.store.Persons(groupID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown group"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"group_id": groupID,
		"count":    len(persons),
		"persons":  persons,
	})
}

// ListDetections returns the detection history, newest first.
func (h *APIHandler) ListDetections(c *gin.Context) {
	if h.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Detection history is disabled"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	camera := c.Query("camera")

	var err error
	var detections interface{}
	var total int64
	if camera != "" {
		detections, total, err = h.repo.GetDetectionsByCamera(camera, limit, offset)
	} else {
		detections, total, err = h.repo.GetDetections(limit, offset)
	}
	if err != nil {
		log.WithError(err).Error("Failed to list detections")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list detections"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"detections": detections,
		"total":      total,
		"limit":      limit,
		"offset":     offset,
	})
}

// GetDetection returns one detection record.
func (h *APIHandler) GetDetection(c *gin.Context) {
	if h.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Detection history is disabled"})
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid detection id"})
		return
	}

	detection, err := h.repo.GetDetectionByID(uint(id))
	if err != nil {
		log.WithError(err).Error("Failed to load detection")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load detection"})
		return
	}
	if detection == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown detection"})
		return
	}

	c.JSON(http.StatusOK, detection)
}

// DeleteDetection removes one detection record from the history.
func (h *APIHandler) DeleteDetection(c *gin.Context) {
	if h.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Detection history is disabled"})
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid detection id"})
		return
	}

	detection, err := h.repo.GetDetectionByID(uint(id))
	if err != nil {
		log.WithError(err).Error("Failed to load detection")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load detection"})
		return
	}
	if detection == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown detection"})
		return
	}

	if err := h.repo.DeleteDetection(uint(id)); err != nil {
		log.WithError(err).Error("Failed to delete detection")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete detection"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Detection deleted"})
}

// ProcessFrame submits an uploaded frame to a camera's identifier.
func (h *APIHandler) ProcessFrame(c *gin.Context) {
	cameraName := c.Param("camera")
	identifier, ok := h.identifiers[cameraName]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown camera"})
		return
	}

	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded or invalid form data"})
		return
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read uploaded file"})
		return
	}

	result := identifier.WithSource("api_upload").Process(c.Request.Context(), image)

	c.JSON(http.StatusOK, result)
}

// GetStatus returns system statistics and a store summary.
func (h *APIHandler) GetStatus(c *gin.Context) {
	status := gin.H{
		"system": utils.CollectSystemStats(),
		"groups": len(h.store.Groups()),
	}

	if h.repo != nil {
		stats, err := h.repo.GetStatistics()
		if err != nil {
			log.WithError(err).Error("Failed to collect detection statistics")
		} else {
			persons := 0
			for _, groupID := range h.store.Groups() {
				persons += h.store.Count(groupID)
			}
			stats.GroupCount = len(h.store.Groups())
			stats.PersonCount = persons
			status["detections"] = stats
		}
	}

	c.JSON(http.StatusOK, status)
}

// TriggerSync runs a full store synchronization on demand.
func (h *APIHandler) TriggerSync(c *gin.Context) {
	if err := h.syncService.Sync(c.Request.Context()); err != nil {
		log.WithError(err).Error("Manual store sync failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Store sync failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Store sync completed",
		"groups":  h.store.Groups(),
	})
}
