package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/johnwmail/pastelite/internal/config"
	"github.com/johnwmail/pastelite/internal/services"
	"github.com/johnwmail/pastelite/models"
)

// TestNowHeader overrides the clock in test mode (milliseconds since epoch)
const TestNowHeader = "X-Test-Now-Ms"

const defaultFrontendURL = "http://localhost:5173"

// PasteHandler handles paste creation and retrieval
type PasteHandler struct {
	service *services.PasteService
	config  *config.Config
	logger  *slog.Logger
	now     func() time.Time
}

// NewPasteHandler creates a new paste handler
func NewPasteHandler(service *services.PasteService, cfg *config.Config, logger *slog.Logger) *PasteHandler {
	return &PasteHandler{
		service: service,
		config:  cfg,
		logger:  logger,
		now:     time.Now,
	}
}

type createPasteBody struct {
	Content    *string `json:"content"`
	TTLSeconds *int    `json:"ttl_seconds"`
	MaxViews   *int    `json:"max_views"`
}

type pasteResponse struct {
	Content        string  `json:"content"`
	RemainingViews *int    `json:"remaining_views"`
	ExpiresAt      *string `json:"expires_at"`
}

// requestNow returns the current time, honouring TestNowHeader in test mode
func (h *PasteHandler) requestNow(c *gin.Context) time.Time {
	if h.config.TestMode {
		if raw := c.GetHeader(TestNowHeader); raw != "" {
			if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
				return time.UnixMilli(ms).UTC()
			}
		}
	}
	return h.now().UTC()
}

// shareBaseURL picks the configured frontend, then the request origin
func (h *PasteHandler) shareBaseURL(c *gin.Context) string {
	if h.config.FrontendURL != "" {
		return strings.TrimSuffix(h.config.FrontendURL, "/")
	}
	if origin := c.GetHeader("Origin"); origin != "" {
		return strings.TrimSuffix(origin, "/")
	}
	return defaultFrontendURL
}

func (h *PasteHandler) homeURL() string {
	if h.config.FrontendURL != "" {
		return h.config.FrontendURL
	}
	return "/"
}

// Create handles paste creation via POST /api/pastes
func (h *PasteHandler) Create(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.config.BufferSize)
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Paste too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": []string{"failed to read request body"}})
		return
	}

	var body createPasteBody
	if err := json.Unmarshal(raw, &body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": []string{describeJSONError(err)}})
		return
	}

	req := services.CreatePasteRequest{
		TTLSeconds: body.TTLSeconds,
		MaxViews:   body.MaxViews,
	}
	if body.Content != nil {
		req.Content = *body.Content
	}

	resp, err := h.service.CreatePaste(c.Request.Context(), req, h.requestNow(c))
	if err != nil {
		var verr *services.ValidationError
		switch {
		case errors.As(err, &verr):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": verr.Details})
		case errors.Is(err, services.ErrStorageUnavailable):
			h.logger.Error("failed to create paste", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Storage temporarily unavailable"})
		default:
			h.logger.Error("failed to create paste", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create paste"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":  resp.ID,
		"url": h.shareBaseURL(c) + "/p/" + resp.ID,
	})
}

// Get handles paste retrieval via GET /api/pastes/:id. Every successful
// call consumes one view.
func (h *PasteHandler) Get(c *gin.Context) {
	c.Header("Cache-Control", "no-store")

	result, err := h.service.RetrievePaste(c.Request.Context(), c.Param("id"), h.requestNow(c))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Paste not found or no longer available"})
		case errors.Is(err, services.ErrStorageUnavailable):
			h.logger.Error("failed to fetch paste", "id", c.Param("id"), "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Storage temporarily unavailable"})
		default:
			h.logger.Error("failed to fetch paste", "id", c.Param("id"), "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch paste"})
		}
		return
	}

	resp := pasteResponse{
		Content:        result.Content,
		RemainingViews: result.RemainingViews,
	}
	if result.ExpiresAt != nil {
		s := isoTime(result.ExpiresAt)
		resp.ExpiresAt = &s
	}
	c.JSON(http.StatusOK, resp)
}

// View renders a paste as HTML via GET /p/:id without consuming a view
func (h *PasteHandler) View(c *gin.Context) {
	c.Header("Cache-Control", "no-store")

	paste, err := h.service.PeekPaste(c.Request.Context(), c.Param("id"), h.requestNow(c))
	if err != nil {
		status, title, message := http.StatusNotFound, "Paste Not Found", "This paste does not exist, has expired, or has reached its view limit."
		if !errors.Is(err, services.ErrNotFound) {
			h.logger.Error("failed to view paste", "id", c.Param("id"), "error", err)
			status, title, message = http.StatusServiceUnavailable, "Error", "An error occurred while loading this paste. Please try again later."
		}
		c.HTML(status, "notfound.html", gin.H{
			"Status":  status,
			"Title":   title,
			"Message": message,
			"HomeURL": h.homeURL(),
		})
		return
	}

	c.HTML(http.StatusOK, "paste.html", viewData(paste, h.homeURL()))
}

func viewData(p *models.Paste, homeURL string) gin.H {
	return gin.H{
		"ID":             p.ID,
		"Content":        p.Content,
		"RemainingViews": p.RemainingViews(),
		"ExpiresAt":      p.ExpiresAt,
		"CreatedAt":      p.CreatedAt,
		"HomeURL":        homeURL,
	}
}

func describeJSONError(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		switch typeErr.Field {
		case "content":
			return "content must be a string"
		case "ttl_seconds":
			return "ttl_seconds must be an integer >= 1"
		case "max_views":
			return "max_views must be an integer >= 1"
		}
	}
	return "request body must be a JSON object"
}
