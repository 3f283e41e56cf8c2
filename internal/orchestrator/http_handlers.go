package orchestrator

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"call-scheduler/internal/availability"
	"call-scheduler/internal/voice"
	"call-scheduler/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups the HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call the service, return JSON.
type Handlers struct {
	Svc *Service
}

// FreeSlots serves GET /api/free-slots?days=N.
func (h Handlers) FreeSlots(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("invalid days parameter: %v", err)})
		return
	}

	now := time.Now
	if h.Svc.Now != nil {
		now = h.Svc.Now
	}
	start := now().UTC()
	timeMin := start.Format("2006-01-02") + "T00:00:00Z"
	timeMax := start.AddDate(0, 0, days).Format("2006-01-02") + "T00:00:00Z"

	slots := h.Svc.Finder.FindFreeSlots(c.Request.Context(), timeMin, timeMax, "UTC")
	c.JSON(http.StatusOK, slots)
}

type placeCallRequest struct {
	PhoneNumber    string                  `json:"phoneNumber"`
	InviteeName    string                  `json:"inviteeName"`
	Occasion       string                  `json:"occasion"`
	Duration       string                  `json:"duration"`
	Availabilities []availability.TimeSlot `json:"availabilities"`
}

// PlaceCall serves POST /api/place-call.
func (h Handlers) PlaceCall(c *gin.Context) {
	var req placeCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.PhoneNumber == "" || req.InviteeName == "" || req.Occasion == "" || req.Duration == "" || len(req.Availabilities) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing required fields"})
		return
	}

	raw, err := h.Svc.PlaceCall(c.Request.Context(), PlaceCallParams{
		PhoneNumber:    req.PhoneNumber,
		InviteeName:    req.InviteeName,
		Occasion:       req.Occasion,
		Duration:       req.Duration,
		Availabilities: req.Availabilities,
	})
	if err != nil {
		logger.FromGin(c).Error("call placement failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}

// CallStatus serves GET /api/call-status/:callID.
func (h Handlers) CallStatus(c *gin.Context) {
	callID := c.Param("callID")
	if callID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "call id required"})
		return
	}

	result, err := h.Svc.CallStatus(c.Request.Context(), callID)
	if err != nil {
		logger.FromGin(c).Error("call status lookup failed", "call_id", callID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// Webhook serves POST /api/call-webhook.
func (h Handlers) Webhook(c *gin.Context) {
	log := logger.FromGin(c)

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if h.Svc.Tokens != nil {
		subject, err := h.Svc.Tokens.Verify(c.Query("token"))
		if err != nil || subject != WebhookTokenSubject {
			log.Warn("webhook token rejected", "err", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook token"})
			return
		}
	}

	var event voice.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := h.Svc.HandleWebhook(c.Request.Context(), event, body); err != nil {
		log.Error("webhook handling failed", "call_id", event.CallID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ActiveCalls serves GET /api/active-calls.
func (h Handlers) ActiveCalls(c *gin.Context) {
	calls, err := h.Svc.ActiveCalls(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, calls)
}

// TestCORS serves GET /api/test-cors.
func (h Handlers) TestCORS(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "CORS is working correctly!"})
}
