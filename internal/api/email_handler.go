package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"mailflow/internal/repository"
	"mailflow/internal/service"
)

type EmailHandler struct {
	emailService *service.EmailService
	userRepo     *repository.UserRepository
}

func NewEmailHandler(emailService *service.EmailService, userRepo *repository.UserRepository) *EmailHandler {
	return &EmailHandler{
		emailService: emailService,
		userRepo:     userRepo,
	}
}

// Send handles POST /emails/send
func (h *EmailHandler) Send(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req struct {
		To         string     `json:"to"`
		Subject    string     `json:"subject"`
		Body       string     `json:"body"`
		ScheduleAt *time.Time `json:"scheduleAt"`
		DraftID    int        `json:"draftId"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, err := h.userRepo.FindByID(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve sender"})
		return
	}

	email, err := h.emailService.Send(c.Request.Context(), userID, user.Email, service.SendRequest{
		To:         req.To,
		Subject:    req.Subject,
		Body:       req.Body,
		ScheduleAt: req.ScheduleAt,
		DraftID:    req.DraftID,
	})
	if err != nil {
		if errors.Is(err, service.ErrNoRecipient) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send email"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "email queued successfully",
		"email":   email,
	})
}

// SaveDraft handles POST /emails/draft
func (h *EmailHandler) SaveDraft(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req struct {
		To      string `json:"to"`
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	email, err := h.emailService.SaveDraft(c.Request.Context(), userID, req.To, req.Subject, req.Body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save draft"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "draft saved successfully",
		"email":   email,
	})
}

// UpdateDraft handles PUT /emails/:id
func (h *EmailHandler) UpdateDraft(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email id"})
		return
	}

	var req struct {
		To          string     `json:"to"`
		Subject     string     `json:"subject"`
		Body        string     `json:"body"`
		ScheduledAt *time.Time `json:"scheduledAt"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	email, err := h.emailService.UpdateDraft(c.Request.Context(), id, userID, req.To, req.Subject, req.Body, req.ScheduledAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "draft not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update draft"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "draft updated successfully",
		"email":   email,
	})
}

// Delete handles DELETE /emails/:id
func (h *EmailHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email id"})
		return
	}

	email, err := h.emailService.Delete(c.Request.Context(), id, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "email not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete email"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "email deleted successfully",
		"email":   email,
	})
}

// GetEmail handles GET /emails/:id
func (h *EmailHandler) GetEmail(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email id"})
		return
	}

	email, err := h.emailService.GetEmail(c.Request.Context(), id, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "email not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch email"})
		return
	}

	c.JSON(http.StatusOK, email)
}

// ListSent handles GET /emails/sent
func (h *EmailHandler) ListSent(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	page, limit := pagination(c)
	emails, err := h.emailService.ListSent(c.Request.Context(), userID, page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch sent emails"})
		return
	}

	c.JSON(http.StatusOK, emails)
}

// ListDrafts handles GET /emails/drafts
func (h *EmailHandler) ListDrafts(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	page, limit := pagination(c)
	emails, err := h.emailService.ListDrafts(c.Request.Context(), userID, page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch drafts"})
		return
	}

	c.JSON(http.StatusOK, emails)
}

func pagination(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}
	return page, limit
}
