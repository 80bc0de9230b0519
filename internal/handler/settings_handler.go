package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qirllo/school-api/internal/models"
	"github.com/qirllo/school-api/pkg/response"
)

type settingsService interface {
	Get(ctx context.Context) (*models.SchoolSettings, error)
	Update(ctx context.Context, caller *models.JWTClaims, req models.UpdateSchoolSettingsRequest) (*models.SchoolSettings, error)
	OnboardingStatus(ctx context.Context) (*models.OnboardingStatus, error)
	Setup(ctx context.Context, req models.SchoolSetupRequest) (*models.SchoolSetupResult, error)
}

// SettingsHandler exposes the school profile.
type SettingsHandler struct {
	service settingsService
}

// NewSettingsHandler constructs a settings handler.
func NewSettingsHandler(svc settingsService) *SettingsHandler {
	return &SettingsHandler{service: svc}
}

// Get godoc
// @Summary School settings
// @Tags Settings
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /settings [get]
func (h *SettingsHandler) Get(c *gin.Context) {
	settings, err := h.service.Get(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}

// Update godoc
// @Summary Update school settings
// @Tags Settings
// @Accept json
// @Produce json
// @Param payload body models.UpdateSchoolSettingsRequest true "Settings"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /settings [put]
func (h *SettingsHandler) Update(c *gin.Context) {
	var req models.UpdateSchoolSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid settings payload"))
		return
	}
	settings, err := h.service.Update(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}

// OnboardingStatus godoc
// @Summary First-time setup status
// @Tags Settings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /school/onboarding-status [get]
func (h *SettingsHandler) OnboardingStatus(c *gin.Context) {
	status, err := h.service.OnboardingStatus(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Setup godoc
// @Summary First-time school setup
// @Description Saves the school profile and creates the first administrator. Refused once an administrator exists.
// @Tags Settings
// @Accept json
// @Produce json
// @Param payload body models.SchoolSetupRequest true "Setup"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /school/setup [post]
func (h *SettingsHandler) Setup(c *gin.Context) {
	var req models.SchoolSetupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid setup payload"))
		return
	}
	result, err := h.service.Setup(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}
