package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "stocktrail/internal/errors"
	"stocktrail/internal/period"
	"stocktrail/internal/services"
)

// GoalHandler handles sales goal requests
type GoalHandler struct {
	goalService  services.GoalServicer
	auditService services.AuditServicer
	now          func() time.Time
}

// NewGoalHandler creates a new GoalHandler
func NewGoalHandler(goalService services.GoalServicer, auditService services.AuditServicer) *GoalHandler {
	return &GoalHandler{goalService: goalService, auditService: auditService, now: time.Now}
}

// SetGoalRequest represents the request payload for setting a goal
type SetGoalRequest struct {
	TargetAmount   float64 `json:"target_amount" binding:"required,gt=0"`
	TargetProfit   float64 `json:"target_profit" binding:"gte=0"`
	DurationMonths int     `json:"duration_months" binding:"required,min=1,max=120"`
	StartDate      string  `json:"start_date"`
}

// UpdateGoalRequest changes targets or duration. Omitted fields are left
// unchanged.
type UpdateGoalRequest struct {
	TargetAmount   *float64 `json:"target_amount" binding:"omitempty,gt=0"`
	TargetProfit   *float64 `json:"target_profit" binding:"omitempty,gte=0"`
	DurationMonths *int     `json:"duration_months" binding:"omitempty,min=1,max=120"`
}

// SetGoal creates or replaces the user's goal
// @Summary     Set goal
// @Description Replaces any existing goal. The deadline is the end of the day duration_months after start_date.
// @Tags        goals
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body SetGoalRequest true "Goal"
// @Success     201 {object} models.Goal
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /goals [post]
func (h *GoalHandler) SetGoal(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req SetGoalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	var start *time.Time
	if req.StartDate != "" {
		t, err := period.ParseDate(req.StartDate, h.now().Location())
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid start_date"))
			return
		}
		start = &t
	}

	goal, err := h.goalService.SetGoal(userID, req.TargetAmount, req.TargetProfit, req.DurationMonths, start)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditSetGoal, "goal", goal.ID, c.ClientIP(), map[string]interface{}{
		"target_amount":   goal.TargetAmount,
		"target_profit":   goal.TargetProfit,
		"duration_months": goal.DurationMonths,
	})
	c.JSON(http.StatusCreated, gin.H{"goal": goal})
}

// GetGoal returns the user's goal
// @Summary     Get goal
// @Tags        goals
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} models.Goal
// @Failure     404 {object} ErrorResponse "No goal set"
// @Router      /goals [get]
func (h *GoalHandler) GetGoal(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	goal, err := h.goalService.GetGoal(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"goal": goal})
}

// UpdateGoal edits the user's goal
// @Summary     Update goal
// @Description Changing duration_months moves the deadline from the original start date.
// @Tags        goals
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body UpdateGoalRequest true "Fields to change"
// @Success     200 {object} models.Goal
// @Failure     404 {object} ErrorResponse "No goal set"
// @Router      /goals [put]
func (h *GoalHandler) UpdateGoal(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateGoalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	goal, err := h.goalService.UpdateGoal(userID, req.TargetAmount, req.TargetProfit, req.DurationMonths)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditUpdateGoal, "goal", goal.ID, c.ClientIP(), nil)
	c.JSON(http.StatusOK, gin.H{"goal": goal})
}

// GetGoalProgress returns targets and actuals for the user's goal
// @Summary     Goal progress
// @Tags        goals
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} services.GoalStatus
// @Failure     404 {object} ErrorResponse "No goal set"
// @Router      /goals/progress [get]
func (h *GoalHandler) GetGoalProgress(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	status, err := h.goalService.GetGoalProgress(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}
