package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-pickup-backend/internal/services"
)

// ReportUserRequest is the JSON payload for reporting another user.
type ReportUserRequest struct {
	ReportedUserID string  `json:"reported_user_id" binding:"required" example:"user_456"`
	Reason         string  `json:"reason" binding:"required" example:"harassment"`
	Description    string  `json:"description" binding:"required" example:"Sent abusive messages in the order chat."`
	OrderID        *string `json:"order_id,omitempty"`
}

// ReportUser godoc
// @ID          reportUser
// @Summary     Report a user
// @Description Files a moderation report. Only one report per reporter and reported user is accepted every 24 hours.
// @Tags        Reports
// @Accept      json
// @Produce     json
//
// @Param       Authorization    header  string  true  "Bearer token"
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries"
// @Param       body             body    handlers.ReportUserRequest  true  "Report"
//
// @Success     201  {object}  handlers.SuccessResponse{data=domain.Report}
// @Success     200  {object}  handlers.SuccessResponse{data=domain.Report}  "Replayed"
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     404  {object}  handlers.ErrorResponse  "Reported user not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Already reported recently"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Router      /reports [post]
func (h *Handlers) ReportUser(c *gin.Context) {
	var req ReportUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "reported_user_id, reason and description are required")
		return
	}

	out, err := h.reports.ReportUser(c.Request.Context(), caller(c), services.ReportInput{
		ReportedUserID: strings.TrimSpace(req.ReportedUserID),
		Reason:         strings.TrimSpace(req.Reason),
		Description:    strings.TrimSpace(req.Description),
		OrderID:        req.OrderID,
		IdempotencyKey: idempotencyKey(c),
	})
	if err != nil {
		failErr(c, err)
		return
	}
	created(c, out)
}
