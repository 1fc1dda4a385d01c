package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// MigrateGuestRequest optionally names the target account. It defaults to
// the signed-in caller.
type MigrateGuestRequest struct {
	TargetUserID string `json:"target_user_id,omitempty" example:"user_123"`
}

// MigrateGuestData godoc
// @ID          migrateGuestData
// @Summary     Merge a guest session into the caller's account
// @Description Moves the guest's orders and messages to the signed-in user. A session migrates once.
// @Tags        Guests
// @Accept      json
// @Produce     json
//
// @Param       Authorization    header  string  true  "Bearer token"
// @Param       Idempotency-Key  header  string  true  "Idempotency key for safe retries"
// @Param       id               path    string  true  "Guest ID"  example(guest_1718000000000_k3j9x2m1q)
// @Param       body             body    handlers.MigrateGuestRequest  false "Target account"
//
// @Success     200  {object}  handlers.SuccessResponse{data=domain.MigrationResult}
// @Failure     400  {object}  handlers.ErrorResponse  "Malformed guest id or key"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     403  {object}  handlers.ErrorResponse  "Guests cannot migrate, or target is another user"
// @Failure     404  {object}  handlers.ErrorResponse  "Guest session not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Already migrated"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Router      /guests/{id}/migrate [post]
func (h *Handlers) MigrateGuestData(c *gin.Context) {
	var req MigrateGuestRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid migration payload")
			return
		}
	}

	out, err := h.guests.MigrateGuestData(c.Request.Context(), caller(c), c.Param("id"), req.TargetUserID, idempotencyKey(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, out)
}
