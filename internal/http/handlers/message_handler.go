// Message HTTP handlers.
//
// GET /orders/{id}/messages lists an order's chat thread, oldest first. The
// response carries a weak ETag so polling clients can send If-None-Match and
// get 304 Not Modified while the thread is unchanged.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-pickup-backend/internal/domain"
)

// ListMessagesResponse contains a page of order messages and pagination metadata.
type ListMessagesResponse struct {
	Messages   []domain.Message `json:"messages"`
	Pagination Pagination       `json:"pagination"`
}

// ListMessages godoc
// @ID          listOrderMessages
// @Summary     List messages of an order
// @Description Returns a paginated list of the order's messages. Only the buyer and the vendor may read them.
// @Tags        Messages
// @Produce     json
//
// @Param       id             path    string  true  "Order ID"
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(100) default(20)
// @Param       If-None-Match  header  string  false "ETag from a previous response"
//
// @Success     200  {object} handlers.SuccessResponse{data=handlers.ListMessagesResponse}
// @Success     304  "Not modified"
// @Failure     401  {object} handlers.ErrorResponse "Unauthenticated"
// @Failure     403  {object} handlers.ErrorResponse "Not a participant"
// @Failure     404  {object} handlers.ErrorResponse "Order not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /orders/{id}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	orderID := c.Param("id")
	id := caller(c)

	// ETag pre-check (best effort); authorization errors surface from ListPage.
	if etag, err := h.messages.ETag(ctx, id, orderID); err == nil && etag != "" {
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	page, pageSize := clampPagination(c)

	items, total, err := h.messages.ListPage(ctx, id, orderID, page, pageSize)
	if err != nil {
		c.Writer.Header().Del("ETag")
		failErr(c, err)
		return
	}
	if items == nil {
		items = []domain.Message{}
	}

	ok(c, http.StatusOK, ListMessagesResponse{
		Messages:   items,
		Pagination: newPagination(page, pageSize, total),
	})
}
