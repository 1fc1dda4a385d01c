// Package handlers exposes the public REST API of the pickup-order backend.
//
// Handlers are transport-thin: they bind and shape input, read the caller
// resolved by middleware.Identity, delegate to application services and
// render results in the standard envelopes (response.go). Business rules,
// authorization and idempotency live in the services.
package handlers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-pickup-backend/internal/domain"
	"github.com/tbourn/go-pickup-backend/internal/http/middleware"
	"github.com/tbourn/go-pickup-backend/internal/services"
	"github.com/tbourn/go-pickup-backend/internal/utils"
)

// OrderService is the order lifecycle consumed by the order endpoints.
type OrderService interface {
	CreateOrder(ctx context.Context, id domain.Identity, in services.CreateOrderInput) (*services.OrderDetails, error)
	GetOrder(ctx context.Context, id domain.Identity, orderID string) (*services.OrderDetails, error)
	ChangeStatus(ctx context.Context, id domain.Identity, orderID string, in services.ChangeStatusInput) (*services.OrderDetails, error)
	GeneratePickupCode(ctx context.Context, id domain.Identity, orderID, idempotencyKey string) (*services.PickupCode, error)
}

// MessageService reads an order's chat thread.
type MessageService interface {
	ListPage(ctx context.Context, id domain.Identity, orderID string, page, pageSize int) ([]domain.Message, int64, error)
	ETag(ctx context.Context, id domain.Identity, orderID string) (string, error)
}

// GuestService merges guest sessions into accounts.
type GuestService interface {
	MigrateGuestData(ctx context.Context, id domain.Identity, guestID, targetUserID, idempotencyKey string) (*domain.MigrationResult, error)
}

// ReportService files moderation reports.
type ReportService interface {
	ReportUser(ctx context.Context, id domain.Identity, in services.ReportInput) (*domain.Report, error)
}

// Handlers groups the API endpoints.
type Handlers struct {
	orders   OrderService
	messages MessageService
	guests   GuestService
	reports  ReportService
}

// New binds the handlers to their services.
func New(orders OrderService, messages MessageService, guests GuestService, reports ReportService) *Handlers {
	return &Handlers{orders: orders, messages: messages, guests: guests, reports: reports}
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// clampPagination reads page and page_size with the message listing
// defaults. Sizes below 1 become 1.
func clampPagination(c *gin.Context) (page, pageSize int) {
	pageSize = utils.AtoiDefault(c.Query("page_size"), services.DefaultMessagePageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	page, pageSize, _ = utils.PageBounds(utils.AtoiDefault(c.Query("page"), 1), pageSize,
		services.DefaultMessagePageSize, services.MaxMessagePageSize)
	return page, pageSize
}

// caller is the identity resolved by middleware.Identity.
func caller(c *gin.Context) domain.Identity { return middleware.GetIdentity(c) }

// idempotencyKey prefers the key validated by middleware and falls back to
// the raw header when the route has no validator.
func idempotencyKey(c *gin.Context) string {
	if k, ok := middleware.GetIdempotencyKey(c); ok {
		return k
	}
	return strings.TrimSpace(c.GetHeader(middleware.HeaderIdempotencyKey))
}
