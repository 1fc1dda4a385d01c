package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/tbourn/go-pickup-backend/internal/apperr"
	"github.com/tbourn/go-pickup-backend/internal/domain"
	"github.com/tbourn/go-pickup-backend/internal/observability"
	"github.com/tbourn/go-pickup-backend/internal/repo"
)

// Report description bounds and the per-pair cooldown.
const (
	MinReportDescriptionLen = 10
	MaxReportDescriptionLen = 1000
	ReportCooldown          = 24 * time.Hour
)

// ReportInput files a moderation report.
type ReportInput struct {
	ReportedUserID string  `json:"reported_user_id"`
	Reason         string  `json:"reason"`
	Description    string  `json:"description"`
	OrderID        *string `json:"order_id,omitempty"`
	IdempotencyKey string  `json:"-"`
}

// ReportService records user reports.
type ReportService struct {
	DB   *gorm.DB
	Idem *IdempotencyCache

	now func() time.Time
}

// NewReportService builds a ReportService.
func NewReportService(db *gorm.DB, idem *IdempotencyCache) *ReportService {
	return &ReportService{DB: db, Idem: idem, now: repo.Now}
}

// ReportUser files a report from the caller against another registered
// user. One report per pair is accepted per ReportCooldown.
func (s *ReportService) ReportUser(ctx context.Context, id domain.Identity, in ReportInput) (out *domain.Report, err error) {
	ctx, span := observability.StartSpan(ctx, "services/ReportService", "ReportUser",
		attribute.String("report.reason", in.Reason),
	)
	defer func() { observability.EndSpan(span, err) }()

	if id.IsZero() {
		return nil, ErrUnauthorized
	}
	if id.IsGuest() {
		return nil, ErrForbidden.WithMessage("sign in to report a user")
	}

	in.ReportedUserID = strings.TrimSpace(in.ReportedUserID)
	in.Reason = strings.ToLower(strings.TrimSpace(in.Reason))
	in.Description = strings.TrimSpace(in.Description)
	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)
	if in.OrderID != nil && strings.TrimSpace(*in.OrderID) == "" {
		in.OrderID = nil
	}

	switch n := utf8.RuneCountInString(in.Description); {
	case in.ReportedUserID == "":
		return nil, apperr.Validation("reported_user_id is required")
	case in.ReportedUserID == id.UserID:
		return nil, apperr.Validation("you cannot report yourself")
	case !domain.ValidReportReason(in.Reason):
		return nil, apperr.Validation("reason must be one of: " + strings.Join(domain.ReportReasons, ", "))
	case n < MinReportDescriptionLen || n > MaxReportDescriptionLen:
		return nil, apperr.Validation(fmt.Sprintf("description must be between %d and %d characters", MinReportDescriptionLen, MaxReportDescriptionLen))
	}
	if err := validateIdempotencyKey(in.IdempotencyKey); err != nil {
		return nil, err
	}

	return runIdempotent(ctx, s.Idem, FnReportUser, id.ID(), in.IdempotencyKey, in,
		func(ctx context.Context) (*domain.Report, error) {
			return s.file(ctx, id.UserID, in)
		})
}

func (s *ReportService) file(ctx context.Context, reporterID string, in ReportInput) (*domain.Report, error) {
	if _, err := repo.GetUser(ctx, s.DB, in.ReportedUserID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, errors.Wrap(err, "load reported user")
	}
	if in.OrderID != nil {
		if _, err := repo.GetOrder(ctx, s.DB, *in.OrderID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, ErrOrderNotFound
			}
			return nil, errors.Wrap(err, "load order")
		}
	}

	now := s.clock()
	dup, err := repo.RecentReportExists(ctx, s.DB, reporterID, in.ReportedUserID, now.Add(-ReportCooldown))
	if err != nil {
		return nil, errors.Wrap(err, "check recent reports")
	}
	if dup {
		return nil, ErrDuplicateReport
	}

	r := &domain.Report{
		ReporterID:     reporterID,
		ReportedUserID: in.ReportedUserID,
		OrderID:        in.OrderID,
		Reason:         in.Reason,
		Description:    in.Description,
		Priority:       domain.ReportPriority(in.Reason),
		Status:         "pending",
		CreatedAt:      now,
	}
	if err := repo.CreateReport(ctx, s.DB, r); err != nil {
		return nil, errors.Wrap(err, "insert report")
	}
	log.Info().
		Str("report_id", r.ID).
		Str("reason", r.Reason).
		Str("priority", r.Priority).
		Msg("user report filed")
	return r, nil
}

func (s *ReportService) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return repo.Now()
}
