package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"pasar/internal/models"
	"pasar/internal/store"
)

// Ban escalation policy: once a user has accumulated banThreshold
// warnings, every further accepted report bans them for a duration that
// grows with the warning count.
const banThreshold = 3

func banDurationDays(warningCount int) int {
	switch {
	case warningCount >= 5:
		return 30
	case warningCount == 4:
		return 14
	default:
		return 7
	}
}

// ModerationService records abuse reports, accumulates warnings against
// the reported user, and escalates to a time-bounded ban once the
// warning threshold is crossed.
type ModerationService struct {
	store store.Store
}

// NewModerationService creates a new ModerationService.
func NewModerationService(st store.Store) *ModerationService {
	return &ModerationService{store: st}
}

// ReportUserInput is a submitted abuse report against a user.
type ReportUserInput struct {
	ReporterID       string `json:"reporter_id" validate:"required"`
	ReporterName     string `json:"reporter_name"`
	ReporterRole     string `json:"reporter_role"`
	ReportedUserID   string `json:"reported_user_id" validate:"required"`
	ReportedUserName string `json:"reported_user_name"`
	ReportedUserRole string `json:"reported_user_role"`
	Reason           string `json:"reason" validate:"required"`
}

// ReportResult is the successful outcome of ReportUser.
type ReportResult struct {
	ReportID     string `json:"report_id"`
	Banned       bool   `json:"banned"`
	BanExpiresAt int64  `json:"ban_expires_at,omitempty"`
	Message      string `json:"message"`
}

// ReportUser persists the report, appends a warning to the reported
// user, and evaluates ban escalation against the freshly counted
// warnings. The warning append is best-effort: its failure does not roll
// back the report and does not skip escalation.
func (s *ModerationService) ReportUser(ctx context.Context, input ReportUserInput) (*ReportResult, error) {
	if strings.TrimSpace(input.Reason) == "" {
		return nil, ErrMissingReason
	}

	now := time.Now().UnixMilli()

	reportID, err := s.store.GenerateID(ctx, "reports")
	if err != nil {
		return nil, &PersistenceError{Op: "generate report id", Err: err}
	}
	report := models.Report{
		ID:               reportID,
		ReporterID:       input.ReporterID,
		ReporterName:     input.ReporterName,
		ReporterRole:     input.ReporterRole,
		ReportedUserID:   input.ReportedUserID,
		ReportedUserName: input.ReportedUserName,
		ReportedUserRole: input.ReportedUserRole,
		Reason:           input.Reason,
		Timestamp:        now,
		Status:           models.ReportStatusPending,
	}
	if err := s.store.Set(ctx, store.Join("reports", reportID), report); err != nil {
		return nil, &PersistenceError{Op: "save report", Err: err}
	}

	// Warning append. Failure is logged, not propagated: the report is
	// already durable and escalation still runs against whatever count
	// is currently stored.
	if err := s.appendWarning(ctx, input.ReportedUserID, input.Reason, now); err != nil {
		log.Printf("Warning: failed to record warning for user %s: %v", input.ReportedUserID, err)
	}

	banned, expiresAt := s.escalate(ctx, input.ReportedUserID, input.Reason, now)

	s.notifyAdmins(ctx, "user_report", report, now)

	result := &ReportResult{
		ReportID: reportID,
		Banned:   banned,
		Message:  fmt.Sprintf("%s has been reported and warned", input.ReportedUserName),
	}
	if banned {
		result.BanExpiresAt = expiresAt
		result.Message = fmt.Sprintf("%s has been reported, warned, and banned", input.ReportedUserName)
	}
	return result, nil
}

func (s *ModerationService) appendWarning(ctx context.Context, userID, reason string, now int64) error {
	warningID, err := s.store.GenerateID(ctx, store.Join("warnings", userID))
	if err != nil {
		return err
	}
	warning := models.Warning{
		ID:        warningID,
		UserID:    userID,
		Reason:    reason,
		Timestamp: now,
		IsRead:    false,
	}
	return s.store.Set(ctx, store.Join("warnings", userID, warningID), warning)
}

// escalate counts the warnings currently stored for the user (a fresh
// read, never a cached count) and writes a ban once the threshold is
// crossed. The new ban overwrites any prior one; last escalation wins.
func (s *ModerationService) escalate(ctx context.Context, userID, reason string, now int64) (bool, int64) {
	var warnings []models.Warning
	if err := s.store.List(ctx, store.Join("warnings", userID), &warnings); err != nil {
		log.Printf("Warning: failed to count warnings for user %s: %v", userID, err)
		return false, 0
	}
	count := len(warnings)
	if count < banThreshold {
		return false, 0
	}

	days := banDurationDays(count)
	expiresAt := now + int64(days)*24*int64(time.Hour/time.Millisecond)
	ban := models.Ban{
		UserID:          userID,
		BannedAt:        now,
		BanExpiresAt:    expiresAt,
		BanDurationDays: days,
		WarningCount:    count,
		Reason:          reason,
		IsActive:        true,
	}
	if err := s.store.Set(ctx, store.Join("bans", userID), ban); err != nil {
		log.Printf("Warning: failed to save ban for user %s: %v", userID, err)
		return false, 0
	}
	return true, expiresAt
}

func (s *ModerationService) notifyAdmins(ctx context.Context, kind string, report models.Report, now int64) {
	id, err := s.store.GenerateID(ctx, "adminNotifications")
	if err != nil {
		log.Printf("Warning: failed to generate admin notification id: %v", err)
		return
	}
	notification := models.AdminNotification{
		ID:               id,
		Type:             kind,
		ReporterID:       report.ReporterID,
		ReporterName:     report.ReporterName,
		ReportedUserID:   report.ReportedUserID,
		ReportedUserName: report.ReportedUserName,
		Reason:           report.Reason,
		Timestamp:        now,
	}
	if err := s.store.Set(ctx, store.Join("adminNotifications", id), notification); err != nil {
		log.Printf("Warning: failed to save admin notification: %v", err)
	}
}

// IsUserBanned reports whether the user is currently banned and, if so,
// when the ban expires (ms since epoch). An active ban whose expiry has
// passed is lifted lazily as a side effect of this check; there is no
// background sweep.
func (s *ModerationService) IsUserBanned(ctx context.Context, userID string) (bool, int64, error) {
	var ban models.Ban
	err := s.store.Get(ctx, store.Join("bans", userID), &ban)
	if errors.Is(err, store.ErrNotFound) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, &PersistenceError{Op: fmt.Sprintf("read ban for user %s", userID), Err: err}
	}
	if !ban.IsActive {
		return false, 0, nil
	}

	now := time.Now().UnixMilli()
	if now < ban.BanExpiresAt {
		return true, ban.BanExpiresAt, nil
	}

	// Expired: lift the ban on read.
	if err := s.store.UpdateFields(ctx, store.Join("bans", userID), map[string]any{"is_active": false}); err != nil {
		log.Printf("Warning: failed to lift expired ban for user %s: %v", userID, err)
	}
	return false, 0, nil
}

// WarningsForUser lists every warning recorded against the user.
func (s *ModerationService) WarningsForUser(ctx context.Context, userID string) ([]models.Warning, error) {
	var warnings []models.Warning
	if err := s.store.List(ctx, store.Join("warnings", userID), &warnings); err != nil {
		return nil, &PersistenceError{Op: fmt.Sprintf("list warnings for user %s", userID), Err: err}
	}
	return warnings, nil
}

// MarkWarningRead flips a warning's acknowledged flag.
func (s *ModerationService) MarkWarningRead(ctx context.Context, userID, warningID string) error {
	err := s.store.UpdateFields(ctx, store.Join("warnings", userID, warningID), map[string]any{"is_read": true})
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("warning with ID %s not found", warningID)
	}
	if err != nil {
		return &PersistenceError{Op: fmt.Sprintf("update warning %s", warningID), Err: err}
	}
	return nil
}

// ReportProductInput is a submitted abuse report against a product
// listing.
type ReportProductInput struct {
	ReporterID  string `json:"reporter_id" validate:"required"`
	ProductID   string `json:"product_id" validate:"required"`
	ProductName string `json:"product_name"`
	SellerID    string `json:"seller_id"`
	Reason      string `json:"reason" validate:"required"`
}

// ReportProduct records an abuse report against a product listing for
// admin review. No warning is issued until the report is accepted.
func (s *ModerationService) ReportProduct(ctx context.Context, input ReportProductInput) (string, error) {
	if strings.TrimSpace(input.Reason) == "" {
		return "", ErrMissingReason
	}

	now := time.Now().UnixMilli()
	reportID, err := s.store.GenerateID(ctx, "productReports")
	if err != nil {
		return "", &PersistenceError{Op: "generate product report id", Err: err}
	}
	report := models.ProductReport{
		ID:          reportID,
		ReporterID:  input.ReporterID,
		ProductID:   input.ProductID,
		ProductName: input.ProductName,
		SellerID:    input.SellerID,
		Reason:      input.Reason,
		Timestamp:   now,
		Status:      models.ReportStatusPending,
	}
	if err := s.store.Set(ctx, store.Join("productReports", reportID), report); err != nil {
		return "", &PersistenceError{Op: "save product report", Err: err}
	}
	return reportID, nil
}

// ReviewProductReport resolves a pending product report. Accepting the
// report removes the reported product listing.
func (s *ModerationService) ReviewProductReport(ctx context.Context, reportID string, accept bool) error {
	var report models.ProductReport
	err := s.store.Get(ctx, store.Join("productReports", reportID), &report)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("product report with ID %s not found", reportID)
	}
	if err != nil {
		return &PersistenceError{Op: fmt.Sprintf("read product report %s", reportID), Err: err}
	}

	status := models.ReportStatusRejected
	if accept {
		status = models.ReportStatusAccepted
	}
	if err := s.store.UpdateFields(ctx, store.Join("productReports", reportID), map[string]any{"status": status}); err != nil {
		return &PersistenceError{Op: fmt.Sprintf("update product report %s", reportID), Err: err}
	}

	if accept {
		if err := s.store.Remove(ctx, store.Join("products", report.ProductID)); err != nil {
			return &PersistenceError{Op: fmt.Sprintf("remove reported product %s", report.ProductID), Err: err}
		}
	}
	return nil
}
