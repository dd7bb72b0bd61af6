package models

// Report statuses as stored. "pending" is lowercase while the review
// outcomes are capitalized; this matches what the moderation UI expects.
const (
	ReportStatusPending  = "pending"
	ReportStatusAccepted = "Accepted"
	ReportStatusRejected = "Rejected"
)

// Report is one abuse report filed by one user against another.
type Report struct {
	ID               string `json:"id"`
	ReporterID       string `json:"reporter_id"`
	ReporterName     string `json:"reporter_name"`
	ReporterRole     string `json:"reporter_role"`
	ReportedUserID   string `json:"reported_user_id"`
	ReportedUserName string `json:"reported_user_name"`
	ReportedUserRole string `json:"reported_user_role"`
	Reason           string `json:"reason"`
	Timestamp        int64  `json:"timestamp"` // ms since epoch
	Status           string `json:"status"`
}

// ProductReport is an abuse report against a product listing. Accepting
// it removes the listing.
type ProductReport struct {
	ID          string `json:"id"`
	ReporterID  string `json:"reporter_id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	SellerID    string `json:"seller_id"`
	Reason      string `json:"reason"`
	Timestamp   int64  `json:"timestamp"`
	Status      string `json:"status"`
}

// Warning is one abuse warning issued against a user. Warnings accumulate
// and drive ban escalation; they are never deleted by the engine.
type Warning struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Reason    string `json:"reason"`
	Timestamp int64  `json:"timestamp"` // ms since epoch
	IsRead    bool   `json:"is_read"`
}

// Ban is the temporary suspension state for a user. At most one record
// exists per user; a new escalation overwrites the previous one.
type Ban struct {
	UserID          string `json:"user_id"`
	BannedAt        int64  `json:"banned_at"`      // ms since epoch
	BanExpiresAt    int64  `json:"ban_expires_at"` // ms since epoch
	BanDurationDays int    `json:"ban_duration_days"`
	WarningCount    int    `json:"warning_count"`
	Reason          string `json:"reason"`
	IsActive        bool   `json:"is_active"`
}

// AdminNotification is the record written to the moderation feed whenever
// a report is accepted for processing.
type AdminNotification struct {
	ID               string `json:"id"`
	Type             string `json:"type"` // "user_report" or "product_report"
	ReporterID       string `json:"reporter_id"`
	ReporterName     string `json:"reporter_name"`
	ReportedUserID   string `json:"reported_user_id"`
	ReportedUserName string `json:"reported_user_name"`
	Reason           string `json:"reason"`
	Timestamp        int64  `json:"timestamp"`
}
