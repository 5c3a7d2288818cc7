package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionSignUp           = "SIGN_UP"
	AuditActionLogin            = "LOGIN"
	AuditActionLogout           = "LOGOUT"
	AuditActionPasswordChange   = "PASSWORD_CHANGE"
	AuditActionPasswordReset    = "PASSWORD_RESET"
	AuditActionClassCreate      = "CLASS_CREATE"
	AuditActionClassUpdate      = "CLASS_UPDATE"
	AuditActionClassDelete      = "CLASS_DELETE"
	AuditActionEnroll           = "ENROLL"
	AuditActionCancelEnrollment = "CANCEL_ENROLLMENT"
	AuditActionLimitAssign      = "LIMIT_ASSIGN"
	AuditActionLimitUpdate      = "LIMIT_UPDATE"
	AuditActionLimitDelete      = "LIMIT_DELETE"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
