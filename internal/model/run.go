package model

import "time"

// RunStatus is the lifecycle state of an audit run.
type RunStatus string

const (
	StatusPending           RunStatus = "pending"
	StatusProcessing        RunStatus = "processing"
	StatusSelectionRequired RunStatus = "selection_required"
	StatusSuccess           RunStatus = "success"
	StatusError             RunStatus = "error"
)

// Terminal reports whether the status admits no further transitions.
func (s RunStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusError
}

// Audit failure codes. These are stable API values: clients switch on them,
// so they never change once shipped.
const (
	CodeAmbiguousBusiness        = "AMBIGUOUS_BUSINESS"
	CodeInvalidDomain            = "INVALID_DOMAIN"
	CodeDomainVerificationFailed = "DOMAIN_VERIFICATION_FAILED"
	CodeInvalidIdentification    = "INVALID_IDENTIFICATION"
	CodePlacesSearchFailed       = "PLACES_SEARCH_FAILED"
	CodeBusinessNotFound         = "BUSINESS_NOT_FOUND"
	CodeAnalysisError            = "ANALYSIS_ERROR"
	CodePlanAuditLimitReached    = "PLAN_AUDIT_LIMIT_REACHED"
	CodePlanConcurrentLimit      = "PLAN_CONCURRENT_LIMIT_REACHED"
	CodePlanConfigurationError   = "PLAN_CONFIGURATION_ERROR"
	CodeQueueJobFailed           = "QUEUE_JOB_FAILED"
	CodeAuditQueueFailed         = "AUDIT_QUEUE_FAILED"
)

// AuditRun is one reputation audit request and its eventual outcome. A run
// paused for candidate selection keeps its row and is resumed in place, so
// the run id is stable across the pause.
type AuditRun struct {
	ID          string           `json:"id"`
	OwnerID     string           `json:"owner_id"`
	Status      RunStatus        `json:"status"`
	Identity    BusinessIdentity `json:"identity"`
	Candidates  []Candidate      `json:"candidates,omitempty"`
	Result      *ScanResult      `json:"result,omitempty"`
	ErrorCode   string           `json:"error_code,omitempty"`
	Error       string           `json:"error,omitempty"`
	RequestIP   string           `json:"request_ip,omitempty"`
	RequestUA   string           `json:"request_user_agent,omitempty"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// RequestMeta captures where an audit request came from. It is persisted on
// the run for traceability.
type RequestMeta struct {
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// RunError carries a stable failure code alongside a human-readable message.
type RunError struct {
	Code    string
	Message string
}

func (e *RunError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

// NewRunError builds a RunError with the given code and message.
func NewRunError(code, message string) *RunError {
	return &RunError{Code: code, Message: message}
}
