package constants

const (
	ApplicationStatusPending  = "pending"
	ApplicationStatusApproved = "approved"
	ApplicationStatusRejected = "rejected"
)

const (
	TenantStatusActive     = "active"
	TenantStatusPending    = "pending"
	TenantStatusTerminated = "terminated"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusOverdue   = "overdue"
	PaymentStatusFailed    = "failed"
)

const (
	EventTypeCreate    = "create"
	EventTypeApprove   = "approve"
	EventTypeReject    = "reject"
	EventTypeDelete    = "delete"
	EventTypeTerminate = "terminate"
)

const (
	ResourceTypeProperty    = "property"
	ResourceTypeApplication = "application"
	ResourceTypeTenant      = "tenant"
	ResourceTypePayment     = "payment"
)

const (
	AuditResultSuccess = "success"
	AuditResultFailed  = "failed"
)

const (
	BillingAnchorArrears = "arrears"
	BillingAnchorAdvance = "advance"
)

const (
	RoleOwner     = "owner"
	RoleApplicant = "applicant"
	RoleAdmin     = "admin"
)

// DefaultLeaseDurations 默认允许的租期（月）
var DefaultLeaseDurations = []int{1, 3, 6, 9, 12, 18, 24, 36}

const (
	AuthHeaderRequired          = "Authorization header is required"
	AuthHeaderInvalidFormat     = "Authorization header format must be Bearer {token}"
	AuthTokenInvalidOrExpired   = "Invalid or expired token"
	AuthTokenInvalid            = "Invalid token"
	AuthUserRoleNotFound        = "User role not found"
	AuthInvalidUserRoleFormat   = "Invalid user role format"
	AuthInsufficientPermissions = "Insufficient permissions"
)
