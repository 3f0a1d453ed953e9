package domain

// ============================================================
// User provisioning: admin-create-user / admin-delete-user
// ============================================================

// CreateUserRequest is the body for POST admin-create-user.
type CreateUserRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6"`
	DisplayName string `json:"nome" validate:"required"`
	Role        Role   `json:"role" validate:"required,oneof=admin operator"`
}

// DeleteUserRequest is the body for POST admin-delete-user.
type DeleteUserRequest struct {
	UserID string `json:"userId" validate:"required,uuid"`
}

// ProvisionOutcome is the overall result of a create-user request.
type ProvisionOutcome string

const (
	// OutcomeCreated means account, profile and role were all written.
	OutcomeCreated ProvisionOutcome = "created"
	// OutcomeCreatedWithWarning means the account exists but profile or role failed.
	OutcomeCreatedWithWarning ProvisionOutcome = "created_with_warning"
	// OutcomeRejected means nothing was created.
	OutcomeRejected ProvisionOutcome = "rejected"
)

// ProvisionedUser is the user echoed back by admin-create-user.
type ProvisionedUser struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"nome"`
	Role        Role   `json:"role"`
}

// ProvisionResult describes what a create-user request left behind.
type ProvisionResult struct {
	Outcome  ProvisionOutcome          `json:"outcome"`
	User     *ProvisionedUser          `json:"user,omitempty"`
	Warnings []string                  `json:"warnings,omitempty"`
	Failures []*ErrPartialProvisioning `json:"-"`
}

// RemovalResult describes a delete-user request. Warnings list cleanup steps that failed.
type RemovalResult struct {
	UserID   string   `json:"userId"`
	Warnings []string `json:"warnings,omitempty"`
}
