package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Error types for consistent error handling across the service.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a failure in an external service call.
// This is the transient store error: retryable by the caller, never retried by the core.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates a validation error on a single field.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrValidationSet carries every failing field of a request body.
type ErrValidationSet struct {
	Fields map[string]string
}

func (e *ErrValidationSet) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// ErrAlreadyExists indicates the resource is already registered (e.g. duplicate email).
type ErrAlreadyExists struct {
	Message string
}

func (e *ErrAlreadyExists) Error() string {
	return e.Message
}

// ErrForbidden indicates the caller lacks permission for the operation.
type ErrForbidden struct {
	Action string
}

func (e *ErrForbidden) Error() string {
	return fmt.Sprintf("forbidden: %s", e.Action)
}

// ErrUnauthorized indicates a missing, invalid or expired session.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// IdentityErrorKind classifies failures reported by the identity provider.
type IdentityErrorKind string

const (
	IdentityAlreadyRegistered IdentityErrorKind = "already_registered"
	IdentityWeakPassword      IdentityErrorKind = "weak_password"
	IdentityOther             IdentityErrorKind = "other"
)

// ErrIdentity is a rejection by the identity provider (a 4xx answer, not a transport failure).
type ErrIdentity struct {
	Kind    IdentityErrorKind
	Message string
}

func (e *ErrIdentity) Error() string {
	return fmt.Sprintf("identity provider rejected request [%s]: %s", e.Kind, e.Message)
}

// ProvisioningStep names one write of the user provisioning sequence.
type ProvisioningStep string

const (
	StepAccount ProvisioningStep = "account"
	StepProfile ProvisioningStep = "profile"
	StepRole    ProvisioningStep = "role"
)

// ErrPartialProvisioning records a failed enrichment step after the account was created.
type ErrPartialProvisioning struct {
	Step ProvisioningStep
	Err  error
}

func (e *ErrPartialProvisioning) Error() string {
	return fmt.Sprintf("account created but step '%s' failed: %v", e.Step, e.Err)
}

func (e *ErrPartialProvisioning) Unwrap() error {
	return e.Err
}

// ErrPostalCodeNotFound indicates the lookup service answered but knows no such code.
type ErrPostalCodeNotFound struct {
	PostalCode string
}

func (e *ErrPostalCodeNotFound) Error() string {
	return fmt.Sprintf("CEP não encontrado: %s", e.PostalCode)
}
