// Package service provides the business operations exposed by Stockwarden.
package service

import (
	"fmt"

	"github.com/prn-tf/stockwarden/internal/domain"
)

// Service errors. Each wraps the domain kind it is reported as.
var (
	// ErrLastAdmin is returned when a change would leave no ADMIN account.
	ErrLastAdmin = fmt.Errorf("%w: at least one admin must remain", domain.ErrForbidden)

	// ErrSelfModification is returned when an admin tries to demote or delete themselves.
	ErrSelfModification = fmt.Errorf("%w: admins cannot change their own account here", domain.ErrForbidden)

	// ErrReportInProgress is returned when a report for the same recipient is already being sent.
	ErrReportInProgress = fmt.Errorf("%w: a report for this recipient is already being sent", domain.ErrInvalidArgument)

	// ErrEmptyUpdate is returned when a partial update changes nothing.
	ErrEmptyUpdate = fmt.Errorf("%w: price or quantity is required", domain.ErrInvalidArgument)
)
