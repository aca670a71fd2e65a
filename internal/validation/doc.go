// vaultkeep - Encrypted Incremental Backup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vaultkeep

// Package validation provides struct validation using go-playground/validator v10.
//
// This package wraps the go-playground/validator library to provide a
// thread-safe singleton validator instance with user-friendly error
// messages, used by the Controller to validate a BackupCreate before it
// reaches persistence (BackupUpdate patches are not validated).
//
// # Overview
//
// The package provides:
//   - Thread-safe singleton validator (initialized once, cached struct info)
//   - Comprehensive error translation to human-readable messages
//   - Built-in validator support (required, min/max, oneof, base64url, ...)
//   - Future v11 compatibility with WithRequiredStructEnabled
//
// # Quick Start
//
//	type BackupCreate struct {
//	    Name   string `validate:"required,min=1,max=200"`
//	    Source string `validate:"required"`
//	}
//
//	if verr := validation.ValidateStruct(in); verr != nil {
//	    return fmt.Errorf("%w: %v", engineerr.ErrInternal, verr)
//	}
//
// # Common Validation Tags
//
// String validations:
//   - required: Field must not be empty
//   - min=n: Minimum length n characters
//   - max=n: Maximum length n characters
//   - base64url: URL-safe base64 encoding
//
// Numeric validations:
//   - gte=n: Greater than or equal to n
//   - lte=n: Less than or equal to n
//   - gt=n: Greater than n
//   - lt=n: Less than n
//   - min=n: Minimum value n
//   - max=n: Maximum value n
//
// Enum validations:
//   - oneof=a b c: Must be one of the specified values
//
// # Error Types
//
// ValidationError represents a single field validation failure:
//
//	type ValidationError struct {
//	    Field()   string      // Struct field name
//	    Tag()     string      // Validation tag that failed
//	    Param()   string      // Tag parameter (e.g., "100" for max=100)
//	    Value()   interface{} // Actual value that failed
//	    Error()   string      // Human-readable message
//	}
//
// RequestValidationError aggregates multiple field errors:
//
//	type RequestValidationError struct {
//	    Errors() []ValidationError
//	    Error()  string // Combined message
//	}
//
// # Error Message Translation
//
// Human-readable messages are generated for common validation tags:
//
//	required   -> "Name is required"
//	min=1      -> "Name must be at least 1 characters"
//	max=200    -> "Name must be at most 200 characters"
//	gte=1      -> "Limit must be greater than or equal to 1"
//	lte=1000   -> "Limit must be less than or equal to 1000"
//	oneof=a b  -> "Status must be one of: a b"
//
// # Thread Safety
//
// The singleton validator is initialized once and safe for concurrent use:
//
//	validate := validation.GetValidator()  // Thread-safe
//	err := validation.ValidateStruct(in)    // Thread-safe
//
// # See Also
//
//   - internal/controller: the only caller of ValidateStruct in this engine
//   - github.com/go-playground/validator/v10: Underlying library
package validation
