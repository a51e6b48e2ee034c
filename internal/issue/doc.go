// SPDX-License-Identifier: MPL-2.0

// Package issue provides user-facing error types for the agentpack CLI.
//
// Pipeline and provisioning failures are surfaced to operators as
// ActionableError values: structured errors that carry the failed
// operation, the resource involved, and concrete suggestions for fixing
// the problem. Errors are built with the fluent ErrorContext builder and
// participate in errors.Is/errors.As chains via Unwrap.
package issue
