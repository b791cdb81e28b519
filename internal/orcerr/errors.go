// Package orcerr declares the sentinel errors the control loop and its
// subsystems use to distinguish recoverable failures from abort conditions.
package orcerr

import "errors"

var (
	// ErrPolicyViolation is raised when the Policy Engine rejects a plan,
	// diff, or command list. The FSM catches it and routes to ABORT.
	ErrPolicyViolation = errors.New("policy violation")

	// ErrAbort wraps a precise abort reason produced by the global-abort
	// predicate (timeout, token limit, retry limit).
	ErrAbort = errors.New("aborted")

	// ErrPatchRejected marks a diff that failed validation or application.
	ErrPatchRejected = errors.New("patch rejected")

	// ErrNoValidPatches is returned by the Patch Engine when a diff parses
	// to zero FilePatches.
	ErrNoValidPatches = errors.New("no valid patches")

	// ErrUnknownTool is returned by a tool registry for an unregistered name.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrWorkDirMissing marks a task whose working directory does not exist.
	ErrWorkDirMissing = errors.New("working directory does not exist")
)
