package services

import "errors"

var (
	// ErrEditorInvalidInput flags malformed commands before any state is touched.
	ErrEditorInvalidInput = errors.New("editor: invalid input")
	// ErrSessionNotFound flags lookups of missing or expired sessions.
	ErrSessionNotFound = errors.New("editor: session not found")
)
