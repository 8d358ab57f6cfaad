package service

import "errors"

// Domain Errors
var (
	ErrUnauthenticated     = errors.New("authenticated identity required")
	ErrForbidden           = errors.New("exam is not assigned to the caller's roles")
	ErrAlreadySubmitted    = errors.New("exam already submitted")
	ErrOperationInProgress = errors.New("submission already in progress")
	ErrNotFound            = errors.New("not found")
	ErrStorage             = errors.New("storage failure")

	ErrNotExamAuthor     = errors.New("not the author of this exam")
	ErrInstructorOnly    = errors.New("instructor or administrator role required")
	ErrAttemptNotVisible = errors.New("attempt belongs to another student")
)
