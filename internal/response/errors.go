package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrInstructorOnly    ErrCode = "INSTRUCTOR_ACCESS_ONLY"
	ErrExamForbidden     ErrCode = "EXAM_FORBIDDEN"
	ErrNotExamAuthor     ErrCode = "NOT_EXAM_AUTHOR"
	ErrAttemptNotVisible ErrCode = "ATTEMPT_NOT_VISIBLE"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Submission ────────────────────────────────────────────────────
	ErrAlreadySubmitted    ErrCode = "ALREADY_SUBMITTED"
	ErrOperationInProgress ErrCode = "OPERATION_IN_PROGRESS"
	ErrStorage             ErrCode = "STORAGE_ERROR"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid."
	case ErrTokenExpired:
		return "Authentication token has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrStudentAccessOnly:
		return "This resource is restricted to students."
	case ErrInstructorOnly:
		return "This resource is restricted to instructors and administrators."
	case ErrExamForbidden:
		return "This exam is not assigned to you."
	case ErrNotExamAuthor:
		return "Only the author of this exam or an administrator may do this."
	case ErrAttemptNotVisible:
		return "You may only view your own results."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."

	// ─── Submission ────────────────────────────────────────────────────
	case ErrAlreadySubmitted:
		return "You have already completed this exam."
	case ErrOperationInProgress:
		return "Your submission is already being processed. Please wait a moment."
	case ErrStorage:
		return "Your answers could not be saved. Please try again shortly."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
