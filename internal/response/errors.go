package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden ErrCode = "FORBIDDEN"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Session-specific ──────────────────────────────────────────────
	ErrSessionInit      ErrCode = "SESSION_INIT_FAILED"
	ErrLoadFailed       ErrCode = "LOAD_FAILED"
	ErrTestNotAvailable ErrCode = "TEST_NOT_AVAILABLE"
	ErrNoActiveAttempt  ErrCode = "NO_ACTIVE_ATTEMPT"
	ErrAttemptFinished  ErrCode = "ATTEMPT_FINISHED"
	ErrPersistDegraded  ErrCode = "PERSIST_DEGRADED"

	// ─── Audio ─────────────────────────────────────────────────────────
	ErrAudioConsumed     ErrCode = "AUDIO_ALREADY_PLAYED"
	ErrProfileIDRequired ErrCode = "CLIENT_PROFILE_REQUIRED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"
	ErrInternal          ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is not valid."
	case ErrTokenExpired:
		return "The authentication token has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "The identifier format is not valid."
	case ErrInvalidPayload:
		return "The request payload is not valid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "The resource was not found."
	case ErrConflict:
		return "The resource already exists."

	// ─── Session-specific ──────────────────────────────────────────────
	case ErrSessionInit:
		return "The test session could not be started."
	case ErrLoadFailed:
		return "The test content could not be loaded. Please retry."
	case ErrTestNotAvailable:
		return "This test is not currently available."
	case ErrNoActiveAttempt:
		return "No active attempt for this test."
	case ErrAttemptFinished:
		return "This attempt has already finished."
	case ErrPersistDegraded:
		return "Your answer is saved on this device and will sync when the connection recovers."

	// ─── Audio ─────────────────────────────────────────────────────────
	case ErrAudioConsumed:
		return "This recording can only be played once."
	case ErrProfileIDRequired:
		return "A client profile identifier is required."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please slow down."
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
