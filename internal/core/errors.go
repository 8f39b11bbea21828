package core

// Error codes for domain errors surfaced to connections.
const (
	ErrCodeNoTarget          = "no_target"
	ErrCodeAmbiguousTarget   = "ambiguous_target"
	ErrCodeInvalidType       = "invalid_message_type"
	ErrCodeEmptyContent      = "empty_content"
	ErrCodeMissingFile       = "missing_file"
	ErrCodeUnknownReceiver   = "unknown_receiver"
	ErrCodeUnknownRoom       = "unknown_room"
	ErrCodeNotAMember        = "not_a_member"
	ErrCodeMessageNotFound   = "message_not_found"
	ErrCodeAlreadyDeleted    = "already_deleted"
	ErrCodeForbidden         = "forbidden"
	ErrCodeWrongType         = "wrong_type"
	ErrCodePersistenceFailed = "persistence_failed"
	ErrCodeBadRequest        = "bad_request"
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

// Retryable reports whether the caller may safely resubmit the operation.
func (e *CoreError) Retryable() bool {
	return e.Code == ErrCodePersistenceFailed
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
