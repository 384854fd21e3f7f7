package errors

var (
	// Domain errors — used in service/repository
	ErrSelfConversation     = InvalidArg("you cannot create a conversation with yourself")
	ErrEmptyContent         = InvalidArg("a message must contain at least 1 character")
	ErrUserNotFound         = NotFound("user not found")
	ErrRecipientNotFound    = NotFound("the selected user does not exist")
	ErrConversationNotFound = NotFound("the conversation does not exist")
	ErrMessageNotFound      = NotFound("message not found")
	ErrNotParticipant       = Forbidden("access denied")
	ErrNotSender            = Forbidden("only the sender may delete for all")
)

// ErrBroadcastFailed marks a realtime emission attempt that threw. It never
// rolls back the write that triggered it; the REST read path stays the
// source of truth.
func ErrBroadcastFailed(cause error) *AppError {
	return &AppError{Code: CodeUnavailable, Message: "a problem with the message server", Cause: cause}
}
