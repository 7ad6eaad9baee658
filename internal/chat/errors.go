package chat

var (
	ErrNameTaken      = errorString("name_taken")
	ErrNameInvalid    = errorString("name_invalid")
	ErrUserNotFound   = errorString("user_not_found")
	ErrEmptyMessage   = errorString("empty_message")
	ErrUnknownCommand = errorString("unknown_command")
	ErrNickRequired   = errorString("nick_required")
	ErrLineTooLong    = errorString("line_too_long")
	ErrBadEncoding    = errorString("bad_encoding")
	ErrServerClosed   = errorString("server_closed")
)

type errorString string

func (e errorString) Error() string { return string(e) }

// usageError reports a malformed command argument list. The error text is the
// usage line shown to the client.
type usageError string

func (e usageError) Error() string { return string(e) }

// clientText maps an error to the line sent back to the offending client.
func clientText(err error) string {
	switch err {
	case ErrNameTaken:
		return "Nickname already in use. Try another."
	case ErrNameInvalid:
		return "Nickname must be 1-32 printable characters without spaces."
	case ErrEmptyMessage:
		return "Cannot send an empty message."
	case ErrUnknownCommand:
		return "Unknown command. Type /help"
	case ErrNickRequired:
		return "Set your nickname first: /nick <name>"
	case ErrLineTooLong:
		return "Line too long (max 4096 bytes)."
	case ErrBadEncoding:
		return "Input was not valid UTF-8."
	case ErrServerClosed:
		return "Server is shutting down."
	}
	if u, ok := err.(usageError); ok {
		return string(u)
	}
	return err.Error()
}
