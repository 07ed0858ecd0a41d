package signaling

import "errors"

// Join rejections. Both are reported to the offending client only.
var (
	ErrPasswordRequired = errors.New("signaling: password required")
	ErrWrongPassword    = errors.New("signaling: wrong password")
)

// clientMessage returns the text sent in an error message for err.
func clientMessage(err error) string {
	switch {
	case errors.Is(err, ErrPasswordRequired):
		return "Password required"
	case errors.Is(err, ErrWrongPassword):
		return "Wrong password"
	default:
		return "Internal error"
	}
}
