package winappdriver

import (
	"errors"
	"fmt"
)

// WebDriver error kinds (W3C "error" codes).
const (
	KindNoSuchElement     = "no such element"
	KindStaleElement      = "stale element reference"
	KindNoSuchWindow      = "no such window"
	KindInvalidSession    = "invalid session id"
	KindSessionNotCreated = "session not created"
	KindNotInteractable   = "element not interactable"
	KindTimeout           = "timeout"
	KindUnknownCommand    = "unknown command"
	KindUnknown           = "unknown error"
)

// Sentinels for errors.Is. Any *Error of the matching kind satisfies them.
var (
	ErrNoSuchElement = errors.New(KindNoSuchElement)
	ErrStaleElement  = errors.New(KindStaleElement)
)

// legacyKinds maps JSON wire status codes to W3C error kinds.
var legacyKinds = map[int]string{
	6:  KindInvalidSession,
	7:  KindNoSuchElement,
	9:  KindUnknownCommand,
	10: KindStaleElement,
	11: KindNotInteractable,
	13: KindUnknown,
	21: KindTimeout,
	23: KindNoSuchWindow,
	33: KindSessionNotCreated,
}

// Error is a WebDriver error returned by the server.
type Error struct {
	HTTPStatus int    // HTTP status of the response
	Status     int    // legacy JSON wire status, 0 for W3C responses
	Kind       string // W3C error code
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches the package sentinels by kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNoSuchElement:
		return e.Kind == KindNoSuchElement
	case ErrStaleElement:
		return e.Kind == KindStaleElement
	}
	return false
}

// IsNotFound reports whether err means the element is gone: either it was
// never found or the reference went stale.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNoSuchElement) || errors.Is(err, ErrStaleElement)
}

func responseError(httpStatus int, result map[string]interface{}) error {
	// Legacy JSON wire: {"status": 7, "value": {"message": "..."}}
	if status, ok := result["status"].(float64); ok && status != 0 {
		kind, known := legacyKinds[int(status)]
		if !known {
			kind = KindUnknown
		}
		return &Error{HTTPStatus: httpStatus, Status: int(status), Kind: kind, Message: valueMessage(result)}
	}

	// W3C: {"value": {"error": "...", "message": "..."}}
	if value, ok := result["value"].(map[string]interface{}); ok {
		if kind, ok := value["error"].(string); ok && kind != "" {
			return &Error{HTTPStatus: httpStatus, Kind: kind, Message: valueMessage(result)}
		}
	}

	if httpStatus >= 400 {
		return &Error{HTTPStatus: httpStatus, Kind: KindUnknown, Message: fmt.Sprintf("HTTP %d", httpStatus)}
	}
	return nil
}

func valueMessage(result map[string]interface{}) string {
	switch v := result["value"].(type) {
	case map[string]interface{}:
		msg, _ := v["message"].(string)
		return msg
	case string:
		return v
	}
	return ""
}
