package interrupt

import "errors"

// ErrInvalidEvent — событие без event_id, с неизвестным kind или без нужных полей.
var ErrInvalidEvent = errors.New("invalid inbound event")
