// Package keyboard renders the operator console's inline and reply
// keyboards and the callback payloads behind their buttons.
package keyboard

import (
	"errors"
	"fmt"
	"strings"
)

// CallbackDataLimitBytes is Telegram's limit on callback_data.
const CallbackDataLimitBytes = 64

const callbackSeparator = ":"

// Callback actions understood by the operator console.
const (
	ActionConfirm = "confirm"
	ActionReject  = "reject"
	ActionPending = "pending"
)

var ErrEmptyCallback = errors.New("callback data is empty")

// Callback is an inline button payload, encoded as "action" or "action:arg".
// Arg is a payment id or a page number.
type Callback struct {
	Action string
	Arg    string
}

func (c Callback) Encode() (string, error) {
	data := c.Action
	if c.Arg != "" {
		data += callbackSeparator + c.Arg
	}
	if len(data) > CallbackDataLimitBytes {
		return "", fmt.Errorf("callback %q: %d bytes exceeds the %d byte limit", c.Action, len(data), CallbackDataLimitBytes)
	}
	return data, nil
}

// ParseCallback splits data at the first separator, so Arg may itself
// contain separators.
func ParseCallback(data string) (Callback, error) {
	data = strings.TrimSpace(data)
	if data == "" {
		return Callback{}, ErrEmptyCallback
	}

	action, arg, _ := strings.Cut(data, callbackSeparator)
	return Callback{Action: action, Arg: strings.TrimSpace(arg)}, nil
}
