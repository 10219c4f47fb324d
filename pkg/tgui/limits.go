package tgui

import "errors"

// MaxCallbackDataLen is Telegram's callback_data size limit in bytes.
const MaxCallbackDataLen = 64

// MaxButtonTextRunes keeps labels readable on narrow clients.
const MaxButtonTextRunes = 48

var ErrCallbackDataTooLong = errors.New("tgui: callback_data too long")

// CheckData validates a callback token against the Telegram limit.
func CheckData(data string) error {
	if len(data) > MaxCallbackDataLen {
		return ErrCallbackDataTooLong
	}
	return nil
}
