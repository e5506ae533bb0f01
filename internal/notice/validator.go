package notice

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MaxNoticeBytes = 1024 // fits comfortably in one session attribute
	MaxNoticeChars = 280  // max character count
)

// ErrEmpty is returned for a blank notice.
var ErrEmpty = errors.New("notice text is empty")

// Validate checks that a notice meets content requirements.
func Validate(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmpty
	}
	if len(text) > MaxNoticeBytes {
		return fmt.Errorf("notice exceeds %d byte limit", MaxNoticeBytes)
	}
	if !utf8.ValidString(text) {
		return fmt.Errorf("notice contains invalid UTF-8")
	}
	if utf8.RuneCountInString(text) > MaxNoticeChars {
		return fmt.Errorf("notice exceeds %d character limit", MaxNoticeChars)
	}
	return nil
}
