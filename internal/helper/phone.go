package helper

import (
	"fmt"
	"regexp"
	"strings"

	"go.mau.fi/whatsmeow/types"
)

var (
	phoneFormat = regexp.MustCompile(`^[\d\s\+\-\(\)\.]+$`)
	nonDigits   = regexp.MustCompile(`[^\d]`)
)

// FormatPhoneNumber converts a phone number to a WhatsApp JID. Every
// non-digit character is stripped and the result is suffixed with the
// standard user server ("@s.whatsapp.net").
func FormatPhoneNumber(phone string) (types.JID, error) {
	if strings.TrimSpace(phone) == "" {
		return types.JID{}, fmt.Errorf("phone number is empty")
	}

	if !phoneFormat.MatchString(phone) {
		return types.JID{}, fmt.Errorf("invalid phone number format: contains invalid characters")
	}

	cleaned := nonDigits.ReplaceAllString(phone, "")

	// E.164 numbers are 8-15 digits including country code
	if len(cleaned) < 8 {
		return types.JID{}, fmt.Errorf("phone number too short")
	}
	if len(cleaned) > 15 {
		return types.JID{}, fmt.Errorf("phone number too long")
	}

	return types.JID{
		User:   cleaned,
		Server: types.DefaultUserServer,
	}, nil
}

func ExtractPhoneFromJID(jid string) string {
	// "5511999999999:43@s.whatsapp.net" -> "5511999999999"
	atSplit := strings.SplitN(jid, "@", 2)
	if len(atSplit) == 0 {
		return jid
	}
	beforeAt := atSplit[0]
	colonSplit := strings.SplitN(beforeAt, ":", 2)
	return colonSplit[0]
}
