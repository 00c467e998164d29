package transaction

import "strings"

// NormalizePhone rewrites local Ethiopian numbers to the 251 country prefix
// the payout API expects: 0911.. -> 251911.., 911.. or 711.. -> 251911..
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	switch {
	case strings.HasPrefix(phone, "0"):
		return "251" + phone[1:]
	case strings.HasPrefix(phone, "9"), strings.HasPrefix(phone, "7"):
		return "251" + phone
	default:
		return phone
	}
}
