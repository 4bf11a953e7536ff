// Package command names the slash commands the bot understands.
package command

import "strings"

// Command tokens. Matching is case-insensitive.
const (
	CurrentRates = "/currentrates"
	AddIncome    = "/addincome"
	AddSpend     = "/addspend"
)

// All lists the tokens in menu order.
var All = []string{CurrentRates, AddIncome, AddSpend}

// Match reports which token text is, if any. A trailing @botname mention is
// ignored, as Telegram appends it to commands sent in group chats.
func Match(text string) (string, bool) {
	t := strings.TrimSpace(text)
	if at := strings.IndexByte(t, '@'); at > 0 && strings.HasPrefix(t, "/") {
		t = t[:at]
	}
	for _, token := range All {
		if strings.EqualFold(t, token) {
			return token, true
		}
	}
	return "", false
}

// Is reports whether text is the given token.
func Is(text, token string) bool {
	got, ok := Match(text)
	return ok && got == token
}
