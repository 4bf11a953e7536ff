// Package finance interprets amounts sent after /addincome or /addspend and
// records them.
package finance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/m3rciful/finbot/core/logger"
	"github.com/m3rciful/finbot/internal/command"
)

// User-facing replies.
const (
	IncomePrompt  = "Send me the amount of income received"
	SpendPrompt   = "Send me the amount of spending"
	NotUnderstood = "Sorry, I did not understand you. Available commands: /currentrates, /addincome, /addspend"
	SaveFailed    = "Could not save the operation, please try again later"

	incomeAdded = "Income of %s was added successfully"
	spendAdded  = "Spending of %s was added successfully"
	badAmount   = "%q is not an amount. Send a non-negative number with at most two decimals, for example 1500 or 99,90"
)

// ErrInvalidAmount is returned by ParseAmount for anything outside the
// stored NUMERIC(15,2) range.
var ErrInvalidAmount = errors.New("invalid amount")

// amountPattern matches what the amount columns hold without rounding.
var amountPattern = regexp.MustCompile(`^\+?(\d{1,13})(?:[.,](\d{1,2}))?$`)

// Kind tells an income from a spend.
type Kind string

const (
	Income Kind = "income"
	Spend  Kind = "spend"
)

// Service turns a free-text reply into a recorded operation.
type Service struct {
	store Store
}

// NewService returns a Service backed by store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// AddFinanceOperation interprets text as the amount requested by the previous
// command and returns the reply for the chat. It never returns an error: parse
// and storage problems become replies.
func (s *Service) AddFinanceOperation(ctx context.Context, previous, text string, chatID int64) string {
	var (
		kind Kind
		save func(context.Context, int64, float64) error
		done string
	)
	switch {
	case command.Is(previous, command.AddIncome):
		kind, save, done = Income, s.store.AddIncome, incomeAdded
	case command.Is(previous, command.AddSpend):
		kind, save, done = Spend, s.store.AddSpend, spendAdded
	default:
		return NotUnderstood
	}

	amount, err := ParseAmount(text)
	if err != nil {
		logger.Debug(ctx, "service.finance", "finance.parse.fail",
			slog.String("kind", string(kind)),
			slog.String("text", logger.SanitizeLimit(text, 64)),
		)
		return fmt.Sprintf(badAmount, strings.TrimSpace(text))
	}

	if err := save(ctx, chatID, amount); err != nil {
		logger.Error(ctx, "service.finance", "finance.save.fail",
			slog.String("kind", string(kind)),
			slog.Int64("chat_id", chatID),
			slog.String("err", err.Error()),
		)
		return SaveFailed
	}

	formatted := FormatAmount(amount)
	logger.Info(ctx, "service.finance", "finance.save",
		slog.String("kind", string(kind)),
		slog.Int64("chat_id", chatID),
		slog.String("amount", formatted),
	)
	return fmt.Sprintf(done, formatted)
}

// ParseAmount reads a plain non-negative decimal: up to 13 integer digits
// and 2 decimals, with "." or "," as the separator. Exponents, hex, digit
// separators and minus signs are rejected.
func ParseAmount(text string) (float64, error) {
	m := amountPattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, text)
	}
	t := m[1]
	if m[2] != "" {
		t += "." + m[2]
	}
	v, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, text)
	}
	return v, nil
}

// FormatAmount prints an amount without trailing zeros.
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
