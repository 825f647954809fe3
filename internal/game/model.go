package game

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// MoneyPlaces is the rounding scale for every cash amount.
	MoneyPlaces = int32(2)
	// QuantityPlaces is the rounding scale for holdings; DRIP produces fractions.
	QuantityPlaces = int32(6)

	MonthDays = 30

	// LoanLimitMultiple caps total loans at this multiple of gross assets.
	LoanLimitMultiple = 5
)

var (
	DefaultStartingCash = decimal.NewFromInt(1000)
	DefaultDepositRate  = decimal.RequireFromString("0.01")
	DefaultLoanRate     = decimal.RequireFromString("0.005")
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")

	ErrInvalidSymbol      = fmt.Errorf("%w: symbol must be 2-10 uppercase letters", ErrValidation)
	ErrInvalidUsername    = fmt.Errorf("%w: username must be 3-24 letters, digits or underscores", ErrValidation)
	ErrInvalidAmount      = fmt.Errorf("%w: amount must be > 0", ErrValidation)
	ErrInvalidQuantity    = fmt.Errorf("%w: quantity must be > 0", ErrValidation)
	ErrInsufficientFunds  = fmt.Errorf("%w: insufficient funds", ErrValidation)
	ErrInsufficientShares = fmt.Errorf("%w: insufficient shares", ErrValidation)
	ErrLoanLimit          = fmt.Errorf("%w: loan limit exceeded", ErrValidation)
	ErrInvalidFrequency   = fmt.Errorf("%w: frequency must be daily, weekly or monthly", ErrValidation)
	ErrInvalidSide        = fmt.Errorf("%w: side must be buy or sell", ErrValidation)
	ErrInvalidBankOp      = fmt.Errorf("%w: unknown bank operation", ErrValidation)
	ErrNoLoan             = fmt.Errorf("%w: no outstanding loan", ErrValidation)
	ErrInvalidExpenseName = fmt.Errorf("%w: expense name must be 1-40 characters", ErrValidation)
	ErrDuplicateExpense   = fmt.Errorf("%w: expense already exists", ErrValidation)

	ErrAccountNotFound    = fmt.Errorf("account %w", ErrNotFound)
	ErrInstrumentNotFound = fmt.Errorf("instrument %w", ErrNotFound)
	ErrExpenseNotFound    = fmt.Errorf("expense %w", ErrNotFound)
)

var (
	symbolRE   = regexp.MustCompile(`^[A-Z]{2,10}$`)
	usernameRE = regexp.MustCompile(`^[a-zA-Z0-9_]{3,24}$`)
)

func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func ValidateSymbol(symbol string) error {
	if !symbolRE.MatchString(symbol) {
		return ErrInvalidSymbol
	}
	return nil
}

func ValidateUsername(username string) error {
	if !usernameRE.MatchString(strings.TrimSpace(username)) {
		return ErrInvalidUsername
	}
	return nil
}

func roundMoney(v decimal.Decimal) decimal.Decimal {
	return v.Round(MoneyPlaces)
}

func roundQty(v decimal.Decimal) decimal.Decimal {
	return v.Round(QuantityPlaces)
}

func validateAmount(v decimal.Decimal) (decimal.Decimal, error) {
	v = roundMoney(v)
	if !v.IsPositive() {
		return v, ErrInvalidAmount
	}
	return v, nil
}

func validateQuantity(v decimal.Decimal) (decimal.Decimal, error) {
	v = roundQty(v)
	if !v.IsPositive() {
		return v, ErrInvalidQuantity
	}
	return v, nil
}

// notional is price*qty rounded to cents.
func notional(price, qty decimal.Decimal) decimal.Decimal {
	return roundMoney(price.Mul(qty))
}

// FrequencyDays maps a recurring expense frequency to its interval in days.
func FrequencyDays(frequency string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(frequency)) {
	case "daily":
		return 1, nil
	case "weekly":
		return 7, nil
	case "monthly":
		return MonthDays, nil
	default:
		return 0, ErrInvalidFrequency
	}
}

// SettlementError records a failed settlement for one account on one day.
type SettlementError struct {
	AccountID string
	Day       int
	Err       error
}

func (e *SettlementError) Error() string {
	return fmt.Sprintf("settle account %s day %d: %v", e.AccountID, e.Day, e.Err)
}

func (e *SettlementError) Unwrap() error {
	return e.Err
}
