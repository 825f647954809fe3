package game

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EntryType string

const (
	EntryBuy      EntryType = "buy"
	EntrySell     EntryType = "sell"
	EntryDeposit  EntryType = "deposit"
	EntryWithdraw EntryType = "withdraw"
	EntryLoan     EntryType = "loan"
	EntryRepay    EntryType = "repay"
	EntryDividend EntryType = "dividend"
	EntryReinvest EntryType = "reinvest"
	EntryInterest EntryType = "interest"
	EntryExpense  EntryType = "expense"
	EntryFee      EntryType = "fee"
	EntryCasino   EntryType = "casino"
	EntryReborn   EntryType = "reborn"
)

// Buckets name the balance an entry moved.
const (
	BucketCash    = "cash"
	BucketDeposit = "deposit"
	BucketLoan    = "loan"
	BucketHolding = "holding"
	BucketCasino  = "casino"
)

type LedgerEntry struct {
	ID        string          `json:"id"`
	Day       int             `json:"day"`
	At        time.Time       `json:"at"`
	AccountID string          `json:"account_id"`
	Type      EntryType       `json:"type"`
	Bucket    string          `json:"bucket"`
	Symbol    string          `json:"symbol,omitempty"`
	Quantity  decimal.Decimal `json:"quantity"`
	Amount    decimal.Decimal `json:"amount"`
	Balance   decimal.Decimal `json:"balance"`
}

type Holding struct {
	Quantity        decimal.Decimal `json:"quantity"`
	AvgCost         decimal.Decimal `json:"avg_cost"`
	LastDividendDay int             `json:"last_dividend_day"`
}

type RecurringExpense struct {
	Name       string          `json:"name"`
	Amount     decimal.Decimal `json:"amount"`
	Frequency  string          `json:"frequency"`
	NextDueDay int             `json:"next_due_day"`
}

type Account struct {
	ID             string              `json:"id"`
	Username       string              `json:"username"`
	Cash           decimal.Decimal     `json:"cash"`
	Deposit        decimal.Decimal     `json:"deposit"`
	Loan           decimal.Decimal     `json:"loan"`
	Holdings       map[string]*Holding `json:"holdings"`
	DRIP           map[string]bool     `json:"drip"`
	Expenses       []RecurringExpense  `json:"expenses"`
	Day            int                 `json:"day"`
	CasinoWinnings decimal.Decimal     `json:"casino_winnings"`
	RebornCount    int                 `json:"reborn_count"`
	Ledger         []LedgerEntry       `json:"ledger"`
	CreatedAt      time.Time           `json:"created_at"`
}

func NewAccount(username string, startingCash decimal.Decimal, now time.Time) *Account {
	return &Account{
		ID:             uuid.NewString(),
		Username:       username,
		Cash:           startingCash,
		Deposit:        decimal.Zero,
		Loan:           decimal.Zero,
		Holdings:       map[string]*Holding{},
		DRIP:           map[string]bool{},
		CasinoWinnings: decimal.Zero,
		CreatedAt:      now.UTC(),
	}
}

// Clone returns a deep copy; settlement mutates the copy and commits on success.
// Nil holdings, which only a hand-edited save can contain, are dropped.
func (a *Account) Clone() *Account {
	out := *a
	out.Holdings = make(map[string]*Holding, len(a.Holdings))
	for sym, h := range a.Holdings {
		if h == nil {
			continue
		}
		cp := *h
		out.Holdings[sym] = &cp
	}
	out.DRIP = make(map[string]bool, len(a.DRIP))
	for sym, v := range a.DRIP {
		out.DRIP[sym] = v
	}
	out.Expenses = append([]RecurringExpense(nil), a.Expenses...)
	out.Ledger = append(make([]LedgerEntry, 0, len(a.Ledger)+8), a.Ledger...)
	return &out
}

// HoldingsValue marks holdings to market. Symbols without a price count as zero.
func (a *Account) HoldingsValue(prices map[string]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for sym, h := range a.Holdings {
		price, ok := prices[sym]
		if !ok {
			continue
		}
		total = total.Add(h.Quantity.Mul(price))
	}
	return roundMoney(total)
}

// NetWorth is cash + deposit - loan + holdings at market.
func (a *Account) NetWorth(prices map[string]decimal.Decimal) decimal.Decimal {
	return a.Cash.Add(a.Deposit).Sub(a.Loan).Add(a.HoldingsValue(prices))
}

// LoanLimit is the maximum total loan the account may carry.
func (a *Account) LoanLimit(prices map[string]decimal.Decimal) decimal.Decimal {
	gross := a.Cash.Add(a.Deposit).Add(a.HoldingsValue(prices))
	return gross.Mul(decimal.NewFromInt(LoanLimitMultiple))
}

func (a *Account) record(now time.Time, entry LedgerEntry) {
	entry.ID = uuid.NewString()
	entry.AccountID = a.ID
	entry.At = now.UTC()
	if entry.Day == 0 {
		entry.Day = a.Day
	}
	a.Ledger = append(a.Ledger, entry)
}

// History returns the newest limit ledger entries, newest first.
func (a *Account) History(limit int) []LedgerEntry {
	n := len(a.Ledger)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]LedgerEntry, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, a.Ledger[i])
	}
	return out
}

// addPosition folds a purchase into the holding's weighted average cost.
func (a *Account) addPosition(symbol string, qty, price decimal.Decimal) *Holding {
	h, ok := a.Holdings[symbol]
	if !ok {
		h = &Holding{Quantity: decimal.Zero, AvgCost: decimal.Zero}
		a.Holdings[symbol] = h
	}
	totalCost := h.AvgCost.Mul(h.Quantity).Add(price.Mul(qty))
	h.Quantity = roundQty(h.Quantity.Add(qty))
	if h.Quantity.IsPositive() {
		h.AvgCost = totalCost.DivRound(h.Quantity, 4)
	}
	return h
}

func (a *Account) removePosition(symbol string, qty decimal.Decimal) error {
	h, ok := a.Holdings[symbol]
	if !ok || h.Quantity.LessThan(qty) {
		return ErrInsufficientShares
	}
	h.Quantity = roundQty(h.Quantity.Sub(qty))
	if !h.Quantity.IsPositive() {
		delete(a.Holdings, symbol)
	}
	return nil
}
