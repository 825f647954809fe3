package game

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Command is one action applied to the world by the engine loop. Apply must
// leave the world untouched when it returns an error.
type Command interface {
	Apply(w *World) (any, error)
}

type Login struct{ Username string }

func (c Login) Apply(w *World) (any, error) {
	username := strings.TrimSpace(c.Username)
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	key := strings.ToLower(username)
	if id, ok := w.byUsername[key]; ok {
		acct := w.accounts[id]
		return LoginResult{AccountID: acct.ID, Username: acct.Username}, nil
	}
	acct := NewAccount(username, w.settings.StartingCash, w.now())
	w.accounts[acct.ID] = acct
	w.byUsername[key] = acct.ID
	w.leaderboard.Submit(recordFor(acct, w.market.Prices()))
	w.markDirty()
	w.log.Info("account created", "account_id", acct.ID, "username", acct.Username)
	return LoginResult{AccountID: acct.ID, Username: acct.Username, Created: true}, nil
}

// LookupUsername resolves a login name to its account.
type LookupUsername struct{ Username string }

func (c LookupUsername) Apply(w *World) (any, error) {
	id, ok := w.byUsername[strings.ToLower(strings.TrimSpace(c.Username))]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return id, nil
}

type GetState struct{ AccountID string }

func (c GetState) Apply(w *World) (any, error) {
	acct, err := w.account(c.AccountID)
	if err != nil {
		return nil, err
	}
	return w.stateView(acct), nil
}

func (w *World) stateView(acct *Account) StateView {
	prices := w.market.Prices()
	symbols := make([]string, 0, len(acct.Holdings))
	for sym := range acct.Holdings {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	holdings := make([]HoldingView, 0, len(symbols))
	for _, sym := range symbols {
		h := acct.Holdings[sym]
		price := prices[sym]
		value := roundMoney(h.Quantity.Mul(price))
		holdings = append(holdings, HoldingView{
			Symbol:       sym,
			Quantity:     h.Quantity,
			AvgCost:      h.AvgCost,
			Price:        price,
			MarketValue:  value,
			UnrealizedPL: value.Sub(roundMoney(h.Quantity.Mul(h.AvgCost))),
			DRIP:         acct.DRIP[sym],
		})
	}
	return StateView{
		AccountID:      acct.ID,
		Username:       acct.Username,
		Cash:           acct.Cash,
		Deposit:        acct.Deposit,
		Loan:           acct.Loan,
		NetWorth:       acct.NetWorth(prices),
		LoanLimit:      acct.LoanLimit(prices),
		CasinoWinnings: acct.CasinoWinnings,
		Days:           acct.Day,
		RebornCount:    acct.RebornCount,
		Holdings:       holdings,
		Expenses:       append([]RecurringExpense(nil), acct.Expenses...),
		Prices:         prices,
	}
}

type GetHistory struct {
	AccountID string
	Limit     int
}

func (c GetHistory) Apply(w *World) (any, error) {
	acct, err := w.account(c.AccountID)
	if err != nil {
		return nil, err
	}
	return acct.History(c.Limit), nil
}

type ListInstruments struct{}

func (ListInstruments) Apply(w *World) (any, error) {
	return w.market.Instruments(), nil
}

// PlaceOrder buys or sells at the current price, charging the trade fee.
type PlaceOrder struct{ OrderInput }

func (c PlaceOrder) Apply(w *World) (any, error) {
	in := c.OrderInput
	in.Symbol = NormalizeSymbol(in.Symbol)
	in.Side = strings.ToLower(strings.TrimSpace(in.Side))
	if err := ValidateSymbol(in.Symbol); err != nil {
		return nil, err
	}
	if in.Side != "buy" && in.Side != "sell" {
		return nil, ErrInvalidSide
	}
	qty, err := validateQuantity(in.Quantity)
	if err != nil {
		return nil, err
	}
	acct, err := w.account(in.AccountID)
	if err != nil {
		return nil, err
	}
	inst, ok := w.market.Instrument(in.Symbol)
	if !ok {
		return nil, ErrInstrumentNotFound
	}

	out := OrderResult{Symbol: in.Symbol, Side: in.Side, Quantity: qty, Price: inst.Price}
	out.Notional = notional(inst.Price, qty)
	out.Fee = roundMoney(out.Notional.Mul(w.settings.TradeFeeRate))

	switch in.Side {
	case "buy":
		cost := out.Notional.Add(out.Fee)
		if acct.Cash.LessThan(cost) {
			return nil, ErrInsufficientFunds
		}
		acct.Cash = acct.Cash.Sub(cost)
		acct.addPosition(in.Symbol, qty, inst.Price)
		acct.record(w.now(), LedgerEntry{Type: EntryBuy, Bucket: BucketCash, Symbol: in.Symbol, Quantity: qty, Amount: out.Notional.Neg(), Balance: acct.Cash.Add(out.Fee)})
	case "sell":
		if err := acct.removePosition(in.Symbol, qty); err != nil {
			return nil, err
		}
		acct.Cash = acct.Cash.Add(out.Notional).Sub(out.Fee)
		acct.record(w.now(), LedgerEntry{Type: EntrySell, Bucket: BucketCash, Symbol: in.Symbol, Quantity: qty, Amount: out.Notional, Balance: acct.Cash.Add(out.Fee)})
	}
	if out.Fee.IsPositive() {
		acct.record(w.now(), LedgerEntry{Type: EntryFee, Bucket: BucketCash, Symbol: in.Symbol, Amount: out.Fee.Neg(), Balance: acct.Cash})
	}
	out.Cash = acct.Cash
	w.markDirty()
	return out, nil
}

// BankOp names a transfer between cash and the deposit or loan balance.
type BankOp string

const (
	BankDeposit  BankOp = "deposit"
	BankWithdraw BankOp = "withdraw"
	BankLoan     BankOp = "loan"
	BankRepay    BankOp = "repay"
)

type BankTransfer struct {
	AccountID string
	Op        BankOp
	Amount    decimal.Decimal
}

func (c BankTransfer) Apply(w *World) (any, error) {
	amount, err := validateAmount(c.Amount)
	if err != nil {
		return nil, err
	}
	acct, err := w.account(c.AccountID)
	if err != nil {
		return nil, err
	}
	now := w.now()

	switch c.Op {
	case BankDeposit:
		if acct.Cash.LessThan(amount) {
			return nil, ErrInsufficientFunds
		}
		acct.Cash = acct.Cash.Sub(amount)
		acct.Deposit = acct.Deposit.Add(amount)
		acct.record(now, LedgerEntry{Type: EntryDeposit, Bucket: BucketDeposit, Amount: amount, Balance: acct.Deposit})
	case BankWithdraw:
		if acct.Deposit.LessThan(amount) {
			return nil, ErrInsufficientFunds
		}
		acct.Deposit = acct.Deposit.Sub(amount)
		acct.Cash = acct.Cash.Add(amount)
		acct.record(now, LedgerEntry{Type: EntryWithdraw, Bucket: BucketDeposit, Amount: amount.Neg(), Balance: acct.Deposit})
	case BankLoan:
		if acct.Loan.Add(amount).GreaterThan(acct.LoanLimit(w.market.Prices())) {
			return nil, ErrLoanLimit
		}
		acct.Loan = acct.Loan.Add(amount)
		acct.Cash = acct.Cash.Add(amount)
		acct.record(now, LedgerEntry{Type: EntryLoan, Bucket: BucketLoan, Amount: amount, Balance: acct.Loan})
	case BankRepay:
		amount = decimal.Min(amount, acct.Loan)
		if !amount.IsPositive() {
			return nil, ErrNoLoan
		}
		if acct.Cash.LessThan(amount) {
			return nil, ErrInsufficientFunds
		}
		acct.Cash = acct.Cash.Sub(amount)
		acct.Loan = acct.Loan.Sub(amount)
		acct.record(now, LedgerEntry{Type: EntryRepay, Bucket: BucketLoan, Amount: amount.Neg(), Balance: acct.Loan})
	default:
		return nil, ErrInvalidBankOp
	}
	w.markDirty()
	return BalanceView{Cash: acct.Cash, Deposit: acct.Deposit, Loan: acct.Loan}, nil
}

type SetDRIP struct {
	AccountID string
	Symbol    string
	Enabled   bool
}

func (c SetDRIP) Apply(w *World) (any, error) {
	symbol := NormalizeSymbol(c.Symbol)
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	acct, err := w.account(c.AccountID)
	if err != nil {
		return nil, err
	}
	if _, ok := w.market.Instrument(symbol); !ok {
		return nil, ErrInstrumentNotFound
	}
	if c.Enabled {
		acct.DRIP[symbol] = true
	} else {
		delete(acct.DRIP, symbol)
	}
	w.markDirty()
	return c.Enabled, nil
}

type AddExpense struct {
	AccountID string
	Name      string
	Amount    decimal.Decimal
	Frequency string
}

func (c AddExpense) Apply(w *World) (any, error) {
	name := strings.TrimSpace(c.Name)
	if name == "" || len(name) > 40 {
		return nil, ErrInvalidExpenseName
	}
	amount, err := validateAmount(c.Amount)
	if err != nil {
		return nil, err
	}
	frequency := strings.ToLower(strings.TrimSpace(c.Frequency))
	interval, err := FrequencyDays(frequency)
	if err != nil {
		return nil, err
	}
	acct, err := w.account(c.AccountID)
	if err != nil {
		return nil, err
	}
	for _, exp := range acct.Expenses {
		if strings.EqualFold(exp.Name, name) {
			return nil, ErrDuplicateExpense
		}
	}
	exp := RecurringExpense{Name: name, Amount: amount, Frequency: frequency, NextDueDay: acct.Day + interval}
	acct.Expenses = append(acct.Expenses, exp)
	w.markDirty()
	return exp, nil
}

type RemoveExpense struct {
	AccountID string
	Name      string
}

func (c RemoveExpense) Apply(w *World) (any, error) {
	acct, err := w.account(c.AccountID)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(c.Name)
	for i, exp := range acct.Expenses {
		if strings.EqualFold(exp.Name, name) {
			acct.Expenses = append(acct.Expenses[:i:i], acct.Expenses[i+1:]...)
			w.markDirty()
			return exp, nil
		}
	}
	return nil, ErrExpenseNotFound
}

// RecordCasinoWin adds a non-negative win to the cumulative casino total.
// Payout rules live with the casino games themselves.
type RecordCasinoWin struct {
	AccountID string
	Win       decimal.Decimal
}

func (c RecordCasinoWin) Apply(w *World) (any, error) {
	win := roundMoney(c.Win)
	if win.IsNegative() {
		return nil, ErrInvalidAmount
	}
	acct, err := w.account(c.AccountID)
	if err != nil {
		return nil, err
	}
	if win.IsPositive() {
		acct.CasinoWinnings = acct.CasinoWinnings.Add(win)
		acct.record(w.now(), LedgerEntry{Type: EntryCasino, Bucket: BucketCasino, Amount: win, Balance: acct.CasinoWinnings})
		w.markDirty()
	}
	return acct.CasinoWinnings, nil
}

// AdvanceDay settles one account for one day without moving the market.
type AdvanceDay struct{ AccountID string }

func (c AdvanceDay) Apply(w *World) (any, error) {
	acct, err := w.account(c.AccountID)
	if err != nil {
		return nil, err
	}
	if err := w.settleAccount(acct, acct.Day+1); err != nil {
		w.log.Error("manual day advance failed", "account_id", acct.ID, "err", err)
		return nil, err
	}
	w.markDirty()
	return w.stateView(w.accounts[acct.ID]), nil
}

// SubmitLeaderboard publishes the account's current record immediately.
type SubmitLeaderboard struct{ AccountID string }

func (c SubmitLeaderboard) Apply(w *World) (any, error) {
	acct, err := w.account(c.AccountID)
	if err != nil {
		return nil, err
	}
	rec := recordFor(acct, w.market.Prices())
	w.leaderboard.Submit(rec)
	w.markDirty()
	return rec, nil
}

type LeaderboardTop struct{ Username string }

func (c LeaderboardTop) Apply(w *World) (any, error) {
	return w.leaderboard.Top(strings.TrimSpace(c.Username)), nil
}

type CasinoTop struct{ Username string }

func (c CasinoTop) Apply(w *World) (any, error) {
	return w.leaderboard.CasinoTop(strings.TrimSpace(c.Username)), nil
}

type TakeSnapshot struct{}

func (TakeSnapshot) Apply(w *World) (any, error) {
	return w.Snapshot(), nil
}
