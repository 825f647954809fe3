package game

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// SettlementProcessor applies one day of interest, dividends and expenses to
// an account.
type SettlementProcessor struct {
	DepositRate  decimal.Decimal
	LoanRate     decimal.Decimal
	StartingCash decimal.Decimal
}

var errCorruptBalances = errors.New("account balances violate non-negative invariant")

// Settle advances acct by one day. The caller passes a copy and commits it
// only when Settle returns nil.
func (p SettlementProcessor) Settle(acct *Account, market *Market, now time.Time) error {
	if acct.Cash.IsNegative() || acct.Deposit.IsNegative() || acct.Loan.IsNegative() {
		return errCorruptBalances
	}
	day := acct.Day + 1

	p.accrueDepositInterest(acct, day, now)
	p.accrueLoanInterest(acct, day, now)
	if err := p.payDividends(acct, market, day, now); err != nil {
		return err
	}
	if err := p.chargeExpenses(acct, day, now); err != nil {
		return err
	}
	acct.Day = day

	if p.bankrupt(acct, market.Prices()) {
		p.rebirth(acct, now)
	}
	return nil
}

func (p SettlementProcessor) accrueDepositInterest(acct *Account, day int, now time.Time) {
	if !acct.Deposit.IsPositive() {
		return
	}
	interest := roundMoney(acct.Deposit.Mul(p.DepositRate))
	if !interest.IsPositive() {
		return
	}
	acct.Deposit = acct.Deposit.Add(interest)
	acct.record(now, LedgerEntry{Day: day, Type: EntryInterest, Bucket: BucketDeposit, Amount: interest, Balance: acct.Deposit})
}

func (p SettlementProcessor) accrueLoanInterest(acct *Account, day int, now time.Time) {
	if !acct.Loan.IsPositive() {
		return
	}
	interest := roundMoney(acct.Loan.Mul(p.LoanRate))
	if !interest.IsPositive() {
		return
	}
	acct.Loan = acct.Loan.Add(interest)
	acct.record(now, LedgerEntry{Day: day, Type: EntryInterest, Bucket: BucketLoan, Amount: interest, Balance: acct.Loan})
}

func (p SettlementProcessor) payDividends(acct *Account, market *Market, day int, now time.Time) error {
	symbols := make([]string, 0, len(acct.Holdings))
	for sym := range acct.Holdings {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	for _, sym := range symbols {
		h := acct.Holdings[sym]
		inst, ok := market.Instrument(sym)
		if !ok || !inst.PaysDividendOn(day) || h.LastDividendDay >= day || !h.Quantity.IsPositive() {
			continue
		}
		h.LastDividendDay = day
		dividend := roundMoney(h.Quantity.Mul(inst.Price).Mul(inst.DividendYield))
		if !dividend.IsPositive() {
			continue
		}
		acct.Cash = acct.Cash.Add(dividend)
		acct.record(now, LedgerEntry{Day: day, Type: EntryDividend, Bucket: BucketCash, Symbol: sym, Quantity: h.Quantity, Amount: dividend, Balance: acct.Cash})

		if !acct.DRIP[sym] {
			continue
		}
		if !inst.Price.IsPositive() {
			return fmt.Errorf("reinvest %s: non-positive price %s", sym, inst.Price)
		}
		extra := dividend.DivRound(inst.Price, QuantityPlaces)
		if !extra.IsPositive() {
			continue
		}
		acct.Cash = acct.Cash.Sub(dividend)
		acct.addPosition(sym, extra, inst.Price)
		acct.record(now, LedgerEntry{Day: day, Type: EntryReinvest, Bucket: BucketHolding, Symbol: sym, Quantity: extra, Amount: dividend.Neg(), Balance: acct.Holdings[sym].Quantity})
	}
	return nil
}

// chargeExpenses pays due items from cash first, then deposit. An item that
// cannot be covered is paid partially; the shortfall is dropped.
func (p SettlementProcessor) chargeExpenses(acct *Account, day int, now time.Time) error {
	for i := range acct.Expenses {
		exp := &acct.Expenses[i]
		if exp.NextDueDay > day {
			continue
		}
		interval, err := FrequencyDays(exp.Frequency)
		if err != nil {
			return fmt.Errorf("expense %q: %w", exp.Name, err)
		}
		fromCash := decimal.Min(exp.Amount, acct.Cash)
		if fromCash.IsPositive() {
			acct.Cash = acct.Cash.Sub(fromCash)
			acct.record(now, LedgerEntry{Day: day, Type: EntryExpense, Bucket: BucketCash, Symbol: exp.Name, Amount: fromCash.Neg(), Balance: acct.Cash})
		}
		fromDeposit := decimal.Min(exp.Amount.Sub(fromCash), acct.Deposit)
		if fromDeposit.IsPositive() {
			acct.Deposit = acct.Deposit.Sub(fromDeposit)
			acct.record(now, LedgerEntry{Day: day, Type: EntryExpense, Bucket: BucketDeposit, Symbol: exp.Name, Amount: fromDeposit.Neg(), Balance: acct.Deposit})
		}
		exp.NextDueDay = day + interval
	}
	return nil
}

func (p SettlementProcessor) bankrupt(acct *Account, prices map[string]decimal.Decimal) bool {
	return acct.Cash.IsZero() && acct.Deposit.IsZero() && acct.Loan.IsPositive() && !acct.NetWorth(prices).IsPositive()
}

// rebirth resets a bankrupt account to a fresh start, keeping its identity,
// ledger and casino record.
func (p SettlementProcessor) rebirth(acct *Account, now time.Time) {
	acct.Cash = p.StartingCash
	acct.Deposit = decimal.Zero
	acct.Loan = decimal.Zero
	acct.Holdings = map[string]*Holding{}
	acct.DRIP = map[string]bool{}
	acct.Expenses = nil
	acct.RebornCount++
	acct.record(now, LedgerEntry{Type: EntryReborn, Bucket: BucketCash, Amount: p.StartingCash, Balance: acct.Cash})
	acct.Day = 0
}
