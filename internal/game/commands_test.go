package game

import (
	"encoding/json"
	mathrand "math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginIsIdempotent(t *testing.T) {
	w := newTestWorld(t, &fakeClock{now: testEpoch})
	res, err := Login{Username: "Alice"}.Apply(w)
	require.NoError(t, err)
	first := res.(LoginResult)
	assert.True(t, first.Created)

	res, err = Login{Username: "alice"}.Apply(w)
	require.NoError(t, err)
	second := res.(LoginResult)
	assert.False(t, second.Created)
	assert.Equal(t, first.AccountID, second.AccountID)
	assert.Equal(t, "Alice", second.Username)

	_, err = Login{Username: "x"}.Apply(w)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestBuySellRoundTripWithoutFee(t *testing.T) {
	w := newTestWorld(t, &fakeClock{now: testEpoch})
	id := mustLogin(t, w, "trader")

	res, err := PlaceOrder{OrderInput{AccountID: id, Symbol: "tsmc", Side: "buy", Quantity: dec("3")}}.Apply(w)
	require.NoError(t, err)
	buy := res.(OrderResult)
	requireDecEqual(t, "300", buy.Notional)
	requireDecEqual(t, "700", buy.Cash)

	_, err = PlaceOrder{OrderInput{AccountID: id, Symbol: "TSMC", Side: "sell", Quantity: dec("3")}}.Apply(w)
	require.NoError(t, err)
	requireDecEqual(t, "1000", w.accounts[id].Cash)
	assert.Empty(t, w.accounts[id].Holdings)
}

func TestBuySellRoundTripChargesFeeTwice(t *testing.T) {
	w := newTestWorld(t, &fakeClock{now: testEpoch}, func(s *Settings) {
		s.TradeFeeRate = dec("0.001")
	})
	id := mustLogin(t, w, "trader")

	_, err := PlaceOrder{OrderInput{AccountID: id, Symbol: "TSMC", Side: "buy", Quantity: dec("3")}}.Apply(w)
	require.NoError(t, err)
	requireDecEqual(t, "699.70", w.accounts[id].Cash)
	_, err = PlaceOrder{OrderInput{AccountID: id, Symbol: "TSMC", Side: "sell", Quantity: dec("3")}}.Apply(w)
	require.NoError(t, err)
	requireDecEqual(t, "999.40", w.accounts[id].Cash)
}

func TestRejectedOrderLeavesNoTrace(t *testing.T) {
	w := newTestWorld(t, &fakeClock{now: testEpoch})
	id := mustLogin(t, w, "trader")
	w.TakeDirty()

	tests := []struct {
		name string
		in   OrderInput
		want error
	}{
		{name: "too expensive", in: OrderInput{AccountID: id, Symbol: "TSMC", Side: "buy", Quantity: dec("11")}, want: ErrInsufficientFunds},
		{name: "nothing to sell", in: OrderInput{AccountID: id, Symbol: "TSMC", Side: "sell", Quantity: dec("1")}, want: ErrInsufficientShares},
		{name: "zero qty", in: OrderInput{AccountID: id, Symbol: "TSMC", Side: "buy", Quantity: decimal.Zero}, want: ErrInvalidQuantity},
		{name: "bad side", in: OrderInput{AccountID: id, Symbol: "TSMC", Side: "short", Quantity: dec("1")}, want: ErrInvalidSide},
		{name: "unknown symbol", in: OrderInput{AccountID: id, Symbol: "NOPE", Side: "buy", Quantity: dec("1")}, want: ErrInstrumentNotFound},
		{name: "unknown account", in: OrderInput{AccountID: "missing", Symbol: "TSMC", Side: "buy", Quantity: dec("1")}, want: ErrAccountNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := PlaceOrder{tc.in}.Apply(w)
			require.ErrorIs(t, err, tc.want)
		})
	}
	acct := w.accounts[id]
	requireDecEqual(t, "1000", acct.Cash)
	assert.Empty(t, acct.Holdings)
	assert.Empty(t, acct.Ledger)
	assert.False(t, w.TakeDirty())
}

func TestFractionalBuy(t *testing.T) {
	w := newTestWorld(t, &fakeClock{now: testEpoch})
	id := mustLogin(t, w, "trader")
	_, err := PlaceOrder{OrderInput{AccountID: id, Symbol: "BTC", Side: "buy", Quantity: dec("0.0005")}}.Apply(w)
	require.NoError(t, err)
	requireDecEqual(t, "500", w.accounts[id].Cash)
	requireDecEqual(t, "0.0005", w.accounts[id].Holdings["BTC"].Quantity)
}

func TestBankTransfers(t *testing.T) {
	w := newTestWorld(t, &fakeClock{now: testEpoch})
	id := mustLogin(t, w, "banker")

	res, err := BankTransfer{AccountID: id, Op: BankDeposit, Amount: dec("400")}.Apply(w)
	require.NoError(t, err)
	bal := res.(BalanceView)
	requireDecEqual(t, "600", bal.Cash)
	requireDecEqual(t, "400", bal.Deposit)

	_, err = BankTransfer{AccountID: id, Op: BankWithdraw, Amount: dec("100")}.Apply(w)
	require.NoError(t, err)
	_, err = BankTransfer{AccountID: id, Op: BankWithdraw, Amount: dec("301")}.Apply(w)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	// gross assets are 1000, so the cap is 5000
	_, err = BankTransfer{AccountID: id, Op: BankLoan, Amount: dec("5000.01")}.Apply(w)
	assert.ErrorIs(t, err, ErrLoanLimit)
	_, err = BankTransfer{AccountID: id, Op: BankLoan, Amount: dec("500")}.Apply(w)
	require.NoError(t, err)

	// repayment is capped at the outstanding loan
	res, err = BankTransfer{AccountID: id, Op: BankRepay, Amount: dec("9999")}.Apply(w)
	require.NoError(t, err)
	bal = res.(BalanceView)
	requireDecEqual(t, "0", bal.Loan)
	requireDecEqual(t, "700", bal.Cash)
	requireDecEqual(t, "300", bal.Deposit)

	_, err = BankTransfer{AccountID: id, Op: BankRepay, Amount: dec("1")}.Apply(w)
	assert.ErrorIs(t, err, ErrNoLoan)
	_, err = BankTransfer{AccountID: id, Op: BankDeposit, Amount: dec("-5")}.Apply(w)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = BankTransfer{AccountID: id, Op: "gift", Amount: dec("5")}.Apply(w)
	assert.ErrorIs(t, err, ErrInvalidBankOp)
}

func TestBalancesStayNonNegative(t *testing.T) {
	clock := &fakeClock{now: testEpoch}
	w := newTestWorld(t, clock)
	id := mustLogin(t, w, "random")
	w.accounts[id].Expenses = []RecurringExpense{{Name: "rent", Amount: dec("75"), Frequency: "daily", NextDueDay: 1}}
	rng := mathrand.New(mathrand.NewSource(99))
	symbols := []string{"TSMC", "FARM", "BTC"}
	ops := []BankOp{BankDeposit, BankWithdraw, BankLoan, BankRepay}

	for i := 0; i < 400; i++ {
		amount := decimal.NewFromFloat(rng.Float64() * 800).Round(2)
		switch rng.Intn(4) {
		case 0:
			side := "buy"
			if rng.Intn(2) == 0 {
				side = "sell"
			}
			qty := decimal.NewFromFloat(rng.Float64() * 5).Round(3)
			_, _ = PlaceOrder{OrderInput{AccountID: id, Symbol: symbols[rng.Intn(len(symbols))], Side: side, Quantity: qty}}.Apply(w)
		case 1:
			_, _ = BankTransfer{AccountID: id, Op: ops[rng.Intn(len(ops))], Amount: amount}.Apply(w)
		case 2:
			_, _ = AdvanceDay{AccountID: id}.Apply(w)
		case 3:
			clock.Advance(w.Settings().DayLength)
			w.Tick()
		}
		acct := w.accounts[id]
		require.False(t, acct.Cash.IsNegative(), "cash negative at step %d", i)
		require.False(t, acct.Deposit.IsNegative(), "deposit negative at step %d", i)
		require.False(t, acct.Loan.IsNegative(), "loan negative at step %d", i)
		for sym, h := range acct.Holdings {
			require.True(t, h.Quantity.IsPositive(), "%s quantity not positive at step %d", sym, i)
		}
	}
}

func TestDRIPToggle(t *testing.T) {
	w := newTestWorld(t, &fakeClock{now: testEpoch})
	id := mustLogin(t, w, "dripper")
	_, err := SetDRIP{AccountID: id, Symbol: "farm", Enabled: true}.Apply(w)
	require.NoError(t, err)
	assert.True(t, w.accounts[id].DRIP["FARM"])
	_, err = SetDRIP{AccountID: id, Symbol: "FARM", Enabled: false}.Apply(w)
	require.NoError(t, err)
	assert.False(t, w.accounts[id].DRIP["FARM"])
	_, err = SetDRIP{AccountID: id, Symbol: "ZZZZ", Enabled: true}.Apply(w)
	assert.ErrorIs(t, err, ErrInstrumentNotFound)
}

func TestExpenseLifecycle(t *testing.T) {
	w := newTestWorld(t, &fakeClock{now: testEpoch})
	id := mustLogin(t, w, "spender")

	res, err := AddExpense{AccountID: id, Name: "Rent", Amount: dec("100"), Frequency: "Monthly"}.Apply(w)
	require.NoError(t, err)
	exp := res.(RecurringExpense)
	assert.Equal(t, 30, exp.NextDueDay)
	assert.Equal(t, "monthly", exp.Frequency)

	_, err = AddExpense{AccountID: id, Name: "rent", Amount: dec("5"), Frequency: "daily"}.Apply(w)
	assert.ErrorIs(t, err, ErrDuplicateExpense)
	_, err = AddExpense{AccountID: id, Name: "coffee", Amount: dec("5"), Frequency: "hourly"}.Apply(w)
	assert.ErrorIs(t, err, ErrInvalidFrequency)

	_, err = RemoveExpense{AccountID: id, Name: "RENT"}.Apply(w)
	require.NoError(t, err)
	assert.Empty(t, w.accounts[id].Expenses)
	_, err = RemoveExpense{AccountID: id, Name: "rent"}.Apply(w)
	assert.ErrorIs(t, err, ErrExpenseNotFound)
}

func TestCasinoWinnings(t *testing.T) {
	w := newTestWorld(t, &fakeClock{now: testEpoch})
	id := mustLogin(t, w, "gambler")

	total, err := RecordCasinoWin{AccountID: id, Win: dec("25.5")}.Apply(w)
	require.NoError(t, err)
	requireDecEqual(t, "25.5", total.(decimal.Decimal))
	total, err = RecordCasinoWin{AccountID: id, Win: decimal.Zero}.Apply(w)
	require.NoError(t, err)
	requireDecEqual(t, "25.5", total.(decimal.Decimal))
	_, err = RecordCasinoWin{AccountID: id, Win: dec("-1")}.Apply(w)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	w.RefreshLeaderboard()
	res, err := CasinoTop{}.Apply(w)
	require.NoError(t, err)
	records := res.([]CasinoRecord)
	require.Len(t, records, 1)
	assert.Equal(t, "gambler", records[0].Username)
}

func TestAdvanceDayLeavesMarketAlone(t *testing.T) {
	w := newTestWorld(t, &fakeClock{now: testEpoch})
	id := mustLogin(t, w, "manual")
	_, err := BankTransfer{AccountID: id, Op: BankDeposit, Amount: dec("500")}.Apply(w)
	require.NoError(t, err)
	before := w.Market().Prices()

	res, err := AdvanceDay{AccountID: id}.Apply(w)
	require.NoError(t, err)
	state := res.(StateView)
	assert.Equal(t, 1, state.Days)
	requireDecEqual(t, "505", state.Deposit)
	assert.Equal(t, before, w.Market().Prices())
	assert.Equal(t, 0, w.Scheduler().LastProcessedDay())
}

func TestSubmitLeaderboard(t *testing.T) {
	w := newTestWorld(t, &fakeClock{now: testEpoch})
	id := mustLogin(t, w, "climber")
	_, err := RecordCasinoWin{AccountID: id, Win: dec("10")}.Apply(w)
	require.NoError(t, err)

	res, err := SubmitLeaderboard{AccountID: id}.Apply(w)
	require.NoError(t, err)
	rec := res.(LeaderboardRecord)
	requireDecEqual(t, "1000", rec.Asset)
	assert.Equal(t, 0, rec.Days)

	top, err := LeaderboardTop{Username: "climber"}.Apply(w)
	require.NoError(t, err)
	assert.Len(t, top.([]LeaderboardRecord), 1)
}

func TestSnapshotRestoresWorld(t *testing.T) {
	clock := &fakeClock{now: testEpoch}
	w := newTestWorld(t, clock)
	id := mustLogin(t, w, "saved")
	_, err := PlaceOrder{OrderInput{AccountID: id, Symbol: "FARM", Side: "buy", Quantity: dec("2")}}.Apply(w)
	require.NoError(t, err)
	clock.Advance(3 * w.Settings().DayLength)
	w.Tick()

	snap := w.Snapshot()
	assert.Equal(t, 3, snap.LastProcessedDay)
	require.Len(t, snap.Accounts, 1)

	restored := NewWorld(w.Settings(), &snap, WithClock(clock.Now), WithLogger(discardLogger()))
	assert.Equal(t, 3, restored.Scheduler().LastProcessedDay())
	assert.Equal(t, w.Market().Prices(), restored.Market().Prices())
	res, err := LookupUsername{Username: "SAVED"}.Apply(restored)
	require.NoError(t, err)
	assert.Equal(t, id, res)
	requireDecEqual(t, "2", restored.accounts[id].Holdings["FARM"].Quantity)

	// snapshot accounts are copies
	snap.Accounts[0].Cash = dec("1")
	assert.False(t, restored.accounts[id].Cash.Equal(dec("1")))
}

func TestRestoreSkipsNullHoldings(t *testing.T) {
	raw := `{"last_processed_day":0,"accounts":[{"id":"acct-1","username":"ghost","cash":"1000","deposit":"0","loan":"0","holdings":{"TSMC":null,"FARM":{"quantity":"2","avg_cost":"50"}}}]}`
	var snap Snapshot
	require.NoError(t, json.Unmarshal([]byte(raw), &snap))

	clock := &fakeClock{now: testEpoch}
	var w *World
	require.NotPanics(t, func() {
		w = NewWorld(DefaultSettings(), &snap, WithClock(clock.Now), WithLogger(discardLogger()))
	})
	acct := w.accounts["acct-1"]
	require.NotNil(t, acct)
	assert.NotContains(t, acct.Holdings, "TSMC")
	assert.Contains(t, acct.Holdings, "FARM")

	state, err := GetState{AccountID: "acct-1"}.Apply(w)
	require.NoError(t, err)
	assert.Equal(t, "ghost", state.(StateView).Username)
}
