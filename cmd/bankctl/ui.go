package main

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	cl "bankgame/internal/cli"
	"bankgame/internal/game"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptChoice(label string, options []string, defaultValue string) (string, error) {
	normalized := make(map[string]struct{}, len(options))
	for _, opt := range options {
		normalized[strings.ToLower(strings.TrimSpace(opt))] = struct{}{}
	}
	for {
		fmt.Printf("%s (%s) [%s]: ", label, strings.Join(options, "/"), defaultValue)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.ToLower(strings.TrimSpace(text))
		if text == "" {
			text = strings.ToLower(strings.TrimSpace(defaultValue))
		}
		if _, ok := normalized[text]; ok {
			return text, nil
		}
		printWarn("Invalid option. Please pick one of the listed values.")
	}
}

func promptDecimal(label string) (decimal.Decimal, error) {
	for {
		text, err := promptRequired(label)
		if err != nil {
			return decimal.Zero, err
		}
		v, err := parsePositive(text)
		if err != nil {
			printWarn(err.Error())
			continue
		}
		return v, nil
	}
}

func parsePositive(text string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil {
		return decimal.Zero, fmt.Errorf("enter a valid number")
	}
	if !v.IsPositive() {
		return decimal.Zero, fmt.Errorf("value must be greater than zero")
	}
	return v, nil
}

func promptSymbol(label string) (string, error) {
	for {
		symbol, err := promptRequired(label)
		if err != nil {
			return "", err
		}
		symbol = game.NormalizeSymbol(symbol)
		if err := game.ValidateSymbol(symbol); err != nil {
			printWarn(err.Error())
			continue
		}
		return symbol, nil
	}
}

func symbolFromArgsOrPrompt(args []string) (string, error) {
	if len(args) == 0 {
		return promptSymbol("Symbol")
	}
	symbol := game.NormalizeSymbol(args[0])
	if err := game.ValidateSymbol(symbol); err != nil {
		return "", err
	}
	return symbol, nil
}

// amountFromArgsOrPrompt reads args[idx] as a positive decimal, prompting
// when it is missing.
func amountFromArgsOrPrompt(args []string, idx int, label string) (decimal.Decimal, error) {
	if len(args) > idx {
		return parsePositive(args[idx])
	}
	return promptDecimal(label)
}

func renderDashboard(st cl.State) {
	accent.Printf("\n== %s :: DAY %d ==\n", strings.ToUpper(st.Username), st.Days)
	fmt.Printf("Cash:           %s\n", formatMoney(st.Cash))
	fmt.Printf("Deposit:        %s\n", formatMoney(st.Deposit))
	fmt.Printf("Loan:           %s (limit %s)\n", formatMoney(st.Loan), formatMoney(st.LoanLimit))
	fmt.Printf("Net Worth:      %s\n", formatMoney(st.NetWorth))
	fmt.Printf("P/L vs Start:   %s\n", colorizeMoney(st.NetWorth-game.DefaultStartingCash.InexactFloat64()))
	if st.CasinoWinnings > 0 {
		fmt.Printf("Casino:         %s\n", formatMoney(st.CasinoWinnings))
	}
	if st.RebornCount > 0 {
		danger.Printf("Reborn %d time(s)\n", st.RebornCount)
	}

	fmt.Println()
	accent.Println("Holdings")
	if len(st.Holdings) == 0 {
		printInfo("No open positions yet.")
	} else {
		fmt.Printf("%-8s %12s %12s %12s %14s %14s %-4s\n", "SYMBOL", "QTY", "AVG", "NOW", "VALUE", "P/L", "DRIP")
		for _, h := range st.Holdings {
			drip := ""
			if h.DRIP {
				drip = "on"
			}
			fmt.Printf("%-8s %12.4f %12s %12s %14s %14s %-4s\n",
				h.Symbol,
				h.Qty,
				formatMoney(h.AvgCost),
				formatMoney(h.Price),
				formatMoney(h.MarketValue),
				colorizeMoney(h.UnrealizedPL),
				drip,
			)
		}
	}

	if len(st.Expenses) > 0 {
		fmt.Println()
		accent.Println("Recurring expenses")
		fmt.Printf("%-20s %12s %-8s %8s\n", "NAME", "AMOUNT", "EVERY", "DUE DAY")
		for _, e := range st.Expenses {
			fmt.Printf("%-20s %12s %-8s %8d\n", truncate(e.Name, 20), formatMoney(e.Amount), e.Frequency, e.NextDueDay)
		}
	}
	fmt.Println()
}

func renderHistory(entries []cl.LedgerEntry) {
	accent.Println("\n== HISTORY ==")
	if len(entries) == 0 {
		printInfo("No ledger entries yet.")
		return
	}
	fmt.Printf("%-5s %-16s %-9s %-8s %-8s %12s %14s %14s\n", "DAY", "WHEN", "TYPE", "BUCKET", "SYMBOL", "QTY", "AMOUNT", "BALANCE")
	for _, e := range entries {
		qty := ""
		if e.Qty != 0 {
			qty = fmt.Sprintf("%.4f", e.Qty)
		}
		fmt.Printf("%-5d %-16s %-9s %-8s %-8s %12s %14s %14s\n",
			e.Day,
			e.At.Local().Format("01-02 15:04:05"),
			e.Type,
			e.Bucket,
			e.Symbol,
			qty,
			colorizeMoney(e.Amount),
			formatMoney(e.Balance),
		)
	}
	fmt.Println()
}

func renderStocksList(out cl.StockList) {
	accent.Println("\n== MARKET ==")
	if len(out.Instruments) == 0 {
		printInfo("No instruments found.")
		return
	}
	instruments := append([]cl.Instrument(nil), out.Instruments...)
	sort.Slice(instruments, func(i, j int) bool { return instruments[i].Symbol < instruments[j].Symbol })
	fmt.Printf("%-8s %-24s %-12s %-6s %14s %9s\n", "SYMBOL", "NAME", "SECTOR", "CLASS", "PRICE", "DIV")
	for _, in := range instruments {
		div := "-"
		if in.DividendYield > 0 && in.DividendInterval > 0 {
			div = fmt.Sprintf("%.2f%%/%dd", in.DividendYield*100, in.DividendInterval)
		}
		fmt.Printf("%-8s %-24s %-12s %-6s %14s %9s\n",
			in.Symbol,
			truncate(in.Name, 24),
			truncate(in.Sector, 12),
			in.Class,
			formatMoney(in.Price),
			div,
		)
	}
	fmt.Println()
}

func renderOrderResult(o cl.OrderResult) {
	verb := "Bought"
	if o.Side == "sell" {
		verb = "Sold"
	}
	printSuccess(fmt.Sprintf("%s %.4f %s @ %s = %s", verb, o.Qty, o.Symbol, formatMoney(o.Price), formatMoney(o.Notional)))
	if o.Fee > 0 {
		printInfo("Fee: " + formatMoney(o.Fee))
	}
	printInfo("Cash: " + formatMoney(o.Cash))
}

func renderBalances(op string, b cl.Balances) {
	printSuccess(strings.ToUpper(op[:1]) + op[1:] + " complete.")
	fmt.Printf("Cash %s | Deposit %s | Loan %s\n", formatMoney(b.Cash), formatMoney(b.Deposit), formatMoney(b.Loan))
}

func renderLeaderboard(recs []cl.LeaderboardRecord) {
	accent.Println("\n== LEADERBOARD ==")
	if len(recs) == 0 {
		printInfo("No leaderboard rows yet.")
		return
	}
	fmt.Printf("%-6s %-24s %16s %6s\n", "RANK", "PLAYER", "NET WORTH", "DAYS")
	for i, r := range recs {
		fmt.Printf("%-6d %-24s %16s %6d\n", i+1, truncate(r.Username, 24), formatMoney(r.Asset), r.Days)
	}
	fmt.Println()
}

func renderCasinoBoard(recs []cl.CasinoRecord) {
	accent.Println("\n== CASINO ==")
	if len(recs) == 0 {
		printInfo("No casino winnings yet.")
		return
	}
	fmt.Printf("%-6s %-24s %16s\n", "RANK", "PLAYER", "WINNINGS")
	for i, r := range recs {
		fmt.Printf("%-6d %-24s %16s\n", i+1, truncate(r.Username, 24), formatMoney(r.CasinoWin))
	}
	fmt.Println()
}

func colorizeMoney(v float64) string {
	text := formatMoney(v)
	switch {
	case v > 0:
		return success.Sprint("+" + text)
	case v < 0:
		return danger.Sprint(text)
	default:
		return neutral.Sprint(text)
	}
}

// formatMoney renders v with two decimals and thousands separators.
func formatMoney(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	fixed := d.StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")
	return sign + comma(whole) + "." + frac
}

func comma(s string) string {
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
		b.WriteByte(',')
	}
	for i := pre; i < len(s); i += 3 {
		b.WriteString(s[i : i+3])
		if i+3 < len(s) {
			b.WriteByte(',')
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
