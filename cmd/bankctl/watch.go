package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	cl "bankgame/internal/cli"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(12)
	gainStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type stateFetcher func(ctx context.Context) (cl.State, error)

type stateMsg struct {
	state cl.State
	at    time.Time
}

type errMsg struct{ err error }

type pollMsg struct{}

type watchModel struct {
	fetch    stateFetcher
	every    time.Duration
	state    cl.State
	loaded   bool
	updated  time.Time
	err      error
	holdings table.Model
}

func newWatchModel(fetch stateFetcher, every time.Duration) watchModel {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "SYMBOL", Width: 8},
			{Title: "QTY", Width: 12},
			{Title: "PRICE", Width: 14},
			{Title: "VALUE", Width: 14},
			{Title: "P/L", Width: 14},
			{Title: "DRIP", Width: 4},
		}),
		table.WithHeight(8),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true)
	t.SetStyles(styles)
	return watchModel{fetch: fetch, every: every, holdings: t}
}

func (m watchModel) Init() tea.Cmd {
	return m.fetchCmd()
}

func (m watchModel) fetchCmd() tea.Cmd {
	fetch := m.fetch
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		st, err := fetch(ctx)
		if err != nil {
			return errMsg{err: err}
		}
		return stateMsg{state: st, at: time.Now()}
	}
}

func (m watchModel) pollCmd() tea.Cmd {
	return tea.Tick(m.every, func(time.Time) tea.Msg { return pollMsg{} })
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			return m, m.fetchCmd()
		}
	case pollMsg:
		return m, m.fetchCmd()
	case stateMsg:
		m.state = msg.state
		m.loaded = true
		m.updated = msg.at
		m.err = nil
		m.holdings.SetRows(holdingRows(msg.state.Holdings))
		return m, m.pollCmd()
	case errMsg:
		m.err = msg.err
		return m, m.pollCmd()
	}
	var cmd tea.Cmd
	m.holdings, cmd = m.holdings.Update(msg)
	return m, cmd
}

func holdingRows(holdings []cl.Holding) []table.Row {
	rows := make([]table.Row, 0, len(holdings))
	for _, h := range holdings {
		drip := ""
		if h.DRIP {
			drip = "on"
		}
		rows = append(rows, table.Row{
			h.Symbol,
			fmt.Sprintf("%.4f", h.Qty),
			formatMoney(h.Price),
			formatMoney(h.MarketValue),
			formatMoney(h.UnrealizedPL),
			drip,
		})
	}
	return rows
}

func (m watchModel) View() string {
	var b strings.Builder
	if !m.loaded {
		b.WriteString(titleStyle.Render("bankctl watch"))
		b.WriteString("\n\nloading...\n")
	} else {
		st := m.state
		b.WriteString(titleStyle.Render(fmt.Sprintf("%s :: day %d", st.Username, st.Days)))
		b.WriteString("\n\n")
		summary := lipgloss.JoinVertical(lipgloss.Left,
			labelStyle.Render("cash")+formatMoney(st.Cash),
			labelStyle.Render("deposit")+formatMoney(st.Deposit),
			labelStyle.Render("loan")+formatMoney(st.Loan),
			labelStyle.Render("net worth")+pnlStyle(openPL(st.Holdings)).Render(formatMoney(st.NetWorth)),
		)
		b.WriteString(boxStyle.Render(summary))
		b.WriteString("\n")
		if len(st.Holdings) == 0 {
			b.WriteString(helpStyle.Render("no open positions"))
		} else {
			b.WriteString(m.holdings.View())
		}
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(lossStyle.Render("error: " + m.err.Error()))
		b.WriteString("\n")
	}
	status := "r refresh | q quit"
	if !m.updated.IsZero() {
		status = fmt.Sprintf("updated %s | %s", m.updated.Format("15:04:05"), status)
	}
	b.WriteString(helpStyle.Render(status))
	b.WriteString("\n")
	return b.String()
}

func openPL(holdings []cl.Holding) float64 {
	var total float64
	for _, h := range holdings {
		total += h.UnrealizedPL
	}
	return total
}

func pnlStyle(v float64) lipgloss.Style {
	switch {
	case v > 0:
		return gainStyle
	case v < 0:
		return lossStyle
	default:
		return lipgloss.NewStyle()
	}
}

func runWatch(ctx context.Context, client *cl.Client, sess cl.Session, every time.Duration) error {
	fetch := func(ctx context.Context) (cl.State, error) {
		return client.State(ctx, sess.Token)
	}
	p := tea.NewProgram(newWatchModel(fetch, every), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
