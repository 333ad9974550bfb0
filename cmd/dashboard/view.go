package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"tradezone-dashboard/internal/dashboard"
	"tradezone-dashboard/internal/models"
	"tradezone-dashboard/internal/pricefx"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4"))
	tabStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("7")).Padding(0, 1)
	activeTab   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("14")).Padding(0, 1)
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("8"))
	bannerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("1"))
	colHdrStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	upStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	downStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	flashUp     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("10"))
	flashDown   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("9"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	noteStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func (m model) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	var tabs []string
	for t := tab(0); t < tabCount; t++ {
		label := fmt.Sprintf("%d %s", t+1, t)
		if t == tabWatchlist {
			label = fmt.Sprintf("%d %s %d", t+1, t, m.watchlistID)
		}
		if t == m.tab {
			tabs = append(tabs, activeTab.Render(label))
		} else {
			tabs = append(tabs, tabStyle.Render(label))
		}
	}
	tabBar := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)

	headerText := fmt.Sprintf(" TradeZone  %s    date: %s ", m.sessionLabel(), orDash(m.subs.View().TradesDate))
	headerBar := headerStyle.Render(padOrTrunc(headerText, m.width))

	var footerBar string
	switch {
	case m.prompting:
		footerBar = m.input.View()
	case m.status != "":
		style := errStyle
		if m.statusOK {
			style = okStyle
		}
		footerBar = style.Render(padOrTrunc(" "+m.status, m.width))
	default:
		left := " q quit  tab/1-3 switch  : command  r retry  esc close detail  pgup/dn scroll"
		right := fmt.Sprintf("%.0f%% ", m.viewport.ScrollPercent()*100)
		if m.busy {
			right = "working... " + right
		}
		gap := m.width - len(left) - len(right)
		if gap < 0 {
			gap = 0
		}
		footerBar = footerStyle.Render(padOrTrunc(left+strings.Repeat(" ", gap)+right, m.width))
	}

	return headerBar + "\n" + tabBar + "\n" + m.viewport.View() + "\n" + footerBar
}

func (m model) sessionLabel() string {
	s := m.engine.Session
	u := s.User()
	switch {
	case u == nil:
		return "not signed in"
	case s.Suspended():
		return u.Email + " (suspended)"
	case u.IsGuest():
		return "guest"
	default:
		return fmt.Sprintf("%s [%s]", u.Email, u.Role)
	}
}

func (m model) renderContent() string {
	var b strings.Builder
	v := m.subs.View()

	if ae := m.engine.Errors.Last(); ae != nil {
		line := fmt.Sprintf(" %s: %s ", ae.Message, ae.Details)
		b.WriteString(bannerStyle.Render(padOrTrunc(line, m.width)))
		b.WriteString("\n")
		if ae.Retryable {
			b.WriteString(dimStyle.Render("  press r to retry"))
		} else {
			b.WriteString(dimStyle.Render("  sign in at " + m.engine.Session.SignInURL("/")))
		}
		b.WriteString("\n\n")
	}

	if v.Detail != "" {
		m.renderDetail(&b, v)
		b.WriteString("\n")
	}

	switch m.tab {
	case tabHoldings:
		m.renderHoldings(&b, v)
	case tabTrades:
		m.renderTrades(&b, v)
	case tabWatchlist:
		m.renderWatchlist(&b, v)
	}
	return b.String()
}

func (m model) renderHoldings(b *strings.Builder, v dashboard.View) {
	if !m.engine.Session.IsAuthenticated() {
		b.WriteString(dimStyle.Render("  Sign in to see your holdings: " + m.engine.Session.SignInURL("/")))
		b.WriteString("\n")
		return
	}
	if s := v.Summary; s.HasData {
		pnl := s.Data.PnL()
		fmt.Fprintf(b, "  Value %s   Invested %s   P&L %s\n\n",
			s.Data.TotalCurrentValue.StringFixed(2),
			s.Data.TotalInvestment.StringFixed(2),
			signed(pnl).Render(pnl.StringFixed(2)),
		)
	}
	st := v.Holdings
	if msg, done := stateNote(st.IsLoading(), st.HasData, st.Err, len(st.Data) == 0, "No holdings yet"); done {
		b.WriteString(msg)
		return
	}

	flashes := m.engine.HighlightHoldings(st.Data)
	b.WriteString(colHdrStyle.Render(fmt.Sprintf("  %-12s %10s %10s %10s %12s %12s %8s", "SYMBOL", "QTY", "AVG", "LAST", "VALUE", "P&L", "DAY%")))
	b.WriteString("\n")
	for _, h := range st.Data {
		row := fmt.Sprintf("  %-12s %10s %10s %10s %12s %12s %8s",
			h.Symbol,
			h.AvgQty.String(),
			h.AvgCost.StringFixed(2),
			h.LastPrice.StringFixed(2),
			h.CurrentValue.StringFixed(2),
			h.PnL.StringFixed(2),
			h.DayChangePct.StringFixed(2),
		)
		b.WriteString(styleRow(row, flashes[h.Symbol], signed(h.PnL)))
		b.WriteString("\n")
	}
}

func (m model) renderTrades(b *strings.Builder, v dashboard.View) {
	if v.TradesDate == "" {
		b.WriteString(dimStyle.Render("  Waiting for latest trade date..."))
		return
	}
	st := v.Trades
	if msg, done := stateNote(st.IsLoading(), st.HasData, st.Err, len(st.Data) == 0, "No trades for "+v.TradesDate); done {
		b.WriteString(msg)
		return
	}
	writeTradeRows(b, st.Data, m.engine.Highlight(st.Data))
}

func (m model) renderWatchlist(b *strings.Builder, v dashboard.View) {
	if v.Owner == "" {
		b.WriteString(dimStyle.Render("  Sign in or type :guest to use watchlists"))
		return
	}

	if s := v.Watchlists; s.HasData {
		var ids []string
		for _, id := range s.Data.IDs() {
			ids = append(ids, fmt.Sprintf("%d (%d)", id, len(s.Data.Symbols(id))))
		}
		fmt.Fprintf(b, "  Watchlists: %s\n", strings.Join(ids, "  "))
	}

	if m.showWelcome {
		b.WriteString(noteStyle.Render("Welcome! Watchlist 1 comes with a few symbols to get you started.\n:add SYM and :rm SYM edit it, :new N creates another. Press x to hide."))
		b.WriteString("\n")
	}

	if s := v.WatchlistSymbols; s.HasData {
		fmt.Fprintf(b, "  Symbols %d/%d: %s\n\n", len(s.Data), models.MaxWatchlistSymbols, strings.Join(s.Data, " "))
	}

	if v.TradesDate == "" {
		b.WriteString(dimStyle.Render("  Waiting for latest trade date..."))
		return
	}
	st := v.WatchlistTrades
	if msg, done := stateNote(st.IsLoading(), st.HasData, st.Err, len(st.Data) == 0, "Watchlist is empty, add symbols with :add SYM"); done {
		b.WriteString(msg)
		return
	}
	writeTradeRows(b, st.Data, m.engine.Highlight(st.Data))
}

func (m model) renderDetail(b *strings.Builder, v dashboard.View) {
	fmt.Fprintf(b, "  %s", colHdrStyle.Render(v.Detail))
	if s := v.LatestPrice; s.HasData {
		fmt.Fprintf(b, "  last %s  %s", s.Data.LastPrice.StringFixed(2),
			signed(s.Data.Change).Render(s.Data.ChangePct.StringFixed(2)+"%"))
	}
	b.WriteString("\n")

	if s := v.PriceHistory; s.HasData && len(s.Data) > 0 {
		var closes []decimal.Decimal
		for _, r := range s.Data {
			closes = append(closes, r.Close)
		}
		fmt.Fprintf(b, "  %s %s\n", dashboard.PriceHistoryRange, sparkline(closes))
	}

	if s := v.HoldingTrades; s.HasData && m.engine.Session.IsAuthenticated() {
		for _, t := range s.Data {
			fmt.Fprintf(b, "  %-10s %-4s %8s @ %10s  %4dd  %s\n",
				t.TradeDate, t.Action, t.Qty.String(), t.Price.StringFixed(2), t.AgeInDays,
				signed(t.PnL).Render(t.PnL.StringFixed(2)))
		}
	}
}

func writeTradeRows(b *strings.Builder, rows []models.TradeRow, flashes map[string]pricefx.Flash) {
	b.WriteString(colHdrStyle.Render(fmt.Sprintf("  %-12s %10s %10s %10s %10s %10s %8s", "SYMBOL", "PREV", "OPEN", "HIGH", "LOW", "LAST", "CHG%")))
	b.WriteString("\n")
	for _, r := range rows {
		row := fmt.Sprintf("  %-12s %10s %10s %10s %10s %10s %8s",
			r.Symbol,
			r.PrevClose.StringFixed(2),
			r.Open.StringFixed(2),
			r.High.StringFixed(2),
			r.Low.StringFixed(2),
			r.LastPrice.StringFixed(2),
			r.ChangePct.StringFixed(2),
		)
		b.WriteString(styleRow(row, flashes[r.Symbol], signed(r.Change)))
		b.WriteString("\n")
	}
}

// stateNote returns the placeholder shown instead of a grid, if any.
func stateNote(loading, hasData bool, err error, empty bool, emptyText string) (string, bool) {
	switch {
	case loading:
		return dimStyle.Render("  Loading..."), true
	case err != nil && !hasData:
		return errStyle.Render("  " + err.Error()), true
	case hasData && empty:
		return dimStyle.Render("  " + emptyText), true
	case !hasData:
		return dimStyle.Render("  Loading..."), true
	}
	return "", false
}

func styleRow(row string, f pricefx.Flash, base lipgloss.Style) string {
	if f.Active {
		switch f.Direction {
		case pricefx.Up:
			return flashUp.Render(row)
		case pricefx.Down:
			return flashDown.Render(row)
		}
	}
	return base.Render(row)
}

func signed(d decimal.Decimal) lipgloss.Style {
	switch {
	case d.IsPositive():
		return upStyle
	case d.IsNegative():
		return downStyle
	default:
		return lipgloss.NewStyle()
	}
}

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

func sparkline(values []decimal.Decimal) string {
	if len(values) == 0 {
		return ""
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = decimal.Min(lo, v)
		hi = decimal.Max(hi, v)
	}
	span := hi.Sub(lo)
	top := decimal.NewFromInt(int64(len(sparkRunes) - 1))

	out := make([]rune, len(values))
	for i, v := range values {
		idx := 0
		if span.IsPositive() {
			idx = int(v.Sub(lo).Div(span).Mul(top).Round(0).IntPart())
		}
		out[i] = sparkRunes[idx]
	}
	return string(out)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func padOrTrunc(s string, width int) string {
	if width <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) >= width {
		return string(r[:width])
	}
	return s + strings.Repeat(" ", width-len(r))
}
