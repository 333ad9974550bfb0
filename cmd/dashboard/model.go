package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"tradezone-dashboard/internal/authapi"
	"tradezone-dashboard/internal/dashboard"
	"tradezone-dashboard/internal/models"
)

type tab int

const (
	tabHoldings tab = iota
	tabTrades
	tabWatchlist
	tabCount
)

func (t tab) String() string {
	switch t {
	case tabHoldings:
		return "Holdings"
	case tabTrades:
		return "Trades"
	case tabWatchlist:
		return "Watchlist"
	default:
		return "?"
	}
}

type tickMsg time.Time

// actionMsg carries the outcome of a command run off the UI goroutine.
type actionMsg struct {
	result  dashboard.ActionResult
	err     error
	deleted int
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

type model struct {
	ctx    context.Context
	cancel context.CancelFunc
	engine *dashboard.Engine
	logger *zap.Logger
	subs   *dashboard.Subscriptions

	width, height int
	ready         bool
	viewport      viewport.Model
	input         textinput.Model
	prompting     bool
	busy          bool

	tab            tab
	watchlistID    int
	detail         string
	status         string
	statusOK       bool
	welcomeChecked bool
	showWelcome    bool
}

func newModel(ctx context.Context, cancel context.CancelFunc, engine *dashboard.Engine, logger *zap.Logger) model {
	ti := textinput.New()
	ti.Prompt = ":"
	ti.Placeholder = commandHelp
	ti.CharLimit = 64

	return model{
		ctx:         ctx,
		cancel:      cancel,
		engine:      engine,
		logger:      logger.Named("tui"),
		subs:        engine.NewSubscriptions(),
		input:       ti,
		tab:         tabTrades,
		watchlistID: 1,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.syncCmd(), tickCmd())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.prompting {
			return m.updatePrompt(msg)
		}
		switch msg.String() {
		case "q", "ctrl+c":
			m.subs.Close()
			m.cancel()
			return m, tea.Quit
		case "tab":
			m.tab = (m.tab + 1) % tabCount
			m.refresh(true)
			return m, nil
		case "1", "2", "3":
			m.tab = tab(msg.String()[0] - '1')
			m.refresh(true)
			return m, nil
		case ":":
			m.prompting = true
			m.input.SetValue("")
			return m, m.input.Focus()
		case "r":
			if ae := m.engine.Errors.Last(); ae != nil && ae.Retryable {
				m.setStatus(true, "Retrying...")
				return m, m.reload()
			}
			return m, nil
		case "esc":
			m.detail = ""
			m.refresh(true)
			return m, nil
		case "x":
			m.showWelcome = false
			m.refresh(false)
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		headerH := 2
		footerH := 1
		vpHeight := m.height - headerH - footerH
		if vpHeight < 1 {
			vpHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.MouseWheelEnabled = true
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		m.input.Width = m.width - 2
		m.refresh(false)
		return m, nil

	case tickMsg:
		m.checkWelcome()
		m.refresh(false)
		return m, tea.Batch(m.syncCmd(), tickCmd())

	case actionMsg:
		m.busy = false
		if msg.err != nil {
			m.logger.Warn("Command failed", zap.Error(msg.err))
			text := msg.result.Message
			if ue, ok := dashboard.UserError(msg.err); ok {
				text = ue.Message + ": " + ue.Details
			}
			if text == "" {
				text = msg.err.Error()
			}
			m.setStatus(false, text)
		} else {
			m.setStatus(msg.result.Success, msg.result.Message)
		}
		if msg.err == nil && msg.deleted != 0 && msg.deleted == m.watchlistID {
			m.watchlistID = m.fallbackWatchlist(msg.deleted)
		}
		m.refresh(false)
		return m, m.syncCmd()
	}

	if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

func (m model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "ctrl+c":
		m.prompting = false
		m.input.Blur()
		return m, nil
	case "enter":
		line := m.input.Value()
		m.prompting = false
		m.input.Blur()
		c, err := parseCommand(line)
		if err != nil {
			m.setStatus(false, err.Error())
			return m, nil
		}
		return m.execute(c)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// execute applies local commands directly and runs engine calls as tea.Cmds.
func (m model) execute(c command) (tea.Model, tea.Cmd) {
	ctx, e := m.ctx, m.engine
	id := m.watchlistID

	switch c.name {
	case "wl":
		m.watchlistID = int(c.n)
		m.tab = tabWatchlist
		m.refresh(true)
		return m, m.syncCmd()
	case "show":
		m.detail = c.symbol
		m.refresh(true)
		return m, m.syncCmd()
	case "welcome":
		m.welcomeChecked = false
	case "add":
		if !m.subs.View().KnownSymbol(c.symbol) {
			m.setStatus(false, fmt.Sprintf("Unknown symbol %s", c.symbol))
			return m, nil
		}
	}

	m.busy = true
	m.logger.Info("Running command", zap.String("command", c.name), zap.String("symbol", c.symbol))

	return m, func() tea.Msg {
		var (
			res dashboard.ActionResult
			err error
		)
		switch c.name {
		case "buy":
			res, err = e.Buy(ctx, c.symbol, c.n)
		case "sell":
			held, herr := e.HeldQuantity(ctx, c.symbol)
			if herr != nil {
				return actionMsg{err: herr, result: dashboard.ActionResult{Message: "Could not load holdings"}}
			}
			res, err = e.Sell(ctx, c.symbol, c.n, held)
		case "add":
			res, err = e.AddSymbol(ctx, id, c.symbol)
		case "rm":
			res, err = e.RemoveSymbol(ctx, id, c.symbol)
		case "new":
			res, err = e.CreateWatchlist(ctx, int(c.n))
		case "del":
			res, err = e.DeleteWatchlist(ctx, int(c.n))
			return actionMsg{result: res, err: err, deleted: int(c.n)}
		case "guest":
			err = e.Session.LoginAsGuest(ctx)
			res = dashboard.ActionResult{Success: err == nil, Message: "Signed in as guest"}
		case "signout":
			err = e.Session.SignOut(ctx)
			res = dashboard.ActionResult{Success: true, Message: "Signed out"}
		case "upgrade":
			err = e.Session.UpgradeToTrader(ctx)
			res = dashboard.ActionResult{Success: err == nil, Message: "Upgraded: " + authapi.RoleDescription(models.RoleTrader)}
			if errors.Is(err, dashboard.ErrSignInRequired) {
				res.Message = "Sign in to trade: " + e.Session.SignInURL("/")
				err = nil
			}
		case "welcome":
			err = e.DismissWelcome()
			res = dashboard.ActionResult{Success: err == nil, Message: "Welcome note will show again"}
		}
		return actionMsg{result: res, err: err}
	}
}

// syncCmd refreshes subscriptions off the UI goroutine.
func (m model) syncCmd() tea.Cmd {
	subs, id, detail := m.subs, m.watchlistID, m.detail
	return func() tea.Msg {
		subs.Sync(id, detail)
		return nil
	}
}

func (m model) reload() tea.Cmd {
	ctx, e := m.ctx, m.engine
	return func() tea.Msg {
		if err := e.Reload(ctx); err != nil {
			return actionMsg{err: err, result: dashboard.ActionResult{Message: "Reload failed"}}
		}
		return actionMsg{result: dashboard.ActionResult{Success: true, Message: "Reloaded"}}
	}
}

func (m *model) checkWelcome() {
	if m.welcomeChecked || m.tab != tabWatchlist || m.watchlistID != 1 {
		return
	}
	v := m.subs.View()
	s := v.WatchlistSymbols
	if v.WatchlistID != m.watchlistID || !s.HasData {
		return
	}
	m.welcomeChecked = true
	m.showWelcome = m.engine.ShouldShowWelcome(m.watchlistID, len(s.Data) > 0)
}

func (m *model) fallbackWatchlist(deleted int) int {
	for _, id := range m.subs.View().Watchlists.Data.IDs() {
		if id != deleted {
			return id
		}
	}
	return 1
}

func (m *model) setStatus(ok bool, text string) {
	m.statusOK = ok
	m.status = text
}

func (m *model) refresh(top bool) {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderContent())
	if top {
		m.viewport.GotoTop()
	}
}
