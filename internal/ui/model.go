// Package ui is the interactive terminal front end. The Bubble Tea
// event loop owns the session store and the task reconciler; remote
// calls run as commands and their results come back as messages, so
// every state mutation happens on the loop.
package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"punchlist/internal/config"
	"punchlist/internal/service"
	"punchlist/internal/session"
	"punchlist/internal/tasklist"
)

type mode int

const (
	modeInit mode = iota
	modeLogin
	modeList
	modeAdd
)

// Model is the Bubble Tea model for the task list.
type Model struct {
	store *session.Store
	rec   *tasklist.Reconciler
	keys  config.Keymap

	mode    mode
	signup  bool // the login form registers a new account
	cursor  int
	loading bool
	status  string
	errText string

	input    textinput.Model
	email    textinput.Model
	password textinput.Model
	field    int // 0 = email, 1 = password

	confirmDel bool
	pendingDel *service.Task

	spin spinner.Model
}

func newModel(store *session.Store, rec *tasklist.Reconciler, keys config.Keymap) Model {
	ti := textinput.New()
	ti.Placeholder = "Task title"
	ti.CharLimit = 256
	ti.Width = 40

	email := textinput.New()
	email.Placeholder = "email"
	email.CharLimit = 128
	email.Width = 40

	password := textinput.New()
	password.Placeholder = "password"
	password.CharLimit = 128
	password.Width = 40
	password.EchoMode = textinput.EchoPassword

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		store:    store,
		rec:      rec,
		keys:     keys,
		mode:     modeInit,
		input:    ti,
		email:    email,
		password: password,
		spin:     sp,
	}
}

// Run starts the interactive UI. It owns the session store for the
// duration and releases its subscription on exit.
func Run(ctx context.Context, svc service.Service, cfg *config.Config) error {
	store := session.New(svc, cfg.Log())
	defer store.Close()
	rec := tasklist.New(svc, cfg.Log())

	p := tea.NewProgram(
		newModel(store, rec, cfg.Settings.Keys),
		tea.WithContext(ctx),
		tea.WithAltScreen(),
	)

	// External session changes (another punchlist process signing in
	// or out) are injected into the event loop as messages.
	store.Notify(func(id *service.Identity) {
		p.Send(sessionChangedMsg{identity: id})
	})

	_, err := p.Run()
	return err
}

// Messages.

type initDoneMsg struct{ identity *service.Identity }

type sessionChangedMsg struct{ identity *service.Identity }

type authResultMsg struct {
	identity *service.Identity
	pending  bool // sign-up succeeded but awaits confirmation
	err      error
}

type signedOutMsg struct{}

type tasksLoadedMsg struct {
	owner string
	tasks []service.Task
}

type loadFailedMsg struct {
	owner string
	err   error
}

type outcomeMsg struct{ outcome tasklist.Outcome }

// Commands.

func (m Model) initCmd() tea.Cmd {
	return func() tea.Msg {
		m.store.Initialize(context.Background())
		return initDoneMsg{identity: m.store.Identity()}
	}
}

func (m Model) loadCmd(owner string) tea.Cmd {
	return func() tea.Msg {
		tasks, err := m.rec.Fetch(context.Background(), owner)
		if err != nil {
			return loadFailedMsg{owner: owner, err: err}
		}
		return tasksLoadedMsg{owner: owner, tasks: tasks}
	}
}

func (m Model) performCmd(mut *tasklist.Mutation) tea.Cmd {
	return func() tea.Msg {
		return outcomeMsg{outcome: m.rec.Perform(context.Background(), mut)}
	}
}

func (m Model) signInCmd(email, password string) tea.Cmd {
	return func() tea.Msg {
		if err := m.store.SignIn(context.Background(), email, password); err != nil {
			return authResultMsg{err: err}
		}
		return authResultMsg{identity: m.store.Identity()}
	}
}

func (m Model) signUpCmd(email, password string) tea.Cmd {
	return func() tea.Msg {
		id, err := m.store.SignUp(context.Background(), email, password)
		if err != nil {
			return authResultMsg{err: err}
		}
		if id == nil {
			return authResultMsg{pending: true}
		}
		return authResultMsg{identity: id}
	}
}

func (m Model) signOutCmd() tea.Cmd {
	return func() tea.Msg {
		m.store.SignOut(context.Background())
		return signedOutMsg{}
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.initCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case initDoneMsg:
		return m.applySession(msg.identity, "")

	case sessionChangedMsg:
		if msg.identity == nil {
			return m.applySession(nil, "signed out in another window")
		}
		return m.applySession(msg.identity, "signed in as "+msg.identity.Email)

	case authResultMsg:
		if msg.err != nil {
			m.errText = m.store.Err()
			return m, nil
		}
		if msg.pending {
			m.errText = ""
			m.status = "account created, check your email to confirm"
			return m, nil
		}
		m.signup = false
		m.password.SetValue("")
		return m.applySession(msg.identity, "signed in as "+msg.identity.Email)

	case signedOutMsg:
		m.status = "signed out"
		return m, nil

	case tasksLoadedMsg:
		// A load for a session that already ended is stale.
		if id := m.store.Identity(); id == nil || id.ID != msg.owner {
			return m, nil
		}
		m.rec.Reset(msg.owner, msg.tasks)
		m.loading = false
		m.errText = ""
		m.cursor = clampCursor(m.cursor, len(m.rec.Tasks()))
		return m, nil

	case loadFailedMsg:
		if id := m.store.Identity(); id == nil || id.ID != msg.owner {
			return m, nil
		}
		m.rec.FailLoad(msg.owner)
		m.loading = false
		m.errText = fmt.Sprintf("load failed: %v", msg.err)
		return m, nil

	case outcomeMsg:
		m.rec.Resolve(msg.outcome)
		o := msg.outcome
		if o.Err != nil {
			m.errText = fmt.Sprintf("%s failed: %v", o.Mutation.Kind, o.Err)
		}
		m.cursor = clampCursor(m.cursor, len(m.rec.Tasks()))
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.input.Width = msg.Width - 10
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

// applySession transitions the model after any session change: login
// form when signed out, fresh load when signed in.
func (m Model) applySession(id *service.Identity, status string) (tea.Model, tea.Cmd) {
	m.status = status
	m.confirmDel = false
	m.pendingDel = nil

	if id == nil {
		m.rec.Clear()
		m.mode = modeLogin
		m.cursor = 0
		m.field = 0
		m.email.Focus()
		m.password.Blur()
		return m, textinput.Blink
	}

	m.mode = modeList
	m.loading = true
	m.errText = ""
	m.email.Blur()
	m.password.Blur()
	return m, m.loadCmd(id.ID)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	switch m.mode {
	case modeLogin:
		return m.updateLoginMode(msg)
	case modeAdd:
		return m.updateAddMode(msg)
	case modeList:
		if m.confirmDel {
			return m.updateDeleteConfirm(msg.String())
		}
		return m.updateListMode(msg.String())
	}
	return m, nil
}

func (m Model) updateLoginMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab", "shift+tab":
		m.field = 1 - m.field
		if m.field == 0 {
			m.email.Focus()
			m.password.Blur()
		} else {
			m.password.Focus()
			m.email.Blur()
		}
		return m, textinput.Blink

	case "ctrl+s":
		m.signup = !m.signup
		if m.signup {
			m.status = "creating a new account"
		} else {
			m.status = ""
		}
		return m, nil

	case m.keys.Confirm:
		email := strings.TrimSpace(m.email.Value())
		password := m.password.Value()
		if email == "" || password == "" {
			m.errText = "email and password required"
			return m, nil
		}
		m.errText = ""
		m.status = "signing in..."
		if m.signup {
			m.status = "signing up..."
			return m, m.signUpCmd(email, password)
		}
		return m, m.signInCmd(email, password)

	default:
		var cmd tea.Cmd
		if m.field == 0 {
			m.email, cmd = m.email.Update(msg)
		} else {
			m.password, cmd = m.password.Update(msg)
		}
		return m, cmd
	}
}

func (m Model) updateAddMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case m.keys.Cancel:
		m.mode = modeList
		m.input.SetValue("")
		m.input.Blur()
		m.status = "cancelled"
		return m, nil

	case m.keys.Confirm:
		mut := m.rec.BeginAdd(m.input.Value())
		m.input.SetValue("")
		m.input.Blur()
		m.mode = modeList
		if mut == nil {
			m.status = "title cannot be empty"
			return m, nil
		}
		m.cursor = 0
		m.status = "adding..."
		return m, m.performCmd(mut)

	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
}

func (m Model) updateDeleteConfirm(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "y", "Y":
		task := m.pendingDel
		m.confirmDel = false
		m.pendingDel = nil
		mut := m.rec.BeginRemove(task.ID)
		if mut == nil {
			return m, nil
		}
		m.cursor = clampCursor(m.cursor, len(m.rec.Tasks()))
		m.status = "deleting..."
		return m, m.performCmd(mut)
	case "n", "N", m.keys.Cancel:
		m.confirmDel = false
		m.pendingDel = nil
		m.status = "cancelled"
	}
	return m, nil
}

func (m Model) updateListMode(key string) (tea.Model, tea.Cmd) {
	tasks := m.rec.Tasks()

	switch key {
	case m.keys.Quit:
		return m, tea.Quit

	case m.keys.Down, "down":
		if len(tasks) > 0 {
			m.cursor = clampCursor(m.cursor+1, len(tasks))
		}

	case m.keys.Up, "up":
		if m.cursor > 0 {
			m.cursor = clampCursor(m.cursor-1, len(tasks))
		}

	case m.keys.Add:
		m.mode = modeAdd
		m.input.Focus()
		m.status = "type a title and press enter"
		return m, textinput.Blink

	case m.keys.Toggle:
		if len(tasks) == 0 {
			return m, nil
		}
		task := tasks[m.cursor]
		if tasklist.IsProvisional(task.ID) {
			m.status = "task is still saving"
			return m, nil
		}
		mut := m.rec.BeginToggle(task.ID)
		if mut == nil {
			return m, nil
		}
		return m, m.performCmd(mut)

	case m.keys.Delete:
		if len(tasks) == 0 {
			return m, nil
		}
		task := tasks[m.cursor]
		if tasklist.IsProvisional(task.ID) {
			m.status = "task is still saving"
			return m, nil
		}
		m.confirmDel = true
		m.pendingDel = &task
		m.status = fmt.Sprintf("delete %q? y/n", task.Title)

	case m.keys.Refresh:
		if id := m.store.Identity(); id != nil {
			m.loading = true
			m.status = "reloading..."
			return m, m.loadCmd(id.ID)
		}

	case m.keys.SignOut:
		// Local state clears immediately; the remote call is best
		// effort and must not keep a stale session alive.
		m.rec.Clear()
		m.mode = modeLogin
		m.cursor = 0
		m.field = 0
		m.email.Focus()
		return m, tea.Batch(m.signOutCmd(), textinput.Blink)
	}
	return m, nil
}

func clampCursor(c, n int) int {
	if n == 0 {
		return 0
	}
	if c < 0 {
		return 0
	}
	if c >= n {
		return n - 1
	}
	return c
}
