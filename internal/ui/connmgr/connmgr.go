package connmgr

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/sadopc/sqlharbor/internal/adapter"
	"github.com/sadopc/sqlharbor/internal/config"
	"github.com/sadopc/sqlharbor/internal/logging"
	appmsg "github.com/sadopc/sqlharbor/internal/msg"
	"github.com/sadopc/sqlharbor/internal/theme"
)

const testTimeout = 10 * time.Second

// State tracks the connection manager screen.
type State int

const (
	StateList State = iota
	StateForm
	StateTesting
)

// ProfilesUpdatedMsg is sent when profiles are added, edited or deleted.
type ProfilesUpdatedMsg struct {
	Profiles map[string]config.Profile
}

type testResultMsg struct{ err error }

// probe opens and closes a connection. Replaced in tests.
var probe = func(ctx context.Context, p config.Profile, logger *slog.Logger) error {
	a, err := adapter.New(p.Adapter, p.ConnStr, adapter.Options(p.Options).Normalize(), logger)
	if err != nil {
		return err
	}
	conn, err := a.Connect(ctx)
	if err != nil {
		return err
	}
	return conn.Close()
}

const (
	fieldName = iota
	fieldAdapter
	fieldConnStr
	fieldOptions
	fieldCount
)

// Model is the connection manager modal. It lists the configured profiles
// and edits them in a small form.
type Model struct {
	state    State
	profiles map[string]config.Profile
	names    []string
	cursor   int
	visible  bool
	width    int
	height   int
	logger   *slog.Logger

	inputs    []textinput.Model
	formFocus int
	editing   string
	message   string
	isError   bool
}

// New creates a new connection manager over profiles.
func New(profiles map[string]config.Profile, logger *slog.Logger) Model {
	if logger == nil {
		logger = logging.Discard()
	}
	m := Model{logger: logger}
	m.SetProfiles(profiles)
	m.initForm()
	return m
}

func (m *Model) initForm() {
	m.inputs = make([]textinput.Model, fieldCount)

	labels := []string{"Name", "Adapter", "Connection", "Options"}
	placeholders := []string{
		"warehouse",
		strings.Join(adapter.Names(), "|"),
		"postgres://user@host/db, or file paths separated by commas",
		"key=value, key=value",
	}
	for i := range m.inputs {
		t := textinput.New()
		t.Prompt = fmt.Sprintf("%-11s", labels[i]+":")
		t.Placeholder = placeholders[i]
		t.Width = 44
		m.inputs[i] = t
	}
}

// Init returns no initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles connection manager messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.visible {
		return m, nil
	}

	switch m.state {
	case StateList:
		return m.updateList(msg)
	case StateForm:
		return m.updateForm(msg)
	case StateTesting:
		return m.updateTesting(msg)
	}
	return m, nil
}

func (m Model) updateList(msg tea.Msg) (Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch keyMsg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.names) {
			m.cursor++
		}
	case "enter":
		if m.cursor == len(m.names) {
			return m, m.openForm("")
		}
		name := m.names[m.cursor]
		p := m.profiles[name]
		m.visible = false
		return m, func() tea.Msg {
			return appmsg.ConnectRequestMsg{
				Adapter: p.Adapter,
				ConnStr: slices.Clone(p.ConnStr),
				Options: adapter.Options(p.Options).Normalize(),
				Profile: name,
			}
		}
	case "n":
		return m, m.openForm("")
	case "e":
		if m.cursor < len(m.names) {
			return m, m.openForm(m.names[m.cursor])
		}
	case "d":
		if m.cursor < len(m.names) {
			profiles := maps.Clone(m.profiles)
			delete(profiles, m.names[m.cursor])
			m.SetProfiles(profiles)
			return m, m.updated()
		}
	case "esc", "q":
		m.visible = false
	}
	return m, nil
}

func (m *Model) openForm(name string) tea.Cmd {
	m.state = StateForm
	m.editing = name
	m.message = ""
	m.isError = false
	p := m.profiles[name]
	m.inputs[fieldName].SetValue(name)
	m.inputs[fieldAdapter].SetValue(p.Adapter)
	m.inputs[fieldConnStr].SetValue(strings.Join(p.ConnStr, ", "))
	m.inputs[fieldOptions].SetValue(FormatOptions(p.Options))
	for i := range m.inputs {
		m.inputs[i].Blur()
	}
	m.formFocus = 0
	return m.inputs[0].Focus()
}

func (m *Model) focusField(i int) tea.Cmd {
	m.inputs[m.formFocus].Blur()
	m.formFocus = (i + fieldCount) % fieldCount
	return m.inputs[m.formFocus].Focus()
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			m.state = StateList
			return m, nil
		case "tab", "down":
			return m, m.focusField(m.formFocus + 1)
		case "shift+tab", "up":
			return m, m.focusField(m.formFocus - 1)
		case "ctrl+s":
			name, p, err := m.formProfile()
			if err != nil {
				m.message, m.isError = err.Error(), true
				return m, nil
			}
			profiles := maps.Clone(m.profiles)
			if profiles == nil {
				profiles = map[string]config.Profile{}
			}
			if m.editing != "" && m.editing != name {
				delete(profiles, m.editing)
			}
			profiles[name] = p
			m.SetProfiles(profiles)
			m.cursor = slices.Index(m.names, name)
			m.state = StateList
			return m, m.updated()
		case "ctrl+t":
			_, p, err := m.formProfile()
			if err != nil {
				m.message, m.isError = err.Error(), true
				return m, nil
			}
			m.state = StateTesting
			logger := m.logger
			return m, func() tea.Msg {
				ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
				defer cancel()
				return testResultMsg{err: probe(ctx, p, logger)}
			}
		}
	}

	var cmd tea.Cmd
	m.inputs[m.formFocus], cmd = m.inputs[m.formFocus].Update(msg)
	return m, cmd
}

func (m Model) updateTesting(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case testResultMsg:
		if msg.err != nil {
			m.message = "Connection failed: " + logging.Redact(msg.err.Error())
			m.isError = true
		} else {
			m.message = "Connection successful!"
			m.isError = false
		}
		m.state = StateForm
	case tea.KeyMsg:
		if msg.String() == "esc" {
			m.state = StateForm
		}
	}
	return m, nil
}

func (m Model) updated() tea.Cmd {
	profiles := maps.Clone(m.profiles)
	return func() tea.Msg { return ProfilesUpdatedMsg{Profiles: profiles} }
}

// formProfile reads and checks the form.
func (m Model) formProfile() (string, config.Profile, error) {
	name := strings.TrimSpace(m.inputs[fieldName].Value())
	if name == "" {
		return "", config.Profile{}, fmt.Errorf("a profile needs a name")
	}
	p := config.Profile{Adapter: strings.TrimSpace(m.inputs[fieldAdapter].Value())}
	if _, err := adapter.Lookup(p.Adapter); err != nil {
		return "", config.Profile{}, err
	}
	for _, s := range strings.Split(m.inputs[fieldConnStr].Value(), ",") {
		if s = strings.TrimSpace(s); s != "" {
			p.ConnStr = append(p.ConnStr, s)
		}
	}
	opts, err := ParseOptions(m.inputs[fieldOptions].Value())
	if err != nil {
		return "", config.Profile{}, err
	}
	p.Options = opts
	return name, p, nil
}

// ParseOptions reads "key=value, key=value". A bare key is a true flag.
func ParseOptions(s string) (map[string]any, error) {
	var opts map[string]any
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if opts == nil {
			opts = map[string]any{}
		}
		key, value, found := strings.Cut(part, "=")
		key = adapter.NormalizeName(strings.TrimSpace(key))
		if key == "" {
			return nil, fmt.Errorf("option %q has no name", part)
		}
		if !found {
			opts[key] = true
			continue
		}
		opts[key] = strings.TrimSpace(value)
	}
	return opts, nil
}

// FormatOptions renders opts in the form ParseOptions reads, sorted by key.
func FormatOptions(opts map[string]any) string {
	parts := make([]string, 0, len(opts))
	for _, k := range slices.Sorted(maps.Keys(opts)) {
		if v, ok := opts[k].(bool); ok && v {
			parts = append(parts, k)
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%v", k, opts[k]))
	}
	return strings.Join(parts, ", ")
}

// View renders the connection manager.
func (m Model) View() string {
	if !m.visible {
		return ""
	}

	th := theme.Current

	switch m.state {
	case StateList:
		return m.viewList(th)
	case StateForm:
		return m.viewForm(th)
	case StateTesting:
		return th.DialogBorder.Render("\n  Testing connection...\n")
	}
	return ""
}

func (m Model) viewList(th *theme.Theme) string {
	w := m.dialogWidth()
	var lines []string
	for i, name := range m.names {
		line := runewidth.Truncate(fmt.Sprintf("%s  (%s)", name, m.profiles[name].DisplayString()), w-8, "…")
		if i == m.cursor {
			lines = append(lines, th.SidebarSelected.Render("> "+line))
		} else {
			lines = append(lines, "  "+line)
		}
	}
	if m.cursor == len(m.names) {
		lines = append(lines, th.SidebarSelected.Render("> + New Profile"))
	} else {
		lines = append(lines, "  + New Profile")
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		th.DialogTitle.Render("  Connections  "),
		"",
		strings.Join(lines, "\n"),
		"",
		th.MutedText.Render("  enter:connect  n:new  e:edit  d:delete  esc:close"),
	)
	return th.DialogBorder.Width(w).Render(content)
}

func (m Model) viewForm(th *theme.Theme) string {
	title := "  New Profile  "
	if m.editing != "" {
		title = "  Edit Profile  "
	}

	lines := []string{th.DialogTitle.Render(title), ""}
	for i := range m.inputs {
		lines = append(lines, "  "+m.inputs[i].View())
	}
	if m.message != "" {
		style := th.SuccessText
		if m.isError {
			style = th.ErrorText
		}
		lines = append(lines, "", style.Render("  "+m.message))
	}
	lines = append(lines, "", th.MutedText.Render("  ctrl+s:save  ctrl+t:test  esc:back"))

	return th.DialogBorder.Width(m.dialogWidth()).Render(strings.Join(lines, "\n"))
}

func (m Model) dialogWidth() int {
	w := 70
	if m.width > 0 && w > m.width-4 {
		w = m.width - 4
	}
	return w
}

// Show makes the connection manager visible.
func (m *Model) Show() {
	m.visible = true
	m.state = StateList
	m.cursor = 0
}

// Hide hides the connection manager.
func (m *Model) Hide() {
	m.visible = false
}

// Visible returns whether the connection manager is shown.
func (m Model) Visible() bool { return m.visible }

// State returns the current screen.
func (m Model) State() State { return m.state }

// SetSize sets the available space.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// Profiles returns the current profiles.
func (m Model) Profiles() map[string]config.Profile {
	return m.profiles
}

// SetProfiles replaces the listed profiles.
func (m *Model) SetProfiles(profiles map[string]config.Profile) {
	m.profiles = profiles
	m.names = slices.Sorted(maps.Keys(profiles))
	m.cursor = min(m.cursor, len(m.names))
}
