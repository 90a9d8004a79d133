package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dori/tandem/internal/app"
	"github.com/dori/tandem/internal/auth"
	"github.com/dori/tandem/internal/logger"
	"github.com/dori/tandem/internal/model"
	"github.com/dori/tandem/internal/provider"
	"github.com/dori/tandem/internal/ui/theme"
)

// opTimeout bounds every store round trip started from the UI
const opTimeout = 15 * time.Second

// RootModel is the main application model. Without a session it shows the
// login form, otherwise the project and task panes of the session.
type RootModel struct {
	app    *app.App
	keys   KeyMap
	help   help.Model
	log    *slog.Logger
	now    func() time.Time
	width  int
	height int

	// Login form
	username   textinput.Model
	password   textinput.Model
	loginFocus int
	loggingIn  bool

	// Session view
	session    *provider.Session
	state      provider.State
	pane       Pane
	projectIdx int
	taskIdx    int

	// Prompt for names, titles and assignees
	input   textinput.Model
	purpose inputPurpose

	helpVisible bool

	// Status message
	statusMsg string
	errorMsg  string
}

// NewRootModel creates a new root model. A session already restored on
// application is picked up directly.
func NewRootModel(application *app.App) RootModel {
	h := help.New()
	h.ShowAll = false

	user := textinput.New()
	user.Placeholder = "username"
	user.CharLimit = 64
	user.Focus()

	pass := textinput.New()
	pass.Placeholder = "password"
	pass.CharLimit = 128
	pass.EchoMode = textinput.EchoPassword
	pass.EchoCharacter = '•'

	in := textinput.New()
	in.CharLimit = 200

	m := RootModel{
		app:      application,
		keys:     DefaultKeyMap(),
		help:     h,
		log:      logger.Component("ui"),
		now:      time.Now,
		username: user,
		password: pass,
		input:    in,
	}
	if s := application.Session(); s != nil {
		m.session = s
		m.state = s.Snapshot()
	}
	return m
}

// Init initializes the model
func (m RootModel) Init() tea.Cmd {
	if m.session != nil {
		return waitForChange(m.session)
	}
	return textinput.Blink
}

// waitForChange blocks until the session signals a change or closes
func waitForChange(s *provider.Session) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-s.Changes(); !ok {
			return SessionClosedMsg{}
		}
		return SessionChangedMsg{}
	}
}

func loginCmd(a *app.App, username, password string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		s, err := a.Login(ctx, username, password)
		return LoggedInMsg{Session: s, Err: err}
	}
}

func logoutCmd(a *app.App) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return LoggedOutMsg{Err: a.Logout(ctx)}
	}
}

// mutate runs fn against the session off the UI goroutine
func mutate(fn func(ctx context.Context) (string, error)) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		status, err := fn(ctx)
		return OpDoneMsg{Status: status, Err: err}
	}
}

// Update handles messages
func (m RootModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case LoggedInMsg:
		m.loggingIn = false
		if msg.Err != nil {
			m.errorMsg = loginError(msg.Err)
			m.password.SetValue("")
			return m, nil
		}
		m.session = msg.Session
		m.state = msg.Session.Snapshot()
		m.pane, m.projectIdx, m.taskIdx = PaneProjects, 0, 0
		m.username.SetValue("")
		m.password.SetValue("")
		m.statusMsg = fmt.Sprintf("Logged in as %s", msg.Session.User().DisplayName)
		return m, waitForChange(msg.Session)

	case LoggedOutMsg:
		m.session = nil
		m.state = provider.State{}
		m.resetLoginForm()
		if msg.Err != nil {
			m.errorMsg = msg.Err.Error()
		}
		return m, textinput.Blink

	case SessionChangedMsg:
		if m.session == nil {
			return m, nil
		}
		m.state = m.session.Snapshot()
		m.clampSelection()
		return m, waitForChange(m.session)

	case SessionClosedMsg:
		m.log.Debug("session change stream closed")
		return m, nil

	case OpDoneMsg:
		if msg.Err != nil {
			m.errorMsg = msg.Err.Error()
		} else if msg.Status != "" {
			m.statusMsg = msg.Status
		}
		return m, nil

	case ErrorMsg:
		m.errorMsg = msg.Err.Error()
		return m, nil

	case StatusMsg:
		m.statusMsg = msg.Message
		return m, nil

	case tea.KeyMsg:
		// Clear status/error on any keypress
		m.statusMsg = ""
		m.errorMsg = ""

		// ctrl+c and ctrl+t work everywhere
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "ctrl+t":
			m.cycleTheme()
			return m, nil
		}

		if m.session == nil {
			return m.updateLogin(msg)
		}
		if m.purpose != inputNone {
			return m.updateInput(msg)
		}
		return m.updateSession(msg)
	}

	if m.session == nil {
		var cmd tea.Cmd
		if m.loginFocus == 0 {
			m.username, cmd = m.username.Update(msg)
		} else {
			m.password, cmd = m.password.Update(msg)
		}
		return m, cmd
	}
	return m, nil
}

func loginError(err error) string {
	if errors.Is(err, auth.ErrInvalidCredentials) {
		return "Invalid username or password"
	}
	return err.Error()
}

func (m *RootModel) resetLoginForm() {
	m.loggingIn = false
	m.loginFocus = 0
	m.username.SetValue("")
	m.password.SetValue("")
	m.username.Focus()
	m.password.Blur()
}

func (m RootModel) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.loggingIn {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Cancel):
		return m, tea.Quit

	case key.Matches(msg, m.keys.SwitchPane), msg.String() == "up", msg.String() == "down":
		m.toggleLoginFocus()
		return m, textinput.Blink

	case key.Matches(msg, m.keys.Confirm):
		if m.loginFocus == 0 {
			m.toggleLoginFocus()
			return m, textinput.Blink
		}
		username := strings.TrimSpace(m.username.Value())
		if username == "" || m.password.Value() == "" {
			m.errorMsg = "Username and password are required"
			return m, nil
		}
		m.loggingIn = true
		m.statusMsg = "Logging in..."
		return m, loginCmd(m.app, username, m.password.Value())
	}

	var cmd tea.Cmd
	if m.loginFocus == 0 {
		m.username, cmd = m.username.Update(msg)
	} else {
		m.password, cmd = m.password.Update(msg)
	}
	return m, cmd
}

func (m *RootModel) toggleLoginFocus() {
	if m.loginFocus == 0 {
		m.loginFocus = 1
		m.username.Blur()
		m.password.Focus()
		return
	}
	m.loginFocus = 0
	m.password.Blur()
	m.username.Focus()
}

func (m RootModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.closePrompt()
		return m, nil

	case key.Matches(msg, m.keys.Confirm):
		value := strings.TrimSpace(m.input.Value())
		purpose := m.purpose
		m.closePrompt()
		if value == "" {
			return m, nil
		}
		return m, m.submit(purpose, value)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *RootModel) openPrompt(purpose inputPurpose, placeholder string) tea.Cmd {
	m.purpose = purpose
	m.input.SetValue("")
	m.input.Placeholder = placeholder
	m.input.Focus()
	return textinput.Blink
}

func (m *RootModel) closePrompt() {
	m.purpose = inputNone
	m.input.Blur()
	m.input.SetValue("")
}

// submit turns a confirmed prompt into a session mutation
func (m RootModel) submit(purpose inputPurpose, value string) tea.Cmd {
	s := m.session
	switch purpose {
	case inputProjectName:
		return mutate(func(ctx context.Context) (string, error) {
			p, err := s.AddProject(ctx, model.NewProject{Name: value})
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Added project %q", p.Name), nil
		})

	case inputTaskTitle:
		project, ok := m.selectedProject()
		if !ok {
			return nil
		}
		return mutate(func(ctx context.Context) (string, error) {
			t, err := s.AddTask(ctx, model.NewTask{Title: value, ProjectID: project.ID})
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Added task %q", t.Title), nil
		})

	case inputAssignee:
		task, ok := m.selectedTask()
		if !ok {
			return nil
		}
		user, ok := m.userByName(value)
		if !ok {
			return func() tea.Msg { return ErrorMsg{Err: fmt.Errorf("unknown user %q", value)} }
		}
		return mutate(func(ctx context.Context) (string, error) {
			if _, err := s.AssignTask(ctx, task.ID, user.ID); err != nil {
				return "", err
			}
			return fmt.Sprintf("Assigned to %s", user.DisplayName), nil
		})
	}
	return nil
}

func (m RootModel) updateSession(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := m.session

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.helpVisible = !m.helpVisible
		m.help.ShowAll = m.helpVisible
		return m, nil

	case key.Matches(msg, m.keys.Cancel):
		if m.helpVisible {
			m.helpVisible = false
			m.help.ShowAll = false
			return m, nil
		}
		s.ClearError()
		return m, nil

	case key.Matches(msg, m.keys.SwitchPane):
		if m.pane == PaneProjects {
			m.pane = PaneTasks
		} else {
			m.pane = PaneProjects
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		m.move(-1)
		return m, nil

	case key.Matches(msg, m.keys.Down):
		m.move(1)
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		return m, mutate(func(ctx context.Context) (string, error) {
			s.Refresh(ctx)
			return "Refreshed", nil
		})

	case key.Matches(msg, m.keys.Logout):
		return m, logoutCmd(m.app)

	case key.Matches(msg, m.keys.Add):
		if m.pane == PaneProjects {
			return m, m.openPrompt(inputProjectName, "project name")
		}
		if _, ok := m.selectedProject(); !ok {
			m.errorMsg = "Create a project first"
			return m, nil
		}
		return m, m.openPrompt(inputTaskTitle, "task title")

	case key.Matches(msg, m.keys.Delete):
		if m.pane == PaneProjects {
			project, ok := m.selectedProject()
			if !ok {
				return m, nil
			}
			return m, mutate(func(ctx context.Context) (string, error) {
				if err := s.DeleteProject(ctx, project.ID); err != nil {
					return "", err
				}
				return fmt.Sprintf("Deleted project %q", project.Name), nil
			})
		}
		task, ok := m.selectedTask()
		if !ok {
			return m, nil
		}
		return m, mutate(func(ctx context.Context) (string, error) {
			if err := s.DeleteTask(ctx, task.ID); err != nil {
				return "", err
			}
			return fmt.Sprintf("Deleted task %q", task.Title), nil
		})

	case key.Matches(msg, m.keys.Hold):
		project, ok := m.selectedProject()
		if !ok {
			return m, nil
		}
		next := nextProjectStatus(project.Status)
		return m, mutate(func(ctx context.Context) (string, error) {
			if _, err := s.UpdateProject(ctx, project.ID, model.ProjectPatch{Status: &next}); err != nil {
				return "", err
			}
			return fmt.Sprintf("Project %q is %s", project.Name, next), nil
		})

	case key.Matches(msg, m.keys.Start):
		task, ok := m.selectedTask()
		if !ok {
			return m, nil
		}
		return m, mutate(func(ctx context.Context) (string, error) {
			if _, err := s.StartTask(ctx, task.ID, ""); err != nil {
				return "", err
			}
			return fmt.Sprintf("Started %q", task.Title), nil
		})

	case key.Matches(msg, m.keys.Complete):
		task, ok := m.selectedTask()
		if !ok {
			return m, nil
		}
		return m, mutate(func(ctx context.Context) (string, error) {
			if _, err := s.CompleteTask(ctx, task.ID, ""); err != nil {
				return "", err
			}
			return fmt.Sprintf("Completed %q", task.Title), nil
		})

	case key.Matches(msg, m.keys.Assign):
		if _, ok := m.selectedTask(); !ok {
			return m, nil
		}
		return m, m.openPrompt(inputAssignee, "assign to (username)")
	}

	return m, nil
}

func nextProjectStatus(s model.ProjectStatus) model.ProjectStatus {
	switch s {
	case model.ProjectActive:
		return model.ProjectOnHold
	case model.ProjectOnHold:
		return model.ProjectCompleted
	default:
		return model.ProjectActive
	}
}

func (m *RootModel) move(delta int) {
	if m.pane == PaneProjects {
		m.projectIdx += delta
		m.taskIdx = 0
	} else {
		m.taskIdx += delta
	}
	m.clampSelection()
}

func (m *RootModel) clampSelection() {
	m.projectIdx = clamp(m.projectIdx, len(m.state.Projects))
	m.taskIdx = clamp(m.taskIdx, len(m.projectTasks()))
}

func clamp(i, n int) int {
	if n == 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func (m RootModel) selectedProject() (model.Project, bool) {
	if m.projectIdx >= len(m.state.Projects) {
		return model.Project{}, false
	}
	return m.state.Projects[m.projectIdx], true
}

// projectTasks returns the tasks of the selected project, highest priority
// first and otherwise in collection order
func (m RootModel) projectTasks() []model.Task {
	project, ok := m.selectedProject()
	if !ok {
		return nil
	}
	var tasks []model.Task
	for _, t := range m.state.Tasks {
		if t.ProjectID == project.ID {
			tasks = append(tasks, t)
		}
	}
	slices.SortStableFunc(tasks, func(a, b model.Task) int {
		return b.PriorityWeight() - a.PriorityWeight()
	})
	return tasks
}

func (m RootModel) selectedTask() (model.Task, bool) {
	tasks := m.projectTasks()
	if m.pane != PaneTasks || m.taskIdx >= len(tasks) {
		return model.Task{}, false
	}
	return tasks[m.taskIdx], true
}

func (m RootModel) userByName(name string) (model.User, bool) {
	for _, u := range m.app.Auth.Users() {
		if strings.EqualFold(u.Username, name) {
			return u, true
		}
	}
	return model.User{}, false
}

func (m RootModel) displayName(id string) string {
	for _, u := range m.app.Auth.Users() {
		if u.ID == id {
			return u.DisplayName
		}
	}
	return id
}

// View renders the UI
func (m RootModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var sections []string
	sections = append(sections, m.renderHeader())

	// Reserve: 1 line for header + 2 lines for footer
	contentHeight := m.height - 3
	if m.errorMsg != "" || m.statusMsg != "" || m.state.Error != "" {
		contentHeight--
	}

	var content string
	switch {
	case m.session == nil:
		content = m.renderLogin()
	case m.helpVisible:
		content = m.renderHelp()
	default:
		content = m.renderPanes(contentHeight)
	}

	// Ensure content fills available space
	contentLines := strings.Count(content, "\n") + 1
	if contentLines < contentHeight {
		content += strings.Repeat("\n", contentHeight-contentLines)
	}
	sections = append(sections, content)
	sections = append(sections, m.renderFooter())

	return strings.Join(sections, "\n")
}

// renderHeader renders the header bar
func (m RootModel) renderHeader() string {
	styles := theme.Current.Styles
	t := theme.Current.Theme

	title := styles.Header.Render("tandem")

	subtle := lipgloss.NewStyle().
		Foreground(t.Subtle).
		Padding(0, 1)

	left := title
	if m.session != nil {
		stats := provider.ComputeStats(m.state, m.now())
		summary := fmt.Sprintf("%s │ %d projects │ %d pending · %d in progress · %d done",
			m.session.User().DisplayName, stats.Projects, stats.Pending, stats.InProgress, stats.Completed)
		if stats.Overdue > 0 {
			summary += fmt.Sprintf(" · %d overdue", stats.Overdue)
		}
		left = lipgloss.JoinHorizontal(lipgloss.Center, title, subtle.Render(summary))
	}

	mode := "offline"
	if m.app.Online() {
		mode = "online"
	}
	if m.state.Loading {
		mode = "loading"
	}
	right := subtle.Render(fmt.Sprintf("%s │ theme: %s", mode, t.Name))

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	return left + strings.Repeat(" ", gap) + right
}

func (m RootModel) renderLogin() string {
	styles := theme.Current.Styles

	userStyle, passStyle := styles.InputFocused, styles.Input
	if m.loginFocus == 1 {
		userStyle, passStyle = styles.Input, styles.InputFocused
	}

	var b strings.Builder
	b.WriteString(styles.Title.Render("Log in"))
	b.WriteString("\n")
	b.WriteString(styles.Label.Render("Username"))
	b.WriteString("\n")
	b.WriteString(userStyle.Width(32).Render(m.username.View()))
	b.WriteString("\n")
	b.WriteString(styles.Label.Render("Password"))
	b.WriteString("\n")
	b.WriteString(passStyle.Width(32).Render(m.password.View()))

	return lipgloss.Place(m.width, 12, lipgloss.Center, lipgloss.Center, b.String())
}

func (m RootModel) renderPanes(height int) string {
	styles := theme.Current.Styles

	leftWidth := m.width / 3
	if leftWidth < 24 {
		leftWidth = 24
	}
	rightWidth := m.width - leftWidth - 4
	if rightWidth < 20 {
		rightWidth = 20
	}
	// Panel borders take two lines
	inner := height - 2
	if inner < 3 {
		inner = 3
	}

	projectPanel, taskPanel := styles.PanelFocused, styles.Panel
	if m.pane == PaneTasks {
		projectPanel, taskPanel = styles.Panel, styles.PanelFocused
	}

	left := projectPanel.Width(leftWidth).Height(inner).Render(m.renderProjects(leftWidth, inner))
	right := taskPanel.Width(rightWidth).Height(inner).Render(m.renderTasks(rightWidth, inner))

	content := lipgloss.JoinHorizontal(lipgloss.Top, left, right)
	if m.purpose != inputNone {
		content += "\n" + styles.InputFocused.Width(m.width-4).Render(m.input.View())
	}
	return content
}

func (m RootModel) renderProjects(width, height int) string {
	styles := theme.Current.Styles
	t := theme.Current.Theme

	lines := []string{styles.PanelTitle.Render(PaneProjects.String())}
	if len(m.state.Projects) == 0 {
		lines = append(lines, styles.Label.Render("No projects yet. Press a to add one."))
		return strings.Join(lines, "\n")
	}

	stats := provider.ComputeStats(m.state, m.now())
	for i, p := range visible(m.state.Projects, m.projectIdx, height-1) {
		idx := i + offset(m.projectIdx, len(m.state.Projects), height-1)
		color := t.ProjectActive
		switch p.Status {
		case model.ProjectOnHold:
			color = t.ProjectOnHold
		case model.ProjectCompleted:
			color = t.StatusCompleted
		}
		marker := lipgloss.NewStyle().Foreground(color).Render("●")

		progress := ""
		if idx < len(stats.PerProject) && stats.PerProject[idx].Tasks > 0 {
			ps := stats.PerProject[idx]
			progress = fmt.Sprintf(" %d/%d", ps.Completed, ps.Tasks)
		}

		row := styles.Row
		if idx == m.projectIdx {
			row = styles.RowSelected
		}
		lines = append(lines, row.Width(width).Render(marker+" "+truncate(p.Name, width-10)+progress))
	}
	return strings.Join(lines, "\n")
}

func (m RootModel) renderTasks(width, height int) string {
	styles := theme.Current.Styles
	t := theme.Current.Theme

	title := PaneTasks.String()
	if p, ok := m.selectedProject(); ok {
		title = fmt.Sprintf("%s · %s", title, p.Name)
	}
	lines := []string{styles.PanelTitle.Render(title)}

	tasks := m.projectTasks()
	if len(tasks) == 0 {
		lines = append(lines, styles.Label.Render("No tasks. Press tab then a to add one."))
		return strings.Join(lines, "\n")
	}

	now := m.now()
	start := offset(m.taskIdx, len(tasks), height-1)
	for i, task := range visible(tasks, m.taskIdx, height-1) {
		idx := i + start

		var statusColor lipgloss.Color
		switch task.Status {
		case model.TaskInProgress:
			statusColor = t.StatusInProgress
		case model.TaskCompleted:
			statusColor = t.StatusCompleted
		default:
			statusColor = t.StatusPending
		}
		status := lipgloss.NewStyle().Foreground(statusColor).Render(statusIcon(task.Status))

		var priorityColor lipgloss.Color
		switch task.Priority {
		case model.PriorityHigh:
			priorityColor = t.PriorityHigh
		case model.PriorityLow:
			priorityColor = t.PriorityLow
		default:
			priorityColor = t.PriorityMedium
		}
		priority := styles.Priority.Foreground(priorityColor).Render(priorityIcon(task.Priority))

		var extra []string
		if task.AssignedTo != nil {
			extra = append(extra, "@"+m.displayName(*task.AssignedTo))
		}
		if task.DueDate != nil {
			extra = append(extra, styles.DueDate.Render(task.DueDate.Local().Format("Jan 2")))
		}

		row := styles.Row
		switch {
		case idx == m.taskIdx && m.pane == PaneTasks:
			row = styles.RowSelected
		case task.Status == model.TaskCompleted:
			row = styles.RowDone
		case task.IsOverdue(now):
			row = styles.RowOverdue
		}

		text := status + " " + priority + " " + truncate(task.Title, width-24)
		if len(extra) > 0 {
			text += "  " + strings.Join(extra, " ")
		}
		lines = append(lines, row.Width(width).Render(text))
	}
	return strings.Join(lines, "\n")
}

func statusIcon(s model.TaskStatus) string {
	switch s {
	case model.TaskInProgress:
		return "◐"
	case model.TaskCompleted:
		return "●"
	default:
		return "○"
	}
}

func priorityIcon(p model.Priority) string {
	switch p {
	case model.PriorityHigh:
		return "!!"
	case model.PriorityLow:
		return "· "
	default:
		return "! "
	}
}

// offset is the first index shown so that selected stays within a window of size rows
func offset(selected, total, size int) int {
	if size <= 0 || total <= size || selected < size {
		return 0
	}
	start := selected - size + 1
	if start > total-size {
		start = total - size
	}
	return start
}

func visible[T any](items []T, selected, size int) []T {
	start := offset(selected, len(items), size)
	end := start + size
	if size <= 0 || end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func truncate(s string, n int) string {
	if n <= 1 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// renderFooter renders the footer/status bar
func (m RootModel) renderFooter() string {
	styles := theme.Current.Styles

	key := func(k, desc string) string {
		return styles.HelpKey.Render(k) + styles.HelpDesc.Render(" "+desc)
	}
	sep := styles.HelpSeparator.Render(" │ ")

	var statusLine string
	switch {
	case m.errorMsg != "":
		statusLine = styles.StatusError.Render(m.errorMsg)
	case m.state.Error != "":
		statusLine = styles.StatusError.Render(m.state.Error)
	case m.statusMsg != "":
		statusLine = styles.StatusInfo.Render(m.statusMsg)
	}

	var hints string
	switch {
	case m.session == nil:
		hints = key("tab", "next field") + sep + key("enter", "log in") + sep + key("esc", "quit")
	case m.purpose != inputNone:
		hints = key("enter", "confirm") + sep + key("esc", "cancel")
	default:
		hints = m.help.View(m.keys)
	}

	if statusLine == "" {
		return hints
	}
	return statusLine + "\n" + hints
}

// renderHelp renders the help overlay
func (m RootModel) renderHelp() string {
	t := theme.Current.Theme

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(t.Primary).
		MarginBottom(1)

	sectionStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(t.Secondary).
		MarginTop(1)

	keyStyle := lipgloss.NewStyle().
		Foreground(t.Foreground).
		Bold(true).
		Width(12)

	descStyle := lipgloss.NewStyle().
		Foreground(t.Subtle)

	var b strings.Builder
	b.WriteString(titleStyle.Render("Tandem Help"))
	b.WriteString("\n")

	sections := []struct {
		title string
		keys  [][]string
	}{
		{"Navigation", [][]string{
			{"↑/k ↓/j", "Move up/down"},
			{"tab", "Switch between projects and tasks"},
		}},
		{"Projects", [][]string{
			{"a", "Add project"},
			{"h", "Cycle active, on hold, completed"},
			{"d", "Delete project and its tasks"},
		}},
		{"Tasks", [][]string{
			{"a", "Add task to the selected project"},
			{"s", "Start a pending task"},
			{"c", "Complete a task in progress"},
			{"o", "Assign to a user"},
			{"d", "Delete task"},
		}},
		{"Session", [][]string{
			{"r", "Refetch from the remote store"},
			{"esc", "Dismiss the error"},
			{"L", "Log out"},
			{"ctrl+t", "Cycle theme"},
			{"q / ctrl+c", "Quit"},
		}},
	}
	for _, s := range sections {
		b.WriteString(sectionStyle.Render(s.title))
		b.WriteString("\n")
		for _, kv := range s.keys {
			b.WriteString(keyStyle.Render(kv[0]))
			b.WriteString(descStyle.Render(kv[1]))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(descStyle.Render("Press ? or esc to close"))
	return b.String()
}

// cycleTheme cycles through available themes
func (m *RootModel) cycleTheme() {
	themes := theme.Available()
	current := theme.Current.Theme.Name

	for i, t := range themes {
		if t.Name == current {
			next := themes[(i+1)%len(themes)]
			theme.SetTheme(next)
			m.statusMsg = fmt.Sprintf("Theme: %s", next.Name)
			return
		}
	}
}
