package client

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/alexanderramin/gridboard/internal/domain"
	"github.com/alexanderramin/gridboard/internal/protocol"
)

// viewMode tracks which interaction mode the board is in.
type viewMode int

const (
	modeBoard viewMode = iota // normal browsing
	modeForm                  // huh creation form is active
)

// keyMap declares the board's key bindings; help renders from it.
type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	New     key.Binding
	Undo    key.Binding
	Redo    key.Binding
	Refresh key.Binding
	Quit    key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.New, k.Undo, k.Redo, k.Refresh, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var keys = keyMap{
	Up:      key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k", "up")),
	Down:    key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j", "down")),
	New:     key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new")),
	Undo:    key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "undo")),
	Redo:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "redo")),
	Refresh: key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "refresh")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

type envelopeMsg protocol.Envelope

type disconnectMsg struct{ err error }

// boardModel is the bubbletea Model for the live board view.
type boardModel struct {
	client *Client
	board  *board
	userID string

	mode   viewMode
	form   *huh.Form
	cursor int
	width  int
	status string
	help   help.Model

	// undone transaction ids, newest last; fuel for the redo key.
	redoStack []string

	// form fields
	formName      string
	formContainer string

	quitting bool
}

func newBoardModel(client *Client, gridID string) boardModel {
	return boardModel{
		client: client,
		board:  newBoard(gridID),
		status: "connecting",
		help:   help.New(),
	}
}

func (m boardModel) Init() tea.Cmd {
	return tea.Batch(
		func() tea.Msg {
			if m.board.gridID != "" {
				_ = m.client.Send(protocol.TypeSwitchGrid, protocol.SwitchGrid{GridID: m.board.gridID})
			}
			_ = m.client.Send(protocol.TypeRequestFullState, protocol.RequestFullState{GridID: m.board.gridID})
			return nil
		},
		waitForEnvelope(m.client),
	)
}

func waitForEnvelope(c *Client) tea.Cmd {
	return func() tea.Msg {
		env, ok := <-c.Incoming()
		if !ok {
			return disconnectMsg{err: <-c.errs}
		}
		return envelopeMsg(env)
	}
}

func (m boardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case disconnectMsg:
		m.status = fmt.Sprintf("disconnected: %v", msg.err)
		m.quitting = true
		return m, tea.Quit

	case envelopeMsg:
		return m.handleEnvelope(protocol.Envelope(msg))

	case tea.KeyMsg:
		if m.mode == modeForm {
			return m.updateForm(msg)
		}
		return m.handleKey(msg)
	}

	if m.mode == modeForm && m.form != nil {
		form, cmd := m.form.Update(msg)
		if f, ok := form.(*huh.Form); ok {
			m.form = f
		}
		return m, cmd
	}
	return m, nil
}

func (m boardModel) handleEnvelope(env protocol.Envelope) (tea.Model, tea.Cmd) {
	switch env.Type {
	case protocol.TypeServerError:
		var serr protocol.ServerError
		if env.Decode(&serr) == nil {
			m.status = "error: " + serr.Message
		}
	case protocol.TypeUndoResult:
		var res protocol.UndoResult
		if env.Decode(&res) == nil {
			if res.Success {
				m.redoStack = append(m.redoStack, res.TransactionID)
				m.status = "undone"
			} else {
				m.status = "undo refused: " + res.Error
			}
			// Positions changed underneath us; re-sync the board.
			_ = m.client.Send(protocol.TypeRequestFullState, protocol.RequestFullState{GridID: m.board.gridID})
		}
	case protocol.TypeRedoResult:
		var res protocol.UndoResult
		if env.Decode(&res) == nil {
			if res.Success {
				m.board.remember(res.TransactionID)
				m.status = "redone"
			} else {
				m.status = "redo refused: " + res.Error
			}
			_ = m.client.Send(protocol.TypeRequestFullState, protocol.RequestFullState{GridID: m.board.gridID})
		}
	case protocol.TypeTransactionUndone, protocol.TypeTransactionRedone:
		m.status = "history changed elsewhere"
		_ = m.client.Send(protocol.TypeRequestFullState, protocol.RequestFullState{GridID: m.board.gridID})
	default:
		m.board.apply(env)
		if env.Type == protocol.TypeFullState {
			m.status = fmt.Sprintf("synced %s", time.Now().Format("15:04:05"))
		}
	}
	return m, waitForEnvelope(m.client)
}

func (m boardModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, keys.Down):
		if m.cursor < len(m.board.sortedContainers())-1 {
			m.cursor++
		}
	case key.Matches(msg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, keys.Refresh):
		_ = m.client.Send(protocol.TypeRequestFullState, protocol.RequestFullState{GridID: m.board.gridID})
		m.status = "refreshing"

	case key.Matches(msg, keys.Undo):
		if txID := m.board.lastTx(); txID != "" {
			_ = m.client.Send(protocol.TypeUndoTransaction, protocol.UndoTransaction{
				TransactionID: txID, GridID: m.board.gridID,
			})
		} else {
			m.status = "nothing to undo"
		}

	case key.Matches(msg, keys.Redo):
		if n := len(m.redoStack); n > 0 {
			txID := m.redoStack[n-1]
			m.redoStack = m.redoStack[:n-1]
			_ = m.client.Send(protocol.TypeRedoTransaction, protocol.RedoTransaction{
				TransactionID: txID, GridID: m.board.gridID,
			})
		} else {
			m.status = "nothing to redo"
		}

	case key.Matches(msg, keys.New):
		return m.openCreateForm()
	}
	return m, nil
}

// openCreateForm switches to a huh form collecting a new instance's name
// and destination container.
func (m boardModel) openCreateForm() (tea.Model, tea.Cmd) {
	containers := m.board.sortedContainers()
	if len(containers) == 0 {
		m.status = "no containers to add to"
		return m, nil
	}
	options := make([]huh.Option[string], 0, len(containers))
	for _, c := range containers {
		options = append(options, huh.NewOption(c.Name, c.ID))
	}

	m.formName = ""
	m.formContainer = containers[0].ID
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Name").Value(&m.formName),
			huh.NewSelect[string]().Title("Container").Options(options...).Value(&m.formContainer),
		),
	)
	m.mode = modeForm
	return m, m.form.Init()
}

func (m boardModel) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "esc" {
		m.mode = modeBoard
		m.form = nil
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}
	if m.form.State == huh.StateCompleted {
		m.mode = modeBoard
		m.form = nil
		return m, m.submitCreate()
	}
	return m, cmd
}

// submitCreate sends the two messages a new item needs: the instance
// entity, then its occurrence in the chosen container.
func (m boardModel) submitCreate() tea.Cmd {
	name, containerID := m.formName, m.formContainer
	gridID := m.board.gridID
	client := m.client
	return func() tea.Msg {
		now := time.Now().UTC()
		in := &domain.Instance{
			ID:        uuid.New().String(),
			GridID:    gridID,
			Name:      name,
			CreatedAt: now,
			UpdatedAt: now,
		}
		data, err := json.Marshal(in)
		if err != nil {
			return nil
		}
		_ = client.Send("create_instance", protocol.EntityPayload{EntityID: in.ID, GridID: gridID, Data: data})
		_ = client.Send(protocol.TypeCreateOccurrence, protocol.CreateOccurrence{
			TargetType: string(domain.KindInstance),
			TargetID:   in.ID,
			Parent:     domain.ParentRef{Kind: domain.KindContainer, ID: containerID},
			Iteration:  domain.Iteration{Mode: domain.IterPersistent},
		})
		return nil
	}
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	colStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1).
			Width(28)
	colTitleStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	selectedStyle  = lipgloss.NewStyle().Reverse(true)
	statusStyle    = lipgloss.NewStyle().Faint(true).Padding(0, 1)
	helpStyle      = lipgloss.NewStyle().Faint(true).Padding(0, 1)
	checkedStyle   = lipgloss.NewStyle().Strikethrough(true).Faint(true)
	emptyColumnMsg = lipgloss.NewStyle().Faint(true).Italic(true).Render("empty")
)

func (m boardModel) View() string {
	if m.quitting {
		return m.status + "\n"
	}
	if m.mode == modeForm && m.form != nil {
		return m.form.View()
	}

	title := "gridboard"
	if m.board.grid != nil {
		title = m.board.grid.Name
	}

	containers := m.board.sortedContainers()
	cols := make([]string, 0, len(containers))
	for i, c := range containers {
		header := colTitleStyle.Render(c.Name)
		if i == m.cursor {
			header = selectedStyle.Render(c.Name)
		}
		body := header + "\n"
		items := m.board.itemsIn(c)
		if len(items) == 0 {
			body += emptyColumnMsg
		}
		for _, in := range items {
			line := "• " + in.Name
			if done := doneValue(m.board, c, in); done {
				line = checkedStyle.Render(line)
			}
			body += line + "\n"
		}
		cols = append(cols, colStyle.Render(body))
	}

	view := titleStyle.Render(title) + "\n"
	view += lipgloss.JoinHorizontal(lipgloss.Top, cols...) + "\n"
	view += statusStyle.Render(m.status) + "\n"
	view += helpStyle.Render(m.help.View(keys))
	return view
}

// doneValue reports whether any occurrence of the instance in this
// container carries a boolean-true field, the visual "done" mark.
func doneValue(b *board, c *domain.Container, in *domain.Instance) bool {
	for _, id := range b.lists[c.Ref()] {
		o, ok := b.occurrences[id]
		if !ok || o.TargetID != in.ID {
			continue
		}
		for _, v := range o.Fields {
			if v.Bool() {
				return true
			}
		}
	}
	return false
}
