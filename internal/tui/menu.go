package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// MenuAction identifies what the user picked from the main menu.
type MenuAction int

const (
	// ActionNone means the menu was dismissed without a choice.
	ActionNone MenuAction = iota
	// ActionRunTool launches the tool named in the item.
	ActionRunTool
	// ActionUpdate refreshes every managed binary.
	ActionUpdate
	// ActionSettings shows the active configuration.
	ActionSettings
	// ActionQuit leaves the menu loop.
	ActionQuit
)

// MenuItem is one selectable row in the main menu.
type MenuItem struct {
	Label  string
	Detail string
	Badge  string
	Action MenuAction
	Tool   string
}

// MenuModel is a bubbletea model for the main menu. The program quits as
// soon as a choice is made; the caller reads Choice and acts after the
// terminal has been released, so interactive tools get a clean tty.
type MenuModel struct {
	title  string
	items  []MenuItem
	cursor int
	chosen bool
	quit   bool
}

// NewMenu builds a menu with the cursor on the first row.
func NewMenu(title string, items []MenuItem) MenuModel {
	return MenuModel{title: title, items: items}
}

// Init satisfies the tea.Model interface.
func (m MenuModel) Init() tea.Cmd {
	return nil
}

// Update satisfies the tea.Model interface.
func (m MenuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case "enter":
		if len(m.items) == 0 {
			return m, nil
		}
		m.chosen = true
		return m, tea.Quit
	case "q", "esc", "ctrl+c":
		m.quit = true
		return m, tea.Quit
	}
	return m, nil
}

// View satisfies the tea.Model interface.
func (m MenuModel) View() string {
	if m.chosen || m.quit {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(m.title))
	b.WriteString("\n\n")

	for i, item := range m.items {
		line := item.Label
		if item.Detail != "" {
			line = fmt.Sprintf("%s — %s", item.Label, item.Detail)
		}
		if i == m.cursor {
			line = SelectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		if item.Badge != "" {
			line += " " + BadgeStyle.Render("["+item.Badge+"]")
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	b.WriteString("\n")
	b.WriteString(HelpStyle.Render("up/down move · enter select · q quit"))
	b.WriteString("\n")
	return b.String()
}

// Choice returns the selected item. The boolean is false when the menu
// was dismissed instead.
func (m MenuModel) Choice() (MenuItem, bool) {
	if !m.chosen || m.cursor >= len(m.items) {
		return MenuItem{}, false
	}
	return m.items[m.cursor], true
}

// RunMenu displays the menu on the alternate screen and returns the choice
// once the program has fully released the terminal.
func RunMenu(model MenuModel) (MenuItem, bool, error) {
	p := tea.NewProgram(model, tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return MenuItem{}, false, fmt.Errorf("run menu: %w", err)
	}
	menu, ok := final.(MenuModel)
	if !ok {
		return MenuItem{}, false, nil
	}
	item, chosen := menu.Choice()
	return item, chosen, nil
}
