package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"punchlist/internal/tasklist"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	accountStyle = lipgloss.NewStyle().Faint(true)
	cursorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	doneStyle    = lipgloss.NewStyle().Faint(true).Strikethrough(true)
	savingStyle  = lipgloss.NewStyle().Faint(true).Italic(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	statusStyle  = lipgloss.NewStyle().Faint(true)
	helpStyle    = lipgloss.NewStyle().Faint(true)
)

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("punchlist"))
	if id := m.store.Identity(); id != nil {
		b.WriteString("  " + accountStyle.Render(id.Email))
	}
	b.WriteString("\n\n")

	switch m.mode {
	case modeInit:
		b.WriteString(m.spin.View() + " connecting...\n")
	case modeLogin:
		b.WriteString(m.renderLogin())
	default:
		b.WriteString(m.renderList())
	}

	b.WriteString("\n")
	if m.errText != "" {
		b.WriteString(errorStyle.Render(m.errText) + "\n")
	}
	if m.status != "" {
		b.WriteString(statusStyle.Render(m.status) + "\n")
	}
	b.WriteString(helpStyle.Render(m.renderHelp()))
	return b.String()
}

func (m Model) renderLogin() string {
	var b strings.Builder
	if m.signup {
		b.WriteString("Create an account\n\n")
	} else {
		b.WriteString("Sign in\n\n")
	}
	b.WriteString("  " + m.email.View() + "\n")
	b.WriteString("  " + m.password.View() + "\n")
	return b.String()
}

func (m Model) renderList() string {
	var b strings.Builder

	if m.loading {
		b.WriteString(m.spin.View() + " loading tasks...\n")
		return b.String()
	}

	tasks := m.rec.Tasks()
	if m.rec.LoadFailed() {
		b.WriteString("could not load tasks, press '" + m.keys.Refresh + "' to retry\n")
		return b.String()
	}
	if len(tasks) == 0 {
		b.WriteString("No tasks yet. Press '" + m.keys.Add + "' to add one.\n")
	}

	for i, task := range tasks {
		prefix := "  "
		if i == m.cursor && m.mode == modeList {
			prefix = cursorStyle.Render("> ")
		}

		mark := "[ ]"
		if task.Done {
			mark = "[x]"
		}

		line := fmt.Sprintf("%s %s", mark, task.Title)
		switch {
		case tasklist.IsProvisional(task.ID):
			line = savingStyle.Render(line + "  (saving)")
		case task.Done:
			line = doneStyle.Render(line)
		}
		b.WriteString(prefix + line + "\n")
	}

	if m.mode == modeAdd {
		b.WriteString("\n" + m.input.View() + "\n")
	}
	return b.String()
}

func (m Model) renderHelp() string {
	switch m.mode {
	case modeLogin:
		return "\ntab: switch field • enter: submit • ctrl+s: toggle sign up • ctrl+c: quit"
	case modeAdd:
		return "\nenter: save • esc: cancel"
	default:
		if m.confirmDel {
			return "\ny: delete • n: keep"
		}
		k := m.keys
		return fmt.Sprintf(
			"\n%s/%s: move • %s: toggle • %s: add • %s: delete • %s: reload • %s: sign out • %s: quit",
			k.Up, k.Down, printableKey(k.Toggle), k.Add, k.Delete, k.Refresh, k.SignOut, k.Quit,
		)
	}
}

func printableKey(k string) string {
	if k == " " {
		return "space"
	}
	return k
}
