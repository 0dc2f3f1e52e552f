package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/postcard/pkg/integrations/coze"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// styleDescriptions are shown next to each style in the picker.
var styleDescriptions = map[coze.Style]string{
	coze.StyleMood:      "温柔的心情短句",
	coze.StyleSarcastic: "毒舌吐槽",
	coze.StylePoetry:    "一句话变成诗（文字输入）",
	coze.StyleStory:     "小故事（文字输入）",
}

// =============================================================================
// StylePickerModel - Interactive caption style selection
// =============================================================================

// StyleOption is one row of the picker.
type StyleOption struct {
	Style      coze.Style
	Configured bool // a workflow ID exists for the style
	TextInput  bool
}

// StylePickerModel is the bubbletea model for interactive style selection.
// Unconfigured styles are listed but cannot be selected.
type StylePickerModel struct {
	Options  []StyleOption
	Cursor   int
	Selected *coze.Style
}

// NewStylePickerModel lists every style, marking those in configured.
// Text-input styles are hidden when photoOnly is set.
func NewStylePickerModel(configured []string, photoOnly bool) StylePickerModel {
	have := make(map[string]bool, len(configured))
	for _, s := range configured {
		have[s] = true
	}
	var m StylePickerModel
	for _, name := range coze.Styles() {
		style := coze.Style(name)
		if photoOnly && style.TextInput() {
			continue
		}
		m.Options = append(m.Options, StyleOption{
			Style:      style,
			Configured: have[name],
			TextInput:  style.TextInput(),
		})
	}
	return m
}

func (m StylePickerModel) Init() tea.Cmd {
	return nil
}

func (m StylePickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
			}
		case "down", "j":
			if m.Cursor < len(m.Options)-1 {
				m.Cursor++
			}
		case "enter":
			if len(m.Options) == 0 || !m.Options[m.Cursor].Configured {
				return m, nil
			}
			style := m.Options[m.Cursor].Style
			m.Selected = &style
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m StylePickerModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Caption Style"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ select  q quit"))
	b.WriteString("\n\n")

	rows := make([][]string, 0, len(m.Options))
	for i, opt := range m.Options {
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		input := "photo"
		if opt.TextInput {
			input = "text"
		}
		status := "✓"
		if !opt.Configured {
			status = "—"
		}
		rows = append(rows, []string{cursor, string(opt.Style), input, status, styleDescriptions[opt.Style]})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Style", "Input", "Ready", "Description").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			if row < 0 || row >= len(m.Options) {
				return lipgloss.NewStyle()
			}
			opt := m.Options[row]
			switch {
			case !opt.Configured:
				return listDimStyle
			case row == m.Cursor:
				return listSelectedStyle
			case col == 4:
				return lipgloss.NewStyle().Foreground(colorGray)
			default:
				return lipgloss.NewStyle().Foreground(colorGreen)
			}
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	if len(m.Options) > 0 {
		b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Options))))
	}
	b.WriteString("\n")
	return b.String()
}

// pickStyle runs the picker and returns the chosen style, or "" when the
// user quits.
func pickStyle(configured []string, photoOnly bool) (coze.Style, error) {
	model := NewStylePickerModel(configured, photoOnly)
	final, err := tea.NewProgram(model).Run()
	if err != nil {
		return "", fmt.Errorf("style picker: %w", err)
	}
	if m, ok := final.(StylePickerModel); ok && m.Selected != nil {
		return *m.Selected, nil
	}
	return "", nil
}
