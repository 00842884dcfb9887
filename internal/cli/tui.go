package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/gadgethost/pkg/feature"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// FeatureBrowserModel - Interactive registry browser
// =============================================================================

// FeatureBrowserModel is the bubbletea model for browsing the registry. The
// selected feature's resolved load order is shown below the list.
type FeatureBrowserModel struct {
	Registry *feature.Registry
	Features []*feature.Descriptor
	Cursor   int
	Height   int
	Offset   int
	Filter   string
	Editing  bool
}

// NewFeatureBrowserModel creates a browser over reg.
func NewFeatureBrowserModel(reg *feature.Registry) FeatureBrowserModel {
	return FeatureBrowserModel{
		Registry: reg,
		Features: reg.Descriptors(),
		Height:   15,
	}
}

func (m FeatureBrowserModel) Init() tea.Cmd {
	return nil
}

func (m FeatureBrowserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.Editing {
			return m.updateFilter(msg), nil
		}
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "/":
			m.Editing = true
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.visible())-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 12
		if m.Height < 5 {
			m.Height = 5
		}
	}
	return m, nil
}

func (m FeatureBrowserModel) updateFilter(msg tea.KeyMsg) FeatureBrowserModel {
	switch msg.Type {
	case tea.KeyEnter, tea.KeyEsc:
		m.Editing = false
	case tea.KeyBackspace:
		if len(m.Filter) > 0 {
			m.Filter = m.Filter[:len(m.Filter)-1]
		}
	case tea.KeyRunes:
		m.Filter += string(msg.Runes)
	}
	m.Cursor, m.Offset = 0, 0
	return m
}

// visible returns the features matching the filter.
func (m FeatureBrowserModel) visible() []*feature.Descriptor {
	if m.Filter == "" {
		return m.Features
	}
	needle := strings.ToLower(m.Filter)
	var out []*feature.Descriptor
	for _, d := range m.Features {
		if strings.Contains(strings.ToLower(d.Name), needle) {
			out = append(out, d)
		}
	}
	return out
}

// Selected returns the feature under the cursor.
func (m FeatureBrowserModel) Selected() (*feature.Descriptor, bool) {
	vis := m.visible()
	if m.Cursor < 0 || m.Cursor >= len(vis) {
		return nil, false
	}
	return vis[m.Cursor], true
}

func (m FeatureBrowserModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Feature Registry"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  / filter  q quit"))
	b.WriteString("\n")
	if m.Filter != "" || m.Editing {
		b.WriteString(StyleHighlight.Render("filter: " + m.Filter))
		if m.Editing {
			b.WriteString(listDimStyle.Render("▏"))
		}
	}
	b.WriteString("\n\n")

	vis := m.visible()
	end := min(m.Offset+m.Height, len(vis))
	for i := m.Offset; i < end; i++ {
		d := vis[i]
		cursor := "  "
		style := listNormalStyle
		if i == m.Cursor {
			cursor = "▸ "
			style = listSelectedStyle
		}
		line := fmt.Sprintf("%s%-28s", cursor, d.Name)
		if d.IsCore() {
			line += " " + styleCore.Render("core")
		}
		b.WriteString(style.Render(line))
		b.WriteString("\n")
	}
	if len(vis) == 0 {
		b.WriteString(listDimStyle.Render("  no matching features"))
		b.WriteString("\n")
	}

	if d, ok := m.Selected(); ok {
		order := m.Registry.SortFeatures(m.Registry.Resolve([]string{d.Name}).Found)
		b.WriteString("\n")
		b.WriteString(listDimStyle.Render(strings.Repeat("─", 40)))
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("%s %s\n", StyleDim.Render("scripts:"),
			StyleValue.Render(fmt.Sprintf("%d gadget, %d container", len(d.GadgetScripts), len(d.ContainerScripts)))))
		b.WriteString(fmt.Sprintf("%s %s\n", StyleDim.Render("load order:"), StyleValue.Render(strings.Join(order, " → "))))
	}

	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", min(m.Cursor+1, len(vis)), len(vis))))
	return b.String()
}
