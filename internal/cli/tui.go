package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/stackfuse/pkg/analyzer"
	"github.com/matzehuels/stackfuse/pkg/pipeline"
)

// List styles.
var (
	listDimStyle = lipgloss.NewStyle().Foreground(colorDim)
)

// repoCandidate is one selectable repository in the picker.
type repoCandidate struct {
	ID        string
	Root      string
	Manifests []string
}

// discoverRepos scans each directory for immediate subdirectories that
// contain recognized manifests. A directory that itself holds manifests
// also counts as a candidate.
func discoverRepos(dirs []pipeline.RepoInput, maxDepth int) ([]repoCandidate, error) {
	var candidates []repoCandidate
	seen := make(map[string]bool)

	add := func(id, root string) error {
		if seen[root] {
			return nil
		}
		manifests, err := analyzer.FindManifests(root, maxDepth)
		if err != nil || len(manifests) == 0 {
			return nil
		}
		seen[root] = true
		candidates = append(candidates, repoCandidate{ID: id, Root: root, Manifests: manifests})
		return nil
	}

	for _, dir := range dirs {
		if err := add(dir.ID, dir.Root); err != nil {
			return nil, err
		}
		entries, err := os.ReadDir(dir.Root)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			if err := add(entry.Name(), filepath.Join(dir.Root, entry.Name())); err != nil {
				return nil, err
			}
		}
	}
	return candidates, nil
}

// repoPickModel is the bubbletea model for multi-selecting repositories.
type repoPickModel struct {
	repos    []repoCandidate
	selected map[int]bool
	cursor   int
	height   int
	offset   int
	aborted  bool
	done     bool
}

func newRepoPickModel(repos []repoCandidate) repoPickModel {
	return repoPickModel{
		repos:    repos,
		selected: make(map[int]bool),
		height:   15,
	}
}

// chosen returns the selected candidates in list order.
func (m repoPickModel) chosen() []repoCandidate {
	var out []repoCandidate
	for i, r := range m.repos {
		if m.selected[i] {
			out = append(out, r)
		}
	}
	return out
}

func (m repoPickModel) Init() tea.Cmd {
	return nil
}

func (m repoPickModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.aborted = true
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
				if m.cursor < m.offset {
					m.offset = m.cursor
				}
			}
		case "down", "j":
			if m.cursor < len(m.repos)-1 {
				m.cursor++
				if m.cursor >= m.offset+m.height {
					m.offset = m.cursor - m.height + 1
				}
			}
		case " ":
			m.selected[m.cursor] = !m.selected[m.cursor]
		case "a":
			for i := range m.repos {
				m.selected[i] = true
			}
		case "enter":
			if len(m.chosen()) == 0 {
				// Enter on an empty selection picks the cursor line.
				m.selected[m.cursor] = true
			}
			m.done = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.height = msg.Height - 6
		if m.height < 5 {
			m.height = 5
		}
	}
	return m, nil
}

func (m repoPickModel) View() string {
	if m.done || m.aborted {
		return ""
	}

	var b strings.Builder
	b.WriteString(StyleTitle.Render("Select Repositories"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  space toggle  a all  ⏎ confirm  q quit"))
	b.WriteString("\n\n")

	end := m.offset + m.height
	if end > len(m.repos) {
		end = len(m.repos)
	}

	rows := [][]string{}
	for i := m.offset; i < end; i++ {
		r := m.repos[i]

		cursor := "  "
		if i == m.cursor {
			cursor = "▸ "
		}
		mark := " "
		if m.selected[i] {
			mark = iconSuccess
		}

		rows = append(rows, []string{cursor, mark, r.ID, fmt.Sprintf("%d", len(r.Manifests)), r.Root})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "", "Repository", "Manifests", "Path").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			actualIdx := m.offset + row
			if actualIdx >= len(m.repos) {
				return lipgloss.NewStyle()
			}
			switch {
			case actualIdx == m.cursor:
				return lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
			case m.selected[actualIdx]:
				return lipgloss.NewStyle().Foreground(colorGreen)
			default:
				return lipgloss.NewStyle().Foreground(colorWhite)
			}
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d] %d selected", m.cursor+1, len(m.repos), len(m.chosen()))))
	return b.String()
}
