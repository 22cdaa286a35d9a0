package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/stackfuse/pkg/analyzer"
	"github.com/matzehuels/stackfuse/pkg/compat"
	"github.com/matzehuels/stackfuse/pkg/pipeline"
)

// compatCommand creates the compat command for the pairwise matrix.
func (c *CLI) compatCommand() *cobra.Command {
	var (
		maxDepth int
		cacheLoc string
	)

	cmd := &cobra.Command{
		Use:   "compat [id=]path [id=]path...",
		Short: "Check pairwise compatibility between repositories",
		Long: `Compat analyzes each repository and evaluates every pair: declared runtime
ranges must overlap and shared dependencies must not conflict. A differing
primary language is reported as a warning but does not fail the pair.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())

			repos, err := repoInputs(args)
			if err != nil {
				return err
			}
			runner, err := c.newRunner(cacheLoc)
			if err != nil {
				return err
			}

			result, err := runner.Execute(cmd.Context(), pipeline.Options{
				Repos:     repos,
				MaxDepth:  maxDepth,
				SkipSolve: true,
				Logger:    logger,
			})
			if err != nil {
				return err
			}

			printCompatMatrix(result.Compat)
			return nil
		},
	}

	cmd.Flags().IntVar(&maxDepth, "max-depth", analyzer.DefaultMaxDepth, "maximum manifest search depth")
	cmd.Flags().StringVar(&cacheLoc, "cache", "", `analysis cache: "" for the default file cache, "none" to disable, or a redis:// URL`)
	return cmd
}

func printCompatMatrix(m *compat.Matrix) {
	rows := make([][]string, len(m.Pairs))
	for i, pair := range m.Pairs {
		verdict := iconSuccess
		if !pair.Compatible {
			verdict = iconError
		}
		rows[i] = []string{
			pair.RepoA,
			pair.RepoB,
			verdict,
			fmt.Sprintf("%d", len(pair.SharedDeps)),
			strings.Join(pair.Reasons, "; "),
		}
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Repo A", "Repo B", "OK", "Shared", "Reasons").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			if col == 2 {
				if row < len(m.Pairs) && !m.Pairs[row].Compatible {
					return StyleError
				}
				return StyleSuccess
			}
			return StyleValue
		})

	fmt.Println(StyleTitle.Render("Compatibility"))
	fmt.Println(t.Render())

	for _, w := range m.Warnings {
		printWarning("%s", w)
	}
	if m.OverallCompatible {
		printSuccess("All repositories are pairwise compatible")
	} else {
		printError("Some repository pairs are incompatible")
	}
}
