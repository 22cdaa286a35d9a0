package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stackfuse/pkg/analyzer"
	"github.com/matzehuels/stackfuse/pkg/conflict"
	"github.com/matzehuels/stackfuse/pkg/pipeline"
)

// conflictsCommand creates the conflicts command for cross-repository
// conflict detection.
func (c *CLI) conflictsCommand() *cobra.Command {
	var (
		maxDepth int
		cacheLoc string
	)

	cmd := &cobra.Command{
		Use:   "conflicts [id=]path [id=]path...",
		Short: "Detect version conflicts across repositories",
		Long: `Conflicts analyzes each repository and reports packages whose version
constraints differ between them. Overlapping constraints are advisory;
constraints that cannot be satisfied together are blocking.`,
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

			prog := newProgress(logger)
			result, err := runner.Execute(cmd.Context(), pipeline.Options{
				Repos:     repos,
				MaxDepth:  maxDepth,
				SkipSolve: true,
				Logger:    logger,
			})
			if err != nil {
				return err
			}
			prog.done(fmt.Sprintf("Compared %d repositories", len(repos)))

			printConflictReport(result.Conflicts)
			if result.Conflicts.HasBlocking() {
				printError("%d blocking conflict(s); a unified resolution will fail unless specificity settles them", len(result.Conflicts.Blocking()))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&maxDepth, "max-depth", analyzer.DefaultMaxDepth, "maximum manifest search depth")
	cmd.Flags().StringVar(&cacheLoc, "cache", "", `analysis cache: "" for the default file cache, "none" to disable, or a redis:// URL`)
	return cmd
}

func printConflictReport(report *conflict.Report) {
	if len(report.Conflicts) == 0 {
		printSuccess("No version conflicts")
		return
	}

	for _, info := range report.Conflicts {
		line := fmt.Sprintf("%s: %s across %s", info.Kind, info.Package, strings.Join(info.Repos, ", "))
		if info.Blocking {
			printError("%s", line)
		} else {
			printWarning("%s", line)
		}
		for i, repo := range info.Repos {
			spec := "*"
			if i < len(info.Specs) && info.Specs[i] != "" {
				spec = info.Specs[i]
			}
			printDetail("%s wants %s", repo, spec)
		}
	}
	for _, w := range report.Warnings {
		printDetail("%s", w)
	}
}
