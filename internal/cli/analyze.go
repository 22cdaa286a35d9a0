package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/stackfuse/pkg/analyzer"
	"github.com/matzehuels/stackfuse/pkg/manifest"
	"github.com/matzehuels/stackfuse/pkg/pipeline"
)

// analyzeCommand creates the analyze command for inspecting one repository.
func (c *CLI) analyzeCommand() *cobra.Command {
	var (
		maxDepth     int
		cacheLoc     string
		showDev      bool
		showManifest bool
	)

	cmd := &cobra.Command{
		Use:   "analyze [id=]path",
		Short: "Analyze one repository's dependency manifests",
		Long: `Analyze walks a repository, parses every recognized dependency manifest
(requirements files, pyproject.toml, Pipfile, package.json, Cargo.toml) and
prints the deduplicated dependency set. When one package appears in several
manifests, the most specific version constraint wins.`,
		Args: cobra.ExactArgs(1),
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
			opts := pipeline.Options{Repos: repos, MaxDepth: maxDepth, Logger: logger}
			if err := opts.ValidateAndSetDefaults(); err != nil {
				return err
			}
			g, cached, err := runner.AnalyzeRepo(cmd.Context(), opts.Repos[0], opts)
			if err != nil {
				return err
			}
			prog.done(fmt.Sprintf("Analyzed %s", g.RepoID))

			printRepoSummary(g, cached, showManifest)
			printDepsTable("Dependencies", g.Dependencies)
			if showDev && len(g.DevDependencies) > 0 {
				printNewline()
				printDepsTable("Dev dependencies", g.DevDependencies)
			}
			printGraphFindings(g)
			return nil
		},
	}

	cmd.Flags().IntVar(&maxDepth, "max-depth", analyzer.DefaultMaxDepth, "maximum manifest search depth")
	cmd.Flags().StringVar(&cacheLoc, "cache", "", `analysis cache: "" for the default file cache, "none" to disable, or a redis:// URL`)
	cmd.Flags().BoolVar(&showDev, "dev", false, "also list dev/test dependencies")
	cmd.Flags().BoolVar(&showManifest, "manifests", false, "list the manifest files found")
	return cmd
}

func printRepoSummary(g *analyzer.Graph, cached, showManifests bool) {
	printNewline()
	fmt.Println(StyleTitle.Render(g.RepoID))
	if g.PrimaryLanguage != "" {
		printKeyValue("language", g.PrimaryLanguage)
	}
	if g.Runtime != "" {
		printKeyValue("runtime", g.Runtime)
	}
	printStats(len(g.Dependencies)+len(g.DevDependencies), len(g.ManifestFiles), cached)
	if showManifests {
		for _, f := range g.ManifestFiles {
			printFile(f)
		}
	}
	printNewline()
}

func printDepsTable(title string, deps []manifest.Dependency) {
	if len(deps) == 0 {
		printInfo("%s: none", title)
		return
	}

	rows := make([][]string, len(deps))
	for i, d := range deps {
		spec := d.Spec
		if spec == "" {
			spec = "*"
		}
		rows[i] = []string{d.Name, spec, strings.Join(d.Extras, ","), d.SourceFile}
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Package", "Constraint", "Extras", "Source").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			if col == 0 {
				return StyleValue
			}
			return StyleDim
		})

	fmt.Println(StyleTitle.Render(title))
	fmt.Println(t.Render())
}

func printGraphFindings(g *analyzer.Graph) {
	for _, info := range g.InternalConflicts {
		printWarning("internal conflict: %s", info.String())
	}
	for _, w := range g.Warnings {
		if w.Line > 0 {
			printDetail("%s:%d: %s", w.File, w.Line, w.Message)
		} else if w.File != "" {
			printDetail("%s: %s", w.File, w.Message)
		} else {
			printDetail("%s", w.Message)
		}
	}
}
