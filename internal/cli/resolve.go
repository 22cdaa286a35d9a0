package cli

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/stackfuse/pkg/analyzer"
	"github.com/matzehuels/stackfuse/pkg/errors"
	"github.com/matzehuels/stackfuse/pkg/pipeline"
	"github.com/matzehuels/stackfuse/pkg/resolve"
)

// resolveCommand creates the resolve command, the full pipeline run.
func (c *CLI) resolveCommand() *cobra.Command {
	var (
		maxDepth     int
		cacheLoc     string
		output       string
		strict       bool
		pick         bool
		naiveOnly    bool
		uvBin        string
		pipBin       string
		stageTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "resolve [id=]path [id=]path...",
		Short: "Merge repositories into one resolved dependency set",
		Long: `Resolve analyzes every repository, merges their dependencies with the most
specific constraint winning per package, and runs the solver chain: uv
first, pip-compile second, and an in-process naive fallback that anchors
versions to the declared constraints without verifying them.

With --pick, the arguments are directories to scan: each immediate
subdirectory containing a recognized manifest becomes a candidate and an
interactive picker selects which ones participate.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())

			repos, err := repoInputs(args)
			if err != nil {
				return err
			}
			if pick {
				repos, err = pickRepos(repos, maxDepth)
				if err != nil {
					return err
				}
				if len(repos) == 0 {
					printInfo("Nothing selected")
					return nil
				}
			}

			runner, err := c.newRunner(cacheLoc)
			if err != nil {
				return err
			}

			var solvers []resolve.Solver
			if naiveOnly {
				solvers = []resolve.Solver{resolve.NewNaiveSolver()}
			} else if uvBin != "" || pipBin != "" {
				solvers = []resolve.Solver{
					resolve.NewUvSolver(uvBin),
					resolve.NewPipCompileSolver(pipBin),
					resolve.NewNaiveSolver(),
				}
			}

			spinner := newSpinnerWithContext(cmd.Context(), fmt.Sprintf("Resolving %d repositories...", len(repos)))
			spinner.Start()
			result, err := runner.Execute(cmd.Context(), pipeline.Options{
				Repos:        repos,
				MaxDepth:     maxDepth,
				Strict:       strict,
				Solvers:      solvers,
				StageTimeout: stageTimeout,
				Logger:       logger,
			})
			if err != nil {
				spinner.StopWithError(errors.UserMessage(err))
				return err
			}
			spinner.Stop()

			printResolution(result)

			if output != "" && result.Resolution != nil {
				if err := os.WriteFile(output, []byte(result.Resolution.LockfilePreview+"\n"), 0644); err != nil {
					return err
				}
				printFile(output)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&maxDepth, "max-depth", analyzer.DefaultMaxDepth, "maximum manifest search depth")
	cmd.Flags().StringVar(&cacheLoc, "cache", "", `analysis cache: "" for the default file cache, "none" to disable, or a redis:// URL`)
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the resolved lockfile to this path")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when any repository pair is incompatible")
	cmd.Flags().BoolVar(&pick, "pick", false, "interactively pick repositories from the given directories")
	cmd.Flags().BoolVar(&naiveOnly, "naive-only", false, "skip external solvers and use the naive fallback")
	cmd.Flags().StringVar(&uvBin, "uv-bin", "", "uv executable (default looked up on PATH)")
	cmd.Flags().StringVar(&pipBin, "pip-compile-bin", "", "pip-compile executable (default looked up on PATH)")
	cmd.Flags().DurationVar(&stageTimeout, "stage-timeout", resolve.DefaultStageTimeout, "per-solver-stage timeout")
	return cmd
}

// pickRepos expands the given directories into candidate repositories and
// runs the interactive picker.
func pickRepos(dirs []pipeline.RepoInput, maxDepth int) ([]pipeline.RepoInput, error) {
	candidates, err := discoverRepos(dirs, maxDepth)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, errors.New(errors.ErrCodeNotFound, "no repositories with recognized manifests found")
	}

	model := newRepoPickModel(candidates)
	final, err := tea.NewProgram(model).Run()
	if err != nil {
		return nil, err
	}
	picked := final.(repoPickModel)
	if picked.aborted {
		return nil, nil
	}

	var repos []pipeline.RepoInput
	for _, c := range picked.chosen() {
		repos = append(repos, pipeline.RepoInput{ID: c.ID, Root: c.Root})
	}
	return repos, nil
}

func printResolution(result *pipeline.Result) {
	res := result.Resolution
	if res == nil {
		return
	}

	printNewline()
	if res.Success {
		printSuccess("Resolved %d packages with %s", len(res.Packages), res.SolverUsed)
	} else {
		printError("Resolution did not succeed")
	}
	if res.ConflictsResolved > 0 {
		printDetail("%d conflict(s) resolved", res.ConflictsResolved)
	}
	for _, note := range res.Notes {
		printWarning("%s", note)
	}
	for _, w := range result.Compat.Warnings {
		printWarning("%s", w)
	}

	printNewline()
	fmt.Println(StyleTitle.Render("Lockfile"))
	fmt.Println(StyleDim.Render(res.LockfilePreview))
}
