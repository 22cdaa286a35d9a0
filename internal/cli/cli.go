// Package cli implements the stackfuse command-line interface.
//
// This package provides commands for analyzing repository dependency
// manifests, detecting version conflicts across repositories, checking
// pairwise compatibility, and producing one unified resolved dependency
// set. The CLI is built using cobra and supports verbose logging via the
// charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - analyze: Walk one repository and report its deduplicated dependencies
//   - conflicts: Detect version conflicts across several repositories
//   - compat: Build the pairwise compatibility matrix
//   - resolve: Merge all repositories and run the solver chain
//   - serve: Expose the pipeline over HTTP
//   - cache: Manage the analysis cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers are
// passed through context.Context to allow structured progress tracking.
package cli

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/stackfuse/pkg/buildinfo"
	"github.com/matzehuels/stackfuse/pkg/cache"
	"github.com/matzehuels/stackfuse/pkg/errors"
	"github.com/matzehuels/stackfuse/pkg/pipeline"
)

// appName is the application name used for directories and display.
const appName = "stackfuse"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "stackfuse",
		Short:        "Stackfuse merges dependency sets across repositories",
		Long:         `Stackfuse analyzes the dependency manifests of several repositories, detects version conflicts between them, checks pairwise compatibility, and produces one unified resolved dependency set.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.analyzeCommand())
	root.AddCommand(c.conflictsCommand())
	root.AddCommand(c.compatCommand())
	root.AddCommand(c.resolveCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// newRunner creates a pipeline runner for CLI use. location selects the
// cache backend: "none" disables caching, "redis://..." uses Redis, ""
// uses the default file cache directory.
func (c *CLI) newRunner(location string) (*pipeline.Runner, error) {
	backend, err := newCache(location)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(backend, nil, c.Logger), nil
}

func newCache(location string) (cache.Cache, error) {
	if location == "none" {
		return cache.NewNullCache(), nil
	}
	if location != "" {
		return cache.Open(location)
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// cacheDir returns the cache directory using XDG standard (~/.cache/stackfuse/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// repoInputs turns positional arguments into repository inputs. Each
// argument is either a path, whose base name becomes the repo id, or an
// explicit "id=path" pair.
func repoInputs(args []string) ([]pipeline.RepoInput, error) {
	var repos []pipeline.RepoInput
	for _, arg := range args {
		id, path, found := strings.Cut(arg, "=")
		if !found {
			path = arg
			id = filepath.Base(filepath.Clean(arg))
		}
		if id == "" || path == "" {
			return nil, errors.New(errors.ErrCodeInvalidInput, "malformed repository argument %q", arg)
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "bad repository path %q", path)
		}
		repos = append(repos, pipeline.RepoInput{ID: id, Root: abs})
	}
	return repos, nil
}
