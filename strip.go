package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"jcr/pkg/jsonc"
)

var errCommentsFound = errors.New("comments found")

var (
	stripWrite bool
	stripCheck bool
	stripJobs  int
)

var stripCmd = &cobra.Command{
	Use:   "strip [pattern...]",
	Short: "Remove comments from JSON files or stdin",
	Long: `Remove // and /* */ comments from JSON text. String contents are never
changed.

With no arguments stdin is stripped to stdout. Otherwise each argument is a
glob pattern (** matches any number of directories) and the stripped files are
written to stdout in order, or back in place with -w. With --check nothing is
written; files that contain comments are listed and the command fails.`,
	RunE: runStrip,
}

func init() {
	stripCmd.Flags().BoolVarP(&stripWrite, "write", "w", false, "Write results back to the source files")
	stripCmd.Flags().BoolVar(&stripCheck, "check", false, "List files that contain comments and fail if there are any")
	stripCmd.Flags().IntVarP(&stripJobs, "jobs", "j", runtime.GOMAXPROCS(0), "Number of files processed concurrently")
	stripCmd.MarkFlagsMutuallyExclusive("write", "check")
	rootCmd.AddCommand(stripCmd)
}

func runStrip(cmd *cobra.Command, args []string) error {
	setupLogger(os.Stderr, false)

	if len(args) == 0 {
		if stripWrite {
			return errors.New("-w requires file arguments")
		}
		return stripStream(cmd.InOrStdin(), cmd.OutOrStdout(), stripCheck)
	}

	files, err := expandPatterns(args)
	if err != nil {
		return err
	}

	results, err := stripFiles(cmd.Context(), files, stripJobs, stripWrite && !stripCheck)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	found := false
	for _, res := range results {
		switch {
		case stripCheck:
			if res.changed {
				found = true
				fmt.Fprintln(out, res.path)
			}
		case stripWrite:
			if res.changed {
				slog.Info("Stripped comments", "path", res.path)
			}
		default:
			if _, err := out.Write(res.output); err != nil {
				return err
			}
		}
	}

	if found {
		return errCommentsFound
	}
	return nil
}

func stripStream(r io.Reader, w io.Writer, check bool) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	if check {
		if jsonc.HasComments(string(data)) {
			fmt.Fprintln(w, "<stdin>")
			return errCommentsFound
		}
		return nil
	}

	_, err = w.Write(jsonc.Strip(data))
	return err
}

// expandPatterns resolves glob patterns to a sorted list of unique files. A
// pattern that matches nothing is an error.
func expandPatterns(patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %q", pattern)
		}
		files = append(files, matches...)
	}

	slices.Sort(files)
	return slices.Compact(files), nil
}

type stripResult struct {
	path    string
	output  []byte
	changed bool
}

func stripFiles(ctx context.Context, files []string, jobs int, write bool) ([]stripResult, error) {
	if jobs < 1 {
		jobs = 1
	}

	results := make([]stripResult, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)

	for i, path := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := stripFile(path, write)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// stripFile strips one file, writing the result back when write is set and
// the file contained comments.
func stripFile(path string, write bool) (stripResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return stripResult{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	res := stripResult{
		path:    path,
		output:  jsonc.Strip(data),
		changed: jsonc.HasComments(string(data)),
	}

	if write && res.changed {
		info, err := os.Stat(path)
		if err != nil {
			return stripResult{}, fmt.Errorf("failed to stat %s: %w", path, err)
		}
		if err := os.WriteFile(path, res.output, info.Mode().Perm()); err != nil {
			return stripResult{}, fmt.Errorf("failed to write %s: %w", path, err)
		}
	}

	return res, nil
}
