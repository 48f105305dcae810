package main

import (
	"context"
	"fmt"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ricesearch/rice-syntax/internal/ast"
	"github.com/ricesearch/rice-syntax/internal/pkg/security"
	"github.com/ricesearch/rice-syntax/internal/worker"
)

type fileErrors struct {
	Path        string `json:"path"`
	Language    string `json:"language"`
	ParseErrors int    `json:"parseErrors"`
	Error       string `json:"error,omitempty"`
}

func errorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "errors <glob>...",
		Short: "Count parse errors in every file matching the globs",
		Long: `Count parse errors in every supported file matching the globs. Patterns
use doublestar syntax, so "src/**/*.ts" walks subdirectories. The command
fails when any file has parse errors.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			concurrency, _ := cmd.Flags().GetInt("concurrency")
			langFlag, _ := cmd.Flags().GetString("lang")

			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			files, err := expandGlobs(args, langFlag != "")
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("no supported files match %v", args)
			}

			results := make([]fileErrors, len(files))
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(max(concurrency, 1))
			for i, path := range files {
				g.Go(func() error {
					results[i] = countErrors(ctx, s, cmd, path)
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			failing := 0
			for _, r := range results {
				if r.ParseErrors > 0 || r.Error != "" {
					failing++
				}
			}

			if s.format == "json" {
				if err := s.writeJSON(results); err != nil {
					return err
				}
			} else {
				for _, r := range results {
					switch {
					case r.Error != "":
						fmt.Fprintf(s.out, "%s\terror: %s\n", r.Path, r.Error)
					default:
						fmt.Fprintf(s.out, "%s\t%d\n", r.Path, r.ParseErrors)
					}
				}
			}

			if failing > 0 {
				return fmt.Errorf("%d of %d files have parse errors", failing, len(results))
			}
			return nil
		},
	}
	cmd.Flags().Int("concurrency", 8, "files parsed at once")
	return cmd
}

// expandGlobs returns the sorted, de-duplicated files matching patterns.
// Unless anyFile is set only files with a known extension are kept.
func expandGlobs(patterns []string, anyFile bool) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			if _, ok := ast.LanguageForPath(m); ok || anyFile {
				files = append(files, m)
			}
		}
	}
	slices.Sort(files)
	return slices.Compact(files), nil
}

func countErrors(ctx context.Context, s *session, cmd *cobra.Command, path string) fileErrors {
	result := fileErrors{Path: path}
	in, err := readSource(cmd, path)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Language = in.lang.String()

	if err := s.caller.Do(ctx, &worker.ParseErrorCountCall{Source: in.source()}, &result.ParseErrors); err != nil {
		result.Error = security.SanitizeForLog(err.Error())
		s.log.Debug("Parse error count failed", "path", path, "error", err)
	}
	return result
}
