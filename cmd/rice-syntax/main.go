package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ricesearch/rice-syntax/internal/ast"
	"github.com/ricesearch/rice-syntax/internal/worker"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rice-syntax",
		Short: "Rice Syntax - syntax tree queries for source files",
		Long: `Rice Syntax parses source files with tree-sitter and answers structural
questions about them: outlines, definitions, references, scopes, semantic
chunks and test locations.

Commands run the engine in process unless --server points at a running
rice-syntax-server.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("format", "text", "output format (text, json)")
	rootCmd.PersistentFlags().String("server", "", "server URL (default: run in process)")
	rootCmd.PersistentFlags().String("lang", "", "source language (default: from file extension)")

	rootCmd.AddCommand(
		outlineCmd(),
		definitionsCmd("functions", "List function definitions", func(src sourceInput) callSpec {
			return typed[[]ast.Definition](&worker.FunctionDefinitionsCall{Source: src.source()}, renderDefinitions)
		}),
		definitionsCmd("classes", "List class declarations", func(src sourceInput) callSpec {
			return typed[[]ast.Definition](&worker.ClassDeclarationsCall{Source: src.source()}, renderDefinitions)
		}),
		definitionsCmd("types", "List type declarations", func(src sourceInput) callSpec {
			return typed[[]ast.Definition](&worker.TypeDeclarationsCall{Source: src.source()}, renderDefinitions)
		}),
		definitionsCmd("bodies", "List function body ranges", func(src sourceInput) callSpec {
			return typed[[]ast.OffsetRange](&worker.FunctionBodiesCall{Source: src.source()}, renderRanges)
		}),
		definitionsCmd("doc-comments", "List doc comment ranges", func(src sourceInput) callSpec {
			return typed[[]ast.OffsetRange](&worker.DocCommentsCall{Source: src.source()}, renderRanges)
		}),
		definitionsCmd("chunks", "Print the semantic chunk tree", func(src sourceInput) callSpec {
			return typed[*ast.QueryMatchTree](&worker.SemanticChunkTreeCall{Source: src.source()}, renderChunkTree)
		}),
		definitionsCmd("chunk-names", "Print the semantic chunk tree of named declarations", func(src sourceInput) callSpec {
			return typed[*ast.QueryMatchTree](&worker.SemanticChunkNamesCall{Source: src.source()}, renderChunkTree)
		}),
		definitionsCmd("last-test", "Find the last test in a test file", func(src sourceInput) callSpec {
			return typed[*ast.OffsetRange](&worker.FindLastTestCall{Source: src.source()}, renderOptionalRange)
		}),
		refsCmd(),
		selectionCmd("doc", "Find the node to document for a selection", func(src sourceInput, sel ast.OffsetRange) callSpec {
			return typed[*ast.NodeToDocumentResult](&worker.NodeToDocumentCall{Source: src.source(), Selection: sel}, nil)
		}),
		selectionCmd("ident", "Find the documentable node when the range is on its identifier", func(src sourceInput, sel ast.OffsetRange) callSpec {
			return typed[*ast.IdentifierResult](&worker.DocumentableNodeIfOnIdentifierCall{Source: src.source(), Range: sel}, nil)
		}),
		selectionCmd("explain", "Find the node to explain for a selection", func(src sourceInput, sel ast.OffsetRange) callSpec {
			return typed[*ast.NodeToExplainResult](&worker.NodeToExplainCall{Source: src.source(), Selection: sel}, nil)
		}),
		selectionCmd("fine-scopes", "List the scopes enclosing a selection", func(src sourceInput, sel ast.OffsetRange) callSpec {
			return typed[[]ast.OffsetRange](&worker.FineScopesCall{Source: src.source(), Selection: sel}, renderRanges)
		}),
		fitCmd(),
		scopeCmd(),
		testableCmd(),
		errorsCmd(),
		callCmd(),
		watchCmd(),
		watchersCmd(),
		replayCmd(),
		versionCmd(),
	)
	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "rice-syntax %s\n", version)
			fmt.Fprintf(out, "  commit: %s\n", commit)
			fmt.Fprintf(out, "  built:  %s\n", date)
		},
	}
}
