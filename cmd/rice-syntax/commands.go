package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ricesearch/rice-syntax/internal/ast"
	"github.com/ricesearch/rice-syntax/internal/worker"
)

// runOnFile opens a session, reads the file argument and runs the call
// build returns for it.
func runOnFile(cmd *cobra.Command, path string, build func(in sourceInput) (callSpec, error)) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	in, err := readSource(cmd, path)
	if err != nil {
		return err
	}
	spec, err := build(in)
	if err != nil {
		return err
	}
	return spec(cmd.Context(), s, in)
}

func outlineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "outline <file>",
		Short: "Print the structural outline of a file",
		Long: `Print the outline of a file: the nested statements, declarations and
comments the engine uses to reason about structure. Use "-" to read stdin
together with --lang.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnFile(cmd, args[0], func(in sourceInput) (callSpec, error) {
				return typed(&worker.StructureCall{Source: in.source()}, renderOutline), nil
			})
		},
	}
}

// definitionsCmd builds a command that takes only a file.
func definitionsCmd(name, short string, build func(in sourceInput) callSpec) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <file>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnFile(cmd, args[0], func(in sourceInput) (callSpec, error) {
				return build(in), nil
			})
		},
	}
}

// selectionCmd builds a command that takes a file and a byte selection.
func selectionCmd(name, short string, build func(in sourceInput, sel ast.OffsetRange) callSpec) *cobra.Command {
	cmd := &cobra.Command{
		Use:   name + " <file>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnFile(cmd, args[0], func(in sourceInput) (callSpec, error) {
				sel, err := selectionFrom(cmd, in.text, false)
				if err != nil {
					return nil, err
				}
				return build(in, sel), nil
			})
		},
	}
	addSelectionFlags(cmd, false)
	return cmd
}

func refsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refs <file>",
		Short: "List references intersecting a selection",
		Long: `List references intersecting a selection. --kind picks what to list:

  type    type references
  class   class references (extends, implements, instantiation)
  call    call expressions
  symbol  every referenced symbol`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, _ := cmd.Flags().GetString("kind")
			return runOnFile(cmd, args[0], func(in sourceInput) (callSpec, error) {
				sel, err := selectionFrom(cmd, in.text, true)
				if err != nil {
					return nil, err
				}
				var call worker.Call
				switch kind {
				case "type":
					call = &worker.TypeReferencesCall{Source: in.source(), Selection: sel}
				case "class":
					call = &worker.ClassReferencesCall{Source: in.source(), Selection: sel}
				case "call":
					call = &worker.CallExpressionsCall{Source: in.source(), Selection: sel}
				case "symbol":
					call = &worker.SymbolsCall{Source: in.source(), Selection: sel}
				default:
					return nil, fmt.Errorf("unknown reference kind %q (want type, class, call or symbol)", kind)
				}
				return typed(call, renderDefinitions), nil
			})
		},
	}
	cmd.Flags().String("kind", "symbol", "reference kind (type, class, call, symbol)")
	addSelectionFlags(cmd, true)
	return cmd
}

func fitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fit <file>",
		Short: "Grow a range to the widest enclosing code that fits in --max-lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			maxLines, _ := cmd.Flags().GetInt("max-lines")
			if maxLines < 0 {
				return fmt.Errorf("--max-lines must not be negative")
			}
			return runOnFile(cmd, args[0], func(in sourceInput) (callSpec, error) {
				r, err := pointRangeFrom(cmd)
				if err != nil {
					return nil, err
				}
				call := &worker.FixSelectionOfInterestCall{Source: in.source(), Range: r, MaxLines: maxLines}
				return typed(call, renderPointRange), nil
			})
		},
	}
	cmd.Flags().Int("max-lines", 50, "line budget for the grown range")
	addPointFlags(cmd)
	return cmd
}

func scopeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scope <file>",
		Short: "Find the closest coarse scope around a range",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnFile(cmd, args[0], func(in sourceInput) (callSpec, error) {
				r, err := pointRangeFrom(cmd)
				if err != nil {
					return nil, err
				}
				return typed(&worker.CoarseParentScopeCall{Source: in.source(), Range: r}, renderPointRange), nil
			})
		},
	}
	addPointFlags(cmd)
	return cmd
}

func testableCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "testable <file>",
		Short: "List declarations a test can be written for",
		Long: `List declarations a test can be written for. With --start the smallest
testable declaration around the selection is printed instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnFile(cmd, args[0], func(in sourceInput) (callSpec, error) {
				if !cmd.Flags().Changed("start") {
					return typed(&worker.TestableNodesCall{Source: in.source()}, renderTestable), nil
				}
				sel, err := selectionFrom(cmd, in.text, false)
				if err != nil {
					return nil, err
				}
				call := &worker.TestableNodeCall{Source: in.source(), Range: sel}
				return typed(call, func(w io.Writer, n *ast.TestableNode, in sourceInput) error {
					if n == nil {
						_, err := fmt.Fprintln(w, "none")
						return err
					}
					return renderTestable(w, []ast.TestableNode{*n}, in)
				}), nil
			})
		},
	}
	addSelectionFlags(cmd, false)
	return cmd
}
