package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ricesearch/rice-syntax/internal/worker"
)

func callCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "call <fn> [args-json]",
		Short: "Invoke an engine function with raw JSON arguments",
		Long: `Invoke an engine function by its envelope name with a JSON array of
positional arguments, and print the raw result. Use "-" to read the array
from stdin.

Example:
  rice-syntax call getParseErrorCount '["python", "def f(:\n"]'`,
		Args: cobra.RangeArgs(1, 2),
		ValidArgs: worker.Functions(),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := []byte("[]")
			if len(args) == 2 {
				raw = []byte(args[1])
				if args[1] == "-" {
					var err error
					if raw, err = io.ReadAll(cmd.InOrStdin()); err != nil {
						return err
					}
				}
			}

			var positional []json.RawMessage
			if err := json.Unmarshal(raw, &positional); err != nil {
				return fmt.Errorf("arguments must be a JSON array: %w", err)
			}
			callArgs := make([]any, len(positional))
			for i, a := range positional {
				callArgs[i] = a
			}

			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := s.caller.Call(cmd.Context(), args[0], callArgs...)
			if err != nil {
				return err
			}

			var out bytes.Buffer
			if err := json.Indent(&out, res, "", "  "); err != nil {
				return err
			}
			out.WriteByte('\n')
			_, err = s.out.Write(out.Bytes())
			return err
		},
	}
}
