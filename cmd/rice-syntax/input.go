package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ricesearch/rice-syntax/internal/ast"
	"github.com/ricesearch/rice-syntax/internal/pkg/security"
	"github.com/ricesearch/rice-syntax/internal/worker"
)

// sourceInput is a file read from disk or stdin.
type sourceInput struct {
	path string
	lang ast.Language
	text string
}

func (in sourceInput) source() worker.Source {
	return worker.Source{Lang: in.lang, Text: in.text}
}

// readSource reads path, or stdin for "-". --lang wins over the extension.
func readSource(cmd *cobra.Command, path string) (sourceInput, error) {
	in := sourceInput{path: path}

	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return in, err
	}
	if security.IsBinary(data) {
		return in, fmt.Errorf("%s looks like a binary file", path)
	}
	in.text = string(data)

	if name, _ := cmd.Flags().GetString("lang"); name != "" {
		in.lang, err = ast.ParseLanguage(name)
		return in, err
	}
	lang, ok := ast.LanguageForPath(path)
	if !ok {
		return in, fmt.Errorf("cannot detect the language of %s; pass --lang", path)
	}
	in.lang = lang
	return in, nil
}

func addSelectionFlags(cmd *cobra.Command, wholeFile bool) {
	endHelp := "selection end byte offset (default: start)"
	if wholeFile {
		endHelp = "selection end byte offset (default: end of file)"
	}
	cmd.Flags().Int("start", 0, "selection start byte offset")
	cmd.Flags().Int("end", -1, endHelp)
}

// selectionFrom reads --start and --end. A missing end means an empty
// selection at start, or the rest of the file when wholeFile is set.
func selectionFrom(cmd *cobra.Command, text string, wholeFile bool) (ast.OffsetRange, error) {
	start, _ := cmd.Flags().GetInt("start")
	end, _ := cmd.Flags().GetInt("end")
	if end < 0 {
		end = start
		if wholeFile {
			end = len(text)
		}
	}
	if start < 0 || start > end || end > len(text) {
		return ast.OffsetRange{}, fmt.Errorf("selection [%d, %d) is outside the source (%d bytes)", start, end, len(text))
	}
	return ast.OffsetRange{StartIndex: start, EndIndex: end}, nil
}

func addPointFlags(cmd *cobra.Command) {
	cmd.Flags().String("start", "", "range start as row:column (zero-based)")
	cmd.Flags().String("end", "", "range end as row:column (default: start)")
	_ = cmd.MarkFlagRequired("start")
}

func pointRangeFrom(cmd *cobra.Command) (ast.PointRange, error) {
	startFlag, _ := cmd.Flags().GetString("start")
	endFlag, _ := cmd.Flags().GetString("end")
	if endFlag == "" {
		endFlag = startFlag
	}
	start, err := parsePoint(startFlag)
	if err != nil {
		return ast.PointRange{}, err
	}
	end, err := parsePoint(endFlag)
	if err != nil {
		return ast.PointRange{}, err
	}
	if end.Before(start) {
		return ast.PointRange{}, fmt.Errorf("range end %s is before start %s", endFlag, startFlag)
	}
	return ast.PointRange{StartPosition: start, EndPosition: end}, nil
}

func parsePoint(s string) (ast.Point, error) {
	rowStr, colStr, ok := strings.Cut(s, ":")
	if !ok {
		return ast.Point{}, fmt.Errorf("invalid position %q (want row:column)", s)
	}
	row, err := strconv.Atoi(rowStr)
	if err != nil || row < 0 {
		return ast.Point{}, fmt.Errorf("invalid row in %q", s)
	}
	col, err := strconv.Atoi(colStr)
	if err != nil || col < 0 {
		return ast.Point{}, fmt.Errorf("invalid column in %q", s)
	}
	return ast.Point{Row: row, Column: col}, nil
}
