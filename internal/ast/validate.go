package ast

import (
	"fmt"
	"strings"

	apperrors "github.com/ricesearch/rice-syntax/internal/pkg/errors"
)

func validateLanguage(lang Language) error {
	if !lang.Valid() {
		return apperrors.UnsupportedLanguageError(lang.String())
	}
	return nil
}

func validateOffsets(source string, r OffsetRange) error {
	switch {
	case r.StartIndex < 0 || r.EndIndex < 0:
		return apperrors.ValidationError("offsets must not be negative").
			WithDetail("startIndex", fmt.Sprint(r.StartIndex)).
			WithDetail("endIndex", fmt.Sprint(r.EndIndex))
	case r.StartIndex > r.EndIndex:
		return apperrors.ValidationError("startIndex is after endIndex").
			WithDetail("startIndex", fmt.Sprint(r.StartIndex)).
			WithDetail("endIndex", fmt.Sprint(r.EndIndex))
	case r.EndIndex > len(source):
		return apperrors.ValidationError("endIndex is past the end of the source").
			WithDetail("endIndex", fmt.Sprint(r.EndIndex)).
			WithDetail("length", fmt.Sprint(len(source)))
	}
	return nil
}

func validatePoints(source string, r PointRange) error {
	s, e := r.StartPosition, r.EndPosition
	if s.Row < 0 || s.Column < 0 || e.Row < 0 || e.Column < 0 {
		return apperrors.ValidationError("positions must not be negative")
	}
	if e.Before(s) {
		return apperrors.ValidationError("startPosition is after endPosition")
	}
	lines := strings.Count(source, "\n") + 1
	if e.Row >= lines {
		return apperrors.ValidationError("endPosition is past the last line").
			WithDetail("row", fmt.Sprint(e.Row)).
			WithDetail("lines", fmt.Sprint(lines))
	}
	return nil
}
