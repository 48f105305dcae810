package ast

import (
	"context"
	"fmt"

	apperrors "github.com/ricesearch/rice-syntax/internal/pkg/errors"
)

// FixSelectionOfInterest fits r to statement and scope boundaries, spanning
// at most maxLines rows where possible.
func (e *Engine) FixSelectionOfInterest(ctx context.Context, lang Language, source string, r PointRange, maxLines int) (PointRange, error) {
	if err := validateLanguage(lang); err != nil {
		return PointRange{}, err
	}
	if err := validatePoints(source, r); err != nil {
		return PointRange{}, err
	}
	if maxLines < 0 {
		return PointRange{}, apperrors.ValidationError("maxLines must not be negative").
			WithDetail("maxLines", fmt.Sprint(maxLines))
	}

	var out PointRange
	err := e.withTree(ctx, lang, source, func(root Node) error {
		var err error
		out, err = FitSelection(root, lang, r, maxLines)
		return err
	})
	return out, err
}

// CoarseParentScope returns the innermost coarse scope containing r.
func (e *Engine) CoarseParentScope(ctx context.Context, lang Language, source string, r PointRange) (PointRange, error) {
	if err := validateLanguage(lang); err != nil {
		return PointRange{}, err
	}
	if err := validatePoints(source, r); err != nil {
		return PointRange{}, err
	}

	var out PointRange
	err := e.withMatches(ctx, lang, source, QueryCoarseScopes, func(_ Node, matches []Match) error {
		found := false
		for _, m := range matches {
			if len(m.Captures) == 0 {
				continue
			}
			scope := m.Captures[0].Node.Points()
			if scope.Contains(r) {
				out, found = scope, true
			}
			if r.EndPosition.Before(scope.StartPosition) {
				break
			}
		}
		if !found {
			return apperrors.New(apperrors.CodeNotFound, "no parent node found")
		}
		return nil
	})
	return out, err
}

// FineScopes lists the control-flow scopes around sel, innermost first.
func (e *Engine) FineScopes(ctx context.Context, lang Language, source string, sel OffsetRange) ([]OffsetRange, error) {
	if err := validateLanguage(lang); err != nil {
		return nil, err
	}
	if err := validateOffsets(source, sel); err != nil {
		return nil, err
	}

	out := []OffsetRange{}
	err := e.withTree(ctx, lang, source, func(root Node) error {
		for n := root.DescendantForRange(sel.StartIndex, sel.EndIndex); !n.IsNull(); n = n.Parent() {
			if IsFineScope(lang, n.Type()) {
				out = append(out, n.Offsets())
			}
		}
		return nil
	})
	return out, err
}
