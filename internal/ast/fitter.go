package ast

import (
	apperrors "github.com/ricesearch/rice-syntax/internal/pkg/errors"
)

// FitSelection widens r to the largest run of whole statements or scopes
// around it that spans at most maxLines rows. When growing makes no
// progress it tries the window between the node's syntactic neighbours,
// which is only taken if it also fits.
//
// The candidates are computed once, independent of maxLines, as a chain of
// nested ranges starting at r. The result is the largest candidate within
// budget, so a bigger maxLines never yields a smaller range, and the result
// exceeds maxLines only when r itself does.
func FitSelection(root Node, lang Language, r PointRange, maxLines int) (PointRange, error) {
	smallest := root.DescendantForPoints(r)
	initial := smallest.Points()

	chain, err := fitCandidates(lang, smallest, r)
	if err != nil {
		return PointRange{}, err
	}
	at := 0
	for at+1 < len(chain) && rowsOf(chain[at+1]) <= maxLines {
		at++
	}
	best := chain[at]
	if !best.Equal(initial) {
		return best, nil
	}

	// The neighbour window must also sit inside the next candidate, which
	// is what any larger budget would pick.
	shrunk, err := shrinkRange(lang, smallest)
	if err != nil {
		return PointRange{}, err
	}
	if rowsOf(shrunk) > maxLines || !shrunk.Contains(best) {
		return best, nil
	}
	if at+1 < len(chain) && !chain[at+1].Contains(shrunk) {
		return best, nil
	}
	return shrunk, nil
}

func rowsOf(r PointRange) int { return LinesSpanned(r, r) }

func isScopeNode(lang Language, n Node) bool     { return IsScope(lang, n.Type()) }
func isStatementNode(lang Language, n Node) bool { return IsStatement(lang, n.Type()) }

// fitCandidates climbs from n to the root. At each level it appends the
// sibling windows around the range reached so far, smallest first, and the
// node itself when it is a scope. Entries that would not contain the
// previous one are dropped, so the chain is nested.
func fitCandidates(lang Language, n Node, r PointRange) ([]PointRange, error) {
	chain := []PointRange{r}
	push := func(p PointRange) {
		last := chain[len(chain)-1]
		if p.Contains(last) && !p.Equal(last) {
			chain = append(chain, p)
		}
	}

	first := true
	for ; !n.IsNull(); n = n.Parent() {
		if children := n.Children(); len(children) > 0 {
			windows, err := siblingWindows(lang, children, chain[len(chain)-1], first)
			if err != nil {
				return nil, err
			}
			for _, w := range windows {
				push(w)
			}
		}
		if isScopeNode(lang, n) {
			push(n.Points())
		}
		first = false
	}
	return chain, nil
}

// siblingWindows lists the windows over the filtered siblings that contain
// the range of interest, from the single entry outward to all of them. Each
// step adds one entry on the side nearer to the range of interest.
func siblingWindows(lang Language, nodes []Node, r PointRange, firstCall bool) ([]PointRange, error) {
	ranges, idx, err := filterSiblings(lang, nodes, r, firstCall)
	if err != nil {
		return nil, err
	}

	above, below := 0, len(ranges)-1
	windows := make([]PointRange, 0, len(ranges))
	for {
		windows = append(windows, PointRange{StartPosition: ranges[above].StartPosition, EndPosition: ranges[below].EndPosition})
		if above == below {
			break
		}
		if idx-above < below-idx {
			below--
		} else {
			above++
		}
	}
	for i, j := 0, len(windows)-1; i < j; i, j = i+1, j-1 {
		windows[i], windows[j] = windows[j], windows[i]
	}
	return windows, nil
}

func shrinkRange(lang Language, n Node) (PointRange, error) {
	r := n.Points()
	parent := n.Parent()
	if isScopeNode(lang, n) || parent.IsNull() {
		return r, nil
	}

	ranges, idx, err := filterSiblings(lang, parent.Children(), r, false)
	if err != nil {
		return PointRange{}, err
	}
	if idx-1 >= 0 && idx+1 < len(ranges) {
		return PointRange{
			StartPosition: ranges[idx-1].StartPosition,
			EndPosition:   ranges[idx+1].EndPosition,
		}, nil
	}
	return shrinkRange(lang, parent)
}

func filterSiblings(lang Language, nodes []Node, r PointRange, firstCall bool) ([]PointRange, int, error) {
	var ranges []PointRange
	idx := -1

	if firstCall {
		for _, n := range nodes {
			if isScopeNode(lang, n) || isStatementNode(lang, n) {
				ranges = append(ranges, n.Points())
			}
		}
		idx = insertionIndex(ranges, r)
		ranges = append(ranges, PointRange{})
		copy(ranges[idx+1:], ranges[idx:])
		ranges[idx] = r
	} else {
		for _, n := range nodes {
			pr := n.Points()
			if pr.Contains(r) || isScopeNode(lang, n) || isStatementNode(lang, n) {
				if idx == -1 && pr.Contains(r) {
					idx = len(ranges)
				}
				ranges = append(ranges, pr)
			}
		}
	}

	if idx == -1 {
		return nil, -1, apperrors.InternalError("valid index not found", nil)
	}
	return ranges, idx, nil
}
