package claim

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/turtacn/ClaimLens/pkg/errors"
)

// DefaultReadingRate is words per minute used by ReadingTime.
const DefaultReadingRate = 100

// DependencyTree is the dependency structure of a claim set. Roots are the
// independent claims; Children maps a claim to the claims that depend on it.
// Depth counts levels, so a set of only independent claims has depth 1.
type DependencyTree struct {
	Roots    []int         `json:"roots"`
	Children map[int][]int `json:"children"`
	Depth    int           `json:"depth"`
	// Orphans are claims whose dependency names a claim missing from the set.
	Orphans []int `json:"orphans,omitempty"`
}

// Claimset is an ordered set of claims.
type Claimset struct {
	claims []*Claim
}

// NewClaimset keeps claims in the given order. Nil entries are dropped.
func NewClaimset(claims ...*Claim) *Claimset {
	s := &Claimset{claims: make([]*Claim, 0, len(claims))}
	for _, c := range claims {
		if c != nil {
			s.claims = append(s.claims, c)
		}
	}
	return s
}

// Claims returns the claims in order.
func (s *Claimset) Claims() []*Claim { return append([]*Claim(nil), s.claims...) }

func (s *Claimset) Count() int { return len(s.claims) }

// Text joins the claim texts with newlines.
func (s *Claimset) Text() string {
	parts := make([]string, len(s.claims))
	for i, c := range s.claims {
		parts[i] = c.Text()
	}
	return strings.Join(parts, "\n")
}

// Get returns the claim at 1-based position n.
func (s *Claimset) Get(n int) (*Claim, error) {
	if n < 1 || n > len(s.claims) {
		return nil, ErrClaimNotFound.WithDetail(fmt.Sprintf("position=%d count=%d", n, len(s.claims)))
	}
	return s.claims[n-1], nil
}

// ByNumber returns the claim carrying claim number n.
func (s *Claimset) ByNumber(n int) (*Claim, error) {
	for i, c := range s.claims {
		if s.key(i, c) == n {
			return c, nil
		}
	}
	return nil, ErrClaimNotFound.WithDetail(fmt.Sprintf("number=%d", n))
}

// Independent returns the claims with no dependency.
func (s *Claimset) Independent() []*Claim {
	var out []*Claim
	for _, c := range s.claims {
		if c.IsIndependent() {
			out = append(out, c)
		}
	}
	return out
}

// Dependents returns the claims that depend directly on claim n.
func (s *Claimset) Dependents(n int) []*Claim {
	var out []*Claim
	for _, c := range s.claims {
		if c.Dependency() == n && n > 0 {
			out = append(out, c)
		}
	}
	return out
}

// key is the claim number, or the 1-based position for unnumbered claims.
func (s *Claimset) key(i int, c *Claim) int {
	if n, ok := c.Number(); ok {
		return n
	}
	return i + 1
}

// DependencyTree builds the dependency structure of the set.
func (s *Claimset) DependencyTree() *DependencyTree {
	tree := &DependencyTree{Roots: []int{}, Children: map[int][]int{}}
	if len(s.claims) == 0 {
		return tree
	}

	present := make(map[int]bool, len(s.claims))
	for i, c := range s.claims {
		present[s.key(i, c)] = true
	}
	for i, c := range s.claims {
		k := s.key(i, c)
		dep := c.Dependency()
		switch {
		case dep == 0:
			tree.Roots = append(tree.Roots, k)
		case present[dep] && dep != k:
			tree.Children[dep] = append(tree.Children[dep], k)
		default:
			tree.Orphans = append(tree.Orphans, k)
		}
	}
	sort.Ints(tree.Roots)
	sort.Ints(tree.Orphans)
	for k := range tree.Children {
		sort.Ints(tree.Children[k])
	}
	tree.Depth = treeDepth(tree.Roots, tree.Children)
	return tree
}

func treeDepth(roots []int, children map[int][]int) int {
	type item struct{ node, depth int }
	maxDepth := 0
	visited := make(map[int]bool)
	queue := make([]item, 0, len(roots))
	for _, r := range roots {
		queue = append(queue, item{node: r, depth: 1})
		visited[r] = true
	}
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		if it.depth > maxDepth {
			maxDepth = it.depth
		}
		for _, ch := range children[it.node] {
			if !visited[ch] {
				visited[ch] = true
				queue = append(queue, item{node: ch, depth: it.depth + 1})
			}
		}
	}
	return maxDepth
}

// CheckNumbering reports claims whose number does not match their position.
func (s *Claimset) CheckNumbering() error {
	var bad []string
	for i, c := range s.claims {
		if n, ok := c.Number(); !ok || n != i+1 {
			bad = append(bad, fmt.Sprintf("position %d has number %d", i+1, n))
		}
	}
	if len(bad) == 0 {
		return nil
	}
	return errors.New(errors.ErrCodeValidation, "claim numbering is not consecutive").
		WithDetail(strings.Join(bad, "; "))
}

// TermCounts sums each claim's normalised word frequencies.
func (s *Claimset) TermCounts(stopwords bool) map[string]float64 {
	out := make(map[string]float64)
	for _, c := range s.claims {
		for w, f := range c.WordFrequency(stopwords, true) {
			out[w] += f
		}
	}
	return out
}

// AppearsIn returns the claims containing term.
func (s *Claimset) AppearsIn(term string) []*Claim {
	var out []*Claim
	for _, c := range s.claims {
		if c.AppearsIn(term) {
			out = append(out, c)
		}
	}
	return out
}

// UnfilteredCounter sums the claims' raw token counts.
func (s *Claimset) UnfilteredCounter() map[string]int {
	out := make(map[string]int)
	for _, c := range s.claims {
		for k, v := range c.UnfilteredCounter() {
			out[k] += v
		}
	}
	return out
}

// FilteredCounter sums the claims' filtered token counts.
func (s *Claimset) FilteredCounter() map[string]int {
	out := make(map[string]int)
	for _, c := range s.claims {
		for k, v := range c.FilteredCounter() {
			out[k] += v
		}
	}
	return out
}

// CharacterCounter sums the claims' rune counts.
func (s *Claimset) CharacterCounter() map[rune]int {
	out := make(map[rune]int)
	for _, c := range s.claims {
		for k, v := range c.CharacterCounter() {
			out[k] += v
		}
	}
	return out
}

// BagOfWords concatenates the claims' bags of words.
func (s *Claimset) BagOfWords(opts BagOfWordsOptions) ([]string, error) {
	var out []string
	for _, c := range s.claims {
		words, err := c.BagOfWords(opts)
		if err != nil {
			return nil, err
		}
		out = append(out, words...)
	}
	return out, nil
}

// WordCount is the total number of raw tokens.
func (s *Claimset) WordCount() int {
	total := 0
	for _, c := range s.claims {
		total += c.WordCount()
	}
	return total
}

// ReadingTime estimates reading minutes at rate words per minute. A
// non-positive rate uses DefaultReadingRate.
func (s *Claimset) ReadingTime(rate float64) float64 {
	if rate <= 0 {
		rate = DefaultReadingRate
	}
	return float64(s.WordCount()) / rate
}

// ─────────────────────────────────────────────────────────────────────────────
// Splitting
// ─────────────────────────────────────────────────────────────────────────────

var claimStartPattern = regexp.MustCompile(`(?m)^[ \t]*\d+\.\s`)

// SplitClaims splits a claims block on lines that start with "N. ". Text
// before the first numbered line is dropped when numbered claims exist;
// otherwise the whole trimmed text is one claim.
func SplitClaims(text string) []string {
	locs := claimStartPattern.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		if t := strings.TrimSpace(text); t != "" {
			return []string{t}
		}
		return nil
	}
	out := make([]string, 0, len(locs))
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		if part := strings.TrimSpace(text[loc[0]:end]); part != "" {
			out = append(out, part)
		}
	}
	return out
}
