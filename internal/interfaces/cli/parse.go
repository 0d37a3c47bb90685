package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/turtacn/ClaimLens/internal/domain/claim"
)

type parseOptions struct {
	file       string
	number     int
	dependency int
	full       bool
}

func newParseCmd() *cobra.Command {
	opts := &parseOptions{}
	cmd := &cobra.Command{
		Use:   "parse [text]",
		Short: "Parse one claim and print its annotated words",
		Long: "Parse one claim locally. The claim is read from the arguments, from\n" +
			"--file, or from stdin with --file -.",
		Example: `  claimlens parse "1. A widget comprising a lever."
  claimlens parse --file claim.txt -o table
  cat claim.txt | claimlens parse --file - --number 3 --dependency 1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(cmd, args, opts)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.file, "file", "f", "", "read claim text from a file (- for stdin)")
	f.IntVar(&opts.number, "number", 0, "override the claim number")
	f.IntVar(&opts.dependency, "dependency", 0, "override the claim this one depends on (0 = independent)")
	f.BoolVar(&opts.full, "full", false, "print the full record instead of the word view (json only)")
	return cmd
}

func runParse(cmd *cobra.Command, args []string, opts *parseOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	text, err := readInput(cmd, args, opts.file)
	if err != nil {
		return err
	}

	parser, err := cliCtx.deps.NewParser(cliCtx.Config.NLP, cliCtx.Logger)
	if err != nil {
		return fmt.Errorf("build parser: %w", err)
	}

	var (
		claimOpts        []claim.Option
		number, dependency *int
	)
	if cmd.Flags().Changed("number") {
		n := opts.number
		number = &n
		claimOpts = append(claimOpts, claim.WithNumber(n))
	}
	if cmd.Flags().Changed("dependency") {
		d := opts.dependency
		dependency = &d
		claimOpts = append(claimOpts, claim.WithDependency(d))
	}

	c, err := parser.Parse(text, claimOpts...)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch cliCtx.OutputFormat {
	case OutputJSON:
		if opts.full {
			return printJSON(out, claim.NewRecord(c, "cli", number, dependency))
		}
		return printJSON(out, c.View())
	case OutputTable:
		renderTable(out, []string{"ID", "WORD", "POS", "NP"}, wordRows(c.View().Claim.Words))
		return nil
	default:
		printClaimText(out, c)
		return nil
	}
}

func wordRows(words []claim.WordRecord) [][]string {
	rows := make([][]string, len(words))
	for i, w := range words {
		np := ""
		if w.NP != 0 {
			np = strconv.Itoa(w.NP)
		}
		rows[i] = []string{strconv.Itoa(w.ID), w.Word, w.POS, np}
	}
	return rows
}

func claimLabel(c *claim.Claim) string {
	if n, ok := c.Number(); ok {
		return fmt.Sprintf("Claim %d", n)
	}
	return "Claim"
}

func dependencyLabel(c *claim.Claim) string {
	if c.IsIndependent() {
		return color.GreenString("independent")
	}
	return color.YellowString("depends on claim %d", c.Dependency())
}

func printClaimText(w io.Writer, c *claim.Claim) {
	fmt.Fprintf(w, "%s (%s, %s)\n", claimLabel(c), c.Category(), dependencyLabel(c))
	fmt.Fprintf(w, "Words: %d\n", c.WordCount())

	if features := c.Features(); len(features) > 0 {
		fmt.Fprintf(w, "\nFeatures:\n")
		for i, f := range features {
			fmt.Fprintf(w, "  %2d. %s\n", i+1, strings.TrimSpace(f.Text))
		}
	}
	if phrases := c.NounPhrases(); len(phrases) > 0 {
		fmt.Fprintf(w, "\nNoun phrases:\n")
		for _, p := range phrases {
			fmt.Fprintf(w, "  [%d] %s\n", p.ID, p.Text)
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// claimset
// ─────────────────────────────────────────────────────────────────────────────

type claimsetSummary struct {
	Claims      []claimsetEntry       `json:"claims"`
	Tree        *claim.DependencyTree `json:"tree"`
	WordCount   int                   `json:"word_count"`
	ReadingTime float64               `json:"reading_time_minutes"`
	Warnings    []string              `json:"warnings,omitempty"`
}

type claimsetEntry struct {
	Number      *int                `json:"number,omitempty"`
	Category    claim.Category      `json:"category"`
	Dependency  int                 `json:"dependency"`
	Words       int                 `json:"words"`
	NounPhrases []claim.PhraseEntry `json:"noun_phrases"`
	Text        string              `json:"text"`
}

func newClaimsetCmd() *cobra.Command {
	var (
		file string
		rate float64
	)
	cmd := &cobra.Command{
		Use:   "claimset",
		Short: "Parse a block of numbered claims and print the dependency tree",
		Example: `  claimlens claimset --file claims.txt
  claimlens claimset --file - -o json < claims.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClaimset(cmd, args, file, rate)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the claims block from a file (- for stdin)")
	cmd.Flags().Float64Var(&rate, "reading-rate", claim.DefaultReadingRate, "words per minute for the reading time estimate")
	return cmd
}

func runClaimset(cmd *cobra.Command, args []string, file string, rate float64) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	text, err := readInput(cmd, args, file)
	if err != nil {
		return err
	}
	parser, err := cliCtx.deps.NewParser(cliCtx.Config.NLP, cliCtx.Logger)
	if err != nil {
		return fmt.Errorf("build parser: %w", err)
	}
	set, err := parser.ParseSet(text)
	if err != nil {
		return err
	}

	summary := summarize(set, rate)
	out := cmd.OutOrStdout()
	switch cliCtx.OutputFormat {
	case OutputJSON:
		return printJSON(out, summary)
	case OutputTable:
		rows := make([][]string, 0, set.Count())
		for _, e := range summary.Claims {
			num := "-"
			if e.Number != nil {
				num = strconv.Itoa(*e.Number)
			}
			dep := "-"
			if e.Dependency != 0 {
				dep = strconv.Itoa(e.Dependency)
			}
			rows = append(rows, []string{num, string(e.Category), dep,
				strconv.Itoa(e.Words), strconv.Itoa(len(e.NounPhrases)), truncate(e.Text, 60)})
		}
		renderTable(out, []string{"NUMBER", "CATEGORY", "DEPENDS ON", "WORDS", "PHRASES", "TEXT"}, rows)
	default:
		printTree(out, set, summary.Tree)
		fmt.Fprintf(out, "\n%d claims, %d words, about %.1f min to read\n",
			set.Count(), summary.WordCount, summary.ReadingTime)
	}
	for _, w := range summary.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", color.YellowString("Warning:"), w)
	}
	return nil
}

func summarize(set *claim.Claimset, rate float64) claimsetSummary {
	s := claimsetSummary{
		Tree:        set.DependencyTree(),
		WordCount:   set.WordCount(),
		ReadingTime: set.ReadingTime(rate),
	}
	for _, c := range set.Claims() {
		e := claimsetEntry{
			Category:    c.Category(),
			Dependency:  c.Dependency(),
			Words:       c.WordCount(),
			NounPhrases: c.NounPhrases(),
			Text:        c.Text(),
		}
		if n, ok := c.Number(); ok {
			e.Number = &n
		}
		s.Claims = append(s.Claims, e)
	}
	if err := set.CheckNumbering(); err != nil {
		s.Warnings = append(s.Warnings, err.Error())
	}
	for _, o := range s.Tree.Orphans {
		s.Warnings = append(s.Warnings, fmt.Sprintf("claim %d depends on a claim missing from the set", o))
	}
	return s
}

// printTree prints each independent claim followed by its dependents,
// indented by level.
func printTree(w io.Writer, set *claim.Claimset, tree *claim.DependencyTree) {
	byKey := make(map[int]*claim.Claim, set.Count())
	for i, c := range set.Claims() {
		key := i + 1
		if n, ok := c.Number(); ok {
			key = n
		}
		byKey[key] = c
	}

	var walk func(key, depth int)
	walk = func(key, depth int) {
		c := byKey[key]
		if c == nil || depth > len(byKey) {
			return
		}
		fmt.Fprintf(w, "%s%d. %s\n", strings.Repeat("  ", depth), key, truncate(c.Text(), 70))
		for _, child := range tree.Children[key] {
			walk(child, depth+1)
		}
	}
	for _, root := range tree.Roots {
		walk(root, 0)
	}
	for _, o := range tree.Orphans {
		if c := byKey[o]; c != nil {
			fmt.Fprintf(w, "%s %d. %s\n", color.RedString("?"), o, truncate(c.Text(), 70))
		}
	}
}
