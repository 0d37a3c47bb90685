package cli

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/turtacn/ClaimLens/pkg/client"
	"github.com/turtacn/ClaimLens/pkg/errors"
)

func newRemoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Annotate and query claims through a running API server",
		Long:  "Commands under remote talk to the ClaimLens API at --server.",
	}
	cmd.AddCommand(newRemoteAnnotateCmd(), newRemoteSearchCmd(), newRemoteMentioningCmd(), newRemoteGetCmd())
	return cmd
}

func remoteClient(cmd *cobra.Command) (*CLIContext, *client.ClaimsClient, error) {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return nil, nil, err
	}
	c, err := cliCtx.deps.NewClient(cliCtx.ServerAddr, cliCtx.Timeout)
	if err != nil {
		return nil, nil, err
	}
	return cliCtx, c.Claims(), nil
}

func newRemoteAnnotateCmd() *cobra.Command {
	opts := &parseOptions{}
	var source string
	cmd := &cobra.Command{
		Use:   "annotate [text]",
		Short: "Annotate and store one claim",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, claims, err := remoteClient(cmd)
			if err != nil {
				return err
			}
			text, err := readInput(cmd, args, opts.file)
			if err != nil {
				return err
			}
			req := client.AnnotateRequest{Text: text, Source: source}
			if cmd.Flags().Changed("number") {
				req.Number = &opts.number
			}
			if cmd.Flags().Changed("dependency") {
				req.Dependency = &opts.dependency
			}

			ctx, cancel := cliCtx.commandContext(cmd)
			defer cancel()
			res, err := claims.Annotate(ctx, req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch cliCtx.OutputFormat {
			case OutputJSON:
				return printJSON(out, res)
			case OutputTable:
				rows := make([][]string, len(res.View.Claim.Words))
				for i, w := range res.View.Claim.Words {
					np := ""
					if w.NP != 0 {
						np = strconv.Itoa(w.NP)
					}
					rows[i] = []string{strconv.Itoa(w.ID), w.Word, w.POS, np}
				}
				renderTable(out, []string{"ID", "WORD", "POS", "NP"}, rows)
			default:
				state := color.GreenString("stored")
				if res.Cached {
					state = color.YellowString("cached")
				}
				fmt.Fprintf(out, "%s %s (%s, %d words, %d noun phrases)\n",
					state, res.Claim.ID, res.Claim.Category, len(res.Claim.Words), len(res.Claim.Phrases))
			}
			for _, w := range res.Warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", color.YellowString("Warning:"), w)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.file, "file", "f", "", "read claim text from a file (- for stdin)")
	f.IntVar(&opts.number, "number", 0, "override the claim number")
	f.IntVar(&opts.dependency, "dependency", 0, "override the claim this one depends on")
	f.StringVar(&source, "source", "", "source label stored with the claim")
	return cmd
}

func newRemoteSearchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search PHRASE",
		Short: "Full-text search over stored claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, claims, err := remoteClient(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := cliCtx.commandContext(cmd)
			defer cancel()
			hits, err := claims.Search(ctx, args[0], limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if cliCtx.OutputFormat == OutputJSON {
				return printJSON(out, hits)
			}
			if len(hits) == 0 {
				fmt.Fprintln(out, "no matching claims")
				return nil
			}
			rows := make([][]string, len(hits))
			for i, h := range hits {
				num := "-"
				if h.Number != nil {
					num = strconv.Itoa(*h.Number)
				}
				rows[i] = []string{h.ID.String(), num, h.Category,
					strconv.FormatFloat(h.Score, 'f', 2, 64), truncate(h.Text, 60)}
			}
			renderTable(out, []string{"ID", "NUMBER", "CATEGORY", "SCORE", "TEXT"}, rows)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of hits")
	return cmd
}

func newRemoteMentioningCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "mentioning PHRASE",
		Short: "List claims that mention a noun phrase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, claims, err := remoteClient(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := cliCtx.commandContext(cmd)
			defer cancel()
			ids, err := claims.Mentioning(ctx, args[0], limit)
			if err != nil {
				return err
			}
			return printIDs(cmd, cliCtx, ids)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of claims")
	return cmd
}

func newRemoteGetCmd() *cobra.Command {
	var dependents bool
	cmd := &cobra.Command{
		Use:   "get ID",
		Short: "Fetch a stored claim, or with --dependents the claims depending on it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return errors.Newf(errors.ErrCodeBadRequest, "invalid claim id %q", args[0])
			}
			cliCtx, claims, err := remoteClient(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := cliCtx.commandContext(cmd)
			defer cancel()

			if dependents {
				ids, err := claims.Dependents(ctx, id)
				if err != nil {
					return err
				}
				return printIDs(cmd, cliCtx, ids)
			}
			rec, err := claims.Get(ctx, id)
			if err != nil {
				return err
			}
			if cliCtx.OutputFormat == OutputJSON {
				return printJSON(cmd.OutOrStdout(), rec)
			}
			out := cmd.OutOrStdout()
			num := "-"
			if rec.Number != nil {
				num = strconv.Itoa(*rec.Number)
			}
			fmt.Fprintf(out, "ID:         %s\nNumber:     %s\nCategory:   %s\nDependency: %d\nCreated:    %s\n\n%s\n",
				rec.ID, num, rec.Category, rec.Dependency, rec.CreatedAt.Format("2006-01-02 15:04:05"), rec.Text)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dependents, "dependents", false, "list dependent claim IDs instead")
	return cmd
}

func printIDs(cmd *cobra.Command, cliCtx *CLIContext, ids []uuid.UUID) error {
	out := cmd.OutOrStdout()
	if cliCtx.OutputFormat == OutputJSON {
		return printJSON(out, ids)
	}
	if len(ids) == 0 {
		fmt.Fprintln(out, "none")
		return nil
	}
	for _, id := range ids {
		fmt.Fprintln(out, id.String())
	}
	return nil
}
