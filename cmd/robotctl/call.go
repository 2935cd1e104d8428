package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/arloliu/go-robolink/command"
	"github.com/arloliu/go-robolink/commlog"
	"github.com/arloliu/go-robolink/link"
	"github.com/spf13/cobra"
)

func newCallCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "call TOKEN...",
		Short: "Send one-shot command tokens, e.g. PING V:160 M:20 B STATUS",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd.Context(), func(ctx context.Context, c *link.Client) error {
				return runBatch(ctx, cmd.OutOrStdout(), c, a.log, args)
			})
		},
	}
}

func newScriptCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "script FILE",
		Short: "Run the command tokens of FILE, one per line; '#' starts a comment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tokens, err := readScript(args[0])
			if err != nil {
				return err
			}

			return a.withClient(cmd.Context(), func(ctx context.Context, c *link.Client) error {
				return runBatch(ctx, cmd.OutOrStdout(), c, a.log, tokens)
			})
		},
	}
}

func newPingCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the robot answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withClient(cmd.Context(), func(ctx context.Context, c *link.Client) error {
				pong, err := c.Ping(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("✔ PING -> "+pong))

				return nil
			})
		},
	}
}

func readScript(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open script: %w", err)
	}
	defer f.Close()

	var tokens []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		tokens = append(tokens, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read script %s: %w", path, err)
	}

	return tokens, nil
}

// runBatch sends each token in order. A failed token is reported and the
// batch continues; the returned error counts the failures.
func runBatch(ctx context.Context, w io.Writer, c *link.Client, log *commlog.Log, tokens []string) error {
	var sent, failed int
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if token == "" || strings.HasPrefix(token, "#") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if name, _ := command.ParseToken(token); name == "HISTORY" {
			fmt.Fprint(w, history(log))
			continue
		}

		sent++
		result, err := c.Do(ctx, token)
		if err != nil {
			failed++
			fmt.Fprintln(w, errorStyle.Render(fmt.Sprintf("✘ %s -> %v", token, err)))

			continue
		}
		fmt.Fprintln(w, result)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d commands failed", failed, sent)
	}

	return nil
}

func history(log *commlog.Log) string {
	if log.Len() == 0 {
		return "<empty>\n"
	}

	text, _ := log.Format(commlog.FormatText)

	return text + "\n"
}
