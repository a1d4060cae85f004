package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/linkrelay/linkrelay/internal/links"
	"github.com/linkrelay/linkrelay/internal/logger"
	"github.com/linkrelay/linkrelay/internal/preview"
)

func newRewriteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rewrite [text...]",
		Short: "Print text with shopping and social links shortened (reads stdin without args)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), links.Rewrite(strings.Join(args, " ")))
				return err
			}
			return rewriteLines(cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func rewriteLines(in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if _, err := fmt.Fprintln(out, links.Rewrite(scanner.Text())); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func newPreviewCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "preview <url>",
		Short: "Fetch a shopping page and print the extracted preview record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			log := logger.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)

			url := args[0]
			if !links.IsShoppingURL(url) {
				log.Warn("url is not a recognised shopping link, fetching anyway")
			}
			fetcher := preview.NewFetcher(log, cfg.Preview.UserAgent, cfg.Preview.FetchTimeout())
			rec, err := fetcher.Fetch(cmd.Context(), url)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(rec)
		},
	}
}
