package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nadzzz/narrator/internal/auth"
	"github.com/nadzzz/narrator/internal/tts"
)

func newVoicesCmd(load loader) *cobra.Command {
	var gender string
	cmd := &cobra.Command{
		Use:   "voices",
		Short: "List the backend's voices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, ok := tts.ParseGender(gender)
			if !ok {
				return fmt.Errorf("unknown gender %q", gender)
			}
			cfg, err := load()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			voices, err := a.dispatcher.Voices(cmd.Context(), g)
			if err != nil {
				return err
			}
			if len(voices) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No voices listed by the %s backend.\n", a.backend.Name())
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tLANGUAGE\tGENDER")
			for _, v := range voices {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", v.ID, v.Name, v.Language, v.Gender)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&gender, "gender", "", "filter by gender (male, female)")
	return cmd
}

func newLanguagesCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List languages for language-keyed backends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			langs, def := a.dispatcher.Languages()
			if len(langs) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "The %s backend selects voices, not languages.\n", a.backend.Name())
				return nil
			}
			for _, l := range langs {
				marker := " "
				if l.Code == def {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %-4s %s\n", marker, l.Code, l.Name)
			}
			return nil
		},
	}
}

func newHistoryCmd(load loader) *cobra.Command {
	var (
		limit    int
		password string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if !cfg.History.Enabled {
				return errors.New("history is disabled in config")
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.dispatcher.History(cmd.Context(), password, limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "WHEN\tSOURCE\tWORDS\tCHUNKS\tSIZE\tOUTCOME\tREQUEST")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
					humanize.Time(e.CreatedAt), e.Source, e.Words, e.Chunks,
					humanize.Bytes(uint64(e.Bytes)), e.Outcome, e.RequestID)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries")
	cmd.Flags().StringVar(&password, "password", "", "password when the gate is enabled")
	return cmd
}

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for auth.password_hash",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var pw string
			if len(args) == 1 {
				pw = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("reading password: %w", err)
				}
				pw = strings.TrimRight(line, "\r\n")
			}
			if pw == "" {
				return errors.New("empty password")
			}
			hash, err := auth.HashPassword(pw)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
