package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nadzzz/narrator/internal/message"
	grpctransport "github.com/nadzzz/narrator/internal/transport/grpc"
)

type sayOptions struct {
	output   string
	file     string
	voice    string
	gender   string
	language string
	rate     string
	password string
	remote   string
	publish  bool
}

func newSayCmd(load loader) *cobra.Command {
	var opts sayOptions
	cmd := &cobra.Command{
		Use:   "say [text...]",
		Short: "Synthesize text into an audio file",
		Long: `Synthesize text into an audio file.

The text comes from the arguments, from --file, or from stdin when neither
is given. With --remote the request is sent to a running narrator over gRPC
instead of using the local backend.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSay(cmd, load, opts, args)
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default voice_output.wav or .mp3)")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "read text from file (- for stdin)")
	cmd.Flags().StringVar(&opts.voice, "voice", "", "voice ID or name")
	cmd.Flags().StringVar(&opts.gender, "gender", "", "voice gender (male, female)")
	cmd.Flags().StringVar(&opts.language, "language", "", "language code for language-keyed backends")
	cmd.Flags().StringVar(&opts.rate, "rate", "normal", "speaking speed (slow, normal, fast)")
	cmd.Flags().StringVar(&opts.password, "password", "", "password when the gate is enabled")
	cmd.Flags().StringVar(&opts.remote, "remote", "", "narrator gRPC address (host:port)")
	cmd.Flags().BoolVar(&opts.publish, "publish", false, "also upload to object storage and print the URL")
	return cmd
}

func runSay(cmd *cobra.Command, load loader, opts sayOptions, args []string) error {
	text, err := readText(cmd.InOrStdin(), opts.file, args)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	req := message.NewRequest("cli")
	req.Text = text
	req.Voice = opts.voice
	req.Gender = opts.gender
	req.Language = opts.language
	req.Rate = opts.rate
	req.Password = opts.password
	req.Publish = opts.publish

	start := time.Now()
	res, err := synthesize(ctx, load, opts.remote, req)
	if err != nil {
		return err
	}

	stderr := cmd.ErrOrStderr()
	for _, n := range res.Notices {
		fmt.Fprintln(stderr, n)
	}
	if res.Error != "" {
		return errors.New(res.Error)
	}

	out := opts.output
	if out == "" {
		out = res.Filename
	}
	if err := os.WriteFile(out, res.Audio, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s, %d chunks) in %s\n",
		out, humanize.Bytes(uint64(len(res.Audio))), res.Chunks, time.Since(start).Round(time.Millisecond))
	if res.URL != "" {
		fmt.Fprintln(cmd.OutOrStdout(), res.URL)
	}
	return nil
}

func synthesize(ctx context.Context, load loader, remote string, req *message.Request) (*message.Result, error) {
	if remote != "" {
		client, err := grpctransport.Dial(remote)
		if err != nil {
			return nil, err
		}
		defer client.Close()
		return client.Synthesize(ctx, req)
	}

	cfg, err := load()
	if err != nil {
		return nil, err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer a.Close()
	return a.dispatcher.Handle(ctx, req)
}

// readText picks the text source: arguments, then --file, then stdin.
func readText(stdin io.Reader, file string, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	var (
		data []byte
		err  error
	)
	switch file {
	case "", "-":
		data, err = io.ReadAll(stdin)
	default:
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return "", fmt.Errorf("reading text: %w", err)
	}
	return string(data), nil
}
