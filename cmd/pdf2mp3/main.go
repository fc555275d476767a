// Command pdf2mp3 converts PDF documents into MP3 audio books.
//
// @title       pdf2mp3 API
// @version     0.3.0
// @description Converts PDF documents into MP3 audio with a remote speech service.
// @BasePath    /
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/boxtvsaltogif/pdf-mp3/internal/appinfo"
	"github.com/boxtvsaltogif/pdf-mp3/internal/config"
	"github.com/boxtvsaltogif/pdf-mp3/internal/history"
	"github.com/boxtvsaltogif/pdf-mp3/internal/pipeline"
	"github.com/boxtvsaltogif/pdf-mp3/internal/server"
	"github.com/boxtvsaltogif/pdf-mp3/internal/voices"
)

// cli carries state shared by every subcommand.
type cli struct {
	configFile string
	logLevel   string

	cfg config.Config
	log *slog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if !isShown(err) {
			fmt.Fprintln(os.Stderr, errStyle.Render("Error: ")+err.Error())
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           appinfo.Info.BinaryName,
		Short:         "Convert PDF documents into MP3 audio",
		Version:       appinfo.Version(),
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			bootstrap := newLogger(c.logLevel, "text", os.Stderr)
			cfg, err := loadConfig(c.configFile, c.logLevel, bootstrap)
			if err != nil {
				return err
			}
			c.cfg = cfg
			c.log = newLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
			slog.SetDefault(c.log)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.configFile, "config", "", "config file (default: pdf2mp3.yaml in ., ./configs or the user config dir)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newConvertCmd(c),
		newServeCmd(c),
		newVoicesCmd(),
		newHistoryCmd(c),
		newVersionCmd(),
	)
	return root
}

func newConvertCmd(c *cli) *cobra.Command {
	var (
		output string
		voice  string
	)
	cmd := &cobra.Command{
		Use:   "convert FILE.pdf",
		Short: "Convert a PDF file and write the MP3 next to it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			input := args[0]
			data, err := os.ReadFile(input)
			if err != nil {
				return fmt.Errorf("read %s: %w", input, err)
			}

			a, err := newApp(ctx, c.cfg, c.log, appOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			out := cmd.ErrOrStderr()
			bar := newProgressPrinter(out)
			d, err := a.orch.Run(ctx, pipeline.Input{
				FileName:   filepath.Base(input),
				Data:       data,
				Voice:      voice,
				OnProgress: bar.Update,
			})
			bar.Done()
			if err != nil {
				fmt.Fprintln(out, errStyle.Render(pipeline.UserMessage(err)))
				return &exitError{err: err}
			}
			defer a.orch.Release()

			if output == "" {
				output = filepath.Join(filepath.Dir(input), d.FileName)
			}
			if err := os.WriteFile(output, d.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}

			if w := a.orch.Snapshot().Warning; w != "" {
				fmt.Fprintln(out, warnStyle.Render(w))
			}
			fmt.Fprintf(out, "%s %s (%s)\n",
				okStyle.Render("Conversion complete!"),
				output,
				humanize.Bytes(uint64(d.Len())),
			)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: input name with .mp3)")
	cmd.Flags().StringVar(&voice, "voice", "", "voice ID or name (see `pdf2mp3 voices`)")
	return cmd
}

func newServeCmd(c *cli) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve conversions over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, c.cfg, c.log, appOptions{exportMetrics: true})
			if err != nil {
				return err
			}
			defer a.close()

			if addr == "" {
				addr = c.cfg.ListenAddr
			}
			opts := server.Options{Addr: addr}
			if a.metrics != nil {
				opts.Metrics = a.metrics.Handler
			}
			c.log.Info("starting http server", "addr", addr, "backend", describeBackend(c.cfg))
			return server.New(a.orch, opts, c.log).ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}

func newVoicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "voices",
		Short: "List available voices",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			for _, v := range voices.All() {
				marker := " "
				if v.ID == voices.DefaultID {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %s %s\n", marker, keyStyle.Render(fmt.Sprintf("%-7s", v.ID)), v.String())
			}
		},
	}
}

func newHistoryCmd(c *cli) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently finished conversions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			path := c.cfg.HistoryPath
			if path == "" {
				p, err := config.UserDataPath("history.db")
				if err != nil {
					return err
				}
				path = p
			}
			store, err := history.Open(ctx, path, c.log)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.Recent(ctx, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, dimStyle.Render("No conversions yet."))
				return nil
			}
			for _, e := range entries {
				fmt.Fprintln(out, formatEntry(e))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show")
	return cmd
}

func formatEntry(e history.Entry) string {
	state := okStyle.Render(e.State)
	if e.State != string(pipeline.StateComplete) {
		state = errStyle.Render(e.State)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %-8s %s  voice=%s", dimStyle.Render(humanize.Time(e.FinishedAt)), state, e.FileName, e.Voice)
	if e.Bytes > 0 {
		fmt.Fprintf(&b, "  %s", humanize.Bytes(uint64(e.Bytes)))
	}
	if e.Segments > 0 {
		fmt.Fprintf(&b, "  parts=%d", e.Segments)
	}
	if e.Skipped > 0 {
		b.WriteString("  " + warnStyle.Render(fmt.Sprintf("skipped=%d", e.Skipped)))
	}
	if e.Error != "" {
		b.WriteString("  " + dimStyle.Render(e.Error))
	}
	return b.String()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", appinfo.Info.Name, appinfo.Version(), appinfo.Info.GeneratorID)
		},
	}
}
