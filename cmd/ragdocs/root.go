package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ragdocs/internal/config"
	"ragdocs/internal/logger"
)

// app carries the state shared by every subcommand of one invocation.
type app struct {
	cfgPath string
	verbose bool
	cfg     *config.AppConfig
	logger  *zap.Logger
	comps   *components
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "ragdocs",
		Short: "Index text documents and answer questions from them",
		Long: `ragdocs splits the .txt files of a source directory into overlapping,
sentence-aligned chunks, embeds and stores them, and answers questions by
retrieving whole matching documents as context for a language model.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "path to YAML config file (default ./config.yaml or ~/.config/ragdocs/config.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newIngestCmd(a),
		newRetrieveCmd(a),
		newAskCmd(a),
		newChatCmd(a),
		newServeCmd(a),
		newStatsCmd(a),
		newClearCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	var err error
	if a.cfgPath == "" {
		a.cfg, _, err = config.LoadDefault()
	} else {
		_ = godotenv.Load()
		a.cfg, err = config.Load(a.cfgPath)
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	lc := logger.Config{
		Level: a.cfg.Log.Level,
		File:  a.cfg.Log.File,
		JSON:  a.cfg.Log.JSON,
		// the chat console owns the terminal
		Quiet: cmd.Name() == "chat",
	}
	if a.verbose {
		lc.Level = "debug"
	}
	a.logger, err = logger.New(lc, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	a.comps = newComponents(a.cfg, a.logger)
	return nil
}

// run wraps a command body so backends are closed even when it fails.
func (a *app) run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		defer func() { err = errors.Join(err, a.teardown()) }()
		return fn(cmd, args)
	}
}

func (a *app) teardown() error {
	var errs []error
	if a.comps != nil {
		errs = append(errs, a.comps.Close())
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return errors.Join(errs...)
}

// queryArg joins the positional arguments, or prompts on in when there are none.
func queryArg(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	cmd.Print("Enter your question:\n> ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
