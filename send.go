package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"jcr/internal/action"
	"jcr/internal/config"
	"jcr/internal/notify"
	"jcr/internal/render"
	"jcr/internal/requestfile"
	"jcr/internal/send"
)

var (
	sendConfigFile string
	sendVars       []string
	sendQuiet      bool
)

var sendCmd = &cobra.Command{
	Use:   "send <request.yaml>",
	Short: "Send a request with comments stripped from its JSON body",
	Long: `Render the request defined in a YAML file, strip comments from its body
when the body type is application/json, send it and report the status.

Variables come from the configuration file, then the request file, then
--var flags, each overriding the previous.`,
	Args: cobra.ExactArgs(1),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVar(&sendConfigFile, "config", "", "Configuration file providing variables and request_timeout")
	sendCmd.Flags().StringArrayVar(&sendVars, "var", nil, "Set a template variable (name=value, repeatable)")
	sendCmd.Flags().BoolVarP(&sendQuiet, "quiet", "q", false, "Do not print the result line")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	setupLogger(os.Stderr, false)

	f, err := requestfile.Load(args[0])
	if err != nil {
		return err
	}

	timeout := 30 * time.Second
	var configVars map[string]string
	if sendConfigFile != "" {
		cfg, err := config.LoadSend(sendConfigFile)
		if err != nil {
			return err
		}
		timeout = time.Duration(cfg.RequestTimeout) * time.Second
		configVars = cfg.Variables
	}

	flagVars, err := parseVars(sendVars)
	if err != nil {
		return err
	}

	sender, err := send.New(timeout, version)
	if err != nil {
		return err
	}

	var notifier action.Notifier = notify.NewLog(slog.Default())
	if !sendQuiet {
		notifier = notify.Multi{notify.NewTerminal(cmd.OutOrStdout()), notifier}
	}

	a := action.New(render.New(configVars, f.Variables, flagVars), sender, notifier)
	_, err = a.Run(cmd.Context(), f.Request)
	return err
}

// parseVars turns name=value pairs into a map.
func parseVars(pairs []string) (map[string]string, error) {
	vars := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --var %q, expected name=value", pair)
		}
		vars[name] = value
	}
	return vars, nil
}
