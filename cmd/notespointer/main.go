package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/nupi-ai/notespointer/internal/config"
	npversion "github.com/nupi-ai/notespointer/internal/version"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// OutputFormatter handles output in JSON or human-readable format. It is
// safe for use from window loops.
type OutputFormatter struct {
	jsonMode bool
	out      io.Writer
	errOut   io.Writer
	mu       sync.Mutex
}

// newOutputFormatter creates a new formatter based on the command's --json flag
func newOutputFormatter(cmd *cobra.Command) *OutputFormatter {
	jsonMode, _ := cmd.Flags().GetBool("json")
	return &OutputFormatter{jsonMode: jsonMode, out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr()}
}

// Print outputs data in the appropriate format
func (f *OutputFormatter) Print(data any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if s, ok := data.(string); ok && !f.jsonMode {
		_, err := fmt.Fprintln(f.out, s)
		return err
	}
	var (
		jsonBytes []byte
		err       error
	)
	if f.jsonMode {
		// One object per line keeps streamed updates parseable.
		jsonBytes, err = json.Marshal(data)
	} else {
		jsonBytes, err = json.MarshalIndent(data, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(f.out, string(jsonBytes))
	return err
}

// Success outputs a success message
func (f *OutputFormatter) Success(message string, data map[string]any) error {
	if f.jsonMode {
		output := map[string]any{
			"success": true,
			"message": message,
		}
		for k, v := range data {
			output[k] = v
		}
		return f.Print(output)
	}
	return f.Print(message)
}

// Error outputs an error message
func (f *OutputFormatter) Error(message string, err error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.jsonMode {
		output := map[string]any{
			"success": false,
			"error":   message,
		}
		if err != nil {
			output["details"] = err.Error()
		}
		jsonBytes, _ := json.Marshal(output)
		fmt.Fprintln(f.errOut, string(jsonBytes))
	} else if err != nil {
		fmt.Fprintf(f.errOut, "%s: %v\n", message, err)
	} else {
		fmt.Fprintln(f.errOut, message)
	}
	if err == nil {
		return fmt.Errorf("%s", message)
	}
	return fmt.Errorf("%s: %w", message, err)
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "notespointer",
		Short: "Speaker notes and presenter pointers for reveal-style decks",
		Long: `notespointer drives a presentation deck and its speaker notes window
in-process: the deck window mirrors notes, navigation and pointer positions
to the notes window over cross-window messages.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			debug, _ := cmd.Flags().GetBool("debug")
			setupLogging(cmd.ErrOrStderr(), debug)
		},
	}
	rootCmd.Version = npversion.String()
	rootCmd.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")

	rootCmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("config", "", "Config file (default "+config.GetPaths().Config+")")

	rootCmd.AddCommand(
		newRunCommand(),
		newNotesCommand(),
		newConfigCommand(),
		newVersionCommand(),
	)
	return rootCmd
}

func setupLogging(w io.Writer, debug bool) {
	level := zerolog.WarnLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339})
}

// loadConfig reads the --config file and reports stale files.
func loadConfig(cmd *cobra.Command) (config.File, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if w := npversion.CheckConfigVersion(cfg.Version); w != "" {
		log.Warn().Msg(w)
	}
	return cfg, nil
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
