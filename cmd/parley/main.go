package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"parley/internal/config"
	"parley/internal/llm"
	"parley/internal/logging"
	"parley/internal/store"
)

var (
	// Global flags
	configPath string
	dbPath     string
	verbose    bool

	cfg *config.Config
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "parley - phased interview orchestration engine",
	Long: `parley runs structured, multi-phase interviews driven by an LLM agent.

The agent works through fixed phases (core facts, deep dive, writing corpus),
records facts against an objective ledger, ingests uploaded documents into a
content-addressed artifact store, and dispatches isolated sub-agents to distill
evidence-backed knowledge cards.

Run "parley chat" to start a new interview.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if dbPath != "" {
			cfg.Store.DatabasePath = dbPath
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		if err := logging.Initialize(logging.Options{
			Level:       cfg.Logging.Level,
			Development: cfg.Logging.Development,
		}); err != nil {
			return fmt.Errorf("initialize logging: %w", err)
		}
		return nil
	},
}

// chatCmd starts a new interactive interview.
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start a new interview session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat("")
	},
}

// resumeCmd continues a persisted session.
var resumeCmd = &cobra.Command{
	Use:   "resume [session-id]",
	Short: "Resume a persisted interview session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(args[0])
	},
}

// sessionsCmd lists persisted sessions.
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List persisted interview sessions",
	RunE:  listSessions,
}

func listSessions(cmd *cobra.Command, args []string) error {
	st, err := store.Open(cfg.Store.DatabasePath)
	if err != nil {
		return err
	}
	defer st.Close()

	ids, err := st.ListSessions()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Println("No sessions.")
		return nil
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}

// newClient builds the configured LLM client.
func newClient() (llm.Client, error) {
	factory := llm.NewFactory()
	return factory.New(cfg.LLM.Provider)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to session database (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
