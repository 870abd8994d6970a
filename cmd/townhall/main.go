package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/TobiSchelling/townhall/internal/config"
	"github.com/TobiSchelling/townhall/internal/database"
	"github.com/TobiSchelling/townhall/internal/pipeline"
	"github.com/TobiSchelling/townhall/internal/report"
	"github.com/spf13/cobra"
)

var version = "dev"

// errUsage is returned after the usage line has already been printed.
var errUsage = errors.New("missing input file")

var (
	verbose    bool
	configPath string
	outputPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "townhall <input_csv>",
	Short:         "Summarize and theme townhall questions with a local LLM",
	Long:          "townhall reads comments from the first column of a CSV, asks a local language model for a read-aloud summary and a short theme, and writes original_question,summary,theme to output.csv.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			fmt.Println("Usage: townhall <input_csv>")
			return errUsage
		}
		if len(args) > 1 {
			return fmt.Errorf("expected one input file, got %d arguments", len(args))
		}
		return nil
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
	RunE: runBatch,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output CSV path (default output.csv)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(runsCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	inputPath := args[0]
	out := outputPath
	if out == "" {
		out = cfg.GetOutputPath()
	}

	var db *database.DB
	if cfg.Journal.Enabled {
		var err error
		db, err = database.Open(cfg.GetJournalPath())
		if err != nil {
			log.Printf("Journal disabled for this run: %v", err)
		} else {
			defer db.Close()
		}
	}

	pipe, err := pipeline.New(cfg, db, os.Stdout)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := pipe.Run(ctx, inputPath, out)
	if verbose {
		for _, step := range result.Steps {
			if step.Err != nil {
				log.Printf("%s: error: %v", step.Name, step.Err)
			} else {
				log.Printf("%s: %s", step.Name, step.Summary)
			}
		}
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("interrupted after %d rows; %s holds the rows written so far", result.Stats.Rows, out)
	}
	return err
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("townhall", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to ~/.config/townhall/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to change the model, the prompt, or to enable the run journal.")
		return nil
	},
}

// --- report command ---

var (
	reportHTML  string
	reportTitle string
)

var reportCmd = &cobra.Command{
	Use:   "report <output_csv>",
	Short: "Group an output table by theme for the moderator",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, err := report.Load(args[0])
		if err != nil {
			return err
		}
		r := report.Build(reportTitle, rows)

		if reportHTML == "" {
			fmt.Print(r.Markdown())
			return nil
		}

		page, err := r.HTML()
		if err != nil {
			return err
		}
		if err := os.WriteFile(reportHTML, []byte(page), 0o644); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		fmt.Printf("Wrote %s (%d questions, %d themes)\n", reportHTML, r.Total, len(r.Groups))
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportHTML, "html", "", "Write an HTML page to this path instead of printing Markdown")
	reportCmd.Flags().StringVar(&reportTitle, "title", "Townhall Questions", "Report title")
}

// --- runs command ---

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List journaled runs or show the rows of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.GetJournalPath()
		if _, err := os.Stat(path); err != nil {
			fmt.Printf("No journal at %s. Set journal.enabled: true in the config to record runs.\n", path)
			return nil
		}

		db, err := database.Open(path)
		if err != nil {
			return err
		}
		defer db.Close()

		if len(args) == 1 {
			return showRun(db, args[0])
		}

		runs, err := db.ListRuns(runsLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded yet.")
			return nil
		}
		for _, r := range runs {
			fmt.Printf("  %s  %s  %-9s %3d rows, %d failed  %s (%s)\n",
				r.ID[:8], deref(r.StartedAt), r.Status, r.RowCount, r.FailureCount, r.InputPath, r.Model)
		}
		return nil
	},
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Number of runs to list")
}

func showRun(db *database.DB, id string) error {
	run, err := db.GetRun(id)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %s not found", id)
	}

	fmt.Printf("Run %s\n", run.ID)
	fmt.Printf("  Input:    %s\n", run.InputPath)
	fmt.Printf("  Output:   %s\n", run.OutputPath)
	fmt.Printf("  Model:    %s (%s)\n", run.Model, run.Provider)
	fmt.Printf("  Status:   %s\n", run.Status)
	fmt.Printf("  Started:  %s\n", deref(run.StartedAt))
	fmt.Printf("  Finished: %s\n", deref(run.FinishedAt))
	if run.Error != nil {
		fmt.Printf("  Error:    %s\n", *run.Error)
	}

	themes, err := db.GetThemeCounts(run.ID)
	if err != nil {
		return err
	}
	if len(themes) > 0 {
		fmt.Println("\nThemes:")
		for _, t := range themes {
			fmt.Printf("  %3d  %s\n", t.Count, t.Theme)
		}
	}

	rows, err := db.GetAnnotations(run.ID)
	if err != nil {
		return err
	}
	fmt.Println("\nRows:")
	for _, a := range rows {
		line := fmt.Sprintf("  [%d] %s", a.RowIndex, oneLine(a.Comment))
		if a.Status != database.StatusOK {
			line += "  (" + a.Status + ")"
		} else {
			line += "  -> " + a.Theme
		}
		fmt.Println(line)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func oneLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 60 {
		s = s[:60] + "..."
	}
	return s
}
