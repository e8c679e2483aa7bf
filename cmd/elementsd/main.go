package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nykw2002/elements/config"
	"github.com/nykw2002/elements/internal/analysis"
	"github.com/nykw2002/elements/internal/extract"
	"github.com/nykw2002/elements/internal/llm"
	srv "github.com/nykw2002/elements/internal/server"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	var cfgPath string
	root := &cobra.Command{Use: "elementsd"}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	var serveAddr string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			if serveAddr != "" {
				cfg.Server.Address = serveAddr
			}
			return srv.Run(cfg)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")

	var migDir string
	var migDSN string
	var direction string
	var steps int
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dsn := migDSN
			if dsn == "" {
				cfg := config.LoadConfig(cfgPath)
				var err error
				dsn, err = cfg.Storage.Postgres.DSN()
				if err != nil {
					return err
				}
			}
			return srv.Migrate(migDir, dsn, direction, steps)
		},
	}
	migrate.Flags().StringVar(&migDir, "dir", "file://migrations", "migrations source (file://migrations)")
	migrate.Flags().StringVar(&migDSN, "dsn", "", "postgres DSN (overrides config)")
	migrate.Flags().StringVar(&direction, "direction", "up", "up or down")
	migrate.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")

	var method string
	var prompt string
	analyze := &cobra.Command{
		Use:   "analyze [files...]",
		Short: "Run a one-shot analysis over local files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			if prompt == "" {
				return fmt.Errorf("--prompt is required")
			}

			gateway := llm.NewClient(cfg.LLM, log.New(os.Stderr, "[LLM] ", log.LstdFlags))
			orchLogger := log.New(os.Stderr, "[ORCH] ", log.LstdFlags)
			executor := analysis.NewScriptExecutor(cfg.Analysis.Interpreter, cfg.Analysis.ScriptTimeout, cfg.Analysis.ScratchDir, orchLogger)
			engine := analysis.New(gateway, executor, nil, cfg.Analysis, cfg.LLM, orchLogger)

			extractor := extract.NewExtractor()
			var parts []string
			for _, path := range args {
				text, err := extractor.Extract(path)
				if err != nil {
					return fmt.Errorf("extracting %s: %w", path, err)
				}
				parts = append(parts, "FILE: "+path+"\n"+text)
			}

			result, err := engine.Analyze(context.Background(), analysis.Query{
				Prompt:  prompt,
				Method:  analysis.Method(method),
				Content: strings.Join(parts, "\n\n--- FILE SEPARATOR ---\n\n"),
			})
			if err != nil {
				return err
			}
			fmt.Println(result)
			return nil
		},
	}
	analyze.Flags().StringVar(&method, "method", "extraction", "analysis method (extraction or reasoning)")
	analyze.Flags().StringVar(&prompt, "prompt", "", "question to answer about the files")

	root.AddCommand(serve, migrate, analyze)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
