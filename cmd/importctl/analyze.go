package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"statement-import-backend/internal/config"
	"statement-import-backend/internal/filestore"
	"statement-import-backend/internal/logger"
	"statement-import-backend/internal/models"
	"statement-import-backend/internal/services/imports"
)

// openService connects to the configured database. The raw file is always
// archived in the database from the CLI.
func openService(cfg *config.Config) (*imports.Service, error) {
	db, err := config.InitDB(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	svc := imports.NewService(db, filestore.NewDBStore(db), imports.Options{
		Tolerances:     cfg.Tolerances(),
		WindowSize:     cfg.LedgerWindowSize,
		ConfirmTimeout: cfg.ConfirmTimeout,
		Logger:         logger.New(cfg.LogLevel),
	})
	return svc, nil
}

func newAnalyzeCmd() *cobra.Command {
	var (
		src       sourceFlags
		userID    string
		accountID string
	)
	cmd := &cobra.Command{
		Use:   "analyze FILE",
		Short: "Analyze a statement against an account's ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := uuid.Parse(userID)
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}
			aid, err := uuid.Parse(accountID)
			if err != nil {
				return fmt.Errorf("invalid --account: %w", err)
			}
			format, cfg, err := src.resolve(args[0])
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			appCfg, err := config.Load()
			if err != nil {
				return err
			}
			svc, err := openService(appCfg)
			if err != nil {
				return err
			}

			analysis, err := svc.Analyze(cmd.Context(), imports.AnalyzeRequest{
				UserID:    uid,
				AccountID: aid,
				Filename:  filepath.Base(args[0]),
				Format:    string(format),
				Config:    cfg,
				Data:      data,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			header(out, "import "+analysis.ImportID.String())
			printCandidates(out, analysis.Candidates)
			printSkipped(out, analysis.Skipped)
			printAnalysisSummary(out, analysis.Summary)
			return nil
		},
	}
	src.register(cmd)
	cmd.Flags().StringVarP(&userID, "user", "u", "", "user id")
	cmd.Flags().StringVarP(&accountID, "account", "a", "", "account id")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func newReapCmd() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "reap",
		Short: "Fail imports whose confirmation never finished",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, err := config.Load()
			if err != nil {
				return err
			}
			svc, err := openService(appCfg)
			if err != nil {
				return err
			}
			n, err := svc.FailStale(cmd.Context(), time.Now().UTC().Add(-olderThan))
			if err != nil {
				return err
			}
			green.Fprintf(cmd.OutOrStdout(), "%d stale imports marked failed\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", time.Hour, "minimum time an import must have been processing")
	return cmd
}
