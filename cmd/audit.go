package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reputationai/reputation-audit/internal/audit"
	"github.com/reputationai/reputation-audit/internal/model"
)

var auditReq audit.Request

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Run a single reputation audit and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		run, err := env.Service.Start(ctx, auditReq)
		if err != nil {
			return eris.Wrap(err, "cmd: start audit")
		}

		if run.Status == model.StatusSelectionRequired {
			zap.L().Warn("multiple directory matches, re-run with --skip-directory-lookup or resolve via the API",
				zap.String("audit_id", run.ID))
			return printJSON(run.Candidates)
		}

		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return eris.Wrap(ctx.Err(), "cmd: audit interrupted")
			case <-ticker.C:
			}

			run, err = env.Service.Get(ctx, run.ID)
			if err != nil {
				return eris.Wrap(err, "cmd: poll audit")
			}

			switch run.Status {
			case model.StatusSuccess:
				return printJSON(run.Result)
			case model.StatusError:
				zap.L().Error("audit failed",
					zap.String("code", run.ErrorCode),
					zap.String("message", run.Error))
				return eris.Errorf("cmd: audit failed: %s", run.ErrorCode)
			}
		}
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "cmd: encode result")
}

func init() {
	auditCmd.Flags().StringVar(&auditReq.OwnerID, "owner", "cli", "owner identifier for quota accounting")
	auditCmd.Flags().StringVar(&auditReq.Name, "name", "", "business name")
	auditCmd.Flags().StringVar(&auditReq.Domain, "domain", "", "business website domain")
	auditCmd.Flags().StringVar(&auditReq.Location, "location", "", "business location hint")
	auditCmd.Flags().StringVar(&auditReq.Phone, "phone", "", "business phone number")
	auditCmd.Flags().StringVar(&auditReq.Country, "country", "", "two-letter country code")
	auditCmd.Flags().StringVar(&auditReq.Industry, "industry", "", "business industry")
	auditCmd.Flags().BoolVar(&auditReq.SkipDirectoryLookup, "skip-directory-lookup", false, "skip place directory disambiguation")
	rootCmd.AddCommand(auditCmd)
}
