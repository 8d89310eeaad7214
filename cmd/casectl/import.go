package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	actorrepo "recovery_backend/internal/actors/repository"
	"recovery_backend/internal/actors/resolve"
	"recovery_backend/internal/adapters/storage"
	"recovery_backend/internal/bootstrap"
	"recovery_backend/internal/events"
	reportservice "recovery_backend/internal/reports/service"
	"recovery_backend/internal/uploads"
	"recovery_backend/internal/uploads/repository"
	"recovery_backend/platform/redisx"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type importOptions struct {
	orgID   uuid.UUID
	actorID uuid.UUID
	file    string
	kind    string
}

func importCmd() *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Upload a case or co-applicant file on behalf of an employee",
		Long: `Import runs a bulk upload inline, the same way the api does without a queue.

The employee must have organization-wide access.

Examples:
  casectl import --org <uuid> --actor <uuid> --file march.xlsx
  casectl import --org <uuid> --actor <uuid> --file co.csv --type coapplicants`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, opts)
		},
	}

	var org, actor string
	cmd.Flags().StringVar(&org, "org", "", "organization id (required)")
	cmd.Flags().StringVar(&actor, "actor", "", "employee id the upload is recorded under (required)")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "path to a .csv, .xlsx or .xls file (required)")
	cmd.Flags().StringVarP(&opts.kind, "type", "t", repository.KindCases, "upload type: cases or coapplicants")
	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("actor")
	_ = cmd.MarkFlagRequired("file")

	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		if opts.orgID, err = uuid.Parse(strings.TrimSpace(org)); err != nil {
			return fmt.Errorf("invalid --org: %w", err)
		}
		if opts.actorID, err = uuid.Parse(strings.TrimSpace(actor)); err != nil {
			return fmt.Errorf("invalid --actor: %w", err)
		}
		return nil
	}

	return cmd
}

func runImport(cmd *cobra.Command, opts importOptions) error {
	info, err := os.Stat(opts.file)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	e, err := setup(ctx, false)
	if err != nil {
		return err
	}
	defer e.Close()

	employee, err := actorrepo.New(e.pool).GetEmployee(ctx, opts.orgID, opts.actorID)
	if err != nil {
		return err
	}

	storageSvc, err := bootstrap.Storage(ctx, e.cfg, e.log)
	if err != nil {
		return err
	}
	redisClient, err := bootstrap.Redis(ctx, e.cfg, e.log)
	if err != nil {
		return err
	}

	eventBus := events.NewInMemoryBus(e.log)
	var locker *redisx.Locker
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
		locker = redisx.NewLocker(redisClient, "recovery:lock:")
		reportservice.NewInvalidator(redisx.NewJSONCache(redisClient, "recovery:cache:", e.cfg.GetDashboardCacheTTL())).Subscribe(eventBus)
	}

	svc := uploads.NewService(e.pool, eventBus, storageSvc, e.cfg.GetMinioBucketCaseUploads(), e.cfg, locker, e.log)
	file := &storage.Attachment{
		FileName: filepath.Base(opts.file),
		Size:     info.Size(),
		Open: func() (io.ReadCloser, error) {
			return os.Open(opts.file)
		},
	}

	job, err := svc.Submit(ctx, resolve.Actor(employee), opts.kind, file)
	eventBus.Wait()
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), job)
}
