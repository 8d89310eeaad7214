package main

import (
	"fmt"
	"strings"
	"time"

	casesrepo "recovery_backend/internal/cases/repository"
	casesservice "recovery_backend/internal/cases/service"
	"recovery_backend/internal/events"
	"recovery_backend/internal/stage"
	"recovery_backend/internal/visibility"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type classifyOptions struct {
	orgID  uuid.UUID
	caseNo string
}

func classifyCmd() *cobra.Command {
	var opts classifyOptions

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Print the stage and signals of one case",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClassify(cmd, opts)
		},
	}

	var org string
	cmd.Flags().StringVar(&org, "org", "", "organization id (required)")
	cmd.Flags().StringVar(&opts.caseNo, "case", "", "case number (required)")
	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("case")

	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(strings.TrimSpace(org))
		if err != nil {
			return fmt.Errorf("invalid --org: %w", err)
		}
		opts.orgID = id
		opts.caseNo = strings.TrimSpace(opts.caseNo)
		return nil
	}

	return cmd
}

type classification struct {
	CaseNo            string      `json:"caseNo"`
	Stage             stage.Stage `json:"stage"`
	Label             string      `json:"label"`
	Expired           bool        `json:"expired"`
	DueEmi            *int        `json:"dueEmi"`
	DueEmiAmount      string      `json:"dueEmiAmount"`
	FutureFollowUps   int         `json:"futureFollowUps"`
	PastFollowUps     int         `json:"pastFollowUps"`
	LastPTPDate       *time.Time  `json:"lastPtpDate"`
	LatestPaymentDate *time.Time  `json:"latestPaymentDate"`
	PaymentCount      int         `json:"paymentCount"`
	IsBrokenPTP       bool        `json:"isBrokenPtp"`
}

func runClassify(cmd *cobra.Command, opts classifyOptions) error {
	ctx := cmd.Context()
	e, err := setup(ctx, false)
	if err != nil {
		return err
	}
	defer e.Close()

	svc := casesservice.New(casesrepo.New(e.pool), events.NewInMemoryBus(e.log), e.cfg.GetPhoneRegion(), e.log)
	result, err := svc.Classify(ctx, visibility.Scope{OrganizationID: opts.orgID, Unrestricted: true}, opts.caseNo)
	if err != nil {
		return err
	}

	sc := result.Case.StageCase()
	sig := result.Signals
	return printJSON(cmd.OutOrStdout(), classification{
		CaseNo:            result.Case.CaseNo,
		Stage:             result.Stage,
		Label:             stage.ListLabel(sc, sig),
		Expired:           result.Case.Expired,
		DueEmi:            result.Case.DueEmi,
		DueEmiAmount:      sc.Due().StringFixed(2),
		FutureFollowUps:   len(sig.FutureFollowUps),
		PastFollowUps:     len(sig.PastFollowUps),
		LastPTPDate:       sig.LastPTPDate,
		LatestPaymentDate: sig.LatestPaymentDate,
		PaymentCount:      sig.PaymentCount,
		IsBrokenPTP:       sig.BrokenPromise(),
	})
}
