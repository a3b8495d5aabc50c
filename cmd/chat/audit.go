package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/spf13/cobra"

	"site-assistant/internal/repository"
)

func newAuditCmd() *cobra.Command {
	var (
		table string
		day   string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List recorded chat exchanges for one day",
		RunE: func(cmd *cobra.Command, _ []string) error {
			when := time.Now().UTC()
			if day != "" {
				parsed, err := time.Parse(time.DateOnly, day)
				if err != nil {
					return fmt.Errorf("invalid --day %q: %w", day, err)
				}
				when = parsed
			}

			cfg, err := awsconfig.LoadDefaultConfig(cmd.Context())
			if err != nil {
				return fmt.Errorf("load AWS config: %w", err)
			}
			repo, err := repository.New(awsdynamodb.NewFromConfig(cfg), table)
			if err != nil {
				return err
			}
			exchanges, err := repo.ListExchanges(cmd.Context(), when, limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "TIME\tCORRELATION\tSTATUS\tREASON\tPROMPT\tREPLY\tHISTORY\tLATENCY")
			for _, ex := range exchanges {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\t%d\t%d\t%dms\n",
					repository.ExchangeTime(ex).Format(time.TimeOnly), ex.CorrelationID, ex.Status, ex.Reason,
					ex.PromptChars, ex.ReplyChars, ex.HistoryTurns, ex.LatencyMillis)
			}
			return tw.Flush()
		},
	}
	f := cmd.Flags()
	f.StringVar(&table, "table", "", "DynamoDB audit table (AUDIT_TABLE)")
	f.StringVar(&day, "day", "", "day to list, YYYY-MM-DD (default today, UTC)")
	f.IntVar(&limit, "limit", 100, "maximum number of exchanges")
	_ = cmd.MarkFlagRequired("table")
	return cmd
}
