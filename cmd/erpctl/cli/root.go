// Package cli implements the erpctl commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/erp-lite/internal/numbering"
	"github.com/odyssey-erp/erp-lite/internal/reports"
	"github.com/odyssey-erp/erp-lite/internal/shared"
	"github.com/odyssey-erp/erp-lite/jobs"
)

// Options configures the command tree.
type Options struct {
	// Backend is opened lazily on first use; tests inject fakes.
	Backend func() (Backend, error)
	Now     func() time.Time
}

// NewRootCommand builds the erpctl command tree.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	var backend Backend
	open := func() (Backend, error) {
		if backend != nil {
			return backend, nil
		}
		b, err := opts.Backend()
		if err != nil {
			return nil, err
		}
		backend = b
		return backend, nil
	}

	root := &cobra.Command{
		Use:           "erpctl",
		Short:         "Operate the ERP database, numbering and background jobs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if backend == nil {
				return nil
			}
			return backend.Close()
		},
	}
	root.AddCommand(
		newMigrateCommand(open),
		newDemoCommand(open, opts.Now),
		newNumberCommand(open, opts.Now),
		newJobsCommand(open),
	)
	return root
}

func newMigrateCommand(open func() (Backend, error)) *cobra.Command {
	cmd := &cobra.Command{Use: "migrate", Short: "Manage the database schema"}
	migrator := func(ctx context.Context) (Migrator, error) {
		b, err := open()
		if err != nil {
			return nil, err
		}
		return b.Migrator(ctx)
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := migrator(cmd.Context())
			if err != nil {
				return err
			}
			if err := m.Up(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}, &cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := migrator(cmd.Context())
			if err != nil {
				return err
			}
			states, err := m.Status(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "VERSION\tNAME\tAPPLIED AT")
			for _, st := range states {
				applied := "pending"
				if st.Applied {
					applied = st.AppliedAt.UTC().Format(time.RFC3339)
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\n", st.Version, st.Name, applied)
			}
			return tw.Flush()
		},
	})
	return cmd
}

func newDemoCommand(open func() (Backend, error), now func() time.Time) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Print product availability and generate a quotation number",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := open()
			if err != nil {
				return err
			}
			rep, err := b.Reports(cmd.Context())
			if err != nil {
				return err
			}
			num, err := b.Numbering(cmd.Context())
			if err != nil {
				return err
			}
			rows, err := rep.ProductAvailability(cmd.Context(), reports.AvailabilityFilter{Category: category})
			if err != nil {
				return err
			}
			number, err := num.NextNumber(cmd.Context(), numbering.Quotation, now())
			if err != nil {
				return err
			}
			writeDemo(cmd.OutOrStdout(), rows, number)
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "only list products in this category")
	return cmd
}

func writeDemo(w io.Writer, rows []reports.AvailabilityRow, quotation string) {
	fmt.Fprintln(w, "\nProduct Availability:")
	for _, row := range rows {
		fmt.Fprintf(w, "%s - Stock: %d, Status: %s\n", row.Name, row.CurrentStock, row.StockStatus)
	}
	fmt.Fprintf(w, "\nGenerated Quotation Number: %s\n", quotation)
}

func newNumberCommand(open func() (Backend, error), now func() time.Time) *cobra.Command {
	cmd := &cobra.Command{Use: "number", Short: "Allocate document numbers"}
	var preview bool
	next := &cobra.Command{
		Use:     "next <type>",
		Short:   "Allocate the next number for a document type",
		Example: "  erpctl number next quotation\n  erpctl number next INV --preview",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := numbering.ParseDocumentType(args[0])
			if err != nil {
				return err
			}
			b, err := open()
			if err != nil {
				return err
			}
			num, err := b.Numbering(cmd.Context())
			if err != nil {
				return err
			}
			allocate := num.NextNumber
			if preview {
				allocate = num.Preview
			}
			number, err := allocate(cmd.Context(), t, now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), number)
			return nil
		},
	}
	next.Flags().BoolVar(&preview, "preview", false, "show the next number without consuming it")
	cmd.AddCommand(next)
	return cmd
}

func newJobsCommand(open func() (Backend, error)) *cobra.Command {
	cmd := &cobra.Command{Use: "jobs", Short: "Enqueue and inspect background jobs"}
	queue := func(ctx context.Context) (JobQueue, error) {
		b, err := open()
		if err != nil {
			return nil, err
		}
		return b.Jobs(ctx)
	}

	var asOf string
	enqueue := &cobra.Command{
		Use:       "enqueue <task>",
		Short:     "Enqueue a background job by task name",
		Long:      fmt.Sprintf("Enqueue a background job. Known tasks: %v", jobs.TaskNames()),
		Args:      cobra.ExactArgs(1),
		ValidArgs: jobs.TaskNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := shared.ParseDate(asOf)
			if err != nil {
				return err
			}
			q, err := queue(cmd.Context())
			if err != nil {
				return err
			}
			info, err := q.Trigger(cmd.Context(), args[0], date)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s as %s on queue %s\n", info.Type, info.ID, info.Queue)
			return nil
		},
	}
	enqueue.Flags().StringVar(&asOf, "as-of", "", "reference date (YYYY-MM-DD); defaults to the run date")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show queue counters as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := queue(cmd.Context())
			if err != nil {
				return err
			}
			st, err := q.InspectQueue(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		},
	}
	cmd.AddCommand(enqueue, stats)
	return cmd
}
