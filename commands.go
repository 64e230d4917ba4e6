package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stevemurr/flash-survey/dashboard"
	"github.com/stevemurr/flash-survey/export"
	"github.com/stevemurr/flash-survey/handler"
	"github.com/stevemurr/flash-survey/logging"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(a.context(cmd.Context()), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := handler.New(a.store, handler.Config{
		Exporter:       a.exporter,
		Dates:          a.dates,
		ProgressTarget: a.cfg.ProgressTarget,
		AllowedOrigins: a.cfg.AllowedOrigins,
		Logger:         a.logger,
		OnLogout: func(ctx context.Context) error {
			logging.FromContext(ctx).Info(ctx, "admin logged out")
			return nil
		},
	})

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info(ctx, "flash survey server starting",
			zap.String("addr", a.cfg.HTTPAddr),
			zap.String("store", a.cfg.StoreBackend),
			zap.String("data_dir", a.cfg.DataDir),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write all submissions to a dated CSV file",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", ".", "directory to write the CSV into")
}

func runExport(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := a.context(cmd.Context())

	subs, err := a.store.GetAll(ctx)
	if err != nil {
		return err
	}
	sink := &export.DirSink{Dir: exportOut}
	if _, err := a.exporter.Export(ctx, subs, sink); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "exported %d submissions to %s\n", len(subs), sink.Path)
	return nil
}

var statsQuery string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the dashboard summary and responses",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().StringVarP(&statsQuery, "q", "q", "", "only show responses containing this text")
}

func runStats(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := a.context(cmd.Context())

	subs, err := a.store.GetAll(ctx)
	if err != nil {
		return err
	}
	st := dashboard.Summarize(subs, a.cfg.ProgressTarget)

	out := cmd.OutOrStdout()
	last := "No data"
	if st.LastSubmittedAt != nil {
		last = a.dates.Format(*st.LastSubmittedAt)
	}
	fmt.Fprintf(out, "Total responses: %d\n", st.Total)
	fmt.Fprintf(out, "Last submission: %s\n", last)
	fmt.Fprintf(out, "Target progress: %d%% of %d\n\n", st.ProgressPercent, st.Target)

	rows := dashboard.Rows(dashboard.Filter(subs, statsQuery), a.dates)
	if len(rows) == 0 {
		fmt.Fprintln(out, "No responses found.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tTIME\tNAME\tPHONE\tLOCATION\tCRYPTO EXP\tINTEREST")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Date, r.Time, r.Name, r.Phone, r.Location, r.Crypto, r.Interest)
	}
	return tw.Flush()
}

var clearYes bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every stored submission",
	Args:  cobra.NoArgs,
	RunE:  runClear,
}

func init() {
	clearCmd.Flags().BoolVar(&clearYes, "yes", false, "confirm deleting all submissions")
}

func runClear(cmd *cobra.Command, _ []string) error {
	if !clearYes {
		return errors.New("refusing to delete all submissions without --yes")
	}
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.Clear(a.context(cmd.Context())); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "all submissions deleted")
	return nil
}
