package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"animsched/internal/app"
)

const (
	drainTimeout = 10 * time.Second
	stopTimeout  = 5 * time.Second
)

var errFinished = errors.New("finished")

func newRunCmd() *cobra.Command {
	var (
		freq   float64
		cycles int
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the scheduler (and the simulation driver if enabled)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if freq < 0 || cycles < 0 {
				return fmt.Errorf("--freq and --cycles must be >= 0")
			}
			return runApp(cmd.Context(), app.Options{FrequencyHz: freq, Cycles: cycles}, nil)
		},
	}
	cmd.Flags().Float64Var(&freq, "freq", 0, "override simulation.frequency_hz")
	cmd.Flags().IntVar(&cycles, "cycles", 0, "stop after n simulated cycles (0 = until signal)")
	return cmd
}

// runApp starts the app and blocks until a signal, a fatal error, or (when
// opts.Cycles > 0) the simulation finished and the backlog drained. after,
// if set, runs once the simulation is done and before draining.
func runApp(parent context.Context, opts app.Options, after func(*app.App) error) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(flagConfig, opts)
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		_ = a.Stop(context.Background(), app.StopFatalError)
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-a.Done():
			return a.Err()
		}
	})
	if opts.Cycles > 0 {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return nil
			case <-a.SimDone():
			}
			if after != nil {
				if err := after(a); err != nil {
					return err
				}
			}
			dctx, dcancel := context.WithTimeout(gctx, drainTimeout)
			defer dcancel()
			if err := a.WaitIdle(dctx); err != nil && gctx.Err() == nil {
				return fmt.Errorf("drain backlog: %w", err)
			}
			return errFinished
		})
	}

	runErr := g.Wait()
	reason := app.StopSignal
	switch {
	case errors.Is(runErr, errFinished):
		reason, runErr = app.StopCompleted, nil
	case runErr != nil:
		reason = app.StopFatalError
	}

	sctx, scancel := context.WithTimeout(context.Background(), stopTimeout)
	defer scancel()
	if err := a.Stop(sctx, reason); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
