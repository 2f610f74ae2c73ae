// Package main is riskctl, the operator CLI for running and exporting risk
// dashboards without the HTTP server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/riskfabric/cyberrisk/pkg/config"
	"github.com/riskfabric/cyberrisk/pkg/logger"
	"github.com/riskfabric/cyberrisk/pkg/models"
	"github.com/riskfabric/cyberrisk/services/riskengine/internal/app"
	"github.com/riskfabric/cyberrisk/services/riskengine/internal/service"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	noPublish bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "riskctl",
		Short:        "Run and export cyber risk dashboards",
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVar(&opts.noPublish, "no-publish", false, "do not publish dashboard events to Kafka")

	root.AddCommand(newSyncCmd(opts), newSyncAllCmd(opts), newExportCmd(opts))
	return root
}

// withApp loads configuration, wires the stack and hands it to fn. The
// context is cancelled on SIGINT or SIGTERM.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.NewWithWriter(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat).WithService("riskctl")

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, log, app.Options{
		Registerer:        prometheus.NewRegistry(),
		DisablePublishing: opts.noPublish,
	})
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func newSyncCmd(opts *rootOptions) *cobra.Command {
	var (
		org           string
		mode          string
		assessmentIDs []string
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Rebuild the dashboard of one organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			orgID, err := uuid.Parse(org)
			if err != nil {
				return fmt.Errorf("invalid --org %q: %w", org, err)
			}
			sel, err := selectionFromFlags(mode, assessmentIDs)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				res, err := a.Sync.SyncOrg(ctx, orgID, sel, service.TriggerCLI)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&org, "org", "", "organization id")
	cmd.Flags().StringVar(&mode, "mode", "", "assessment selection: active, all or ids (default from config)")
	cmd.Flags().StringSliceVar(&assessmentIDs, "assessment-ids", nil, "assessment ids, implies --mode ids")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}

func newSyncAllCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync-all",
		Short: "Rebuild the dashboards of every organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				res, err := a.Sync.SyncAll(ctx, service.TriggerCLI)
				if err != nil {
					return err
				}
				if err := printJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
				if len(res.Failures) > 0 {
					return fmt.Errorf("%d of %d organizations failed", len(res.Failures), len(res.Failures)+len(res.Runs))
				}
				return nil
			})
		},
	}
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		org string
		out string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the latest dashboard of an organization as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			orgID, err := uuid.Parse(org)
			if err != nil {
				return fmt.Errorf("invalid --org %q: %w", org, err)
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				w := cmd.OutOrStdout()
				if out != "" && out != "-" {
					f, err := os.Create(out)
					if err != nil {
						return err
					}
					defer f.Close()
					w = f
				}
				n, err := a.Dashboard.ExportCSV(ctx, orgID, w)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "exported %d records\n", n)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&org, "org", "", "organization id")
	cmd.Flags().StringVarP(&out, "out", "o", "-", "output file, - for stdout")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}

func selectionFromFlags(mode string, ids []string) (models.Selection, error) {
	sel := models.Selection{Mode: models.SelectionMode(strings.ToLower(mode))}
	if len(ids) > 0 && sel.Mode == "" {
		sel.Mode = models.SelectIDs
	}
	for _, raw := range ids {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			return sel, fmt.Errorf("invalid assessment id %q: %w", raw, err)
		}
		sel.AssessmentIDs = append(sel.AssessmentIDs, id)
	}
	if sel.Mode == "" {
		return sel, nil
	}
	return sel, sel.Validate()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
