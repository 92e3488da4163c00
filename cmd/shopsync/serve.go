package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vbonduro/shopsync/internal/cloud"
	"github.com/vbonduro/shopsync/internal/domain"
	"github.com/vbonduro/shopsync/internal/gateway"
	"github.com/vbonduro/shopsync/internal/imagestore/local"
	"github.com/vbonduro/shopsync/internal/ledger"
	"github.com/vbonduro/shopsync/internal/service"
	"github.com/vbonduro/shopsync/internal/supervisor"
	"github.com/vbonduro/shopsync/internal/syncer"
)

func newServeCommand(rootOpts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the LAN gateway and the background synchronizer",
		Long: `Run the device. The gateway and the synchronizer start once the device
is provisioned and stop when it is logged out.

Example:
  shopsync serve --db /data/shopsync.db --addr :8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()
			if addr != "" {
				a.cfg.ListenAddr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "gateway listen address (overrides LISTEN_ADDR)")
	return cmd
}

func newSynchronizer(a *app) *syncer.Synchronizer {
	opts := cloud.Options{
		ConnectTimeout: a.cfg.CloudConnectTimeout,
		RequestTimeout: a.cfg.CloudRequestTimeout,
		Departments:    a.cfg.StaffDepartments,
	}
	newCloud := func(cfg *domain.DeviceConfig) syncer.Cloud {
		return cloud.New(cfg, opts, a.logger)
	}
	retry := syncer.RetryPolicy{Attempts: a.cfg.SyncRetryAttempts, BaseDelay: a.cfg.SyncRetryBaseDelay}
	return syncer.New(a.store, a.device, newCloud, retry, a.logger)
}

func serve(ctx context.Context, a *app) error {
	images, err := local.New(a.cfg.ReceiptImagePath)
	if err != nil {
		return err
	}

	scheduler := syncer.NewScheduler(newSynchronizer(a), a.cfg.SyncInterval, a.logger)

	l := ledger.NewService(a.store.Parts, a.store.Movements, a.logger)
	maintenance := service.NewMaintenanceService(a.store, scheduler, a.logger)
	requests := service.NewRequestService(a.store, a.logger)
	server := gateway.NewServer(gateway.Services{
		Device:      a.device,
		Ledger:      l,
		Maintenance: maintenance,
		Requests:    requests,
		Receipts:    service.NewReceiptService(a.store.Receipts, images, a.logger),
		Shifts:      service.NewShiftService(a.store.Shifts, a.logger),
		Fleet:       service.NewFleetService(a.store, a.logger),
		Snapshot:    service.NewSnapshotService(l, maintenance, requests, a.store.Shifts),
		Sync:        scheduler,
	}, a.logger)

	sup := supervisor.New(a.device, server, scheduler, supervisor.Options{
		Addr:         a.cfg.ListenAddr,
		PollInterval: a.cfg.BindingPollInterval,
	}, a.logger)

	a.logger.Info("shopsync starting", "db", a.cfg.DBPath, "addr", a.cfg.ListenAddr)
	return sup.Run(ctx)
}
