package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vbonduro/shopsync/internal/device"
	"github.com/vbonduro/shopsync/internal/domain"
	"github.com/vbonduro/shopsync/internal/store"
)

func newProvisionCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "provision [payload.json]",
		Short: "Bind the device to a tenant",
		Long: `Bind the device using a provisioning payload issued by the admin
dashboard. The payload is read from the file argument, or from stdin when the
argument is omitted or "-". Any existing binding is replaced.

Example:
  shopsync provision ./device.json
  cat device.json | shopsync provision`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var src io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open payload: %w", err)
				}
				defer func() { _ = f.Close() }()
				src = f
			}

			p, err := device.ParsePayload(src)
			if err != nil {
				return err
			}

			a, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			cfg, err := a.device.Provision(cmd.Context(), p)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "provisioned %s (%s) as device %s\n", cfg.OrgName, cfg.OrgID, cfg.DeviceID)
			return err
		},
	}
}

func newLogoutCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the device binding",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.device.Logout(cmd.Context()); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "device logged out")
			return err
		},
	}
}

// deviceStatus is what the status command prints.
type deviceStatus struct {
	Bound          bool                 `json:"bound"`
	Device         *domain.DeviceConfig `json:"device,omitempty"`
	PendingRecords int                  `json:"pendingRecords"`
	FailedRecords  int                  `json:"failedRecords"`
}

func newStatusCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the binding and the sync backlog as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			st := deviceStatus{}
			cfg, err := a.device.Current(cmd.Context())
			if err != nil {
				return err
			}
			if cfg != nil {
				st.Bound = true
				st.Device = cfg
				pending, err := a.store.Maintenance.List(cmd.Context(), cfg.OrgID, store.MaintenanceFilter{SyncStatus: []domain.SyncStatus{domain.SyncPending}})
				if err != nil {
					return err
				}
				failed, err := a.store.Maintenance.List(cmd.Context(), cfg.OrgID, store.MaintenanceFilter{SyncStatus: []domain.SyncStatus{domain.SyncFailed}})
				if err != nil {
					return err
				}
				st.PendingRecords, st.FailedRecords = len(pending), len(failed)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		},
	}
}
