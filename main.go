package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/yeremiapane/pos-sync/cloud"
	"github.com/yeremiapane/pos-sync/config"
	"github.com/yeremiapane/pos-sync/database"
	"github.com/yeremiapane/pos-sync/kds"
	"github.com/yeremiapane/pos-sync/realtime"
	"github.com/yeremiapane/pos-sync/router"
	"github.com/yeremiapane/pos-sync/services"
	"github.com/yeremiapane/pos-sync/stores"
	"github.com/yeremiapane/pos-sync/syncer"
	"github.com/yeremiapane/pos-sync/utils"
)

func main() {
	utils.InitLogger()

	root := &cobra.Command{
		Use:   "pos-sync",
		Short: "Multi-channel order synchronization engine for the POS terminal",
	}
	root.AddCommand(serveCmd(), syncCmd(), purgeCmd(), statusCmd())

	if err := root.Execute(); err != nil {
		utils.ErrorLogger.Fatal(err)
	}
}

// app is the composition root. Every service is explicitly constructed and
// tenant-scoped; there is no module-level engine state.
type app struct {
	cfg          *config.Config
	db           *gorm.DB
	kitchen      *stores.KitchenOrderStore
	mappings     *stores.OrderMappingStore
	conn         *realtime.ConnectionManager
	orders       *services.OrderService
	staff        *services.StaffService
	orchestrator *syncer.Orchestrator
	hub          *kds.Hub
	cleanup      *services.CleanupMonitor
}

func buildApp() (*app, error) {
	cfg := config.Load()
	if cfg.TenantID == "" {
		return nil, fmt.Errorf("TENANT_ID is required")
	}

	if cfg.AccessToken != "" {
		if stale, err := utils.TokenNeedsRefresh(cfg.AccessToken, time.Minute); err != nil {
			utils.ErrorLogger.Printf("access token unreadable: %v", err)
		} else if stale {
			utils.ErrorLogger.Printf("access token expired or expiring, backend calls may be rejected")
		}
	}

	db, err := config.InitDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("database init: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("migration: %w", err)
	}

	cloudClient := cloud.NewClient(cfg.APIBaseURL, cfg.AccessToken, cfg.HTTPTimeout)
	kitchen := stores.NewKitchenOrderStore(db, cfg.TenantID)
	mappings := stores.NewOrderMappingStore(db, cfg.TenantID)
	hub := kds.NewHub()

	conn := realtime.NewConnectionManager(
		cfg.WSBaseURL, cfg.TenantID, cfg.DeviceType,
		realtime.NewGorillaDialer(cfg.AccessToken),
		nil,
		realtime.Options{
			BaseDelay:    cfg.ReconnectBaseDelay,
			MaxDelay:     cfg.ReconnectMaxDelay,
			MaxRetries:   cfg.ReconnectMaxRetries,
			QueueLimit:   cfg.OutboundQueueLimit,
			PingInterval: 30 * time.Second,
		},
	)

	deviceID, _ := os.Hostname()
	orders := services.NewOrderService(cfg.TenantID, deviceID, kitchen, mappings, conn, cloudClient, hub)
	conn.SetHandler(orders)

	orchestrator := syncer.NewOrchestrator(db, syncer.StandardDomains(cloudClient, db))
	staff := services.NewStaffService(db, cfg.TenantID)

	cleanup := services.NewCleanupMonitor(kitchen, mappings, orders)
	cleanup.RetentionDays = cfg.RetentionDays

	return &app{
		cfg:          cfg,
		db:           db,
		kitchen:      kitchen,
		mappings:     mappings,
		conn:         conn,
		orders:       orders,
		staff:        staff,
		orchestrator: orchestrator,
		hub:          hub,
		cleanup:      cleanup,
	}, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the engine and the local device API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}

			// First launch pulls the tenant's configuration before anything
			// renders. Partial failures are logged, not fatal.
			if needs, err := a.orchestrator.NeedsInitialSync(a.cfg.TenantID); err == nil && needs {
				utils.InfoLogger.Printf("first launch for tenant %s, running initial sync", a.cfg.TenantID)
				result := a.orchestrator.PerformInitialSync(cmd.Context(), a.cfg.TenantID, false)
				for _, e := range result.Errors {
					utils.ErrorLogger.Printf("initial sync: %s", e)
				}
			}

			a.cleanup.Start()
			defer a.cleanup.Stop()

			// Relay the connection indicator to local displays.
			go func() {
				for status := range a.conn.StatusChanges() {
					a.hub.BroadcastConnectionStatus(status)
				}
			}()

			if err := a.conn.Connect(); err != nil {
				utils.ErrorLogger.Printf("initial connect failed, retrying in background: %v", err)
			}
			defer a.conn.Disconnect()

			if os.Getenv("GIN_MODE") == "release" {
				gin.SetMode(gin.ReleaseMode)
			}
			r := router.SetupRouter(router.Deps{
				TenantID:     a.cfg.TenantID,
				Orders:       a.orders,
				Kitchen:      a.kitchen,
				Mappings:     a.mappings,
				Orchestrator: a.orchestrator,
				Conn:         a.conn,
				Staff:        a.staff,
				Hub:          a.hub,
			})

			utils.InfoLogger.Printf("device API listening on :%s", a.cfg.ListenPort)
			return r.Run(":" + a.cfg.ListenPort)
		},
	}
}

func syncCmd() *cobra.Command {
	var force bool
	var push bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a bulk sync pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}

			go func() {
				for p := range a.orchestrator.Progress() {
					utils.InfoLogger.Printf("sync %3d%% %s", p.Percent, p.Step)
				}
			}()

			var result syncer.Result
			if push {
				result = a.orchestrator.PushAllToCloud(context.Background(), a.cfg.TenantID)
			} else {
				result = a.orchestrator.PerformInitialSync(context.Background(), a.cfg.TenantID, force)
			}

			for _, e := range result.Errors {
				utils.ErrorLogger.Printf("sync error: %s", e)
			}
			if !result.Success {
				return fmt.Errorf("sync finished with %d errors", len(result.Errors))
			}
			utils.InfoLogger.Printf("sync finished in %s", result.Duration)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "run even if the tenant looks synced")
	cmd.Flags().BoolVar(&push, "push", false, "push local state to the cloud instead of pulling")
	return cmd
}

func purgeCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Run the retention sweep once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			a.cleanup.RetentionDays = days
			a.cleanup.RunOnce()
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "retention horizon in days")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the sync watermark and local store counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}

			status, err := a.orchestrator.GetSyncStatus(a.cfg.TenantID)
			if err != nil {
				return err
			}
			if status.LastSyncAt != nil {
				fmt.Printf("last sync:        %s\n", status.LastSyncAt.Format(time.RFC3339))
			} else {
				fmt.Println("last sync:        never")
			}
			fmt.Printf("sync recommended: %v\n", status.SyncRecommended)

			active, err := a.kitchen.GetActive()
			if err != nil {
				return err
			}
			mappings, err := a.mappings.GetActive()
			if err != nil {
				return err
			}
			fmt.Printf("active orders:    %d\n", len(active))
			fmt.Printf("active mappings:  %d\n", len(mappings))
			return nil
		},
	}
}
