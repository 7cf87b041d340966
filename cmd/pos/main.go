package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xelth-com/eckposgo/internal/config"
	"github.com/xelth-com/eckposgo/internal/database"
	"github.com/xelth-com/eckposgo/internal/handlers"
	"github.com/xelth-com/eckposgo/internal/models"
	"github.com/xelth-com/eckposgo/internal/orders"
	"github.com/xelth-com/eckposgo/internal/realtime"
	"github.com/xelth-com/eckposgo/internal/remote"
	"github.com/xelth-com/eckposgo/internal/state"
	"github.com/xelth-com/eckposgo/internal/store"
	syncengine "github.com/xelth-com/eckposgo/internal/sync"
	"github.com/xelth-com/eckposgo/internal/websocket"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Initialize database (Detects Embedded vs External automatically)
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	// Note: db.Close() is called manually in shutdown handler below

	// 3. Auto-Migrate Schema (Critical for Zero-Config)
	localStore := store.New(db)
	log.Println("🚀 Synchronizing database schema...")
	if err := localStore.Migrate(); err != nil {
		log.Printf("⚠️ Migration warning: %v\n", err)
	} else {
		log.Println("✅ Schema synchronized successfully")
	}

	// 4. Remote authority client (HTTP or Odoo XML-RPC)
	var api remote.API
	switch cfg.Remote.Transport {
	case "odoo":
		odooClient := remote.NewOdooClient(
			cfg.Remote.Odoo.URL,
			cfg.Remote.Odoo.Database,
			cfg.Remote.Odoo.Username,
			cfg.Remote.Odoo.Password,
		)
		if err := odooClient.Authenticate(); err != nil {
			// The node must come up even when the authority is down;
			// the client re-authenticates on first use.
			log.Printf("⚠️ Odoo authentication failed, continuing offline: %v", err)
		}
		api = odooClient
	default:
		api = remote.NewHTTPClient(cfg.Remote.BaseURL, cfg.Remote.Timeout)
	}

	// 5. Sync stack: connectivity monitor, write queue, replication engine
	log.Println("🔄 Initializing Sync Engine...")
	syncCfg := config.LoadSyncConfig()

	events := syncengine.NewEventBus()
	monitor := syncengine.NewMonitor(syncCfg.Routes)
	writeQueue := syncengine.NewWriteQueue(localStore, api, events, syncCfg.MaxRetries)
	engine := syncengine.NewEngine(localStore, api, syncCfg, events, monitor)
	engine.AttachQueue(writeQueue)

	// Drain the queue and catch up whenever connectivity returns
	monitor.Subscribe(func(online bool) {
		if !online {
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			if err := writeQueue.ProcessQueue(ctx); err != nil {
				log.Printf("⚠️ Queue drain after reconnect failed: %v", err)
			}
			engine.RequestFullSync()
		}()
	})

	monitor.Start()
	if syncCfg.Enabled {
		if err := engine.Start(); err != nil {
			log.Printf("⚠️ Sync Engine: Failed to start: %v", err)
		} else {
			log.Println("✅ Sync Engine: Started successfully")
		}
	}

	// 6. Realtime venue event channel (guest pager / service calls)
	channel := realtime.NewChannel(cfg.Realtime)
	channel.Start()

	// 7. Reconciled table state facade
	facade := state.New(localStore, channel)

	// 8. Terminal websocket hub
	hub := websocket.NewHub()
	go hub.Run()

	// Fan state changes out to the connected terminals
	facade.Subscribe(func(update state.Update) {
		hub.Broadcast(map[string]interface{}{
			"type":     "TABLE_UPDATE",
			"table_id": update.TableID,
			"reason":   update.Reason,
		})
	})
	localStore.Subscribe(func(change models.Change) {
		if change.Collection == models.CollectionOrders || change.Collection == models.CollectionTables {
			tableID := ""
			if order, err := localStore.GetOrder(change.DocumentID); err == nil {
				tableID = order.TableID
			} else if change.Collection == models.CollectionTables {
				tableID = change.DocumentID
			}
			facade.Invalidate(tableID, "store_"+string(change.Op))
		}
	})
	channel.OnEvent(func(event realtime.VenueEvent) {
		facade.Invalidate(event.TableID, string(event.Kind))
	})
	events.Subscribe(func(event syncengine.Event) {
		hub.Broadcast(map[string]interface{}{
			"type":       "SYNC_EVENT",
			"event":      event.Type,
			"collection": event.Collection,
			"table_id":   event.TableID,
		})
	})

	// 9. Order service
	orderService := orders.NewService(localStore, api, writeQueue, monitor, engine, cfg.TaxRate)

	// 10. HTTP router
	router := handlers.NewRouter(handlers.Deps{
		Store:    localStore,
		Orders:   orderService,
		Facade:   facade,
		Engine:   engine,
		Queue:    writeQueue,
		Monitor:  monitor,
		Channel:  channel,
		Hub:      hub,
		Instance: cfg.InstanceID,
	})

	// 11. Start server with graceful shutdown
	port := cfg.Port
	if port == "" {
		port = "3220"
	}

	server := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	// Channel to listen for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	// Start server in goroutine
	go func() {
		log.Printf("🚀 POS node (%s) starting on port %s\n", cfg.InstanceID, port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	sig := <-shutdown
	log.Printf("\n⚠️  Received signal: %v. Shutting down gracefully...\n", sig)

	// Create context with timeout for graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// Stop background machinery
	channel.Stop()
	engine.Stop()
	monitor.Stop()

	// Close database (this also stops embedded PostgreSQL)
	log.Println("🛑 Closing database connection...")
	if err := db.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("✅ Shutdown complete")
}
