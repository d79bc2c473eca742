/*
Package main is the entry point for the linechat server.

It is responsible for loading configuration, initializing the global logging
system, building the directory store and the chat hub, starting the TCP chat
listener and the HTTP server (health, account registration, WebSocket
transport), and gracefully handling operating system interrupt signals
(SIGINT, SIGTERM) to ensure a smooth server shutdown.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"linechat/internal/app/chat"
	"linechat/internal/app/db"
	"linechat/internal/app/directory"
	"linechat/internal/configs"
	"linechat/internal/handler"
	"linechat/internal/pkg/logx"
	"linechat/internal/transport"
)

func main() {
	// Command-line flags override the corresponding environment variables.
	chatPort := pflag.Int("chat-port", 0, "TCP chat listener port (overrides CHAT_PORT)")
	httpPort := pflag.Int("http-port", 0, "HTTP listener port (overrides HTTP_PORT)")
	backend := pflag.String("backend", "", "directory backend, file or postgres (overrides DIRECTORY_BACKEND)")
	usersFile := pflag.String("users-file", "", "account file path for the file backend (overrides USERS_FILE)")
	pflag.Parse()

	applyFlagOverrides(*chatPort, *httpPort, *backend, *usersFile)

	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.Environment == "development")
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("chat_port", cfg.ChatPort).
		Int("http_port", cfg.HTTPPort).
		Str("directory_backend", cfg.DirectoryBackend).
		Dur("login_timeout", cfg.LoginTimeout).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Build the directory store for the configured backend.
	store := buildStore(cfg)

	// Initialize the chat hub and its event loop.
	hub := chat.NewHub(store, cfg.LoginTimeout)

	// Start the TCP chat listener.
	tcpServer := transport.NewTCPServer(hub)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.ChatPort)
		if err := tcpServer.ListenAndServe(addr); err != nil {
			logx.Fatal(err, "Chat listener failed to start")
		}
	}()

	// Setup HTTP server and routes
	router := handler.Router(&handler.AppDeps{
		Hub:    hub,
		Store:  store,
		Config: cfg,
	})

	serverAddr := fmt.Sprintf(":%d", cfg.HTTPPort)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("linechat HTTP server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Fatal(err, "Server forced to shutdown")
	}

	tcpServer.Close()
	hub.Shutdown()
	store.Close()

	logx.Info("Server gracefully stopped.")
}

// applyFlagOverrides writes non-default flag values into the environment so
// LoadConfig sees one consistent configuration surface.
func applyFlagOverrides(chatPort, httpPort int, backend, usersFile string) {
	if chatPort != 0 {
		os.Setenv("CHAT_PORT", fmt.Sprintf("%d", chatPort))
	}
	if httpPort != 0 {
		os.Setenv("HTTP_PORT", fmt.Sprintf("%d", httpPort))
	}
	if backend != "" {
		os.Setenv("DIRECTORY_BACKEND", backend)
	}
	if usersFile != "" {
		os.Setenv("USERS_FILE", usersFile)
	}
}

// buildStore constructs the credential store for the configured backend,
// exiting on bootstrap failure.
func buildStore(cfg *configs.AppConfig) directory.Store {
	switch cfg.DirectoryBackend {
	case configs.BackendPostgres:
		pool, err := db.NewPool(cfg.DatabaseDSN)
		if err != nil {
			logx.Fatal(err, "Failed to connect to the account database")
		}
		return directory.NewPGStore(pool, cfg.Domain)

	default:
		store, err := directory.NewFileStore(cfg.UsersFile, cfg.Domain)
		if err != nil {
			logx.Fatal(err, "Failed to load the account file")
		}
		return store
	}
}
