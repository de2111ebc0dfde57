package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/nickyhof/PagerDB"
	"github.com/nickyhof/PagerDB/internal/logging"
	"github.com/nickyhof/PagerDB/ps"
)

// Version is set at build time via -ldflags
var Version = "dev"

// Args are the command line flags. Set flags override the config file.
type Args struct {
	Config string `name:"config" short:"c" help:"YAML config file" type:"path"`

	Listen    string `name:"listen" help:"TCP address to listen on (default :7070)"`
	WebSocket string `name:"websocket" help:"HTTP address for the /ws endpoint"`
	Database  string `name:"database" help:"Database every session opens on connect"`
	Snapshots string `name:"snapshots" help:"Snapshot store directory (memory if empty)" type:"path"`
	Remote    string `name:"remote" help:"Git URL to clone the snapshot store from"`

	TLSCert string `name:"tls-cert" help:"TLS certificate file" type:"path"`
	TLSKey  string `name:"tls-key" help:"TLS key file" type:"path"`

	JWTSecret   string `name:"jwt-secret" env:"PAGERDB_JWT_SECRET" help:"Enable JWT auth with this HMAC secret"`
	JWTIssuer   string `name:"jwt-issuer" help:"Required JWT issuer"`
	JWTAudience string `name:"jwt-audience" help:"Required JWT audience"`

	LogLevel  string `name:"log-level" help:"Log level (debug, info, warn, error)"`
	LogFormat string `name:"log-format" help:"Log format (text, json)"`

	Version kong.VersionFlag `name:"version" help:"Print version information"`
}

// config loads the config file, if any, and applies the flags over it.
func (args *Args) config() (*Config, error) {
	cfg := DefaultConfig()
	if args.Config != "" {
		loaded, err := LoadConfig(args.Config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	override := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	override(&cfg.Listen, args.Listen)
	override(&cfg.WebSocket, args.WebSocket)
	override(&cfg.Database, args.Database)
	override(&cfg.Snapshots, args.Snapshots)
	override(&cfg.Remote, args.Remote)
	override(&cfg.TLS.CertFile, args.TLSCert)
	override(&cfg.TLS.KeyFile, args.TLSKey)
	override(&cfg.Auth.JWTSecret, args.JWTSecret)
	override(&cfg.Auth.Issuer, args.JWTIssuer)
	override(&cfg.Auth.Audience, args.JWTAudience)
	override(&cfg.Log.Level, args.LogLevel)
	override(&cfg.Log.Format, args.LogFormat)

	if args.JWTSecret != "" {
		cfg.Auth.Enabled = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	var args Args
	kong.Parse(&args,
		kong.Name("pagerdb-server"),
		kong.Description("PagerDB server: TCP and WebSocket access to database catalogs"),
		kong.UsageOnError(),
		kong.Vars{"version": Version},
	)

	cfg, err := args.config()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	format, err := logging.ParseFormat(cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logging.InitLogger(os.Stderr, level, format)

	server, err := newServerFromConfig(cfg)
	if err != nil {
		logging.Error("failed to configure server", "error", err)
		os.Exit(1)
	}

	if cfg.TLS.Enabled() {
		err = server.StartTLS(cfg.Listen, cfg.TLS.CertFile, cfg.TLS.KeyFile)
	} else {
		err = server.Start(cfg.Listen)
	}
	if err != nil {
		logging.Error("failed to start server", "error", err)
		os.Exit(1)
	}

	if cfg.WebSocket != "" {
		if err := server.StartWebSocket(cfg.WebSocket); err != nil {
			logging.Error("failed to start websocket server", "error", err)
			server.Stop()
			os.Exit(1)
		}
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Printf("║   PagerDB Server v%-19s ║\n", Version)
	fmt.Println("║   SQLite Catalog Reader and Parser    ║")
	fmt.Println("╚═══════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("Listening on %s\n", server.Addr())
	if addr := server.WebSocketAddr(); addr != "" {
		fmt.Printf("WebSocket on %s%s\n", addr, webSocketPath)
	}
	fmt.Println("Send commands (one per line), 'quit' to disconnect")
	fmt.Println()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logging.Info("shutting down")
	server.Stop()
	logging.Info("server stopped")
}

// newServerFromConfig builds the shared instance and the server around it.
func newServerFromConfig(cfg *Config) (*Server, error) {
	var (
		persistence *ps.Persistence
		err         error
	)
	if cfg.Snapshots == "" {
		persistence, err = ps.NewMemoryPersistence()
	} else {
		var gitUrl *string
		if cfg.Remote != "" {
			gitUrl = &cfg.Remote
		}
		persistence, err = ps.NewFilePersistence(cfg.Snapshots, gitUrl)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize snapshot store: %w", err)
	}

	instance := PagerDB.Open(persistence)
	instance.S3 = cfg.S3
	instance.RemoteAuth = cfg.RemoteAuth

	var server *Server
	if cfg.Auth.Enabled {
		auth := cfg.Auth
		server = NewServerWithAuth(instance, &auth)
	} else {
		server = NewServer(instance, cfg.Identity)
	}
	server.SetDefaultDatabase(cfg.Database)
	server.SetWebSocketConfig(cfg.WebSocketLimits)
	server.SetLocalAccess(cfg.LocalFiles)
	return server, nil
}
