package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/brightclass/keygate/internal/config"
	"github.com/brightclass/keygate/internal/server"
	"github.com/brightclass/keygate/internal/service"
)

const banner = `
 _  _________   ______    _  _____ _____
| |/ / __\ \ \ / / ___|  / \|_   _| ____|
| ' /|  _| \ V / |  _   / _ \ | | |  _|
|_|\_\___|  |_|  \____|/_/ \_\|_| |_____|
`

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
		dev  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Keygate API server",
		Long:  "Start the HTTP server that issues API keys and authorizes platform requests.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(host, port, dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (verbose logging, CORS *)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(host string, port int, dev bool) error {
	fmt.Print(banner)
	fmt.Println()

	// Set up logger
	logLevel := slog.LevelInfo
	if dev || viper.GetString("logging.level") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	// 1. Initialize the SQLite store
	dir := resolveDataDir()
	store, err := config.NewStore(dir)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer store.Close()
	logger.Info("store initialized", "path", dir)

	// 2. Load the YAML config file if one was found
	var fileCfg *config.YAMLConfig
	if used := viper.ConfigFileUsed(); used != "" {
		fileCfg, err = config.LoadYAML(used)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger.Info("config loaded", "path", used)
	}

	// 3. Build the public route table
	var publicRoutes []config.PublicRoute
	if fileCfg != nil {
		publicRoutes = fileCfg.PublicRoutes
	}
	routes := config.NewRouteTable(publicRoutes)

	// 4. Initialize the session verifier and auth service
	jwtSecret := viper.GetString("auth.jwt_secret")
	if jwtSecret == "" {
		if !dev {
			return fmt.Errorf("auth.jwt_secret is required outside development mode (set KEYGATE_AUTH_JWT_SECRET or configure keygate.yaml)")
		}
		jwtSecret = "keygate-dev-secret-change-me"
		logger.Warn("using built-in development jwt secret")
	}
	sessions := service.NewJWTVerifier(jwtSecret)
	authSvc := service.NewAuthService(store, sessions, routes, logger)
	keySvc := service.NewKeyService(store, logger)

	// 5. Build and start the HTTP server
	srvCfg := server.DefaultConfig()
	srvCfg.Host = host
	srvCfg.Port = port
	if fileCfg != nil {
		if fileCfg.Server.Host != "" {
			srvCfg.Host = fileCfg.Server.Host
		}
		if fileCfg.Server.Port != 0 {
			srvCfg.Port = fileCfg.Server.Port
		}
		if fileCfg.Server.ShutdownTimeout != "" {
			if d, err := time.ParseDuration(fileCfg.Server.ShutdownTimeout); err == nil {
				srvCfg.ShutdownTimeout = d
			}
		}
		if len(fileCfg.Server.CORS.Origins) > 0 {
			srvCfg.CORSOrigins = fileCfg.Server.CORS.Origins
		}
		if fileCfg.Auth.APIKeyHeader != "" {
			srvCfg.APIKeyHeader = fileCfg.Auth.APIKeyHeader
		}
		if fileCfg.Auth.RatePerMin > 0 {
			srvCfg.RatePerMinute = fileCfg.Auth.RatePerMin
		}
		srvCfg.AdminSubjects = fileCfg.Auth.AdminSubjects
	}
	if dev {
		srvCfg.CORSOrigins = []string{"*"}
	}

	srv := server.New(srvCfg, store, authSvc, keySvc, logger)

	fmt.Printf("→ Keygate %s\n", versionString())
	fmt.Printf("→ Listening on http://%s:%d\n", srvCfg.Host, srvCfg.Port)
	fmt.Printf("→ Health:  http://%s:%d/healthz\n", srvCfg.Host, srvCfg.Port)
	fmt.Printf("→ API:     http://%s:%d/api/v1\n", srvCfg.Host, srvCfg.Port)
	fmt.Println()

	return srv.ListenAndServe()
}
