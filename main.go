package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nicehiro/protgraph/internal/config"
	"github.com/nicehiro/protgraph/internal/db"
	"github.com/nicehiro/protgraph/internal/graphstore"
	"github.com/nicehiro/protgraph/internal/logging"
	"github.com/nicehiro/protgraph/internal/metrics"
	"github.com/nicehiro/protgraph/internal/search"
	"github.com/nicehiro/protgraph/internal/server"
)

const version = "0.1.0"

var (
	configPath string
	logLevel   string

	serveAddr string

	queryOut      string
	queryJSON     bool
	queryNodeOnly bool
)

func main() {
	root := &cobra.Command{
		Use:           "protgraph",
		Short:         "Protein neighborhood search and graph viewer",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web UI",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")

	queryCmd := &cobra.Command{
		Use:   "query <identifier>",
		Short: "Run one search and print the panels",
		Args:  cobra.ExactArgs(1),
		RunE:  runQuery,
	}
	queryCmd.Flags().StringVarP(&queryOut, "out", "o", "", "Write the graph SVG to this file")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "Print the whole view as JSON")
	queryCmd.Flags().BoolVar(&queryNodeOnly, "node-only", false, "Only look up the single graph node")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("protgraph %s\n", version)
		},
	}

	root.AddCommand(serveCmd, queryCmd, versionCmd)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads the config and builds the logger.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func storeSettings(cfg *config.Config) graphstore.Settings {
	return graphstore.Settings{
		NodeLabel:      cfg.Neo4j.NodeLabel,
		IDProperty:     cfg.Neo4j.IDProperty,
		LabelProperty:  cfg.Neo4j.LabelProperty,
		WeightProperty: cfg.Neo4j.WeightProperty,
		RowLimit:       cfg.Neo4j.RowLimit,
		Timeout:        cfg.Neo4j.Timeout,
	}
}

func newGraphClient(cfg *config.Config, logger *zap.Logger) *graphstore.Client {
	opener := graphstore.DriverOpener(graphstore.Credentials{
		URI:      cfg.Neo4j.URI,
		Username: cfg.Neo4j.Username,
		Password: cfg.Neo4j.Password,
		Database: cfg.Neo4j.Database,
	})
	return graphstore.NewClient(opener, storeSettings(cfg), logger.Named("graphstore"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	collector := metrics.NewCollector("protgraph")
	client := newGraphClient(cfg, logger)
	records := db.NewStore(cfg.Records.Path, cfg.Records.Table)

	orch, err := search.New(records, client, search.OptionsFromConfig(cfg), collector, logger.Named("search"))
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	// Reload pipeline settings when the config file changes. Connection
	// targets and credentials are read once at startup.
	watcher, err := config.Watch(configPath, logger.Named("config"))
	if err != nil {
		logger.Warn("config reload disabled", zap.Error(err))
	} else {
		defer watcher.Close()
		watcher.OnChange(func(next *config.Config) {
			client.Configure(storeSettings(next))
			if err := orch.Reconfigure(search.OptionsFromConfig(next)); err != nil {
				logger.Warn("failed to apply reloaded config", zap.Error(err))
				return
			}
			logger.Info("config reloaded", zap.String("path", configPath))
		})
	}

	srv, err := server.New(orch, server.Options{AllowedOrigins: cfg.Server.AllowedOrigins}, collector, logger.Named("http"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("\nServing at http://localhost%s\n", addr)
	fmt.Printf("Press Ctrl+C to stop\n\n")
	return srv.ListenAndServe(ctx, addr)
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	client := newGraphClient(cfg, logger)
	if queryNodeOnly {
		return printNode(ctx, client, args[0])
	}

	records := db.NewStore(cfg.Records.Path, cfg.Records.Table)
	orch, err := search.New(records, client, search.OptionsFromConfig(cfg), nil, logger.Named("search"))
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	v, changed := orch.Search(ctx, args[0])
	if !changed {
		return fmt.Errorf("empty query")
	}

	if queryOut != "" {
		if err := os.WriteFile(queryOut, []byte(v.SVG), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", queryOut, err)
		}
	}

	if queryJSON {
		data, err := v.ToJSON()
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	for _, p := range []search.Panel{v.Panels.Records, v.Panels.GraphNode, v.Panels.Stats} {
		fmt.Printf("%s\n%s\n\n", p.Title, p.Text)
	}
	if queryOut != "" {
		fmt.Printf("Graph written to %s\n", queryOut)
	}
	return nil
}

func printNode(ctx context.Context, client *graphstore.Client, identity string) error {
	node, err := client.LookupNode(ctx, identity)
	if err != nil {
		return err
	}
	fmt.Printf("%s (%s)\n", node.Identity, node.Label)
	fmt.Printf("  labels: %v\n", node.Labels)
	keys := make([]string, 0, len(node.Properties))
	for k := range node.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %s: %v\n", k, node.Properties[k])
	}
	return nil
}
