package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gate4ai/toolgate/cmd/toolgate-example-server/contacts"
	"github.com/gate4ai/toolgate/gateway"
	"github.com/gate4ai/toolgate/shared"
	"github.com/gate4ai/toolgate/shared/config"
)

// Environment variable names
const (
	EnvDatabaseURL = "TOOLGATE_DATABASE_URL"
	EnvConfigYAML  = "TOOLGATE_CONFIG_YAML"
)

func main() {
	logerConfig := zap.NewProductionConfig()
	logerConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := logerConfig.Build()
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	configDB := flag.String("database-url", "", "PostgreSQL connection string for configuration")
	configYAML := flag.String("config-yaml", "", "Path to YAML configuration file")
	flag.Parse()

	if *configDB != "" && *configYAML != "" {
		logger.Fatal("Cannot specify both database-url and config-yaml")
	}

	dbURL := os.Getenv(EnvDatabaseURL)
	if *configDB != "" {
		dbURL = *configDB
	}
	yamlPath := os.Getenv(EnvConfigYAML)
	if *configYAML != "" {
		yamlPath = *configYAML
	}

	var cfg config.IConfig
	switch {
	case dbURL != "":
		cfg, err = config.NewDatabaseConfig(dbURL, logger)
		if err != nil {
			logger.Fatal("Failed to load database configuration", zap.Error(err))
		}
	case yamlPath != "":
		cfg, err = config.NewYamlConfig(yamlPath, logger)
		if err != nil {
			logger.Fatal("Failed to load YAML configuration", zap.Error(err))
		}
	default:
		cfg = config.NewInternalConfig()
	}
	defer cfg.Close()

	audit := gateway.NewMemoryAuditSink()
	g, err := gateway.New(cfg, logger, gateway.WithAuditSink(audit))
	if err != nil {
		logger.Fatal("Failed to create gateway", zap.Error(err))
	}

	store := contacts.NewStore(logger)
	if err := contacts.Register(g, store); err != nil {
		logger.Fatal("Failed to register contact operations", zap.Error(err))
	}

	ctx := context.Background()
	runDemo(ctx, g, logger)

	logger.Info("Demo finished", zap.Int("auditRecords", len(audit.Records())))
}

// runDemo walks the full guardrail flow: discovery, a shaped listing, a
// blocked bulk delete, and the dry-run plus confirm-token path that
// unblocks it.
func runDemo(ctx context.Context, g *gateway.Gateway, logger *zap.Logger) {
	ops, err := g.ListOperations(ctx, shared.ListParams{}, "")
	if err != nil {
		logger.Fatal("Failed to list operations", zap.Error(err))
	}
	printJSON("operations", ops.Items)

	listing := g.Execute(ctx, &shared.CallRequest{
		CallerID:  "demo",
		Operation: "contacts_list",
		Arguments: shared.Arguments{"pageSize": 3, "compact": true},
	})
	printJSON("contacts_list (compact, page 1)", listing)

	ids := []interface{}{"c-001", "c-002", "c-003", "c-004", "c-005"}

	blocked := g.Execute(ctx, &shared.CallRequest{
		CallerID:  "demo",
		Operation: "contacts_bulk_delete",
		Arguments: shared.Arguments{"ids": ids},
	})
	printJSON("contacts_bulk_delete without confirmation", blocked)

	dry := g.Execute(ctx, &shared.CallRequest{
		CallerID:  "demo",
		Operation: "contacts_bulk_delete",
		Arguments: shared.Arguments{"ids": ids, "dryRun": true},
	})
	printJSON("contacts_bulk_delete dry run", dry)

	committed := g.Execute(ctx, &shared.CallRequest{
		CallerID:  "demo",
		Operation: "contacts_bulk_delete",
		Arguments: shared.Arguments{"ids": ids, "confirmToken": dry.ConfirmToken},
	})
	printJSON("contacts_bulk_delete confirmed", committed)
}

func printJSON(title string, v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("--- %s ---\n(marshal error: %v)\n", title, err)
		return
	}
	fmt.Printf("--- %s ---\n%s\n", title, data)
}
