package main

import (
	"fmt"
	"log"
	"strings"

	"github.com/zulandar/relay/internal/config"
	"github.com/zulandar/relay/internal/messaging"
)

// loadConfig reads the config file, falling back to defaults with a
// warning, then applies env overrides.
func loadConfig(g *globalOpts) (*config.Config, error) {
	cfg, warn := config.LoadOrDefault(g.configPath)
	if warn != nil {
		log.Printf("warning: %v", warn)
	}
	if err := config.LoadEnv(cfg, g.envFile); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	return cfg, nil
}

// openStore loads the config and opens the message store it selects.
func openStore(g *globalOpts) (*config.Config, messaging.Store, error) {
	cfg, err := loadConfig(g)
	if err != nil {
		return nil, nil, err
	}
	store, err := messaging.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, store, nil
}

// checkParticipant accepts the manager and every configured worker.
func checkParticipant(cfg *config.Config, role string) error {
	if role == config.ManagerRole || cfg.IsWorker(role) {
		return nil
	}
	return fmt.Errorf("unknown role %q (want %s or one of: %s)",
		role, config.ManagerRole, strings.Join(cfg.Workers, ", "))
}
