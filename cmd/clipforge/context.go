package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"clipforge/internal/artifact"
	"clipforge/internal/config"
	"clipforge/internal/ledger"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// openStores opens the ledger and artifact stores behind the configured data
// directories. The returned closer must be deferred.
func (c *commandContext) openStores() (*ledger.Store, *artifact.Store, func(), error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := ledger.Open(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open ledger store: %w", err)
	}
	artifacts, err := artifact.NewStore(cfg.Paths.ArtifactsDir, artifact.WithCompression(cfg.Storage.Compress))
	if err != nil {
		store.Close()
		return nil, nil, nil, fmt.Errorf("open artifact store: %w", err)
	}
	closer := func() {
		store.Close()
	}
	return store, artifacts, closer, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
