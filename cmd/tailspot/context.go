package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"tailspot/internal/config"
	"tailspot/internal/store"
)

type commandContext struct {
	apiFlag    *string
	configFlag *string
	jsonFlag   *bool

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error
}

func newCommandContext(apiFlag, configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		apiFlag:    apiFlag,
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolvedPath, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolvedPath
		c.configExists = exists
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// JSONMode reports whether the user asked for machine-readable output.
func (c *commandContext) JSONMode() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// apiAddress resolves the daemon address, preferring the --api flag over
// the configured bind address.
func (c *commandContext) apiAddress() string {
	if c.apiFlag != nil {
		if addr := strings.TrimSpace(*c.apiFlag); addr != "" {
			return addr
		}
	}
	if cfg := c.configValue(); cfg != nil {
		return cfg.Paths.APIBind
	}
	return ""
}

// withClient requires a running daemon. Commands that steer the dispatcher
// (pause, resume, concurrency) refuse to run without one.
func (c *commandContext) withClient(fn func(*apiClient) error) error {
	client, err := c.dialClient()
	if err != nil {
		return err
	}
	return fn(client)
}

func (c *commandContext) dialClient() (*apiClient, error) {
	client := newAPIClient(c.apiAddress())
	if err := client.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("connect to daemon at %s: %w (start it with `tailspot serve`)", client.base, err)
	}
	return client, nil
}

// withServices prefers the daemon API and falls back to direct store access
// when no daemon answers. Exactly one of the two arguments is non-nil; the
// store, when opened, is closed after fn returns.
func (c *commandContext) withServices(fn func(client *apiClient, st *store.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}

	client := newAPIClient(c.apiAddress())
	if err := client.Ping(context.Background()); err == nil {
		return fn(client, nil)
	}

	st, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	return fn(nil, st)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
