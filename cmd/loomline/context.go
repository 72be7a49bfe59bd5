package main

import (
	"context"
	"strings"
	"sync"

	"loomline/internal/config"
	"loomline/internal/logging"
	"loomline/internal/services"
	"loomline/internal/store"
	"loomline/internal/workflow"
)

type commandContext struct {
	configFlag *string
	actorFlag  *int64

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, actorFlag *int64) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		actorFlag:  actorFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
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

// actorContext stamps the --actor flag into the context so mutations are
// attributed in the activity log.
func (c *commandContext) actorContext(ctx context.Context) context.Context {
	if c.actorFlag != nil && *c.actorFlag > 0 {
		return services.WithActorID(ctx, *c.actorFlag)
	}
	return ctx
}

// withStore opens the tracking database for the duration of one command.
func (c *commandContext) withStore(fn func(st *store.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st)
}

// withManager opens the store and wraps it in a workflow manager. The manager
// is drained before the store closes so detached notifications finish.
func (c *commandContext) withManager(fn func(m *workflow.Manager) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	manager := workflow.NewManager(cfg, st, logging.NewNop())
	defer manager.Wait()
	return fn(manager)
}
