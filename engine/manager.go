package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/photomirror/config"
)

// Manager runs an operation over the configured identities, one at a time.
// Identities are independent: one failing never stops the others, and each
// run is guarded by the identity's lock.
type Manager struct {
	cfg   *config.Config
	names []string
	log   *log.Logger
}

// NewManager selects the identities to operate on. An empty only selects all
// configured identities, in name order.
func NewManager(cfg *config.Config, logger *log.Logger, only []string) (*Manager, error) {
	names := make([]string, 0, len(cfg.Identities))
	if len(only) > 0 {
		for _, name := range only {
			if _, ok := cfg.Identities[name]; !ok {
				return nil, fmt.Errorf("unknown identity %q", name)
			}
			names = append(names, name)
		}
	} else {
		for name := range cfg.Identities {
			names = append(names, name)
		}
		sort.Strings(names)
	}

	return &Manager{cfg: cfg, names: names, log: logger}, nil
}

// Identities returns the selected identity names.
func (m *Manager) Identities() []string {
	return m.names
}

// Run executes fn for each selected identity under its run lock. It returns
// an error if any identity failed, after all of them had their turn.
func (m *Manager) Run(ctx context.Context, fn func(ctx context.Context, identity *Identity) error) error {
	var failed int

	for _, name := range m.names {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := m.runOne(ctx, name, fn); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			m.log.Error("identity run failed", "identity", name, "error", err)
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d identities failed", failed, len(m.names))
	}
	return nil
}

func (m *Manager) runOne(ctx context.Context, name string, fn func(ctx context.Context, identity *Identity) error) error {
	identity, err := NewIdentity(name, m.cfg.Identities[name], m.log)
	if err != nil {
		return err
	}
	defer identity.Close() //nolint:errcheck

	if err := identity.Lock(); err != nil {
		return err
	}
	defer func() {
		if err := identity.Unlock(); err != nil {
			m.log.Error("failed to release run lock", "identity", name, "error", err)
		}
	}()

	return fn(ctx, identity)
}
