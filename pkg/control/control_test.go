package control

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeb-dev/codeb/pkg/audit"
	"github.com/codeb-dev/codeb/pkg/config"
	"github.com/codeb-dev/codeb/pkg/engine"
	"github.com/codeb-dev/codeb/pkg/executor"
	"github.com/codeb-dev/codeb/pkg/ports"
	"github.com/codeb-dev/codeb/pkg/registry"
	"github.com/codeb-dev/codeb/pkg/team"
	"github.com/codeb-dev/codeb/pkg/types"
)

func TestKeyedLockSerializes(t *testing.T) {
	l := NewKeyedLock()
	ctx := context.Background()

	var mu sync.Mutex
	var inCritical int
	var maxInCritical int

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(ctx, "web/staging", time.Second)
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			inCritical++
			if inCritical > maxInCritical {
				maxInCritical = inCritical
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inCritical--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	if maxInCritical != 1 {
		t.Errorf("saw %d holders at once, want 1", maxInCritical)
	}
}

func TestKeyedLockIndependentKeys(t *testing.T) {
	l := NewKeyedLock()

	release1, ok := l.TryAcquire("web/staging")
	require.True(t, ok)
	defer release1()

	// A different pair is unaffected.
	release2, ok := l.TryAcquire("web/production")
	require.True(t, ok)
	release2()

	// The held key is not.
	_, ok = l.TryAcquire("web/staging")
	assert.False(t, ok)
}

func TestKeyedLockTimeout(t *testing.T) {
	l := NewKeyedLock()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "web/staging", time.Second)
	require.NoError(t, err)
	defer release()

	_, err = l.Acquire(ctx, "web/staging", 10*time.Millisecond)
	assert.True(t, types.IsKind(err, types.KindBusy), "kind = %s", types.KindOf(err))
}

func newTestController(t *testing.T) (*Controller, *executor.Fake, *config.Config) {
	t.Helper()
	cfg := config.Default()
	cfg.BaseDomain = "codeb.dev"
	cfg.Servers = map[string]config.Server{"app-01": {Host: "10.0.0.10", User: "deploy"}}
	cfg.DevMode = true
	cfg.HealthSettle = 0
	cfg.HealthInterval = time.Millisecond
	cfg.HealthWait = 20 * time.Millisecond
	cfg.LockTimeout = 50 * time.Millisecond

	fake := executor.NewFake()
	reg := registry.NewStore(cfg, fake)
	ledger := ports.NewLedger(cfg, fake)
	auditLog := audit.NewLog(cfg, fake)
	teams := team.NewRegistry(cfg, fake)
	eng := engine.New(cfg, fake, reg, ledger, auditLog)
	return New(cfg, eng, teams, auditLog), fake, cfg
}

func devAuth(role types.Role) *types.AuthContext {
	return &types.AuthContext{TokenID: "dev", TeamID: "dev", Role: role}
}

func TestControllerDeployEndToEnd(t *testing.T) {
	ctl, _, _ := newTestController(t)

	res, err := ctl.Deploy(context.Background(), devAuth(types.RoleMember), engine.DeployRequest{
		Project: "web", Environment: types.EnvStaging, Version: "v1",
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, types.SlotBlue, res.Slot)
}

func TestControllerDeniesViewerMutations(t *testing.T) {
	ctl, fake, _ := newTestController(t)
	viewer := devAuth(types.RoleViewer)
	ctx := context.Background()

	_, err := ctl.Deploy(ctx, viewer, engine.DeployRequest{
		Project: "web", Environment: types.EnvStaging, Version: "v1",
	})
	assert.True(t, types.IsKind(err, types.KindForbidden), "kind = %s", types.KindOf(err))

	// The denial is audited; the deploy never reached the engine.
	assert.NotEmpty(t, fake.CommandsMatching("authz-denied"))
	assert.Empty(t, fake.CommandsMatching("systemctl"))
}

func TestControllerScopesProjects(t *testing.T) {
	ctl, fake, cfg := newTestController(t)
	cfg.DevMode = false
	ctx := context.Background()

	// A real team owning only "shop".
	_, secret, err := ctl.Teams().Bootstrap(ctx, "acme", "Acme")
	require.NoError(t, err)
	owner, err := ctl.Teams().Authenticate(ctx, secret)
	require.NoError(t, err)
	_, err = ctl.Teams().UpdateSettings(ctx, owner, team.SettingsUpdate{AssignProjects: []string{"shop"}})
	require.NoError(t, err)

	_, err = ctl.Deploy(ctx, owner, engine.DeployRequest{
		Project: "web", Environment: types.EnvStaging, Version: "v1",
	})
	assert.True(t, types.IsKind(err, types.KindForbidden), "kind = %s", types.KindOf(err))
	assert.NotEmpty(t, fake.CommandsMatching("authz-denied"))
}

func TestControllerBusyPair(t *testing.T) {
	ctl, _, _ := newTestController(t)

	// Something already holds the pair's lock.
	release, ok := ctl.locks.TryAcquire(lockKey("web", types.EnvStaging))
	require.True(t, ok)
	defer release()

	_, err := ctl.Deploy(context.Background(), devAuth(types.RoleMember), engine.DeployRequest{
		Project: "web", Environment: types.EnvStaging, Version: "v1",
	})
	assert.True(t, types.IsKind(err, types.KindBusy), "kind = %s", types.KindOf(err))

	// A different pair proceeds while the first is held.
	res, err := ctl.Deploy(context.Background(), devAuth(types.RoleMember), engine.DeployRequest{
		Project: "web", Environment: types.EnvProduction, Version: "v1",
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestControllerConcurrentDeploysSamePair(t *testing.T) {
	ctl, _, _ := newTestController(t)

	// Two racing deploys to one pair must serialize: both succeed, and
	// the registry comes out valid with exactly one deployed slot.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = ctl.Deploy(context.Background(), devAuth(types.RoleMember), engine.DeployRequest{
				Project: "web", Environment: types.EnvStaging, Version: "v1",
			})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	st, err := ctl.Status(context.Background(), devAuth(types.RoleViewer), "web", types.EnvStaging)
	require.NoError(t, err)
	require.NoError(t, st.Slots.Validate())
	assert.Equal(t, types.SlotDeployed, st.Slots.Blue.State)
}

func TestControllerStatusAllowsViewer(t *testing.T) {
	ctl, _, _ := newTestController(t)
	ctx := context.Background()

	_, err := ctl.Deploy(ctx, devAuth(types.RoleMember), engine.DeployRequest{
		Project: "web", Environment: types.EnvStaging, Version: "v1",
	})
	require.NoError(t, err)

	st, err := ctl.Status(ctx, devAuth(types.RoleViewer), "web", types.EnvStaging)
	require.NoError(t, err)
	assert.Equal(t, "v1", st.Slots.Blue.Version)
}

func TestControllerListFiltersByTeam(t *testing.T) {
	ctl, fake, cfg := newTestController(t)
	ctx := context.Background()

	_, err := ctl.Deploy(ctx, devAuth(types.RoleMember), engine.DeployRequest{
		Project: "shop", Environment: types.EnvStaging, Version: "v1",
	})
	require.NoError(t, err)
	_, err = ctl.Deploy(ctx, devAuth(types.RoleMember), engine.DeployRequest{
		Project: "web", Environment: types.EnvStaging, Version: "v1",
	})
	require.NoError(t, err)

	fake.Handle("ls "+cfg.SlotRegistryDir(), func(string, executor.Command) (executor.Result, error) {
		return executor.Result{Stdout: "shop-staging.json\nweb-staging.json\n"}, nil
	})

	// Dev tokens see everything.
	all, err := ctl.List(ctx, devAuth(types.RoleViewer))
	require.NoError(t, err)
	assert.Len(t, all, 2)

	// A team sees only its own projects.
	_, secret, err := ctl.Teams().Bootstrap(ctx, "acme", "Acme")
	require.NoError(t, err)
	owner, err := ctl.Teams().Authenticate(ctx, secret)
	require.NoError(t, err)
	_, err = ctl.Teams().UpdateSettings(ctx, owner, team.SettingsUpdate{AssignProjects: []string{"shop"}})
	require.NoError(t, err)
	cfg.DevMode = false

	visible, err := ctl.List(ctx, owner)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "shop", visible[0].Project)
}

func TestScannerSweepReclaimsExpired(t *testing.T) {
	ctl, fake, cfg := newTestController(t)
	ctx := context.Background()

	eng := ctl.eng
	auth := devAuth(types.RoleMember)

	_, err := ctl.Deploy(ctx, auth, engine.DeployRequest{Project: "web", Environment: types.EnvStaging, Version: "v1"})
	require.NoError(t, err)
	_, err = ctl.Promote(ctx, auth, engine.PromoteRequest{Project: "web", Environment: types.EnvStaging})
	require.NoError(t, err)
	_, err = ctl.Deploy(ctx, auth, engine.DeployRequest{Project: "web", Environment: types.EnvStaging, Version: "v2"})
	require.NoError(t, err)
	_, err = ctl.Promote(ctx, auth, engine.PromoteRequest{Project: "web", Environment: types.EnvStaging})
	require.NoError(t, err)

	// Expire the grace window behind the scanner's back.
	ps, err := eng.Registry().Load(ctx, "web", types.EnvStaging)
	require.NoError(t, err)
	past := time.Now().Add(-time.Hour)
	ps.Blue.GraceExpiresAt = &past
	require.NoError(t, eng.Registry().Save(ctx, ps))

	fake.Handle("ls "+cfg.SlotRegistryDir(), func(string, executor.Command) (executor.Result, error) {
		return executor.Result{Stdout: "web-staging.json\n"}, nil
	})

	s := NewScanner(cfg, eng, ctl)
	s.sweep(ctx)

	ps, err = eng.Registry().Load(ctx, "web", types.EnvStaging)
	require.NoError(t, err)
	assert.Equal(t, types.SlotEmpty, ps.Blue.State)
	assert.Equal(t, types.SlotActive, ps.Green.State)
}

func TestScannerSkipsBusyPairs(t *testing.T) {
	ctl, fake, cfg := newTestController(t)
	ctx := context.Background()

	_, err := ctl.Deploy(ctx, devAuth(types.RoleMember), engine.DeployRequest{Project: "web", Environment: types.EnvStaging, Version: "v1"})
	require.NoError(t, err)

	fake.Handle("ls "+cfg.SlotRegistryDir(), func(string, executor.Command) (executor.Result, error) {
		return executor.Result{Stdout: "web-staging.json\n"}, nil
	})

	release, ok := ctl.locks.TryAcquire(lockKey("web", types.EnvStaging))
	require.True(t, ok)
	defer release()

	before := len(fake.CommandsMatching("systemctl --user stop"))
	s := NewScanner(cfg, ctl.eng, ctl)
	s.sweep(ctx)

	// The busy pair was skipped entirely.
	assert.Len(t, fake.CommandsMatching("systemctl --user stop"), before)
}
