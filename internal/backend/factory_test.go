package backend

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buchhaltung/internal/config"
	"buchhaltung/internal/core"
)

func TestFromAppConfig(t *testing.T) {
	app := &config.Config{
		DataBackend:       "sqlite",
		LivingAppsBaseURL: "https://example.test/rest",
		AppIDCostGroups:   "aaaaaaaaaaaaaaaaaaaaaaaa",
		SQLiteDBPath:      "/tmp/x.db",
		DataDir:           "./seed",
	}
	cfg, err := FromAppConfig(app)
	require.NoError(t, err)
	assert.Equal(t, SQLiteBackend, cfg.Type)
	assert.Equal(t, "https://example.test/rest", cfg.BaseURL)
	assert.Equal(t, "./seed", cfg.DataDirectory)

	_, err = FromAppConfig(nil)
	assert.Error(t, err)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, Config{Type: "nope"}.Validate())
	assert.Error(t, Config{Type: SQLiteBackend}.Validate())
	assert.Error(t, Config{Type: LivingAppsBackend}.Validate())
	assert.NoError(t, Config{Type: MemoryBackend}.Validate())
}

func TestCreateMemoryBackend(t *testing.T) {
	ctx := context.Background()
	res, err := NewFactory(nil).CreateBackend(ctx, Config{
		Type:            MemoryBackend,
		DataDirectory:   t.TempDir(),
		BaseURL:         "https://example.test/rest",
		AppIDCostGroups: "bbbbbbbbbbbbbbbbbbbbbbbb",
	})
	require.NoError(t, err)
	defer res.Cleanup()

	groups, err := res.Backend.ListCostGroups(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, groups, "memory backend seeds a default chart of accounts")

	ref := res.Backend.CostGroupRef(groups[0].ID)
	assert.True(t, strings.HasPrefix(ref, "https://example.test/rest/apps/bbbbbbbbbbbbbbbbbbbbbbbb/records/"), ref)
}

func TestCreateSQLiteBackend(t *testing.T) {
	ctx := context.Background()
	res, err := NewFactory(nil).CreateBackend(ctx, Config{
		Type:         SQLiteBackend,
		SQLiteDBPath: filepath.Join(t.TempDir(), "buchhaltung.db"),
	})
	require.NoError(t, err)
	defer res.Cleanup()

	ack, err := res.Backend.CreateReceipt(ctx, core.ReceiptFields{Number: core.String("B-1")})
	require.NoError(t, err)
	got, err := res.Backend.GetReceipt(ctx, ack.ID)
	require.NoError(t, err)
	assert.Equal(t, "B-1", got.DisplayName())
}

func TestCreateLivingAppsBackend(t *testing.T) {
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{
		Type:    LivingAppsBackend,
		BaseURL: "https://my.living-apps.de/rest/",
	})
	require.NoError(t, err)
	assert.Equal(t,
		"https://my.living-apps.de/rest/apps/698db1e550eb37f16846d889/records/cccccccccccccccccccccccc",
		res.Backend.CostGroupRef("cccccccccccccccccccccccc"))
	assert.NoError(t, res.Cleanup())

	_, err = NewFactory(nil).CreateBackend(context.Background(), Config{Type: LivingAppsBackend, BaseURL: "ftp://x"})
	assert.Error(t, err)
}
