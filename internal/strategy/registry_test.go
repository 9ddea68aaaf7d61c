package strategy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempStrategyPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "strategies.yaml")
}

func TestNewRegistrySeedsDefaults(t *testing.T) {
	path := tempStrategyPath(t)
	r, err := NewRegistry(path)
	require.NoError(t, err)

	snap := r.Snapshot()
	require.Len(t, snap.Strategies, 1)
	assert.Equal(t, KindBBLowerRedTwoGreen, snap.Strategies[0].Logic)
	assert.True(t, snap.Strategies[0].Enabled)

	// 文件应被写出，可供第二个实例读取
	_, err = os.Stat(path)
	require.NoError(t, err)
	r2, err := NewRegistry(path)
	require.NoError(t, err)
	assert.Len(t, r2.Snapshot().Strategies, 1)
}

func TestAddSlugifiesID(t *testing.T) {
	r, err := NewRegistry(tempStrategyPath(t))
	require.NoError(t, err)

	s, err := r.Add(Strategy{Name: "My Dip Buyer", Logic: KindBBLowerRedTwoGreen})
	require.NoError(t, err)
	assert.Equal(t, "my_dip_buyer", s.ID)

	got, ok := r.Get("my_dip_buyer")
	require.True(t, ok)
	assert.Equal(t, "My Dip Buyer", got.Name)
}

func TestAddDuplicateRejected(t *testing.T) {
	r, err := NewRegistry(tempStrategyPath(t))
	require.NoError(t, err)

	_, err = r.Add(Strategy{ID: "x", Name: "X", Logic: KindBBLowerRedTwoGreen})
	require.NoError(t, err)
	_, err = r.Add(Strategy{ID: "x", Name: "X2", Logic: KindBBLowerRedTwoGreen})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestUnknownLogicRejected(t *testing.T) {
	r, err := NewRegistry(tempStrategyPath(t))
	require.NoError(t, err)

	_, err = r.Add(Strategy{Name: "Bad", Logic: "moon_phase"})
	assert.Error(t, err)
}

func TestSetEnabledPersists(t *testing.T) {
	path := tempStrategyPath(t)
	r, err := NewRegistry(path)
	require.NoError(t, err)

	require.NoError(t, r.SetEnabled(string(KindBBLowerRedTwoGreen), false))

	r2, err := NewRegistry(path)
	require.NoError(t, err)
	s, ok := r2.Get(string(KindBBLowerRedTwoGreen))
	require.True(t, ok)
	assert.False(t, s.Enabled)
}

func TestUpdateAndDelete(t *testing.T) {
	r, err := NewRegistry(tempStrategyPath(t))
	require.NoError(t, err)

	s, err := r.Add(Strategy{ID: "custom", Name: "Custom", Logic: KindBBLowerRedTwoGreen})
	require.NoError(t, err)

	s.Description = "updated"
	_, err = r.Update(s)
	require.NoError(t, err)
	got, _ := r.Get("custom")
	assert.Equal(t, "updated", got.Description)

	require.NoError(t, r.Delete("custom"))
	_, ok := r.Get("custom")
	assert.False(t, ok)
	assert.ErrorIs(t, r.Delete("custom"), ErrNotFound)
}

func TestCorruptFileFallsBackToDefaults(t *testing.T) {
	path := tempStrategyPath(t)
	require.NoError(t, os.WriteFile(path, []byte("strategies: {not: [valid"), 0o644))

	r, err := NewRegistry(path)
	require.NoError(t, err)
	snap := r.Snapshot()
	require.Len(t, snap.Strategies, 1)
	assert.Equal(t, KindBBLowerRedTwoGreen, snap.Strategies[0].Logic)
}

func TestSchemaViolationFallsBackToDefaults(t *testing.T) {
	path := tempStrategyPath(t)
	// logic 缺失违反 schema
	require.NoError(t, os.WriteFile(path, []byte("strategies:\n  - name: broken\n"), 0o644))

	r, err := NewRegistry(path)
	require.NoError(t, err)
	assert.Len(t, r.Snapshot().Strategies, 1)
}

func TestProfitOverride(t *testing.T) {
	pct, ok := KindBBLowerRedTwoGreen.ProfitOverride()
	require.True(t, ok)
	assert.InDelta(t, 0.01, pct, 1e-12)

	_, err := ParseLogicKind(" BB_Lower_Red_Two_Green ")
	assert.NoError(t, err)
}
