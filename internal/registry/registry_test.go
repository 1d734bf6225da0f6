package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sref/mysqlpool/internal/pool"
)

func TestGetOrCreateCachesByRawString(t *testing.T) {
	r := New()
	defer clearAllQuiet(t, r)

	p1, err := r.GetOrCreate("mysql://u:p@host1:3306/db?MaximumPoolSize=5", true)
	require.NoError(t, err)
	require.NotNil(t, p1)

	p2, err := r.GetOrCreate("mysql://u:p@host1:3306/db?MaximumPoolSize=5", true)
	require.NoError(t, err)
	assert.Same(t, p1, p2, "identical raw string must resolve to the same pool")
}

func TestGetOrCreateAliasesNormalizedForm(t *testing.T) {
	r := New()
	defer clearAllQuiet(t, r)

	raw1 := "mysql://u:p@host1:3306/db?MaximumPoolSize=10"
	raw2 := "mysql://u:p@host1:3306/db?MaximumPoolSize=10&Pooling=true"

	p1, err := r.GetOrCreate(raw1, true)
	require.NoError(t, err)
	require.NotNil(t, p1)

	p2, err := r.GetOrCreate(raw2, true)
	require.NoError(t, err)
	assert.Same(t, p1, p2, "two strings normalizing identically must share one pool")
}

func TestGetOrCreateNegativeCachesDisabledPooling(t *testing.T) {
	r := New()
	defer clearAllQuiet(t, r)

	raw := "mysql://u:p@host1:3306/db?Pooling=false"

	p1, err := r.GetOrCreate(raw, true)
	require.NoError(t, err)
	assert.Nil(t, p1)

	p2, err := r.GetOrCreate(raw, true)
	require.NoError(t, err)
	assert.Nil(t, p2)
}

func TestGetOrCreateWithoutCreateDoesNotConstruct(t *testing.T) {
	r := New()
	defer clearAllQuiet(t, r)

	raw := "mysql://u:p@host1:3306/db"

	p1, err := r.GetOrCreate(raw, false)
	require.NoError(t, err)
	assert.Nil(t, p1)

	p2, err := r.GetOrCreate(raw, true)
	require.NoError(t, err)
	require.NotNil(t, p2)

	p3, err := r.GetOrCreate(raw, false)
	require.NoError(t, err)
	assert.Same(t, p2, p3)
}

func TestGetOrCreateInvalidStringErrors(t *testing.T) {
	r := New()
	defer clearAllQuiet(t, r)

	_, err := r.GetOrCreate("not-a-connection-string", true)
	assert.Error(t, err)
}

func TestClearAllDedupsAliasedPools(t *testing.T) {
	r := New()

	raw1 := "mysql://u:p@host1:3306/db?MaximumPoolSize=8"
	raw2 := "mysql://u:p@host1:3306/db?MaximumPoolSize=8&ConnectionReset=true"

	p1, err := r.GetOrCreate(raw1, true)
	require.NoError(t, err)
	p2, err := r.GetOrCreate(raw2, true)
	require.NoError(t, err)
	require.Same(t, p1, p2)

	assert.NoError(t, r.ClearAll(context.Background(), pool.ModeSync))
}

func clearAllQuiet(t *testing.T, r *Registry) {
	t.Helper()
	_ = r.ClearAll(context.Background(), pool.ModeSync)
}
