package mapping

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finspider/src/entity"
)

func newTestLogger() *log.Logger {
	logger := log.New()
	logger.SetOutput(ioutil.Discard)
	return logger
}

func TestStorePutGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mappings.json")
	store, err := NewStore(path, newTestLogger())
	require.NoError(t, err)

	// 未尝试过的区域
	_, ok := store.Get("赣州市")
	assert.False(t, ok)

	m := entity.SiteMapping{Gov: "https://www.ganzhou.gov.cn"}
	require.NoError(t, store.Put("赣州市", m))

	got, ok := store.Get("赣州市")
	assert.True(t, ok)
	assert.Equal(t, m, got)
}

func TestStoreMergeNeverDowngrades(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mappings.json")
	store, err := NewStore(path, newTestLogger())
	require.NoError(t, err)

	require.NoError(t, store.Put("赣州市", entity.SiteMapping{Gov: "https://www.ganzhou.gov.cn"}))
	// 空gov不得覆盖已有值，新的fin要补进来
	require.NoError(t, store.Put("赣州市", entity.SiteMapping{Fin: "https://czj.ganzhou.gov.cn"}))

	got, ok := store.Get("赣州市")
	require.True(t, ok)
	assert.Equal(t, "https://www.ganzhou.gov.cn", got.Gov)
	assert.Equal(t, "https://czj.ganzhou.gov.cn", got.Fin)
}

func TestStoreAttemptedButEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mappings.json")
	store, err := NewStore(path, newTestLogger())
	require.NoError(t, err)

	// 解析失败也要记录"已尝试"，与从未尝试可区分
	require.NoError(t, store.Put("不存在市", entity.SiteMapping{}))
	got, ok := store.Get("不存在市")
	assert.True(t, ok)
	assert.True(t, got.Empty())
}

func TestStoreReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mappings.json")
	store, err := NewStore(path, newTestLogger())
	require.NoError(t, err)
	require.NoError(t, store.Put("赣州市", entity.SiteMapping{Gov: "https://www.ganzhou.gov.cn"}))

	reloaded, err := NewStore(path, newTestLogger())
	require.NoError(t, err)
	got, ok := reloaded.Get("赣州市")
	assert.True(t, ok)
	assert.Equal(t, "https://www.ganzhou.gov.cn", got.Gov)
}

func TestStoreSeed(t *testing.T) {
	dir := t.TempDir()
	seedPath := filepath.Join(dir, "seed.json")
	seed := `{"赣州市":{"gov":"https://www.ganzhou.gov.cn","fin":""},"杭州市":{"gov":"https://www.hangzhou.gov.cn","fin":"https://czj.hangzhou.gov.cn"}}`
	require.NoError(t, os.WriteFile(seedPath, []byte(seed), 0644))

	store, err := NewStore(filepath.Join(dir, "mappings.json"), newTestLogger())
	require.NoError(t, err)
	// 已有非空值不被种子的空值覆盖
	require.NoError(t, store.Put("赣州市", entity.SiteMapping{Fin: "https://czj.ganzhou.gov.cn"}))

	require.NoError(t, store.Seed(seedPath))

	got, _ := store.Get("赣州市")
	assert.Equal(t, "https://www.ganzhou.gov.cn", got.Gov)
	assert.Equal(t, "https://czj.ganzhou.gov.cn", got.Fin)

	assert.Len(t, store.Regions(), 2)
}
