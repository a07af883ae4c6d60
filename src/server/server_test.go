package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finspider/src/config"
	"finspider/src/entity"
)

func TestLoadRegionsExplicit(t *testing.T) {
	s := NewServer()
	s.config = &config.Config{}

	regions, err := s.loadRegions(" 赣州市, 杭州市 ,", false)
	require.NoError(t, err)
	assert.Equal(t, []entity.Region{{Name: "赣州市"}, {Name: "杭州市"}}, regions)
}

func TestLoadRegionsTestMode(t *testing.T) {
	s := NewServer()
	s.config = &config.Config{}

	regions, err := s.loadRegions("", true)
	require.NoError(t, err)
	assert.Len(t, regions, len(defaultTestRegions))
	assert.Equal(t, "赣州市", regions[0].Name)
}

func TestLoadRegionsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regions.txt")
	require.NoError(t, os.WriteFile(path, []byte("赣州市\n\n杭州市\n"), 0644))

	s := NewServer()
	s.config = &config.Config{}
	s.config.Storage.RegionFile = path

	regions, err := s.loadRegions("", false)
	require.NoError(t, err)
	assert.Len(t, regions, 2)
}

// 区域列表文件不可读是配置错误，必须失败而非继续空跑
func TestLoadRegionsMissingFile(t *testing.T) {
	s := NewServer()
	s.config = &config.Config{}
	s.config.Storage.RegionFile = filepath.Join(t.TempDir(), "absent.txt")

	_, err := s.loadRegions("", false)
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	results := []entity.CrawlResult{
		{Region: "赣州市", Success: true, FilesDownloaded: 2},
		{Region: "杭州市", Success: true, FilesDownloaded: 1},
		{Region: "深圳市", Success: false},
	}
	sum := summarize(2024, false, 5, results)

	assert.Equal(t, 2024, sum.TargetYear)
	assert.Equal(t, 5, sum.TotalRegions)
	assert.Equal(t, 2, sum.SuccessCount)
	// 未跑到的区域也计入失败
	assert.Equal(t, 3, sum.FailedCount)
	assert.Equal(t, 3, sum.TotalFiles)
}
