package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyDefaults(t *testing.T) {
	c := &Config{}
	c.ApplyDefaults()

	assert.Equal(t, uint32(7), c.HTTP.ProbeTimeout)
	assert.Equal(t, uint32(30), c.HTTP.FetchTimeout)
	assert.Equal(t, []int{2024, 2025}, c.Crawler.TargetYears)
	assert.Equal(t, uint32(5), c.Crawler.Workers)
	assert.Equal(t, 100, c.Crawler.MaxPages)
	assert.Equal(t, []string{"baidu", "bing"}, c.Search.Engines)
	assert.NotEmpty(t, c.HTTP.UserAgent)
}

func TestApplyDefaultsKeepsExplicit(t *testing.T) {
	c := &Config{}
	c.Crawler.TargetYears = []int{2023}
	c.Crawler.Workers = 2
	c.ApplyDefaults()

	assert.Equal(t, []int{2023}, c.Crawler.TargetYears)
	assert.Equal(t, uint32(2), c.Crawler.Workers)
}

func TestTargetYear(t *testing.T) {
	c := &Config{}
	c.Crawler.TargetYears = []int{2023, 2025, 2024}
	assert.Equal(t, 2025, c.TargetYear())
}
