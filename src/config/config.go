package config

type Config struct {
	Log struct {
		Context bool   `mapstructure:"context"`
		Level   string `mapstructure:"level"`
	} `mapstructure:"log"`

	HTTP struct {
		ProbeTimeout    uint32  `mapstructure:"probe_timeout"`    // 秒，候选探测，须小于fetch_timeout
		FetchTimeout    uint32  `mapstructure:"fetch_timeout"`    // 秒，页面抓取
		DownloadTimeout uint32  `mapstructure:"download_timeout"` // 秒，文件下载
		RequestDelay    uint32  `mapstructure:"request_delay"`    // 秒，翻页/下载间隔
		RatePerSecond   float64 `mapstructure:"rate_per_second"`
		RateBurst       int     `mapstructure:"rate_burst"`
		UserAgent       string  `mapstructure:"user_agent"`
	} `mapstructure:"http"`

	Crawler struct {
		TargetYears     []int  `mapstructure:"target_years"`
		BlockedYears    []int  `mapstructure:"blocked_years"` // 显式屏蔽的旧年份
		Workers         uint32 `mapstructure:"workers"`
		MaxPages        int    `mapstructure:"max_pages"`
		ExploreMaxPages int    `mapstructure:"explore_max_pages"`
		ExploreMaxDepth int    `mapstructure:"explore_max_depth"`
		SectionHopLimit int    `mapstructure:"section_hop_limit"`
		MaxRetries      int    `mapstructure:"max_retries"`
		FlushEvery      int    `mapstructure:"flush_every"` // 每完成多少区域落盘一次进度
	} `mapstructure:"crawler"`

	Search struct {
		Engines    []string `mapstructure:"engines"`
		MaxVerify  int      `mapstructure:"max_verify"`
		MaxRetries int      `mapstructure:"max_retries"`
	} `mapstructure:"search"`

	Storage struct {
		DownloadDir string `mapstructure:"download_dir"`
		DataDir     string `mapstructure:"data_dir"`
		SeedMapping string `mapstructure:"seed_mapping"`
		RegionFile  string `mapstructure:"region_file"`
	} `mapstructure:"storage"`

	Database struct {
		URL string `mapstructure:"url"` // 可选，为空时不启用归档库
	} `mapstructure:"database"`
}

// ApplyDefaults 填充未配置的字段
func (c *Config) ApplyDefaults() {
	if c.HTTP.ProbeTimeout == 0 {
		c.HTTP.ProbeTimeout = 7
	}
	if c.HTTP.FetchTimeout == 0 {
		c.HTTP.FetchTimeout = 30
	}
	if c.HTTP.DownloadTimeout == 0 {
		c.HTTP.DownloadTimeout = 60
	}
	if c.HTTP.RatePerSecond == 0 {
		c.HTTP.RatePerSecond = 1
	}
	if c.HTTP.RateBurst == 0 {
		c.HTTP.RateBurst = 2
	}
	if c.HTTP.UserAgent == "" {
		c.HTTP.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}
	if len(c.Crawler.TargetYears) == 0 {
		c.Crawler.TargetYears = []int{2024, 2025}
	}
	if c.Crawler.Workers == 0 {
		c.Crawler.Workers = 5
	}
	if c.Crawler.MaxPages == 0 {
		c.Crawler.MaxPages = 100
	}
	if c.Crawler.ExploreMaxPages == 0 {
		c.Crawler.ExploreMaxPages = 120
	}
	if c.Crawler.ExploreMaxDepth == 0 {
		c.Crawler.ExploreMaxDepth = 2
	}
	if c.Crawler.SectionHopLimit == 0 {
		c.Crawler.SectionHopLimit = 50
	}
	if c.Crawler.MaxRetries == 0 {
		c.Crawler.MaxRetries = 3
	}
	if c.Crawler.FlushEvery == 0 {
		c.Crawler.FlushEvery = 5
	}
	if len(c.Search.Engines) == 0 {
		c.Search.Engines = []string{"baidu", "bing"}
	}
	if c.Search.MaxVerify == 0 {
		c.Search.MaxVerify = 10
	}
	if c.Search.MaxRetries == 0 {
		c.Search.MaxRetries = 3
	}
	if c.Storage.DownloadDir == "" {
		c.Storage.DownloadDir = "./downloads"
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "./data"
	}
}

// TargetYear 主目标年份，取配置年份中的最大值
func (c *Config) TargetYear() int {
	year := 0
	for _, y := range c.Crawler.TargetYears {
		if y > year {
			year = y
		}
	}
	return year
}
