package spider

import (
	"context"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finspider/src/config"
	"finspider/src/entity"
	"finspider/src/mapping"
)

func newTestConfig(t *testing.T) *config.Config {
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	cfg.HTTP.RatePerSecond = 1000
	cfg.HTTP.RateBurst = 1000
	cfg.HTTP.RequestDelay = 0
	cfg.Crawler.TargetYears = []int{2024}
	cfg.Crawler.ExploreMaxPages = 10
	cfg.Storage.DownloadDir = filepath.Join(t.TempDir(), "downloads")
	cfg.Storage.DataDir = t.TempDir()
	return cfg
}

func newTestSpider(t *testing.T, cfg *config.Config) (*Spider, *mapping.Store) {
	logger := log.New()
	logger.SetOutput(ioutil.Discard)
	mappings, err := mapping.NewStore(filepath.Join(cfg.Storage.DataDir, "site_mappings.json"), logger)
	require.NoError(t, err)
	return New(cfg, logger, mappings, nil), mappings
}

const pdfBody = "%PDF-1.4 final accounts report"

// 合成门户：首页 -> 公开栏目 -> 结果页 -> pdf附件
func portalHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, `<html><head><title>赣州市人民政府</title></head><body>
<a href="/zwgk/">政务公开</a>
<a href="/news/">新闻中心</a>
</body></html>`)
		case "/zwgk/":
			fmt.Fprint(w, `<html><body><ul>
<li><a href="/report.html">2024年赣州市本级决算公开</a></li>
<li><a href="/old.html">赣州市本级决算公开</a></li>
<li><a href="/dept.html">2024年赣州市部门决算公开</a></li>
</ul></body></html>`)
		case "/report.html":
			fmt.Fprint(w, `<html><body>
<p>2024年赣州市本级财政决算情况说明</p>
<a href="/files/2024ganzhou.pdf">决算报告全文</a>
</body></html>`)
		case "/files/2024ganzhou.pdf":
			w.Header().Set("Content-Type", "application/pdf")
			fmt.Fprint(w, pdfBody)
		default:
			http.NotFound(w, r)
		}
	})
}

// 映射缓存命中时整条链路跑通：发现栏目、过滤链接、下载附件
func TestCrawlRegionEndToEnd(t *testing.T) {
	server := httptest.NewServer(portalHandler())
	defer server.Close()

	cfg := newTestConfig(t)
	sp, mappings := newTestSpider(t, cfg)
	region := entity.Region{Name: "赣州市"}

	// 预置映射，站点解析直接短路，不触发候选探测与搜索兜底
	require.NoError(t, mappings.Put(region.Name, entity.SiteMapping{Gov: server.URL}))

	result := sp.CrawlRegion(context.Background(), region)

	assert.True(t, result.Success)
	assert.Equal(t, server.URL, result.Website)
	assert.Equal(t, 1, result.ReportsFound)
	assert.Equal(t, 1, result.FilesDownloaded)

	// 文件名：年份+区域+标题+扩展名
	dest := filepath.Join(cfg.Storage.DownloadDir, "赣州市", "2024赣州市决算报告全文.pdf")
	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, pdfBody, string(got))
}

// 站点存活但没有任何决算内容：兜底探索之后仍失败并给出原因
func TestCrawlRegionNoReports(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `<html><body><a href="/news/">新闻中心</a></body></html>`)
	}))
	defer server.Close()

	cfg := newTestConfig(t)
	sp, mappings := newTestSpider(t, cfg)
	region := entity.Region{Name: "赣州市"}
	require.NoError(t, mappings.Put(region.Name, entity.SiteMapping{Gov: server.URL}))

	result := sp.CrawlRegion(context.Background(), region)

	assert.False(t, result.Success)
	assert.Equal(t, 0, result.FilesDownloaded)
	assert.Contains(t, result.Errors, "未找到决算报告")
}

// 结果页无附件但url本身是文件直链
func TestCrawlRegionReportURLIsFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, `<html><body><a href="/zwgk/">政务公开</a></body></html>`)
		case "/zwgk/":
			fmt.Fprint(w, `<html><body><a href="/files/2024report.pdf">2024年赣州市本级决算公开</a></body></html>`)
		case "/files/2024report.pdf":
			w.Header().Set("Content-Type", "application/pdf")
			fmt.Fprint(w, pdfBody)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	cfg := newTestConfig(t)
	sp, mappings := newTestSpider(t, cfg)
	region := entity.Region{Name: "赣州市"}
	require.NoError(t, mappings.Put(region.Name, entity.SiteMapping{Gov: server.URL}))

	result := sp.CrawlRegion(context.Background(), region)

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.FilesDownloaded)
}

func TestRootsOf(t *testing.T) {
	assert.Empty(t, rootsOf(entity.SiteMapping{}))
	assert.Equal(t, []string{"https://a.gov.cn"}, rootsOf(entity.SiteMapping{Gov: "https://a.gov.cn"}))
	// gov与fin相同只保留一个
	assert.Equal(t, []string{"https://a.gov.cn"},
		rootsOf(entity.SiteMapping{Gov: "https://a.gov.cn", Fin: "https://a.gov.cn"}))
	assert.Equal(t, []string{"https://a.gov.cn", "https://czj.a.gov.cn"},
		rootsOf(entity.SiteMapping{Gov: "https://a.gov.cn", Fin: "https://czj.a.gov.cn"}))
}
