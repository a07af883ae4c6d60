package explore

import (
	"context"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finspider/src/config"
	"finspider/src/entity"
	"finspider/src/fetcher"
	"finspider/src/match"
)

func newTestExplorer(maxPages, maxDepth int) *Explorer {
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	cfg.HTTP.RatePerSecond = 1000
	cfg.HTTP.RateBurst = 1000
	cfg.HTTP.RequestDelay = 0
	logger := log.New()
	logger.SetOutput(ioutil.Discard)
	filter := match.NewFilter(entity.Region{Name: "赣州市"}, []int{2024}, nil)
	return New(fetcher.NewSession(cfg, logger), filter, logger, maxPages, maxDepth)
}

func seeds(urls ...string) []entity.SectionLink {
	out := make([]entity.SectionLink, 0, len(urls))
	for _, u := range urls {
		out = append(out, entity.SectionLink{URL: u})
	}
	return out
}

// 目标报告藏在两层深处，BFS要能找到
func TestRunFindsDeepReport(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `<html><body><a href="/level1.html">财政专栏</a></body></html>`)
	})
	mux.HandleFunc("/level1.html", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><a href="/level2.html">决算专栏</a></body></html>`)
	})
	mux.HandleFunc("/level2.html", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><a href="/report.html">2024年赣州市本级决算公开</a></body></html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	reports := newTestExplorer(120, 2).Run(context.Background(), seeds(server.URL))
	require.Len(t, reports, 1)
	assert.Equal(t, server.URL+"/report.html", reports[0].URL)
	assert.False(t, reports[0].FromPublicSection)
}

// 深度上限：超出maxDepth的层不展开
func TestRunDepthLimit(t *testing.T) {
	var tooDeep int32
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `<html><body><a href="/d1.html">一层</a></body></html>`)
	})
	mux.HandleFunc("/d1.html", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><a href="/d2.html">二层</a></body></html>`)
	})
	mux.HandleFunc("/d2.html", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tooDeep, 1)
		fmt.Fprint(w, `<html><body></body></html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	newTestExplorer(120, 1).Run(context.Background(), seeds(server.URL))
	// depth 0 -> 1 可展开，depth 1 的子链接不入队
	assert.Equal(t, int32(0), atomic.LoadInt32(&tooDeep))
}

// 页数上限兜底
func TestRunPageLimit(t *testing.T) {
	var fetched int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&fetched, 1)
		fmt.Fprintf(w, `<html><body><a href="/p%d.html">继续</a><a href="/q%d.html">继续</a></body></html>`, n, n)
	}))
	defer server.Close()

	newTestExplorer(5, 10).Run(context.Background(), seeds(server.URL))
	assert.Equal(t, int32(5), atomic.LoadInt32(&fetched))
}

// 文件直链允许宽松匹配
func TestRunLooseMatchForFileLinks(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `<html><body>
<a href="/files/2024report.pdf">2024年决算</a>
<a href="/pages/2024news.html">2024年决算</a>
</body></html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	reports := newTestExplorer(120, 2).Run(context.Background(), seeds(server.URL))
	// 文件直链宽松命中；同文本的html链接缺范围词，不命中
	require.Len(t, reports, 1)
	assert.Equal(t, server.URL+"/files/2024report.pdf", reports[0].URL)
}

func TestRunRevisitProtection(t *testing.T) {
	var fetched int32
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(&fetched, 1)
		fmt.Fprint(w, `<html><body><a href="/a.html">甲</a></body></html>`)
	})
	mux.HandleFunc("/a.html", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fetched, 1)
		fmt.Fprint(w, `<html><body><a href="/a.html">刷新</a></body></html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	newTestExplorer(120, 5).Run(context.Background(), seeds(server.URL))
	// 自引用链接不重复抓取
	assert.Equal(t, int32(2), atomic.LoadInt32(&fetched))
}
