// 每个worker持有独立的Session，连接池不跨worker共享
// 政府站点编码混杂（GBK/GB2312/UTF-8），统一转码后再交给goquery解析
package fetcher

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"finspider/src/config"
)

const maxPageBody = 10 << 20 // 页面读取上限

// Page 一次页面抓取的结果
// 非200时Doc为nil，Status始终有效
type Page struct {
	URL      string
	FinalURL string
	Status   int
	Body     string
	Doc      *goquery.Document
}

type Session struct {
	client   *http.Client // 页面抓取
	probe    *http.Client // 候选探测，超时更短
	download *http.Client // 文件下载
	limiter  *rate.Limiter
	delay    time.Duration
	ua       string
	logger   *log.Logger
}

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
}

func NewSession(cfg *config.Config, logger *log.Logger) *Session {
	transport := newTransport()
	return &Session{
		client: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(cfg.HTTP.FetchTimeout) * time.Second,
		},
		probe: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(cfg.HTTP.ProbeTimeout) * time.Second,
		},
		download: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(cfg.HTTP.DownloadTimeout) * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.HTTP.RatePerSecond), cfg.HTTP.RateBurst),
		delay:   time.Duration(cfg.HTTP.RequestDelay) * time.Second,
		ua:      cfg.HTTP.UserAgent,
		logger:  logger,
	}
}

// Delay 翻页/下载之间的礼貌延迟
func (s *Session) Delay(ctx context.Context) {
	_ = Sleep(ctx, s.delay)
}

func (s *Session) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", s.ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}

// Probe 低成本存在性探测：先HEAD，服务器不允许时退化为GET
// 返回重定向后的最终url与状态码
func (s *Session) Probe(ctx context.Context, rawURL string) (string, int, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return "", 0, err
	}
	s.setHeaders(req)

	resp, err := s.probe.Do(req)
	if err != nil {
		return "", 0, err
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed && resp.StatusCode != http.StatusForbidden {
		return resp.Request.URL.String(), resp.StatusCode, nil
	}

	// HEAD被拒绝，用GET再试一次
	req, err = http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", 0, err
	}
	s.setHeaders(req)
	resp, err = s.probe.Do(req)
	if err != nil {
		return "", 0, err
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
	return resp.Request.URL.String(), resp.StatusCode, nil
}

// GetPage 抓取并解析一个页面
// 传输层错误返回err；收到响应则返回Page，仅200时解析Doc
func (s *Session) GetPage(ctx context.Context, rawURL string) (*Page, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	s.setHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	page := &Page{
		URL:      rawURL,
		FinalURL: resp.Request.URL.String(),
		Status:   resp.StatusCode,
	}
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return page, nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBody))
	if err != nil {
		return nil, err
	}

	utf8data := decodeToUTF8(data, resp.Header.Get("Content-Type"))
	page.Body = string(utf8data)

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(utf8data))
	if err != nil {
		s.logger.WithError(err).WithField("url", rawURL).Debug("fail to parse html")
		return page, nil
	}
	page.Doc = doc
	return page, nil
}

// GetPageWithRetry 带退避重试抓取页面，仅重试传输层错误
func (s *Session) GetPageWithRetry(ctx context.Context, rawURL string, policy RetryPolicy) (*Page, error) {
	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		page, err := s.GetPage(ctx, rawURL)
		if err == nil {
			return page, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt < policy.MaxAttempts {
			if err := Sleep(ctx, policy.Backoff(attempt)); err != nil {
				return nil, err
			}
		}
	}
	return nil, lastErr
}

// OpenDownload 打开一个下载流，由调用方负责关闭body
func (s *Session) OpenDownload(ctx context.Context, rawURL string) (*http.Response, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	s.setHeaders(req)
	return s.download.Do(req)
}

func decodeToUTF8(data []byte, contentType string) []byte {
	enc, _, _ := charset.DetermineEncoding(data, contentType)
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil || !utf8.Valid(decoded) {
		return data
	}
	return decoded
}

// TitleOf 提取页面title文本
func TitleOf(p *Page) string {
	if p == nil || p.Doc == nil {
		return ""
	}
	return strings.TrimSpace(p.Doc.Find("title").First().Text())
}
