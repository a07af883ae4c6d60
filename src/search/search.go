// 搜索引擎兜底解析
// 规则候选全部失效时，用自然语言查询从搜索结果页提取gov.cn根域
// 引擎顺序随机化并加入随机延迟，降低被反爬识别的概率
package search

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"time"

	log "github.com/sirupsen/logrus"

	"finspider/src/entity"
	"finspider/src/fetcher"
	"finspider/src/match"
	"finspider/src/util"
)

var ErrNotFound = errors.New("no gov.cn root found by search")

// Target 查询目标类型
type Target int

const (
	TargetGov Target = iota // 市人民政府门户
	TargetFin               // 市财政局门户
)

type Resolver struct {
	session   *fetcher.Session
	logger    *log.Logger
	engines   []string
	maxVerify int
	policy    fetcher.RetryPolicy
}

func NewResolver(session *fetcher.Session, logger *log.Logger, engines []string, maxVerify int, policy fetcher.RetryPolicy) *Resolver {
	return &Resolver{
		session:   session,
		logger:    logger,
		engines:   engines,
		maxVerify: maxVerify,
		policy:    policy,
	}
}

func queries(region entity.Region, target Target) []string {
	name := region.Name
	if target == TargetFin {
		return []string{
			"site:.gov.cn " + name + " 财政局",
			name + " 财政局 官网",
			name + " 财政局 网站",
		}
	}
	return []string{
		"site:.gov.cn " + name + " 人民政府",
		name + " 人民政府 官网",
		name + " 政府网站",
	}
}

func engineURL(engine, q string) string {
	switch engine {
	case "baidu":
		return "https://www.baidu.com/s?wd=" + url.QueryEscape(q)
	case "bing":
		return "https://cn.bing.com/search?q=" + url.QueryEscape(q)
	}
	return ""
}

var govRootPattern = regexp.MustCompile(`https?://[\w.-]*gov\.cn`)

// Resolve 对每个查询模板轮询各引擎，返回第一个通过DNS+探测验证的根域
func (r *Resolver) Resolve(ctx context.Context, region entity.Region, target Target) (string, error) {
	engines := make([]string, len(r.engines))
	copy(engines, r.engines)
	rand.Shuffle(len(engines), func(i, j int) {
		engines[i], engines[j] = engines[j], engines[i]
	})

	for _, q := range queries(region, target) {
		for _, engine := range engines {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			// 引擎间随机延迟
			if err := fetcher.Sleep(ctx, time.Duration(2000+rand.Intn(4000))*time.Millisecond); err != nil {
				return "", err
			}
			root, err := r.searchOnce(ctx, engine, q)
			if err != nil {
				r.logger.WithError(err).WithFields(log.Fields{
					"engine": engine, "query": q,
				}).Debug("search attempt failed")
				continue
			}
			if root != "" {
				r.logger.WithFields(log.Fields{
					"engine": engine, "query": q, "root": root,
				}).Info("search fallback resolved root")
				return root, nil
			}
		}
	}
	return "", ErrNotFound
}

// searchOnce 抓取一个结果页并验证提取的候选，传输失败按策略退避重试
func (r *Resolver) searchOnce(ctx context.Context, engine, q string) (string, error) {
	target := engineURL(engine, q)
	if target == "" {
		return "", nil
	}

	page, err := r.session.GetPageWithRetry(ctx, target, r.policy)
	if err != nil {
		return "", err
	}
	if page.Status != http.StatusOK {
		return "", nil
	}

	candidates := ExtractGovRoots(page.Body)
	n := len(candidates)
	if n > r.maxVerify {
		n = r.maxVerify
	}
	for _, cand := range candidates[:n] {
		if !dnsOK(cand) {
			continue
		}
		finalURL, status, err := r.session.Probe(ctx, cand)
		if err != nil || status != http.StatusOK {
			continue
		}
		root, err := util.NormalizeRoot(finalURL)
		if err != nil {
			continue
		}
		return root, nil
	}
	return "", nil
}

// ExtractGovRoots 从结果页原文提取gov.cn根域，去重保序，剔除文件直链
func ExtractGovRoots(body string) []string {
	found := govRootPattern.FindAllString(body, -1)
	seen := make(map[string]struct{})
	var out []string
	for _, u := range found {
		root, err := util.NormalizeRoot(u)
		if err != nil {
			continue
		}
		if !isGovRoot(root) {
			continue
		}
		if _, ok := seen[root]; ok {
			continue
		}
		seen[root] = struct{}{}
		out = append(out, root)
	}
	return out
}

func isGovRoot(root string) bool {
	u, err := url.Parse(root)
	if err != nil || u.Host == "" {
		return false
	}
	if util.HasFileExt(root, match.FileExtensions) {
		return false
	}
	host := u.Hostname()
	return host == "gov.cn" || len(host) > 7 && host[len(host)-7:] == ".gov.cn"
}

func dnsOK(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	addrs, err := net.LookupHost(u.Hostname())
	return err == nil && len(addrs) > 0
}
