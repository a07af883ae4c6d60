// 公开栏目发现
// 扫描首页锚文本/href中的公开类关键词，另探测一批已知的公开栏目路径
// 根域本身始终作为兜底入口返回，保证下游至少有一个起点
package discover

import (
	"context"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"

	"finspider/src/entity"
	"finspider/src/fetcher"
	"finspider/src/util"
)

// 公开栏目关键词
var sectionKeywords = []string{
	"信息公开", "政务公开", "财政公开", "预决算公开", "财政信息",
}

// 常见公开栏目路径，来源于对大量政府站点的观察
var wellKnownPaths = []string{
	"/czj/",       // 财政局
	"/zfxxgk/",    // 政府信息公开
	"/czxxgk/",    // 财政信息公开
	"/zdlyxxgk/",  // 重点领域信息公开
	"/bmxxgk/czj/",
	"/cz/",
	"/czzx/",
	"/czgk/",
}

type Discoverer struct {
	session  *fetcher.Session
	logger   *log.Logger
	hopLimit int // 一跳展开的候选上限
}

func New(session *fetcher.Session, logger *log.Logger, hopLimit int) *Discoverer {
	return &Discoverer{session: session, logger: logger, hopLimit: hopLimit}
}

// Sections 发现root下的公开栏目入口
func (d *Discoverer) Sections(ctx context.Context, root string, region entity.Region) []entity.SectionLink {
	seen := make(map[string]struct{})
	var sections []entity.SectionLink

	add := func(s entity.SectionLink) {
		if _, ok := seen[s.URL]; ok {
			return
		}
		seen[s.URL] = struct{}{}
		sections = append(sections, s)
	}

	page, err := d.session.GetPage(ctx, root)
	if err == nil && page.Doc != nil {
		for _, s := range d.scanPage(page, root, 0) {
			add(s)
		}
	} else if err != nil {
		d.logger.WithError(err).WithField("url", root).Debug("fail to fetch root page")
	}

	// 已知路径探测
	for _, p := range wellKnownPaths {
		if ctx.Err() != nil {
			break
		}
		u, err := util.ResolveURL(root, p)
		if err != nil {
			continue
		}
		probe, err := d.session.GetPage(ctx, u)
		if err != nil || probe.Status != http.StatusOK {
			continue
		}
		add(entity.SectionLink{URL: u, Text: p, Depth: 0, PublicSection: true})
	}

	// 一跳展开，不再递归
	hop := sections
	if len(hop) > d.hopLimit {
		hop = hop[:d.hopLimit]
	}
	for _, sec := range hop {
		if ctx.Err() != nil {
			break
		}
		sub, err := d.session.GetPage(ctx, sec.URL)
		if err != nil || sub.Doc == nil {
			continue
		}
		for _, s := range d.scanPage(sub, root, 1) {
			add(s)
		}
	}

	// 兜底：根域本身
	add(entity.SectionLink{URL: root, Text: "", Depth: 0, PublicSection: false})
	return sections
}

func (d *Discoverer) scanPage(page *fetcher.Page, root string, depth int) []entity.SectionLink {
	var out []entity.SectionLink
	page.Doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "#") {
			return
		}
		text := strings.TrimSpace(sel.Text())
		if !containsSectionKeyword(text) && !containsSectionKeyword(href) {
			return
		}
		full, err := util.ResolveURL(page.FinalURL, href)
		if err != nil {
			return
		}
		if !util.SameHost(root, full) {
			return
		}
		out = append(out, entity.SectionLink{
			URL:           full,
			Text:          text,
			Depth:         depth,
			PublicSection: true,
		})
	})
	return out
}

func containsSectionKeyword(s string) bool {
	for _, kw := range sectionKeywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
