// 兜底广度探索
// 定向发现+分页提取一无所获时的最后手段：从栏目候选出发做受限BFS
// 代价高、精度低，页数与深度都有硬上限
package explore

import (
	"context"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"

	"finspider/src/entity"
	"finspider/src/fetcher"
	"finspider/src/match"
	"finspider/src/util"
)

type Explorer struct {
	session  *fetcher.Session
	filter   *match.Filter
	logger   *log.Logger
	maxPages int
	maxDepth int
}

func New(session *fetcher.Session, filter *match.Filter, logger *log.Logger, maxPages, maxDepth int) *Explorer {
	return &Explorer{
		session:  session,
		filter:   filter,
		logger:   logger,
		maxPages: maxPages,
		maxDepth: maxDepth,
	}
}

type queueItem struct {
	url   string
	depth int
}

// Run 从seeds出发广度优先探索，返回通过过滤的结果链接
func (x *Explorer) Run(ctx context.Context, seeds []entity.SectionLink) []entity.ReportLink {
	var reports []entity.ReportLink
	visited := make(map[string]struct{})
	collected := make(map[string]struct{})

	var queue []queueItem
	for _, s := range seeds {
		queue = append(queue, queueItem{url: s.URL, depth: 0})
	}

	pages := 0
	for len(queue) > 0 && pages < x.maxPages {
		if ctx.Err() != nil {
			break
		}
		item := queue[0]
		queue = queue[1:]

		if _, ok := visited[item.url]; ok {
			continue
		}
		visited[item.url] = struct{}{}

		page, err := x.session.GetPage(ctx, item.url)
		if err != nil || page.Status != http.StatusOK || page.Doc == nil {
			continue
		}
		pages++

		page.Doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
			href, ok := sel.Attr("href")
			if !ok || href == "" || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "#") {
				return
			}
			full, err := util.ResolveURL(page.FinalURL, href)
			if err != nil {
				return
			}

			title := strings.TrimSpace(sel.Text())
			combined := title + " " + href

			matched := x.filter.Match(combined)
			// 文件直链的文本上下文往往很薄，放宽到文种+年份
			if !matched && util.HasFileExt(full, match.FileExtensions) {
				matched = x.filter.MatchLoose(combined)
			}
			if matched {
				if _, dup := collected[full]; !dup {
					collected[full] = struct{}{}
					if title == "" {
						title = full
					}
					reports = append(reports, entity.ReportLink{
						Title: title, URL: full, FromPublicSection: false,
					})
				}
			}

			// 同host子链接入队
			if item.depth < x.maxDepth && util.SameHost(item.url, full) {
				if _, seen := visited[full]; !seen {
					queue = append(queue, queueItem{url: full, depth: item.depth + 1})
				}
			}
		})

		x.session.Delay(ctx)
	}

	x.logger.WithFields(log.Fields{
		"pages": pages, "reports": len(reports),
	}).Info("breadth exploration finished")
	return reports
}
