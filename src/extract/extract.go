// 分页结果提取
// 从起始页向后翻页，visited集合防环，硬性页数上限兜底
// 非200不是错误：返回已收集的结果即可
package extract

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"

	"finspider/src/entity"
	"finspider/src/fetcher"
	"finspider/src/match"
	"finspider/src/util"
)

type Extractor struct {
	session  *fetcher.Session
	filter   *match.Filter
	logger   *log.Logger
	maxPages int
}

func New(session *fetcher.Session, filter *match.Filter, logger *log.Logger, maxPages int) *Extractor {
	return &Extractor{
		session:  session,
		filter:   filter,
		logger:   logger,
		maxPages: maxPages,
	}
}

// Run 从start开始翻页提取符合过滤条件的结果链接
// fromPublic透传到结果上，控制下游附件过滤的严格程度
func (e *Extractor) Run(ctx context.Context, start string, fromPublic bool) []entity.ReportLink {
	var reports []entity.ReportLink
	visited := make(map[string]struct{})
	collected := make(map[string]struct{})

	current := start
	for pageCount := 0; current != "" && pageCount < e.maxPages; pageCount++ {
		if ctx.Err() != nil {
			break
		}
		if _, ok := visited[current]; ok {
			break // 环保护
		}
		visited[current] = struct{}{}

		page, err := e.session.GetPage(ctx, current)
		if err != nil {
			e.logger.WithError(err).WithField("url", current).Debug("fail to fetch result page")
			break
		}
		if page.Status != http.StatusOK || page.Doc == nil {
			break
		}

		for _, r := range e.extractPage(page, fromPublic) {
			if _, ok := collected[r.URL]; ok {
				continue
			}
			collected[r.URL] = struct{}{}
			reports = append(reports, r)
		}

		next := NextPageURL(page.Doc, page.FinalURL)
		if next == "" || next == current {
			break // 正常终止：没有下一页
		}
		current = next
		e.session.Delay(ctx)
	}
	return reports
}

func (e *Extractor) extractPage(page *fetcher.Page, fromPublic bool) []entity.ReportLink {
	var out []entity.ReportLink
	seen := make(map[string]struct{})

	page.Doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "#") {
			return
		}
		full, err := util.ResolveURL(page.FinalURL, href)
		if err != nil {
			return
		}
		if _, dup := seen[full]; dup {
			return
		}
		seen[full] = struct{}{}

		title := strings.TrimSpace(sel.Text())

		// 标题+href+所在块的文本，组合后做匹配
		blockText := title
		if parent := sel.Parent(); parent != nil {
			if pt := strings.TrimSpace(parent.Text()); len(pt) > len(title) {
				blockText = pt
			}
		}
		combined := title + " " + href + " " + blockText

		if !e.filter.Match(combined) {
			return
		}
		if title == "" {
			title = lastPathSegment(full)
		}
		out = append(out, entity.ReportLink{
			Title:             title,
			URL:               full,
			FromPublicSection: fromPublic,
		})
	})
	return out
}

var (
	nextTextPattern  = regexp.MustCompile(`(?i)(下一页|下页|next|more)`)
	nextAttrPattern  = regexp.MustCompile(`(?i)(next|page-next)`)
	pageNumPattern   = regexp.MustCompile(`^\d+$`)
	urlPagePattern   = regexp.MustCompile(`[?&]page[=_]?(\d+)`)
	pageParamNames   = []string{"pageNum", "page", "p", "pn", "currentPage", "pageIndex"}
)

// NextPageURL 依次尝试五种启发式定位下一页，第一个给出不同url的生效：
// 1.锚文本 2.class 3.id 4.更大的数字页码 5.自增已知分页参数
func NextPageURL(doc *goquery.Document, current string) string {
	if u := nextByAnchorText(doc, current); u != "" {
		return u
	}
	if u := nextByAttr(doc, current, "class"); u != "" {
		return u
	}
	if u := nextByAttr(doc, current, "id"); u != "" {
		return u
	}
	if u := nextByPageNumber(doc, current); u != "" {
		return u
	}
	return nextByQueryParam(current)
}

func nextByAnchorText(doc *goquery.Document, current string) string {
	var next string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if !nextTextPattern.MatchString(sel.Text()) {
			return true
		}
		next = resolveDifferent(sel, current)
		return next == ""
	})
	return next
}

func nextByAttr(doc *goquery.Document, current, attr string) string {
	var next string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		v, ok := sel.Attr(attr)
		if !ok || !nextAttrPattern.MatchString(v) {
			return true
		}
		next = resolveDifferent(sel, current)
		return next == ""
	})
	return next
}

// 数字页码：找出比当前url中页码更大的锚
func nextByPageNumber(doc *goquery.Document, current string) string {
	m := urlPagePattern.FindStringSubmatch(current)
	if m == nil {
		return ""
	}
	currentNum, err := strconv.Atoi(m[1])
	if err != nil {
		return ""
	}

	var next string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.TrimSpace(sel.Text())
		if !pageNumPattern.MatchString(text) {
			return true
		}
		n, err := strconv.Atoi(text)
		if err != nil || n <= currentNum {
			return true
		}
		next = resolveDifferent(sel, current)
		return next == ""
	})
	return next
}

// 自增常见分页参数
func nextByQueryParam(current string) string {
	u, err := url.Parse(current)
	if err != nil {
		return ""
	}
	q := u.Query()
	for _, name := range pageParamNames {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			continue
		}
		q.Set(name, strconv.Itoa(n+1))
		u.RawQuery = q.Encode()
		next := u.String()
		if next != current {
			return next
		}
	}
	return ""
}

func resolveDifferent(sel *goquery.Selection, current string) string {
	href, ok := sel.Attr("href")
	if !ok || href == "" || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "#") {
		return ""
	}
	full, err := util.ResolveURL(current, href)
	if err != nil || full == current {
		return ""
	}
	return full
}

func lastPathSegment(rawURL string) string {
	u := rawURL
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	u = strings.TrimRight(u, "/")
	if i := strings.LastIndex(u, "/"); i >= 0 {
		return u[i+1:]
	}
	return u
}
