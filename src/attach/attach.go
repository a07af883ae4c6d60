// 附件定位
// 提取目标扩展名的链接，并下探一层iframe
// downloadAll为true表示来源页已确认为公开栏目，跳过文本过滤：
// 对已确认的页面再做关键词过滤，漏报多于价值
package attach

import (
	"context"
	"net/http"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"

	"finspider/src/entity"
	"finspider/src/fetcher"
	"finspider/src/match"
	"finspider/src/util"
)

type Locator struct {
	session *fetcher.Session
	filter  *match.Filter
	logger  *log.Logger
}

func New(session *fetcher.Session, filter *match.Filter, logger *log.Logger) *Locator {
	return &Locator{session: session, filter: filter, logger: logger}
}

// Attachments 提取结果页中的可下载文件链接
func (l *Locator) Attachments(ctx context.Context, pageURL string, downloadAll bool) []entity.Attachment {
	page, err := l.session.GetPage(ctx, pageURL)
	if err != nil || page.Status != http.StatusOK || page.Doc == nil {
		if err != nil {
			l.logger.WithError(err).WithField("url", pageURL).Debug("fail to fetch report page")
		}
		return nil
	}

	seen := make(map[string]struct{})
	var out []entity.Attachment

	add := func(a entity.Attachment) {
		if _, ok := seen[a.URL]; ok {
			return
		}
		seen[a.URL] = struct{}{}
		out = append(out, a)
	}

	l.scanDoc(page.Doc, page.FinalURL, downloadAll, add)

	// iframe下探一层：src本身是文件直链，或是待扫描的内嵌页
	page.Doc.Find("iframe[src]").Each(func(_ int, sel *goquery.Selection) {
		src, ok := sel.Attr("src")
		if !ok || src == "" {
			return
		}
		full, err := util.ResolveURL(page.FinalURL, src)
		if err != nil {
			return
		}
		if util.HasFileExt(full, match.FileExtensions) {
			add(entity.Attachment{Title: "iframe_content", URL: full, Ext: extOf(full)})
			return
		}
		frame, err := l.session.GetPage(ctx, full)
		if err != nil || frame.Status != http.StatusOK || frame.Doc == nil {
			return
		}
		l.scanDoc(frame.Doc, frame.FinalURL, downloadAll, add)
	})

	return out
}

func (l *Locator) scanDoc(doc *goquery.Document, base string, downloadAll bool, add func(entity.Attachment)) {
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}
		full, err := util.ResolveURL(base, href)
		if err != nil || !util.HasFileExt(full, match.FileExtensions) {
			return
		}
		title := strings.TrimSpace(sel.Text())
		if !downloadAll && !l.filter.Match(title+" "+href) {
			return
		}
		if title == "" {
			title = path.Base(strings.SplitN(full, "?", 2)[0])
		}
		add(entity.Attachment{Title: title, URL: full, Ext: extOf(full)})
	})
}

func extOf(rawURL string) string {
	u := strings.SplitN(rawURL, "?", 2)[0]
	ext := strings.ToLower(path.Ext(u))
	if ext == "" {
		ext = ".pdf"
	}
	return ext
}
