// 单区域爬取编排
// 状态机：解析站点 -> 查找报告 -> 下载附件
// 任一阶段失败只终止该区域，携带错误信息返回部分结果
package spider

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"finspider/src/archive"
	"finspider/src/attach"
	"finspider/src/candidate"
	"finspider/src/config"
	"finspider/src/discover"
	"finspider/src/download"
	"finspider/src/entity"
	"finspider/src/explore"
	"finspider/src/extract"
	"finspider/src/fetcher"
	"finspider/src/mapping"
	"finspider/src/match"
	"finspider/src/search"
	"finspider/src/util"
	"finspider/src/verifier"
)

type Spider struct {
	cfg      *config.Config
	logger   *log.Logger
	mappings *mapping.Store
	archive  *archive.Archive // 可为nil
}

func New(cfg *config.Config, logger *log.Logger, mappings *mapping.Store, arch *archive.Archive) *Spider {
	return &Spider{
		cfg:      cfg,
		logger:   logger,
		mappings: mappings,
		archive:  arch,
	}
}

// CrawlRegion 爬取单个区域
// 每次调用创建独立Session，连接与状态不跨区域共享
func (s *Spider) CrawlRegion(ctx context.Context, region entity.Region) entity.CrawlResult {
	s.logger.WithField("region", region.Name).Info("start crawling region")

	result := entity.CrawlResult{Region: region.Name}
	session := fetcher.NewSession(s.cfg, s.logger)

	// 1. 解析站点
	roots := s.resolveWebsites(ctx, session, region, &result)
	if len(roots) == 0 {
		result.AddError("未找到政府网站")
		s.logger.WithField("region", region.Name).Warn("no website resolved")
		s.saveArchive(result)
		return result
	}
	result.Website = roots[0]

	// 2. 查找报告
	reports := s.findReports(ctx, session, region, roots)
	result.ReportsFound = len(reports)
	if len(reports) == 0 {
		result.AddError("未找到决算报告")
		s.logger.WithField("region", region.Name).Warn("no reports found")
		s.saveArchive(result)
		return result
	}

	// 3. 下载附件
	result.FilesDownloaded = s.downloadReports(ctx, session, region, reports, &result)
	result.Success = result.FilesDownloaded > 0
	if !result.Success {
		result.AddError("未下载任何文件")
	}

	s.logger.WithFields(log.Fields{
		"region": region.Name,
		"files":  result.FilesDownloaded,
	}).Info("region crawl finished")
	s.saveArchive(result)
	return result
}

// resolveWebsites 缓存命中时直接短路，否则规则候选+探测，再兜底搜索引擎
func (s *Spider) resolveWebsites(ctx context.Context, session *fetcher.Session, region entity.Region, result *entity.CrawlResult) []string {
	if m, ok := s.mappings.Get(region.Name); ok && !m.Empty() {
		s.logger.WithFields(log.Fields{
			"region": region.Name, "gov": m.Gov, "fin": m.Fin,
		}).Info("site mapping cache hit")
		return rootsOf(m)
	}

	v := verifier.New(session, s.logger)
	resolver := search.NewResolver(session, s.logger, s.cfg.Search.Engines,
		s.cfg.Search.MaxVerify, searchPolicy(s.cfg))

	m := entity.SiteMapping{}

	gov, err := s.resolveOne(ctx, v, resolver, region, search.TargetGov)
	if err != nil {
		result.AddError(fmt.Sprintf("政府门户解析失败: %v", err))
	} else {
		m.Gov = gov
	}

	// 财政局站点找不到不致命，公开栏目多数在政府门户下
	fin, err := s.resolveOne(ctx, v, resolver, region, search.TargetFin)
	if err != nil {
		s.logger.WithField("region", region.Name).Debug("finance office site not resolved")
	} else {
		m.Fin = fin
	}

	if err := s.mappings.Put(region.Name, m); err != nil {
		result.AddError(fmt.Sprintf("映射持久化失败: %v", err))
	}
	return rootsOf(m)
}

func (s *Spider) resolveOne(ctx context.Context, v *verifier.Verifier, resolver *search.Resolver, region entity.Region, target search.Target) (string, error) {
	var candidates []string
	var err error
	if target == search.TargetFin {
		candidates, err = candidate.FinCandidates(region)
	} else {
		candidates, err = candidate.GovCandidates(region)
	}
	if err != nil {
		if errors.Is(err, candidate.ErrNoTransliteration) {
			s.logger.WithField("region", region.Name).Warn("region name cannot be transliterated")
		}
		candidates = nil
	}

	if len(candidates) > 0 {
		var root string
		if target == search.TargetFin {
			root, err = v.FirstAliveStrict(ctx, candidates, "财政")
		} else {
			root, err = v.FirstAlive(ctx, candidates)
		}
		if err == nil {
			return root, nil
		}
	}

	// 规则候选全部失效，搜索引擎兜底
	return resolver.Resolve(ctx, region, target)
}

func (s *Spider) findReports(ctx context.Context, session *fetcher.Session, region entity.Region, roots []string) []entity.ReportLink {
	filter := match.NewFilter(region, s.cfg.Crawler.TargetYears, s.cfg.Crawler.BlockedYears)
	d := discover.New(session, s.logger, s.cfg.Crawler.SectionHopLimit)
	e := extract.New(session, filter, s.logger, s.cfg.Crawler.MaxPages)

	var reports []entity.ReportLink
	seen := make(map[string]struct{})
	var allSections []entity.SectionLink

	for _, root := range roots {
		sections := d.Sections(ctx, root, region)
		allSections = append(allSections, sections...)
		for _, sec := range sections {
			for _, r := range e.Run(ctx, sec.URL, sec.PublicSection) {
				if _, dup := seen[r.URL]; dup {
					continue
				}
				seen[r.URL] = struct{}{}
				reports = append(reports, r)
			}
		}
	}

	if len(reports) == 0 {
		// 最后手段：受限广度探索
		x := explore.New(session, filter, s.logger,
			s.cfg.Crawler.ExploreMaxPages, s.cfg.Crawler.ExploreMaxDepth)
		reports = x.Run(ctx, allSections)
	}
	return reports
}

func (s *Spider) downloadReports(ctx context.Context, session *fetcher.Session, region entity.Region, reports []entity.ReportLink, result *entity.CrawlResult) int {
	filter := match.NewFilter(region, s.cfg.Crawler.TargetYears, s.cfg.Crawler.BlockedYears)
	locator := attach.New(session, filter, s.logger)
	dm := download.NewManager(session, s.logger, downloadPolicy(s.cfg))

	year := s.cfg.TargetYear()
	regionDir := filepath.Join(s.cfg.Storage.DownloadDir, region.Name)
	downloaded := 0

	for _, report := range reports {
		if ctx.Err() != nil {
			break
		}
		attachments := locator.Attachments(ctx, report.URL, report.FromPublicSection)

		// 页面无附件但报告url本身是文件直链
		if len(attachments) == 0 && util.HasFileExt(report.URL, match.FileExtensions) {
			attachments = []entity.Attachment{{
				Title: report.Title, URL: report.URL, Ext: extOf(report.URL),
			}}
		}

		for _, a := range attachments {
			if ctx.Err() != nil {
				break
			}
			name := fmt.Sprintf("%d%s%s%s", year, region.Name, util.SanitizeFilename(a.Title), a.Ext)
			dest := filepath.Join(regionDir, name)

			if err := dm.Download(ctx, a.URL, report.URL, dest); err != nil {
				result.AddError(fmt.Sprintf("下载失败 %s: %v", name, err))
				continue
			}
			downloaded++
			if s.archive != nil {
				if err := s.archive.SaveArtifact(region.Name, a.Title, report.URL, a.URL, dest); err != nil {
					s.logger.WithError(err).Warn("fail to archive artifact")
				}
			}
			session.Delay(ctx)
		}
	}
	return downloaded
}

func (s *Spider) saveArchive(result entity.CrawlResult) {
	if s.archive == nil {
		return
	}
	if err := s.archive.SaveResult(result); err != nil {
		s.logger.WithError(err).WithField("region", result.Region).Warn("fail to archive region result")
	}
}

func rootsOf(m entity.SiteMapping) []string {
	var roots []string
	if m.Gov != "" {
		roots = append(roots, m.Gov)
	}
	if m.Fin != "" && m.Fin != m.Gov {
		roots = append(roots, m.Fin)
	}
	return roots
}

func extOf(u string) string {
	lower := strings.ToLower(u)
	for _, ext := range match.FileExtensions {
		if strings.HasSuffix(lower, ext) {
			return ext
		}
	}
	return ".pdf"
}

func searchPolicy(cfg *config.Config) fetcher.RetryPolicy {
	p := fetcher.DefaultRetryPolicy()
	p.MaxAttempts = cfg.Search.MaxRetries
	return p
}

func downloadPolicy(cfg *config.Config) fetcher.RetryPolicy {
	p := fetcher.DefaultRetryPolicy()
	p.MaxAttempts = cfg.Crawler.MaxRetries
	p.Jitter = 0
	return p
}
