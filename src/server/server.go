package server

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	log "github.com/sirupsen/logrus"
	"gopkg.in/urfave/cli.v1"

	"finspider/src/archive"
	"finspider/src/config"
	"finspider/src/entity"
	"finspider/src/exporter"
	"finspider/src/fetcher"
	"finspider/src/mapping"
	"finspider/src/progress"
	"finspider/src/routingpool"
	"finspider/src/search"
	"finspider/src/spider"
	"finspider/src/util"
	"finspider/src/verifier"
)

// 测试模式默认区域
var defaultTestRegions = []string{"赣州市", "北京市", "上海市", "杭州市", "深圳市"}

type Server struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *log.Logger
	config *config.Config

	mappings *mapping.Store
	progress *progress.Store
	archive  *archive.Archive
}

func NewServer() *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *Server) initLog() {
	var logger = log.New()
	logger.SetFormatter(&log.TextFormatter{
		DisableColors: true,
		FullTimestamp: true,
	})
	logger.SetOutput(os.Stdout)

	if s.config.Log.Context {
		logger.SetReportCaller(true)
	}

	if logLevel, err := log.ParseLevel(s.config.Log.Level); err != nil {
		logger.SetLevel(log.InfoLevel)
	} else {
		logger.SetLevel(logLevel)
	}
	s.logger = logger
}

func (s *Server) Start(ctx *cli.Context) error {
	var err error

	configPath := ctx.String("config")
	var cfg = &config.Config{}
	if err = util.ReadConfig(configPath, cfg); err != nil {
		return fmt.Errorf("fail to load config, err: %w", err)
	}
	cfg.ApplyDefaults()
	if year := ctx.Int("year"); year > 0 {
		cfg.Crawler.TargetYears = []int{year}
	}
	s.config = cfg

	s.initLog()

	s.mappings, err = mapping.NewStore(
		filepath.Join(cfg.Storage.DataDir, "site_mappings.json"), s.logger)
	if err != nil {
		return fmt.Errorf("fail to open site mapping store, err: %w", err)
	}
	if cfg.Storage.SeedMapping != "" {
		if err := s.mappings.Seed(cfg.Storage.SeedMapping); err != nil {
			s.logger.WithError(err).Warn("fail to load seed mappings")
		}
	}
	s.progress = progress.NewStore(cfg.Storage.DataDir, s.logger)

	if cfg.Database.URL != "" {
		s.archive, err = archive.New(cfg.Database.URL)
		if err != nil {
			// 归档库不可用时降级运行
			s.logger.WithError(err).Warn("archive database unavailable, continue without it")
			s.archive = nil
		} else {
			defer s.archive.Close()
		}
	}

	if ctx.Bool("verify-mappings") {
		return s.runVerifyMappings(ctx.Bool("update"))
	}

	testMode := ctx.Bool("test")
	regions, err := s.loadRegions(ctx.String("regions"), testMode)
	if err != nil {
		// 区域列表不可读是配置级错误，终止运行
		return fmt.Errorf("fail to load region list, err: %w", err)
	}

	return s.runCrawl(regions, testMode)
}

// loadRegions 解析显式区域参数或区域列表文件
func (s *Server) loadRegions(explicit string, testMode bool) ([]entity.Region, error) {
	var names []string
	if explicit != "" {
		for _, n := range strings.Split(explicit, ",") {
			if n = strings.TrimSpace(n); n != "" {
				names = append(names, n)
			}
		}
	} else if testMode {
		names = defaultTestRegions
	} else {
		file, err := os.Open(s.config.Storage.RegionFile)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			if n := strings.TrimSpace(scanner.Text()); n != "" {
				names = append(names, n)
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("region list is empty")
	}

	regions := make([]entity.Region, 0, len(names))
	for _, n := range names {
		regions = append(regions, entity.Region{Name: n})
	}
	return regions, nil
}

func (s *Server) runCrawl(regions []entity.Region, testMode bool) error {
	cfg := s.config
	sp := spider.New(cfg, s.logger, s.mappings, s.archive)

	// 续爬：测试模式不使用历史进度
	completed := map[string]entity.CrawlResult{}
	if !testMode {
		var err error
		completed, err = s.progress.Completed()
		if err != nil {
			s.logger.WithError(err).Warn("fail to load previous progress")
			completed = map[string]entity.CrawlResult{}
		}
		if len(completed) > 0 {
			s.logger.WithField("count", len(completed)).Info("regions already completed, will skip")
		}
	}

	var (
		mu      sync.Mutex
		results []entity.CrawlResult
		done    int
	)
	for _, r := range regions {
		if prev, ok := completed[r.Name]; ok {
			results = append(results, prev)
		}
	}

	collect := func(res entity.CrawlResult) {
		mu.Lock()
		defer mu.Unlock()
		results = append(results, res)
		done++
		// 每完成若干区域落盘一次，换小的重放窗口省掉频繁IO
		if !testMode && done%cfg.Crawler.FlushEvery == 0 {
			snapshot := make([]entity.CrawlResult, len(results))
			copy(snapshot, results)
			if err := s.progress.Save(len(regions), snapshot); err == nil {
				s.logger.WithField("done", done).Debug("progress flushed")
			}
		}
	}

	pool := routingpool.NewTaskPool(s.ctx, cfg.Crawler.Workers, cfg.Crawler.Workers*2)
	pool.Start()

	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-c:
			s.logger.Warn("interrupt signal, stop issuing new work")
			s.cancel()
		case <-s.ctx.Done():
		}
	}()

	for _, region := range regions {
		if _, ok := completed[region.Name]; ok {
			s.logger.WithField("region", region.Name).Info("already completed, skip")
			continue
		}
		r := region
		if !pool.Submit(func(taskCtx context.Context) {
			collect(sp.CrawlRegion(taskCtx, r))
		}) {
			break // 已取消，不再投递
		}
	}
	pool.Wait()

	// 部分进度也必须落盘
	if !testMode {
		if err := s.progress.Save(len(regions), results); err != nil {
			s.logger.WithError(err).Error("fail to save final progress")
		}
	}

	sum := summarize(cfg.TargetYear(), testMode, len(regions), results)
	if err := s.progress.SaveSummary(sum); err != nil {
		s.logger.WithError(err).Error("fail to save summary")
	}
	xlsxPath := filepath.Join(cfg.Storage.DataDir, "summary.xlsx")
	if err := exporter.WriteSummaryXLSX(xlsxPath, sum); err != nil {
		s.logger.WithError(err).Warn("fail to export summary xlsx")
	}

	s.logger.WithFields(log.Fields{
		"success": sum.SuccessCount,
		"failed":  sum.FailedCount,
		"files":   sum.TotalFiles,
	}).Info("crawl run finished")
	return nil
}

// runVerifyMappings 映射校验模式：逐项验证存活，失效项用搜索引擎给出建议
func (s *Server) runVerifyMappings(autoUpdate bool) error {
	session := fetcher.NewSession(s.config, s.logger)
	v := verifier.New(session, s.logger)
	resolver := search.NewResolver(session, s.logger, s.config.Search.Engines,
		s.config.Search.MaxVerify, fetcher.DefaultRetryPolicy())

	for _, name := range s.mappings.Regions() {
		if s.ctx.Err() != nil {
			break
		}
		m, _ := s.mappings.Get(name)
		region := entity.Region{Name: name}

		govOK := m.Gov != "" && checkAlive(s.ctx, v, m.Gov)
		finOK := m.Fin != "" && checkAlive(s.ctx, v, m.Fin)
		if govOK && finOK {
			s.logger.WithField("region", name).Info("mapping ok")
			continue
		}

		suggest := entity.SiteMapping{}
		if !govOK {
			if root, err := resolver.Resolve(s.ctx, region, search.TargetGov); err == nil {
				suggest.Gov = root
			}
		}
		if !finOK {
			if root, err := resolver.Resolve(s.ctx, region, search.TargetFin); err == nil {
				suggest.Fin = root
			}
		}

		if suggest.Empty() {
			s.logger.WithField("region", name).Warn("mapping dead and no suggestion found")
			continue
		}
		s.logger.WithFields(log.Fields{
			"region": name, "gov": suggest.Gov, "fin": suggest.Fin,
		}).Info("mapping suggestion")
		if autoUpdate {
			if err := s.mappings.Put(name, suggest); err != nil {
				s.logger.WithError(err).WithField("region", name).Error("fail to update mapping")
			}
		}
	}
	return nil
}

func checkAlive(ctx context.Context, v *verifier.Verifier, root string) bool {
	_, err := v.Check(ctx, root)
	return err == nil
}

func summarize(year int, testMode bool, total int, results []entity.CrawlResult) *entity.Summary {
	sum := &entity.Summary{
		TargetYear:   year,
		TestMode:     testMode,
		TotalRegions: total,
		Results:      results,
	}
	for _, r := range results {
		if r.Success {
			sum.SuccessCount++
		}
		sum.TotalFiles += r.FilesDownloaded
	}
	sum.FailedCount = total - sum.SuccessCount
	return sum
}

func (s *Server) Stop() {
	s.cancel()
}
