// 进度与汇总文件，支持断点续爬
package progress

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"finspider/src/entity"
)

type Store struct {
	mu      sync.Mutex
	dataDir string
	logger  *log.Logger
}

func NewStore(dataDir string, logger *log.Logger) *Store {
	return &Store{dataDir: dataDir, logger: logger}
}

func (s *Store) progressPath() string {
	return filepath.Join(s.dataDir, "progress.json")
}

// Load 读取上次运行的进度，文件不存在时返回空进度
func (s *Store) Load() (*entity.Progress, error) {
	raw, err := os.ReadFile(s.progressPath())
	if err != nil {
		if os.IsNotExist(err) {
			return &entity.Progress{}, nil
		}
		return nil, err
	}
	var p entity.Progress
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Completed 返回已成功区域的结果，作为续爬时的跳过集合
func (s *Store) Completed() (map[string]entity.CrawlResult, error) {
	p, err := s.Load()
	if err != nil {
		return nil, err
	}
	done := make(map[string]entity.CrawlResult)
	for _, r := range p.Results {
		if r.Success {
			done[r.Region] = r
		}
	}
	return done, nil
}

// Save 全量重写进度文件（原子替换）
func (s *Store) Save(totalRegions int, results []entity.CrawlResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := entity.Progress{
		LastUpdate:   time.Now(),
		TotalRegions: totalRegions,
		Results:      results,
	}
	if err := s.writeJSON(s.progressPath(), &p); err != nil {
		s.logger.WithError(err).Error("fail to persist progress")
		return err
	}
	return nil
}

// SaveSummary 写入最终汇总，测试模式写入独立文件
func (s *Store) SaveSummary(sum *entity.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := "summary.json"
	if sum.TestMode {
		name = "test_summary.json"
	}
	return s.writeJSON(filepath.Join(s.dataDir, name), sum)
}

func (s *Store) writeJSON(path string, v interface{}) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
