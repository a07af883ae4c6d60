// 区域到站点根域的持久化缓存
// key缺失表示从未尝试过，存在但字段为空表示尝试过且未找到，两者语义不同
package mapping

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"

	"finspider/src/entity"
)

type Store struct {
	mu     sync.Mutex
	path   string
	logger *log.Logger
	data   map[string]entity.SiteMapping
}

func NewStore(path string, logger *log.Logger) (*Store, error) {
	s := &Store{
		path:   path,
		logger: logger,
		data:   make(map[string]entity.SiteMapping),
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Get(region string) (entity.SiteMapping, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.data[region]
	return m, ok
}

// Put 合并写入：已记录的非空字段不会被空值覆盖
// 落盘失败不致命，内存状态保留，等待下次写入重试
func (s *Store) Put(region string, m entity.SiteMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.data[region]; ok {
		m = old.Merge(m)
	}
	s.data[region] = m

	if err := s.flushLocked(); err != nil {
		s.logger.WithError(err).Error("fail to persist site mappings")
		return err
	}
	return nil
}

// Regions 返回所有已记录的区域名
func (s *Store) Regions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.data))
	for r := range s.data {
		out = append(out, r)
	}
	return out
}

// Seed 从种子文件导入已知映射，同样受合并规则保护
func (s *Store) Seed(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var seed map[string]entity.SiteMapping
	if err := json.Unmarshal(raw, &seed); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for region, m := range seed {
		if old, ok := s.data[region]; ok {
			m = old.Merge(m)
		}
		s.data[region] = m
	}
	return s.flushLocked()
}

// 全量重写+原子替换，防止并发运行中途崩溃留下残缺文件
func (s *Store) flushLocked() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
