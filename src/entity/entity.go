package entity

import (
	"strings"
	"time"
)

// 行政区划后缀，生成域名候选与匹配范围时需要去除
var regionSuffixes = []string{"市", "地区", "自治州", "自治区", "盟"}

// Region 一个地级行政区划，从外部城市列表加载后不再修改
type Region struct {
	Name string // 规范名，如 "赣州市"
}

// Bare 返回去掉行政后缀的名称，如 "赣州市" -> "赣州"
func (r Region) Bare() string {
	name := r.Name
	for _, s := range regionSuffixes {
		name = strings.ReplaceAll(name, s, "")
	}
	return name
}

// Variants 返回带后缀与不带后缀的两种形式（去重）
func (r Region) Variants() []string {
	bare := r.Bare()
	if bare == r.Name || bare == "" {
		return []string{r.Name}
	}
	return []string{r.Name, bare}
}

// SiteMapping 区域到站点根域的映射
// gov为市政府门户根域，fin为市财政局门户根域，空串表示已尝试但未找到
type SiteMapping struct {
	Gov string `json:"gov"`
	Fin string `json:"fin"`
}

func (m SiteMapping) Empty() bool {
	return m.Gov == "" && m.Fin == ""
}

// Merge 合并新映射，非空字段不会被空值覆盖
func (m SiteMapping) Merge(n SiteMapping) SiteMapping {
	out := m
	if n.Gov != "" {
		out.Gov = n.Gov
	}
	if n.Fin != "" {
		out.Fin = n.Fin
	}
	return out
}

// SearchResult 从搜索引擎结果页提取的根域，带来源信息用于诊断
type SearchResult struct {
	Root   string
	Engine string
	Query  string
}

// SectionLink 发现的公开栏目入口
// PublicSection为true表示通过公开栏目关键词明确识别，false表示兜底入口，
// 此标志决定下游附件过滤的严格程度
type SectionLink struct {
	URL           string
	Text          string
	Depth         int
	PublicSection bool
}

// ReportLink 通过关键词+年份+范围过滤的结果页链接
type ReportLink struct {
	Title             string
	URL               string
	FromPublicSection bool
}

// Attachment 待下载的文件链接
type Attachment struct {
	Title string
	URL   string
	Ext   string
}

// CrawlResult 单个区域的爬取结果，每次爬取独占一份，不跨区域共享
type CrawlResult struct {
	Region          string   `json:"region"`
	Success         bool     `json:"success"`
	Website         string   `json:"website"`
	ReportsFound    int      `json:"reports_found"`
	FilesDownloaded int      `json:"files_downloaded"`
	Errors          []string `json:"errors"`
}

func (r *CrawlResult) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}

// Progress 进度文件结构，支持断点续爬
type Progress struct {
	LastUpdate   time.Time     `json:"last_update"`
	TotalRegions int           `json:"total_regions"`
	Results      []CrawlResult `json:"results"`
}

// Summary 最终汇总文件结构
type Summary struct {
	TargetYear   int           `json:"target_year"`
	TestMode     bool          `json:"test_mode"`
	TotalRegions int           `json:"total_regions"`
	SuccessCount int           `json:"success_count"`
	FailedCount  int           `json:"failed_count"`
	TotalFiles   int           `json:"total_files"`
	Results      []CrawlResult `json:"results"`
}
