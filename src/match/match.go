// 决算公开链接的文本过滤
// 匹配规则是启发式的，保持现状作为调参项，不做"智能"修正
package match

import (
	"strconv"
	"strings"

	"finspider/src/entity"
)

// CoreTerm 目标文种
const CoreTerm = "决算"

// ScopeTokens 市本级范围标志
var ScopeTokens = []string{"本级", "本市"}

// ExcludeTokens 排除下属部门/单位/乡镇的决算
var ExcludeTokens = []string{"部门", "单位", "街道", "镇", "乡"}

// FileExtensions 目标文件类型
var FileExtensions = []string{".pdf", ".doc", ".docx", ".xls", ".xlsx", ".rar", ".zip"}

// Filter 关键词+年份+范围的组合过滤器
type Filter struct {
	region       entity.Region
	years        []string
	blockedYears []string
	scope        []string
	exclude      []string
}

func NewFilter(region entity.Region, years, blockedYears []int) *Filter {
	f := &Filter{
		region:  region,
		scope:   ScopeTokens,
		exclude: ExcludeTokens,
	}
	for _, y := range years {
		f.years = append(f.years, strconv.Itoa(y))
	}
	for _, y := range blockedYears {
		f.blockedYears = append(f.blockedYears, strconv.Itoa(y))
	}
	return f
}

// Match 四个条件缺一不可：
// 1. 含"决算"
// 2. 含目标年份（且不含屏蔽年份）
// 3. 含范围标志或区域名（带/不带行政后缀）
// 4. 不含任何排除词
func (f *Filter) Match(text string) bool {
	if text == "" {
		return false
	}
	if !strings.Contains(text, CoreTerm) {
		return false
	}
	if !f.hasYear(text) {
		return false
	}
	if !f.hasScope(text) {
		return false
	}
	for _, tok := range f.exclude {
		if strings.Contains(text, tok) {
			return false
		}
	}
	return true
}

// MatchLoose 仅要求文种+年份，用于兜底探索中文本上下文很薄的文件直链
func (f *Filter) MatchLoose(text string) bool {
	if text == "" || !strings.Contains(text, CoreTerm) {
		return false
	}
	if !f.hasYear(text) {
		return false
	}
	for _, tok := range f.exclude {
		if strings.Contains(text, tok) {
			return false
		}
	}
	return true
}

func (f *Filter) hasYear(text string) bool {
	found := false
	for _, y := range f.years {
		if strings.Contains(text, y) {
			found = true
			break
		}
	}
	if !found {
		return false
	}
	for _, y := range f.blockedYears {
		if strings.Contains(text, y) {
			return false
		}
	}
	return true
}

func (f *Filter) hasScope(text string) bool {
	for _, tok := range f.scope {
		if strings.Contains(text, tok) {
			return true
		}
	}
	for _, name := range f.region.Variants() {
		if name != "" && strings.Contains(text, name) {
			return true
		}
	}
	return false
}
