package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegionBare(t *testing.T) {
	assert.Equal(t, "赣州", Region{Name: "赣州市"}.Bare())
	assert.Equal(t, "阿坝", Region{Name: "阿坝自治州"}.Bare())
	assert.Equal(t, "锡林郭勒", Region{Name: "锡林郭勒盟"}.Bare())
	assert.Equal(t, "大兴安岭", Region{Name: "大兴安岭地区"}.Bare())
}

func TestRegionVariants(t *testing.T) {
	assert.Equal(t, []string{"赣州市", "赣州"}, Region{Name: "赣州市"}.Variants())
	// 无后缀时不重复
	assert.Equal(t, []string{"赣州"}, Region{Name: "赣州"}.Variants())
}

func TestSiteMappingMerge(t *testing.T) {
	old := SiteMapping{Gov: "https://a.gov.cn"}

	// 空值不降级已有字段
	merged := old.Merge(SiteMapping{})
	assert.Equal(t, old, merged)

	// 新的非空字段补入
	merged = old.Merge(SiteMapping{Fin: "https://czj.a.gov.cn"})
	assert.Equal(t, "https://a.gov.cn", merged.Gov)
	assert.Equal(t, "https://czj.a.gov.cn", merged.Fin)

	// 非空覆盖非空，取新值
	merged = old.Merge(SiteMapping{Gov: "https://b.gov.cn"})
	assert.Equal(t, "https://b.gov.cn", merged.Gov)
}

func TestSiteMappingEmpty(t *testing.T) {
	assert.True(t, SiteMapping{}.Empty())
	assert.False(t, SiteMapping{Gov: "https://a.gov.cn"}.Empty())
	assert.False(t, SiteMapping{Fin: "https://czj.a.gov.cn"}.Empty())
}

func TestCrawlResultAddError(t *testing.T) {
	r := CrawlResult{Region: "赣州市"}
	r.AddError("未找到政府网站")
	r.AddError("下载失败")
	assert.Equal(t, []string{"未找到政府网站", "下载失败"}, r.Errors)
}
