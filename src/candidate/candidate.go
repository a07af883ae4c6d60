// 基于拼音与缩写规则生成候选根域，纯函数，无网络访问
package candidate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mozillazg/go-pinyin"

	"finspider/src/entity"
)

var ErrNoTransliteration = errors.New("region name has no pinyin transliteration")

// 省级缩写前缀，用于 {省}{市} 形式的域名，如 jxgz.gov.cn
var provincePrefixes = []string{
	"jx", "gd", "zj", "js", "sd", "hb", "hn", "sc", "fj", "ah",
	"sx", "ln", "jl", "hlj", "gx", "yn", "gs", "qh", "hi", "nm",
}

// 财政局站点常见子域
var finSubdomains = []string{"czj.", "cz.", "mof."}

// Transliterate 返回完整拼音与首字母缩写，如 "赣州市" -> ("ganzhou", "gz")
func Transliterate(r entity.Region) (string, string, error) {
	bare := r.Bare()

	full := pinyin.Pinyin(bare, pinyin.NewArgs())
	if len(full) == 0 {
		return "", "", ErrNoTransliteration
	}
	var fullParts []string
	for _, p := range full {
		if len(p) > 0 {
			fullParts = append(fullParts, p[0])
		}
	}

	abbrArgs := pinyin.NewArgs()
	abbrArgs.Style = pinyin.FirstLetter
	abbr := pinyin.Pinyin(bare, abbrArgs)
	var abbrParts []string
	for _, p := range abbr {
		if len(p) > 0 {
			abbrParts = append(abbrParts, p[0])
		}
	}

	fullName := strings.ToLower(strings.Join(fullParts, ""))
	abbrName := strings.ToLower(strings.Join(abbrParts, ""))
	if fullName == "" {
		return "", "", ErrNoTransliteration
	}
	return fullName, abbrName, nil
}

// GovCandidates 市政府门户的候选根域，按可信度排序：
// 完整拼音 > 缩写 > 缩写+s > 省前缀拼接
func GovCandidates(r entity.Region) ([]string, error) {
	full, abbr, err := Transliterate(r)
	if err != nil {
		return nil, err
	}

	var urls []string
	urls = append(urls,
		fmt.Sprintf("https://www.%s.gov.cn", full),
		fmt.Sprintf("https://%s.gov.cn", full),
		fmt.Sprintf("http://www.%s.gov.cn", full),
		fmt.Sprintf("http://%s.gov.cn", full),
	)
	if abbr != "" {
		urls = append(urls,
			fmt.Sprintf("https://%s.gov.cn", abbr),
			fmt.Sprintf("https://www.%s.gov.cn", abbr),
			fmt.Sprintf("http://%s.gov.cn", abbr),
			fmt.Sprintf("http://www.%s.gov.cn", abbr),
			fmt.Sprintf("https://%ss.gov.cn", abbr),
			fmt.Sprintf("http://%ss.gov.cn", abbr),
		)
	}
	for _, p := range provincePrefixes {
		urls = append(urls, fmt.Sprintf("https://%s%s.gov.cn", p, full))
		if abbr != "" {
			urls = append(urls, fmt.Sprintf("https://%s%s.gov.cn", p, abbr))
		}
	}
	return dedupe(urls), nil
}

// FinCandidates 市财政局门户的候选根域
func FinCandidates(r entity.Region) ([]string, error) {
	full, abbr, err := Transliterate(r)
	if err != nil {
		return nil, err
	}

	var urls []string
	hosts := []string{full}
	if abbr != "" {
		hosts = append(hosts, abbr)
	}
	for _, sub := range finSubdomains {
		for _, h := range hosts {
			urls = append(urls,
				fmt.Sprintf("https://%s%s.gov.cn", sub, h),
				fmt.Sprintf("http://%s%s.gov.cn", sub, h),
			)
		}
	}
	for _, p := range provincePrefixes {
		for _, sub := range finSubdomains {
			if abbr != "" {
				urls = append(urls, fmt.Sprintf("https://%s%s%s.gov.cn", sub, p, abbr))
			}
		}
	}
	return dedupe(urls), nil
}

func dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	var out []string
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
