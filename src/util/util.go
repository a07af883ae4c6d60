package util

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

func ReadConfig(filePath string, out interface{}) error {
	v := viper.New()
	v.SetConfigFile(filePath)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // for nested structure
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return err
	}

	if err := v.Unmarshal(&out); err != nil {
		return err
	}

	return nil
}

// NormalizeRoot 归一化为根域形式 scheme://host（无path）
func NormalizeRoot(u string) (string, error) {
	oURL, err := url.Parse(u)
	if err != nil {
		return "", err
	}
	scheme := oURL.Scheme
	if scheme == "" {
		scheme = "https"
	}
	return scheme + "://" + oURL.Host, nil
}

// host中可能残留有:port信息，需要进一步移除
func GetDomain(u string) (string, error) {
	oURL, err := url.Parse(u)
	if err != nil {
		return "", err
	}
	return strings.Split(oURL.Host, ":")[0], nil
}

// SameHost 判断两个url是否同host
func SameHost(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	return ua.Host != "" && strings.EqualFold(ua.Host, ub.Host)
}

// ResolveURL 以base为基准解析相对链接为绝对url
func ResolveURL(base, href string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	h, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", err
	}
	return b.ResolveReference(h).String(), nil
}

// HasFileExt 判断url（忽略query）是否以给定扩展名之一结尾
func HasFileExt(rawURL string, exts []string) bool {
	u := strings.ToLower(rawURL)
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	for _, ext := range exts {
		if strings.HasSuffix(u, ext) {
			return true
		}
	}
	return false
}

var illegalFilenameChars = regexp.MustCompile(`[<>:"/\\|?*[:cntrl:]]`)

// SanitizeFilename 去除文件系统非法字符
func SanitizeFilename(name string) string {
	return illegalFilenameChars.ReplaceAllString(name, "_")
}
