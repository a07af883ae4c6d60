// 候选根域存活验证
// 单个候选的失败（超时、拒连、非2xx）静默跳过，只有全部耗尽才报告未找到
package verifier

import (
	"context"
	"errors"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"finspider/src/fetcher"
	"finspider/src/util"
)

var ErrNotFound = errors.New("no live candidate")

type Verifier struct {
	session *fetcher.Session
	logger  *log.Logger
}

func New(session *fetcher.Session, logger *log.Logger) *Verifier {
	return &Verifier{session: session, logger: logger}
}

// Check 探测单个候选，成功时返回重定向后最终url的根域
func (v *Verifier) Check(ctx context.Context, rawURL string) (string, error) {
	finalURL, status, err := v.session.Probe(ctx, rawURL)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", ErrNotFound
	}
	return util.NormalizeRoot(finalURL)
}

// CheckStrict 在Check基础上抓取页面并要求title含指定关键词
// 用于误报域名较多的财政局候选
func (v *Verifier) CheckStrict(ctx context.Context, rawURL, titleKeyword string) (string, error) {
	root, err := v.Check(ctx, rawURL)
	if err != nil {
		return "", err
	}
	page, err := v.session.GetPage(ctx, root)
	if err != nil {
		return "", err
	}
	if page.Status != http.StatusOK || !strings.Contains(fetcher.TitleOf(page), titleKeyword) {
		return "", ErrNotFound
	}
	return root, nil
}

// FirstAlive 依序探测候选列表，返回第一个存活的根域
func (v *Verifier) FirstAlive(ctx context.Context, candidates []string) (string, error) {
	for _, u := range candidates {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		root, err := v.Check(ctx, u)
		if err != nil {
			v.logger.WithField("url", u).Debug("candidate not alive")
			continue
		}
		return root, nil
	}
	return "", ErrNotFound
}

// FirstAliveStrict 同FirstAlive，但要求title含关键词
func (v *Verifier) FirstAliveStrict(ctx context.Context, candidates []string, titleKeyword string) (string, error) {
	for _, u := range candidates {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		root, err := v.CheckStrict(ctx, u, titleKeyword)
		if err != nil {
			continue
		}
		return root, nil
	}
	return "", ErrNotFound
}
