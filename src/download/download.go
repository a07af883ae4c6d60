// 文件下载
// 超时与瞬时HTTP错误按策略重试，404视为确定性失败不重试
// 部分站点会把文件的Content-Type错标成HTML，url带目标扩展名时仍然下载
package download

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"finspider/src/fetcher"
	"finspider/src/match"
	"finspider/src/util"
)

var (
	ErrNotFile   = errors.New("response is html without file extension")
	ErrNotFound  = errors.New("file not found (404)")
	ErrIntegrity = errors.New("downloaded file failed integrity check")
)

type Manager struct {
	session *fetcher.Session
	logger  *log.Logger
	policy  fetcher.RetryPolicy
}

func NewManager(session *fetcher.Session, logger *log.Logger, policy fetcher.RetryPolicy) *Manager {
	return &Manager{session: session, logger: logger, policy: policy}
}

// provenance 每个附件旁写一份来源记录，便于审计
type provenance struct {
	SourcePage   string    `json:"source_page"`
	FileURL      string    `json:"file_url"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

// Download 下载url到dest
// 幂等：dest已存在且非空时不发起任何网络请求，直接成功
func (m *Manager) Download(ctx context.Context, rawURL, sourcePage, dest string) error {
	if fi, err := os.Stat(dest); err == nil && fi.Size() > 0 {
		m.logger.WithField("file", dest).Info("file exists, skip download")
		return nil
	}

	var lastErr error
	for attempt := 1; attempt <= m.policy.MaxAttempts; attempt++ {
		err := m.downloadOnce(ctx, rawURL, dest)
		if err == nil {
			m.writeProvenance(rawURL, sourcePage, dest)
			return nil
		}
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrNotFile) {
			return err // 确定性失败，不重试
		}
		lastErr = err
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt < m.policy.MaxAttempts {
			if err := fetcher.Sleep(ctx, m.policy.Backoff(attempt)); err != nil {
				return err
			}
		}
	}
	return lastErr
}

func (m *Manager) downloadOnce(ctx context.Context, rawURL, dest string) error {
	resp, err := m.session.OpenDownload(ctx, rawURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("download status %d", resp.StatusCode)
	}

	hasExt := util.HasFileExt(rawURL, match.FileExtensions)
	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if strings.Contains(contentType, "text/html") && !strings.HasSuffix(strings.ToLower(rawURL), ".html") {
		if !hasExt {
			return ErrNotFile
		}
		m.logger.WithField("url", rawURL).Info("content-type is html but url has file extension, downloading anyway")
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	written, err := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if err != nil {
		os.Remove(dest)
		return err
	}
	if closeErr != nil {
		os.Remove(dest)
		return closeErr
	}

	// 完整性：声明长度一致且非空文件
	if resp.ContentLength > 0 && written != resp.ContentLength {
		os.Remove(dest)
		return fmt.Errorf("%w: size mismatch, want %d got %d", ErrIntegrity, resp.ContentLength, written)
	}
	if written == 0 {
		os.Remove(dest)
		return fmt.Errorf("%w: empty file", ErrIntegrity)
	}
	return nil
}

func (m *Manager) writeProvenance(fileURL, sourcePage, dest string) {
	p := provenance{
		SourcePage:   sourcePage,
		FileURL:      fileURL,
		DownloadedAt: time.Now(),
	}
	raw, err := json.MarshalIndent(&p, "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(dest+".meta.json", raw, 0644); err != nil {
		m.logger.WithError(err).WithField("file", dest).Warn("fail to write provenance record")
	}
}
