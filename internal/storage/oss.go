package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aliyun/alibabacloud-oss-go-sdk-v2/oss"
	"github.com/aliyun/alibabacloud-oss-go-sdk-v2/oss/credentials"

	"github.com/joseph-ayodele/workorders-tracker/internal/common"
)

// OSSStore reads uploads from an Alibaba Cloud OSS bucket.
type OSSStore struct {
	client  *oss.Client
	bucket  string
	baseURL string
	logger  *slog.Logger
}

func NewOSSStore(cfg common.StorageConfig, logger *slog.Logger) *OSSStore {
	ossCfg := &oss.Config{
		Region: oss.Ptr(cfg.Region),
		CredentialsProvider: credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.AccessKeySecret,
		),
	}
	if cfg.Endpoint != "" {
		ossCfg.Endpoint = oss.Ptr(cfg.Endpoint)
	}
	base := strings.TrimRight(cfg.PublicBaseURL, "/")
	if base == "" {
		base = ossPublicBase(cfg.Bucket, cfg.Region)
	}
	logger.Info("storage.oss.ready", "bucket", cfg.Bucket, "region", cfg.Region, "public_base_url", base)
	return &OSSStore{client: oss.NewClient(ossCfg), bucket: cfg.Bucket, baseURL: base, logger: logger}
}

func ossPublicBase(bucket, region string) string {
	return fmt.Sprintf("https://%s.oss-%s.aliyuncs.com", bucket, strings.TrimPrefix(region, "oss-"))
}

func (s *OSSStore) Download(ctx context.Context, key string) ([]byte, error) {
	result, err := s.client.GetObject(ctx, &oss.GetObjectRequest{
		Bucket: oss.Ptr(s.bucket),
		Key:    oss.Ptr(key),
	})
	if err != nil {
		var se *oss.ServiceError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("object %q: %w", key, common.ErrNotFound)
		}
		return nil, fmt.Errorf("oss get %q: %w", key, err)
	}
	defer func() {
		if cerr := result.Body.Close(); cerr != nil {
			s.logger.Warn("storage.oss.close_error", "key", key, "error", cerr)
		}
	}()
	return readAllLimited(result.Body)
}

func (s *OSSStore) PublicURL(key string) string {
	return s.baseURL + "/" + escapeKey(key)
}
