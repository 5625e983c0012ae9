package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/bitfantasy/tyrefleet/internal/config"
)

// ObjectStore MinIO对象存储封装，用于检验报告等附件
type ObjectStore struct {
	client *minio.Client
	bucket string
}

// New 创建对象存储客户端。endpoint为空时返回nil，上传功能降级关闭
func New(cfg config.MinIOConfig) (*ObjectStore, error) {
	if cfg.Endpoint == "" {
		return nil, nil
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	return &ObjectStore{client: client, bucket: cfg.Bucket}, nil
}

// PutReport 上传检验报告文件，返回对象路径
func (s *ObjectStore) PutReport(ctx context.Context, reader io.Reader, fileName string, fileSize int64, contentType string) (string, error) {
	objectName := fmt.Sprintf("inspection-reports/%s/%s%s",
		time.Now().Format("2006/01/02"), uuid.New().String()[:8], filepath.Ext(fileName))

	_, err := s.client.PutObject(ctx, s.bucket, objectName, reader, fileSize, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload file: %w", err)
	}
	return objectName, nil
}
