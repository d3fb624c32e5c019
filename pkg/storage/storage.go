package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"student-portal/config"
)

// ErrObjectNotFound 对象不存在
var ErrObjectNotFound = errors.New("文件不存在")

// ObjectStore 文档对象存储接口
// Service 层依赖此接口，单元测试中以内存实现替换
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, int64, error)
	Remove(ctx context.Context, key string) error
	PresignedURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

// MinIOStore 基于 MinIO / S3 兼容服务的对象存储
type MinIOStore struct {
	client *minio.Client
	bucket string
	region string
	logger *zap.Logger

	ensureMu      sync.Mutex
	bucketEnsured bool
}

// NewMinIOStore 创建 MinIO 客户端
// 启动时存储不可用不阻塞服务，首次读写时再确保 bucket 存在
func NewMinIOStore(cfg *config.StorageConfig, logger *zap.Logger) (*MinIOStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 MinIO 客户端失败: %w", err)
	}

	s := &MinIOStore{
		client: client,
		bucket: cfg.Bucket,
		region: cfg.Region,
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.ensureBucket(ctx); err != nil {
		logger.Warn("对象存储暂不可用，将在首次访问时重试",
			zap.String("endpoint", cfg.Endpoint),
			zap.String("bucket", cfg.Bucket),
			zap.Error(err),
		)
	} else {
		logger.Info("对象存储连接成功",
			zap.String("endpoint", cfg.Endpoint),
			zap.String("bucket", cfg.Bucket),
		)
	}

	return s, nil
}

func (s *MinIOStore) ensureBucket(ctx context.Context) error {
	s.ensureMu.Lock()
	defer s.ensureMu.Unlock()
	if s.bucketEnsured {
		return nil
	}

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("检查 bucket 失败: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("创建 bucket 失败: %w", err)
		}
		s.logger.Info("已创建 bucket", zap.String("bucket", s.bucket))
	}

	s.bucketEnsured = true
	return nil
}

// Put 上传对象
func (s *MinIOStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	info, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("上传文件失败: %w", err)
	}

	s.logger.Debug("文件已上传",
		zap.String("key", key),
		zap.String("etag", info.ETag),
		zap.Int64("size", size),
	)
	return nil
}

// Get 下载对象，调用方负责关闭返回的 ReadCloser
func (s *MinIOStore) Get(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return nil, 0, err
	}

	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, 0, ErrObjectNotFound
		}
		return nil, 0, fmt.Errorf("获取文件信息失败: %w", err)
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, fmt.Errorf("下载文件失败: %w", err)
	}
	return obj, info.Size, nil
}

// Remove 删除对象，对象不存在视为成功
func (s *MinIOStore) Remove(ctx context.Context, key string) error {
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("删除文件失败: %w", err)
	}
	return nil
}

// PresignedURL 生成限时下载链接
func (s *MinIOStore) PresignedURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return "", err
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, expires, nil)
	if err != nil {
		return "", fmt.Errorf("生成下载链接失败: %w", err)
	}
	return u.String(), nil
}

// ObjectKey 生成文档对象键：documents/<supervisorID>/<yyyy>/<mm>/<uuid><ext>
func ObjectKey(supervisorID, fileName string, now time.Time) string {
	ext := strings.ToLower(path.Ext(fileName))
	return fmt.Sprintf("documents/%s/%d/%02d/%s%s",
		supervisorID, now.Year(), now.Month(), uuid.NewString(), ext)
}
