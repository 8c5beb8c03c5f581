// Package storage는 업로드된 PDF의 S3 presigned URL 발급을 담당한다.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	appconfig "canvas-backend/internal/config"
)

// S3Service S3 presigned URL 발급 서비스
type S3Service struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	region  string
	expiry  time.Duration
}

// PresignedUpload 업로드용 presigned URL과 오브젝트 키
type PresignedUpload struct {
	URL       string    `json:"upload_url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewS3Service S3 클라이언트 생성. 버킷 미설정이면 호출측에서 nil 서비스로 둔다.
func NewS3Service(ctx context.Context, cfg appconfig.S3Config) (*S3Service, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	return &S3Service{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.BucketName,
		region:  cfg.Region,
		expiry:  cfg.PresignExpiry,
	}, nil
}

// GenerateUploadURL 방 단위 PDF 업로드용 presigned PUT URL 생성
func (s *S3Service) GenerateUploadURL(roomID, fileName, contentType string) (*PresignedUpload, error) {
	key := fmt.Sprintf("rooms/%s/pdf/%s-%s", roomID, uuid.NewString()[:8], sanitizeKey(fileName))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return nil, fmt.Errorf("failed to presign upload for %s: %w", key, err)
	}

	return &PresignedUpload{
		URL:       req.URL,
		Key:       key,
		ExpiresAt: time.Now().Add(s.expiry),
	}, nil
}

// GetDownloadURL presigned GET URL 생성
func (s *S3Service) GetDownloadURL(key string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign download for %s: %w", key, err)
	}
	return req.URL, nil
}

// GetPublicURL 업로드 완료 후 클라이언트가 방에 공유할 정적 URL
func (s *S3Service) GetPublicURL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

// DeleteFile 오브젝트 삭제 (best-effort)
func (s *S3Service) DeleteFile(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}

// sanitizeKey 파일명에서 S3 키에 부적합한 문자 제거
func sanitizeKey(name string) string {
	name = strings.TrimSpace(name)
	replacer := strings.NewReplacer(" ", "_", "<", "", ">", "", "\"", "", "\\", "", "|", "", "?", "", "*", "", "/", "_")
	name = replacer.Replace(name)
	if name == "" {
		name = "document.pdf"
	}
	return name
}
