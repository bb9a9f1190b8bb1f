// Package storage はS3互換オブジェクトストレージへのアクセスを提供する。
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Config はS3クライアントの設定。
// EndpointにMinIO等の互換エンドポイントを指定できる。
// AccessKey/SecretKeyが空の場合はSDKのデフォルト認証チェーンを使用する。
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	PathStyle bool
}

// Client はS3バケットへのアップロード・削除・署名付きURL発行を提供する。
// 複数のリクエストから並行に使用しても安全。
type Client struct {
	api      *s3.Client
	presign  *s3.PresignClient
	bucket   string
	region   string
	endpoint string
}

// New はS3クライアントを生成する。
func New(ctx context.Context, cfg Config) (*Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	return &Client{
		api:      api,
		presign:  s3.NewPresignClient(api),
		bucket:   cfg.Bucket,
		region:   cfg.Region,
		endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
	}, nil
}

// Upload はオブジェクトを非公開でアップロードする。
// 取得には署名付きURL（PresignGet）を使用する。
func (c *Client) Upload(ctx context.Context, key string, body io.Reader, contentType string) error {
	_, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to put object: %w", err)
	}
	return nil
}

// UploadPublic はオブジェクトをpublic-readでアップロードし、公開URLを返す。
// プロフィール画像はフロントエンドから直接参照されるため公開保存する。
func (c *Client) UploadPublic(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	_, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
		ACL:         types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", fmt.Errorf("failed to put object: %w", err)
	}

	return c.ObjectURL(key), nil
}

// Delete は指定キーのオブジェクトを削除する。
// 存在しないキーの削除はS3仕様上成功扱いになる。
func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// PresignGet は指定キーの時間制限付き署名URLを発行する。
// オブジェクトの存在確認は行わない。存在しないキーのURLは取得時に404になる。
func (c *Client) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("failed to presign get object: %w", err)
	}

	return req.URL, nil
}

// ObjectURL はオブジェクトキーから公開URLを組み立てる。
// カスタムエンドポイント設定時（MinIO等）はパス形式
// <endpoint>/<bucket>/<key>、未設定時はAWSの仮想ホスト形式になる。
func (c *Client) ObjectURL(key string) string {
	if c.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", c.endpoint, c.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", c.bucket, c.region, key)
}

// KeyFromURL は公開URLからオブジェクトキーを取り出す。
// AWSの仮想ホスト形式URLはパス全体がキー、それ以外（カスタムエンドポイントの
// パス形式URL）は先頭セグメントがバケット名のため取り除く。
// キーを含まないURLの場合は空文字を返す。
//
// 例:
//   "https://bucket.s3.region.amazonaws.com/profile-pics/x.jpg" → "profile-pics/x.jpg"
//   "http://minio:9000/bucket/profile-pics/x.jpg"               → "profile-pics/x.jpg"
func KeyFromURL(rawURL string) string {
	trimmed := strings.TrimPrefix(rawURL, "https://")
	trimmed = strings.TrimPrefix(trimmed, "http://")
	host, path, found := strings.Cut(trimmed, "/")
	if !found {
		return ""
	}
	if strings.HasSuffix(strings.ToLower(hostWithoutPort(host)), ".amazonaws.com") {
		return path
	}
	_, key, found := strings.Cut(path, "/")
	if !found {
		return ""
	}
	return key
}

func hostWithoutPort(host string) string {
	if i := strings.LastIndex(host, ":"); i >= 0 {
		return host[:i]
	}
	return host
}
