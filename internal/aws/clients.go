package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Clients AwsClients はAWS設定と各サービスクライアントを管理
type Clients struct {
	cfg aws.Config

	// 遅延初期化されるクライアント群
	s3         *s3.Client
	cloudFront *cloudfront.Client
	uploader   *manager.Uploader
}

// NewAwsClients は認証情報からAWS設定を読み込み、認証情報を確認してからクライアント管理構造体を作成
func NewAwsClients(ctx context.Context, awsCtx *Context) (*Clients, error) {
	cfg, err := awsCtx.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	if err := VerifyCredentials(ctx, cfg); err != nil {
		return nil, err
	}
	return &Clients{cfg: cfg}, nil
}

// Config は読み込んだAWS設定を返す
func (c *Clients) Config() aws.Config {
	return c.cfg
}

// S3 は遅延初期化でS3クライアントを取得
func (c *Clients) S3() *s3.Client {
	if c.s3 == nil {
		c.s3 = s3.NewFromConfig(c.cfg)
	}
	return c.s3
}

// CloudFront は遅延初期化でCloudFrontクライアントを取得
func (c *Clients) CloudFront() *cloudfront.Client {
	if c.cloudFront == nil {
		c.cloudFront = cloudfront.NewFromConfig(c.cfg)
	}
	return c.cloudFront
}

// Uploader は遅延初期化でS3アップローダーを取得
// 大きなファイルは自動的にマルチパートアップロードになる
func (c *Clients) Uploader() *manager.Uploader {
	if c.uploader == nil {
		c.uploader = manager.NewUploader(c.S3())
	}
	return c.uploader
}
