package aws

import (
	"context"

	"clouddeploy/internal/service/common"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
)

// LoadAwsConfig はプロファイルとリージョンからAWS設定を読み込む
// 指定がなければ既定の認証チェーン（環境変数・共有設定ファイル・IMDSなど）に従う
func LoadAwsConfig(ctx context.Context, awsCtx Context) (aws.Config, error) {
	opts := make([]func(*config.LoadOptions) error, 0)

	if awsCtx.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(awsCtx.Profile))
	}
	if awsCtx.Region != "" {
		opts = append(opts, config.WithRegion(awsCtx.Region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, common.NewError(common.KindCredential, awsCtx.Profile, err)
	}
	return cfg, nil
}

// GetConfig は遅延初期化でAWS設定を取得（初回のみ認証処理実行）
func (c *Context) GetConfig(ctx context.Context) (aws.Config, error) {
	if c.config == nil {
		cfg, err := LoadAwsConfig(ctx, *c)
		if err != nil {
			return aws.Config{}, err
		}
		c.config = &cfg
	}
	return *c.config, nil
}

// VerifyCredentials は認証情報を実際に取得できるかを確認する
// リモート操作の前に一度だけ呼び出し、失敗は CredentialError になる
func VerifyCredentials(ctx context.Context, cfg aws.Config) error {
	if cfg.Credentials == nil {
		return common.Errorf(common.KindCredential, "", "認証情報が設定されていません")
	}
	creds, err := cfg.Credentials.Retrieve(ctx)
	if err != nil {
		return common.NewError(common.KindCredential, "", err)
	}
	if !creds.HasKeys() {
		return common.Errorf(common.KindCredential, creds.Source, "アクセスキーが空です")
	}
	return nil
}
