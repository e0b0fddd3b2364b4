// Package config はデプロイ設定を設定ファイル・環境変数・既定値から読み込む。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"clouddeploy/internal/service/cachecontrol"
	"clouddeploy/internal/service/common"

	"github.com/jinzhu/configor"
)

const (
	// ConfigFileEnv は設定ファイルのパスを指定する環境変数
	ConfigFileEnv = "AWS_DEPLOY_CONFIG_FILE"
	envPrefix     = "AWS_DEPLOY"
)

// DeployConfig はデプロイ設定
// 環境変数は設定ファイルの値を上書きし、どちらもなければ既定値になる
type DeployConfig struct {
	BucketName                  string                   `json:"bucketName" yaml:"bucketName" toml:"bucketName" env:"AWS_DEPLOY_BUCKET_NAME"`
	BucketRegion                string                   `json:"bucketRegion" yaml:"bucketRegion" toml:"bucketRegion" env:"AWS_DEPLOY_BUCKET_REGION"`
	WebFolder                   string                   `json:"webFolder" yaml:"webFolder" toml:"webFolder" env:"AWS_DEPLOY_WEB_FOLDER"`
	CloudFrontID                string                   `json:"cloudFrontID" yaml:"cloudFrontID" toml:"cloudFrontID" env:"AWS_DEPLOY_CLOUDFRONT_ID"`
	CloudFrontDefaultCacheRule  string                   `json:"cloudFrontDefaultCacheRule" yaml:"cloudFrontDefaultCacheRule" toml:"cloudFrontDefaultCacheRule" default:"no-cache"`
	CloudFrontInvalidationPaths []string                 `json:"cloudFrontInvalidationPaths" yaml:"cloudFrontInvalidationPaths" toml:"cloudFrontInvalidationPaths" default:"[\"/*\"]"`
	CloudFrontCacheRules        []cachecontrol.CacheRule `json:"cloudFrontCacheRules" yaml:"cloudFrontCacheRules" toml:"cloudFrontCacheRules"`
	EmptyBucket                 bool                     `json:"emptyBucket" yaml:"emptyBucket" toml:"emptyBucket" env:"AWS_DEPLOY_EMPTY_BUCKET"`
	AWSProfile                  string                   `json:"awsProfile" yaml:"awsProfile" toml:"awsProfile" env:"AWS_PROFILE"`
	Exclude                     []string                 `json:"exclude" yaml:"exclude" toml:"exclude"`
	Concurrency                 int                      `json:"concurrency" yaml:"concurrency" toml:"concurrency" default:"5"`
	MaxAttempts                 int                      `json:"maxAttempts" yaml:"maxAttempts" toml:"maxAttempts" default:"5"`
	PollInterval                Duration                 `json:"pollInterval" yaml:"pollInterval" toml:"pollInterval" default:"5s"`
	InvalidationTimeout         Duration                 `json:"invalidationTimeout" yaml:"invalidationTimeout" toml:"invalidationTimeout"`
}

// ResolvePath はフラグで指定されたパス、なければ AWS_DEPLOY_CONFIG_FILE を返す
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(ConfigFileEnv)
}

// Load は設定ファイル（任意）と環境変数から設定を読み込む
// パスが指定されているのに存在しない場合は ConfigError
func Load(path string) (*DeployConfig, error) {
	var files []string
	if path != "" {
		info, err := os.Stat(path)
		if err != nil {
			return nil, common.NewError(common.KindConfig, path, err)
		}
		if info.IsDir() {
			return nil, common.Errorf(common.KindConfig, path, "ディレクトリは設定ファイルとして読み込めません")
		}
		files = append(files, path)
	}

	cfg := &DeployConfig{}
	loader := configor.New(&configor.Config{
		ENVPrefix: envPrefix,
		Silent:    true,
	})
	if err := loader.Load(cfg, files...); err != nil {
		return nil, common.NewError(common.KindConfig, path, err)
	}
	return cfg, nil
}

// ApplyOverrides はコマンドラインで指定されたプロファイルとリージョンを反映する
func (c *DeployConfig) ApplyOverrides(profile, region string) {
	if profile != "" {
		c.AWSProfile = profile
	}
	if region != "" {
		c.BucketRegion = region
	}
}

// Validate は必須項目と値の範囲を確認する
// 未設定の必須項目はまとめて1つの ConfigError で報告する
func (c *DeployConfig) Validate() error {
	var missing []string
	for _, field := range []struct {
		name  string
		value string
	}{
		{"bucketName", c.BucketName},
		{"bucketRegion", c.BucketRegion},
		{"webFolder", c.WebFolder},
		{"cloudFrontID", c.CloudFrontID},
	} {
		if strings.TrimSpace(field.value) == "" {
			missing = append(missing, field.name)
		}
	}
	if len(c.CloudFrontCacheRules) == 0 {
		missing = append(missing, "cloudFrontCacheRules")
	}
	if len(missing) > 0 {
		return common.Errorf(common.KindConfig, "", "必須項目が設定されていません: %s", strings.Join(missing, ", "))
	}

	return c.validateRanges()
}

// ValidateFor は一部のサブコマンドで必要な項目だけを確認する
func (c *DeployConfig) ValidateFor(fields ...string) error {
	values := map[string]string{
		"bucketName":   c.BucketName,
		"bucketRegion": c.BucketRegion,
		"webFolder":    c.WebFolder,
		"cloudFrontID": c.CloudFrontID,
	}
	var missing []string
	for _, name := range fields {
		if strings.TrimSpace(values[name]) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return common.Errorf(common.KindConfig, "", "必須項目が設定されていません: %s", strings.Join(missing, ", "))
	}
	return c.validateRanges()
}

func (c *DeployConfig) validateRanges() error {
	if c.Concurrency < 1 {
		return common.Errorf(common.KindConfig, "concurrency", "1以上を指定してください: %d", c.Concurrency)
	}
	if c.MaxAttempts < 1 {
		return common.Errorf(common.KindConfig, "maxAttempts", "1以上を指定してください: %d", c.MaxAttempts)
	}
	if c.PollInterval <= 0 {
		return common.Errorf(common.KindConfig, "pollInterval", "正の時間を指定してください: %s", c.PollInterval)
	}
	if c.InvalidationTimeout < 0 {
		return common.Errorf(common.KindConfig, "invalidationTimeout", "負の時間は指定できません: %s", c.InvalidationTimeout)
	}
	if len(c.CloudFrontInvalidationPaths) == 0 {
		return common.Errorf(common.KindConfig, "cloudFrontInvalidationPaths", "無効化するパスを1つ以上指定してください")
	}
	if _, err := common.NewKeyFilter(c.Exclude); err != nil {
		return common.NewError(common.KindConfig, "exclude", err)
	}
	return nil
}

// Rows は設定内容を表形式で表示するための行を返す
func (c *DeployConfig) Rows() [][]string {
	profile := c.AWSProfile
	if profile == "" {
		profile = "(default)"
	}
	timeout := "なし"
	if c.InvalidationTimeout > 0 {
		timeout = c.InvalidationTimeout.String()
	}
	return [][]string{
		{"bucketName", c.BucketName},
		{"bucketRegion", c.BucketRegion},
		{"webFolder", c.WebFolder},
		{"cloudFrontID", c.CloudFrontID},
		{"awsProfile", profile},
		{"emptyBucket", strconv.FormatBool(c.EmptyBucket)},
		{"cacheRules", fmt.Sprintf("%d件 (既定: %s)", len(c.CloudFrontCacheRules), c.CloudFrontDefaultCacheRule)},
		{"invalidationPaths", strings.Join(c.CloudFrontInvalidationPaths, ", ")},
		{"exclude", strings.Join(c.Exclude, ", ")},
		{"concurrency", strconv.Itoa(c.Concurrency)},
		{"maxAttempts", strconv.Itoa(c.MaxAttempts)},
		{"pollInterval", c.PollInterval.String()},
		{"invalidationTimeout", timeout},
	}
}
