package deploy

import (
	"context"
	"iter"
	"time"

	s3svc "clouddeploy/internal/service/s3"
)

// DefaultSettleDelay はバケットを空にしてからアップロードを始めるまでの待機時間
const DefaultSettleDelay = 500 * time.Millisecond

// BucketEmptier はバケットを空にする処理
type BucketEmptier interface {
	Empty(ctx context.Context) (int, error)
}

// FileUploader はファイル一覧をアップロードする処理
type FileUploader interface {
	UploadAll(ctx context.Context, files iter.Seq2[string, error]) (s3svc.UploadSummary, error)
}

// CacheInvalidator はキャッシュ無効化を送信し完了まで待つ処理
type CacheInvalidator interface {
	Invalidate(ctx context.Context, distributionId string, paths []string) (string, error)
}

// FileSource はアップロード対象のファイルを列挙する
type FileSource interface {
	Root() (string, error)
	Files() iter.Seq2[string, error]
}

// Stages はパイプラインの各段階を担う実装
// EmptyBucketが偽ならEmptierはnilでよい
type Stages struct {
	Emptier     BucketEmptier
	Source      FileSource
	Uploader    FileUploader
	Invalidator CacheInvalidator
}

// Options はデプロイ処理のパラメータを格納する構造体
type Options struct {
	EmptyBucket       bool
	DistributionId    string
	InvalidationPaths []string
	SettleDelay       time.Duration // 0 の場合は DefaultSettleDelay
}

// Report は各段階の結果
type Report struct {
	Deleted        int
	Upload         s3svc.UploadSummary
	InvalidationId string
	Duration       time.Duration
}
