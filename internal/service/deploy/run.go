// Package deploy はバケットの削除・アップロード・キャッシュ無効化を順に実行する。
package deploy

import (
	"context"
	"fmt"
	"time"

	"clouddeploy/internal/service/common"
	"clouddeploy/internal/service/walker"

	"github.com/sirupsen/logrus"
)

// Deployer はデプロイパイプラインを実行する
type Deployer struct {
	stages Stages
	opts   Options
	log    logrus.FieldLogger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewDeployer はDeployerを作成する
func NewDeployer(stages Stages, opts Options, logger logrus.FieldLogger) *Deployer {
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	return &Deployer{
		stages: stages,
		opts:   opts,
		log:    common.LoggerOrDiscard(logger),
		sleep:  sleepContext,
	}
}

// Run はパイプラインを実行する
// EmptyBucket → 待機 → アップロード → 無効化 の順で、失敗した段階で停止しそのエラーを返す。
// アップロードの失敗は全ファイルの試行が終わってから返し、無効化は行わない。
func (d *Deployer) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	report := Report{}

	if err := validateStages(d.stages, d.opts); err != nil {
		return report, err
	}
	root, err := d.stages.Source.Root()
	if err != nil {
		return report, common.NewError(common.KindFilesystem, "", err)
	}
	// バケットを空にする前にアップロード元を確認する
	if err := walker.CheckRoot(root); err != nil {
		return report, err
	}

	if d.opts.EmptyBucket {
		deleted, err := d.stages.Emptier.Empty(ctx)
		report.Deleted = deleted
		if err != nil {
			return report, err
		}
		if err := d.sleep(ctx, d.opts.SettleDelay); err != nil {
			return report, err
		}
	}

	summary, err := d.stages.Uploader.UploadAll(ctx, d.stages.Source.Files())
	report.Upload = summary
	if err != nil {
		return report, err
	}

	invalidationId, err := d.stages.Invalidator.Invalidate(ctx, d.opts.DistributionId, d.opts.InvalidationPaths)
	report.InvalidationId = invalidationId
	if err != nil {
		return report, err
	}

	report.Duration = time.Since(start)
	d.log.WithField("duration", common.FormatDuration(report.Duration)).Infof("%s デプロイ完了！", common.PartyIcon)
	return report, nil
}

// validateStages は必要な段階がそろっているかを確認します
func validateStages(stages Stages, opts Options) error {
	if opts.EmptyBucket && stages.Emptier == nil {
		return fmt.Errorf("バケットを空にする処理が指定されていません")
	}
	if stages.Source == nil {
		return fmt.Errorf("アップロード元が指定されていません")
	}
	if stages.Uploader == nil {
		return fmt.Errorf("アップロード処理が指定されていません")
	}
	if stages.Invalidator == nil {
		return fmt.Errorf("キャッシュ無効化処理が指定されていません")
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
