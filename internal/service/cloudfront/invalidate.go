package cloudfront

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clouddeploy/internal/service/common"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
	"github.com/sirupsen/logrus"
)

// DefaultPollInterval は無効化ステータスを確認する間隔の既定値
const DefaultPollInterval = 5 * time.Second

// InvalidatorOptions は無効化の待機設定
type InvalidatorOptions struct {
	PollInterval time.Duration
	Timeout      time.Duration // 0 の場合は完了するまで待ち続ける
}

// Invalidator はキャッシュ無効化を送信し、完了まで待機する
type Invalidator struct {
	client       API
	pollInterval time.Duration
	timeout      time.Duration
	log          logrus.FieldLogger
	sleep        func(ctx context.Context, d time.Duration) error
	now          func() time.Time
}

// NewInvalidator はInvalidatorを作成する
func NewInvalidator(client API, opts InvalidatorOptions, logger logrus.FieldLogger) *Invalidator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &Invalidator{
		client:       client,
		pollInterval: opts.PollInterval,
		timeout:      opts.Timeout,
		log:          common.LoggerOrDiscard(logger),
		sleep:        sleepContext,
		now:          time.Now,
	}
}

// Invalidate は無効化を送信し、ステータスが Completed になるまで待機する
// 戻り値は無効化ID
func (i *Invalidator) Invalidate(ctx context.Context, distributionId string, paths []string) (string, error) {
	invalidationId, err := i.Submit(ctx, distributionId, paths)
	if err != nil {
		return "", err
	}
	if err := i.Wait(ctx, distributionId, invalidationId); err != nil {
		return invalidationId, err
	}
	return invalidationId, nil
}

// Submit はCloudFrontディストリビューションのキャッシュ無効化を送信します
// 送信の失敗は InvalidationSubmitError になる
func (i *Invalidator) Submit(ctx context.Context, distributionId string, paths []string) (string, error) {
	if len(paths) == 0 {
		return "", common.Errorf(common.KindInvalidationSubmit, distributionId, "無効化するパスが指定されていません")
	}
	entry := i.log.WithField("distribution_id", distributionId)
	entry.Infof("%s CloudFrontディストリビューション (%s) のキャッシュを無効化します...", common.RocketIcon, distributionId)
	entry.Infof("   対象パス: %v", paths)

	// CallerReferenceは送信ごとに一意にする
	callerReference := fmt.Sprintf("clouddeploy-%d", i.now().UnixNano())

	result, err := i.client.CreateInvalidation(ctx, &cloudfront.CreateInvalidationInput{
		DistributionId: aws.String(distributionId),
		InvalidationBatch: &types.InvalidationBatch{
			CallerReference: aws.String(callerReference),
			Paths: &types.Paths{
				Quantity: aws.Int32(int32(len(paths))),
				Items:    paths,
			},
		},
	})
	if err != nil {
		return "", common.NewError(common.KindInvalidationSubmit, distributionId, err)
	}
	if result.Invalidation == nil || result.Invalidation.Id == nil {
		return "", common.Errorf(common.KindInvalidationSubmit, distributionId, "無効化IDが返されませんでした")
	}

	invalidationId := aws.ToString(result.Invalidation.Id)
	entry.WithField("invalidation_id", invalidationId).Infof("%s キャッシュ無効化を開始しました", common.SuccessIcon)
	return invalidationId, nil
}

// Wait は無効化が完了するまで待機します
// 確認の前に毎回PollIntervalだけ待つ。問い合わせの失敗とタイムアウトは InvalidationPollError になる。
func (i *Invalidator) Wait(ctx context.Context, distributionId, invalidationId string) error {
	entry := i.log.WithFields(logrus.Fields{
		"distribution_id": distributionId,
		"invalidation_id": invalidationId,
	})
	entry.Infof("%s 無効化の完了を待機しています...", common.WaitIcon)

	var deadline time.Time
	if i.timeout > 0 {
		deadline = i.now().Add(i.timeout)
	}

	for {
		if err := i.sleep(ctx, i.pollInterval); err != nil {
			return common.NewError(common.KindInvalidationPoll, invalidationId, err)
		}

		result, err := i.client.GetInvalidation(ctx, &cloudfront.GetInvalidationInput{
			DistributionId: aws.String(distributionId),
			Id:             aws.String(invalidationId),
		})
		if err != nil {
			return common.NewError(common.KindInvalidationPoll, invalidationId, err)
		}
		if result.Invalidation == nil {
			return common.Errorf(common.KindInvalidationPoll, invalidationId, "無効化の情報が返されませんでした")
		}

		status := aws.ToString(result.Invalidation.Status)
		entry.WithField("status", status).Info("   現在のステータス")
		if status == statusCompleted {
			entry.Infof("%s キャッシュ無効化が完了しました", common.SuccessIcon)
			return nil
		}

		if !deadline.IsZero() && !i.now().Before(deadline) {
			return common.Errorf(common.KindInvalidationPoll, invalidationId,
				"%s 以内に完了しませんでした (最終ステータス: %s)", i.timeout, status)
		}
	}
}

// Describe はディストリビューションの概要を取得する
func (i *Invalidator) Describe(ctx context.Context, distributionId string) (DistributionInfo, error) {
	result, err := i.client.GetDistribution(ctx, &cloudfront.GetDistributionInput{
		Id: aws.String(distributionId),
	})
	if err != nil {
		return DistributionInfo{}, err
	}
	dist := result.Distribution
	if dist == nil {
		return DistributionInfo{}, errors.New("ディストリビューションの情報が返されませんでした")
	}

	info := DistributionInfo{
		Id:         aws.ToString(dist.Id),
		DomainName: aws.ToString(dist.DomainName),
		Status:     aws.ToString(dist.Status),
	}
	if dist.DistributionConfig != nil {
		info.Comment = aws.ToString(dist.DistributionConfig.Comment)
		info.Enabled = aws.ToBool(dist.DistributionConfig.Enabled)
	}
	return info, nil
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
