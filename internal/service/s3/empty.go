package s3

import (
	"context"
	"errors"
	"fmt"

	"clouddeploy/internal/service/common"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"
)

// DeleteObjectsの1リクエストで指定できるキーの上限
const deleteBatchSize = 1000

// Emptier はバケット内のオブジェクトをすべて削除する
type Emptier struct {
	client BucketAPI
	bucket string
	log    logrus.FieldLogger
}

// NewEmptier はEmptierを作成する
func NewEmptier(client BucketAPI, bucket string, logger logrus.FieldLogger) *Emptier {
	return &Emptier{
		client: client,
		bucket: bucket,
		log:    common.LoggerOrDiscard(logger).WithField("bucket", bucket),
	}
}

// Empty はバケットを空にし、削除したオブジェクト数を返す
// 既に空の場合は何もしない。一覧取得・削除の失敗はそれぞれ BucketListError / BucketDeleteError になる。
func (e *Emptier) Empty(ctx context.Context) (int, error) {
	e.log.Infof("%s バケット %s を空にしています...", common.ProcessIcon, e.bucket)

	keys, err := e.ListKeys(ctx)
	if err != nil {
		return 0, common.NewError(common.KindBucketList, e.bucket, err)
	}
	if len(keys) == 0 {
		e.log.Infof("%s バケットは既に空です", common.InfoIcon)
		return 0, nil
	}
	e.log.Infof("%s %d件のオブジェクトが見つかりました", common.SearchIcon, len(keys))

	deleted := 0
	for start := 0; start < len(keys); start += deleteBatchSize {
		batch := keys[start:min(start+deleteBatchSize, len(keys))]
		if err := e.deleteBatch(ctx, batch); err != nil {
			return deleted, common.NewError(common.KindBucketDelete, e.bucket, err)
		}
		deleted += len(batch)
	}

	e.log.Infof("%s バケットを空にしました (%d件)", common.SuccessIcon, deleted)
	return deleted, nil
}

// ListKeys はバケット内の全キーを継続トークンをたどって取得する
func (e *Emptier) ListKeys(ctx context.Context) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(e.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(e.bucket),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

func (e *Emptier) deleteBatch(ctx context.Context, keys []string) error {
	objects := make([]types.ObjectIdentifier, 0, len(keys))
	for _, key := range keys {
		objects = append(objects, types.ObjectIdentifier{Key: aws.String(key)})
	}

	e.log.Debugf("%d件のオブジェクトを削除中...", len(objects))
	output, err := e.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(e.bucket),
		Delete: &types.Delete{
			Objects: objects,
			Quiet:   aws.Bool(true),
		},
	})
	if err != nil {
		return err
	}

	if len(output.Errors) > 0 {
		errs := make([]error, 0, len(output.Errors))
		for _, deleteErr := range output.Errors {
			errs = append(errs, fmt.Errorf("%s: %s: %s",
				aws.ToString(deleteErr.Key),
				aws.ToString(deleteErr.Code),
				aws.ToString(deleteErr.Message)))
		}
		return fmt.Errorf("%d件のオブジェクトを削除できませんでした: %w", len(output.Errors), errors.Join(errs...))
	}
	return nil
}
