// Package retry は指数バックオフ付きの再試行ポリシーを提供する。
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy は最大試行回数とバックオフ間隔を定める
// 待機時間は BaseDelay から倍々に増え、MaxDelay で頭打ちになる
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy は5回試行、1秒から16秒までのバックオフ
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		MaxDelay:    16 * time.Second,
	}
}

// NotifyFunc は失敗した試行の後、次の試行までの待機前に呼ばれる
type NotifyFunc func(attempt int, err error, wait time.Duration)

// Permanent は再試行しても解決しないエラーを示す
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do はopが成功するか試行回数を使い切るまで実行する
// 戻り値は実際に行った試行回数と最後のエラー
func (p Policy) Do(ctx context.Context, op func(attempt int) error, notify NotifyFunc) (int, error) {
	attempt := 0
	operation := func() error {
		attempt++
		return op(attempt)
	}
	var onRetry backoff.Notify
	if notify != nil {
		onRetry = func(err error, wait time.Duration) {
			notify(attempt, err, wait)
		}
	}
	err := backoff.RetryNotify(operation, backoff.WithContext(p.newBackOff(), ctx), onRetry)
	return attempt, err
}

// Delays は各試行の間に挟まる待機時間の一覧を返す
func (p Policy) Delays() []time.Duration {
	b := p.newBackOff()
	b.Reset()
	var delays []time.Duration
	for {
		next := b.NextBackOff()
		if next == backoff.Stop {
			return delays
		}
		delays = append(delays, next)
	}
}

func (p Policy) newBackOff() backoff.BackOff {
	// WithMaxRetries(b, 0) は無制限になるため1回だけの場合は明示的に止める
	if p.MaxAttempts <= 1 {
		return &backoff.StopBackOff{}
	}
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.BaseDelay
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxInterval = max(p.MaxDelay, p.BaseDelay)
	exp.MaxElapsedTime = 0
	exp.Reset()
	return backoff.WithMaxRetries(exp, uint64(p.MaxAttempts-1))
}
