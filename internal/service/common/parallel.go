package common

import (
	"context"
	"sync"
)

// ParallelExecutor は並列処理を管理する構造体
type ParallelExecutor struct {
	maxWorkers int
	wg         sync.WaitGroup
	semaphore  chan struct{}
}

// NewParallelExecutor は新しいParallelExecutorを作成
func NewParallelExecutor(maxWorkers int) *ParallelExecutor {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &ParallelExecutor{
		maxWorkers: maxWorkers,
		semaphore:  make(chan struct{}, maxWorkers),
	}
}

// MaxWorkers は同時実行数の上限を返す
func (p *ParallelExecutor) MaxWorkers() int {
	return p.maxWorkers
}

// Execute はタスクを並列で実行
// 空きスロットがない間は呼び出し側がブロックされる
func (p *ParallelExecutor) Execute(task func()) {
	p.semaphore <- struct{}{} // セマフォ取得（同時実行数制限）
	p.spawn(task)
}

// ExecuteContext はExecuteと同じだが、スロット待ちの間にctxが終了した場合はタスクを起動せずにエラーを返す
func (p *ParallelExecutor) ExecuteContext(ctx context.Context, task func()) error {
	select {
	case p.semaphore <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	p.spawn(task)
	return nil
}

func (p *ParallelExecutor) spawn(task func()) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() { <-p.semaphore }() // セマフォ解放
		task()
	}()
}

// Wait はすべてのタスクの完了を待つ
func (p *ParallelExecutor) Wait() {
	p.wg.Wait()
}
