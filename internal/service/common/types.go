package common

// TableColumn はテーブルの列定義
type TableColumn struct {
	Header string
	Width  int // 最小幅（0の場合は内容に合わせる）
}
