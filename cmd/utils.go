package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"clouddeploy/internal/config"
	"clouddeploy/internal/service/common"
	"clouddeploy/internal/service/deploy"
	s3svc "clouddeploy/internal/service/s3"

	"github.com/sirupsen/logrus"
)

// setupLogger はログレベルとフォーマットを設定する
func setupLogger(level string) error {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return common.Errorf(common.KindConfig, "log-level", "不正なログレベルです: %s", level)
	}
	log.SetLevel(parsed)
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})
	return nil
}

// printConfig は実行前に設定内容を表示する
func printConfig(w io.Writer, cfg *config.DeployConfig) {
	common.FprintTable(w, "デプロイ設定", []common.TableColumn{
		{Header: "項目"},
		{Header: "値"},
	}, cfg.Rows())
	fmt.Fprintln(w)
}

// printReport はアップロード結果と失敗したファイルの一覧を表示する
func printReport(w io.Writer, report deploy.Report) {
	summary := report.Upload
	if summary.Total() == 0 && report.Deleted == 0 {
		return
	}
	rows := [][]string{
		{"削除", strconv.Itoa(report.Deleted)},
		{"アップロード", strconv.Itoa(summary.Uploaded)},
		{"スキップ", strconv.Itoa(summary.Skipped)},
		{"失敗", strconv.Itoa(len(summary.Failed))},
		{"転送量", common.FormatBytes(summary.Bytes)},
		{"所要時間", common.FormatDuration(summary.Duration)},
	}
	if report.InvalidationId != "" {
		rows = append(rows, []string{"無効化ID", report.InvalidationId})
	}
	common.FprintTable(w, "実行結果", []common.TableColumn{
		{Header: "項目"},
		{Header: "件数"},
	}, rows)

	printUploadFailures(w, summary)
}

func printUploadFailures(w io.Writer, summary s3svc.UploadSummary) {
	if len(summary.Failed) == 0 {
		return
	}
	rows := make([][]string, 0, len(summary.Failed))
	for _, failed := range summary.Failed {
		rows = append(rows, []string{
			failed.Key,
			strconv.Itoa(failed.Attempts),
			common.DescribeCause(failed.Err),
		})
	}
	common.FprintTable(w, common.ErrorIcon+" アップロードに失敗したファイル", []common.TableColumn{
		{Header: "キー", Width: 20},
		{Header: "試行回数"},
		{Header: "原因"},
	}, rows)
}

// confirm は利用者に y/N で確認する
func confirm(in io.Reader, out io.Writer, message string) bool {
	fmt.Fprintf(out, "%s %s [y/N]: ", common.WarningIcon, message)
	reader := bufio.NewReader(in)
	answer, err := reader.ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
