package cmd

import (
	"fmt"

	"clouddeploy/internal/aws"
	"clouddeploy/internal/service/common"
	s3svc "clouddeploy/internal/service/s3"

	"github.com/spf13/cobra"
)

// emptyCmd represents the empty command
var emptyCmd = &cobra.Command{
	Use:   "empty [bucket-name]",
	Short: "S3バケット内のオブジェクトをすべて削除するコマンド",
	Long: `S3バケット内のオブジェクトをすべて削除します。バケット自体は削除しません。
バケット名を省略した場合は設定の bucketName を使用します。

【使い方】
  ` + AppName + ` empty -c deploy.json          # 確認後に削除
  ` + AppName + ` empty my-bucket -R ap-northeast-1 -y`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")

		if len(args) > 0 {
			deployCfg.BucketName = args[0]
		}
		if err := deployCfg.ValidateFor("bucketName", "bucketRegion"); err != nil {
			return err
		}

		if !yes && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(),
			fmt.Sprintf("バケット '%s' のオブジェクトをすべて削除します。よろしいですか？", deployCfg.BucketName)) {
			fmt.Fprintln(cmd.OutOrStdout(), "キャンセルしました")
			return nil
		}

		ctx := cmd.Context()
		clients, err := aws.NewAwsClients(ctx, awsCtx)
		if err != nil {
			return err
		}

		deleted, err := s3svc.NewEmptier(clients.S3(), deployCfg.BucketName, log).Empty(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %d件のオブジェクトを削除しました\n", common.SuccessIcon, deleted)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(emptyCmd)
	emptyCmd.Flags().BoolP("yes", "y", false, "確認せずに削除する")
}
