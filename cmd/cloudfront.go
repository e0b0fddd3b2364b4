package cmd

import (
	"fmt"

	"clouddeploy/internal/aws"
	cfsvc "clouddeploy/internal/service/cloudfront"
	"clouddeploy/internal/service/common"

	"github.com/spf13/cobra"
)

// CloudFrontは特定のリージョンに属さないが、クライアント作成にはリージョンが必要
const cloudFrontRegion = "us-east-1"

// invalidateCmd represents the invalidate command
var invalidateCmd = &cobra.Command{
	Use:   "invalidate [distribution-id]",
	Short: "CloudFrontのキャッシュを無効化するコマンド",
	Long: `CloudFrontディストリビューションのキャッシュを無効化します。
ディストリビューションIDを省略した場合は設定の cloudFrontID を使用します。

【使い方】
  ` + AppName + ` invalidate -c deploy.json                  # 設定のパスを無効化
  ` + AppName + ` invalidate E2ABC123DEF456 -p "/images/*"   # 特定パスを無効化
  ` + AppName + ` invalidate -c deploy.json -w               # 完了まで待機`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, _ := cmd.Flags().GetStringSlice("path")
		wait, _ := cmd.Flags().GetBool("wait")

		if len(args) > 0 {
			deployCfg.CloudFrontID = args[0]
		}
		if len(paths) > 0 {
			deployCfg.CloudFrontInvalidationPaths = paths
		}
		if err := deployCfg.ValidateFor("cloudFrontID"); err != nil {
			return err
		}
		if awsCtx.Region == "" {
			awsCtx.Region = cloudFrontRegion
		}

		ctx := cmd.Context()
		clients, err := aws.NewAwsClients(ctx, awsCtx)
		if err != nil {
			return err
		}
		invalidator := cfsvc.NewInvalidator(clients.CloudFront(), cfsvc.InvalidatorOptions{
			PollInterval: deployCfg.PollInterval.Std(),
			Timeout:      deployCfg.InvalidationTimeout.Std(),
		}, log)

		distributionId := deployCfg.CloudFrontID
		if info, err := invalidator.Describe(ctx, distributionId); err != nil {
			log.WithError(err).Warnf("%s ディストリビューションの詳細を取得できませんでした", common.WarningIcon)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s - %s (%s)\n", common.InfoIcon, info.Id, info.DomainName, info.Comment)
		}

		var invalidationId string
		if wait {
			invalidationId, err = invalidator.Invalidate(ctx, distributionId, deployCfg.CloudFrontInvalidationPaths)
		} else {
			invalidationId, err = invalidator.Submit(ctx, distributionId, deployCfg.CloudFrontInvalidationPaths)
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s 無効化ID: %s\n", common.SuccessIcon, invalidationId)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(invalidateCmd)
	invalidateCmd.Flags().StringSliceP("path", "p", nil, "無効化するパス（複数指定可、未指定時は設定の cloudFrontInvalidationPaths）")
	invalidateCmd.Flags().BoolP("wait", "w", false, "無効化完了まで待機する")
}
