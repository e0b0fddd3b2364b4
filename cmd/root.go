package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"clouddeploy/internal/aws"
	"clouddeploy/internal/config"
	"clouddeploy/internal/service/cachecontrol"
	cfsvc "clouddeploy/internal/service/cloudfront"
	"clouddeploy/internal/service/common"
	"clouddeploy/internal/service/deploy"
	"clouddeploy/internal/service/retry"
	s3svc "clouddeploy/internal/service/s3"
	"clouddeploy/internal/service/walker"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const AppName = "clouddeploy"

var (
	configPath   string
	region       string
	profile      string
	logLevel     string
	showProgress bool

	deployCfg *config.DeployConfig
	awsCtx    *aws.Context
	log       = logrus.New()
)

// RootCmd はサブコマンドなしで呼び出されたときにデプロイを実行する
var RootCmd = &cobra.Command{
	Use:   AppName,
	Short: "静的サイトをS3にデプロイしCloudFrontのキャッシュを無効化するコマンド",
	Long: `ローカルのディレクトリをS3バケットにアップロードし、CloudFrontのキャッシュを無効化します。

【処理の流れ】
  1. emptyBucket が true の場合はバケットを空にする
  2. webFolder 配下のファイルを並列でアップロード（Cache-Controlはルールで決定）
  3. cloudFrontInvalidationPaths を無効化し、完了まで待機

【使い方】
  ` + AppName + ` -c deploy.json                 # 設定ファイルを指定してデプロイ
  ` + AppName + ` -c deploy.json -P prod -R us-east-1
  AWS_DEPLOY_CLOUDFRONT_ID=E2EXAMPLE ` + AppName + ` -c deploy.json --progress`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := setupLogger(logLevel); err != nil {
			return err
		}
		// ヘルプとバージョン表示では設定を読み込まない
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}
		return loadDeployConfig()
	},
}

// Execute はルートコマンドを実行し、失敗した場合は終了コード1で終了する
// SIGINT/SIGTERM を受け取ると処理中のコンテキストをキャンセルする
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := RootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		reportError(err)
		os.Exit(1)
	}
}

func init() {
	// RunE は runDeploy が RootCmd を参照するため、初期化サイクルを避けて init で設定する
	RootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		// クライアントを作成する前に設定を確認する
		if err := deployCfg.Validate(); err != nil {
			return err
		}
		printConfig(cmd.OutOrStdout(), deployCfg)
		return runDeploy(cmd.Context(), deployCfg)
	}
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "設定ファイルのパス（未指定時は環境変数 "+config.ConfigFileEnv+"）")
	RootCmd.PersistentFlags().StringVarP(&region, "region", "R", "", "バケットのリージョン（設定ファイルの bucketRegion を上書き）")
	RootCmd.PersistentFlags().StringVarP(&profile, "profile", "P", "", "AWSプロファイル（設定ファイル・AWS_PROFILE を上書き）")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "ログレベル (debug, info, warn, error)")
	RootCmd.Flags().BoolVar(&showProgress, "progress", false, "アップロードの進捗をプログレスバーで表示")
}

// loadDeployConfig は設定を読み込み、コマンドラインの指定を反映する
func loadDeployConfig() error {
	path := config.ResolvePath(configPath)
	if path != "" {
		log.Infof("%s 設定ファイル '%s' を読み込みます", common.SearchIcon, path)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	cfg.ApplyOverrides(profile, region)
	if profile == "" && cfg.AWSProfile != "" {
		log.Infof("%s プロファイル '%s' を使用します", common.SearchIcon, cfg.AWSProfile)
	}
	deployCfg = cfg
	awsCtx = &aws.Context{Profile: cfg.AWSProfile, Region: cfg.BucketRegion}
	return nil
}

func runDeploy(ctx context.Context, cfg *config.DeployConfig) error {
	clients, err := aws.NewAwsClients(ctx, awsCtx)
	if err != nil {
		return err
	}

	exclude, err := common.NewKeyFilter(cfg.Exclude)
	if err != nil {
		return common.NewError(common.KindConfig, "exclude", err)
	}
	source := walker.New(cfg.WebFolder, log)

	var progress s3svc.Progress
	var finish func()
	if showProgress {
		bar := newUploadProgressBar(countFiles(source))
		progress = bar
		finish = func() { _ = bar.Finish() }
	}

	uploader := s3svc.NewUploader(clients.Uploader(), s3svc.UploaderOptions{
		Bucket:      cfg.BucketName,
		Root:        cfg.WebFolder,
		Matcher:     cachecontrol.Compile(cfg.CloudFrontCacheRules, cfg.CloudFrontDefaultCacheRule, log),
		Exclude:     exclude,
		Concurrency: cfg.Concurrency,
		Retry:       uploadRetryPolicy(cfg.MaxAttempts),
		Progress:    progress,
	}, log)

	stages := deploy.Stages{
		Source:   source,
		Uploader: uploader,
		Invalidator: cfsvc.NewInvalidator(clients.CloudFront(), cfsvc.InvalidatorOptions{
			PollInterval: cfg.PollInterval.Std(),
			Timeout:      cfg.InvalidationTimeout.Std(),
		}, log),
	}
	if cfg.EmptyBucket {
		stages.Emptier = s3svc.NewEmptier(clients.S3(), cfg.BucketName, log)
	}

	report, err := deploy.NewDeployer(stages, deploy.Options{
		EmptyBucket:       cfg.EmptyBucket,
		DistributionId:    cfg.CloudFrontID,
		InvalidationPaths: cfg.CloudFrontInvalidationPaths,
	}, log).Run(ctx)
	if finish != nil {
		finish()
	}

	printReport(RootCmd.OutOrStdout(), report)
	return err
}

func uploadRetryPolicy(maxAttempts int) retry.Policy {
	policy := retry.DefaultPolicy()
	policy.MaxAttempts = maxAttempts
	return policy
}

// reportError はエラーの種別に応じたメッセージを出力する
func reportError(err error) {
	if errors.Is(err, context.Canceled) {
		log.Warnf("%s 中断しました", common.WarningIcon)
		return
	}
	entry := logrus.NewEntry(log)
	if kind, ok := common.KindOf(err); ok {
		entry = entry.WithField("kind", string(kind))
	}
	entry.Errorf("%s %v", common.ErrorIcon, err)
}
