package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"checkin-automation/auth"
	"checkin-automation/bridge"
	"checkin-automation/browser"
	"checkin-automation/captcha"
	"checkin-automation/checkin"
	"checkin-automation/config"
	"checkin-automation/hifiti"
	"checkin-automation/logger"
	"checkin-automation/notify"
	"checkin-automation/profile"
	"checkin-automation/retry"
	"checkin-automation/runner"
	"checkin-automation/stealth"
)

var (
	configFile string
	verbose    bool
	headless   bool
)

func main() {
	var rootCmd = &cobra.Command{
		Use:          "checkin-automation",
		Short:        "Daily forum check-in automation",
		Long:         `Logs into the configured forums, performs the daily check-in and reports the result through the configured notification channels.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./config/config.yaml", "Configuration file path")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&headless, "headless", true, "Run browser in headless mode")

	rootCmd.AddCommand(createSJSCmd())
	rootCmd.AddCommand(createHiFiTiCmd())
	rootCmd.AddCommand(createNotifyTestCmd())
	rootCmd.AddCommand(createConfigCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func createSJSCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sjs",
		Short: "Check in on the captcha protected forum",
		Long:  `Logs in over HTTP (solving the login captcha through the OCR service), checks in with a headless browser and sends a report.`,
		RunE:  runSJS,
	}
}

func createHiFiTiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hifiti",
		Short: "Check in on HiFiTi",
		Long:  `Logs into HiFiTi, calls the sign endpoint and sends a summary of the sign page.`,
		RunE:  runHiFiTi,
	}
}

func createNotifyTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notify-test",
		Short: "Send a test notification",
		Long:  `Sends a fixed message through every configured channel to verify delivery.`,
		RunE:  runNotifyTest,
	}
}

func createConfigCmd() *cobra.Command {
	var force bool

	var cmd = &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	var initCmd = &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with default values",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(configFile); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", configFile)
			}
			if err := config.WriteDefault(configFile); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}
			fmt.Printf("Configuration written to %s\n", configFile)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	cmd.AddCommand(initCmd)
	return cmd
}

// Command runners

func runSJS(cmd *cobra.Command, args []string) error {
	cfg, err := setup(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateSJS(); err != nil {
		logger.WithError(err).Error("Missing configuration")
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Run.Timeout)
	defer cancel()

	log := logger.GetLogger()
	launcher := browser.NewRodLauncher(browserOptions(cfg), log)

	session, err := auth.NewSession(
		auth.Credentials{Username: cfg.SJS.Username, Password: cfg.SJS.Password},
		auth.Options{BaseURL: cfg.SJS.BaseURL, Timeout: cfg.SJS.Timeout},
		auth.NewBrowserFormFetcher(launcher, cfg.SJS.BaseURL, 10*time.Second, log),
		captcha.NewOCRClient(cfg.SJS.OCRService, cfg.SJS.Timeout, log),
		retry.DefaultPolicy(log),
		log,
	)
	if err != nil {
		return err
	}

	classifier := checkin.DefaultClassifier()
	r := runner.New(
		session,
		launcher,
		bridge.New(time.Second, log),
		checkin.NewDriver(checkin.Options{
			BaseURL:       cfg.SJS.BaseURL,
			SignPath:      cfg.SJS.SignPath,
			ScreenshotDir: cfg.Browser.ScreenshotDir,
			TriggerWait:   15 * time.Second,
			Settle:        2 * time.Second,
		}, classifier, log),
		profile.NewExtractor(profile.Options{
			BaseURL:       cfg.SJS.BaseURL,
			SignPath:      cfg.SJS.SignPath,
			ScreenshotDir: cfg.Browser.ScreenshotDir,
			Wait:          20 * time.Second,
		}, classifier, log),
		notify.FromConfig(cfg.Notify, log),
		log,
	)

	result := r.Run(ctx)
	fmt.Printf("Check-in status: %s\n", result.Status.Label())
	return nil
}

func runHiFiTi(cmd *cobra.Command, args []string) error {
	cfg, err := setup(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateHiFiTi(); err != nil {
		logger.WithError(err).Error("Missing configuration")
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Run.Timeout)
	defer cancel()

	log := logger.GetLogger()
	client, err := hifiti.NewClient(hifiti.Options{
		BaseURL:     cfg.HiFiTi.BaseURL,
		Username:    cfg.HiFiTi.Username,
		Password:    cfg.HiFiTi.Password,
		DisplayName: cfg.HiFiTi.DisplayName,
		Timeout:     cfg.HiFiTi.Timeout,
	}, log)
	if err != nil {
		return err
	}

	summary := client.Run(ctx, notify.FromConfig(cfg.Notify, log))
	fmt.Println(summary)
	return nil
}

func runNotifyTest(cmd *cobra.Command, args []string) error {
	cfg, err := setup(cmd)
	if err != nil {
		return err
	}

	title := "通知服务测试 - " + time.Now().Format("2006-01-02 15:04:05")
	body := "这是一条来自 checkin-automation 的测试通知，用于验证当前环境下的推送配置是否生效。"

	fmt.Println("🚀 正在发送测试通知...")
	notify.FromConfig(cfg.Notify, logger.GetLogger()).Send(cmd.Context(), title, body)
	fmt.Println("✅ 推送调用完成，请到对应渠道确认是否收到消息。")
	return nil
}

// Helper functions

// setup loads configuration, initializes logging and tags the run
func setup(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if flag := cmd.Flag("headless"); flag != nil && flag.Changed {
		cfg.Browser.Headless = headless
	}

	if err := setupLogger(cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}

	runID := uuid.NewString()
	logger.AttachRunID(runID)
	logger.WithField("command", cmd.Name()).Info("Run started")

	return cfg, nil
}

func setupLogger(cfg config.LoggingConfig) error {
	level := cfg.Level
	if verbose {
		level = "debug"
	}
	return logger.InitLogger(level, cfg.Format, cfg.Output)
}

func browserOptions(cfg *config.Config) browser.Options {
	return browser.Options{
		Headless:       cfg.Browser.Headless,
		ExecutablePath: cfg.Browser.ExecutablePath,
		NoSandbox:      cfg.Browser.NoSandbox,
		Stealth: stealth.StealthConfig{
			Enabled:        true,
			UserAgent:      cfg.Browser.UserAgent,
			ViewportWidth:  cfg.Browser.ViewportWidth,
			ViewportHeight: cfg.Browser.ViewportHeight,
		},
	}
}
