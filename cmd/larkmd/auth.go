package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/larkmd/larkmd/internal/auth"
	"github.com/larkmd/larkmd/internal/config"
)

var (
	authCode        string
	authRedirectURI string
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize larkmd against your tenant",
	Long: `Auth runs the authorization-code flow and stores the resulting
tokens in the token cache.

App credentials come from LARK_APP_ID and LARK_APP_SECRET (environment
or .env). Without --code, auth prints the authorize URL, waits for you
to open it in a browser, and reads the code the redirect hands back.`,
	RunE: runAuth,
}

func init() {
	authCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	authCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	authCmd.Flags().StringVar(&authCode, "code", "", "authorization code from the redirect")
	authCmd.Flags().StringVar(&authRedirectURI, "redirect-uri", "http://localhost/callback", "redirect URI registered on the app")
}

func runAuth(cmd *cobra.Command, args []string) error {
	logger := setupLogger(nil, verbose)
	ctx, cancel := setupSignalHandler(logger)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.AppID == "" || cfg.AppSecret == "" {
		return fmt.Errorf("app credentials missing: set LARK_APP_ID and LARK_APP_SECRET")
	}

	manager, err := auth.NewManager(cfg.Auth.TokenFile, cfg.API.BaseURL, logger)
	if err != nil {
		return fmt.Errorf("loading token cache: %w", err)
	}

	code := authCode
	if code == "" {
		fmt.Println("Open this URL in a browser and authorize the app:")
		fmt.Println()
		fmt.Println("  " + auth.BuildAuthorizeURL(cfg.API.BaseURL, cfg.AppID, authRedirectURI))
		fmt.Println()
		fmt.Print("Paste the code from the redirect URL: ")

		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading authorization code: %w", err)
		}
		code = strings.TrimSpace(line)
	}
	if code == "" {
		return fmt.Errorf("empty authorization code")
	}

	if err := manager.Exchange(ctx, cfg.AppID, cfg.AppSecret, code); err != nil {
		return reportAPIError(logger, err)
	}

	logger.Info("authorized", "token_file", cfg.Auth.TokenFile)
	return nil
}
