package cmd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dufs-go/dufs/frontend"
	"github.com/dufs-go/dufs/internal/authchallenge"
	"github.com/dufs-go/dufs/internal/config"
	"github.com/dufs-go/dufs/internal/dispatch"
	"github.com/dufs-go/dufs/internal/slogutil"
)

var flags struct {
	bind        []string
	port        uint16
	pathPrefix  string
	hidden      string
	auth        []string
	authMethod  string
	allowAll     bool
	allowUpload  bool
	allowDelete  bool
	allowSearch  bool
	allowSymlink bool
	enableCORS   bool
	renderIndex bool
	renderTry   bool
	renderSPA   bool
	assetsDir   string
	tlsCert     string
	tlsKey      string
	logFormat   string
	completions string

	logFile       string
	logLevel      string
	logMaxSizeMB  int
	logMaxBackups int
	logMaxAgeDays int
	logCompress   bool
}

func init() {
	f := rootCmd.Flags()
	f.StringSliceVarP(&flags.bind, "bind", "b", []string{"0.0.0.0", "::"}, "bind addresses; non-IP values are unix-socket paths")
	f.Uint16VarP(&flags.port, "port", "p", 5000, "TCP port")
	f.StringVar(&flags.pathPrefix, "path-prefix", "", "URL prefix stripped from all paths")
	f.StringVar(&flags.hidden, "hidden", "", "comma-separated names hidden from listings")
	f.StringSliceVarP(&flags.auth, "auth", "a", nil, "access rules; see PATH@USER:PASS[,ro|rw]")
	f.StringVar(&flags.authMethod, "auth-method", "digest", "challenge scheme: basic or digest")
	f.BoolVarP(&flags.allowAll, "allow-all", "A", false, "equivalent to all four allow flags")
	f.BoolVar(&flags.allowUpload, "allow-upload", false, "allow PUT/MKCOL/COPY/MOVE creation")
	f.BoolVar(&flags.allowDelete, "allow-delete", false, "allow DELETE and overwrite")
	f.BoolVar(&flags.allowSearch, "allow-search", false, "allow ?q= recursive search")
	f.BoolVar(&flags.allowSymlink, "allow-symlink", false, "follow symlinks outside the root")
	f.BoolVar(&flags.enableCORS, "enable-cors", false, "set Access-Control-Allow-* on every response")
	f.BoolVar(&flags.renderIndex, "render-index", false, "serve a directory's index.html instead of listing it")
	f.BoolVar(&flags.renderTry, "render-try-index", false, "like render-index, but fall back to listing if absent")
	f.BoolVar(&flags.renderSPA, "render-spa", false, "serve the root index.html for any unknown extensionless path")
	f.StringVar(&flags.assetsDir, "assets", "", "override asset directory (must contain index.html)")
	f.StringVar(&flags.tlsCert, "tls-cert", "", "TLS certificate path; enables HTTPS")
	f.StringVar(&flags.tlsKey, "tls-key", "", "TLS key path; enables HTTPS")
	f.StringVar(&flags.logFormat, "log-format", `$remote_addr "$request" - $status`, "access-log template; empty disables")
	f.StringVar(&flags.completions, "completions", "", "print completion script for the named shell and exit")

	f.StringVar(&flags.logFile, "log-file", "", "rotating application log file path")
	f.StringVar(&flags.logLevel, "log-level", "info", "application log level")
	f.IntVar(&flags.logMaxSizeMB, "log-max-size", 100, "application log max size in MB before rotation")
	f.IntVar(&flags.logMaxBackups, "log-max-backups", 3, "application log max rotated backups kept")
	f.IntVar(&flags.logMaxAgeDays, "log-max-age", 28, "application log max age in days")
	f.BoolVar(&flags.logCompress, "log-compress", false, "compress rotated application log backups")
}

func runServe(cmd *cobra.Command, args []string) error {
	if flags.completions != "" {
		return writeCompletions(cmd, flags.completions)
	}

	logger := slogutil.SetupLogRotation(slogutil.LogConfig{
		File:       flags.logFile,
		Level:      flags.logLevel,
		MaxSize:    flags.logMaxSizeMB,
		MaxBackups: flags.logMaxBackups,
		MaxAge:     flags.logMaxAgeDays,
		Compress:   flags.logCompress,
	})
	slog.SetDefault(logger)

	cfg, err := buildConfig(args)
	if err != nil {
		logger.Error("configuration error", "err", err)
		return err
	}

	assets, indexTpl, err := loadAssets(cfg.AssetsDir)
	if err != nil {
		logger.Error("failed to load assets", "err", err)
		return err
	}

	srv, err := dispatch.New(cfg, assets, indexTpl, logger)
	if err != nil {
		logger.Error("failed to assemble server", "err", err)
		return err
	}

	var tlsConfig *tls.Config
	if cfg.TLSCert != "" || cfg.TLSKey != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			logger.Error("failed to load TLS certificate", "err", err)
			return err
		}
		tlsConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listeners, err := listenAll(cfg.BindAddrs, tlsConfig)
	if err != nil {
		logger.Error("failed to bind", "err", err)
		return err
	}

	var wg sync.WaitGroup
	servers := make([]*http.Server, 0, len(listeners))
	for _, ln := range listeners {
		httpSrv := &http.Server{Handler: srv}
		servers = append(servers, httpSrv)
		wg.Add(1)
		go func(ln net.Listener, s *http.Server) {
			defer wg.Done()
			logger.Info("listening", "addr", ln.Addr().String())
			if err := s.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("server error", "addr", ln.Addr().String(), "err", err)
			}
		}(ln, httpSrv)
	}

	waitForShutdown(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	for _, s := range servers {
		_ = s.Shutdown(shutdownCtx)
	}
	wg.Wait()

	logger.Info("dufs shutting down gracefully")
	return nil
}

func buildConfig(args []string) (*config.Config, error) {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}
	root, err := config.ValidateRoot(root)
	if err != nil {
		return nil, err
	}

	if err := config.ValidateAssets(flags.assetsDir); err != nil {
		return nil, err
	}

	rules, err := config.ParseRules(flags.auth)
	if err != nil {
		return nil, err
	}

	scheme, err := authchallenge.ParseScheme(flags.authMethod)
	if err != nil {
		return nil, err
	}

	bindAddrs, err := config.ParseBindAddrs(flags.bind, flags.port)
	if err != nil {
		return nil, err
	}

	if err := config.ValidateLogFile(flags.logFile); err != nil {
		return nil, err
	}
	if err := config.ValidateUploadRoot(root, flags.allowUpload || flags.allowAll); err != nil {
		return nil, err
	}

	cfg := &config.Config{
		Root:           root,
		PathPrefix:     flags.pathPrefix,
		Hidden:         config.ParseHidden(flags.hidden),
		Rules:          rules,
		AuthScheme:     scheme,
		AllowUpload:    flags.allowUpload,
		AllowDelete:    flags.allowDelete,
		AllowSearch:    flags.allowSearch,
		AllowSymlink:   flags.allowSymlink,
		EnableCORS:     flags.enableCORS,
		RenderIndex:    flags.renderIndex,
		RenderTryIndex: flags.renderTry,
		RenderSPA:      flags.renderSPA,
		AssetsDir:      flags.assetsDir,
		LogFormat:      flags.logFormat,
		BindAddrs:      bindAddrs,
		Port:           flags.port,
		TLSCert:        flags.tlsCert,
		TLSKey:         flags.tlsKey,
	}
	if flags.allowAll {
		cfg.ApplyAllowAll()
	}
	return cfg, nil
}

// loadAssets resolves the asset filesystem (an --assets override
// directory or the embedded default) and reads its index.html once,
// since assets never change after startup.
func loadAssets(overrideDir string) (fs.FS, []byte, error) {
	var assetFS fs.FS
	if overrideDir != "" {
		assetFS = os.DirFS(overrideDir)
	} else {
		embedded, err := frontend.GetEmbeddedFS()
		if err != nil {
			return nil, nil, err
		}
		assetFS = embedded
	}

	tpl, err := fs.ReadFile(assetFS, "index.html")
	if err != nil {
		return nil, nil, err
	}
	return assetFS, tpl, nil
}

// listenAll binds every configured address, tearing down any already
// opened listener if a later bind fails.
func listenAll(addrs []config.BindAddr, tlsConfig *tls.Config) ([]net.Listener, error) {
	listeners := make([]net.Listener, 0, len(addrs))
	for _, addr := range addrs {
		if addr.Network == "unix" {
			_ = os.Remove(addr.Address)
		}
		ln, err := net.Listen(addr.Network, addr.Address)
		if err != nil {
			for _, opened := range listeners {
				_ = opened.Close()
			}
			return nil, fmt.Errorf("listen %s %s: %w", addr.Network, addr.Address, err)
		}
		if tlsConfig != nil {
			ln = tls.NewListener(ln, tlsConfig)
		}
		listeners = append(listeners, ln)
	}
	return listeners, nil
}

func waitForShutdown(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-ctx.Done():
	case <-sigCh:
	}
}

func writeCompletions(cmd *cobra.Command, shell string) error {
	root := cmd.Root()
	switch shell {
	case "bash":
		return root.GenBashCompletion(os.Stdout)
	case "zsh":
		return root.GenZshCompletion(os.Stdout)
	case "fish":
		return root.GenFishCompletion(os.Stdout, true)
	case "powershell":
		return root.GenPowerShellCompletionWithDesc(os.Stdout)
	default:
		return fmt.Errorf("unknown shell %q: want bash, zsh, fish or powershell", shell)
	}
}
