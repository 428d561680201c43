package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/voxkit/voxkit"
	"github.com/voxkit/voxkit/internal/config"
	"github.com/voxkit/voxkit/internal/eventws"
	"github.com/voxkit/voxkit/internal/logging"
	"github.com/voxkit/voxkit/internal/metrics"
	"github.com/voxkit/voxkit/pkg/capture/wavsource"
	"github.com/voxkit/voxkit/pkg/engine/nextgen"
	"github.com/voxkit/voxkit/pkg/platform"
	"github.com/voxkit/voxkit/pkg/speech"
	"github.com/voxkit/voxkit/pkg/version"
)

var rootCmd = &cobra.Command{
	Use:          "voxkit",
	Short:        "On-device speech-to-text sessions from the command line",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		logging.Init(logging.Config{Level: cfg.LogLevel, Format: "console"})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.GetVersionInfo())
	},
}

var localesCmd = &cobra.Command{
	Use:   "locales",
	Short: "List supported recognition locales",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		r := newRecognizer(config.Load())
		locales := r.SupportedLocales()
		if asJSON {
			return json.NewEncoder(os.Stdout).Encode(locales)
		}
		for _, code := range locales {
			marker := " "
			if code == r.GetLocale() {
				marker = "*"
			}
			fmt.Printf("%s %s\n", marker, code)
		}
		return nil
	},
}

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <file.wav>",
	Short: "Transcribe a WAV file and print the final text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, _ := cmd.Flags().GetString("mode")
		loc, _ := cmd.Flags().GetString("locale")
		cfg := config.Load()
		r := newRecognizer(cfg)
		if loc != "" {
			if err := r.SetLocale(loc); err != nil {
				return err
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		text, err := r.TranscribeFile(ctx, args[0], speech.Mode(mode))
		if err != nil {
			return err
		}
		fmt.Println(text)
		return nil
	},
}

var listenCmd = &cobra.Command{
	Use:   "listen <file.wav>",
	Short: "Run a realtime session fed by a WAV file, printing results as they arrive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, _ := cmd.Flags().GetString("mode")
		paced, _ := cmd.Flags().GetBool("realtime")
		cfg := config.Load()
		r := newRecognizer(cfg)

		done := make(chan struct{})
		r.OnProgress(func(p speech.Progress) {
			if p.IsFinal {
				fmt.Printf("\rfinal:   %s\n", p.Text)
				select {
				case <-done:
				default:
					close(done)
				}
				return
			}
			fmt.Printf("\rpartial: %s", p.Text)
		})
		r.OnError(func(e speech.ErrorEvent) {
			fmt.Fprintf(os.Stderr, "error: %s\n", e.Message)
			select {
			case <-done:
			default:
				close(done)
			}
		})

		src := wavsource.New(args[0])
		src.Realtime = paced

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := r.StartRealtime(ctx, voxkit.StartOptions{
			Mode:   speech.Mode(mode),
			Source: src,
		}); err != nil {
			return err
		}

		select {
		case <-done:
		case <-ctx.Done():
		}
		return r.Stop(context.Background())
	},
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Manage next-gen recognition models",
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List locales with downloadable models and their install state",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		manager := nextgen.NewManager(cfg.ModelDir, "")
		for _, code := range nextgen.SupportedLocales() {
			info, _ := nextgen.LookupModel(code)
			state := "not installed"
			if manager.IsInstalled(info) {
				state = "installed"
			}
			fmt.Printf("%-8s %-10s %s\n", code, info.Revision, state)
		}
		return nil
	},
}

var modelsDownloadCmd = &cobra.Command{
	Use:   "download <locale>",
	Short: "Download the next-gen model for a locale",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		info, ok := nextgen.LookupModel(args[0])
		if !ok {
			return fmt.Errorf("no model registered for locale %q", args[0])
		}
		manager := nextgen.NewManager(cfg.ModelDir, "")
		if manager.IsInstalled(info) {
			fmt.Printf("%s already installed at %s\n", info.Locale, manager.ModelDir(info))
			return nil
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		start := time.Now()
		err := manager.Install(ctx, info, func(downloaded, total int64) {
			if total > 0 {
				fmt.Printf("\rdownloading %s: %d%%", info.Locale, downloaded*100/total)
			}
		})
		fmt.Println()
		if err != nil {
			return err
		}
		fmt.Printf("installed %s in %s\n", info.Locale, time.Since(start).Round(time.Second))
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve <file.wav>",
	Short: "Stream a session's events to websocket subscribers, with Prometheus metrics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		mode, _ := cmd.Flags().GetString("mode")
		cfg := config.Load()
		log := logging.WithComponent("serve")

		rec := metrics.NewRecorder()
		r := newRecognizer(cfg, voxkit.WithMetrics(rec))

		hub := eventws.NewServer(logging.WithComponent("eventws"))
		r.OnProgress(hub.BroadcastProgress)
		r.OnError(hub.BroadcastError)

		mux := http.NewServeMux()
		mux.Handle("/events", hub)
		mux.Handle("/metrics", rec.Handler())
		srv := &http.Server{Addr: addr, Handler: mux}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			log.Info().Str("addr", addr).Msg("serving events and metrics")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("http server failed")
			}
		}()

		src := wavsource.New(args[0])
		src.Realtime = true
		if err := r.StartRealtime(ctx, voxkit.StartOptions{
			Mode:   speech.Mode(mode),
			Source: src,
		}); err != nil {
			return err
		}

		<-ctx.Done()
		_ = r.Stop(context.Background())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func newRecognizer(cfg *config.Config, extra ...voxkit.Option) *voxkit.Recognizer {
	opts := []voxkit.Option{
		configuredPlatform(cfg),
		voxkit.WithLogger(logging.Logger()),
		voxkit.WithStartTimeout(cfg.StartTimeout),
		voxkit.WithModelDir(cfg.ModelDir),
		voxkit.WithLegacyServiceURL(cfg.LegacyServiceURL),
	}
	opts = append(opts, extra...)
	r := voxkit.New(opts...)
	if cfg.DefaultLocale != "" {
		if err := r.SetLocale(cfg.DefaultLocale); err != nil {
			log := logging.Logger()
			log.Warn().Err(err).Msg("ignoring configured default locale")
		}
	}
	return r
}

// configuredPlatform honors VOXKIT_PLATFORM when set and falls back to
// runtime detection otherwise.
func configuredPlatform(cfg *config.Config) voxkit.Option {
	info := platform.Info{
		Family:  platform.ParseFamily(cfg.Platform),
		NextGen: nextgen.Available(),
	}
	return voxkit.WithPlatform(info)
}

func main() {
	localesCmd.Flags().Bool("json", false, "print as JSON")
	transcribeCmd.Flags().String("mode", string(speech.ModeUniversal), "engine mode: universal, next-gen or legacy")
	transcribeCmd.Flags().String("locale", "", "recognition locale, e.g. es-ES")
	listenCmd.Flags().String("mode", string(speech.ModeUniversal), "engine mode: universal, next-gen or legacy")
	listenCmd.Flags().Bool("realtime", false, "pace the file at playback speed")
	serveCmd.Flags().String("addr", ":9090", "listen address for /events and /metrics")
	serveCmd.Flags().String("mode", string(speech.ModeUniversal), "engine mode: universal, next-gen or legacy")

	modelsCmd.AddCommand(modelsListCmd, modelsDownloadCmd)
	rootCmd.AddCommand(versionCmd, localesCmd, transcribeCmd, listenCmd, modelsCmd, serveCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
