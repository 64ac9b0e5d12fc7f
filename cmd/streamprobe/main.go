// Command streamprobe demuxes media streams and reports their structure.
//
// Usage:
//
//	streamprobe h264 <file>   scan an Annex B elementary stream
//	streamprobe aac <file>    scan an ADTS stream
//	streamprobe flv <file>    demux an FLV file
//	streamprobe udp           receive RTP/TS datagrams on a UDP port
//	streamprobe srt           accept an SRT publisher sending raw TS
//
// Settings come from a YAML config file (-config, default
// streamprobe.yaml) with STREAMPROBE_* environment overrides.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"streamprobe/internal/config"
	"streamprobe/internal/metrics"
	"streamprobe/internal/probe"
	"streamprobe/internal/source"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "streamprobe.yaml", "path to config file")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}
	mode := flag.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	level := logLevel(cfg.LogLevel)
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	slog.Info("streamprobe starting", "version", version, "mode", mode)

	switch mode {
	case "h264", "aac", "flv":
		err = runFile(mode, flag.Arg(1), cfg)
	case "udp", "srt":
		err = runLive(ctx, mode, cfg)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		slog.Error("probe failed", "error", err)
		os.Exit(1)
	}
}

func runFile(mode, path string, cfg config.Config) error {
	if path == "" {
		return errors.New("missing input file argument")
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	log := slog.Default()
	switch mode {
	case "h264":
		_, err = probe.RunH264(log, f)
	case "aac":
		_, err = probe.RunADTS(log, f)
	case "flv":
		var opts probe.FLVOptions
		var closers []io.Closer
		if cfg.VideoOut != "" {
			out, err := os.Create(cfg.VideoOut)
			if err != nil {
				return fmt.Errorf("create video output: %w", err)
			}
			opts.VideoOut = out
			closers = append(closers, out)
		}
		if cfg.AudioOut != "" {
			out, err := os.Create(cfg.AudioOut)
			if err != nil {
				return fmt.Errorf("create audio output: %w", err)
			}
			opts.AudioOut = out
			closers = append(closers, out)
		}
		_, err = probe.RunFLV(log, f, opts)
		for _, c := range closers {
			if cerr := c.Close(); err == nil {
				err = cerr
			}
		}
	}
	return err
}

func runLive(ctx context.Context, mode string, cfg config.Config) error {
	log := slog.Default()

	var (
		src  source.Source
		opts probe.RTPOptions
		err  error
	)
	switch mode {
	case "udp":
		src, err = source.ListenUDP(cfg.UDPAddr, cfg.IdleTimeout.Std(), log)
		opts = probe.RTPOptions{ParseRTP: cfg.ParseRTP, SourceLabel: "udp"}
	case "srt":
		src, err = source.ListenSRT(ctx, cfg.SRTAddr, log)
		// SRT publishers send raw TS chunks, no RTP framing.
		opts = probe.RTPOptions{ParseRTP: false, SourceLabel: "srt"}
	}
	if err != nil {
		return err
	}
	defer src.Close()

	if cfg.TSDump != "" {
		dump, err := os.Create(cfg.TSDump)
		if err != nil {
			return fmt.Errorf("create ts dump: %w", err)
		}
		defer dump.Close()
		opts.TSDump = dump
	}

	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux()}

	ctx, stop := context.WithCancel(ctx)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// Ending the probe, cleanly or not, shuts the whole session down.
		defer stop()
		_, err := probe.RunRTP(ctx, log, src, opts)
		return err
	})

	g.Go(func() error {
		// Unblock a pending read when the context ends.
		<-ctx.Done()
		src.Close()
		return nil
	})

	g.Go(func() error {
		slog.Info("metrics server listening", "addr", cfg.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: streamprobe [-config file] <mode> [args]

modes:
  h264 <file>   scan an Annex B elementary stream
  aac <file>    scan an ADTS stream
  flv <file>    demux an FLV file
  udp           receive RTP/TS datagrams on a UDP port
  srt           accept an SRT publisher sending raw TS
`)
}
