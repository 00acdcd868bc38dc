//go:build linux

// predictd-ibus is the Linux IBus input method engine for predictd.
//
// It connects to the session bus, registers the prediction engine, and
// serves key events from IBus through the composition pipeline. Installation:
//
//  1. Copy binary to /usr/local/bin/predictd-ibus
//  2. Run predictd-ibus -install
//  3. Restart IBus: ibus restart
//  4. Enable via: ibus-setup or GNOME Settings > Keyboard > Input Sources
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"predictd/internal/config"
	"predictd/internal/frontend"
	"predictd/internal/logging"
	"predictd/internal/predictdb"
	"predictd/internal/predictor"
	"predictd/internal/schema"
	"predictd/internal/session"
	"predictd/internal/watcher"
)

func main() {
	configPath := flag.String("config", "", "path to predictd.toml (empty uses defaults)")
	installFlag := flag.Bool("install", false, "install the IBus component and exit")
	uninstallFlag := flag.Bool("uninstall", false, "remove the IBus component and exit")
	flag.Parse()

	if *installFlag {
		if err := installComponent(); err != nil {
			fmt.Fprintf(os.Stderr, "install failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Installed. Run 'ibus restart' to load.")
		return
	}
	if *uninstallFlag {
		if err := uninstallComponent(); err != nil {
			fmt.Fprintf(os.Stderr, "uninstall failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Uninstalled.")
		return
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "predictd-ibus: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg = config.Default()
		err = cfg.Validate()
	}
	if err != nil {
		return err
	}

	logger, err := logging.New(&logging.Config{
		Level:     logging.ParseLevel(cfg.Logging.Level),
		Format:    cfg.Logging.Format,
		Output:    cfg.Logging.Output,
		FilePath:  cfg.Logging.FilePath,
		Component: "predictd-ibus",
	})
	if err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	defer logger.Close()
	logging.SetDefault(logger)

	sch, err := schema.Load(cfg.Schema.Path)
	if err != nil {
		return err
	}
	db, err := predictdb.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.Database.VerifyOnOpen {
		if err := db.Verify(); err != nil {
			return fmt.Errorf("verify prediction database: %w", err)
		}
	}

	source := predictdb.NewSource(db, predictdb.EngineConfig{
		CandidateLimit: cfg.Engine.CandidateLimit,
		MaxIterations:  cfg.Engine.MaxIterations,
		Logger:         logger.Logger,
	})
	sess, err := session.New(predictor.NewFactory(source), sch, logger.Logger)
	if err != nil {
		return err
	}

	engine := frontend.NewIBusEngine(sess, logger.Logger)
	if err := engine.Start(context.Background()); err != nil {
		return err
	}
	defer engine.Stop()

	if cfg.Schema.WatchReload {
		w, err := watcher.New(cfg.Schema.Path, time.Duration(cfg.Schema.DebounceMs)*time.Millisecond)
		if err != nil {
			return err
		}
		if err := w.Start(); err != nil {
			return err
		}
		defer w.Stop()
		go func() {
			for range w.Events() {
				sch, err := schema.Load(cfg.Schema.Path)
				if err != nil {
					logger.Warn("schema reload skipped", "error", err)
					continue
				}
				if err := sess.ReloadSchema(sch); err != nil {
					logger.Error("schema reload failed", "error", err)
				}
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutting down")
	return nil
}

func installComponent() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	componentDir := filepath.Join(home, ".local", "share", "ibus", "component")
	if err := os.MkdirAll(componentDir, 0755); err != nil {
		return err
	}

	binPath, err := os.Executable()
	if err != nil {
		binPath = "/usr/local/bin/predictd-ibus"
	}

	componentXML := `<?xml version="1.0" encoding="utf-8"?>
<component>
    <name>dev.predictd.ibus</name>
    <description>Predictd predictive continuation engine</description>
    <exec>` + binPath + `</exec>
    <version>1.0.0</version>
    <license>MIT</license>
    <textdomain>predictd</textdomain>
    <engines>
        <engine>
            <name>predictd</name>
            <language>en</language>
            <license>MIT</license>
            <icon>predictd</icon>
            <layout>us</layout>
            <longname>Predictd</longname>
            <description>Predictive text continuation</description>
            <rank>99</rank>
            <symbol>P</symbol>
        </engine>
    </engines>
</component>`

	return os.WriteFile(filepath.Join(componentDir, "predictd.xml"), []byte(componentXML), 0644)
}

func uninstallComponent() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	return os.Remove(filepath.Join(home, ".local", "share", "ibus", "component", "predictd.xml"))
}
