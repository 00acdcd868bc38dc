// predictd runs a prediction session on a line-oriented console protocol.
//
// Typed characters are fed through the composition pipeline one key event at
// a time; colon commands drive the control keys:
//
//	:select N   pick candidate N from the current page
//	:commit     press Return
//	:esc        press Escape
//	:bs         press Backspace
//	:show       print the session state
//	:quit       exit
//
// Any other line is typed into the session character by character. The same
// session wiring backs the IBus frontend; this binary exists for corpus
// tuning and debugging without a desktop stack.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"predictd/internal/composer"
	"predictd/internal/config"
	"predictd/internal/keys"
	"predictd/internal/logging"
	"predictd/internal/predictdb"
	"predictd/internal/predictor"
	"predictd/internal/schema"
	"predictd/internal/session"
	"predictd/internal/watcher"
)

func main() {
	configPath := flag.String("config", "", "path to predictd.toml (empty uses defaults)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "predictd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(&logging.Config{
		Level:     logging.ParseLevel(cfg.Logging.Level),
		Format:    cfg.Logging.Format,
		Output:    cfg.Logging.Output,
		FilePath:  cfg.Logging.FilePath,
		Component: "predictd",
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
		logger.Info("prediction database verified", "path", cfg.Database.Path)
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
	defer sess.Close()
	logger.Info("session started", "schema_id", sch.ID(), "database", cfg.Database.Path)

	if cfg.Schema.WatchReload {
		w, err := watcher.New(cfg.Schema.Path, time.Duration(cfg.Schema.DebounceMs)*time.Millisecond)
		if err != nil {
			return err
		}
		if err := w.Start(); err != nil {
			return err
		}
		defer w.Stop()
		go reloadLoop(w, sess, cfg.Schema.Path, logger)
	}

	return repl(sess)
}

// loadConfig falls back to built-in defaults when no config file is named or
// the default location does not exist yet.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func reloadLoop(w *watcher.Watcher, sess *session.Session, path string, logger *logging.Logger) {
	for {
		select {
		case _, ok := <-w.Events():
			if !ok {
				return
			}
			sch, err := schema.Load(path)
			if err != nil {
				logger.Warn("schema reload skipped", "error", err)
				continue
			}
			if err := sess.ReloadSchema(sch); err != nil {
				logger.Error("schema reload failed", "error", err)
			}
		case err, ok := <-w.Errors():
			if !ok {
				return
			}
			logger.Warn("schema watcher error", "error", err)
		}
	}
}

func repl(sess *session.Session) error {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("predictd console; :quit to exit")
	printState(sess)

	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, ":") {
			if quit := command(sess, line); quit {
				return nil
			}
		} else {
			for _, r := range line {
				sess.ProcessKeyEvent(keys.Event{Keycode: uint32(r)})
			}
		}
		printState(sess)
	}
	return scanner.Err()
}

func command(sess *session.Session, line string) (quit bool) {
	fields := strings.Fields(line)
	switch fields[0] {
	case ":quit":
		return true
	case ":commit":
		sess.ProcessKeyEvent(keys.Event{Keycode: keys.Return})
	case ":esc":
		sess.ProcessKeyEvent(keys.Event{Keycode: keys.Escape})
	case ":bs":
		sess.ProcessKeyEvent(keys.Event{Keycode: keys.BackSpace})
	case ":select":
		if len(fields) < 2 {
			fmt.Println("usage: :select N")
			return false
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 1 || !sess.Select(n-1) {
			fmt.Println("no such candidate")
		}
	case ":show":
		// State prints after every line anyway.
	default:
		fmt.Printf("unknown command %s\n", fields[0])
	}
	return false
}

func printState(sess *session.Session) {
	ctx := sess.Context()
	fmt.Printf("input: %q\n", ctx.Input())
	if back := ctx.Composition().Back(); back != nil && back.HasTag(composer.TagPrediction) {
		for i := 0; ; i++ {
			cand := back.CandidateAt(i)
			if cand == nil {
				break
			}
			marker := " "
			if i == back.SelectedIndex {
				marker = "*"
			}
			fmt.Printf("  %s%d. %s\n", marker, i+1, cand.Text)
		}
	}
	if rec := ctx.History().Back(); rec != nil {
		fmt.Printf("last commit: %q (%s)\n", rec.Text, rec.Type)
	}
}
