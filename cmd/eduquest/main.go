package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/eduquest/internal/attempt"
	"github.com/pavelanni/eduquest/internal/feedback"
	"github.com/pavelanni/eduquest/internal/handler"
	appI18n "github.com/pavelanni/eduquest/internal/i18n"
	"github.com/pavelanni/eduquest/internal/model"
	"github.com/pavelanni/eduquest/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "eduquest",
		Short: "Timed multiple-choice exam server",
	}

	serve := serveCmd()
	root.AddCommand(serve, importCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP exam server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "eduquest.db", "SQLite database path")
	f.StringSliceP("exams", "e", []string{"exams/sample_vi.json"}, "Exam seed files to import on startup (repeatable)")
	f.String("llm-url", "https://generativelanguage.googleapis.com/v1beta/openai/", "OpenAI-compatible API base URL")
	f.String("llm-key", "", "API key for the feedback model")
	f.String("llm-model", "gemini-2.5-flash", "Feedback model name")
	f.Duration("feedback-timeout", 30*time.Second, "Upper bound for one feedback request")
	f.StringP("lang", "l", "vi", "Default UI and feedback language (en, vi)")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /exam)")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.String("teacher-password", "", "Initial teacher password (or set EDUQUEST_TEACHER_PASSWORD)")
	addLogFlags(cmd)
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import FILE...",
		Short: "Import or update exams from JSON files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runImport,
	}
	f := cmd.Flags()
	f.String("db", "eduquest.db", "SQLite database path")
	addLogFlags(cmd)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export exam results as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "eduquest.db", "SQLite database path")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(cmd)
	return cmd
}

func addLogFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func setupLogging(v *viper.Viper) {
	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: logLevel}
	var h slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		h = slog.NewJSONHandler(os.Stderr, opts)
	default:
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("EDUQUEST")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("eduquest")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/eduquest")
	v.AddConfigPath("/etc/eduquest")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}
	return v
}

func normalizeBasePath(p string) string {
	p = strings.TrimRight(p, "/")
	if p != "" && !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

func runServe(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := seedTeacher(db, v.GetString("teacher-password")); err != nil {
		return fmt.Errorf("seed teacher: %w", err)
	}
	if err := db.CleanupExpiredSessions(); err != nil {
		slog.Warn("failed to clean up expired sessions", "error", err)
	}
	if err := loadExams(cmd.Context(), db, v.GetStringSlice("exams"), false); err != nil {
		return fmt.Errorf("load exams: %w", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	fb, err := feedback.New(v.GetString("llm-url"), v.GetString("llm-key"), v.GetString("llm-model"), lang)
	if err != nil {
		return fmt.Errorf("create feedback client: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := fb.Ping(pingCtx); err != nil {
		// Feedback is advisory; exams run without it.
		slog.Warn("feedback endpoint unreachable", "url", v.GetString("llm-url"), "error", err)
	} else {
		slog.Info("feedback endpoint OK", "url", v.GetString("llm-url"), "model", v.GetString("llm-model"))
	}
	cancel()

	attempts := attempt.New(attempt.Config{
		Exams:           db,
		Results:         db,
		Feedback:        fb,
		FeedbackTimeout: v.GetDuration("feedback-timeout"),
	})

	basePath := normalizeBasePath(v.GetString("base-path"))
	h := handler.New(db, attempts, model.ExamConfig{
		BasePath:      basePath,
		SecureCookies: v.GetBool("secure-cookies"),
		Lang:          lang,
	})

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware())

	if basePath != "" {
		r.Route(basePath, func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
		r.Get(basePath, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, basePath+"/", http.StatusMovedPermanently)
		})
	} else {
		r.Use(h.BasePathMiddleware)
		h.Routes(r)
	}

	addr := v.GetString("addr")
	srv := &http.Server{Addr: addr, Handler: r}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			"addr", addr,
			"lang", lang,
			"model", v.GetString("llm-model"),
			"base_path", basePath,
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		attempts.Close()
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown", "error", err)
	}
	// Running attempts are abandoned; pending feedback is still stored.
	attempts.Close()
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	return loadExams(cmd.Context(), db, args, true)
}

func runExport(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	results, err := db.ExportResults(cmd.Context())
	if err != nil {
		return fmt.Errorf("export results: %w", err)
	}

	data, err := json.MarshalIndent(model.ResultsExport{
		ExportedAt: time.Now().UTC(),
		Results:    results,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)
	slog.Info("exported results", "count", len(results), "output", outPath)
	return nil
}

// loadExams imports exam seed files. A file is recorded by content hash, so an
// unchanged file is skipped. A changed file is re-imported only when force is
// set; otherwise it is left alone so running attempts keep their exam.
func loadExams(ctx context.Context, db *store.Store, paths []string, force bool) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) && !force {
				slog.Warn("exam file not found, skipping", "path", path)
				continue
			}
			return fmt.Errorf("read %s: %w", path, err)
		}

		hash := sha256sum(data)
		storedHash, err := db.GetImportedFileHash(path)
		if err != nil {
			return fmt.Errorf("check import status for %s: %w", path, err)
		}
		if storedHash == hash {
			slog.Info("exam file unchanged, skipping", "path", path)
			continue
		}
		if storedHash != "" && !force {
			slog.Warn("exam file changed since last import, skipping; use the import command to update",
				"path", path)
			continue
		}

		var imports []model.ExamImport
		if err := json.Unmarshal(data, &imports); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		now := time.Now()
		for i, ei := range imports {
			// Keep file order as catalogue order: earlier entries are newer.
			e := ei.Exam(now.Add(-time.Duration(i) * time.Second))
			if err := model.ValidateExam(e); err != nil {
				return fmt.Errorf("exam %q in %s: %w", ei.ID, path, err)
			}
			if err := db.SaveExam(ctx, e); err != nil {
				return fmt.Errorf("save exam %q from %s: %w", ei.ID, path, err)
			}
		}

		if err := db.SetImportedFileHash(path, hash); err != nil {
			return fmt.Errorf("record import for %s: %w", path, err)
		}
		slog.Info("imported exams", "path", path, "count", len(imports))
	}
	return nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// seedTeacher creates the teacher account on first start.
func seedTeacher(db *store.Store, password string) error {
	count, err := db.UserCount(model.UserRoleTeacher)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	if password == "" {
		return fmt.Errorf("teacher password is required: set --teacher-password flag or EDUQUEST_TEACHER_PASSWORD env var")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash teacher password: %w", err)
	}
	_, err = db.CreateUser(model.User{
		Username:     handler.TeacherUsername,
		DisplayName:  "Teacher",
		PasswordHash: string(hash),
		Role:         model.UserRoleTeacher,
		Active:       true,
	})
	if err != nil {
		return fmt.Errorf("create teacher user: %w", err)
	}
	slog.Info("seeded teacher account", "username", handler.TeacherUsername)
	return nil
}
