// Command intakebot runs the conversational intake bot: an HTTP service that
// gathers initiative ideas over chat, drafts structured tickets with an LLM,
// and files them downstream once the user confirms.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"intakebot/pkg/config"
	"intakebot/pkg/controller"
	"intakebot/pkg/conversation"
	"intakebot/pkg/httpapi"
	"intakebot/pkg/llm"
	"intakebot/pkg/logx"
	"intakebot/pkg/metrics"
	"intakebot/pkg/oracle"
	"intakebot/pkg/persistence"
	"intakebot/pkg/ticket"
)

var version = "dev"

func main() {
	var configPath string
	var port int
	var chatMode bool
	var showVersion bool
	flag.StringVar(&configPath, "config", "", "Path to config file (YAML)")
	flag.IntVar(&port, "port", 0, "Override configured HTTP port")
	flag.BoolVar(&chatMode, "chat", false, "Interactive terminal chat instead of the HTTP server")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("intakebot %s\n", version)
		return
	}

	logger := logx.NewLogger("main")

	cfg := config.Default()
	if configPath == "" {
		configPath = os.Getenv("INTAKEBOT_CONFIG")
	}
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	if port > 0 {
		cfg.Server.Port = port
	}

	unlockSecrets(logger)

	apiKey, err := cfg.OracleAPIKey()
	if err != nil && cfg.Oracle.Provider != llm.ProviderOllama {
		log.Fatalf("Oracle API key unavailable: %v", err)
	}

	client, err := oracle.NewClient(llm.Config{
		Provider:    cfg.Oracle.Provider,
		APIKey:      apiKey,
		ModelName:   cfg.Oracle.Model,
		Host:        cfg.Oracle.Host,
		MaxTokens:   llm.DefaultMaxTokens,
		Temperature: llm.TemperatureDefault,
	}, cfg.Oracle.Timeout)
	if err != nil {
		log.Fatalf("Failed to create oracle client: %v", err)
	}

	if chatMode {
		runChat(client, cfg)
		return
	}

	var recorder metrics.Recorder = metrics.NewPrometheusRecorder()
	o := oracle.New(client, recorder, oracle.Thresholds{
		MinMessages:         cfg.Intake.MinMessages,
		FallbackMessages:    cfg.Intake.FallbackMessages,
		MaxTranscriptTokens: cfg.Oracle.MaxTranscript,
	})

	archive, err := persistence.Open(cfg.Archive.Path)
	if err != nil {
		log.Fatalf("Failed to open archive: %v", err)
	}
	defer func() { _ = archive.Close() }()

	sink := buildSink(cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := conversation.NewRegistry(cfg.Intake.IdleEviction, func(rec *conversation.Record) {
		archiveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := archive.ArchiveConversation(archiveCtx, rec, rec.Proposal(), nil); err != nil {
			logger.Error("failed to archive evicted conversation %s: %v", rec.ID, err)
		}
	})
	registry.StartJanitor()
	defer registry.Stop()

	ctrl := controller.New(registry, o, sink, archive, recorder)

	var usage *metrics.QueryService
	if cfg.Prometheus.URL != "" {
		usage, err = metrics.NewQueryService(cfg.Prometheus.URL)
		if err != nil {
			logger.Warn("usage queries disabled: %v", err)
		}
	}

	server := httpapi.NewServer(ctrl, archive, usage)
	if err := server.StartServer(ctx, cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	logger.Info("intakebot %s ready on port %d (provider %s, model %s)",
		version, cfg.Server.Port, cfg.Oracle.Provider, cfg.Oracle.Model)

	<-ctx.Done()
	logger.Info("shutting down")
	// Give the HTTP server's graceful shutdown a moment to drain.
	time.Sleep(time.Second)
}

// unlockSecrets decrypts the secrets file when one exists, prompting for the
// password on a terminal or taking it from INTAKEBOT_PASSWORD otherwise.
func unlockSecrets(logger *logx.Logger) {
	dir, err := os.Getwd()
	if err != nil || !config.SecretsFileExists(dir) {
		return
	}

	password := os.Getenv("INTAKEBOT_PASSWORD")
	if password == "" && term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprint(os.Stderr, "Secrets password: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			logger.Warn("failed to read password: %v", err)
			return
		}
		password = string(raw)
	}
	if password == "" {
		logger.Warn("secrets file present but no password available, relying on environment variables")
		return
	}

	secrets, err := config.DecryptSecretsFile(dir, password)
	if err != nil {
		log.Fatalf("Failed to decrypt secrets: %v", err)
	}
	config.SetDecryptedSecrets(secrets)
	logger.Info("secrets unlocked (%d entries)", len(secrets))
}

func buildSink(cfg *config.Config, logger *logx.Logger) ticket.Sink {
	if cfg.Ticket.Mock {
		logger.Info("ticket sink: mock mode")
		return ticket.NewMockSink()
	}
	token, err := cfg.TicketToken()
	if err != nil {
		logger.Warn("ticket token unavailable, submitting without auth: %v", err)
	}
	return ticket.NewHTTPSink(cfg.Ticket.Endpoint, token)
}

// runChat drives the intake flow from a terminal with a mock sink. Useful
// for trying prompts and thresholds without a chat channel in front.
func runChat(client llm.Client, cfg *config.Config) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		log.Fatal("-chat requires a terminal")
	}

	o := oracle.New(client, nil, oracle.Thresholds{
		MinMessages:         cfg.Intake.MinMessages,
		FallbackMessages:    cfg.Intake.FallbackMessages,
		MaxTranscriptTokens: cfg.Oracle.MaxTranscript,
	})
	registry := conversation.NewRegistry(cfg.Intake.IdleEviction, nil)
	defer registry.Stop()
	ctrl := controller.New(registry, o, ticket.NewMockSink(), nil, nil)

	user := os.Getenv("USER")
	if user == "" {
		user = "local"
	}
	participant := conversation.Participant{UserID: user, DisplayName: user}

	fmt.Printf("intakebot %s interactive chat (model %s). Empty line or Ctrl-D exits.\n\n", version, client.ModelName())

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			break
		}
		reply := ctrl.Turn(context.Background(), "terminal", participant, text)
		fmt.Printf("\n%s\n\n", reply)
	}
	fmt.Println("bye")
}
