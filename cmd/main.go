package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"interview-gate/handler"
	"interview-gate/internal/analytics"
	"interview-gate/internal/auth"
	"interview-gate/internal/integrations/openai"
	"interview-gate/internal/integrations/paramstore"
	"interview-gate/internal/knowledge"
	"interview-gate/internal/question"
	"interview-gate/internal/ratelimit"
	"interview-gate/internal/repository"
	"interview-gate/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	stateTable := mustEnv("STATE_TABLE")
	paramPrefix := strings.TrimRight(mustEnv("PARAM_PREFIX"), "/")
	firebaseProject := mustEnv("FIREBASE_PROJECT_ID")
	maxSessionQuestions := envInt("MAX_SESSION_QUESTIONS", 3)
	sessionWindow := time.Duration(envInt("SESSION_WINDOW_MINUTES", 30)) * time.Minute
	analyticsLimit := envInt("ANALYTICS_LIMIT", analytics.DefaultLimit)
	generationTimeout := time.Duration(envInt("GENERATION_TIMEOUT_SECONDS", 20)) * time.Second
	maxQuestionLen := envInt("MAX_QUESTION_LENGTH", 1000)
	adminEmails := envList("ADMIN_ALLOWED_EMAILS")
	allowedOrigins := envList("ALLOWED_ORIGINS")
	appName := os.Getenv("APP_NAME")

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		fatal("failed to load AWS config", err)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		fatal("failed to create SSM client", err)
	}
	store, err := repository.New(awsdynamodb.NewFromConfig(cfg), stateTable)
	if err != nil {
		fatal("failed to create state client", err)
	}
	openaiClient, err := openai.NewClient(ssmClient, paramPrefix)
	if err != nil {
		fatal("failed to create OpenAI client", err)
	}

	// ---- Cold-start parameters ----
	model, err := ssmClient.GetParameter(ctx, paramPrefix+"/config/openai_model")
	if err != nil {
		fatal("failed to load OpenAI model", err)
	}
	pack, err := knowledge.Load(ctx, ssmClient, paramPrefix+"/knowledge_pack")
	if err != nil {
		fatal("failed to load knowledge pack", err)
	}
	policy, err := loadPolicy(ctx, ssmClient, paramPrefix+"/question_policy")
	if err != nil {
		fatal("failed to load question policy", err)
	}

	// ---- Core ----
	validator, err := question.NewValidator(policy, pack)
	if err != nil {
		fatal("failed to build question validator", err)
	}
	limiter := ratelimit.New(maxSessionQuestions, sessionWindow)
	go limiter.RunSweeper(ctx, sessionWindow)

	answerer, err := usecase.NewPersonaAnswerer(openaiClient, pack, model)
	if err != nil {
		fatal("failed to create answer generator", err)
	}
	chatService, err := usecase.NewChatService(store, limiter, validator, answerer, store, usecase.ChatConfig{
		GenerationTimeout: generationTimeout,
		BlockedMessage:    policy.BlockedMessage,
	})
	if err != nil {
		fatal("failed to create chat service", err)
	}
	visitorService, err := usecase.NewVisitorService(store)
	if err != nil {
		fatal("failed to create visitor service", err)
	}
	aggregator, err := analytics.NewAggregator(store, store, analyticsLimit)
	if err != nil {
		fatal("failed to create aggregator", err)
	}
	dashboardService, err := usecase.NewDashboardService(aggregator, store)
	if err != nil {
		fatal("failed to create dashboard service", err)
	}

	// ---- Admin auth ----
	jwks, err := auth.NewJWKSCache(ctx, auth.FirebaseJWKSURL)
	if err != nil {
		fatal("failed to create JWKS cache", err)
	}
	verifier, err := auth.NewFirebaseVerifier(jwks, firebaseProject, adminEmails)
	if err != nil {
		fatal("failed to create admin verifier", err)
	}

	// ---- Handler ----
	h, err := handler.NewHandler(chatService, visitorService, dashboardService, verifier, handler.Config{
		AppName:           appName,
		AllowedOrigins:    allowedOrigins,
		MaxQuestionLength: maxQuestionLen,
	})
	if err != nil {
		fatal("failed to create handler", err)
	}

	slog.Info("interview gate ready",
		"model", model,
		"max_session_questions", maxSessionQuestions,
		"session_window", sessionWindow.String(),
		"allowed_topics", len(pack.AllowedTopics()),
	)
	lambda.Start(h.Handle)
}

// loadPolicy reads the optional YAML policy parameter, falling back to the
// built-in tables when it does not exist.
func loadPolicy(ctx context.Context, ps paramstore.Getter, name string) (question.Policy, error) {
	raw, err := ps.GetParameter(ctx, name)
	if errors.Is(err, paramstore.ErrNotFound) {
		slog.Info("question policy parameter not set; using defaults", "name", name)
		return question.DefaultPolicy(), nil
	}
	if err != nil {
		return question.Policy{}, err
	}
	return question.ParsePolicy([]byte(raw))
}

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
