package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"briefly/internal/metrics"
	"briefly/pkg/ai"
	"briefly/pkg/domain"
	"briefly/pkg/export"
	"briefly/pkg/extract"
	"briefly/pkg/queue"
	"briefly/pkg/store"
)

// Config holds runtime configuration for the core application.
type Config struct {
	Generator ai.Generator
	Store     store.Store
	Settings  store.SettingsStore
	Objects   export.ObjectStore
	Queue     *queue.RedisJobQueue
	Metrics   metrics.Metrics

	SummarySystemPrompt string
	MinTokens           int
	MaxTokens           int
	DefaultTokens       int
	MaxInputChars       int
	Temperature         float64
	TopP                float64
	RepetitionPenalty   float64
	GenerationTimeout   time.Duration
	BatchConcurrency    int
	PresignExpiry       time.Duration
}

// App is the core application service wiring the prompt formatter, the
// generation backend, and conversation storage together.
type App struct {
	generator ai.Generator
	store     store.Store
	settings  store.SettingsStore
	objects   export.ObjectStore
	queue     *queue.RedisJobQueue
	metrics   metrics.Metrics

	summaryPrompt     string
	minTokens         int
	maxTokens         int
	defaultTokens     int
	maxInputChars     int
	temperature       float64
	topP              float64
	repetitionPenalty float64
	generationTimeout time.Duration
	batchConcurrency  int
	presignExpiry     time.Duration
}

// New constructs the application. Generator and Store are required;
// object storage and the export queue are optional and exports stay
// disabled without them.
func New(cfg Config) (*App, error) {
	if cfg.Generator == nil {
		return nil, fmt.Errorf("generator required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store required")
	}
	settings := cfg.Settings
	if settings == nil {
		if s, ok := cfg.Store.(store.SettingsStore); ok {
			settings = s
		} else {
			return nil, fmt.Errorf("settings store required")
		}
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.Noop{}
	}
	summaryPrompt := strings.TrimSpace(cfg.SummarySystemPrompt)
	if summaryPrompt == "" {
		summaryPrompt = defaultSummarySystemPrompt
	}
	minTokens := cfg.MinTokens
	if minTokens <= 0 {
		minTokens = 64
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 512
	}
	if maxTokens < minTokens {
		return nil, fmt.Errorf("max tokens %d below min tokens %d", maxTokens, minTokens)
	}
	defaultTokens := cfg.DefaultTokens
	if defaultTokens <= 0 {
		defaultTokens = 256
	}
	defaultTokens = clampTokens(defaultTokens, minTokens, maxTokens, maxTokens)
	maxInputChars := cfg.MaxInputChars
	if maxInputChars <= 0 {
		maxInputChars = 24000
	}
	generationTimeout := cfg.GenerationTimeout
	if generationTimeout <= 0 {
		generationTimeout = 2 * time.Minute
	}
	batchConcurrency := cfg.BatchConcurrency
	if batchConcurrency <= 0 {
		batchConcurrency = 4
	}
	presignExpiry := cfg.PresignExpiry
	if presignExpiry <= 0 {
		presignExpiry = 24 * time.Hour
	}

	return &App{
		generator:         cfg.Generator,
		store:             cfg.Store,
		settings:          settings,
		objects:           cfg.Objects,
		queue:             cfg.Queue,
		metrics:           m,
		summaryPrompt:     summaryPrompt,
		minTokens:         minTokens,
		maxTokens:         maxTokens,
		defaultTokens:     defaultTokens,
		maxInputChars:     maxInputChars,
		temperature:       cfg.Temperature,
		topP:              cfg.TopP,
		repetitionPenalty: cfg.RepetitionPenalty,
		generationTimeout: generationTimeout,
		batchConcurrency:  batchConcurrency,
		presignExpiry:     presignExpiry,
	}, nil
}

// Summarize builds the two-part summary prompt and returns the first
// candidate, bounded by maxTokens. Empty input short-circuits with the
// fixed guidance text and never reaches the backend.
func (a *App) Summarize(ctx context.Context, text string, maxTokens int) (domain.GenerationResult, error) {
	if strings.TrimSpace(text) == "" {
		a.metrics.IncGeneration("summarize", "empty_input")
		return domain.GenerationResult{Text: EmptyInputGuidance, CreatedAt: time.Now().UTC()}, nil
	}
	req := domain.GenerationRequest{
		SystemInstruction: a.summaryPrompt,
		UserText:          truncateInput(text, a.maxInputChars),
		MaxOutputTokens:   clampTokens(maxTokens, a.minTokens, a.maxTokens, a.defaultTokens),
	}
	return a.generate(ctx, "summarize", req)
}

// SummarizeBatch runs independent summaries with bounded parallelism.
// Results keep input order; the first backend failure aborts the batch.
func (a *App) SummarizeBatch(ctx context.Context, texts []string, maxTokens int) ([]domain.GenerationResult, error) {
	results := make([]domain.GenerationResult, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.batchConcurrency)
	for i, text := range texts {
		g.Go(func() error {
			result, err := a.Summarize(gctx, text, maxTokens)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// SummarizeDocument extracts plain text from an uploaded document and
// summarizes it.
func (a *App) SummarizeDocument(ctx context.Context, filename string, r io.Reader, maxTokens int) (domain.GenerationResult, error) {
	text, err := extract.Text(filename, r)
	if err != nil {
		return domain.GenerationResult{}, fmt.Errorf("%w: %v", ErrEmptyInput, err)
	}
	return a.Summarize(ctx, text, maxTokens)
}

// Chat runs one conversation turn: history-aware prompt, bounded
// generation, then persisting both sides of the exchange.
func (a *App) Chat(ctx context.Context, sessionID, conversationID, message string, maxTokens int) (domain.ChatReply, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.ChatReply{}, ErrSessionRequired
	}
	if strings.TrimSpace(message) == "" {
		a.metrics.IncGeneration("chat", "empty_input")
		return domain.ChatReply{}, ErrEmptyInput
	}

	settings := a.sessionSettings(sessionID)
	conversation, err := a.ensureConversation(sessionID, conversationID, message)
	if err != nil {
		return domain.ChatReply{}, err
	}

	var history []domain.Message
	if settings.HistoryLimit > 0 {
		history, err = a.store.ListMessages(conversation.ID, settings.HistoryLimit*2)
		if err != nil {
			return domain.ChatReply{}, fmt.Errorf("load history: %w", err)
		}
	}

	boundedTokens := clampTokens(maxTokens, a.minTokens, a.maxTokens, a.defaultTokens)
	req := domain.GenerationRequest{
		SystemInstruction: systemPromptForStyle(settings),
		UserText:          buildChatPrompt(history, truncateInput(message, a.maxInputChars)),
		MaxOutputTokens:   boundedTokens,
	}
	result, err := a.generate(ctx, "chat", req)
	if err != nil {
		return domain.ChatReply{}, err
	}

	meta := map[string]string{"maxTokens": strconv.Itoa(boundedTokens)}
	userMessageTime := time.Now().UTC()
	if err := a.store.AppendMessage(conversation.ID, domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversation.ID,
		Role:           "user",
		Content:        message,
		CreatedAt:      userMessageTime,
	}); err != nil {
		return domain.ChatReply{}, fmt.Errorf("save user message: %w", err)
	}
	assistantMessageTime := time.Now().UTC()
	if err := a.store.AppendMessage(conversation.ID, domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversation.ID,
		Role:           "assistant",
		Content:        result.Text,
		Meta:           meta,
		CreatedAt:      assistantMessageTime,
	}); err != nil {
		return domain.ChatReply{}, fmt.Errorf("save assistant message: %w", err)
	}
	if err := a.store.UpdateConversation(conversation.ID, "", assistantMessageTime); err != nil {
		return domain.ChatReply{}, fmt.Errorf("update conversation: %w", err)
	}

	return domain.ChatReply{
		ConversationID: conversation.ID,
		Message:        message,
		Reply:          result.Text,
		CreatedAt:      result.CreatedAt,
	}, nil
}

// ListConversations lists recent conversations for a session.
func (a *App) ListConversations(sessionID string, limit int) ([]domain.Conversation, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrSessionRequired
	}
	if limit <= 0 || limit > 100 {
		limit = 30
	}
	items, err := a.store.ListConversationsBySession(sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return items, nil
}

// ListMessages lists conversation messages in chronological order.
func (a *App) ListMessages(sessionID, conversationID string, limit int) ([]domain.Message, error) {
	conversation, err := a.ownedConversation(sessionID, conversationID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	items, err := a.store.ListMessages(conversation.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return items, nil
}

// DeleteConversation removes a conversation, its history, and any
// exported transcripts. Object cleanup is best-effort.
func (a *App) DeleteConversation(ctx context.Context, sessionID, conversationID string) error {
	conversation, err := a.ownedConversation(sessionID, conversationID)
	if err != nil {
		return err
	}
	artifacts, err := a.store.DeleteArtifactsByConversation(conversation.ID)
	if err != nil {
		return fmt.Errorf("delete artifacts: %w", err)
	}
	if a.objects != nil {
		for _, artifact := range artifacts {
			_ = a.objects.Delete(ctx, artifact.StorageKey)
		}
	}
	if err := a.store.DeleteConversation(conversation.ID); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}

// GetSettings returns session settings, falling back to defaults.
func (a *App) GetSettings(sessionID string) (domain.Settings, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.Settings{}, ErrSessionRequired
	}
	settings, ok, err := a.settings.GetSettings(sessionID)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	if !ok {
		return domain.DefaultSettings(), nil
	}
	return settings, nil
}

// SaveSettings normalizes and stores session settings.
func (a *App) SaveSettings(sessionID string, settings domain.Settings) (domain.Settings, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.Settings{}, ErrSessionRequired
	}
	defaults := domain.DefaultSettings()
	if strings.TrimSpace(settings.AssistantName) == "" {
		settings.AssistantName = defaults.AssistantName
	}
	switch settings.ResponseStyle {
	case "Friendly", "Professional", "Direct":
	default:
		settings.ResponseStyle = defaults.ResponseStyle
	}
	if settings.HistoryLimit < 0 {
		settings.HistoryLimit = 0
	}
	if settings.HistoryLimit > 100 {
		settings.HistoryLimit = 100
	}
	if err := a.settings.SaveSettings(sessionID, settings); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}
	return settings, nil
}

// ExportText writes content verbatim to a temp .txt file and returns its path.
func (a *App) ExportText(content string) (string, error) {
	return export.WriteText(content)
}

// EnqueueExport schedules a transcript export for a conversation.
func (a *App) EnqueueExport(ctx context.Context, sessionID, conversationID string) (queue.JobStatus, error) {
	if a.queue == nil || a.objects == nil {
		return queue.JobStatus{}, ErrExportsDisabled
	}
	conversation, err := a.ownedConversation(sessionID, conversationID)
	if err != nil {
		return queue.JobStatus{}, err
	}
	job, err := a.queue.Enqueue(ctx, conversation.ID)
	if err != nil {
		return queue.JobStatus{}, fmt.Errorf("enqueue export: %w", err)
	}
	return job, nil
}

// ExportStatus reports an export job with its artifact once finished.
func (a *App) ExportStatus(ctx context.Context, jobID string) (queue.JobStatus, *domain.Artifact, error) {
	if a.queue == nil {
		return queue.JobStatus{}, nil, ErrExportsDisabled
	}
	job, ok, err := a.queue.GetJob(ctx, jobID)
	if err != nil {
		return queue.JobStatus{}, nil, fmt.Errorf("load export job: %w", err)
	}
	if !ok {
		return queue.JobStatus{}, nil, ErrExportJobNotFound
	}
	if job.Status != queue.StatusDone {
		return job, nil, nil
	}
	artifact, found, err := a.store.GetArtifact(job.ID)
	if err != nil {
		return queue.JobStatus{}, nil, fmt.Errorf("load artifact: %w", err)
	}
	if !found {
		return job, nil, nil
	}
	return job, &artifact, nil
}

// StartExportWorker launches export consumers until ctx is canceled.
func (a *App) StartExportWorker(ctx context.Context, concurrency int) {
	if a.queue == nil || a.objects == nil {
		return
	}
	a.queue.Start(ctx, concurrency, a.processExport)
}

func (a *App) processExport(ctx context.Context, job queue.JobStatus) error {
	conversation, ok, err := a.store.GetConversation(job.ConversationID)
	if err != nil {
		a.metrics.IncExportJob(queue.StatusFailed)
		return fmt.Errorf("load conversation: %w", err)
	}
	if !ok {
		a.metrics.IncExportJob(queue.StatusFailed)
		return ErrConversationNotFound
	}
	messages, err := a.store.ListMessages(conversation.ID, 0)
	if err != nil {
		a.metrics.IncExportJob(queue.StatusFailed)
		return fmt.Errorf("load messages: %w", err)
	}
	settings := a.sessionSettings(conversation.SessionID)

	transcript := export.RenderTranscript(conversation, messages, settings)
	key := fmt.Sprintf("exports/%s/%s.txt", conversation.ID, job.ID)
	if err := a.objects.Put(ctx, key, strings.NewReader(transcript), int64(len(transcript)), "text/plain; charset=utf-8"); err != nil {
		a.metrics.IncExportJob(queue.StatusFailed)
		return fmt.Errorf("upload transcript: %w", err)
	}
	downloadURL, err := a.objects.PresignGet(ctx, key, a.presignExpiry)
	if err != nil {
		a.metrics.IncExportJob(queue.StatusFailed)
		return fmt.Errorf("presign transcript: %w", err)
	}
	if err := a.store.SaveArtifact(domain.Artifact{
		ID:             job.ID,
		ConversationID: conversation.ID,
		StorageKey:     key,
		DownloadURL:    downloadURL,
		SizeBytes:      int64(len(transcript)),
		CreatedAt:      time.Now().UTC(),
	}); err != nil {
		a.metrics.IncExportJob(queue.StatusFailed)
		return fmt.Errorf("save artifact: %w", err)
	}
	a.metrics.IncExportJob(queue.StatusDone)
	return nil
}

// generate performs exactly one backend call and consumes the first candidate.
func (a *App) generate(ctx context.Context, operation string, req domain.GenerationRequest) (domain.GenerationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, a.generationTimeout)
	defer cancel()

	start := time.Now()
	candidates, err := a.generator.Generate(ctx, ai.Prompt{
		System: req.SystemInstruction,
		User:   req.UserText,
	}, ai.Options{
		MaxTokens:         req.MaxOutputTokens,
		Temperature:       a.temperature,
		TopP:              a.topP,
		RepetitionPenalty: a.repetitionPenalty,
	})
	a.metrics.ObserveGenerationDuration(operation, time.Since(start).Seconds())
	if err != nil {
		a.metrics.IncGeneration(operation, "error")
		return domain.GenerationResult{}, classifyGenerateError(err)
	}
	if len(candidates) == 0 {
		a.metrics.IncGeneration(operation, "error")
		return domain.GenerationResult{}, fmt.Errorf("%w: %w", ErrGenerationFailed, ai.ErrNoCandidates)
	}
	text := strings.TrimSpace(candidates[0])
	if text == "" {
		a.metrics.IncGeneration(operation, "error")
		return domain.GenerationResult{}, fmt.Errorf("%w: %w", ErrGenerationFailed, ai.ErrNoCandidates)
	}
	a.metrics.IncGeneration(operation, "ok")
	return domain.GenerationResult{Text: text, CreatedAt: time.Now().UTC()}, nil
}

func classifyGenerateError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	return fmt.Errorf("%w: %w", ErrGenerationFailed, err)
}

func (a *App) sessionSettings(sessionID string) domain.Settings {
	settings, ok, err := a.settings.GetSettings(sessionID)
	if err != nil || !ok {
		return domain.DefaultSettings()
	}
	return settings
}

func (a *App) ensureConversation(sessionID, conversationID, message string) (domain.Conversation, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID != "" {
		return a.ownedConversation(sessionID, conversationID)
	}
	now := time.Now().UTC()
	conversation := domain.Conversation{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Title:     generateConversationTitle(message),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.CreateConversation(conversation); err != nil {
		return domain.Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	return conversation, nil
}

func (a *App) ownedConversation(sessionID, conversationID string) (domain.Conversation, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.Conversation{}, ErrSessionRequired
	}
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return domain.Conversation{}, ErrConversationNotFound
	}
	conversation, ok, err := a.store.GetConversation(conversationID)
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("load conversation: %w", err)
	}
	if !ok || conversation.SessionID != sessionID {
		return domain.Conversation{}, ErrConversationNotFound
	}
	return conversation, nil
}
