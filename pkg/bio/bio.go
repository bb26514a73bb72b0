// Package bio supplies profile bios: a fixed rotation and short AI-generated ones.
package bio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"google.golang.org/genai"
)

// DefaultModel is the Gemini model used for generation.
const DefaultModel = "gemini-2.5-flash"

// MaxLength is the longest bio returned, in characters.
const MaxLength = 150

// Tones offered to visitors; the first is the default.
var Tones = []string{"Divertido", "Profissional", "Épico"}

var (
	// ErrNotConfigured is returned when no API key was supplied.
	ErrNotConfigured = errors.New("bio generator not configured")
	// ErrNoKeywords is returned for blank keywords.
	ErrNoKeywords = errors.New("keywords required")
)

var options = []string{
	"Criando conteúdo para redes sociais, TikTok, YouTube e muito mais! 🎥",
	"Minecraft, Vlogs e diversão garantida! 🎮✨",
	"Se inscreva no canal e me siga nas redes vizinhas! 🚀",
	"Transformando ideias em vídeos épicos. Vem conferir! 🔥",
}

// Options returns the rotating bios.
func Options() []string {
	out := make([]string, len(options))
	copy(out, options)
	return out
}

// At returns the rotating bio shown at t when the bio changes every period.
func At(t time.Time, period time.Duration) string {
	if period <= 0 {
		return options[0]
	}
	slot := t.UnixNano() / int64(period)
	return options[int(slot%int64(len(options)))]
}

// textModel is the part of the genai client used here.
type textModel interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Generator writes short bios with Gemini.
type Generator struct {
	models textModel
	logger *slog.Logger
	model  string
}

// Option configures a Generator.
type Option func(*config)

type config struct {
	logger *slog.Logger
	apiKey string
	model  string
}

// WithAPIKey sets the Gemini API key. Without it Generate returns ErrNotConfigured.
func WithAPIKey(key string) Option {
	return func(c *config) { c.apiKey = key }
}

// WithModel overrides DefaultModel.
func WithModel(model string) Option {
	return func(c *config) {
		if model != "" {
			c.model = model
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// New creates a Generator.
func New(ctx context.Context, opts ...Option) (*Generator, error) {
	cfg := &config{logger: slog.Default(), model: DefaultModel}
	for _, opt := range opts {
		opt(cfg)
	}

	g := &Generator{logger: cfg.logger, model: cfg.model}
	if cfg.apiKey == "" {
		return g, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	g.models = client.Models
	return g, nil
}

// Configured reports whether Generate can reach the model.
func (g *Generator) Configured() bool { return g.models != nil }

// Generate returns a bio about keywords in the given tone.
func (g *Generator) Generate(ctx context.Context, keywords, tone string) (string, error) {
	if g.models == nil {
		return "", ErrNotConfigured
	}
	keywords = strings.TrimSpace(keywords)
	if keywords == "" {
		return "", ErrNoKeywords
	}
	if strings.TrimSpace(tone) == "" {
		tone = Tones[0]
	}

	g.logger.InfoContext(ctx, "generating bio", "model", g.model, "tone", tone)

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(Prompt(keywords, tone)), nil)
	if err != nil {
		return "", fmt.Errorf("generate bio: %w", err)
	}

	text := Clean(resp.Text())
	if text == "" {
		return "", errors.New("generate bio: empty response")
	}
	return text, nil
}

// Prompt builds the generation instructions.
func Prompt(keywords, tone string) string {
	var b strings.Builder
	b.WriteString(`Crie uma biografia curta, engajadora e estética para um perfil de "Link in Bio".` + "\n\n")
	b.WriteString("Detalhes:\n")
	fmt.Fprintf(&b, "- Interesses/Tópicos: %s\n", keywords)
	fmt.Fprintf(&b, "- Tom de voz: %s\n", tone)
	fmt.Fprintf(&b, "- Limite: Máximo de %d caracteres.\n", MaxLength)
	b.WriteString("- Inclua 1 ou 2 emojis relevantes.\n")
	b.WriteString("- Idioma: Português (Brasil).\n")
	b.WriteString("- Retorne APENAS o texto da bio, sem aspas ou explicações.\n")
	return b.String()
}

// Clean trims model output, strips wrapping quotes and caps it at MaxLength characters.
func Clean(s string) string {
	s = strings.TrimSpace(s)
	for _, q := range []string{`"`, "'", "“", "”"} {
		s = strings.TrimPrefix(s, q)
		s = strings.TrimSuffix(s, q)
	}
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= MaxLength {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:MaxLength]))
}
