package generator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"regexp"
	"strconv"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const scriptPromptFormat = `You are a professional video essay script writer. Create a %s script about "%s". The narration should be approximately %d minutes long (target length %d seconds) and structured with short paragraphs. Include vivid scene descriptions and clear narration cues.%s`

const transcriptPromptFormat = `You are preparing narration text that will be read verbatim by a text-to-speech system.

Rewrite the following video script as a flowing transcript with these rules:
- Do not include titles, section headings, numbers, or labels.
- Use only standard punctuation marks: period (.), comma (,), question mark (?), and exclamation mark (!).
- Preserve the meaning and tone, keeping language conversational and ready to be spoken aloud.
- Ensure sentences have natural spacing and cadence suitable for narration.

Script:
%s

Transcript:`

const reviewPromptFormat = `You are a strict reviewer. Rate the script's coherence, length suitability, and style adherence between 0 and 100. Respond with the numeric score.

Script:
%s`

const (
	transcriptInputLimit = 40000
	reviewInputLimit     = 6000
)

// OpenAINarrator talks to an OpenAI-compatible chat completion endpoint.
type OpenAINarrator struct {
	client      *openai.Client
	model       string
	temperature float32
	topP        float32
}

func NewOpenAINarrator(baseURL, apiKey, model string, temperature, topP float64) *OpenAINarrator {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAINarrator{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		temperature: float32(temperature),
		topP:        float32(topP),
	}
}

func (n *OpenAINarrator) WriteScript(ctx context.Context, topic, style string, lengthSeconds int, researchContext string) (string, error) {
	minutes := lengthSeconds / 60
	if minutes < 1 {
		minutes = 1
	}

	contextBlock := ""
	if researchContext != "" {
		contextBlock = "\n\nUse the following research notes for factual grounding. Do not quote verbatim unless the facts are accurate and relevant:\n" + researchContext
	}

	prompt := fmt.Sprintf(scriptPromptFormat, style, topic, minutes, lengthSeconds, contextBlock)
	return n.complete(ctx, prompt)
}

var (
	transcriptPrefixRe = regexp.MustCompile(`(?i)^transcript:\s*`)
	intraLineSpaceRe   = regexp.MustCompile(`[^\S\r\n]+`)
)

func (n *OpenAINarrator) WriteTranscript(ctx context.Context, script string) (string, error) {
	script = truncateRunes(script, transcriptInputLimit)
	raw, err := n.complete(ctx, fmt.Sprintf(transcriptPromptFormat, script))
	if err != nil {
		return "", err
	}
	cleaned := transcriptPrefixRe.ReplaceAllString(raw, "")
	cleaned = intraLineSpaceRe.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned), nil
}

func (n *OpenAINarrator) Review(ctx context.Context, script string) (float64, error) {
	script = truncateRunes(script, reviewInputLimit)
	raw, err := n.complete(ctx, fmt.Sprintf(reviewPromptFormat, script))
	if err != nil {
		return 0, err
	}
	score, ok := ParseReviewScore(raw)
	if !ok {
		log.Printf("[narrator] reviewer response missing numeric score: %q", raw)
		return 0.0, nil
	}
	return score, nil
}

func (n *OpenAINarrator) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := n.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       n.model,
		Temperature: n.temperature,
		TopP:        n.topP,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// truncateRunes bounds prompt inputs without splitting a multibyte rune.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

var scoreRe = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)?`)

// ParseReviewScore extracts the first number from a reviewer response, clamps
// it to [0, 100], and rounds to 2 decimals. ok is false when the response
// contains no number.
func ParseReviewScore(raw string) (score float64, ok bool) {
	match := scoreRe.FindString(raw)
	if match == "" {
		return 0, false
	}
	val, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	val = math.Max(0, math.Min(val, 100))
	return math.Round(val*100) / 100, true
}
