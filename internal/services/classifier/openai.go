package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mailsift/mailsift/internal/logger"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"
)

const (
	// DefaultOpenAIModel is the default model to use
	DefaultOpenAIModel = "gpt-4o-mini"
	// DefaultOpenAIBaseURL is the default OpenAI API base URL
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultTimeout is the default timeout for API calls
	DefaultTimeout = 30 * time.Second

	// ErrNoChoicesInResponse is returned when the API response has no choices
	ErrNoChoicesInResponse = "no choices in response"
)

// OpenAIClassifier implements the Classifier interface using OpenAI's API
type OpenAIClassifier struct {
	client    openai.Client
	model     string
	logger    *zap.Logger
	debugMode bool
}

// NewOpenAIClassifier creates a new OpenAI classifier
func NewOpenAIClassifier(apiKey, baseURL, model string, log *zap.Logger, debugMode bool) *OpenAIClassifier {
	if model == "" {
		model = DefaultOpenAIModel
	}
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}

	httpClient := &http.Client{
		Timeout: DefaultTimeout,
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(httpClient),
	)

	return &OpenAIClassifier{
		client:    client,
		model:     model,
		logger:    log,
		debugMode: debugMode,
	}
}

// Classify issues one classification call for a single item.
func (c *OpenAIClassifier) Classify(ctx context.Context, req Request) (*Result, error) {
	prompt := buildClassificationPrompt(req)
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage("You are an email triage assistant. Respond with valid JSON only."),
		openai.UserMessage(prompt),
	}
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(c.model),
		Messages: messages,
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}

	if c.logger != nil && c.debugMode {
		c.logger.Debug("classifier_api_request",
			zap.String("model", c.model),
			zap.Int("prompt_length", len(prompt)),
			zap.String("sender", logger.SanitizeSender(req.Sender)),
			zap.String("prompt_preview", logger.SanitizeDebugContent(prompt)),
		)
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	latency := time.Since(start)
	if err != nil {
		if c.logger != nil && c.debugMode {
			c.logger.Debug("classifier_api_error",
				zap.String("model", c.model),
				zap.String("error", logger.SanitizeError(err)),
				zap.Duration("latency", latency),
			)
		}
		return nil, &SoftFailureError{Reason: "classification request failed", Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &SoftFailureError{Reason: ErrNoChoicesInResponse, Err: errors.New(ErrNoChoicesInResponse)}
	}

	content := resp.Choices[0].Message.Content
	if c.logger != nil && c.debugMode {
		c.logger.Debug("classifier_api_response",
			zap.String("model", c.model),
			zap.Int("response_length", len(content)),
			zap.String("response_preview", logger.SanitizeDebugContent(content)),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
	}

	return parseAndValidateResult(content)
}

// parseAndValidateResult parses the raw model output into a Result and
// enforces the response schema. Models occasionally wrap the JSON in code
// fences or prose, so a brace-extraction retry is attempted before failing.
func parseAndValidateResult(content string) (*Result, error) {
	var result Result
	raw := content
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		if len(raw) > 0 && raw[0] != '{' {
			start := bytes.Index([]byte(raw), []byte("{"))
			end := bytes.LastIndex([]byte(raw), []byte("}"))
			if start != -1 && end != -1 && end > start {
				raw = raw[start : end+1]
			}
		}
		if err := json.Unmarshal([]byte(raw), &result); err != nil {
			return nil, &SoftFailureError{Reason: "malformed response JSON", Err: err}
		}
	}

	result.PrimaryLabel = strings.TrimSpace(result.PrimaryLabel)
	result.SuggestedLabel = strings.TrimSpace(result.SuggestedLabel)

	if err := validateResult(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// buildClassificationPrompt builds the instruction set sent with every call:
// the allowed vocabulary, the item's sender and subject, and a bounded body
// preview. The caller truncates the preview; this function does not re-trim.
func buildClassificationPrompt(req Request) string {
	var b strings.Builder

	b.WriteString("You are an intelligent email assistant for a busy professional. ")
	b.WriteString("Your goal is to categorize emails with extreme accuracy based on their true intent.\n\n")

	b.WriteString("ALLOWED LABELS:\n[")
	b.WriteString(strings.Join(req.AllowedLabels, ", "))
	b.WriteString("]\n\n")

	b.WriteString("RULES:\n")
	b.WriteString("1. ANALYZE INTENT: Is this email informing the user about something they already did ('Purchases')? ")
	b.WriteString("Is it providing information they requested ('Subscriptions')? ")
	b.WriteString("Or is it trying to get them to do something new for the sender's benefit ('Promotions')?\n")
	b.WriteString("2. '[Action Required]': Only for emails requiring an immediate, personal action from the user.\n")
	b.WriteString("3. 'Promotions': This is the default for most unsolicited commercial email, including recruiter emails.\n")
	b.WriteString("4. 'Needs Review': Use this label if, and ONLY IF, an email is genuinely ambiguous and does not fit any other category.\n\n")

	b.WriteString("RESPONSE FORMAT:\n")
	b.WriteString("Your response MUST be a valid JSON object with FIVE keys: \"primaryLabel\", \"suggestedLabel\", ")
	b.WriteString("\"hasImportantAttachment\", \"canUnsubscribe\", and \"reasoning\".\n")
	b.WriteString("- \"primaryLabel\": Your final choice from the ALLOWED LABELS.\n")
	b.WriteString("- \"suggestedLabel\": Your ideal label name if none of the allowed labels fit perfectly.\n")
	b.WriteString("- \"reasoning\": A brief, one-sentence explanation for your \"primaryLabel\" choice.\n\n")

	fmt.Fprintf(&b, "Email to Analyze:\nSender: %q\nSubject: %q\nBody (preview): %q\n",
		req.Sender, req.Subject, req.BodyPreview)

	return b.String()
}

// Ensure OpenAIClassifier implements the interface
var _ Classifier = (*OpenAIClassifier)(nil)
