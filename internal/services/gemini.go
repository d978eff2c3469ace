package services

import (
  "bytes"
  "context"
  "encoding/json"
  "fmt"
  "io"
  "net/http"
  "time"

  "github.com/spur-store/spur-chat-backend/internal/logger"
  "github.com/spur-store/spur-chat-backend/internal/observability"
  "github.com/spur-store/spur-chat-backend/internal/types"
  "github.com/spur-store/spur-chat-backend/internal/utils"
)

// FallbackReply is returned in place of model output whenever the Gemini call
// fails. The turn still completes and this string is persisted as the ai
// message.
const FallbackReply = "I'm having trouble connecting to my brain right now. Please try again later."

// SystemPrompt is the fixed support-policy instruction sent with every call.
const SystemPrompt = `
You are a customer support agent for "Spur Store", a fictional tech merchandise shop.
You must answer strictly based on the following policies:

1. **Shipping Policy**:
   - We ship to the USA and Canada only.
   - Standard shipping is free for orders over $50.
   - For orders under $50, shipping is a flat rate of $5.99.
   - Delivery takes 3-5 business days.

2. **Return & Refund Policy**:
   - We accept returns within 30 days of purchase.
   - Items must be unused and in original packaging.
   - Refunds are processed to the original payment method within 5-7 business days after we receive the return.
   - Digital products (like software keys) are non-refundable.

3. **Support Hours**:
   - Our live support team is available Monday to Friday, 9:00 AM to 5:00 PM EST.
   - Outside these hours, you can leave a message, and we will reply the next business day.

**Guidelines**:
- Be polite, concise, and helpful.
- If a user asks something not covered here (like "How do I install the software?"), politely say you don't have that information and suggest emailing spurchatbot@gmail.com.
- Do not make up facts that are not listed above.
`

// ChatTurn is one prior message handed to the model as context, oldest first.
type ChatTurn struct {
  Sender  string
  Content string
}

type GeminiService interface {
  // GenerateReply never returns an error: any failure degrades to
  // FallbackReply so the caller can persist and return it like any reply.
  GenerateReply(ctx context.Context, history []ChatTurn, userMessage string) string
}

// GeminiConfig is an immutable value injected at construction.
type GeminiConfig struct {
  BaseURL         string
  APIKey          string
  Model           string
  SystemPrompt    string
  MaxOutputTokens int
  Temperature     float64
}

// GeminiConfigFromEnv loads the gateway configuration with the original
// model defaults: a 300 token output cap and temperature 0.7.
func GeminiConfigFromEnv(log *logger.Logger) GeminiConfig {
  return GeminiConfig{
    BaseURL:         utils.GetEnv("GEMINI_API_URL", "https://generativelanguage.googleapis.com", log),
    APIKey:          utils.GetEnv("GEMINI_API_KEY", "", log),
    Model:           utils.GetEnv("GEMINI_MODEL", "gemini-2.5-flash", log),
    SystemPrompt:    SystemPrompt,
    MaxOutputTokens: utils.GetEnvAsInt("GEMINI_MAX_OUTPUT_TOKENS", 300, log),
    Temperature:     utils.GetEnvAsFloat("GEMINI_TEMPERATURE", 0.7, log),
  }
}

type geminiService struct {
  log     *logger.Logger
  client  *http.Client
  cfg     GeminiConfig
  metrics *observability.Metrics
}

func NewGeminiService(log *logger.Logger, cfg GeminiConfig, metrics *observability.Metrics) (GeminiService, error) {
  serviceLog := log.With("service", "GeminiService")
  if cfg.BaseURL == "" {
    return nil, fmt.Errorf("missing Gemini base URL")
  }
  if cfg.APIKey == "" {
    serviceLog.Warn("GEMINI_API_KEY not set; calls might fail or be unauthorized")
  }
  httpClient := &http.Client{
    Timeout: 15 * time.Second,
  }
  return &geminiService{
    log:     serviceLog,
    client:  httpClient,
    cfg:     cfg,
    metrics: metrics,
  }, nil
}

func (gs *geminiService) fallback(reason string) string {
  if gs.metrics != nil {
    gs.metrics.GatewayFailures.WithLabelValues(reason).Inc()
  }
  return FallbackReply
}

type geminiPart struct {
  Text string `json:"text"`
}

type geminiContent struct {
  Role  string       `json:"role,omitempty"`
  Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
  MaxOutputTokens int     `json:"maxOutputTokens"`
  Temperature     float64 `json:"temperature"`
}

type geminiRequest struct {
  SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
  Contents          []geminiContent        `json:"contents"`
  GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
  Candidates []struct {
    Content geminiContent `json:"content"`
  } `json:"candidates"`
}

func (gs *geminiService) GenerateReply(ctx context.Context, history []ChatTurn, userMessage string) string {
  contents := make([]geminiContent, 0, len(history)+1)
  for _, turn := range history {
    role := "user"
    if turn.Sender == types.SenderAI {
      role = "model"
    }
    contents = append(contents, geminiContent{
      Role:  role,
      Parts: []geminiPart{{Text: turn.Content}},
    })
  }
  contents = append(contents, geminiContent{
    Role:  "user",
    Parts: []geminiPart{{Text: userMessage}},
  })

  reqBody := geminiRequest{
    SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: gs.cfg.SystemPrompt}}},
    Contents:          contents,
    GenerationConfig: geminiGenerationConfig{
      MaxOutputTokens: gs.cfg.MaxOutputTokens,
      Temperature:     gs.cfg.Temperature,
    },
  }
  payload, err := json.Marshal(reqBody)
  if err != nil {
    gs.log.Warn("failed to marshal gemini request", "error", err)
    return gs.fallback("marshal")
  }

  reqURL := fmt.Sprintf("%s/v1beta/models/%s:generateContent", gs.cfg.BaseURL, gs.cfg.Model)
  req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
  if err != nil {
    gs.log.Warn("failed to build gemini request", "error", err)
    return gs.fallback("request")
  }
  req.Header.Set("Content-Type", "application/json")
  req.Header.Set("x-goog-api-key", gs.cfg.APIKey)

  start := time.Now()
  resp, err := gs.client.Do(req)
  if gs.metrics != nil {
    gs.metrics.ObserveGatewayLatency(time.Since(start))
  }
  if err != nil {
    gs.log.Warn("failed to call gemini", "error", err)
    return gs.fallback("transport")
  }
  defer resp.Body.Close()

  if resp.StatusCode < 200 || resp.StatusCode > 299 {
    bodyBytes, _ := io.ReadAll(resp.Body)
    gs.log.Warn("gemini responded with non-2xx", "statusCode", resp.StatusCode, "body", string(bodyBytes))
    return gs.fallback("status")
  }
  bodyBytes, err := io.ReadAll(resp.Body)
  if err != nil {
    gs.log.Warn("failed to read gemini response body", "error", err)
    return gs.fallback("read")
  }
  var out geminiResponse
  if err := json.Unmarshal(bodyBytes, &out); err != nil {
    gs.log.Warn("failed to unmarshal gemini response", "error", err)
    return gs.fallback("decode")
  }
  if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
    gs.log.Warn("gemini returned no candidates")
    return gs.fallback("empty")
  }
  reply := out.Candidates[0].Content.Parts[0].Text
  if reply == "" {
    gs.log.Warn("gemini returned an empty candidate text")
    return gs.fallback("empty")
  }
  return reply
}
