package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"golang.org/x/time/rate"

	"github.com/Epistemic-Technology/study-mcp/internal/config"
	"github.com/Epistemic-Technology/study-mcp/internal/logger"
)

var (
	// ErrMalformedResponse marks a response that does not have the expected shape
	ErrMalformedResponse = errors.New("malformed response")
	// ErrRequestTimeout marks a request that exceeded the configured timeout
	ErrRequestTimeout = errors.New("request timed out")
)

const (
	// Rough token cost of one inline image, used only for rate limiting
	estimatedTokensPerImage = 1100
	charsPerToken           = 4
)

// Part is one piece of request content: either text or an inline image
type Part struct {
	Text  string
	Image *InlineImage
}

type InlineImage struct {
	Name     string
	MIMEType string
	Data     []byte
}

// TextPart returns a text content part
func TextPart(text string) Part {
	return Part{Text: text}
}

// ImagePart returns an inline image content part
func ImagePart(name string, data []byte) Part {
	return Part{Image: &InlineImage{Name: name, MIMEType: http.DetectContentType(data), Data: data}}
}

// Request is a single call to the content-understanding service
type Request struct {
	// Purpose labels the request in logs ("describe", "outline", "section")
	Purpose         string
	Model           string
	Parts           []Part
	MaxOutputTokens int
	// Temperature is omitted from the request when nil
	Temperature *float64
	// Output constrains the response to a JSON schema when set
	Output *StructuredOutput
}

type Response struct {
	Text         string
	InputTokens  int64
	OutputTokens int64
}

// Generator issues one request and returns the generated text with usage.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// OpenAIClient implements Generator with the OpenAI Responses API
type OpenAIClient struct {
	client  openai.Client
	limiter *rate.Limiter
	timeout time.Duration
	log     logger.Logger
}

// NewOpenAIClient creates a client sharing one rate limiter across all requests
func NewOpenAIClient(cfg config.Config, log logger.Logger, opts ...option.RequestOption) *OpenAIClient {
	opts = append([]option.RequestOption{option.WithAPIKey(cfg.OpenAIAPIKey), option.WithMaxRetries(0)}, opts...)
	return &OpenAIClient{
		client:  openai.NewClient(opts...),
		limiter: NewLimiter(cfg.TokensPerSecond, cfg.BurstTokens),
		timeout: cfg.RequestTimeout,
		log:     log,
	}
}

func (c *OpenAIClient) Generate(ctx context.Context, req Request) (*Response, error) {
	return RateLimitedCall(ctx, c.limiter, EstimateTokens(req), c.log, func(ctx context.Context) (*Response, error) {
		if c.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}

		c.log.Debug("Calling OpenAI API for %s (model %s, %d parts)", req.Purpose, req.Model, len(req.Parts))
		response, err := c.client.Responses.New(ctx, buildParams(req))
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s after %v", ErrRequestTimeout, req.Purpose, c.timeout)
			}
			return nil, fmt.Errorf("%s request failed: %w", req.Purpose, err)
		}

		return &Response{
			Text:         response.OutputText(),
			InputTokens:  response.Usage.InputTokens,
			OutputTokens: response.Usage.OutputTokens,
		}, nil
	})
}

func buildParams(req Request) responses.ResponseNewParams {
	content := make(responses.ResponseInputMessageContentListParam, 0, len(req.Parts))
	for _, part := range req.Parts {
		if part.Image != nil {
			encoded := base64.StdEncoding.EncodeToString(part.Image.Data)
			content = append(content, responses.ResponseInputContentUnionParam{
				OfInputImage: &responses.ResponseInputImageParam{
					ImageURL: openai.String("data:" + part.Image.MIMEType + ";base64," + encoded),
					Detail:   responses.ResponseInputImageDetailAuto,
				},
			})
			continue
		}
		content = append(content, responses.ResponseInputContentParamOfInputText(part.Text))
	}

	params := responses.ResponseNewParams{
		Model: req.Model,
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: responses.ResponseInputParam{
				responses.ResponseInputItemParamOfMessage(content, "user"),
			},
		},
	}
	if req.MaxOutputTokens > 0 {
		params.MaxOutputTokens = openai.Int(int64(req.MaxOutputTokens))
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.Output != nil {
		params.Text = responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigParamOfJSONSchema(req.Output.Name, req.Output.Schema),
		}
	}
	return params
}

// EstimateTokens gives a conservative token count for rate limiting
func EstimateTokens(req Request) int {
	tokens := req.MaxOutputTokens
	for _, part := range req.Parts {
		if part.Image != nil {
			tokens += estimatedTokensPerImage
			continue
		}
		tokens += len(part.Text)/charsPerToken + 1
	}
	return tokens
}
