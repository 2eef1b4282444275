package enrich

import (
	"context"
	"crypto/tls"
	"log"
	"net/http"
	"strings"
	"time"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"

	"newsbuzz/types"
)

const (
	cohereModel   = "command-r-08-2024"
	cohereTimeout = 30 * time.Second
)

// Sentiment labels prepended to captions.
const (
	sentimentBullish = "Bullish"
	sentimentBearish = "Bearish"
	sentimentNeutral = "Neutral"
)

// Cohere tags each caption with a market sentiment read from the headline.
// Any model failure degrades to the plain caption; enrichment never blocks
// delivery.
type Cohere struct {
	client *cohereclient.Client
	plain  Plain
}

// NewCohere builds a Cohere-backed enricher. The HTTP client forces HTTP/1.1
// to avoid HTTP/2 protocol errors against the Cohere edge.
func NewCohere(key string) *Cohere {
	httpClient := &http.Client{
		Timeout: cohereTimeout,
		Transport: &http.Transport{
			TLSNextProto:      make(map[string]func(authority string, c *tls.Conn) http.RoundTripper),
			ForceAttemptHTTP2: false,
		},
	}
	client := cohereclient.NewClient(
		cohereclient.WithToken(key),
		cohereclient.WithHTTPClient(httpClient),
	)
	return &Cohere{client: client}
}

func (c *Cohere) Caption(a types.Article) string {
	base := c.plain.Caption(a)

	label, err := c.sentiment(a)
	if err != nil {
		log.Printf("Warning: sentiment tagging failed for %q: %v", a.Title, err)
		return base
	}
	return sentimentEmoji(label) + " " + label + "\n\n" + base
}

func (c *Cohere) Digest(items []types.Article) string {
	return c.plain.Digest(items)
}

func (c *Cohere) sentiment(a types.Article) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cohereTimeout)
	defer cancel()

	model := cohereModel
	prompt := "Classify the market sentiment of this news item as exactly one word, " +
		"Bullish, Bearish, or Neutral.\n\nHeadline: " + a.Title
	if a.Summary != "" {
		prompt += "\nSummary: " + a.Summary
	}

	resp, err := c.client.Chat(ctx, &cohere.ChatRequest{
		Message: prompt,
		Model:   &model,
	})
	if err != nil {
		return "", err
	}
	return parseSentiment(resp.Text), nil
}

// parseSentiment maps a free-form model reply onto one of the three labels.
// Anything unrecognized reads as Neutral.
func parseSentiment(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "bullish"):
		return sentimentBullish
	case strings.Contains(lower, "bearish"):
		return sentimentBearish
	default:
		return sentimentNeutral
	}
}

func sentimentEmoji(label string) string {
	switch label {
	case sentimentBullish:
		return "📈"
	case sentimentBearish:
		return "📉"
	default:
		return "➖"
	}
}
