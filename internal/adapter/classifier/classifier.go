// Package classifier turns free-form announcement text into structured
// interruption entries by delegating to a language model.
package classifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sutakip/sutakip/internal/domain"
	"github.com/sutakip/sutakip/internal/observability"
)

// Temperature used for every completion request.
const Temperature = 0.1

// Completer sends a single prompt to a language model and returns its raw reply.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	// HasCredential reports whether the backend is configured with an API key.
	HasCredential() bool
}

// Extraction is one interruption as returned by the model.
type Extraction struct {
	Tip     domain.FlexString `json:"tip"`
	Ilce    domain.FlexString `json:"ilce"`
	Mahalle domain.FlexString `json:"mahalle"`
	Zaman   domain.FlexString `json:"zaman"`
}

// Record converts the extraction into a record attributed to city.
func (e Extraction) Record(city string) domain.Record {
	return domain.Record{
		City:         city,
		Type:         domain.ParseType(e.Tip.String()),
		District:     e.Ilce.String(),
		Neighborhood: e.Mahalle.String(),
		TimeWindow:   e.Zaman.String(),
	}
}

// Options tunes a Classifier.
type Options struct {
	MaxInput int           // rune cap on the text embedded in the prompt
	Timeout  time.Duration // per-request deadline
	CacheTTL time.Duration
}

// Classifier extracts interruptions from raw text. It never returns an error:
// every failure yields an empty result.
type Classifier struct {
	completer Completer
	opts      Options
	cache     *cache.Cache
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// New creates a Classifier backed by the given completer.
func New(completer Completer, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Classifier {
	if opts.MaxInput <= 0 {
		opts.MaxInput = 10000
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}
	return &Classifier{
		completer: completer,
		opts:      opts,
		cache:     cache.New(opts.CacheTTL, 2*opts.CacheTTL),
		logger:    logger,
		metrics:   metrics,
	}
}

// Classify returns the interruptions found in text. The result is never nil.
func (c *Classifier) Classify(ctx context.Context, text, city string) []Extraction {
	text = strings.TrimSpace(text)
	if text == "" || c.completer == nil || !c.completer.HasCredential() {
		c.logger.Warn("classifier skipped", "city", city, "has_text", text != "")
		c.metrics.ClassifierRequests.WithLabelValues("skipped").Inc()
		return []Extraction{}
	}

	text = truncateRunes(text, c.opts.MaxInput)
	key := cacheKey(city, text)
	if cached, ok := c.cache.Get(key); ok {
		c.metrics.ClassifierRequests.WithLabelValues("cache_hit").Inc()
		c.logger.Debug("classifier cache hit", "city", city)
		return cached.([]Extraction)
	}

	out, err := c.classify(ctx, text, city)
	if err != nil {
		c.metrics.ClassifierRequests.WithLabelValues("error").Inc()
		c.logger.Error("classification failed", "city", city, "error", err)
		return []Extraction{}
	}

	c.metrics.ClassifierRequests.WithLabelValues("success").Inc()
	c.cache.Set(key, out, cache.DefaultExpiration)
	c.logger.Info("classification complete", "city", city, "entries", len(out))
	return out
}

func (c *Classifier) classify(ctx context.Context, text, city string) ([]Extraction, error) {
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := c.completer.Complete(ctx, BuildPrompt(text, city))
	c.metrics.ClassifierDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("complete: %w", err)
	}
	return ParseResponse(reply)
}

const promptTemplate = `Görevin: Aşağıdaki %s su idaresi duyuru metnini analiz et ve su kesintilerini JSON listesi olarak ver.
Her kesintiyi kök nedenine göre sınıflandır:
1. PLANLI: kapasite artırımı, bakım, onarım, yatırım, hat değişimi, basınç düşüklüğü, kuraklık veya önceden duyurulan çalışmalar.
2. ARIZA: boru patlağı, fiziksel hasar veya beklenmeyen arızalar.
Emin olamıyorsan kök nedene en yakın olanı seç.

Tarihleri sadeleştir (örn: "20 Aralık 09:00-17:00").
Birden fazla mahalle varsa virgülle ayrılmış tek bir metin olarak yaz.
Sadece JSON dizisi döndür, açıklama ekleme.
İstenen JSON Formatı:
[{"tip": "ARIZA", "ilce": "...", "mahalle": "...", "zaman": "..."}]

METİN:
%s`

// BuildPrompt embeds text into the classification instruction for city.
func BuildPrompt(text, city string) string {
	return fmt.Sprintf(promptTemplate, city, text)
}

var (
	fencePattern = regexp.MustCompile("```(?:json|JSON)?")
	arrayPattern = regexp.MustCompile(`(?s)\[.*\]`)
)

var errNoArray = errors.New("no JSON array in reply")

// ParseResponse strips markdown fences from a model reply and decodes the
// first bracketed span as a list of extractions.
func ParseResponse(reply string) ([]Extraction, error) {
	cleaned := fencePattern.ReplaceAllString(reply, "")
	span := arrayPattern.FindString(cleaned)
	if span == "" {
		return nil, errNoArray
	}
	var out []Extraction
	if err := json.Unmarshal([]byte(span), &out); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	if out == nil {
		out = []Extraction{}
	}
	return out, nil
}

func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func cacheKey(city, text string) string {
	sum := sha256.Sum256([]byte(city + "\x00" + text))
	return hex.EncodeToString(sum[:])
}
