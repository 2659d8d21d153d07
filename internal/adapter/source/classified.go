package source

import (
	"context"
	"log/slog"

	"github.com/sutakip/sutakip/internal/adapter/classifier"
	"github.com/sutakip/sutakip/internal/domain"
	"github.com/sutakip/sutakip/internal/observability"
)

// TextClassifier extracts interruptions from free text.
type TextClassifier interface {
	Classify(ctx context.Context, text, city string) []classifier.Extraction
}

// NewClassifiedPage returns a source that scrapes an announcement page and
// hands its text to the classifier. selector names the content container;
// when it is empty or absent the whole body is used.
func NewClassifiedPage(name, city, url, selector string, f *Fetcher, tc TextClassifier, logger *slog.Logger, metrics *observability.Metrics) *Source {
	return newSource(name, city, func(ctx context.Context) ([]domain.Record, error) {
		doc, err := f.Document(ctx, url)
		if err != nil {
			return nil, err
		}
		content := containerOrFallback(doc, selector, doc.Find("body"))
		extractions := tc.Classify(ctx, pageText(content), city)

		records := make([]domain.Record, 0, len(extractions))
		for _, e := range extractions {
			records = append(records, e.Record(city))
		}
		return records, nil
	}, logger, metrics)
}

// NewAnkara returns the ASKİ announcement source.
func NewAnkara(f *Fetcher, url string, tc TextClassifier, logger *slog.Logger, metrics *observability.Metrics) *Source {
	return NewClassifiedPage(NameAnkaraWeb, domain.CityAnkara, url, "", f, tc, logger, metrics)
}

// NewIstanbul returns the İSKİ announcement source.
func NewIstanbul(f *Fetcher, url string, tc TextClassifier, logger *slog.Logger, metrics *observability.Metrics) *Source {
	return NewClassifiedPage(NameIstanbulWeb, domain.CityIstanbul, url, "div#divArizaKesinti", f, tc, logger, metrics)
}
