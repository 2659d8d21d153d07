package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/sutakip/sutakip/internal/domain"
	"github.com/sutakip/sutakip/internal/observability"
)

// izmirFault is one element of the İzmir fault API response.
type izmirFault struct {
	IlceAdi       domain.FlexString `json:"IlceAdi"`
	Mahalleler    domain.FlexString `json:"Mahalleler"`
	Mahalle       domain.FlexString `json:"Mahalle"`
	KesintiSuresi domain.FlexString `json:"KesintiSuresi"`
	ArizaNedeni   domain.FlexString `json:"ArizaNedeni"`
}

func (f izmirFault) record() domain.Record {
	neighborhood := f.Mahalleler.String()
	if neighborhood == "" {
		neighborhood = f.Mahalle.String()
	}
	if neighborhood == "" {
		neighborhood = domain.NeighborhoodUnspecified
	}
	return domain.Record{
		City:         domain.CityIzmir,
		Type:         domain.TypeFault,
		District:     f.IlceAdi.String(),
		Neighborhood: neighborhood,
		TimeWindow:   f.KesintiSuresi.String(),
		Reason:       f.ArizaNedeni.String(),
	}
}

// NewIzmirAPI returns the source for İzmir's structured fault feed.
func NewIzmirAPI(f *Fetcher, url string, logger *slog.Logger, metrics *observability.Metrics) *Source {
	return newSource(NameIzmirAPI, domain.CityIzmir, func(ctx context.Context) ([]domain.Record, error) {
		body, err := f.Get(ctx, url)
		if err != nil {
			return nil, err
		}
		return parseIzmirFaults(body)
	}, logger, metrics)
}

func parseIzmirFaults(body []byte) ([]domain.Record, error) {
	var faults []izmirFault
	if err := json.Unmarshal(body, &faults); err != nil {
		return nil, fmt.Errorf("decode izmir faults: %w", err)
	}
	records := make([]domain.Record, 0, len(faults))
	for _, f := range faults {
		records = append(records, f.record())
	}
	return records, nil
}

// NewIzmirWeb returns the source for İzmir's planned-works announcement page,
// which is parsed with the district line-grouping heuristic.
func NewIzmirWeb(f *Fetcher, url string, logger *slog.Logger, metrics *observability.Metrics) *Source {
	return newSource(NameIzmirWeb, domain.CityIzmir, func(ctx context.Context) ([]domain.Record, error) {
		doc, err := f.Document(ctx, url)
		if err != nil {
			return nil, err
		}
		content := containerOrFallback(doc, "div#divContent", doc.Selection)
		window := domain.ExtractTimeWindow(content.Text())
		return domain.GroupDistrictLines(domain.CityIzmir, textLines(content), window), nil
	}, logger, metrics)
}
