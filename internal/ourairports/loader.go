package ourairports

import (
	"context"
	"fmt"
	"time"

	"dutycal/internal/airport"
	"dutycal/internal/ics"
	appLog "dutycal/internal/log"
	"dutycal/internal/store"
)

// Fetcher downloads a URL, possibly from a local cache.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (ics.FetchResult, error)
}

// Loader keeps the airport tables in sync with the ourairports.com CSVs.
type Loader struct {
	fetcher      Fetcher
	store        *store.AirportStore
	airportsURL  string
	countriesURL string
	now          func() time.Time
}

func NewLoader(fetcher Fetcher, st *store.AirportStore, airportsURL, countriesURL string) *Loader {
	if airportsURL == "" {
		airportsURL = DefaultAirportsURL
	}
	if countriesURL == "" {
		countriesURL = DefaultCountriesURL
	}
	return &Loader{
		fetcher:      fetcher,
		store:        st,
		airportsURL:  airportsURL,
		countriesURL: countriesURL,
		now:          time.Now,
	}
}

// Refresh downloads both datasets and replaces the stored copies. A
// download served from cache is skipped when the table was already loaded,
// and a download without rows never replaces a stored table.
func (l *Loader) Refresh(ctx context.Context) error {
	countries, err := l.fetch(ctx, store.DatasetCountries, l.countriesURL)
	if err != nil {
		return err
	}
	if countries != nil {
		parsed, err := ParseCountries(countries)
		if err != nil {
			return err
		}
		if len(parsed) == 0 {
			appLog.Warn("downloaded data contains no countries, keeping stored table")
		} else {
			if err := l.store.ReplaceCountries(ctx, parsed, l.now()); err != nil {
				return err
			}
			appLog.Info("countries refreshed", "count", len(parsed))
		}
	}

	airports, err := l.fetch(ctx, store.DatasetAirports, l.airportsURL)
	if err != nil {
		return err
	}
	if airports != nil {
		parsed, skipped, err := ParseAirports(airports)
		if err != nil {
			return err
		}
		if len(parsed) == 0 {
			appLog.Warn("downloaded data contains no airports, keeping stored table", "skipped", skipped)
		} else {
			if err := l.store.ReplaceAirports(ctx, parsed, l.now()); err != nil {
				return err
			}
			appLog.Info("airports refreshed", "count", len(parsed), "skipped", skipped)
		}
	}
	return nil
}

// fetch returns nil when the cached body is already stored.
func (l *Loader) fetch(ctx context.Context, dataset, url string) ([]byte, error) {
	res, err := l.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", dataset, err)
	}
	if res.FromCache {
		_, rows, ok, err := l.store.LastRefresh(ctx, dataset)
		if err != nil {
			return nil, err
		}
		if ok && rows > 0 {
			appLog.Debug("dataset unchanged", "dataset", dataset)
			return nil, nil
		}
	}
	return res.Body, nil
}

// Directory builds the in-memory directory from the stored airports and
// logs every code collision.
func (l *Loader) Directory(ctx context.Context) (*airport.Directory, error) {
	return BuildDirectory(ctx, l.store)
}

// BuildDirectory builds the directory from st.
func BuildDirectory(ctx context.Context, st *store.AirportStore) (*airport.Directory, error) {
	records, err := st.Records(ctx)
	if err != nil {
		return nil, err
	}
	dir, collisions := airport.Build(records)
	for _, c := range collisions {
		appLog.Debug("airport code collision, later record wins",
			"code", c.Key, "previous", c.Previous.Canonical, "current", c.Current.Canonical)
	}
	if len(collisions) > 0 {
		appLog.Info("airport directory built with collisions", "records", len(records), "collisions", len(collisions))
	}
	return dir, nil
}
