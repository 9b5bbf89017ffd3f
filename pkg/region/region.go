package region

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/je4/utils/v2/pkg/zLogger"
)

// Info describes the resolved service region. It is created once per view
// initialization and not mutated afterwards.
type Info struct {
	CountryCode      string `json:"countryCode"`
	IsSupported      bool   `json:"isSupported"`
	ResolvedEndpoint string `json:"resolvedEndpoint"`
	Message          string `json:"message"`
}

// provider is one external IP geolocation endpoint. Every provider reports
// the two-letter country code under its own key.
type provider struct {
	name string
	url  string
	key  string
}

var defaultProviders = []provider{
	{name: "ip-api", url: "http://ip-api.com/json", key: "countryCode"},
	{name: "ipapi.co", url: "https://ipapi.co/json/", key: "country_code"},
	{name: "geojs", url: "https://get.geojs.io/v1/ip/country.json", key: "country"},
}

// markets the service operates in
var supportedCountries = []string{
	"US", "CA", "MX", "BR", "GB", "IE", "DE", "AT", "CH", "FR", "BE", "NL",
	"LU", "IT", "ES", "PT", "DK", "SE", "NO", "FI", "PL", "CZ", "AU", "NZ",
	"JP",
}

const fallbackCountry = "US"

type Resolver struct {
	providers []provider
	client    *http.Client
	timeout   time.Duration
	template  string
	logger    zLogger.ZLogger
}

// NewResolver creates a resolver interpolating lowercased country codes into
// the endpoint template (e.g. "https://music.example.com/%s/").
func NewResolver(template string, logger zLogger.ZLogger) *Resolver {
	return &Resolver{
		providers: defaultProviders,
		client:    &http.Client{},
		timeout:   4 * time.Second,
		template:  template,
		logger:    logger,
	}
}

// Detect walks the provider chain in order and resolves the first reported
// country code. It never fails: when every provider errors out the resolver
// assumes the fallback market.
func (resolver *Resolver) Detect(ctx context.Context) *Info {
	for _, prov := range resolver.providers {
		code, err := resolver.query(ctx, prov)
		if err != nil {
			resolver.logger.Info().Err(err).Msgf("region provider %s failed", prov.name)
			continue
		}
		info := resolver.resolve(code, prov.name)
		resolver.logger.Info().Msgf("region: %s", info.Message)
		return info
	}
	resolver.logger.Info().Msgf("all region providers failed, assuming %s", fallbackCountry)
	return &Info{
		CountryCode:      fallbackCountry,
		IsSupported:      true,
		ResolvedEndpoint: resolver.endpoint(fallbackCountry),
		Message:          fmt.Sprintf("all providers failed, assuming %s", fallbackCountry),
	}
}

func (resolver *Resolver) resolve(code string, source string) *Info {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 2 {
		return &Info{
			CountryCode:      fallbackCountry,
			IsSupported:      false,
			ResolvedEndpoint: resolver.endpoint(fallbackCountry),
			Message:          fmt.Sprintf("invalid country code %q from %s, using %s endpoint", code, source, fallbackCountry),
		}
	}
	if !slices.Contains(supportedCountries, code) {
		return &Info{
			CountryCode:      code,
			IsSupported:      false,
			ResolvedEndpoint: resolver.endpoint(fallbackCountry),
			Message:          fmt.Sprintf("%s is not supported, using %s endpoint", code, fallbackCountry),
		}
	}
	return &Info{
		CountryCode:      code,
		IsSupported:      true,
		ResolvedEndpoint: resolver.endpoint(code),
		Message:          fmt.Sprintf("resolved %s via %s", code, source),
	}
}

func (resolver *Resolver) endpoint(code string) string {
	return fmt.Sprintf(resolver.template, strings.ToLower(code))
}

func (resolver *Resolver) query(ctx context.Context, prov provider) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, resolver.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, prov.url, nil)
	if err != nil {
		return "", errors.Wrapf(err, "cannot create request for %s", prov.url)
	}
	resp, err := resolver.client.Do(req)
	if err != nil {
		return "", errors.Wrapf(err, "cannot query %s", prov.url)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("%s returned status %d", prov.url, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", errors.Wrapf(err, "cannot read response from %s", prov.url)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return "", errors.Wrapf(err, "cannot parse response from %s", prov.url)
	}
	code, ok := fields[prov.key].(string)
	if !ok || code == "" {
		return "", errors.Errorf("no %s field in response from %s", prov.key, prov.url)
	}
	return code, nil
}
