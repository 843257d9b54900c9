// Package bulbstore implements the core's read-only view of the external
// bulb record store: ReadAll() -> []Record, polled periodically by the
// bridge. The admin CRUD surface that owns writes lives entirely outside
// this package.
package bulbstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"wizbridge/internal/bulbmodel"
	"wizbridge/internal/config"
	"wizbridge/internal/logger"
)

// Store is the narrow interface the bridge depends on.
type Store interface {
	ReadAll(ctx context.Context) ([]bulbmodel.Record, error)
}

// wireRecord is the shape decoded from either JSON (HTTP store) or YAML
// (seed file).
type wireRecord struct {
	MAC     string `json:"mac" yaml:"mac"`
	IP      string `json:"ip" yaml:"ip"`
	Name    string `json:"name" yaml:"name"`
	Type    string `json:"type" yaml:"type"`
	Channel int    `json:"channel" yaml:"channel"`
}

func (w wireRecord) toRecord() bulbmodel.Record {
	return bulbmodel.Record{
		MAC:     bulbmodel.CanonicalMAC(w.MAC),
		IP:      w.IP,
		Name:    w.Name,
		Type:    w.Type,
		Channel: w.Channel,
	}
}

func recordsFromWire(wire []wireRecord) []bulbmodel.Record {
	out := make([]bulbmodel.Record, len(wire))
	for i, w := range wire {
		out[i] = w.toRecord()
	}
	return out
}

// HTTPStore polls an external REST record store's read-all endpoint.
type HTTPStore struct {
	baseURL string
	client  *http.Client
}

// NewHTTPStore builds a store against baseURL (e.g. http://localhost:8080),
// bounding every request with timeout.
func NewHTTPStore(baseURL string, timeout time.Duration) *HTTPStore {
	return &HTTPStore{baseURL: baseURL, client: &http.Client{Timeout: timeout}}
}

// ReadAll implements Store by GETting {baseURL}/bulbs.
func (s *HTTPStore) ReadAll(ctx context.Context) ([]bulbmodel.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/bulbs", nil)
	if err != nil {
		return nil, fmt.Errorf("bulbstore: build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bulbstore: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bulbstore: unexpected status %d", resp.StatusCode)
	}

	var wire []wireRecord
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("bulbstore: decode response: %w", err)
	}
	return recordsFromWire(wire), nil
}

// YAMLSeedStore reads a local bootstrap file, used for offline development
// or as the first snapshot before the HTTP store answers.
type YAMLSeedStore struct {
	path string
}

// NewYAMLSeedStore builds a store reading records from path.
func NewYAMLSeedStore(path string) *YAMLSeedStore {
	return &YAMLSeedStore{path: path}
}

// ReadAll implements Store by parsing the YAML file at path.
func (s *YAMLSeedStore) ReadAll(_ context.Context) ([]bulbmodel.Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("bulbstore: read seed %s: %w", s.path, err)
	}
	var wire []wireRecord
	if err := yaml.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("bulbstore: parse seed %s: %w", s.path, err)
	}
	return recordsFromWire(wire), nil
}

// Fallback tries primary first and falls back to seed on error, logging
// the degradation once per failure. It's how the bridge stays runnable
// when the HTTP record store is unreachable at startup.
type Fallback struct {
	primary Store
	seed    Store
	log     *logger.Log
}

// NewFallback builds a store combining primary with a seed fallback.
func NewFallback(primary, seed Store, log *logger.Log) *Fallback {
	return &Fallback{primary: primary, seed: seed, log: log}
}

// ReadAll implements Store.
func (f *Fallback) ReadAll(ctx context.Context) ([]bulbmodel.Record, error) {
	records, err := f.primary.ReadAll(ctx)
	if err == nil {
		return records, nil
	}

	seedRecords, seedErr := f.seed.ReadAll(ctx)
	if seedErr != nil {
		return nil, err
	}
	f.log.With(logger.Fields{"module": "bulbstore"}).Warnf(
		"primary bulb store unreachable (%v), using YAML seed", err)
	return seedRecords, nil
}

// New builds a Store from configuration: an HTTP store, a YAML seed store,
// or a fallback combining both, depending on which fields are set.
func New(cfg config.BulbStoreConf, log *logger.Log) (Store, error) {
	var primary, seed Store
	if cfg.BaseURL != "" {
		primary = NewHTTPStore(cfg.BaseURL, cfg.HTTPTimeout)
	}
	if cfg.SeedPath != "" {
		seed = NewYAMLSeedStore(cfg.SeedPath)
	}

	switch {
	case primary != nil && seed != nil:
		return NewFallback(primary, seed, log), nil
	case primary != nil:
		return primary, nil
	case seed != nil:
		return seed, nil
	default:
		return nil, errors.New("bulbstore: neither base-url nor seed-path configured")
	}
}
