package nostrnet

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mmcloughlin/geohash"
)

// relayEntry holds the parsed information for a single relay from the CSV file.
type relayEntry struct {
	Host string
	Lat  float64
	Lon  float64
}

const (
	cacheFileName = "georelays_cache.csv"
	remoteURL     = "https://raw.githubusercontent.com/permissionlesstech/georelays/refs/heads/main/nostr_relays.csv"
	cacheTTL      = 24 * time.Hour
)

// geoRelays resolves geohash chats to nearby relays from a published CSV,
// cached on disk for a day.
type geoRelays struct {
	cachePath string
	remoteURL string
	client    *http.Client
	ttl       time.Duration
}

func newGeoRelays(cacheDir string) *geoRelays {
	if cacheDir == "" {
		cacheDir = os.TempDir()
	}
	return &geoRelays{
		cachePath: filepath.Join(cacheDir, cacheFileName),
		remoteURL: remoteURL,
		client:    &http.Client{Timeout: 15 * time.Second},
		ttl:       cacheTTL,
	}
}

// haversine calculates the great-circle distance in kilometers between two points on the Earth.
func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const (
		radius = 6371.0
		deg    = math.Pi / 180
	)
	dLat := (lat2 - lat1) * deg
	dLon := (lon2 - lon1) * deg
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*deg)*math.Cos(lat2*deg)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * radius * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// load returns the relay list, downloading it when the cache is missing or stale.
// A stale cache is still used when the download fails.
func (g *geoRelays) load(ctx context.Context) ([]relayEntry, error) {
	if info, err := os.Stat(g.cachePath); err == nil && time.Since(info.ModTime()) < g.ttl {
		return parseCSV(g.cachePath)
	}

	if err := g.fetch(ctx); err != nil {
		if relays, err2 := parseCSV(g.cachePath); err2 == nil {
			return relays, nil
		}
		return nil, err
	}
	return parseCSV(g.cachePath)
}

func (g *geoRelays) fetch(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.remoteURL, nil)
	if err != nil {
		return err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to fetch relays: %s", resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(g.cachePath), 0755); err != nil {
		return err
	}
	tmpPath := g.cachePath + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, g.cachePath)
}

// parseCSV opens and parses the CSV file at the given path.
func parseCSV(path string) ([]relayEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	lines, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	var relays []relayEntry
	for i, line := range lines {
		if len(line) < 3 {
			continue
		}
		if i == 0 && strings.Contains(strings.ToLower(line[0]), "relay") {
			continue
		}
		lat, err1 := strconv.ParseFloat(strings.TrimSpace(line[1]), 64)
		lon, err2 := strconv.ParseFloat(strings.TrimSpace(line[2]), 64)
		if err1 != nil || err2 != nil {
			continue
		}
		host := strings.TrimSpace(line[0])
		host = strings.TrimPrefix(host, "wss://")
		host = strings.TrimPrefix(host, "ws://")
		host = strings.TrimRight(host, "/")
		if host == "" {
			continue
		}
		relays = append(relays, relayEntry{Host: host, Lat: lat, Lon: lon})
	}
	return relays, nil
}

// closest finds the count relays nearest to the center of a geohash.
func (g *geoRelays) closest(ctx context.Context, geohashStr string, count int) ([]string, error) {
	relays, err := g.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not load geo-relays: %w", err)
	}
	lat, lon := geohash.DecodeCenter(geohashStr)

	type relayWithDistance struct {
		url      string
		distance float64
	}

	pairs := make([]relayWithDistance, len(relays))
	for i, r := range relays {
		pairs[i] = relayWithDistance{url: "wss://" + r.Host, distance: haversine(lat, lon, r.Lat, r.Lon)}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].distance < pairs[j].distance
	})

	count = min(count, len(pairs))
	result := make([]string, count)
	for i := range count {
		result[i] = pairs[i].url
	}
	return result, nil
}
