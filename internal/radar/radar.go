// Package radar resolves Chinese weather-radar stations to their latest
// image. The nmc.cn station directory is scraped once, persisted to a JSON
// file, and station names resolve exact-first with a fuzzy fallback.
package radar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/antzucaro/matchr"
	"github.com/go-resty/resty/v2"

	"github.com/35000ft/next-train-bot/internal/config"
	"github.com/35000ft/next-train-bot/internal/restyutil"
	"github.com/35000ft/next-train-bot/pkg/logger"
)

const (
	// seedPath is any station page; it carries the full province list.
	seedPath = "/publish/radar/bei-jing/da-xing.htm"
	// regionPath lists the nationwide composite images.
	regionPath = "/publish/radar/chinaall.html"
)

// Directory maps station/city names to their page URLs, plus the
// province-to-city index for browsing.
type Directory struct {
	CityURL      map[string]string   `json:"city_url"`
	ProvinceCity map[string][]string `json:"province_city"`
}

// Service answers radar-image lookups.
type Service struct {
	http        *resty.Client
	log         *logger.Logger
	baseURL     string
	stationFile string

	mu        sync.Mutex
	directory *Directory
}

// NewService creates a radar service from the radar configuration.
func NewService(cfg config.RadarConfig, log *logger.Logger) *Service {
	return &Service{
		http:        restyutil.NewClient(time.Duration(cfg.TimeoutSeconds) * time.Second),
		log:         log.Named("radar"),
		baseURL:     cfg.BaseURL,
		stationFile: cfg.StationFile,
	}
}

// ImageURL resolves a station name to its current radar image URL.
func (s *Service) ImageURL(ctx context.Context, station string) (string, error) {
	pageURL, err := s.StationURL(ctx, station)
	if err != nil {
		return "", err
	}

	resp, err := s.http.R().SetContext(ctx).Get(pageURL)
	if err != nil {
		return "", fmt.Errorf("request station page: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode())
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return "", fmt.Errorf("parse station page: %w", err)
	}

	src, ok := doc.Find("img#imgpath").Attr("src")
	if !ok || src == "" {
		return "", fmt.Errorf("no radar image on station page %s", pageURL)
	}
	return src, nil
}

// StationURL resolves a station name to its page URL. An exact directory hit
// wins; otherwise the best fuzzy match among names containing the query.
func (s *Service) StationURL(ctx context.Context, station string) (string, error) {
	station = strings.TrimSpace(station)
	dir, err := s.stations(ctx)
	if err != nil {
		return "", err
	}
	if u, ok := dir.CityURL[station]; ok {
		return u, nil
	}

	best, bestScore := "", 0.0
	for name := range dir.CityURL {
		if !strings.Contains(name, station) && !strings.Contains(station, name) {
			continue
		}
		if score := matchr.JaroWinkler(name, station, false); score > bestScore {
			best, bestScore = name, score
		}
	}
	if best == "" {
		return "", fmt.Errorf("no radar station named %s", station)
	}
	s.log.Debug("fuzzy station match",
		logger.String("query", station), logger.String("matched", best))
	return dir.CityURL[best], nil
}

// Provinces returns the province-to-city index.
func (s *Service) Provinces(ctx context.Context) (map[string][]string, error) {
	dir, err := s.stations(ctx)
	if err != nil {
		return nil, err
	}
	return dir.ProvinceCity, nil
}

// stations returns the directory, loading it from the station file or
// scraping it on first use. The lock makes initialization single-flight.
func (s *Service) stations(ctx context.Context) (*Directory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.directory != nil {
		return s.directory, nil
	}

	if data, err := os.ReadFile(s.stationFile); err == nil {
		var dir Directory
		if err := json.Unmarshal(data, &dir); err == nil && len(dir.CityURL) > 0 {
			s.directory = &dir
			return s.directory, nil
		}
		s.log.Warn("station file unreadable, rebuilding", logger.String("path", s.stationFile))
	}

	dir, err := s.scrapeDirectory(ctx)
	if err != nil {
		return nil, err
	}
	s.directory = dir
	s.persist(dir)
	return dir, nil
}

func (s *Service) persist(dir *Directory) {
	data, err := json.Marshal(dir)
	if err != nil {
		s.log.Warn("station directory marshal failed", logger.Error(err))
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.stationFile), 0o755); err != nil {
		s.log.Warn("station dir unavailable", logger.Error(err))
		return
	}
	if err := os.WriteFile(s.stationFile, data, 0o644); err != nil {
		s.log.Warn("station file write failed", logger.Error(err))
	}
}

// scrapeDirectory walks the nmc.cn radar pages: the seed page lists the
// provinces, each province page lists its stations, and the nationwide page
// lists the regional composites.
func (s *Service) scrapeDirectory(ctx context.Context) (*Directory, error) {
	s.log.Info("initializing radar station directory")
	dir := &Directory{
		CityURL:      make(map[string]string),
		ProvinceCity: make(map[string][]string),
	}

	seed, err := s.fetchDoc(ctx, s.baseURL+seedPath)
	if err != nil {
		return nil, fmt.Errorf("load seed station page: %w", err)
	}
	var provinceURLs []string
	s.followingLinks(seed, "省份/市").Each(func(_ int, a *goquery.Selection) {
		if href, ok := a.Attr("href"); ok {
			provinceURLs = append(provinceURLs, href)
		}
	})

	regions, err := s.fetchDoc(ctx, s.baseURL+regionPath)
	if err != nil {
		return nil, fmt.Errorf("load region page: %w", err)
	}
	s.followingLinks(regions, "区域").Each(func(_ int, a *goquery.Selection) {
		name := strings.TrimSpace(a.Text())
		href, _ := a.Attr("href")
		if name != "" && href != "" {
			dir.CityURL[name] = s.absolute(href)
		}
	})

	for _, pu := range provinceURLs {
		if err := s.scrapeProvince(ctx, s.absolute(pu), dir); err != nil {
			return nil, err
		}
	}
	return dir, nil
}

func (s *Service) scrapeProvince(ctx context.Context, pageURL string, dir *Directory) error {
	doc, err := s.fetchDoc(ctx, pageURL)
	if err != nil {
		return fmt.Errorf("load province page %s: %w", pageURL, err)
	}

	province := strings.TrimSpace(s.followingLinks(doc, "省份/市").Filter("a.actived").Text())
	var cities []string
	s.followingLinks(doc, "城市/地区").Each(func(_ int, a *goquery.Selection) {
		name := strings.TrimSpace(a.Text())
		href, _ := a.Attr("href")
		if name == "" || href == "" {
			return
		}
		cities = append(cities, name)
		dir.CityURL[name] = s.absolute(href)
	})
	if province != "" {
		dir.ProvinceCity[province] = cities
	}
	return nil
}

// followingLinks finds the link list that follows the labelled panel header.
func (s *Service) followingLinks(doc *goquery.Document, label string) *goquery.Selection {
	var links *goquery.Selection
	doc.Find("div").EachWithBreak(func(_ int, div *goquery.Selection) bool {
		if !strings.Contains(div.Text(), label) {
			return true
		}
		if sel := div.Next().Find("li a"); sel.Length() > 0 {
			links = sel
			return false
		}
		return true
	})
	if links == nil {
		return doc.Find("nothing")
	}
	return links
}

func (s *Service) fetchDoc(ctx context.Context, pageURL string) (*goquery.Document, error) {
	resp, err := s.http.R().SetContext(ctx).Get(pageURL)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode())
	}
	return goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
}

func (s *Service) absolute(href string) string {
	base, err := url.Parse(s.baseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
