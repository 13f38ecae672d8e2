package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	config "github.com/maheshrc27/packflow/configs"
	"github.com/maheshrc27/packflow/internal/transfer"
)

var (
	ErrSubtitleAuth    = errors.New("subtitle provider authentication failed")
	ErrSubtitleNetwork = errors.New("subtitle provider unreachable")
	ErrDownloadLimit   = errors.New("subtitle download limit reached")
)

type SubtitleResult struct {
	FileID    int64
	FileName  string
	Language  string
	Title     string
	Season    int
	Episode   int
	Downloads int
}

func (r SubtitleResult) Label() string {
	label := fmt.Sprintf("(%s) %s", r.Language, r.Title)
	if r.Season > 0 {
		label += fmt.Sprintf(" S%02d", r.Season)
	}
	if r.Episode > 0 {
		label += fmt.Sprintf("E%02d", r.Episode)
	}
	return label
}

// SubtitleArchiver keeps a copy of downloaded subtitles.
type SubtitleArchiver interface {
	ArchiveSubtitle(ctx context.Context, name string, data []byte) error
}

type SubtitleService interface {
	Search(ctx context.Context, query string) ([]SubtitleResult, error)
	RequestDownloadLink(ctx context.Context, fileID int64) (string, error)
	Fetch(ctx context.Context, link string) ([]byte, error)
	Download(ctx context.Context, fileID int64) ([]byte, error)
}

type subtitleService struct {
	cfg      config.OpenSubtitles
	client   *http.Client
	archiver SubtitleArchiver

	mu    sync.Mutex
	token string
}

func NewSubtitleService(cfg config.OpenSubtitles, client *http.Client, archiver SubtitleArchiver) SubtitleService {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &subtitleService{
		cfg:      cfg,
		client:   client,
		archiver: archiver,
	}
}

// Search returns matches ordered by popularity.
func (s *subtitleService) Search(ctx context.Context, query string) ([]SubtitleResult, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("languages", s.cfg.Language)

	var resp transfer.OpenSubtitlesSearchResponse
	if err := s.call(ctx, http.MethodGet, "/subtitles?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	results := make([]SubtitleResult, 0, len(resp.Data))
	for _, d := range resp.Data {
		attrs := d.Attributes
		if len(attrs.Files) == 0 {
			continue
		}
		title := attrs.FeatureDetails.MovieName
		if title == "" {
			title = attrs.FeatureDetails.Title
		}
		results = append(results, SubtitleResult{
			FileID:    attrs.Files[0].FileID,
			FileName:  attrs.Files[0].FileName,
			Language:  attrs.Language,
			Title:     title,
			Season:    attrs.FeatureDetails.SeasonNumber,
			Episode:   attrs.FeatureDetails.EpisodeNumber,
			Downloads: attrs.DownloadCount,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Downloads > results[j].Downloads
	})
	return results, nil
}

func (s *subtitleService) RequestDownloadLink(ctx context.Context, fileID int64) (string, error) {
	var resp transfer.OpenSubtitlesDownloadResponse
	err := s.call(ctx, http.MethodPost, "/download", transfer.OpenSubtitlesDownloadRequest{FileID: fileID}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Link == "" {
		if strings.Contains(strings.ToLower(resp.Message), "download count") {
			return "", ErrDownloadLimit
		}
		return "", fmt.Errorf("no download link returned: %s", resp.Message)
	}
	return resp.Link, nil
}

func (s *subtitleService) Fetch(ctx context.Context, link string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.cfg.AppName)

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("%w: %v", ErrSubtitleNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch subtitle: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// Download resolves a link, fetches the file and archives it when an archiver is configured.
func (s *subtitleService) Download(ctx context.Context, fileID int64) ([]byte, error) {
	link, err := s.RequestDownloadLink(ctx, fileID)
	if err != nil {
		return nil, err
	}
	data, err := s.Fetch(ctx, link)
	if err != nil {
		return nil, err
	}

	if s.archiver != nil {
		name := fmt.Sprintf("%d.srt", fileID)
		if err := s.archiver.ArchiveSubtitle(ctx, name, data); err != nil {
			slog.Warn("archive subtitle", "file_id", fileID, "error", err)
		}
	}
	return data, nil
}

// call performs an authenticated request. A 401 clears the cached token and
// the request is repeated once with a fresh login.
func (s *subtitleService) call(ctx context.Context, method, path string, body, out any) error {
	for attempt := 0; attempt < 2; attempt++ {
		token, err := s.authToken(ctx)
		if err != nil {
			return err
		}

		status, data, err := s.do(ctx, method, path, token, body)
		if err != nil {
			return err
		}
		switch {
		case status == http.StatusUnauthorized:
			slog.Info("subtitle token rejected, logging in again")
			s.resetToken(token)
			continue
		case status >= 400:
			slog.Warn("subtitle provider error", "path", path, "status", status, "body", string(data))
			if strings.Contains(strings.ToLower(string(data)), "download count") {
				return ErrDownloadLimit
			}
			return fmt.Errorf("subtitle provider returned status %d", status)
		}

		if out != nil {
			if err := json.Unmarshal(data, out); err != nil {
				return fmt.Errorf("decode subtitle response: %w", err)
			}
		}
		return nil
	}
	return ErrSubtitleAuth
}

func (s *subtitleService) do(ctx context.Context, method, path, token string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(s.cfg.BaseURL, "/")+path, reader)
	if err != nil {
		return 0, nil, err
	}
	s.setHeaders(req)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return 0, nil, fmt.Errorf("%w: %v", ErrSubtitleNetwork, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrSubtitleNetwork, err)
	}
	return resp.StatusCode, data, nil
}

func (s *subtitleService) setHeaders(req *http.Request) {
	req.Header.Set("Api-Key", s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", s.cfg.AppName)
}

func (s *subtitleService) authToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" {
		return s.token, nil
	}
	if s.cfg.APIKey == "" {
		return "", fmt.Errorf("%w: api key not configured", ErrSubtitleAuth)
	}

	creds := transfer.OpenSubtitlesLogin{Username: s.cfg.Username, Password: s.cfg.Password}
	status, data, err := s.do(ctx, http.MethodPost, "/login", "", creds)
	if err != nil {
		return "", err
	}
	var tok transfer.OpenSubtitlesToken
	if status >= 400 || json.Unmarshal(data, &tok) != nil || tok.Token == "" {
		return "", fmt.Errorf("%w: login status %d", ErrSubtitleAuth, status)
	}

	s.token = tok.Token
	return s.token, nil
}

func (s *subtitleService) resetToken(stale string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == stale {
		s.token = ""
	}
}
