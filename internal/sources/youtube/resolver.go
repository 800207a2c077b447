package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"golang.org/x/time/rate"
)

var (
	watchURLPattern = regexp.MustCompile(`/watch\?v=([a-zA-Z0-9_-]{11})`)

	ErrNoVideoMatch = errors.New("no video found for the given title")
)

// searchResolver scrapes the YouTube results page for the first video id
// matching a free-text query. Requests are rate limited so a long playlist
// expansion does not hammer the endpoint.
type searchResolver struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

func newSearchResolver() *searchResolver {
	return &searchResolver{
		baseURL: "https://www.youtube.com",
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Every(300*time.Millisecond), 3),
	}
}

// firstVideoURL returns the watch URL of the first search result.
func (r *searchResolver) firstVideoURL(ctx context.Context, query string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}

	searchURL := fmt.Sprintf("%s/results?search_query=%s", r.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("YouTube search failed with status code %v", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	matches := watchURLPattern.FindStringSubmatch(string(body))
	if len(matches) < 2 {
		return "", ErrNoVideoMatch
	}
	return fmt.Sprintf("%s/watch?v=%s", r.baseURL, matches[1]), nil
}
