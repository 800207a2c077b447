// Package youtube implements the search provider: free text or a direct
// link in, one playable track out.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	ytclient "github.com/kkdai/youtube/v2"

	"tocadiscos/internal/track"
)

type Source struct {
	resolver *searchResolver
	client   *ytclient.Client
}

func New() *Source {
	return &Source{
		resolver: newSearchResolver(),
		client: &ytclient.Client{
			HTTPClient: &http.Client{Timeout: 15 * time.Second},
		},
	}
}

// Resolve turns a query into a playable track. Direct youtube.com/watch and
// youtu.be links skip the search step.
func (s *Source) Resolve(ctx context.Context, query string) (track.Track, error) {
	query = strings.TrimSpace(query)

	watchURL := query
	if !isVideoURL(query) {
		var err error
		watchURL, err = s.resolver.firstVideoURL(ctx, query)
		if err != nil {
			return track.Track{}, fmt.Errorf("youtube search: %w", err)
		}
	}

	videoID, err := extractVideoID(watchURL)
	if err != nil {
		return track.Track{}, err
	}

	video, err := s.client.GetVideoContext(ctx, videoID)
	if err != nil {
		return track.Track{}, fmt.Errorf("youtube metadata: %w", err)
	}

	formats := video.Formats.WithAudioChannels()
	if len(formats) == 0 {
		return track.Track{}, errors.New("no audio formats found for video")
	}
	streamURL, err := s.client.GetStreamURLContext(ctx, video, &formats[0])
	if err != nil {
		return track.Track{}, fmt.Errorf("youtube stream URL: %w", err)
	}

	thumbnail := ""
	if len(video.Thumbnails) > 0 {
		thumbnail = video.Thumbnails[len(video.Thumbnails)-1].URL
	}

	return track.Track{
		Title:     video.Title,
		Duration:  int(video.Duration.Seconds()),
		StreamURL: streamURL,
		SourceURL: "https://www.youtube.com/watch?v=" + videoID,
		Thumbnail: thumbnail,
	}, nil
}

func isVideoURL(input string) bool {
	return strings.Contains(input, "youtube.com/watch?v=") || strings.Contains(input, "youtu.be/")
}

func extractVideoID(url string) (string, error) {
	switch {
	case strings.Contains(url, "youtu.be/"):
		parts := strings.Split(url, "youtu.be/")
		if len(parts) != 2 {
			return "", errors.New("invalid YouTube URL format")
		}
		return strings.Split(parts[1], "?")[0], nil

	case strings.Contains(url, "youtube.com/watch?v="):
		parts := strings.Split(url, "v=")
		if len(parts) != 2 {
			return "", errors.New("invalid YouTube URL format")
		}
		return strings.Split(parts[1], "&")[0], nil

	default:
		return "", errors.New("unsupported URL format")
	}
}
