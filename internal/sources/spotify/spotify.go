// Package spotify implements the playlist provider. It only reads playlist
// metadata: the actual audio always comes from the search provider, one
// query per track.
package spotify

import (
	"context"
	"fmt"
	"strings"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
)

const playlistMarker = "open.spotify.com/playlist/"

type Provider struct {
	clientID     string
	clientSecret string
}

func New(clientID, clientSecret string) *Provider {
	return &Provider{clientID: clientID, clientSecret: clientSecret}
}

// Match reports whether the input is a Spotify playlist link.
func (p *Provider) Match(ref string) bool {
	return strings.Contains(ref, playlistMarker)
}

// Expand returns one search query per playlist track, in playlist order.
// The query shape "<artist> - <title> audio oficial" matches what users get
// when they search the track by hand.
func (p *Provider) Expand(ctx context.Context, ref string) ([]string, error) {
	client, err := p.connect(ctx)
	if err != nil {
		return nil, err
	}

	id, err := playlistID(ref)
	if err != nil {
		return nil, err
	}

	var queries []string
	items, err := client.GetPlaylistItems(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("spotify playlist lookup: %w", err)
	}
	for {
		for _, item := range items.Items {
			t := item.Track.Track
			if t == nil || len(t.Artists) == 0 {
				continue
			}
			queries = append(queries, fmt.Sprintf("%s - %s audio oficial", t.Artists[0].Name, t.Name))
		}
		if err := client.NextPage(ctx, items); err != nil {
			if err == spotify.ErrNoMorePages {
				break
			}
			return nil, err
		}
	}
	return queries, nil
}

// connect builds an API client from app credentials. No user login is
// involved: public playlist reads only need the client-credentials flow.
func (p *Provider) connect(ctx context.Context) (*spotify.Client, error) {
	cfg := &clientcredentials.Config{
		ClientID:     p.clientID,
		ClientSecret: p.clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	token, err := cfg.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("spotify auth: %w", err)
	}
	httpClient := spotifyauth.New().Client(ctx, token)
	return spotify.New(httpClient), nil
}

// playlistID pulls the id out of an open.spotify.com/playlist/<id>?si=... link.
func playlistID(ref string) (spotify.ID, error) {
	idx := strings.Index(ref, playlistMarker)
	if idx < 0 {
		return "", fmt.Errorf("not a spotify playlist link: %s", ref)
	}
	rest := ref[idx+len(playlistMarker):]
	id := strings.Split(strings.Split(rest, "?")[0], "/")[0]
	if id == "" {
		return "", fmt.Errorf("no playlist id in link: %s", ref)
	}
	return spotify.ID(id), nil
}
