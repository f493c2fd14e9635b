package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Credentials are the API secrets read from the environment. They never
// live in the settings file.
type Credentials struct {
	SpotifyClientID     string
	SpotifyClientSecret string
	YouTubeAPIKey       string
	YouTubeOAuthToken   string
}

// LoadCredentials reads a .env file when present, then the process
// environment. Values already set in the environment win over the file.
func LoadCredentials(envFiles ...string) Credentials {
	for _, f := range envFiles {
		if f == "" {
			continue
		}
		// Missing files are fine, the environment may carry everything.
		_ = godotenv.Load(f)
	}
	return Credentials{
		SpotifyClientID:     os.Getenv("SPOTIFY_CLIENT_ID"),
		SpotifyClientSecret: os.Getenv("SPOTIFY_CLIENT_SECRET"),
		YouTubeAPIKey:       os.Getenv("YOUTUBE_API_KEY"),
		YouTubeOAuthToken:   os.Getenv("YOUTUBE_OAUTH_TOKEN"),
	}
}

// RequireSpotify errors when the Spotify pair is incomplete.
func (c Credentials) RequireSpotify() error {
	if c.SpotifyClientID == "" || c.SpotifyClientSecret == "" {
		return fmt.Errorf("SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET must be set")
	}
	return nil
}

// RequireYouTubeKey errors when the Data API key is missing.
func (c Credentials) RequireYouTubeKey() error {
	if c.YouTubeAPIKey == "" {
		return fmt.Errorf("YOUTUBE_API_KEY must be set")
	}
	return nil
}

// RequireYouTubeOAuth errors when the playlist-write token is missing.
func (c Credentials) RequireYouTubeOAuth() error {
	if c.YouTubeOAuthToken == "" {
		return fmt.Errorf("YOUTUBE_OAUTH_TOKEN must be set")
	}
	return nil
}
