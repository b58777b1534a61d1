package cli

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/tessro/riffd/internal/browser"
	"github.com/tessro/riffd/internal/spotify/auth"
)

// Scopes the daemon's API calls need.
var authScopes = []string{
	"user-read-playback-state",
	"user-modify-playback-state",
	"playlist-read-private",
	"playlist-modify-private",
	"playlist-modify-public",
}

var authPort int

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Obtain a Spotify refresh token",
	Long: `Runs the Spotify authorization-code flow through your browser and
prints the refresh token the daemon needs. Register the callback URL
(http://127.0.0.1:<port>/callback, port 8888 by default) as a redirect
URI on the Spotify app first.`,
	RunE: runAuth,
}

func init() {
	authCmd.Flags().IntVar(&authPort, "port", 8888, "local callback port")
	rootCmd.AddCommand(authCmd)
}

type callbackResult struct {
	code  string
	state string
	err   string
}

func runAuth(cmd *cobra.Command, args []string) error {
	if cfg.Spotify.ClientID == "" || cfg.Spotify.ClientSecret == "" {
		return fmt.Errorf("spotify.client_id and spotify.client_secret must be configured first")
	}

	state, err := randomState()
	if err != nil {
		return err
	}

	conf := &oauth2.Config{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		RedirectURL:  fmt.Sprintf("http://127.0.0.1:%d/callback", authPort),
		Scopes:       authScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  auth.SpotifyAuthURL,
			TokenURL: auth.SpotifyTokenURL,
		},
	}

	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", authPort))
	if err != nil {
		return fmt.Errorf("failed to listen on callback port: %w", err)
	}

	results := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		res := callbackResult{
			code:  r.URL.Query().Get("code"),
			state: r.URL.Query().Get("state"),
			err:   r.URL.Query().Get("error"),
		}
		if res.err != "" {
			http.Error(w, "Authorization failed: "+res.err, http.StatusBadRequest)
		} else {
			fmt.Fprintln(w, "Authorized. You can close this tab.")
		}
		select {
		case results <- res:
		default:
		}
	})
	srv := &http.Server{Handler: mux}
	go func() { _ = srv.Serve(listener) }()
	defer func() { _ = srv.Shutdown(context.Background()) }()

	authURL := conf.AuthCodeURL(state)
	fmt.Println("Opening browser for Spotify authorization...")
	if err := browser.Open(authURL); err != nil {
		fmt.Printf("Could not open a browser. Visit this URL:\n\n%s\n\n", authURL)
	}

	fmt.Println("Waiting for authorization...")
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	var res callbackResult
	select {
	case res = <-results:
	case <-ctx.Done():
		return fmt.Errorf("authorization timed out")
	}

	if res.err != "" {
		return fmt.Errorf("authorization failed: %s", res.err)
	}
	if res.state != state {
		return fmt.Errorf("state mismatch in callback")
	}

	token, err := conf.Exchange(ctx, res.code)
	if err != nil {
		return fmt.Errorf("code exchange failed: %w", err)
	}
	if token.RefreshToken == "" {
		return fmt.Errorf("authorization succeeded but no refresh token was returned")
	}

	fmt.Println("Authorization complete.")
	fmt.Println("\nAdd to the [spotify] section of your config:")
	fmt.Printf("\n  refresh_token = %q\n", token.RefreshToken)
	fmt.Println("\nOr set RIFFD_SPOTIFY_REFRESH_TOKEN in the daemon's environment.")
	return nil
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return hex.EncodeToString(b), nil
}
