package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/Ste11an/facelessflow/credentials"
	"github.com/Ste11an/facelessflow/internal/apperr"
)

const youTubeName = string(credentials.YouTube)

// YouTube uploads through the Data API on behalf of the user. The credential
// store holds the refresh token granted by the connect flow.
type YouTube struct {
	OAuth   *oauth2.Config
	Keys    credentials.Lookup
	Privacy string
	// Download fetches the rendered file before upload.
	Download *http.Client
}

// NewYouTubeOAuthConfig is shared by the publisher and the connect handlers.
func NewYouTubeOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       []string{youtube.YoutubeUploadScope, youtube.YoutubeReadonlyScope},
	}
}

func (y *YouTube) Publish(ctx context.Context, req Request) (Receipt, error) {
	if req.VideoURL == "" {
		return Receipt{}, apperr.Precondition("video has no rendered file to publish")
	}
	if y.OAuth == nil || y.OAuth.ClientID == "" {
		return Receipt{}, apperr.Precondition("YouTube publishing is not configured")
	}
	refreshToken, err := y.Keys.Key(ctx, req.UserID, credentials.YouTube)
	if err != nil {
		return Receipt{}, err
	}

	token := &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       time.Now().Add(-time.Hour), // force refresh
	}
	client := y.OAuth.Client(ctx, token)
	svc, err := youtube.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return Receipt{}, fmt.Errorf("youtube service: %w", err)
	}

	media, err := y.open(ctx, req.VideoURL)
	if err != nil {
		return Receipt{}, err
	}
	defer media.Close()

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       truncate(req.Title, 100),
			Description: shortsDescription(req.Description, req.Tags),
			Tags:        req.Tags,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           y.privacy(),
			SelfDeclaredMadeForKids: false,
		},
	}
	uploaded, err := svc.Videos.Insert([]string{"snippet", "status"}, video).Media(media).Context(ctx).Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			return Receipt{}, apperr.Upstream(youTubeName, gerr.Code, gerr.Message)
		}
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			return Receipt{}, apperr.Upstream(youTubeName, rerr.Response.StatusCode, "YouTube authorization expired, reconnect the channel")
		}
		return Receipt{}, apperr.Transport(youTubeName, err)
	}
	return Receipt{ExternalID: uploaded.Id, URL: "https://youtube.com/shorts/" + uploaded.Id}, nil
}

func (y *YouTube) open(ctx context.Context, videoURL string) (io.ReadCloser, error) {
	client := y.Download
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Minute}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return nil, apperr.Validation("invalid video url")
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, apperr.Transport("render download", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, apperr.Upstream("render download", resp.StatusCode, "")
	}
	return resp.Body, nil
}

func (y *YouTube) privacy() string {
	switch y.Privacy {
	case "public", "unlisted", "private":
		return y.Privacy
	}
	return "private"
}

func shortsDescription(desc string, tags []string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(desc))
	hashtags := []string{"#Shorts"}
	for _, t := range tags {
		t = strings.ReplaceAll(strings.TrimSpace(strings.TrimPrefix(t, "#")), " ", "")
		if t != "" && !strings.EqualFold(t, "shorts") {
			hashtags = append(hashtags, "#"+t)
		}
	}
	if b.Len() > 0 {
		b.WriteString("\n\n")
	}
	b.WriteString(strings.Join(hashtags, " "))
	return truncate(b.String(), 5000)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
