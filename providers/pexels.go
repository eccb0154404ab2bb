package providers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Ste11an/facelessflow/credentials"
	"github.com/Ste11an/facelessflow/internal/apperr"
)

const pexelsName = string(credentials.Pexels)

type MediaType string

const (
	MediaPhoto MediaType = "photo"
	MediaVideo MediaType = "video"
)

type MediaAsset struct {
	ID         int64     `json:"id"`
	Type       MediaType `json:"type"`
	URL        string    `json:"url"`
	PreviewURL string    `json:"preview_url"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Duration   int       `json:"duration,omitempty"`
	Author     string    `json:"author,omitempty"`
}

type MediaSearcher interface {
	Search(ctx context.Context, userID, query string, mediaType MediaType, perPage int) ([]MediaAsset, error)
}

type Pexels struct {
	Keys    credentials.Lookup
	Client  *http.Client
	BaseURL string
	PerPage int
}

type pexelsPhoto struct {
	ID           int64  `json:"id"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Photographer string `json:"photographer"`
	Src          struct {
		Original string `json:"original"`
		Large2x  string `json:"large2x"`
		Portrait string `json:"portrait"`
		Medium   string `json:"medium"`
	} `json:"src"`
}

type pexelsVideo struct {
	ID       int64  `json:"id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Duration int    `json:"duration"`
	Image    string `json:"image"`
	User     struct {
		Name string `json:"name"`
	} `json:"user"`
	VideoFiles []struct {
		Link     string `json:"link"`
		Quality  string `json:"quality"`
		FileType string `json:"file_type"`
		Width    int    `json:"width"`
		Height   int    `json:"height"`
	} `json:"video_files"`
}

func (p *Pexels) Search(ctx context.Context, userID, query string, mediaType MediaType, perPage int) ([]MediaAsset, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.Validation("search query is required")
	}
	if mediaType == "" {
		mediaType = MediaPhoto
	}
	if mediaType != MediaPhoto && mediaType != MediaVideo {
		return nil, apperr.Validation("unknown media type %q", mediaType)
	}
	if perPage <= 0 || perPage > 80 {
		perPage = p.PerPage
	}
	apiKey, err := p.Keys.Key(ctx, userID, credentials.Pexels)
	if err != nil {
		return nil, err
	}

	path := "/v1/search"
	if mediaType == MediaVideo {
		path = "/videos/search"
	}
	q := url.Values{}
	q.Set("query", query)
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("orientation", "portrait")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(p.BaseURL, "/")+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, apperr.Transport(pexelsName, err)
	}
	req.Header.Set("Authorization", apiKey)

	if mediaType == MediaVideo {
		var out struct {
			Videos []pexelsVideo `json:"videos"`
		}
		if err := sendJSON(p.Client, req, pexelsName, &out); err != nil {
			return nil, err
		}
		assets := make([]MediaAsset, 0, len(out.Videos))
		for _, v := range out.Videos {
			link := bestVideoFile(v)
			if link == "" {
				continue
			}
			assets = append(assets, MediaAsset{
				ID: v.ID, Type: MediaVideo, URL: link, PreviewURL: v.Image,
				Width: v.Width, Height: v.Height, Duration: v.Duration, Author: v.User.Name,
			})
		}
		return assets, nil
	}

	var out struct {
		Photos []pexelsPhoto `json:"photos"`
	}
	if err := sendJSON(p.Client, req, pexelsName, &out); err != nil {
		return nil, err
	}
	assets := make([]MediaAsset, 0, len(out.Photos))
	for _, ph := range out.Photos {
		src := ph.Src.Portrait
		if src == "" {
			src = ph.Src.Original
		}
		assets = append(assets, MediaAsset{
			ID: ph.ID, Type: MediaPhoto, URL: src, PreviewURL: ph.Src.Medium,
			Width: ph.Width, Height: ph.Height, Author: ph.Photographer,
		})
	}
	return assets, nil
}

// bestVideoFile prefers an hd portrait mp4, then any mp4, then whatever is listed first.
func bestVideoFile(v pexelsVideo) string {
	best, bestScore := "", -1
	for _, f := range v.VideoFiles {
		if f.Link == "" {
			continue
		}
		score := 0
		if f.FileType == "video/mp4" {
			score += 1
		}
		if f.Quality == "hd" {
			score += 2
		}
		if f.Height >= f.Width {
			score += 4
		}
		if score > bestScore {
			best, bestScore = f.Link, score
		}
	}
	return best
}
