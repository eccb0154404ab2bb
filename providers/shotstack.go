package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/Ste11an/facelessflow/credentials"
	"github.com/Ste11an/facelessflow/internal/apperr"
)

const shotstackName = string(credentials.Shotstack)

// Edit is a render request in the Shotstack edit format.
type Edit struct {
	Timeline Timeline `json:"timeline"`
	Output   Output   `json:"output"`
	Callback string   `json:"callback,omitempty"`
}

type Timeline struct {
	Soundtrack *Soundtrack `json:"soundtrack,omitempty"`
	Background string      `json:"background,omitempty"`
	Tracks     []Track     `json:"tracks"`
}

type Soundtrack struct {
	Src    string `json:"src"`
	Effect string `json:"effect,omitempty"`
}

// Track clips are layered; earlier tracks render on top of later ones.
type Track struct {
	Clips []Clip `json:"clips"`
}

type Clip struct {
	Asset      Asset       `json:"asset"`
	Start      float64     `json:"start"`
	Length     float64     `json:"length"`
	Transition *Transition `json:"transition,omitempty"`
	Effect     string      `json:"effect,omitempty"`
	Fit        string      `json:"fit,omitempty"`
}

type Asset struct {
	Type     string   `json:"type"`
	Src      string   `json:"src,omitempty"`
	Text     string   `json:"text,omitempty"`
	Style    string   `json:"style,omitempty"`
	Size     string   `json:"size,omitempty"`
	Position string   `json:"position,omitempty"`
	Volume   *float64 `json:"volume,omitempty"`
}

type Transition struct {
	In  string `json:"in,omitempty"`
	Out string `json:"out,omitempty"`
}

type Output struct {
	Format      string `json:"format"`
	Resolution  string `json:"resolution"`
	AspectRatio string `json:"aspectRatio"`
}

// Shotstack job states. Only done and failed are terminal.
const (
	RenderQueued    = "queued"
	RenderFetching  = "fetching"
	RenderRendering = "rendering"
	RenderSaving    = "saving"
	RenderDone      = "done"
	RenderFailed    = "failed"
)

type RenderState struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	URL    string `json:"url,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (s RenderState) Terminal() bool {
	return s.Status == RenderDone || s.Status == RenderFailed
}

type RenderService interface {
	Submit(ctx context.Context, userID string, edit Edit) (string, error)
	Status(ctx context.Context, userID, jobID string) (RenderState, error)
}

type Shotstack struct {
	Keys    credentials.Lookup
	Client  *http.Client
	BaseURL string
}

func (s *Shotstack) Submit(ctx context.Context, userID string, edit Edit) (string, error) {
	apiKey, err := s.Keys.Key(ctx, userID, credentials.Shotstack)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(edit)
	if err != nil {
		return "", apperr.Transport(shotstackName, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(s.BaseURL, "/")+"/render", bytes.NewReader(payload))
	if err != nil {
		return "", apperr.Transport(shotstackName, err)
	}
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	var out struct {
		Response struct {
			ID string `json:"id"`
		} `json:"response"`
	}
	if err := sendJSON(s.Client, req, shotstackName, &out); err != nil {
		return "", err
	}
	if out.Response.ID == "" {
		return "", apperr.Upstream(shotstackName, http.StatusOK, "render accepted without a job id")
	}
	return out.Response.ID, nil
}

func (s *Shotstack) Status(ctx context.Context, userID, jobID string) (RenderState, error) {
	apiKey, err := s.Keys.Key(ctx, userID, credentials.Shotstack)
	if err != nil {
		return RenderState{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(s.BaseURL, "/")+"/render/"+url.PathEscape(jobID), nil)
	if err != nil {
		return RenderState{}, apperr.Transport(shotstackName, err)
	}
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("Accept", "application/json")

	var out struct {
		Response RenderState `json:"response"`
	}
	if err := sendJSON(s.Client, req, shotstackName, &out); err != nil {
		return RenderState{}, err
	}
	if out.Response.ID == "" {
		out.Response.ID = jobID
	}
	return out.Response, nil
}
