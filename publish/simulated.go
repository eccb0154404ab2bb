package publish

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Ste11an/facelessflow/credentials"
	"github.com/Ste11an/facelessflow/internal/apperr"
)

// Simulated is a stand-in publisher: it checks the platform credential, waits
// Delay and reports a synthetic upload. Nothing leaves the process.
type Simulated struct {
	Platform string
	Keys     credentials.Lookup
	Delay    time.Duration
}

func NewSimulatedYouTube(keys credentials.Lookup, delay time.Duration) *Simulated {
	return &Simulated{Platform: string(credentials.YouTube), Keys: keys, Delay: delay}
}

func NewSimulatedTikTok(keys credentials.Lookup, delay time.Duration) *Simulated {
	return &Simulated{Platform: string(credentials.TikTok), Keys: keys, Delay: delay}
}

func (s *Simulated) Publish(ctx context.Context, req Request) (Receipt, error) {
	if req.VideoURL == "" {
		return Receipt{}, apperr.Precondition("video has no rendered file to publish")
	}
	if _, err := s.Keys.Key(ctx, req.UserID, credentials.Provider(s.Platform)); err != nil {
		return Receipt{}, err
	}

	if s.Delay > 0 {
		timer := time.NewTimer(s.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Receipt{}, apperr.Transport(s.Platform, ctx.Err())
		case <-timer.C:
		}
	}

	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
	switch s.Platform {
	case string(credentials.TikTok):
		id := "TT_" + suffix
		return Receipt{ExternalID: id, URL: "https://tiktok.com/@user/video/" + id}, nil
	case string(credentials.YouTube):
		id := "YT_" + suffix
		return Receipt{ExternalID: id, URL: "https://youtube.com/shorts/" + id}, nil
	}
	return Receipt{}, fmt.Errorf("simulated publisher: unknown platform %q", s.Platform)
}
