// Package publish uploads finished videos to distribution platforms. The
// orchestrator only sees Publisher, so simulated and OAuth-backed variants are
// interchangeable per platform.
package publish

import (
	"context"
	"sort"
)

type Request struct {
	UserID      string
	VideoID     string
	Title       string
	Description string
	Tags        []string
	// VideoURL is the playable render output to upload.
	VideoURL string
}

type Receipt struct {
	ExternalID string
	URL        string
}

type Publisher interface {
	Publish(ctx context.Context, req Request) (Receipt, error)
}

// Registry maps platform name to the publisher wired for it.
type Registry map[string]Publisher

func (r Registry) Get(platform string) (Publisher, bool) {
	p, ok := r[platform]
	return p, ok
}

func (r Registry) Platforms() []string {
	out := make([]string, 0, len(r))
	for name := range r {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
