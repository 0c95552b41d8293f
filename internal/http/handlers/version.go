package handlers

import (
	"context"
)

// VersionInput is the input for the version endpoint.
type VersionInput struct{}

// VersionOutput is the output for the version endpoint.
type VersionOutput struct {
	Body struct {
		Version   string `json:"version" doc:"Daemon version"`
		Commit    string `json:"commit" doc:"Git commit the daemon was built from"`
		BuildDate string `json:"build_date" doc:"Build timestamp"`
	}
}

// VersionCheck returns a handler reporting the daemon's build information.
// This is a public endpoint (no auth required).
func VersionCheck(version, commit, buildDate string) func(context.Context, *VersionInput) (*VersionOutput, error) {
	return func(_ context.Context, _ *VersionInput) (*VersionOutput, error) {
		out := &VersionOutput{}
		out.Body.Version = version
		out.Body.Commit = commit
		out.Body.BuildDate = buildDate
		return out, nil
	}
}
