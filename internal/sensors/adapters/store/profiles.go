package store

import (
	"context"
	"errors"
	"strings"

	"hydro-dashboard/internal/auth"
)

// DefaultUsersPath is the node holding user profiles.
const DefaultUsersPath = "users"

// Profiles stores user profiles under users/<uid>.
type Profiles struct {
	client Patcher
	path   string
}

// NewProfiles constructs a profile store on path (DefaultUsersPath when empty).
func NewProfiles(client Patcher, path string) (*Profiles, error) {
	if client == nil {
		return nil, errors.New("profile store: nil client")
	}
	if path == "" {
		path = DefaultUsersPath
	}
	return &Profiles{client: client, path: strings.Trim(path, "/")}, nil
}

// SaveProfile merges the profile into users/<uid>.
func (p *Profiles) SaveProfile(ctx context.Context, uid string, profile auth.Profile) error {
	if uid == "" || strings.ContainsAny(uid, "/.#$[]") {
		return errors.New("profile store: invalid uid")
	}
	return p.client.Patch(ctx, p.path+"/"+uid, profile)
}
