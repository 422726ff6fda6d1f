package api

import (
	"context"
	"net/http"
)

// Get retrieves the authenticated user's profile.
func (s ProfileService) Get(ctx context.Context) (*Profile, error) {
	var profile Profile
	if err := s.do(ctx, http.MethodGet, s.apiPath("/users/me"), nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}
