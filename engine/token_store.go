package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jon4hz/photomirror/catalog"
	"golang.org/x/oauth2"
)

const tokenSettingKey = "oauth_token"

// settingsTokenStore persists the OAuth2 token as a JSON blob in the catalog
// settings table, keeping all per-identity state inside the data directory.
type settingsTokenStore struct {
	cat *catalog.Catalog
}

func (s *settingsTokenStore) Token(ctx context.Context) (*oauth2.Token, error) {
	raw, err := s.cat.GetSetting(ctx, tokenSettingKey)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}

	var token oauth2.Token
	if err := json.Unmarshal([]byte(raw), &token); err != nil {
		return nil, fmt.Errorf("failed to decode stored token: %w", err)
	}
	return &token, nil
}

func (s *settingsTokenStore) Save(ctx context.Context, token *oauth2.Token) error {
	raw, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	return s.cat.SetSetting(ctx, tokenSettingKey, string(raw))
}
