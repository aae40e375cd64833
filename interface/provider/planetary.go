package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/airbusgeo/s2-truecolor/service"
	"github.com/airbusgeo/s2-truecolor/service/log"
)

const (
	PlanetaryComputerTokenURL = "https://planetarycomputer.microsoft.com/api/sas/v1/token"
	blobHostSuffix            = ".blob.core.windows.net"
	// A token is renewed if it expires in less than tokenMargin
	tokenMargin = 5 * time.Minute
)

type sasToken struct {
	Token  string    `json:"token"`
	Expiry time.Time `json:"msft:expiry"`
}

// PlanetaryComputerSigner signs the Azure blob hrefs of the Planetary Computer with SAS tokens
type PlanetaryComputerSigner struct {
	TokenURL string
	// SubscriptionKey is optional (higher rate limits)
	SubscriptionKey string
	client          *http.Client
	tokens          *expirable.LRU[string, sasToken]
}

// NewPlanetaryComputerSigner creates a signer caching the tokens of each storage container for at most ttl
func NewPlanetaryComputerSigner(subscriptionKey string, timeout, ttl time.Duration) *PlanetaryComputerSigner {
	return &PlanetaryComputerSigner{
		TokenURL:        PlanetaryComputerTokenURL,
		SubscriptionKey: subscriptionKey,
		client:          service.NewHTTPClient(timeout),
		tokens:          expirable.NewLRU[string, sasToken](64, nil, ttl),
	}
}

// Name implements Signer
func (s *PlanetaryComputerSigner) Name() string {
	return "PlanetaryComputer"
}

// Supports implements Signer
func (s *PlanetaryComputerSigner) Supports(href string) bool {
	_, _, err := blobContainer(href)
	return err == nil
}

// Sign implements Signer
func (s *PlanetaryComputerSigner) Sign(ctx context.Context, href string, fresh bool) (string, error) {
	account, container, err := blobContainer(href)
	if err != nil {
		return "", service.MakeFatal(fmt.Errorf("PlanetaryComputer.Sign: %w", err))
	}
	key := account + "/" + container
	if fresh {
		s.tokens.Remove(key)
	}
	token, ok := s.tokens.Get(key)
	if !ok || time.Until(token.Expiry) < tokenMargin {
		if token, err = s.loadToken(ctx, account, container); err != nil {
			return "", fmt.Errorf("PlanetaryComputer.Sign.%w", err)
		}
		s.tokens.Add(key, token)
	}
	// Remove a previous signature
	if i := strings.IndexByte(href, '?'); i != -1 {
		href = href[:i]
	}
	return href + "?" + token.Token, nil
}

func (s *PlanetaryComputerSigner) loadToken(ctx context.Context, account, container string) (sasToken, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.TokenURL+"/"+account+"/"+container, nil)
	if err != nil {
		return sasToken{}, fmt.Errorf("loadToken.NewRequest: %w", err)
	}
	if s.SubscriptionKey != "" {
		req.Header.Set("Ocp-Apim-Subscription-Key", s.SubscriptionKey)
	}
	body, err := service.DoBody(s.client, req)
	if err != nil {
		return sasToken{}, fmt.Errorf("loadToken: %w", err)
	}
	token := sasToken{}
	if err := json.Unmarshal(body, &token); err != nil {
		return sasToken{}, fmt.Errorf("loadToken.Unmarshal: %w", err)
	}
	if token.Token == "" {
		return sasToken{}, fmt.Errorf("loadToken: token not found in %s", string(body))
	}
	log.Logger(ctx).Sugar().Debugf("PlanetaryComputer: new token for %s/%s (expires at %s)", account, container, token.Expiry.Format(time.RFC3339))
	return token, nil
}

// blobContainer returns the storage account and the container of an Azure blob href
func blobContainer(href string) (string, string, error) {
	u, err := url.Parse(href)
	if err != nil {
		return "", "", err
	}
	if u.Scheme != "https" || !strings.HasSuffix(u.Host, blobHostSuffix) {
		return "", "", fmt.Errorf("not an azure blob: %s", href)
	}
	container := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)[0]
	if container == "" {
		return "", "", fmt.Errorf("missing container: %s", href)
	}
	return strings.TrimSuffix(u.Host, blobHostSuffix), container, nil
}
