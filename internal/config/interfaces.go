package config

import "context"

// SecretProvider abstracts secret retrieval so the loader can resolve
// *_SSM_PARAM pointers from AWS SSM in deployed environments and from plain
// environment variables locally.
type SecretProvider interface {
	// GetParametersBatch resolves keys (SSM parameter paths or equivalent
	// identifiers) and returns key -> plaintext value for every key found.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
