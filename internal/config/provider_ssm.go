package config

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"golang.org/x/sync/errgroup"
)

const (
	// ssmMaxBatchSize is the AWS limit on names per GetParameters call.
	ssmMaxBatchSize = 10
	// ssmMaxInFlight caps concurrent GetParameters calls to stay clear of
	// the account's SSM throughput quota during cold starts.
	ssmMaxInFlight = 3
)

type ssmClient interface {
	GetParameters(ctx context.Context, params *ssm.GetParametersInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersOutput, error)
}

// SSMProvider resolves *_SSM_PARAM pointers (WEATHER_PROVIDER,
// OPENWEATHERMAP_API_KEY, CORS_ALLOWED_ORIGINS in deployed environments)
// from Parameter Store, decrypting SecureStrings.
type SSMProvider struct {
	region string

	once    sync.Once
	client  ssmClient
	initErr error
}

// NewSSMProvider creates an SSMProvider for region. AWS credentials are not
// loaded until the first lookup.
func NewSSMProvider(region string) *SSMProvider {
	return &SSMProvider{region: region}
}

func newSSMProviderWithClient(region string, client ssmClient) *SSMProvider {
	p := &SSMProvider{region: region, client: client}
	p.once.Do(func() {})
	return p
}

func (p *SSMProvider) getClient(ctx context.Context) (ssmClient, error) {
	p.once.Do(func() {
		cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(p.region))
		if err != nil {
			p.initErr = fmt.Errorf("loading AWS config for SSM (region=%s): %w", p.region, err)
			return
		}
		p.client = ssm.NewFromConfig(cfg)
	})
	return p.client, p.initErr
}

// GetParametersBatch resolves keys in chunks of ssmMaxBatchSize, a few chunks
// at a time. Every key must exist: the error names all missing keys.
func (p *SSMProvider) GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error) {
	result := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return result, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("SSM parameter retrieval cancelled: %w", err)
	}

	client, err := p.getClient(ctx)
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		invalid []string
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(ssmMaxInFlight)

	for start := 0; start < len(keys); start += ssmMaxBatchSize {
		batch := keys[start:min(start+ssmMaxBatchSize, len(keys))]
		g.Go(func() error {
			out, err := client.GetParameters(gCtx, &ssm.GetParametersInput{
				Names:          batch,
				WithDecryption: aws.Bool(true),
			})
			if err != nil {
				return fmt.Errorf("SSM GetParameters for %d names: %w", len(batch), err)
			}

			mu.Lock()
			defer mu.Unlock()
			for _, param := range out.Parameters {
				if param.Name != nil && param.Value != nil {
					result[*param.Name] = *param.Value
				}
			}
			invalid = append(invalid, out.InvalidParameters...)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(invalid) > 0 {
		sort.Strings(invalid)
		return nil, fmt.Errorf("SSM parameters not found: %s", strings.Join(invalid, ", "))
	}
	return result, nil
}
