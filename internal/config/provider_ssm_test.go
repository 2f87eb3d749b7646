package config

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// fakeSSMClient serves parameters from a map and records every batch it sees.
// Batches may arrive concurrently.
type fakeSSMClient struct {
	params map[string]string
	err    error

	mu      sync.Mutex
	batches [][]string
}

func (f *fakeSSMClient) GetParameters(_ context.Context, in *ssm.GetParametersInput, _ ...func(*ssm.Options)) (*ssm.GetParametersOutput, error) {
	f.mu.Lock()
	f.batches = append(f.batches, append([]string(nil), in.Names...))
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if in.WithDecryption == nil || !*in.WithDecryption {
		return nil, errors.New("decryption not requested")
	}

	out := &ssm.GetParametersOutput{}
	for _, name := range in.Names {
		if v, ok := f.params[name]; ok {
			out.Parameters = append(out.Parameters, ssmtypes.Parameter{
				Name:  aws.String(name),
				Value: aws.String(v),
			})
		} else {
			out.InvalidParameters = append(out.InvalidParameters, name)
		}
	}
	return out, nil
}

func TestSSMProviderSatisfiesSecretProvider(t *testing.T) {
	var _ SecretProvider = NewSSMProvider("us-east-1")
}

func TestSSMProviderResolvesParameters(t *testing.T) {
	client := &fakeSSMClient{params: map[string]string{
		"/prod/atmos/owm/key": "owm-secret",
	}}
	p := newSSMProviderWithClient("eu-west-1", client)

	got, err := p.GetParametersBatch(context.Background(), []string{"/prod/atmos/owm/key"})
	if err != nil {
		t.Fatalf("GetParametersBatch returned error: %v", err)
	}
	if got["/prod/atmos/owm/key"] != "owm-secret" {
		t.Errorf("resolved value = %q, want %q", got["/prod/atmos/owm/key"], "owm-secret")
	}
}

func TestSSMProviderBatchesByTen(t *testing.T) {
	params := make(map[string]string)
	keys := make([]string, 0, 23)
	for i := range 23 {
		k := fmt.Sprintf("/dev/atmos/p%02d", i)
		params[k] = "v"
		keys = append(keys, k)
	}
	client := &fakeSSMClient{params: params}
	p := newSSMProviderWithClient("us-east-1", client)

	got, err := p.GetParametersBatch(context.Background(), keys)
	if err != nil {
		t.Fatalf("GetParametersBatch returned error: %v", err)
	}
	if len(got) != 23 {
		t.Errorf("resolved %d parameters, want 23", len(got))
	}
	if len(client.batches) != 3 {
		t.Fatalf("made %d calls, want 3", len(client.batches))
	}
	sizes := make([]int, len(client.batches))
	for i, b := range client.batches {
		sizes[i] = len(b)
	}
	sort.Ints(sizes)
	if fmt.Sprint(sizes) != "[3 10 10]" {
		t.Errorf("batch sizes = %v, want [3 10 10]", sizes)
	}
}

func TestSSMProviderInvalidParameterFails(t *testing.T) {
	client := &fakeSSMClient{params: map[string]string{}}
	p := newSSMProviderWithClient("us-east-1", client)

	_, err := p.GetParametersBatch(context.Background(), []string{"/dev/atmos/missing", "/dev/atmos/also-missing"})
	if err == nil {
		t.Fatal("expected error for missing parameter, got nil")
	}
	if !strings.Contains(err.Error(), "/dev/atmos/also-missing, /dev/atmos/missing") {
		t.Errorf("error %q should name every missing parameter in order", err)
	}
}

func TestSSMProviderClientError(t *testing.T) {
	sentinel := errors.New("throttled")
	p := newSSMProviderWithClient("us-east-1", &fakeSSMClient{err: sentinel})

	_, err := p.GetParametersBatch(context.Background(), []string{"/dev/atmos/a"})
	if !errors.Is(err, sentinel) {
		t.Errorf("expected wrapped sentinel error, got %v", err)
	}
}

func TestSSMProviderEmptyKeys(t *testing.T) {
	client := &fakeSSMClient{}
	p := newSSMProviderWithClient("us-east-1", client)

	got, err := p.GetParametersBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("GetParametersBatch returned error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil map, got %v", got)
	}
	if len(client.batches) != 0 {
		t.Errorf("client should not be called for empty keys, got %d calls", len(client.batches))
	}
}

func TestSSMProviderContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &fakeSSMClient{params: map[string]string{"/dev/atmos/a": "v"}}
	p := newSSMProviderWithClient("us-east-1", client)

	_, err := p.GetParametersBatch(ctx, []string{"/dev/atmos/a"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(client.batches) != 0 {
		t.Errorf("no batch should be sent after cancellation, got %d", len(client.batches))
	}
}
