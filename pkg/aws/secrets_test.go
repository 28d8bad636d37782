package aws

import (
	"context"
	"errors"
	"sync"
	"testing"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecretsAPI struct {
	mu      sync.Mutex
	calls   map[string]int
	strings map[string]string
	binary  map[string][]byte
}

func (f *fakeSecretsAPI) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := sdkaws.ToString(in.SecretId)
	f.calls[id]++
	if v, ok := f.strings[id]; ok {
		return &secretsmanager.GetSecretValueOutput{SecretString: sdkaws.String(v)}, nil
	}
	if b, ok := f.binary[id]; ok {
		return &secretsmanager.GetSecretValueOutput{SecretBinary: b}, nil
	}
	return nil, errors.New("ResourceNotFoundException")
}

func newFakeSecrets() (*SecretsClient, *fakeSecretsAPI) {
	api := &fakeSecretsAPI{
		calls: map[string]int{},
		strings: map[string]string{
			"product/MONGO_URI": "mongodb://mongo:27017",
			"product/config":    `{"JWT_SECRET":"s3cret","BATCH":100}`,
		},
		binary: map[string][]byte{"product/blob": []byte("raw")},
	}
	return &SecretsClient{api: api}, api
}

func TestSecretsClientCachesValues(t *testing.T) {
	ctx := context.Background()
	s, api := newFakeSecrets()

	for i := 0; i < 3; i++ {
		v, err := s.GetSecret(ctx, "product/MONGO_URI")
		require.NoError(t, err)
		assert.Equal(t, "mongodb://mongo:27017", v)
	}
	assert.Equal(t, 1, api.calls["product/MONGO_URI"])

	v, err := s.GetSecret(ctx, "product/blob")
	require.NoError(t, err)
	assert.Equal(t, "raw", v)
}

func TestSecretsClientReadsJSONField(t *testing.T) {
	ctx := context.Background()
	s, _ := newFakeSecrets()

	v, err := s.GetSecret(ctx, "product/config#JWT_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", v)

	v, err = s.GetSecret(ctx, "product/config#BATCH")
	require.NoError(t, err)
	assert.Equal(t, "100", v)

	_, err = s.GetSecret(ctx, "product/config#MISSING")
	assert.ErrorContains(t, err, `no field "MISSING"`)

	_, err = s.GetSecret(ctx, "product/MONGO_URI#JWT_SECRET")
	assert.ErrorContains(t, err, "not a JSON object")
}

func TestSecretsClientErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	s, api := newFakeSecrets()

	_, err := s.GetSecret(ctx, "product/unknown")
	assert.Error(t, err)
	_, err = s.GetSecret(ctx, "product/unknown")
	assert.Error(t, err)
	assert.Equal(t, 2, api.calls["product/unknown"])
}
