package keySource

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/aws/aws-sdk-go/service/secretsmanager/secretsmanageriface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSecretsManager struct {
	secretsmanageriface.SecretsManagerAPI
	mock.Mock
}

func (m *mockSecretsManager) GetSecretValueWithContext(ctx aws.Context, input *secretsmanager.GetSecretValueInput, _ ...request.Option) (*secretsmanager.GetSecretValueOutput, error) {
	args := m.Called(ctx, input)
	out, _ := args.Get(0).(*secretsmanager.GetSecretValueOutput)
	return out, args.Error(1)
}

func TestHexKeySource(t *testing.T) {
	src, err := NewHexKeySource("0x0102ff")
	require.NoError(t, err)

	key, err := src.PrivateKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 0xff}, key)

	Zero(key)
	again, err := src.PrivateKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 0xff}, again, "callers receive a copy")

	src.Close()
	_, err = src.PrivateKey(context.Background())
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestHexKeySource_Invalid(t *testing.T) {
	_, err := NewHexKeySource("")
	assert.ErrorIs(t, err, ErrEmptyKey)

	_, err = NewHexKeySource("0xnothex")
	assert.Error(t, err)
}

func TestZero(t *testing.T) {
	b := []byte{1, 2, 3}
	Zero(b)
	assert.Equal(t, []byte{0, 0, 0}, b)
	Zero(nil)
}

func TestAWSSMKeySource(t *testing.T) {
	tests := []struct {
		name    string
		config  AWSSMKeySourceConfig
		secret  *string
		want    []byte
		wantErr bool
	}{
		{name: "plain hex", secret: aws.String("0a0b"), want: []byte{0x0a, 0x0b}},
		{name: "json default field", secret: aws.String(`{"privateKey":"0x0c"}`), want: []byte{0x0c}},
		{name: "json custom field", config: AWSSMKeySourceConfig{Field: "tron"}, secret: aws.String(`{"tron":"0d"}`), want: []byte{0x0d}},
		{name: "json missing field", secret: aws.String(`{"other":"0d"}`), wantErr: true},
		{name: "binary secret", secret: nil, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.config
			cfg.SecretName = "wallet/key"
			client := &mockSecretsManager{}
			client.On("GetSecretValueWithContext", mock.Anything, &secretsmanager.GetSecretValueInput{
				SecretId:     aws.String("wallet/key"),
				VersionStage: aws.String("AWSCURRENT"),
			}).Return(&secretsmanager.GetSecretValueOutput{SecretString: tt.secret}, nil).Once()

			src := NewAWSSMKeySourceWithClient(&cfg, client, nil)
			key, err := src.PrivateKey(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, key)
			}
			client.AssertExpectations(t)
		})
	}
}

func TestAWSSMKeySource_ClientError(t *testing.T) {
	client := &mockSecretsManager{}
	client.On("GetSecretValueWithContext", mock.Anything, mock.Anything).Return(nil, errors.New("AccessDeniedException")).Once()

	src := NewAWSSMKeySourceWithClient(&AWSSMKeySourceConfig{SecretName: "k", VersionStage: "AWSPREVIOUS"}, client, nil)
	_, err := src.PrivateKey(context.Background())
	assert.ErrorContains(t, err, "AccessDeniedException")
}
