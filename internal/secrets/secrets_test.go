package secrets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockSecretsClient struct {
	mock.Mock
}

func (m *MockSecretsClient) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	args := m.Called(ctx, aws.ToString(params.SecretId))
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*secretsmanager.GetSecretValueOutput), args.Error(1)
}

func secretValue(s string) *secretsmanager.GetSecretValueOutput {
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(s)}
}

func TestParseDBCredentials(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		port    int
		db      string
		user    string
		wantErr bool
	}{
		{"rds layout", `{"host":"db","port":5433,"dbname":"qivr","username":"ro","password":"pw"}`, 5433, "qivr", "ro", false},
		{"short keys and string port", `{"host":"db","port":"6432","database":"qivr","user":"ro","password":"pw"}`, 6432, "qivr", "ro", false},
		{"default port", `{"host":"db","dbname":"qivr","username":"ro","password":"pw"}`, 5432, "qivr", "ro", false},
		{"missing password", `{"host":"db","dbname":"qivr","username":"ro"}`, 0, "", "", true},
		{"not json", `host=db`, 0, "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ParseDBCredentials(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "db", c.Host)
			assert.Equal(t, tt.port, c.Port)
			assert.Equal(t, tt.db, c.Database)
			assert.Equal(t, tt.user, c.User)
			assert.Equal(t, "pw", c.Password)
		})
	}
}

func TestParseDBCredentials_ErrorNamesMissingKeys(t *testing.T) {
	_, err := ParseDBCredentials(`{"password":"hunter2"}`)
	require.Error(t, err)
	assert.Equal(t, "secret missing keys: dbname, host, username", err.Error())
}

func TestParseSalt(t *testing.T) {
	s, err := ParseSalt("  plain-salt\n")
	require.NoError(t, err)
	assert.Equal(t, "plain-salt", s)

	s, err = ParseSalt(`{"salt":"json-salt"}`)
	require.NoError(t, err)
	assert.Equal(t, "json-salt", s)

	_, err = ParseSalt(`{"value":"x"}`)
	assert.Error(t, err)

	_, err = ParseSalt("   ")
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestDBSecret_RetriesThrottling(t *testing.T) {
	client := new(MockSecretsClient)
	client.On("GetSecretValue", mock.Anything, "qivr/analytics/readonly-db").
		Return(nil, errors.New("ThrottlingException")).Once()
	client.On("GetSecretValue", mock.Anything, "qivr/analytics/readonly-db").
		Return(secretValue(`{"host":"db","dbname":"qivr","username":"ro","password":"pw"}`), nil).Once()

	m := NewManager(client, zap.NewNop()).WithRetry(3, time.Millisecond)
	creds, err := NewDBSecret(m, "qivr/analytics/readonly-db").Credentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ro@db:5432/qivr", creds.String())
	client.AssertNumberOfCalls(t, "GetSecretValue", 2)
}

func TestManager_NotFoundIsNotRetried(t *testing.T) {
	client := new(MockSecretsClient)
	client.On("GetSecretValue", mock.Anything, "missing").
		Return(nil, &types.ResourceNotFoundException{Message: aws.String("no such secret")})

	m := NewManager(client, zap.NewNop()).WithRetry(5, time.Millisecond)
	_, err := m.SecretString(context.Background(), "missing")
	require.Error(t, err)

	var notFound *types.ResourceNotFoundException
	assert.ErrorAs(t, err, &notFound)
	client.AssertNumberOfCalls(t, "GetSecretValue", 1)
}

func TestManager_Salt(t *testing.T) {
	client := new(MockSecretsClient)
	client.On("GetSecretValue", mock.Anything, "salt").Return(secretValue(`{"salt":"s3cr3t"}`), nil)

	salt, err := NewManager(client, zap.NewNop()).Salt(context.Background(), "salt")
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", salt)
}
