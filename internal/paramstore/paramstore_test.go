package paramstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "/daedalus/webexTokens", Key("/daedalus", TokensName))
	assert.Equal(t, "/daedalus/smartsheetSheetId", Key("daedalus/", SheetIDName))
	assert.Equal(t, "/webexTokens", Key("", TokensName))
}

// exerciseStore runs the common Get/Put contract against any backend.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Get(ctx, "/test/missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, store.Put(ctx, "/test/sheet", "12345", false))
	v, err := store.Get(ctx, "/test/sheet")
	require.NoError(t, err)
	assert.Equal(t, "12345", v)

	require.NoError(t, store.Put(ctx, "/test/sheet", "67890", false))
	v, err = store.Get(ctx, "/test/sheet")
	require.NoError(t, err)
	assert.Equal(t, "67890", v)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	tokenPath := filepath.Join(t.TempDir(), "nested", "params.json")
	store, err := NewFileStore(tokenPath)
	require.NoError(t, err)

	exerciseStore(t, store)

	info, err := os.Stat(tokenPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	// A second store over the same file sees the same values
	store2, err := NewFileStore(tokenPath)
	require.NoError(t, err)
	v, err := store2.Get(context.Background(), "/test/sheet")
	require.NoError(t, err)
	assert.Equal(t, "67890", v)
}

func TestSQLiteStore(t *testing.T) {
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "params.db"))
	require.NoError(t, err)
	defer store.Close()

	exerciseStore(t, store)
}

type fakeSSM struct {
	params map[string]*ssm.PutParameterInput
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	p, ok := f.params[aws.ToString(in.Name)]
	if !ok {
		return nil, &types.ParameterNotFound{Message: aws.String("not found")}
	}
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: p.Name, Value: p.Value, Type: p.Type}}, nil
}

func (f *fakeSSM) PutParameter(_ context.Context, in *ssm.PutParameterInput, _ ...func(*ssm.Options)) (*ssm.PutParameterOutput, error) {
	f.params[aws.ToString(in.Name)] = in
	return &ssm.PutParameterOutput{}, nil
}

func TestSSMStore(t *testing.T) {
	fake := &fakeSSM{params: map[string]*ssm.PutParameterInput{}}
	store := &SSMStore{client: fake}

	exerciseStore(t, store)

	require.NoError(t, store.Put(context.Background(), "/test/tokens", "{}", true))
	assert.Equal(t, types.ParameterTypeSecureString, fake.params["/test/tokens"].Type)
	assert.Equal(t, types.ParameterTypeString, fake.params["/test/sheet"].Type)
	assert.True(t, aws.ToBool(fake.params["/test/tokens"].Overwrite))
}
