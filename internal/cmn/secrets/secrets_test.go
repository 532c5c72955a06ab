package secrets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRef(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    Ref
		wantErr bool
	}{
		{input: "env:OPENAI_API_KEY", want: Ref{Provider: "env", Key: "OPENAI_API_KEY"}},
		{input: "file:/run/secrets/api_key", want: Ref{Provider: "file", Key: "/run/secrets/api_key"}},
		{input: "vault:secret/data/mnemo#api_key", want: Ref{Provider: "vault", Key: "secret/data/mnemo", Field: "api_key"}},
		{input: "novalue", wantErr: true},
		{input: "env:", wantErr: true},
		{input: ":KEY", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			t.Parallel()
			got, err := ParseRef(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRefString(t *testing.T) {
	t.Parallel()

	ref := Ref{Provider: "vault", Key: "secret/data/mnemo", Field: "api_key"}
	assert.Equal(t, "vault:secret/data/mnemo#api_key", ref.String())

	ref = Ref{Provider: "env", Key: "API_KEY"}
	assert.Equal(t, "env:API_KEY", ref.String())
}

func TestRegistry_UnknownProvider(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(Options{})
	_, err := registry.Resolve(context.Background(), "gcp:projects/x/secrets/y")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown secret provider")
}

func TestRegistry_Resolve(t *testing.T) {
	t.Setenv("MNEMO_TEST_SECRET", "s3cr3t")

	registry := NewRegistry(Options{})
	value, err := registry.Resolve(context.Background(), "env:MNEMO_TEST_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", value)
}
