package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParams(t *testing.T) {
	t.Parallel()

	t.Run("FullSet", func(t *testing.T) {
		t.Parallel()
		p, err := ParseParams(map[string]any{
			"model":       "gpt-4o",
			"temperature": 0.7,
			"top_p":       0.9,
			"max_tokens":  1024,
			"stop":        []string{"END"},
			"api_key":     "sk-test",
			"base_url":    "http://localhost:8080/v1",
			"timeout":     "30s",
			"max_retries": 2,
		})
		require.NoError(t, err)
		assert.Equal(t, "gpt-4o", p.Model)
		assert.Equal(t, 0.7, *p.Temperature)
		assert.Equal(t, 0.9, *p.TopP)
		assert.Equal(t, 1024, *p.MaxTokens)
		assert.Equal(t, []string{"END"}, p.Stop)
		assert.Equal(t, "sk-test", p.APIKey)
		assert.Equal(t, 30*time.Second, p.Timeout)
		assert.Equal(t, 2, *p.MaxRetries)
	})

	t.Run("UnknownKeyRejected", func(t *testing.T) {
		t.Parallel()
		_, err := ParseParams(map[string]any{
			"model": "gpt-4o",
			"modle": "typo",
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidParameter)
		assert.Contains(t, err.Error(), "modle")
	})

	t.Run("IntegerTemperatureAccepted", func(t *testing.T) {
		t.Parallel()
		// YAML parsers hand over `temperature: 1` as an int.
		p, err := ParseParams(map[string]any{"model": "gpt-4o", "temperature": 1})
		require.NoError(t, err)
		assert.Equal(t, 1.0, *p.Temperature)
	})

	t.Run("SingleStopCoercedToSlice", func(t *testing.T) {
		t.Parallel()
		p, err := ParseParams(map[string]any{"model": "gpt-4o", "stop": "END"})
		require.NoError(t, err)
		assert.Equal(t, []string{"END"}, p.Stop)
	})

	t.Run("NilConfigRequiresModel", func(t *testing.T) {
		t.Parallel()
		_, err := ParseParams(nil)
		assert.ErrorIs(t, err, ErrInvalidParameter)
	})
}

func TestParamsValidate(t *testing.T) {
	t.Parallel()

	valid := func() Params {
		return Params{Model: "gpt-4o"}
	}

	t.Run("ModelRequired", func(t *testing.T) {
		t.Parallel()
		p := valid()
		p.Model = ""
		err := p.Validate()
		require.ErrorIs(t, err, ErrInvalidParameter)
		assert.Contains(t, err.Error(), "model")
	})

	tests := []struct {
		name   string
		mutate func(*Params)
		errStr string
	}{
		{"TemperatureTooHigh", func(p *Params) { v := 2.5; p.Temperature = &v }, "temperature"},
		{"TemperatureNegative", func(p *Params) { v := -0.1; p.Temperature = &v }, "temperature"},
		{"TopPZero", func(p *Params) { v := 0.0; p.TopP = &v }, "top_p"},
		{"TopPTooHigh", func(p *Params) { v := 1.5; p.TopP = &v }, "top_p"},
		{"MaxTokensZero", func(p *Params) { v := 0; p.MaxTokens = &v }, "max_tokens"},
		{"MaxTokensNegative", func(p *Params) { v := -100; p.MaxTokens = &v }, "max_tokens"},
		{"NegativeTimeout", func(p *Params) { p.Timeout = -time.Second }, "timeout"},
		{"NegativeMaxRetries", func(p *Params) { v := -1; p.MaxRetries = &v }, "max_retries"},
		{"MalformedSecretRef", func(p *Params) { p.APIKeyRef = "no-provider-part" }, "api_key_ref"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := valid()
			tc.mutate(&p)
			err := p.Validate()
			require.ErrorIs(t, err, ErrInvalidParameter)
			assert.Contains(t, err.Error(), tc.errStr)
		})
	}

	t.Run("BoundaryValuesAccepted", func(t *testing.T) {
		t.Parallel()
		zero := 0.0
		two := 2.0
		one := 1.0
		p := valid()
		p.Temperature = &zero
		require.NoError(t, p.Validate())
		p.Temperature = &two
		require.NoError(t, p.Validate())
		p.TopP = &one
		require.NoError(t, p.Validate())
	})
}
