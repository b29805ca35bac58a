package stealth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/fastwork-cli/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestPersonaFromConfig(t *testing.T) {
	t.Run("empty config keeps defaults", func(t *testing.T) {
		assert.Equal(t, DefaultPersona, PersonaFromConfig(config.StealthConfig{}))
	})

	t.Run("config overrides", func(t *testing.T) {
		p := PersonaFromConfig(config.StealthConfig{
			UserAgent: "UA/1.0",
			Languages: []string{"en-GB"},
			Timezone:  "Asia/Makassar",
		})
		assert.Equal(t, "UA/1.0", p.UserAgent)
		assert.Equal(t, []string{"en-GB"}, p.Languages)
		assert.Equal(t, "Asia/Makassar", p.Timezone)
		assert.Equal(t, DefaultPersona.Platform, p.Platform)
		assert.Equal(t, DefaultPersona.Locale, p.Locale)
	})
}

func TestAcceptLanguage(t *testing.T) {
	p := Persona{Languages: []string{"id-ID", "id", "en-US", "en"}}
	assert.Equal(t, "id-ID,id;q=0.9,en-US;q=0.8,en;q=0.7", p.AcceptLanguage())

	assert.Equal(t, "", Persona{}.AcceptLanguage())
	assert.Equal(t, "en", Persona{Languages: []string{"en"}}.AcceptLanguage())
}

func TestScript(t *testing.T) {
	require.NotEmpty(t, evasionsScript, "evasions.js must be embedded")

	script, err := DefaultPersona.Script()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(script, "const __persona = {"))
	assert.Contains(t, script, `"platform":"Win32"`)
	assert.Contains(t, script, `"timezone":"Asia/Jakarta"`)
	assert.Contains(t, script, "webdriver")
}

func TestApply(t *testing.T) {
	t.Run("full persona", func(t *testing.T) {
		core, logs := observer.New(zap.DebugLevel)
		tasks := Apply(DefaultPersona, zap.New(core))

		// UA override, script, timezone, locale and headers.
		assert.Len(t, tasks, 5)
		require.Equal(t, 1, logs.Len())
		assert.Equal(t, "Applying browser stealth persona", logs.All()[0].Message)
	})

	t.Run("sparse persona skips empty overrides", func(t *testing.T) {
		tasks := Apply(Persona{UserAgent: "UA"}, nil)
		assert.Len(t, tasks, 2)
	})
}
