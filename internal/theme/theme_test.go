package theme

import (
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetBuiltin(t *testing.T) {
	th, err := Get("Trollian")
	require.NoError(t, err)
	assert.Equal(t, "Trollian", th.Name)
	assert.Equal(t, "themes/trollian", th.Path)
}

func TestGetUnknownFallsBackToDefault(t *testing.T) {
	th, err := Get("Alternian Nightmare")
	assert.ErrorIs(t, err, ErrUnknownTheme)
	require.NotNil(t, th)
	assert.Equal(t, DefaultName, th.Name)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	assert.Error(t, Register(&Theme{Name: DefaultName}))
	assert.Error(t, Register(&Theme{}))
}

func TestNamesSorted(t *testing.T) {
	assert.Equal(t, []string{"Pesterchum 2.5", "Pesterchum 2.5 Dark", "Trollian"}, Names())
}

func TestColor(t *testing.T) {
	assert.Equal(t, tcell.NewRGBColor(0xc5, 0x94, 0x00), Color(Default().Styles.Border))
}
