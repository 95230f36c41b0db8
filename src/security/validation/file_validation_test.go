package validation

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/fimaledger/src/logger"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

func TestValidateClientContentType(t *testing.T) {
	assert.NoError(t, ValidateClientContentType("application/pdf"))
	assert.NoError(t, ValidateClientContentType("Application/PDF"))
	assert.NoError(t, ValidateClientContentType("application/pdf; charset=binary"))
	assert.NoError(t, ValidateClientContentType("application/octet-stream"))

	assert.Error(t, ValidateClientContentType("text/csv"))
	assert.Error(t, ValidateClientContentType("text/html"))
	assert.Error(t, ValidateClientContentType(""))
}

func TestValidateFileContentByMagicBytes(t *testing.T) {
	t.Run("accepts a PDF header and rewinds", func(t *testing.T) {
		file := bytes.NewReader([]byte("%PDF-1.7 rest of document"))
		require.NoError(t, ValidateFileContentByMagicBytes(file))

		all, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(all, []byte("%PDF-")))
	})

	t.Run("rejects other content", func(t *testing.T) {
		assert.Error(t, ValidateFileContentByMagicBytes(bytes.NewReader([]byte("id,date,amount\n"))))
		assert.Error(t, ValidateFileContentByMagicBytes(bytes.NewReader([]byte("PK\x03\x04"))))
		assert.Error(t, ValidateFileContentByMagicBytes(bytes.NewReader(nil)))
		assert.Error(t, ValidateFileContentByMagicBytes(nil))
	})
}

func TestSanitizeForFormulaInjection(t *testing.T) {
	assert.Equal(t, "'=SUM(A1:A9)", SanitizeForFormulaInjection("=SUM(A1:A9)"))
	assert.Equal(t, "'+1234", SanitizeForFormulaInjection("+1234"))
	assert.Equal(t, "'@cmd", SanitizeForFormulaInjection("@cmd"))
	assert.Equal(t, "-1.234,56", SanitizeForFormulaInjection("-1.234,56"))
	assert.Equal(t, "15/03/2024 SUSCRIPCION", SanitizeForFormulaInjection("15/03/2024 SUSCRIPCION"))
}

func TestStripUnprintable(t *testing.T) {
	assert.Equal(t, "FONDO - FIMA PREMIUM", StripUnprintable("FONDO - FIMA PREMIUM\x00"))
	assert.Equal(t, "a\tb\nc", StripUnprintable("a\tb\nc"))
	assert.Equal(t, "", StripUnprintable("\x07\x08\x1b"))
}
