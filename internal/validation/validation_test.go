package validation

import (
	"bytes"
	"mime/multipart"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsmewidii/fitriacookry/pkg/errorbank"
)

type sampleForm struct {
	Name       string `form:"name" validate:"required"`
	Email      string `form:"email" validate:"required,email"`
	TotalPrice string `form:"total_price" validate:"required,numeric"`
	TotalQty   string `form:"total_qty" validate:"required,number"`
}

func TestValidateReportsFormFieldNames(t *testing.T) {
	v := New()

	err := v.Validate(&sampleForm{Email: "not-an-email", TotalPrice: "abc", TotalQty: "1.5"})
	require.Error(t, err)
	assert.True(t, errorbank.Is(err, errorbank.KindUnprocessableEntity))

	fields := errorbank.Fields(err)
	assert.Equal(t, "The name field is required.", fields["name"])
	assert.Equal(t, "The email must be a valid email address.", fields["email"])
	assert.Equal(t, "The total price must be a number.", fields["total_price"])
	assert.Equal(t, "The total qty must be an integer.", fields["total_qty"])
}

func TestValidatePasses(t *testing.T) {
	v := New()
	assert.NoError(t, v.Validate(&sampleForm{Name: "Ani", Email: "ani@example.com", TotalPrice: "125000.50", TotalQty: "3"}))
}

func fileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("proof_transfer", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&body, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["proof_transfer"][0]
}

var proofRule = FileRule{Required: true, Extensions: []string{"jpeg", "png", "jpg", "pdf"}, MaxBytes: 5048 * 1024}

func TestFileRuleAcceptsAllowedTypes(t *testing.T) {
	assert.Empty(t, proofRule.Check("proof_transfer", fileHeader(t, "receipt.pdf", []byte("%PDF-1.4\n%..."))))
	assert.Empty(t, proofRule.Check("proof_transfer", fileHeader(t, "receipt.PNG", []byte("\x89PNG\r\n\x1a\n0000"))))
	assert.Empty(t, proofRule.Check("proof_transfer", fileHeader(t, "receipt.jpg", []byte("\xff\xd8\xff\xe0 jfif"))))
}

func TestFileRuleRejections(t *testing.T) {
	assert.Equal(t, "The proof transfer field is required.", proofRule.Check("proof_transfer", nil))
	assert.Empty(t, FileRule{Extensions: proofRule.Extensions}.Check("proof_transfer", nil))

	typeMsg := "The proof transfer must be a file of type: jpeg, png, jpg, pdf."
	assert.Equal(t, typeMsg, proofRule.Check("proof_transfer", fileHeader(t, "script.exe", []byte("MZ"))))
	assert.Equal(t, typeMsg, proofRule.Check("proof_transfer", fileHeader(t, "fake.pdf", []byte("<html>not a pdf</html>"))))

	small := FileRule{Required: true, Extensions: []string{"pdf"}, MaxBytes: 1024}
	big := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("a"), 2048)...)
	assert.Equal(t, "The proof transfer may not be greater than 1 kilobytes.", small.Check("proof_transfer", fileHeader(t, "big.pdf", big)))
}
