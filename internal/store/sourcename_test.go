package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	citeerrors "github.com/citewise/citewise/internal/errors"
)

func TestValidateSourceName(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		wantErr bool
	}{
		{"plain pdf name", "lease_agreement.pdf", false},
		{"hebrew name", "הסכם_שכירות.pdf", false},
		{"spaces allowed", "master services agreement.docx", false},
		{"empty", "", true},
		{"single quote", "doc'.pdf", true},
		{"double quote", `doc".pdf`, true},
		{"backtick", "doc`.pdf", true},
		{"backslash", `doc\.pdf`, true},
		{"nul byte", "doc\x00.pdf", true},
		{"newline", "doc\n.pdf", true},
		{"path separator", "subdir/doc.pdf", true},
		{"parent dir", "..", true},
		{"current dir", ".", true},
		{"over-long", strings.Repeat("a", MaxSourceLen+1), true},
		{"exactly max length", strings.Repeat("a", MaxSourceLen), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSourceName(tt.source)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Equal(t, citeerrors.ErrCodeInvalidSourceName, citeerrors.GetCode(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
