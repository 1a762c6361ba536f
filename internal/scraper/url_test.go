package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "https://acme.com", NormalizeURL("  acme.com "))
	assert.Equal(t, "http://acme.com", NormalizeURL("http://acme.com"))
	assert.Equal(t, "HTTPS://acme.com", NormalizeURL("HTTPS://acme.com"))
	assert.Equal(t, "https://acme.com", NormalizeURL("//acme.com"))
	assert.Equal(t, "", NormalizeURL("   "))
}

func TestValidateURL(t *testing.T) {
	assert.NoError(t, ValidateURL("https://acme.com/path"))
	assert.Error(t, ValidateURL("ftp://acme.com"))
	assert.Error(t, ValidateURL("https://"))
	assert.Error(t, ValidateURL("::bad"))
}
