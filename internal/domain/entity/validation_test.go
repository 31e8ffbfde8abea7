package entity

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		cc      string
		want    string
		wantErr bool
	}{
		{"already e164", "+15551234567", "", "+15551234567", false},
		{"separators stripped", "+1 (555) 123-4567", "", "+15551234567", false},
		{"double zero prefix", "0044 20 7946 0958", "", "+442079460958", false},
		{"trunk zero replaced by country code", "0612345678", "31", "+31612345678", false},
		{"country code with plus", "0612345678", "+31", "+31612345678", false},
		{"no country code keeps digits", "5551234567", "", "+5551234567", false},
		{"dots allowed", "+1.555.123.4567", "", "+15551234567", false},
		{"empty", "", "1", "", true},
		{"letters rejected", "+1555CALLNOW", "", "", true},
		{"too short", "+1234", "", "", true},
		{"too long", "+1234567890123456", "", "", true},
		{"leading zero without country code", "0612345678", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.raw, tt.cc)
			if tt.wantErr {
				require.Error(t, err)
				var ve *ValidationError
				assert.True(t, errors.As(err, &ve))
				assert.Equal(t, "phone", ve.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{"simple", "parent@example.com", false},
		{"plus tag", "parent+school@example.co.uk", false},
		{"empty", "", true},
		{"missing at", "parent.example.com", true},
		{"missing tld", "parent@example", true},
		{"spaces", "par ent@example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.addr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateEndpointURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"https", "https://exp.host/--/api/v2/push/send", false},
		{"http localhost", "http://127.0.0.1:8080/send", false},
		{"empty", "", true},
		{"ftp scheme", "ftp://example.com", true},
		{"no host", "https://", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEndpointURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestValidationError verifies the message format and that field errors match ErrInvalidInput.
func TestValidationError(t *testing.T) {
	err := &ValidationError{Field: "phone", Message: "phone is required"}
	assert.Equal(t, "invalid phone: phone is required", err.Error())
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.NotErrorIs(t, err, ErrNotFound)

	var ve *ValidationError
	assert.True(t, errors.As(fmt.Errorf("resolve recipient 7: %w", err), &ve))
	assert.Equal(t, "phone", ve.Field)
}

// TestNormalizePhone_ErrorsAreInvalidInput verifies rejected numbers are reported as caller input errors.
func TestNormalizePhone_ErrorsAreInvalidInput(t *testing.T) {
	_, err := NormalizePhone("07700 9OO 123", "44")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
