package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// --- SanitizeStruct tests ---

func TestSanitizeStruct_TrimsWhitespace(t *testing.T) {
	req := ExternalLoginRequest{
		Email:     "  ada@example.com  ",
		FirstName: " Ada ",
		LastName:  " Lovelace ",
	}
	SanitizeStruct(&req)

	assert.Equal(t, "ada@example.com", req.Email)
	assert.Equal(t, "Ada", req.FirstName)
	assert.Equal(t, "Lovelace", req.LastName)
}

func TestSanitizeStruct_EscapesHTML(t *testing.T) {
	req := CreateKeyRequest{
		Name:   "ci <script>alert('x')</script> key",
		Expiry: "1D",
	}
	SanitizeStruct(&req)

	assert.Contains(t, req.Name, "&lt;script&gt;")
	assert.NotContains(t, req.Name, "<script>")
}

func TestSanitizeStruct_LeavesNonStringFieldsAlone(t *testing.T) {
	req := TransferRequest{
		WalletNumber: "  4561234567890  ",
		Amount:       5000,
	}
	SanitizeStruct(&req)

	assert.Equal(t, "4561234567890", req.WalletNumber)
	assert.Equal(t, int64(5000), req.Amount)
}

func TestSanitizeStruct_NonPointerIsNoOp(t *testing.T) {
	s := "hello"
	SanitizeStruct(s) // should not panic
}

// --- Custom validator tests ---

func TestSafeID_Valid(t *testing.T) {
	cases := []string{
		"4561234567890",
		"wallet_42",
		"a.b.c",
		"ABC-def_GHI.123",
	}
	for _, tc := range cases {
		assert.True(t, safeStringRe.MatchString(tc), "expected valid: %s", tc)
	}
}

func TestSafeID_Invalid(t *testing.T) {
	cases := []string{
		"456 1234",   // space
		"456<1234>",  // angle brackets
		"456;DROP",   // semicolon
		"",           // empty
		"456\n1234",  // newline
	}
	for _, tc := range cases {
		assert.False(t, safeStringRe.MatchString(tc), "expected invalid: %s", tc)
	}
}
