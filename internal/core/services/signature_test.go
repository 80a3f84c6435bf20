package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func TestPaymentSignature_MatchesHMAC(t *testing.T) {
	secret := []byte("test-secret")
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte("order_1|pay_1"))
	want := hex.EncodeToString(mac.Sum(nil))

	if got := PaymentSignature(secret, "order_1", "pay_1"); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestVerifyPaymentSignature(t *testing.T) {
	secret := []byte("test-secret")
	valid := PaymentSignature(secret, "order_1", "pay_1")

	cases := []struct {
		name      string
		secret    []byte
		paymentID string
		signature string
		want      bool
	}{
		{name: "valid", secret: secret, paymentID: "pay_1", signature: valid, want: true},
		{name: "surrounding whitespace", secret: secret, paymentID: "pay_1", signature: " " + valid + "\n", want: true},
		{name: "other payment", secret: secret, paymentID: "pay_2", signature: valid, want: false},
		{name: "wrong secret", secret: []byte("other"), paymentID: "pay_1", signature: valid, want: false},
		{name: "empty secret", secret: nil, paymentID: "pay_1", signature: valid, want: false},
		{name: "garbage", secret: secret, paymentID: "pay_1", signature: "deadbeef", want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := VerifyPaymentSignature(tc.secret, "order_1", tc.paymentID, tc.signature); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}
