package services

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/tbourn/go-pickup-backend/internal/domain"
)

var pickupCodeSpace = big.NewInt(1_000_000)

// codeSource is the entropy for pickup codes; tests swap it.
var codeSource io.Reader = rand.Reader

// newPickupCode draws a uniform 6-digit code, zero padded.
func newPickupCode() (string, error) {
	n, err := rand.Int(codeSource, pickupCodeSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// pickupCodeValid reports whether code matches the order's stored code and
// that code is still live at now.
func pickupCodeValid(o *domain.Order, code string, now time.Time) bool {
	if o.PickupCode == nil || code == "" {
		return false
	}
	if o.PickupCodeExpiresAt == nil || !now.Before(*o.PickupCodeExpiresAt) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*o.PickupCode), []byte(code)) == 1
}
