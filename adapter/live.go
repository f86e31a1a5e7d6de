package adapter

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"qtsw2exec/intent"
)

// ErrLiveNotImplemented is returned by every order-flow method on
// LiveAdapter. The live adapter is explicitly stubbed; a valid enable
// token only sets the adapter's Enabled flag at construction and never
// opens order flow.
var ErrLiveNotImplemented = errors.New("adapter: live trading is not implemented")

// liveEnableClaims is the JWT payload format for the out-of-band LIVE
// enable key.
type liveEnableClaims struct {
	Mode string `json:"mode"`
	jwt.RegisteredClaims
}

// HashEnableSecret bcrypt-hashes the HMAC secret used to sign LIVE enable
// tokens, so config never carries it in plaintext at rest.
func HashEnableSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("adapter: hash live enable secret: %w", err)
	}
	return string(hash), nil
}

// VerifyEnableToken checks a presented JWT against the hashed secret's
// plaintext counterpart (supplied by the operator at process start through
// the environment) and requires a mode:"LIVE" claim that hasn't expired.
func VerifyEnableToken(tokenString, plaintextSecret, hashedSecret string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hashedSecret), []byte(plaintextSecret)); err != nil {
		return fmt.Errorf("adapter: live enable secret does not match configured hash: %w", err)
	}
	token, err := jwt.ParseWithClaims(tokenString, &liveEnableClaims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(plaintextSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return fmt.Errorf("adapter: invalid live enable token: %w", err)
	}
	claims, ok := token.Claims.(*liveEnableClaims)
	if !ok || !token.Valid || claims.Mode != "LIVE" {
		return fmt.Errorf("adapter: live enable token missing mode=LIVE claim")
	}
	return nil
}

// LiveAdapter is the explicitly-stubbed LIVE binding. It exists so
// AdapterFactory's three-mode contract is complete and so a future
// brokerage binding has a named home, but every order-flow method fails
// closed with ErrLiveNotImplemented regardless of whether construction
// was gated by a valid enable token.
type LiveAdapter struct {
	enabled bool
}

// NewLiveAdapter constructs a LiveAdapter. enabled reflects whether
// VerifyEnableToken succeeded; it changes nothing about order flow below
// but is surfaced so callers can log the distinction between "disabled by
// policy" and "disabled pending implementation".
func NewLiveAdapter(enabled bool) *LiveAdapter {
	return &LiveAdapter{enabled: enabled}
}

func (l *LiveAdapter) Enabled() bool { return l.enabled }

func (l *LiveAdapter) SetCallbacks(OrderUpdateCallback, ExecutionCallback) {}

func (l *LiveAdapter) SubmitEntry(string, string, intent.Direction, *decimal.Decimal, int, OrderKind, time.Time) SubmitResult {
	return SubmitResult{Success: false, Err: ErrLiveNotImplemented}
}
func (l *LiveAdapter) SubmitProtectiveStop(string, string, intent.Direction, decimal.Decimal, int, string, time.Time) SubmitResult {
	return SubmitResult{Success: false, Err: ErrLiveNotImplemented}
}
func (l *LiveAdapter) SubmitTarget(string, string, intent.Direction, decimal.Decimal, int, string, time.Time) SubmitResult {
	return SubmitResult{Success: false, Err: ErrLiveNotImplemented}
}
func (l *LiveAdapter) ModifyStopTo(string, string, decimal.Decimal, time.Time) error {
	return ErrLiveNotImplemented
}
func (l *LiveAdapter) Flatten(string, string, time.Time) error { return ErrLiveNotImplemented }
func (l *LiveAdapter) CancelIntentOrders(string, time.Time) error {
	return ErrLiveNotImplemented
}
func (l *LiveAdapter) GetAccountSnapshot(time.Time) (AccountSnapshot, error) {
	return AccountSnapshot{}, ErrLiveNotImplemented
}
func (l *LiveAdapter) CancelRobotOwnedWorkingOrders(AccountSnapshot, time.Time) error {
	return ErrLiveNotImplemented
}
