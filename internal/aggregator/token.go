package aggregator

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// Sign builds the per-request provider token: an HS256 JWT over
// {timestamp, partnerId, reqid}. Tokens embed the timestamp and must not be reused.
func Sign(key []byte, partnerID string, timestamp int64, reqID string) (string, error) {
	if len(key) == 0 {
		return "", errors.New("aggregator signing key is empty")
	}

	claims := jwt.MapClaims{
		"timestamp": timestamp,
		"partnerId": partnerID,
		"reqid":     reqID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(key)
}
