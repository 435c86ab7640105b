package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerGenerateAndParse(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("job-1", "reports/file.csv")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.False(t, expiresAt.IsZero())

	jobID, path, parsedExpiry, err := signer.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "job-1", jobID)
	require.Equal(t, "reports/file.csv", path)
	require.WithinDuration(t, expiresAt, parsedExpiry, time.Second)
}

func TestSignedURLSignerExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)

	ts := time.Now().Add(-time.Minute).Unix()
	encodedPath := base64.RawURLEncoding.EncodeToString([]byte("reports/file.csv"))
	payload := fmt.Sprintf("job-1|%d|%s", ts, encodedPath)
	mac := hmac.New(sha256.New, []byte("secret"))
	_, _ = mac.Write([]byte(payload))
	token := strings.Join([]string{
		"job-1",
		fmt.Sprintf("%d", ts),
		encodedPath,
		hex.EncodeToString(mac.Sum(nil)),
	}, ".")

	_, _, _, err := signer.Parse(token)
	require.ErrorContains(t, err, "expired")
}

func TestSignedURLSignerTamperedSignature(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Generate("job-1", "reports/file.csv")
	require.NoError(t, err)

	other := NewSignedURLSigner("other-secret", time.Hour)
	_, _, _, err = other.Parse(token)
	require.ErrorContains(t, err, "signature")

	_, _, _, err = signer.Parse("not.a.token")
	require.Error(t, err)
}
