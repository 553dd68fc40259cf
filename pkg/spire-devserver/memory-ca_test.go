package spiredevserver

import (
	"context"
	"crypto/rand"
	"crypto/x509"
	"net/url"
	"testing"
	"time"

	"github.com/spiffe/go-spiffe/v2/spiffeid"
	"github.com/spiffe/go-spiffe/v2/svid/jwtsvid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCSR(t *testing.T, kt KeyType, uris ...string) []byte {
	t.Helper()
	key, err := GenerateKey(kt)
	require.NoError(t, err)

	var parsed []*url.URL
	for _, u := range uris {
		pu, err := url.Parse(u)
		require.NoError(t, err)
		parsed = append(parsed, pu)
	}
	csr, err := x509.CreateCertificateRequest(rand.Reader, &x509.CertificateRequest{URIs: parsed}, key)
	require.NoError(t, err)
	return csr
}

func TestParseKeyType(t *testing.T) {
	tests := []struct {
		input   string
		want    KeyType
		wantErr bool
	}{
		{input: "", want: KeyTypeECDSAP256},
		{input: "ecdsa", want: KeyTypeECDSAP256},
		{input: "ecdsa-p256", want: KeyTypeECDSAP256},
		{input: "rsa", want: KeyTypeRSA},
		{input: "rsa-2048", want: KeyTypeRSA},
		{input: "ed25519", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseKeyType(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInMemoryCASign(t *testing.T) {
	for _, kt := range []KeyType{KeyTypeECDSAP256, KeyTypeRSA} {
		t.Run(kt.String(), func(t *testing.T) {
			ca, err := NewInMemoryCA(kt)
			require.NoError(t, err)

			caCert, err := x509.ParseCertificate(ca.GetCACert())
			require.NoError(t, err)
			assert.True(t, caCert.IsCA)

			svidBytes, notAfter, err := ca.Sign(newTestCSR(t, kt, "spiffe://example.com/workload"), time.Hour)
			require.NoError(t, err)

			svid, err := x509.ParseCertificate(svidBytes)
			require.NoError(t, err)
			require.Len(t, svid.URIs, 1)
			assert.Equal(t, "spiffe://example.com/workload", svid.URIs[0].String())
			assert.WithinDuration(t, time.Now().Add(time.Hour), notAfter, time.Minute)
			assert.NoError(t, svid.CheckSignatureFrom(caCert))
		})
	}
}

func TestInMemoryCASignCapsExpiry(t *testing.T) {
	ca, err := NewInMemoryCA(KeyTypeECDSAP256)
	require.NoError(t, err)

	_, notAfter, err := ca.Sign(newTestCSR(t, KeyTypeECDSAP256, "spiffe://example.com/w"), 365*24*time.Hour)
	require.NoError(t, err)
	assert.True(t, notAfter.Equal(ca.caCert.NotAfter))
}

func TestInMemoryCASignRejectsBadCSR(t *testing.T) {
	ca, err := NewInMemoryCA(KeyTypeECDSAP256)
	require.NoError(t, err)

	_, _, err = ca.Sign([]byte("not a csr"), time.Hour)
	assert.Error(t, err)

	_, _, err = ca.Sign(newTestCSR(t, KeyTypeECDSAP256), time.Hour)
	assert.ErrorContains(t, err, "exactly one URI SAN")

	_, _, err = ca.Sign(newTestCSR(t, KeyTypeECDSAP256, "spiffe://example.com/a", "spiffe://example.com/b"), time.Hour)
	assert.ErrorContains(t, err, "exactly one URI SAN")
}

func TestInMemoryCAJWTSVID(t *testing.T) {
	ca, err := NewInMemoryCA(KeyTypeECDSAP256)
	require.NoError(t, err)

	td := spiffeid.RequireTrustDomainFromString("example.com")
	sid := spiffeid.RequireFromPath(td, "/workload")

	token, err := ca.SignWorkloadJWTSVID(context.Background(), WorkloadJWTSVIDParams{
		SPIFFEID: sid,
		TTL:      time.Minute,
		Audience: []string{"db"},
	})
	require.NoError(t, err)

	svid, err := jwtsvid.ParseAndValidate(token, ca.JWTBundle(td), []string{"db"})
	require.NoError(t, err)
	assert.Equal(t, sid, svid.ID)
	assert.WithinDuration(t, time.Now().Add(time.Minute), svid.Expiry, 5*time.Second)

	_, err = jwtsvid.ParseAndValidate(token, ca.JWTBundle(td), []string{"other"})
	assert.Error(t, err)

	claims, err := ca.ValidateWorkloadJWTSVID(token, sid)
	require.NoError(t, err)
	assert.Equal(t, sid.String(), claims.Subject)

	_, err = ca.ValidateWorkloadJWTSVID(token, spiffeid.RequireFromPath(td, "/other"))
	assert.ErrorContains(t, err, `"sub" claim`)
}

func TestInMemoryCAJWTSVIDRequiresAudience(t *testing.T) {
	ca, err := NewInMemoryCA(KeyTypeECDSAP256)
	require.NoError(t, err)

	_, err = ca.SignWorkloadJWTSVID(context.Background(), WorkloadJWTSVIDParams{
		SPIFFEID: spiffeid.RequireFromString("spiffe://example.com/w"),
	})
	assert.Error(t, err)
}

func TestInMemoryCAJWTSVIDCappedByKey(t *testing.T) {
	ca, err := NewInMemoryCA(KeyTypeECDSAP256)
	require.NoError(t, err)
	ca.jwtKey.notAfter = time.Now().Add(30 * time.Second)

	td := spiffeid.RequireTrustDomainFromString("example.com")
	token, err := ca.SignWorkloadJWTSVID(context.Background(), WorkloadJWTSVIDParams{
		SPIFFEID: spiffeid.RequireFromPath(td, "/w"),
		TTL:      time.Hour,
		Audience: []string{"db"},
	})
	require.NoError(t, err)

	svid, err := jwtsvid.ParseAndValidate(token, ca.JWTBundle(td), []string{"db"})
	require.NoError(t, err)
	assert.WithinDuration(t, ca.jwtKey.notAfter, svid.Expiry, time.Second)
}
