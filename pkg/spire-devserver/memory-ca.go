package spiredevserver

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/cryptosigner"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/spiffe/go-spiffe/v2/bundle/jwtbundle"
	"github.com/spiffe/go-spiffe/v2/spiffeid"
	"github.com/spiffe/spire/pkg/common/cryptoutil"
	"github.com/spiffe/spire/pkg/common/jwtsvid"
)

// InMemoryCA is a throwaway certificate authority for local development. It
// signs X.509-SVIDs from CSRs and JWT-SVIDs with the same key.
type InMemoryCA struct {
	caKey       crypto.Signer
	caCert      *x509.Certificate
	caCertBytes []byte
	jwtKey      jwtKey

	KeyType KeyType
}

// jwtKey signs JWT-SVIDs. Tokens never outlive notAfter.
type jwtKey struct {
	signer   crypto.Signer
	kid      string
	notAfter time.Time
}

type KeyType int

const (
	KeyTypeRSA KeyType = iota
	KeyTypeECDSAP256
)

func (kt KeyType) String() string {
	switch kt {
	case KeyTypeRSA:
		return "rsa-2048"
	case KeyTypeECDSAP256:
		return "ecdsa-p256"
	default:
		return fmt.Sprintf("KeyType(%d)", int(kt))
	}
}

// ParseKeyType parses the configuration name of a key type.
func ParseKeyType(s string) (KeyType, error) {
	switch s {
	case "rsa-2048", "rsa":
		return KeyTypeRSA, nil
	case "ecdsa-p256", "ecdsa", "":
		return KeyTypeECDSAP256, nil
	}
	return 0, fmt.Errorf("unknown key_type %q", s)
}

// GenerateKey creates a private key of type kt.
func GenerateKey(kt KeyType) (crypto.Signer, error) {
	switch kt {
	case KeyTypeRSA:
		return rsa.GenerateKey(rand.Reader, 2048)
	case KeyTypeECDSAP256:
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	}
	return nil, fmt.Errorf("unsupported key type %s", kt)
}

func newSerial() (*big.Int, error) {
	return rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 127))
}

func NewInMemoryCA(kt KeyType) (*InMemoryCA, error) {
	caKey, err := GenerateKey(kt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CA key: %w", err)
	}
	caSerial, err := newSerial()
	if err != nil {
		return nil, fmt.Errorf("failed to generate CA serial: %w", err)
	}

	now := time.Now()
	caCert := &x509.Certificate{
		Subject: pkix.Name{
			Organization: []string{"Cofide Development"},
			Country:      []string{"Earth"},
		},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(time.Hour * 24 * 30), // 30 days, nobody should run this outside of development
		SerialNumber:          caSerial,
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
	}
	caCertBytes, err := x509.CreateCertificate(rand.Reader, caCert, caCert, caKey.Public(), caKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create CA cert: %w", err)
	}

	return &InMemoryCA{
		KeyType:     kt,
		caKey:       caKey,
		caCert:      caCert,
		caCertBytes: caCertBytes,

		jwtKey: jwtKey{
			signer:   caKey,
			kid:      "kid",
			notAfter: caCert.NotAfter,
		},
	}, nil
}

// Sign issues an X.509-SVID for the URI SAN of the DER encoded CSR. The SVID
// expires after ttl.
func (i *InMemoryCA) Sign(csrBytes []byte, ttl time.Duration) ([]byte, time.Time, error) {
	csr, err := x509.ParseCertificateRequest(csrBytes)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to parse CSR: %w", err)
	}
	if err := csr.CheckSignature(); err != nil {
		return nil, time.Time{}, fmt.Errorf("invalid CSR signature: %w", err)
	}
	if len(csr.URIs) != 1 {
		return nil, time.Time{}, fmt.Errorf("CSR must carry exactly one URI SAN, got %d", len(csr.URIs))
	}

	svidSerial, err := newSerial()
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to generate SVID serial: %w", err)
	}

	now := time.Now()
	svid := &x509.Certificate{
		URIs:         csr.URIs,
		NotBefore:    now.Add(-time.Minute),
		NotAfter:     now.Add(ttl),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		SerialNumber: svidSerial,
	}
	if svid.NotAfter.After(i.caCert.NotAfter) {
		svid.NotAfter = i.caCert.NotAfter
	}

	svidBytes, err := x509.CreateCertificate(rand.Reader, svid, i.caCert, csr.PublicKey, i.caKey)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to sign SVID: %w", err)
	}
	return svidBytes, svid.NotAfter, nil
}

func (i *InMemoryCA) GetCACert() []byte {
	return i.caCertBytes
}

// JWTBundle returns the JWT authorities of trustDomain.
func (i *InMemoryCA) JWTBundle(trustDomain spiffeid.TrustDomain) *jwtbundle.Bundle {
	return jwtbundle.FromJWTAuthorities(trustDomain, map[string]crypto.PublicKey{
		i.jwtKey.kid: i.jwtKey.signer.Public(),
	})
}

// WorkloadJWTSVIDParams describes a JWT-SVID to mint.
type WorkloadJWTSVIDParams struct {
	SPIFFEID spiffeid.ID
	Audience []string

	// TTL defaults to five minutes and is capped by the signing key's
	// expiry.
	TTL time.Duration
}

// SignWorkloadJWTSVID mints a JWT-SVID signed with the CA key.
func (i *InMemoryCA) SignWorkloadJWTSVID(ctx context.Context, params WorkloadJWTSVIDParams) (string, error) {
	if params.TTL == 0 {
		params.TTL = time.Minute * 5
	}
	if len(params.Audience) == 0 {
		return "", errors.New("JWT-SVID audience is required")
	}

	now := time.Now()
	expiry := now.Add(params.TTL)
	if expiry.After(i.jwtKey.notAfter) {
		expiry = i.jwtKey.notAfter
	}

	claims := jwt.Claims{
		Subject:  params.SPIFFEID.String(),
		Issuer:   "spire",
		Audience: params.Audience,
		Expiry:   jwt.NewNumericDate(expiry),
		IssuedAt: jwt.NewNumericDate(now),
	}

	alg, err := cryptoutil.JoseAlgFromPublicKey(i.jwtKey.signer.Public())
	if err != nil {
		return "", fmt.Errorf("failed to determine JWT key algorithm: %w", err)
	}

	jwtSigner, err := jose.NewSigner(
		jose.SigningKey{
			Algorithm: alg,
			Key: jose.JSONWebKey{
				Key:   cryptosigner.Opaque(i.jwtKey.signer),
				KeyID: i.jwtKey.kid,
			},
		},
		new(jose.SignerOptions).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("failed to configure JWT signer: %w", err)
	}

	signedToken, err := jwt.Signed(jwtSigner).Claims(claims).Serialize()
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT SVID: %w", err)
	}

	if _, err := i.ValidateWorkloadJWTSVID(signedToken, params.SPIFFEID); err != nil {
		return "", err
	}

	return signedToken, nil
}

// ValidateWorkloadJWTSVID checks the registered claims of a JWT-SVID minted
// for id. It does not verify the signature.
func (i *InMemoryCA) ValidateWorkloadJWTSVID(rawToken string, id spiffeid.ID) (*jwt.Claims, error) {
	token, err := jwt.ParseSigned(rawToken, jwtsvid.AllowedSignatureAlgorithms)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWT-SVID for validation: %w", err)
	}

	var claims jwt.Claims
	if err := token.UnsafeClaimsWithoutVerification(&claims); err != nil {
		return nil, fmt.Errorf("failed to extract JWT-SVID claims for validation: %w", err)
	}

	now := time.Now()
	switch {
	case claims.Subject != id.String():
		return nil, fmt.Errorf(`invalid JWT-SVID "sub" claim: expected %q but got %q`, id, claims.Subject)
	case claims.Expiry == nil:
		return nil, errors.New(`invalid JWT-SVID "exp" claim: required but missing`)
	case !claims.Expiry.Time().After(now):
		return nil, fmt.Errorf(`invalid JWT-SVID "exp" claim: already expired as of %s`, claims.Expiry.Time().Format(time.RFC3339))
	case claims.NotBefore != nil && claims.NotBefore.Time().After(now):
		return nil, fmt.Errorf(`invalid JWT-SVID "nbf" claim: not yet valid until %s`, claims.NotBefore.Time().Format(time.RFC3339))
	case len(claims.Audience) == 0:
		return nil, errors.New(`invalid JWT-SVID "aud" claim: required but missing`)
	}
	return &claims, nil
}
