package spiredevserver

import (
	"context"
	"crypto/x509"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/spiffe/go-spiffe/v2/bundle/jwtbundle"
	pb "github.com/spiffe/go-spiffe/v2/proto/spiffe/workload"
	"github.com/spiffe/go-spiffe/v2/spiffeid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

type testServer struct {
	client  pb.SpiffeWorkloadAPIClient
	ca      *InMemoryCA
	metrics *Metrics
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()

	ca, err := NewInMemoryCA(KeyTypeECDSAP256)
	require.NoError(t, err)
	metrics := NewMetrics(prometheus.NewRegistry())

	socketPath := filepath.Join(shortTempDir(t), "api.sock")
	lis, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	srv := grpc.NewServer(grpc.Creds(NewCredentials(CredentialsOptions{
		Logger:  zerolog.Nop(),
		Metrics: metrics,
	})))
	pb.RegisterSpiffeWorkloadAPIServer(srv, NewWorkloadHandler(Config{
		CA:      ca,
		Domain:  "example.com",
		Logger:  zerolog.Nop(),
		Metrics: metrics,
	}))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("unix://"+socketPath, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return &testServer{
		client:  pb.NewSpiffeWorkloadAPIClient(conn),
		ca:      ca,
		metrics: metrics,
	}
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestWorkloadJWTSVID(t *testing.T) {
	ts := startTestServer(t)
	ctx := testContext(t)

	resp, err := ts.client.FetchJWTSVID(ctx, &pb.JWTSVIDRequest{Audience: []string{"db"}})
	require.NoError(t, err)
	require.Len(t, resp.Svids, 1)
	svid := resp.Svids[0]
	assert.Contains(t, svid.SpiffeId, "spiffe://example.com/")

	valid, err := ts.client.ValidateJWTSVID(ctx, &pb.ValidateJWTSVIDRequest{Audience: "db", Svid: svid.Svid})
	require.NoError(t, err)
	assert.Equal(t, svid.SpiffeId, valid.SpiffeId)

	_, err = ts.client.ValidateJWTSVID(ctx, &pb.ValidateJWTSVIDRequest{Audience: "cache", Svid: svid.Svid})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	assert.Equal(t, 1.0, testutil.ToFloat64(ts.metrics.svidsIssued.WithLabelValues(svidKindJWT)))
}

func TestWorkloadJWTSVIDErrors(t *testing.T) {
	ts := startTestServer(t)
	ctx := testContext(t)

	_, err := ts.client.FetchJWTSVID(ctx, &pb.JWTSVIDRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = ts.client.FetchJWTSVID(ctx, &pb.JWTSVIDRequest{
		Audience: []string{"db"},
		SpiffeId: "spiffe://example.com/someone-else",
	})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	_, err = ts.client.ValidateJWTSVID(ctx, &pb.ValidateJWTSVIDRequest{Audience: "db"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = ts.client.ValidateJWTSVID(ctx, &pb.ValidateJWTSVIDRequest{Svid: "x"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestWorkloadX509SVID(t *testing.T) {
	ts := startTestServer(t)
	ctx := testContext(t)

	jwtResp, err := ts.client.FetchJWTSVID(ctx, &pb.JWTSVIDRequest{Audience: []string{"db"}})
	require.NoError(t, err)
	callerID := jwtResp.Svids[0].SpiffeId

	stream, err := ts.client.FetchX509SVID(ctx, &pb.X509SVIDRequest{})
	require.NoError(t, err)
	resp, err := stream.Recv()
	require.NoError(t, err)
	require.Len(t, resp.Svids, 1)

	svid := resp.Svids[0]
	assert.Equal(t, callerID, svid.SpiffeId)
	assert.Equal(t, ts.ca.GetCACert(), svid.Bundle)

	cert, err := x509.ParseCertificate(svid.X509Svid)
	require.NoError(t, err)
	require.Len(t, cert.URIs, 1)
	assert.Equal(t, callerID, cert.URIs[0].String())

	key, err := x509.ParsePKCS8PrivateKey(svid.X509SvidKey)
	require.NoError(t, err)
	assert.NotNil(t, key)

	// a second stream is served from the cache
	stream2, err := ts.client.FetchX509SVID(ctx, &pb.X509SVIDRequest{})
	require.NoError(t, err)
	resp2, err := stream2.Recv()
	require.NoError(t, err)
	assert.Equal(t, svid.X509Svid, resp2.Svids[0].X509Svid)
	assert.Equal(t, 1.0, testutil.ToFloat64(ts.metrics.svidsIssued.WithLabelValues(svidKindX509)))
}

func TestWorkloadBundles(t *testing.T) {
	ts := startTestServer(t)
	ctx := testContext(t)

	x509Stream, err := ts.client.FetchX509Bundles(ctx, &pb.X509BundlesRequest{})
	require.NoError(t, err)
	x509Resp, err := x509Stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, ts.ca.GetCACert(), x509Resp.Bundles["spiffe://example.com"])

	jwtStream, err := ts.client.FetchJWTBundles(ctx, &pb.JWTBundlesRequest{})
	require.NoError(t, err)
	jwtResp, err := jwtStream.Recv()
	require.NoError(t, err)

	td := spiffeid.RequireTrustDomainFromString("example.com")
	bundle, err := jwtbundle.Parse(td, jwtResp.Bundles["spiffe://example.com"])
	require.NoError(t, err)
	assert.True(t, bundle.HasJWTAuthority("kid"))
}

func TestWorkloadRejectsUnattestedCaller(t *testing.T) {
	ca, err := NewInMemoryCA(KeyTypeECDSAP256)
	require.NoError(t, err)
	wl := NewWorkloadHandler(Config{CA: ca, Domain: "example.com"})

	_, err = wl.FetchJWTSVID(context.Background(), &pb.JWTSVIDRequest{Audience: []string{"db"}})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestSVIDDataRotateAt(t *testing.T) {
	issued := time.Now()
	d := svidData{issued: issued, expiry: issued.Add(4 * time.Minute)}
	assert.Equal(t, issued.Add(2*time.Minute), d.rotateAt())
}
