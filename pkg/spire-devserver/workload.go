package spiredevserver

import (
	"context"
	"crypto/rand"
	"crypto/x509"
	"net/url"
	"sync"
	"time"

	"github.com/cofide/cofide-sdk-go/pkg/id"
	"github.com/rs/zerolog"
	pb "github.com/spiffe/go-spiffe/v2/proto/spiffe/workload"
	"github.com/spiffe/go-spiffe/v2/spiffeid"
	"github.com/spiffe/go-spiffe/v2/svid/jwtsvid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

type Config struct {
	CA     *InMemoryCA
	Domain string

	// SVIDTTL and JWTTTL default to 4 and 5 minutes.
	SVIDTTL time.Duration
	JWTTTL  time.Duration

	Logger  zerolog.Logger
	Metrics *Metrics
}

type svidData struct {
	certBytes []byte
	keyBytes  []byte
	issued    time.Time
	expiry    time.Time
}

// rotateAt is the point half way through the SVID's lifetime.
func (d svidData) rotateAt() time.Time {
	return d.issued.Add(d.expiry.Sub(d.issued) / 2)
}

// WorkloadHandler implements the SPIFFE Workload API for callers attested by
// the transport credentials from NewCredentials.
type WorkloadHandler struct {
	c           Config
	trustDomain spiffeid.TrustDomain

	mu    sync.Mutex
	svids map[string]svidData

	pb.UnimplementedSpiffeWorkloadAPIServer
}

func NewWorkloadHandler(c Config) *WorkloadHandler {
	if c.SVIDTTL == 0 {
		c.SVIDTTL = 4 * time.Minute
	}
	if c.JWTTTL == 0 {
		c.JWTTTL = 5 * time.Minute
	}
	return &WorkloadHandler{
		c:           c,
		trustDomain: spiffeid.RequireTrustDomainFromString(c.Domain),
		svids:       make(map[string]svidData),
	}
}

func (w *WorkloadHandler) FetchX509SVID(req *pb.X509SVIDRequest, stream pb.SpiffeWorkloadAPI_FetchX509SVIDServer) error {
	ctx := stream.Context()
	sid, err := w.callerSpiffeID(ctx)
	if err != nil {
		return err
	}

	for {
		data, err := w.x509SVID(sid)
		if err != nil {
			return status.Errorf(codes.Internal, "failed to issue X509-SVID: %v", err)
		}

		err = stream.Send(&pb.X509SVIDResponse{
			Svids: []*pb.X509SVID{
				{
					SpiffeId:    sid.String(),
					X509Svid:    data.certBytes,
					X509SvidKey: data.keyBytes,
					Bundle:      w.c.CA.GetCACert(),
				},
			},
		})
		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Until(data.rotateAt())):
		}
	}
}

// x509SVID returns the cached X509-SVID of sid, minting a new one once the
// cached one is past half of its lifetime.
func (w *WorkloadHandler) x509SVID(sid *id.SPIFFEID) (svidData, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if data, ok := w.svids[sid.String()]; ok && time.Now().Before(data.rotateAt()) {
		return data, nil
	}

	key, err := GenerateKey(w.c.CA.KeyType)
	if err != nil {
		return svidData{}, err
	}
	pkcs8Key, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return svidData{}, err
	}

	certURL, err := url.Parse(sid.String())
	if err != nil {
		return svidData{}, err
	}
	csrBytes, err := x509.CreateCertificateRequest(rand.Reader, &x509.CertificateRequest{
		URIs: []*url.URL{certURL},
	}, key)
	if err != nil {
		return svidData{}, err
	}

	issued := time.Now()
	svidBytes, notAfter, err := w.c.CA.Sign(csrBytes, w.c.SVIDTTL)
	if err != nil {
		return svidData{}, err
	}

	data := svidData{
		certBytes: svidBytes,
		keyBytes:  pkcs8Key,
		issued:    issued,
		expiry:    notAfter,
	}
	w.svids[sid.String()] = data

	w.c.Logger.Info().Str("spiffe_id", sid.String()).Time("expiry", notAfter).Msg("Issued X509-SVID")
	w.c.Metrics.svidIssued(svidKindX509)
	return data, nil
}

func (w *WorkloadHandler) FetchX509Bundles(req *pb.X509BundlesRequest, stream pb.SpiffeWorkloadAPI_FetchX509BundlesServer) error {
	if _, err := w.callerSpiffeID(stream.Context()); err != nil {
		return err
	}

	err := stream.Send(&pb.X509BundlesResponse{
		Bundles: map[string][]byte{
			w.trustDomain.IDString(): w.c.CA.GetCACert(),
		},
	})
	if err != nil {
		return err
	}

	// the CA never rotates
	<-stream.Context().Done()
	return nil
}

func (w *WorkloadHandler) FetchJWTSVID(ctx context.Context, req *pb.JWTSVIDRequest) (*pb.JWTSVIDResponse, error) {
	if len(req.Audience) == 0 {
		return nil, status.Error(codes.InvalidArgument, "audience must be specified")
	}

	sid, err := w.callerSpiffeID(ctx)
	if err != nil {
		return nil, err
	}
	if req.SpiffeId != "" && req.SpiffeId != sid.String() {
		return nil, status.Errorf(codes.PermissionDenied, "caller is not entitled to %q", req.SpiffeId)
	}

	token, err := w.c.CA.SignWorkloadJWTSVID(ctx, WorkloadJWTSVIDParams{
		SPIFFEID: sid.ToSpiffeID(),
		TTL:      w.c.JWTTTL,
		Audience: req.Audience,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to sign JWT-SVID: %v", err)
	}

	w.c.Logger.Info().Str("spiffe_id", sid.String()).Strs("audience", req.Audience).Msg("Issued JWT-SVID")
	w.c.Metrics.svidIssued(svidKindJWT)

	return &pb.JWTSVIDResponse{
		Svids: []*pb.JWTSVID{
			{
				SpiffeId: sid.String(),
				Svid:     token,
			},
		},
	}, nil
}

func (w *WorkloadHandler) FetchJWTBundles(req *pb.JWTBundlesRequest, stream pb.SpiffeWorkloadAPI_FetchJWTBundlesServer) error {
	if _, err := w.callerSpiffeID(stream.Context()); err != nil {
		return err
	}

	bundleBytes, err := w.c.CA.JWTBundle(w.trustDomain).Marshal()
	if err != nil {
		return status.Errorf(codes.Internal, "failed to marshal JWT bundle: %v", err)
	}

	err = stream.Send(&pb.JWTBundlesResponse{
		Bundles: map[string][]byte{
			w.trustDomain.IDString(): bundleBytes,
		},
	})
	if err != nil {
		return err
	}

	<-stream.Context().Done()
	return nil
}

func (w *WorkloadHandler) ValidateJWTSVID(ctx context.Context, req *pb.ValidateJWTSVIDRequest) (*pb.ValidateJWTSVIDResponse, error) {
	if req.Audience == "" {
		return nil, status.Error(codes.InvalidArgument, "audience must be specified")
	}
	if req.Svid == "" {
		return nil, status.Error(codes.InvalidArgument, "svid must be specified")
	}
	if _, err := w.callerSpiffeID(ctx); err != nil {
		return nil, err
	}

	svid, err := jwtsvid.ParseAndValidate(req.Svid, w.c.CA.JWTBundle(w.trustDomain), []string{req.Audience})
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "failed to validate JWT-SVID: %v", err)
	}

	return &pb.ValidateJWTSVIDResponse{
		SpiffeId: svid.ID.String(),
	}, nil
}

// callerSpiffeID derives the SPIFFE ID of the caller attested during the
// handshake.
func (w *WorkloadHandler) callerSpiffeID(ctx context.Context) (*id.SPIFFEID, error) {
	p, ok := peer.FromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unable to get peer info")
	}
	ai, ok := p.AuthInfo.(AuthInfo)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unable to get auth info")
	}

	sid, err := ai.Caller.SPIFFEID(w.c.Domain)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to derive SPIFFE ID: %v", err)
	}
	return sid, nil
}
