package spiredevserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/cofide/cofide-sdk-go/pkg/id"
	"github.com/cofide/unixcred/pkg/peercred"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/credentials"
)

var (
	ErrInvalidConnection = errors.New("invalid connection")
	ErrClientHandshake   = errors.New("client handshake is not supported")
)

// CredentialsOptions configures the transport credentials returned by
// NewCredentials.
type CredentialsOptions struct {
	Logger  zerolog.Logger
	Metrics *Metrics

	// ResolveProcess looks up the caller's executable (and, where the kernel
	// does not report them, its groups) from its pid.
	ResolveProcess bool
}

type grpcCredentials struct {
	opts CredentialsOptions
}

// NewCredentials returns server side transport credentials that attest the
// caller of every accepted Unix socket connection from its peer credentials.
func NewCredentials(opts CredentialsOptions) credentials.TransportCredentials {
	return &grpcCredentials{opts: opts}
}

func (c *grpcCredentials) ClientHandshake(_ context.Context, _ string, conn net.Conn) (net.Conn, credentials.AuthInfo, error) {
	conn.Close()
	return nil, nil, ErrClientHandshake
}

func (c *grpcCredentials) ServerHandshake(conn net.Conn) (net.Conn, credentials.AuthInfo, error) {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		conn.Close()
		c.opts.Logger.Warn().Str("type", fmt.Sprintf("%T", conn)).Msg("Rejecting non-unix connection")
		c.opts.Metrics.attestation(resultRejected)
		return nil, nil, ErrInvalidConnection
	}

	info, err := readCallerInfo(unixConn)
	if err != nil {
		conn.Close()
		c.opts.Logger.Warn().Err(err).Msg("Unable to read peer credentials")
		c.opts.Metrics.attestation(resultFailed)
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidConnection, err)
	}
	info.Addr = unixConn.RemoteAddr()

	if c.opts.ResolveProcess {
		resolveProcess(context.Background(), &info)
	}

	event := c.opts.Logger.Debug().
		Uint32("uid", info.Identity.UID).
		Uint32("gid", info.Identity.GID).
		Uints32("groups", info.Groups).
		Str("bin", info.BinaryName)
	if pid, ok := info.Identity.PID(); ok {
		event = event.Int32("pid", pid)
	}
	event.Msg("Peer credentials")

	c.opts.Metrics.attestation(resultAttested)
	return conn, AuthInfo{Caller: info}, nil
}

func (c *grpcCredentials) Info() credentials.ProtocolInfo {
	return credentials.ProtocolInfo{
		SecurityProtocol: "spire-attestation",
		SecurityVersion:  "0.2",
		ServerName:       "spire-agent",
	}
}

func (c *grpcCredentials) Clone() credentials.TransportCredentials {
	credentialsCopy := *c
	return &credentialsCopy
}

func (c *grpcCredentials) OverrideServerName(_ string) error {
	return nil
}

// CallerInfo is the attested identity of a Workload API caller.
type CallerInfo struct {
	Addr     net.Addr
	Identity peercred.PeerIdentity

	// Groups is the caller's supplementary group list when the platform or
	// the process table exposes it.
	Groups     []uint32
	BinaryName string
}

// SPIFFEID derives the caller's SPIFFE ID in trustDomain. The pid and binary
// name only take part when they are known.
func (c CallerInfo) SPIFFEID(trustDomain string) (*id.SPIFFEID, error) {
	attrs := map[string]string{
		"uid": strconv.FormatUint(uint64(c.Identity.UID), 10),
		"gid": strconv.FormatUint(uint64(c.Identity.GID), 10),
	}
	if pid, ok := c.Identity.PID(); ok {
		attrs["pid"] = strconv.FormatInt(int64(pid), 10)
	}
	// can be empty if the user minispire runs as cannot inspect the caller
	if c.BinaryName != "" {
		attrs["bin"] = c.BinaryName
	}
	return id.NewID(trustDomain, attrs)
}

type AuthInfo struct {
	Caller CallerInfo
}

// AuthType returns the authentication type and allows us to
// conform to the gRPC AuthInfo interface
func (AuthInfo) AuthType() string {
	return "spire-attestation"
}
