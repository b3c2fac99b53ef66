package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

type BaseSuite struct {
	suite.Suite
	Config    Config
	indexWait time.Duration
	client    *http.Client
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	s.indexWait, err = time.ParseDuration(s.Config.IndexWait)
	s.Require().NoError(err)
	s.client = &http.Client{Timeout: 10 * time.Second}
}

func (s *BaseSuite) header(t *testing.T, name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)
}

// Call sends a JSON request to the API and decodes the JSON answer into out, if any.
func (s *BaseSuite) Call(name, method, path string, body any, out any) *http.Response {
	t := s.T()
	s.header(t, name)

	var reader io.Reader
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	request, err := http.NewRequest(method, s.Config.APIAddr+path, reader)
	s.Require().NoError(err)
	request.Header.Set("Content-Type", "application/json")

	start := time.Now()
	response, err := s.client.Do(request)
	s.Require().NoError(err, "Failed to reach the API at "+s.Config.APIAddr)
	defer response.Body.Close()
	payload, err := io.ReadAll(response.Body)
	s.Require().NoError(err)

	logBuilder := strings.Builder{}
	fmt.Fprintf(&logBuilder, "HTTP %s %s [%d] in %v", method, path, response.StatusCode, time.Since(start))
	if s.Config.DebugJSON {
		if raw != nil {
			fmt.Fprintln(&logBuilder, "\nREQUEST:")
			fmt.Fprintln(&logBuilder, string(raw))
		}
		fmt.Fprintln(&logBuilder, "RESPONSE:")
		fmt.Fprintln(&logBuilder, string(payload))
	}
	t.Log(logBuilder.String())

	if out != nil && len(payload) > 0 {
		s.Require().NoError(json.Unmarshal(payload, out), string(payload))
	}
	return response
}

// GrpcConn initializes a gRPC connection with logging, colors, and JSON debugging
func (s *BaseSuite) GrpcConn(t *testing.T, name string, addr string) *grpc.ClientConn {
	s.header(t, name)

	marshaler := protojson.MarshalOptions{
		UseProtoNames:   true,
		Multiline:       true,
		EmitUnpopulated: true,
	}

	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
			start := time.Now()
			err := invoker(ctx, method, req, reply, cc, opts...)

			logBuilder := strings.Builder{}
			fmt.Fprintf(&logBuilder, "GRPC %s [%s] in %v", method, status.Code(err), time.Since(start))
			if s.Config.DebugJSON {
				fmt.Fprintln(&logBuilder, "\nREQUEST:")
				fmt.Fprintln(&logBuilder, marshaler.Format(req.(proto.Message)))
				if err != nil {
					fmt.Fprintln(&logBuilder, "ERROR:", err)
				} else {
					fmt.Fprintln(&logBuilder, "RESPONSE:")
					fmt.Fprintln(&logBuilder, marshaler.Format(reply.(proto.Message)))
				}
			}
			t.Log(logBuilder.String())
			return err
		}),
	)
	s.Require().NoError(err, "Failed to connect to gRPC server at "+addr)
	return conn
}

// WithHealth provides a grpc health client within a contextual test step
func (s *BaseSuite) WithHealth(name string, fn func(ctx context.Context, client healthpb.HealthClient)) {
	conn := s.GrpcConn(s.T(), name, s.Config.GrpcAddr)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	fn(ctx, healthpb.NewHealthClient(conn))
}
