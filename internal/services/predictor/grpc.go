package predictor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service. Messages are
// google.protobuf.Struct carrying the same keys as the HTTP API.
const (
	ServiceName   = "irrigation.predictor.v1.PredictorService"
	predictMethod = "/" + ServiceName + "/Predict"
	errorDomain   = "irrigation.predictor"
)

// ErrorInfo reasons attached to failed Predict calls.
const (
	ReasonUnavailable = "ARTIFACTS_NOT_LOADED"
	ReasonInvalid     = "INVALID_READING"
	ReasonPrediction  = "PREDICTION_FAILED"
	ReasonCalculation = "CALCULATION_FAILED"
)

// PredictorServer is the server API for PredictorService.
type PredictorServer interface {
	Predict(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var predictorServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PredictorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Predict", Handler: predictHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "irrigation/predictor/v1/predictor.proto",
}

// RegisterPredictorServer registers srv on s.
func RegisterPredictorServer(s grpc.ServiceRegistrar, srv PredictorServer) {
	s.RegisterService(&predictorServiceDesc, srv)
}

func predictHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PredictorServer).Predict(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: predictMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PredictorServer).Predict(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// GRPCServer exposes a Pipeline as PredictorService.
type GRPCServer struct {
	pipeline *Pipeline
	metrics  *Metrics
}

var _ PredictorServer = (*GRPCServer)(nil)

func NewGRPCServer(p *Pipeline, m *Metrics) *GRPCServer {
	return &GRPCServer{pipeline: p, metrics: m}
}

func (s *GRPCServer) Predict(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	decision, err := s.pipeline.Decide(req.AsMap())
	s.metrics.Observe("grpc", decision, err)
	if err != nil {
		return nil, statusFor(err).Err()
	}
	return responseStruct(NewResponse(decision))
}

func statusFor(err error) *status.Status {
	code, reason := codes.Internal, ReasonPrediction
	var (
		ve *ValidationError
		ce *CalculationError
	)
	switch {
	case errors.Is(err, ErrServiceUnavailable):
		code, reason = codes.Unavailable, ReasonUnavailable
	case errors.As(err, &ve):
		code, reason = codes.InvalidArgument, ReasonInvalid
	case errors.As(err, &ce):
		reason = ReasonCalculation
	}
	st := status.New(code, ErrorMessage(err))
	if withInfo, derr := st.WithDetails(&errdetails.ErrorInfo{Reason: reason, Domain: errorDomain}); derr == nil {
		return withInfo
	}
	return st
}

func responseStruct(r Response) (*structpb.Struct, error) {
	fields := map[string]any{"prediction": r.Prediction, "time": nil}
	if r.Time != nil {
		fields["time"] = *r.Time
	}
	return structpb.NewStruct(fields)
}

func responseFromStruct(s *structpb.Struct) (Response, error) {
	m := s.AsMap()
	p, ok := m["prediction"].(float64)
	if !ok {
		return Response{}, fmt.Errorf("predictor: response without prediction")
	}
	out := Response{Prediction: int(p)}
	if t, ok := m["time"].(float64); ok {
		out.Time = &t
	}
	return out, nil
}

// GRPCClient calls a remote PredictorService.
type GRPCClient struct {
	cc grpc.ClientConnInterface
}

func NewGRPCClient(cc grpc.ClientConnInterface) *GRPCClient {
	return &GRPCClient{cc: cc}
}

// Predict sends the payload and maps failures back onto the pipeline error
// kinds. Transport errors are returned wrapped as they are.
func (c *GRPCClient) Predict(ctx context.Context, payload map[string]any) (Response, error) {
	in, err := structpb.NewStruct(payload)
	if err != nil {
		return Response{}, fmt.Errorf("predictor: encode request: %w", err)
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, predictMethod, in, out); err != nil {
		return Response{}, errorFromStatus(err)
	}
	return responseFromStruct(out)
}

func errorFromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("predictor rpc: %w", err)
	}
	for _, d := range st.Details() {
		info, ok := d.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != errorDomain {
			continue
		}
		msg := errors.New(st.Message())
		switch info.GetReason() {
		case ReasonUnavailable:
			return ErrServiceUnavailable
		case ReasonInvalid:
			return &ValidationError{Err: msg}
		case ReasonCalculation:
			return &CalculationError{Err: errors.New(strings.TrimPrefix(st.Message(), calculationPrefix))}
		default:
			return &PredictionError{Stage: "remote", Err: msg}
		}
	}
	return fmt.Errorf("predictor rpc: %w", err)
}
