package predictor

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func dialPredictor(t *testing.T, p *Pipeline) (*GRPCClient, *grpc.ClientConn) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	RegisterPredictorServer(s, NewGRPCServer(p, nil))
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = cc.Close() })
	return NewGRPCClient(cc), cc
}

func ctxT(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestGRPC_Predict(t *testing.T) {
	p, _, _ := newTestPipeline(0)
	c, _ := dialPredictor(t, p)

	resp, err := c.Predict(ctxT(t), map[string]any{"m": 1023.0, "t": nil, "h": nil})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if resp.Prediction != 1 || resp.Time == nil || *resp.Time != 0.9999999999999999 {
		t.Errorf("got %+v", resp)
	}

	skip, _, _ := newTestPipeline(1)
	c, _ = dialPredictor(t, skip)
	resp, err = c.Predict(ctxT(t), map[string]any{"m": 400.0, "t": 20.0, "h": 60.0})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if resp.Prediction != 0 || resp.Time != nil {
		t.Errorf("got %+v", resp)
	}
	if d := resp.Decision(); d.ShouldIrrigate {
		t.Errorf("decision: %+v", d)
	}
}

func TestGRPC_ErrorMapping(t *testing.T) {
	ready, _, _ := newTestPipeline(0)
	failing := NewPipeline(&ModelBundle{Scaler: &fakeScaler{}, Classifier: &fakeClassifier{err: errBoom}}, nil)

	tests := []struct {
		name    string
		p       *Pipeline
		payload map[string]any
		code    codes.Code
		check   func(error) bool
	}{
		{"invalid", ready, map[string]any{"h": 1.0, "t": 1.0}, codes.InvalidArgument,
			func(err error) bool { var ve *ValidationError; return errors.As(err, &ve) }},
		{"unavailable", NewPipeline(nil, nil), map[string]any{"m": 1.0}, codes.Unavailable,
			func(err error) bool { return errors.Is(err, ErrServiceUnavailable) }},
		{"prediction", failing, map[string]any{"m": 1.0, "t": nil, "h": nil}, codes.Internal,
			func(err error) bool { var pe *PredictionError; return errors.As(err, &pe) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, cc := dialPredictor(t, tt.p)
			_, err := c.Predict(ctxT(t), tt.payload)
			if !tt.check(err) {
				t.Errorf("client error: got %T %v", err, err)
			}
			if HTTPStatus(err) == 200 {
				t.Errorf("client error maps to 200")
			}

			in, _ := structpb.NewStruct(tt.payload)
			rawErr := cc.Invoke(ctxT(t), predictMethod, in, new(structpb.Struct))
			if got := status.Code(rawErr); got != tt.code {
				t.Errorf("code: got %v, want %v", got, tt.code)
			}
		})
	}
}

func TestGRPC_ValidationMessageSurvives(t *testing.T) {
	p, _, _ := newTestPipeline(0)
	c, _ := dialPredictor(t, p)
	_, err := c.Predict(ctxT(t), map[string]any{"h": 1.0, "t": 1.0, "m": "wet"})
	if err == nil || err.Error() != "non-numeric value: m" {
		t.Errorf("got %v", err)
	}
}

func TestErrorFromStatus_Calculation(t *testing.T) {
	err := errorFromStatus(statusFor(&CalculationError{Err: errNonFinite}).Err())
	var ce *CalculationError
	if !errors.As(err, &ce) {
		t.Fatalf("got %T %v", err, err)
	}
	if err.Error() != "Error calculating irrigation duration: non-finite value" {
		t.Errorf("message: %q", err.Error())
	}
}

func TestErrorFromStatus_Transport(t *testing.T) {
	err := errorFromStatus(status.Error(codes.Unavailable, "connection refused"))
	if errors.Is(err, ErrServiceUnavailable) {
		t.Fatal("transport failure mistaken for unloaded artifacts")
	}
}
