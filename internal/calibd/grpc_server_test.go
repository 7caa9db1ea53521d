package calibd

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func newBufconnClient(t *testing.T, srv CalibrationServiceServer) *CalibrationClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	RegisterCalibrationServiceServer(gs, srv)
	go func() {
		_ = gs.Serve(lis)
	}()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("grpc.NewClient error: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewCalibrationClient(conn)
}

func TestGRPCCalibrationLifecycle(t *testing.T) {
	store, exec := newTestExecutor(simulatedRunner())
	client := newBufconnClient(t, NewCalibrationGRPCServer(store, exec))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var started struct {
		Job Job `json:"job"`
	}
	err := client.Call(ctx, "StartCalibration", map[string]any{
		"id":          "cal-grpc",
		"pulse_types": []string{"Gaussian"},
		"steps":       3,
	}, &started)
	if err != nil {
		t.Fatalf("StartCalibration error: %v", err)
	}
	if started.Job.ID != "cal-grpc" || started.Job.Progress.Total != 9 {
		t.Fatalf("unexpected job %+v", started.Job)
	}
	exec.Wait()

	var got struct {
		Job Job `json:"job"`
	}
	if err := client.Call(ctx, "GetCalibration", map[string]any{"id": "cal-grpc"}, &got); err != nil {
		t.Fatalf("GetCalibration error: %v", err)
	}
	if got.Job.Status != JobCompleted || got.Job.Best == nil || got.Job.Evaluated != 9 {
		t.Fatalf("unexpected completed job %+v", got.Job)
	}
	if got.Job.CreatedAtUnixMs == 0 || got.Job.EndedAtUnixMs < got.Job.CreatedAtUnixMs {
		t.Fatalf("timestamps not preserved: %+v", got.Job)
	}

	var list struct {
		Jobs []Job `json:"jobs"`
	}
	if err := client.Call(ctx, "ListCalibrations", map[string]any{"status": "COMPLETED"}, &list); err != nil {
		t.Fatalf("ListCalibrations error: %v", err)
	}
	if len(list.Jobs) != 1 || list.Jobs[0].ID != "cal-grpc" {
		t.Fatalf("unexpected list %+v", list.Jobs)
	}

	err = client.Call(ctx, "StopCalibration", map[string]any{"id": "cal-grpc"}, nil)
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("expected FailedPrecondition, got %v", err)
	}
}

func TestGRPCErrors(t *testing.T) {
	store, exec := newTestExecutor(simulatedRunner())
	client := newBufconnClient(t, NewCalibrationGRPCServer(store, exec))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tests := []struct {
		name   string
		method string
		req    map[string]any
		code   codes.Code
	}{
		{"get missing id", "GetCalibration", map[string]any{}, codes.InvalidArgument},
		{"get unknown", "GetCalibration", map[string]any{"id": "nope"}, codes.NotFound},
		{"stop unknown", "StopCalibration", map[string]any{"id": "nope"}, codes.NotFound},
		{"stop missing id", "StopCalibration", map[string]any{}, codes.InvalidArgument},
		{"bad pulse", "StartCalibration", map[string]any{"pulse_types": []string{"Triangle"}}, codes.InvalidArgument},
		{"bad range", "StartCalibration", map[string]any{"amplitude_range": map[string]float64{"min": 2, "max": 1}}, codes.InvalidArgument},
		{"experiment out of range", "RunExperiment", map[string]any{"pulse_type": "Square", "amplitude": 5.0, "frequency": 6.5}, codes.InvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Call(ctx, tt.method, tt.req, nil)
			if got := status.Code(err); got != tt.code {
				t.Fatalf("expected %s, got %s (%v)", tt.code, got, err)
			}
		})
	}
}

func TestGRPCRunExperiment(t *testing.T) {
	store, exec := newTestExecutor(simulatedRunner())
	client := newBufconnClient(t, NewCalibrationGRPCServer(store, exec))

	var resp struct {
		Result struct {
			PulseType string       `json:"pulse_type"`
			Beta      *float64     `json:"beta"`
			IQData0   [][2]float64 `json:"iq_data_0"`
			Fidelity  float64      `json:"fidelity"`
		} `json:"result"`
	}
	err := client.Call(context.Background(), "RunExperiment", map[string]any{
		"pulse_type": "Gaussian",
		"amplitude":  1.0,
		"frequency":  6.5,
		"num_shots":  8,
	}, &resp)
	if err != nil {
		t.Fatalf("RunExperiment error: %v", err)
	}
	if resp.Result.PulseType != "Gaussian" || resp.Result.Beta != nil {
		t.Fatalf("unexpected result %+v", resp.Result)
	}
	if len(resp.Result.IQData0) != 8 {
		t.Fatalf("expected 8 shots, got %d", len(resp.Result.IQData0))
	}
}
