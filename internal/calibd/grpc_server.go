package calibd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GoSim-25-26J-441/readout-calibration/internal/experiment"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/logger"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "readout.v1.CalibrationService"

// CalibrationServiceServer is the gRPC surface of the daemon. Requests and
// responses are google.protobuf.Struct messages carrying the JSON shapes of
// the HTTP API.
type CalibrationServiceServer interface {
	RunExperiment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StartCalibration(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetCalibration(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StopCalibration(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListCalibrations(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(CalibrationServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, call unaryMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(CalibrationServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(CalibrationServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// CalibrationServiceDesc describes the service for grpc.Server.RegisterService.
var CalibrationServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CalibrationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("RunExperiment", CalibrationServiceServer.RunExperiment),
		unaryHandler("StartCalibration", CalibrationServiceServer.StartCalibration),
		unaryHandler("GetCalibration", CalibrationServiceServer.GetCalibration),
		unaryHandler("StopCalibration", CalibrationServiceServer.StopCalibration),
		unaryHandler("ListCalibrations", CalibrationServiceServer.ListCalibrations),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "readout/v1/calibration.proto",
}

// RegisterCalibrationServiceServer registers srv on s.
func RegisterCalibrationServiceServer(s grpc.ServiceRegistrar, srv CalibrationServiceServer) {
	s.RegisterService(&CalibrationServiceDesc, srv)
}

// CalibrationGRPCServer implements CalibrationServiceServer over a JobStore and Executor.
type CalibrationGRPCServer struct {
	store    *JobStore
	Executor *Executor
}

func NewCalibrationGRPCServer(store *JobStore, executor *Executor) *CalibrationGRPCServer {
	return &CalibrationGRPCServer{
		store:    store,
		Executor: executor,
	}
}

func (s *CalibrationGRPCServer) RunExperiment(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var body experimentRequest
	if err := fromStruct(in, &body); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	req, err := body.toRequest()
	if err != nil {
		return nil, grpcError(err)
	}
	res, err := s.Executor.RunExperiment(ctx, req)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(map[string]any{"result": res})
}

func (s *CalibrationGRPCServer) StartCalibration(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req createCalibrationRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	params, err := req.params()
	if err != nil {
		return nil, grpcError(err)
	}
	job, err := s.Executor.Submit(req.ID, params)
	if err != nil {
		return nil, grpcError(err)
	}
	logger.Info("calibration submitted (gRPC)", "job_id", job.ID)
	return toStruct(map[string]any{"job": job})
}

func (s *CalibrationGRPCServer) GetCalibration(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id := jobID(in)
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, ErrJobIDMissing.Error())
	}
	job, ok := s.store.Get(id)
	if !ok {
		return nil, status.Error(codes.NotFound, "job not found")
	}
	return toStruct(map[string]any{"job": job})
}

func (s *CalibrationGRPCServer) StopCalibration(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id := jobID(in)
	job, err := s.Executor.Stop(id)
	if err != nil {
		return nil, grpcError(err)
	}
	logger.Info("calibration cancelled (gRPC)", "job_id", id)
	return toStruct(map[string]any{"job": job})
}

func (s *CalibrationGRPCServer) ListCalibrations(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req struct {
		Limit  int    `json:"limit"`
		Offset int    `json:"offset"`
		Status string `json:"status"`
	}
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	jobs := s.store.List(req.Limit, req.Offset, ParseJobStatus(req.Status))
	return toStruct(map[string]any{"jobs": jobs})
}

func jobID(in *structpb.Struct) string {
	if in == nil {
		return ""
	}
	return in.GetFields()["id"].GetStringValue()
}

func grpcError(err error) error {
	switch {
	case errors.Is(err, ErrJobNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrJobIDMissing):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrJobTerminal):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, ErrJobExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case experiment.IsInputError(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrRateLimited):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, experiment.ErrHardware):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// toStruct converts a JSON-encodable value into a Struct.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	return out, nil
}

// fromStruct decodes a Struct into v through its JSON form.
func fromStruct(in *structpb.Struct, v any) error {
	if in == nil {
		in = &structpb.Struct{}
	}
	data, err := protojson.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// CalibrationClient calls CalibrationService over a client connection.
type CalibrationClient struct {
	cc grpc.ClientConnInterface
}

func NewCalibrationClient(cc grpc.ClientConnInterface) *CalibrationClient {
	return &CalibrationClient{cc: cc}
}

// Call invokes method with req encoded as a Struct and decodes the reply into resp.
func (c *CalibrationClient) Call(ctx context.Context, method string, req, resp any, opts ...grpc.CallOption) error {
	in, err := toStruct(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return err
	}
	if resp == nil {
		return nil
	}
	return fromStruct(out, resp)
}
