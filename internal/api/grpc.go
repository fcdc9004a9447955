package api

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/heysubinoy/rollbook/internal/service"
	"github.com/heysubinoy/rollbook/pkg/roster"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "rollbook.v1.StudentService"

// StudentServiceServer is the server API for the student service. Messages are
// protobuf well-known types: records travel as Struct with name, roll_number
// and grade fields, roll numbers and file names as StringValue.
type StudentServiceServer interface {
	Add(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Remove(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	Search(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	List(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	Save(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	Load(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
}

// unaryHandler adapts a typed method to grpc.MethodHandler.
func unaryHandler[T any](method string, newReq func() T, call func(StudentServiceServer, context.Context, T) (interface{}, error)) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := newReq()
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(StudentServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + ServiceName + "/" + method,
		}
		return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(StudentServiceServer), ctx, req.(T))
		})
	}
}

func newStruct() *structpb.Struct        { return &structpb.Struct{} }
func newString() *wrapperspb.StringValue { return &wrapperspb.StringValue{} }
func newEmpty() *emptypb.Empty           { return &emptypb.Empty{} }

// StudentServiceDesc is the grpc.ServiceDesc for StudentServiceServer.
var StudentServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StudentServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Add", Handler: unaryHandler("Add", newStruct,
			func(s StudentServiceServer, ctx context.Context, in *structpb.Struct) (interface{}, error) {
				return s.Add(ctx, in)
			})},
		{MethodName: "Remove", Handler: unaryHandler("Remove", newString,
			func(s StudentServiceServer, ctx context.Context, in *wrapperspb.StringValue) (interface{}, error) {
				return s.Remove(ctx, in)
			})},
		{MethodName: "Search", Handler: unaryHandler("Search", newString,
			func(s StudentServiceServer, ctx context.Context, in *wrapperspb.StringValue) (interface{}, error) {
				return s.Search(ctx, in)
			})},
		{MethodName: "List", Handler: unaryHandler("List", newEmpty,
			func(s StudentServiceServer, ctx context.Context, in *emptypb.Empty) (interface{}, error) {
				return s.List(ctx, in)
			})},
		{MethodName: "Save", Handler: unaryHandler("Save", newString,
			func(s StudentServiceServer, ctx context.Context, in *wrapperspb.StringValue) (interface{}, error) {
				return s.Save(ctx, in)
			})},
		{MethodName: "Load", Handler: unaryHandler("Load", newString,
			func(s StudentServiceServer, ctx context.Context, in *wrapperspb.StringValue) (interface{}, error) {
				return s.Load(ctx, in)
			})},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rollbook/v1/student.proto",
}

// RegisterStudentServiceServer registers srv on s.
func RegisterStudentServiceServer(s grpc.ServiceRegistrar, srv StudentServiceServer) {
	s.RegisterService(&StudentServiceDesc, srv)
}

// GRPCServer implements StudentServiceServer.
// It wraps a service.Roster and exposes it over gRPC.
type GRPCServer struct {
	Roster *service.Roster
}

var _ StudentServiceServer = (*GRPCServer)(nil)

// NewGRPCServer creates a new gRPC server with the given roster.
func NewGRPCServer(svc *service.Roster) *GRPCServer {
	return &GRPCServer{
		Roster: svc,
	}
}

func toStatus(err error) error {
	_, code := classify(err)
	return status.Error(code, err.Error())
}

// recordToStruct carries the roll number as decimal text; a Struct number
// is a float64 and cannot hold every int.
func recordToStruct(r roster.Record) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		"name":        r.Name(),
		"roll_number": strconv.Itoa(r.RollNumber()),
		"grade":       r.Grade(),
	})
}

func recordFromStruct(s *structpb.Struct) (roster.Record, error) {
	f := s.GetFields()
	name, ok := f["name"].GetKind().(*structpb.Value_StringValue)
	if !ok {
		return roster.Record{}, errors.New("record has no name")
	}
	rollText, ok := f["roll_number"].GetKind().(*structpb.Value_StringValue)
	if !ok {
		return roster.Record{}, errors.New("record has no roll_number")
	}
	roll, err := strconv.Atoi(rollText.StringValue)
	if err != nil {
		return roster.Record{}, fmt.Errorf("record has bad roll_number: %w", err)
	}
	grade, ok := f["grade"].GetKind().(*structpb.Value_StringValue)
	if !ok {
		return roster.Record{}, errors.New("record has no grade")
	}
	return roster.NewRecord(name.StringValue, roll, grade.StringValue), nil
}

// fieldText returns a request field as form text. Numbers are written in
// plain decimal, never exponent form, so whole values parse as integers and
// fractional ones fail validation.
func fieldText(s *structpb.Struct, key string) string {
	v := s.GetFields()[key]
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return k.StringValue
	case *structpb.Value_NumberValue:
		return strconv.FormatFloat(k.NumberValue, 'f', -1, 64)
	}
	return ""
}

// Add validates and appends a record. Returns the stored record.
func (s *GRPCServer) Add(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	rec, err := s.Roster.AddStudent(fieldText(req, "name"), fieldText(req, "roll_number"), fieldText(req, "grade"))
	if err != nil {
		return nil, toStatus(err)
	}
	return recordToStruct(rec)
}

// Remove deletes every record with the given roll number.
func (s *GRPCServer) Remove(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if err := s.Roster.RemoveStudent(req.GetValue()); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// Search returns the first record with the given roll number.
func (s *GRPCServer) Search(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	rec, err := s.Roster.SearchStudent(req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return recordToStruct(rec)
}

// List returns every record in insertion order.
func (s *GRPCServer) List(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	records := s.Roster.ListStudents()
	out := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(records))}
	for _, rec := range records {
		st, err := recordToStruct(rec)
		if err != nil {
			return nil, toStatus(err)
		}
		out.Values = append(out.Values, structpb.NewStructValue(st))
	}
	return out, nil
}

// Save writes the roster to the named file on the server.
func (s *GRPCServer) Save(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if err := s.Roster.SaveToDestination(req.GetValue()); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// Load replaces the roster with the named file on the server.
func (s *GRPCServer) Load(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if err := s.Roster.LoadFromSource(req.GetValue()); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}
