package api

import (
	"context"
	"errors"

	"github.com/heysubinoy/rollbook/pkg/roster"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client calls a StudentService and maps status codes back to roster errors.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient returns a Client using cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in, out interface{}) error {
	return c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out)
}

// fromStatus rebuilds a roster error from a gRPC status. op and path are only
// used for save/load failures.
func fromStatus(err error, op, path string) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.InvalidArgument:
		return &roster.ValidationError{Field: "request", Reason: st.Message()}
	case codes.NotFound:
		return roster.ErrNotFound
	case codes.DataLoss:
		return &roster.DecodeError{Path: path, Err: errors.New(st.Message())}
	case codes.Unavailable:
		if op != "" {
			return &roster.IOError{Op: op, Path: path, Err: errors.New(st.Message())}
		}
	}
	return err
}

// AddStudent sends the three form fields and returns the stored record.
func (c *Client) AddStudent(ctx context.Context, name, rollNumber, grade string) (roster.Record, error) {
	in, err := structpb.NewStruct(map[string]interface{}{
		"name":        name,
		"roll_number": rollNumber,
		"grade":       grade,
	})
	if err != nil {
		return roster.Record{}, &roster.ValidationError{Field: "request", Reason: err.Error()}
	}
	out := &structpb.Struct{}
	if err := c.invoke(ctx, "Add", in, out); err != nil {
		return roster.Record{}, fromStatus(err, "", "")
	}
	return recordFromStruct(out)
}

// RemoveStudent removes every record with the given roll number.
func (c *Client) RemoveStudent(ctx context.Context, rollNumber string) error {
	if err := c.invoke(ctx, "Remove", wrapperspb.String(rollNumber), &emptypb.Empty{}); err != nil {
		return fromStatus(err, "", "")
	}
	return nil
}

// SearchStudent returns the first record with the given roll number or roster.ErrNotFound.
func (c *Client) SearchStudent(ctx context.Context, rollNumber string) (roster.Record, error) {
	out := &structpb.Struct{}
	if err := c.invoke(ctx, "Search", wrapperspb.String(rollNumber), out); err != nil {
		return roster.Record{}, fromStatus(err, "", "")
	}
	return recordFromStruct(out)
}

// ListStudents returns every record in insertion order.
func (c *Client) ListStudents(ctx context.Context) ([]roster.Record, error) {
	out := &structpb.ListValue{}
	if err := c.invoke(ctx, "List", &emptypb.Empty{}, out); err != nil {
		return nil, fromStatus(err, "", "")
	}
	records := make([]roster.Record, 0, len(out.GetValues()))
	for _, v := range out.GetValues() {
		rec, err := recordFromStruct(v.GetStructValue())
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// SaveToDestination asks the server to write the roster to path.
func (c *Client) SaveToDestination(ctx context.Context, path string) error {
	if err := c.invoke(ctx, "Save", wrapperspb.String(path), &emptypb.Empty{}); err != nil {
		return fromStatus(err, "save", path)
	}
	return nil
}

// LoadFromSource asks the server to replace the roster with path.
func (c *Client) LoadFromSource(ctx context.Context, path string) error {
	if err := c.invoke(ctx, "Load", wrapperspb.String(path), &emptypb.Empty{}); err != nil {
		return fromStatus(err, "load", path)
	}
	return nil
}
