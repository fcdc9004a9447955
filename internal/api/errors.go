package api

import (
	"errors"
	"net/http"

	"github.com/hashicorp/raft"
	"github.com/heysubinoy/rollbook/internal/store"
	"github.com/heysubinoy/rollbook/pkg/roster"
	"google.golang.org/grpc/codes"
)

// classify maps an error from the service layer to an HTTP status and a gRPC code.
func classify(err error) (int, codes.Code) {
	switch {
	case roster.IsValidation(err):
		return http.StatusBadRequest, codes.InvalidArgument
	case errors.Is(err, roster.ErrNotFound):
		return http.StatusNotFound, codes.NotFound
	case roster.IsDecode(err):
		return http.StatusUnprocessableEntity, codes.DataLoss
	case roster.IsIO(err):
		return http.StatusInternalServerError, codes.Unavailable
	case errors.Is(err, raft.ErrNotLeader), errors.Is(err, raft.ErrLeadershipLost), errors.Is(err, store.ErrNoRaft):
		return http.StatusServiceUnavailable, codes.FailedPrecondition
	}
	return http.StatusInternalServerError, codes.Internal
}
