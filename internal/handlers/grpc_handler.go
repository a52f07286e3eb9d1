package handlers

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/DDH2004/AIoTHackStorm/internal/models"
	"github.com/DDH2004/AIoTHackStorm/internal/pipeline"
	"github.com/DDH2004/AIoTHackStorm/internal/services"
	"github.com/DDH2004/AIoTHackStorm/pkg/log"
	"github.com/DDH2004/AIoTHackStorm/pkg/pb"
)

// GRPCHandler serves the latest result and a live result stream over gRPC.
type GRPCHandler struct {
	store       pipeline.Store
	broadcaster *services.Broadcaster
	metrics     *services.Metrics
}

var _ pb.ListenerServer = (*GRPCHandler)(nil)

func NewGRPCHandler(store pipeline.Store, broadcaster *services.Broadcaster, metrics *services.Metrics) *GRPCHandler {
	return &GRPCHandler{
		store:       store,
		broadcaster: broadcaster,
		metrics:     metrics,
	}
}

func (h *GRPCHandler) Latest(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	out, err := h.store.Latest().ToStruct()
	if err != nil {
		log.Error(log.Fields{"error": err.Error()}, "encode latest result")
		return nil, status.Error(codes.Internal, "encoding result failed")
	}
	return out, nil
}

// Watch sends the current result, then every published one, until the
// client goes away or the server shuts down.
func (h *GRPCHandler) Watch(_ *emptypb.Empty, stream pb.ListenerWatchServer) error {
	results, cancel := h.broadcaster.Subscribe()
	defer cancel()

	log.Info(nil, "gRPC watch stream started")
	if err := h.send(stream, h.store.Latest()); err != nil {
		return err
	}

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			log.Info(nil, "gRPC watch stream completed")
			return nil
		case res, ok := <-results:
			if !ok {
				return status.Error(codes.Unavailable, "server shutting down")
			}
			if err := h.send(stream, res); err != nil {
				return err
			}
		}
	}
}

func (h *GRPCHandler) send(stream pb.ListenerWatchServer, res models.DetectionResult) error {
	msg, err := res.ToStruct()
	if err != nil {
		return status.Error(codes.Internal, "encoding result failed")
	}
	if err := stream.Send(msg); err != nil {
		h.metrics.IncrementErrors()
		log.Warn(log.Fields{"error": err.Error()}, "gRPC watch send failed")
		return err
	}
	return nil
}
