package services

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/DDH2004/AIoTHackStorm/internal/emotion"
	"github.com/DDH2004/AIoTHackStorm/internal/pipeline"
	"github.com/DDH2004/AIoTHackStorm/pkg/log"
	"github.com/DDH2004/AIoTHackStorm/pkg/pb"
)

// RemoteClassifier sends face crops to an external model server over gRPC.
type RemoteClassifier struct {
	conn    *grpc.ClientConn
	client  pb.ClassifierClient
	url     string
	timeout time.Duration
}

func NewRemoteClassifier(url string, extra ...grpc.DialOption) (*RemoteClassifier, error) {
	log.Info(log.Fields{"url": url}, "connecting to classifier")

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(50*1024*1024),
			grpc.MaxCallSendMsgSize(50*1024*1024),
		),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                10 * time.Second,
			Timeout:             3 * time.Second,
			PermitWithoutStream: true,
		}),
	}
	opts = append(opts, extra...)

	conn, err := grpc.Dial(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not connect to classifier at %s: %w", url, err)
	}

	return &RemoteClassifier{
		conn:    conn,
		client:  pb.NewClassifierClient(conn),
		url:     url,
		timeout: 5 * time.Second,
	}, nil
}

func (rc *RemoteClassifier) Classify(ctx context.Context, frame pipeline.Frame, face pipeline.Face) (emotion.Scores, error) {
	crop, err := pipeline.EncodeFace(frame, face)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, rc.timeout)
	defer cancel()

	out, err := rc.client.Classify(ctx, wrapperspb.Bytes(crop))
	if err != nil {
		return nil, fmt.Errorf("could not classify face: %w", err)
	}

	field, ok := out.GetFields()["emotions"]
	if !ok || field.GetStructValue() == nil {
		return nil, fmt.Errorf("classifier reply has no emotions: %w", emotion.ErrNoScores)
	}

	raw := make(map[string]float64)
	for name, v := range field.GetStructValue().AsMap() {
		if f, ok := v.(float64); ok {
			raw[name] = f
		}
	}
	scores := emotion.FromNames(raw)
	if len(scores) == 0 {
		return nil, emotion.ErrNoScores
	}
	return scores, nil
}

func (rc *RemoteClassifier) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	_, err := rc.client.Health(ctx, &emptypb.Empty{})
	return err == nil
}

func (rc *RemoteClassifier) Close() error {
	if rc.conn != nil {
		return rc.conn.Close()
	}
	return nil
}
