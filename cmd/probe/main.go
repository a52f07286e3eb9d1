// Command probe behaves like the avatar devices: it polls the listener,
// uploads a synthetic frame or follows the gRPC Watch stream, and prints
// every avatar change.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/DDH2004/AIoTHackStorm/internal/client"
	"github.com/DDH2004/AIoTHackStorm/internal/emotion"
	"github.com/DDH2004/AIoTHackStorm/internal/models"
	"github.com/DDH2004/AIoTHackStorm/pkg/log"
	"github.com/DDH2004/AIoTHackStorm/pkg/pb"
)

func main() {
	baseURL := flag.String("url", "http://localhost:5001", "listener base URL")
	mode := flag.String("mode", "listener", "listener, simple or watch")
	upload := flag.Bool("upload", false, "post one synthetic 160x120 RGB888 frame and exit")
	interval := flag.Duration("interval", 100*time.Millisecond, "poll interval")
	grpcAddr := flag.String("grpc", "localhost:50051", "gRPC address for -mode watch")
	flag.Parse()

	log.Setup(log.Options{Level: os.Getenv("LOG_LEVEL")})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.New(*baseURL, 5*time.Second)

	if h, err := c.Health(ctx); err != nil {
		log.Warn(log.Fields{"error": err.Error()}, "health check failed")
	} else {
		fmt.Printf("✓ Health: webcam=%v detector=%v classifier=%v landmarks=%v frames=%d\n",
			h.WebcamReady, h.DetectorReady, h.ClassifierReady, h.LandmarksReady, h.FrameCount)
	}

	if *upload {
		r, err := c.Simple(ctx, client.TestFrame(160, 120))
		if err != nil {
			log.Fatal(log.Fields{"error": err.Error()}, "upload failed")
		}
		printReading(r)
		return
	}

	var err error
	switch *mode {
	case "listener":
		err = client.Poll(ctx, *interval, c.Listener, printTransition)
	case "simple":
		frame := client.TestFrame(160, 120)
		err = client.Poll(ctx, *interval, func(ctx context.Context) (client.Reading, error) {
			return c.Simple(ctx, frame)
		}, printTransition)
	case "watch":
		err = watch(ctx, *grpcAddr)
	default:
		log.Fatal(log.Fields{"mode": *mode}, "unknown mode")
	}
	if err != nil && ctx.Err() == nil {
		log.Fatal(log.Fields{"error": err.Error()}, "probe stopped")
	}
}

func watch(ctx context.Context, addr string) error {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("connect to %s: %w", addr, err)
	}
	defer conn.Close()

	stream, err := pb.NewListenerClient(conn).Watch(ctx, &emptypb.Empty{})
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}

	var current emotion.Avatar
	for {
		msg, err := stream.Recv()
		if err != nil {
			return err
		}
		res, err := models.ResultFromStruct(msg)
		if err != nil {
			log.Warn(log.Fields{"error": err.Error()}, "undecodable result")
			continue
		}
		if a := emotion.ListenerAvatarFor(res.Emotion, current); a != current {
			fmt.Printf("%s  %-9s -> %-9s (%s %d%%, source=%s)\n",
				time.Now().Format("15:04:05.000"), current, a, res.Emotion, res.Confidence, res.Source)
			current = a
		}
	}
}

func printTransition(tr client.Transition) {
	fmt.Printf("%s  %-9s -> %-9s ", time.Now().Format("15:04:05.000"), tr.From, tr.To)
	printReading(tr.Reading)
}

func printReading(r client.Reading) {
	mouth := "-"
	if r.MouthOpen != nil {
		mouth = fmt.Sprintf("%.2f", *r.MouthOpen)
	}
	fmt.Printf("emotion=%s face=%v box=%dx%d conf=%d pos=(%.2f,%.2f) mouth=%s\n",
		r.Emotion, r.FaceDetected, r.Face.W, r.Face.H, r.Confidence, r.X, r.Y, mouth)
}
