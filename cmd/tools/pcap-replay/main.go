//go:build pcap

// Command pcap-replay feeds a captured UDP stream back into a running
// carta-backend over a websocket connection. Each UDP datagram is
// treated as one literal internal/wire frame (the 8-byte header
// followed by its body), exactly as a real viewer would have sent it.
// This mirrors the teacher's internal/lidar/network/pcap.go: open the
// capture with gopacket/pcap, apply a BPF filter on the capture port,
// walk the packet source in a context-aware loop, pull the UDP
// payload out of each packet, and log progress every 10000 packets.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/coder/websocket"

	"github.com/CARTAvis/carta-backend-sub003/internal/wire"
)

var (
	pcapFile = flag.String("pcap", "", "path to a pcap/pcapng capture of recorded wire frames")
	udpPort  = flag.Uint("udp-port", 3002, "UDP port the capture's frames were recorded on")
	target   = flag.String("target", "ws://127.0.0.1:8080/", "websocket URL of the carta-backend to replay against")
	pace     = flag.Duration("pace", 0, "delay between replayed frames (0 replays as fast as possible)")
)

func main() {
	flag.Parse()
	if *pcapFile == "" {
		log.Fatal("pcap-replay: -pcap is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, _, err := websocket.Dial(ctx, *target, nil)
	if err != nil {
		log.Fatalf("pcap-replay: dial %s: %v", *target, err)
	}
	defer conn.CloseNow()

	n, err := replay(ctx, *pcapFile, uint16(*udpPort), conn)
	if err != nil {
		log.Fatalf("pcap-replay: %v", err)
	}
	log.Printf("pcap-replay: replayed %d frames from %s", n, *pcapFile)

	_ = conn.Close(websocket.StatusNormalClosure, "replay complete")
}

func replay(ctx context.Context, path string, port uint16, conn *websocket.Conn) (int, error) {
	handle, err := pcap.OpenOffline(path)
	if err != nil {
		return 0, fmt.Errorf("open capture: %w", err)
	}
	defer handle.Close()

	if err := handle.SetBPFFilter(fmt.Sprintf("udp port %d", port)); err != nil {
		return 0, fmt.Errorf("set bpf filter: %w", err)
	}

	source := gopacket.NewPacketSource(handle, handle.LinkType())
	packets := source.Packets()

	sent := 0
	for {
		select {
		case <-ctx.Done():
			return sent, ctx.Err()
		case packet, ok := <-packets:
			if !ok {
				return sent, nil
			}
			udpLayer := packet.Layer(layers.LayerTypeUDP)
			if udpLayer == nil {
				continue
			}
			udp := udpLayer.(*layers.UDP)
			if len(udp.Payload) < wire.HeaderSize {
				continue
			}
			if _, ok := wire.DecodeHeader(udp.Payload); !ok {
				log.Printf("pcap-replay: skipping payload with unrecognized header at packet %d", sent)
				continue
			}
			if err := conn.Write(ctx, websocket.MessageBinary, udp.Payload); err != nil {
				return sent, fmt.Errorf("write frame %d: %w", sent, err)
			}
			sent++
			if sent%10000 == 0 {
				log.Printf("pcap-replay: replayed %d frames", sent)
			}
			if *pace > 0 {
				time.Sleep(*pace)
			}
		}
	}
}
