// catprotect-host prints the status reports a CatProtect device sends over
// its serial link.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"

	"catprotect/host/monitor"
	"catprotect/host/serial"
	"catprotect/protocol"
)

var (
	device  = flag.String("device", "/dev/ttyACM0", "Serial device path")
	baud    = flag.Int("baud", 115200, "Baud rate (ignored for USB CDC)")
	hexDump = flag.Bool("hex", false, "Dump every raw frame")
	stats   = flag.Bool("stats", false, "Print link counters on exit")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func run() error {
	cfg := serial.DefaultConfig(*device)
	cfg.Baud = *baud
	port, err := serial.Open(cfg)
	if err != nil {
		return err
	}
	if err := port.Flush(); err != nil {
		return errors.Wrap(err, "flush report link")
	}

	log.Printf("listening on %s", *device)
	m := monitor.New(port, func(r protocol.Report) {
		fmt.Println(monitor.Format(r))
	})
	if *hexDump {
		m.SetTap(func(msg *protocol.Message) {
			fmt.Fprintf(os.Stderr, "frame seq=%d len=%d: %s\n",
				msg.Sequence, msg.Length, hex.EncodeToString(msg.Payload))
		})
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigs:
	case <-m.Done():
	}

	closeErr := m.Close()
	if *stats {
		s := m.Stats()
		log.Printf("frames %d, lost %d, corrupt %d, invalid %d",
			s.Frames, s.Lost, s.Corrupt, s.Invalid)
	}
	if err := m.Err(); err != nil {
		return err
	}
	return closeErr
}
