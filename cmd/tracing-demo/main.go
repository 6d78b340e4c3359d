// Command tracing-demo wires every subsystem of the tracing substrate
// together end to end: it maps a region, builds an LFCA allocator and a
// ring buffer over it, negotiates the layout version, and runs a pool of
// concurrent producer goroutines allocating trace jobs while the main
// goroutine drains them, the way an integration smoke test would.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"unsafe"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/qorix-group/baselibs-sub006/internal/tracing/chunklist"
	"github.com/qorix-group/baselibs-sub006/internal/tracing/config"
	"github.com/qorix-group/baselibs-sub006/internal/tracing/diag"
	"github.com/qorix-group/baselibs-sub006/internal/tracing/lfca"
	"github.com/qorix-group/baselibs-sub006/internal/tracing/protocolver"
	"github.com/qorix-group/baselibs-sub006/internal/tracing/region"
	"github.com/qorix-group/baselibs-sub006/internal/tracing/ringbuffer"
	"github.com/qorix-group/baselibs-sub006/internal/tracing/tracejob"
)

func main() {
	configPath := flag.String("config", "", "path to a JSON config file (region_path, region_size, ring_slot_count, max_alignment); defaults are used if empty")
	producers := flag.Int("producers", 8, "number of producer goroutines")
	parallel := flag.Int("parallel", 4, "how many producers may run at once")
	jobsPerProducer := flag.Int("jobs", 20, "trace jobs each producer allocates")
	flag.Parse()

	log := diag.New(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg := config.Config{RegionPath: "tracing-demo.region", RegionSize: 4 << 20, RingSlotCount: 256, MaxAlignment: lfca.MaxAlign}

	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "loading config:", err)
			os.Exit(1)
		}

		cfg = loaded
	}

	if err := protocolver.Negotiate(protocolver.Current, ">=1.0.0, <2.0.0"); err != nil {
		fmt.Fprintln(os.Stderr, "protocol negotiation failed:", err)
		os.Exit(1)
	}

	r, err := region.New(cfg.RegionPath, uint64(cfg.RegionSize)+uint64(lfca.ControlSize), 1, 0, 0)
	if err != nil {
		fmt.Fprintln(os.Stderr, "mapping region:", err)
		os.Exit(1)
	}
	defer r.Close()

	alloc, err := lfca.New(r.User)
	if err != nil {
		fmt.Fprintln(os.Stderr, "constructing allocator:", err)
		os.Exit(1)
	}

	ring, err := ringbuffer.New(cfg.RingSlotCount)
	if err != nil {
		fmt.Fprintln(os.Stderr, "constructing ring buffer:", err)
		os.Exit(1)
	}

	jobAlloc := tracejob.NewAllocator(alloc, ring, 1)

	meta := tracejob.AraCom(tracejob.AraComMetaInfo{
		Properties: tracejob.AraComProperties{TracePoint: tracejob.TracePointSkelEventSend},
	})
	appID := tracejob.AppIDOf("tracing-demo")

	sem := semaphore.NewWeighted(int64(*parallel))

	g, ctx := errgroup.WithContext(context.Background())

	for p := 0; p < *producers; p++ {
		clientID := tracejob.ClientID(p + 1)

		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			for j := 0; j < *jobsPerProducer; j++ {
				payloadBytes := []byte(fmt.Sprintf("job-%d-%d-payload", clientID, j))

				var payload chunklist.LocalChunkList
				payload.Append(chunklist.LocalChunk{Start: unsafe.Pointer(&payloadBytes[0]), Size: uintptr(len(payloadBytes))})

				jobCtx, err := jobAlloc.AllocateLocalJob(clientID, meta, tracejob.BindingVector, appID, &payload)
				if err != nil {
					if !isRecoverable(err) {
						return err
					}

					continue
				}

				record, ok := jobAlloc.Container().Get(tracejob.Key{Client: clientID, Context: jobCtx})
				if !ok {
					continue
				}

				log.Publish(record.Slot, uint64(clientID), uint64(record.GlobalContext))

				if err := jobAlloc.DeallocateJob(record.Location, record.Type); err != nil {
					return err
				}
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		fmt.Fprintln(os.Stderr, "producer pool failed:", err)
		os.Exit(1)
	}

	fmt.Printf("demo complete: %d jobs remain live in the container\n", jobAlloc.Container().Len())
}

func isRecoverable(err error) bool {
	type recoverable interface{ Recoverable() bool }

	re, ok := err.(recoverable)

	return ok && re.Recoverable()
}
