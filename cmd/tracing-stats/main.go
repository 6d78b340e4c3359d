// Command tracing-stats opens an existing tracing region and prints its
// LFCA allocator's monitoring counters with locale-formatted thousands
// separators.
package main

import (
	"flag"
	"fmt"
	"os"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/qorix-group/baselibs-sub006/internal/tracing/lfca"
	"github.com/qorix-group/baselibs-sub006/internal/tracing/region"
)

func main() {
	path := flag.String("region", "tracing-demo.region", "path to an existing region file")
	locale := flag.String("locale", "en", "BCP 47 locale tag for formatting counters")
	flag.Parse()

	tag, err := language.Parse(*locale)
	if err != nil {
		fmt.Fprintln(os.Stderr, "parsing locale:", err)
		os.Exit(1)
	}

	p := message.NewPrinter(tag)

	r, err := region.Open(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "opening region:", err)
		os.Exit(1)
	}
	defer r.Close()

	alloc, err := lfca.Open(r.User)
	if err != nil {
		fmt.Fprintln(os.Stderr, "attaching allocator:", err)
		os.Exit(1)
	}

	stats := alloc.Stats()

	p.Printf("available bytes:     %d\n", stats.AvailableSize)
	p.Printf("cumulative usage:    %d\n", stats.CumulativeUsage)
	p.Printf("lowest available:    %d\n", stats.LowestSize)
	p.Printf("allocations served:  %d\n", stats.AllocCntr)
	p.Printf("deallocations served: %d\n", stats.DeallocCntr)
}
