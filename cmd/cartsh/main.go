package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"regexp"

	"github.com/cartos-io/cartos/tools"
	. "github.com/cartos-io/cartos/util/testutil"
)

func main() {

	var (
		dbFile       = flag.String("d", "cartos.db", "storage filename (empty to disable)")
		cartridgeDir = flag.String("c", "cartridges", "cartridges directory")
		libDir       = flag.String("l", "libs", "action libraries directory")
		bootFile     = flag.String("b", "", "file of shell lines to run at start")
		restore      = flag.Bool("r", false, "re-mount what storage remembers")

		httpPort  = flag.String("h", "", "HTTP port for our service")
		wsService = flag.Bool("w", true, "WebSockets service")
		httpDir   = flag.String("f", "", "directory to serve via HTTP")
		webhook   = flag.String("p", "", "URL to POST state notifications to")

		listenOnStdin = flag.Bool("I", true, "read shell lines from stdin")
		emitToStdout  = flag.Bool("O", false, "emit messages to stdout")
	)

	flag.BoolVar(&Verbose, "v", false, "log lots of wonderful things")

	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())

	s, err := NewService(ctx, *cartridgeDir, *dbFile, *libDir)
	if err != nil {
		panic(err)
	}
	s.WebhookURL = *webhook
	defer s.Close(ctx) // ToDo: Check error.

	s.Emitted = make(chan interface{}, 8)
	s.Errors = make(chan interface{}, 8)

	if Verbose || *emitToStdout {
		monitor(ctx, s.Emitted, "emitted", *emitToStdout)
	}
	monitor(ctx, s.Errors, "errors", false)

	if *restore {
		if err := s.Restore(ctx); err != nil {
			panic(err)
		}
	}

	if *bootFile != "" {
		if err := s.Boot(ctx, *bootFile); err != nil {
			panic(err)
		}
	}

	if *listenOnStdin {
		go func() {
			if err := s.Listener(ctx, bufio.NewReader(os.Stdin), os.Stdout); err != nil {
				log.Printf("Service.Listener error %s", err)
			}
			Logf("stdin listener done")
			cancel()
		}()
	}

	if *httpPort != "" {
		go func() {
			if *wsService {
				log.Printf("WebSockets service starting")
				if err := s.WebSocketService(ctx); err != nil {
					panic(err)
				}
			}

			if *httpDir != "" {
				log.Printf("HTTP serving files in %s", *httpDir)
				fs := http.FileServer(http.Dir(*httpDir))
				http.Handle("/static/", http.StripPrefix("/static", fs))
			}

			p := regexp.MustCompile(`/cartridges/([-a-zA-Z0-9_]+)\.html`)

			http.HandleFunc("/cartridges/", func(w http.ResponseWriter, r *http.Request) {
				ss := p.FindStringSubmatch(r.RequestURI)
				if ss == nil {
					fmt.Fprintf(w, "No cartridge name in %s; try /cartridges/turnstile.html", r.RequestURI)
					return
				}
				filename := s.resolve(ss[1])
				if err := tools.ReadAndRenderCartridgePage(filename, nil, w, true); err != nil {
					fmt.Fprintf(w, "ReadAndRenderCartridgePage error: %s", err)
				}
			})

			log.Printf("HTTP service on %s", *httpPort)
			if err := http.ListenAndServe(*httpPort, nil); err != nil {
				panic(err)
			}
		}()
	}

	<-ctx.Done()
}

func monitor(ctx context.Context, c chan interface{}, tag string, toStdout bool) {
	go func() {
		log.Printf("monitoring %s", tag)
	LOOP:
		for {
			select {
			case <-ctx.Done():
				break LOOP
			case x := <-c:
				js := JS(x)
				log.Printf("%s %s", tag, js)
				if toStdout {
					fmt.Println(js)
				}
			}
		}
		log.Printf("halting monitoring of %s", tag)
	}()
}
