package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/cartos-io/cartos/cartfile"
	"github.com/cartos-io/cartos/core"
	"github.com/cartos-io/cartos/interpreters"
	"github.com/cartos-io/cartos/interpreters/ecmascript"
	"github.com/cartos-io/cartos/router"
	. "github.com/cartos-io/cartos/util/testutil"
)

// Service hosts a Router along with the host-level conveniences: a
// cartridge directory, bbolt persistence of the mount table, timers,
// and an optional notification webhook.
type Service struct {
	Router *router.Router

	// Dir is where bare cartridge names resolve to files.
	Dir string

	// WebhookURL, when set, gets every state notification POSTed
	// to it as JSON.
	WebhookURL string

	// Emitted carries state notifications and command results (if
	// anyone's listening; sends never block).
	Emitted chan interface{}

	Errors chan interface{}

	store  *Storage
	timers *Timers
	jar    *Jar

	// ops is the WebSocket firehose input (see service-ws.go).
	ops chan interface{}

	mu     sync.Mutex
	unsubs map[string]func()
}

func NewService(ctx context.Context, cartridgeDir, dbFile, libDir string) (*Service, error) {
	executors := interpreters.Standard()
	if libDir != "" {
		es := executors["ecmascript"].(*ecmascript.Executor)
		es.LibraryProvider = ecmascript.MakeFileLibraryProvider(libDir)
	}

	s := &Service{
		Router: router.New(executors),
		Dir:    cartridgeDir,
		unsubs: make(map[string]func(), 8),
	}

	if dbFile != "" {
		store, err := NewStorage(dbFile)
		if err != nil {
			return nil, err
		}
		if err := store.Open(ctx); err != nil {
			return nil, err
		}
		s.store = store
	}

	s.timers = NewTimers(func(ctx context.Context, command string) error {
		return s.Eval(ctx, command, os.Stdout)
	})

	jar, err := NewJar()
	if err != nil {
		return nil, err
	}
	s.jar = jar

	return s, nil
}

func (s *Service) Close(ctx context.Context) error {
	s.timers.Shutdown()
	return s.store.Close(ctx)
}

// resolve turns a bare cartridge name into a filename in s.Dir.
// Names with path separators or extensions pass through.
func (s *Service) resolve(name string) string {
	if strings.ContainsRune(name, os.PathSeparator) || filepath.Ext(name) != "" {
		return name
	}
	return filepath.Join(s.Dir, name+".yaml")
}

// Mount loads a cartridge file, mounts it, subscribes for
// persistence and emission, and records the mount.
func (s *Service) Mount(ctx context.Context, namespace, name string, opts router.Options) error {
	filename := s.resolve(name)
	def, err := cartfile.Read(filename)
	if err != nil {
		return err
	}

	if err := s.Router.Mount(ctx, def, namespace, opts); err != nil {
		return err
	}

	unsub, err := s.Router.Subscribe(namespace, func(n core.Notification) {
		s.emit(map[string]interface{}{
			"namespace":    namespace,
			"notification": n,
		})
		if s.store != nil {
			go s.persist(ctx, namespace, name, opts, n)
		}
		if s.WebhookURL != "" {
			go s.toWebhook(ctx, namespace, n)
		}
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.unsubs[namespace] = unsub
	s.mu.Unlock()

	state, vars, err := s.Router.Snapshot(namespace)
	if err != nil {
		return err
	}
	return s.store.WriteMount(ctx, &MountState{
		Namespace: namespace,
		Cartridge: name,
		Priority:  opts.Priority,
		Boot:      opts.AsBoot,
		State:     state,
		Context:   vars,
	})
}

func (s *Service) persist(ctx context.Context, namespace, name string, opts router.Options, n core.Notification) {
	if err := s.store.WriteMount(ctx, &MountState{
		Namespace: namespace,
		Cartridge: name,
		Priority:  opts.Priority,
		Boot:      opts.AsBoot,
		State:     n.Current,
		Context:   n.Context,
	}); err != nil {
		s.err(fmt.Errorf("persist error %v namespace=%s", err, namespace))
	}
}

func (s *Service) Unmount(ctx context.Context, namespace string) error {
	s.mu.Lock()
	if unsub, have := s.unsubs[namespace]; have {
		unsub()
		delete(s.unsubs, namespace)
	}
	s.mu.Unlock()

	if err := s.Router.Unmount(namespace); err != nil {
		return err
	}
	return s.store.RemMount(ctx, namespace)
}

// Restore re-mounts everything the store remembers.  Cartridges load
// fresh from their files and start at their initial states.
func (s *Service) Restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	mss, err := s.store.Mounts(ctx)
	if err != nil {
		return err
	}
	for _, ms := range mss {
		opts := router.Options{Priority: ms.Priority, AsBoot: ms.Boot}
		if err := s.Mount(ctx, ms.Namespace, ms.Cartridge, opts); err != nil {
			s.err(fmt.Errorf("restore error %v namespace=%s", err, ms.Namespace))
		}
	}
	return nil
}

// toWebhook POSTs a notification to the configured webhook, carrying
// cookies across deliveries.
func (s *Service) toWebhook(ctx context.Context, namespace string, n core.Notification) {
	body, err := json.Marshal(map[string]interface{}{
		"namespace":    namespace,
		"notification": n,
	})
	if err != nil {
		s.err(err)
		return
	}
	r := &HTTPRequest{
		Method:    "POST",
		URL:       s.WebhookURL,
		Body:      string(body),
		CookieJar: s.jar,
	}
	err = r.Do(ctx, func(ctx context.Context, resp *HTTPResponse) error {
		if resp.Error != nil {
			return resp.Error
		}
		Logf("webhook %s %s", s.WebhookURL, resp.Status)
		return nil
	})
	if err != nil {
		s.err(fmt.Errorf("webhook error %v", err))
	}
}

func (s *Service) emit(x interface{}) {
	if s.Emitted != nil {
		select {
		case s.Emitted <- x:
		default:
		}
	}
	if s.ops != nil {
		select {
		case s.ops <- x:
		default:
		}
	}
}

func (s *Service) err(x interface{}) {
	if s.Errors != nil {
		select {
		case s.Errors <- x:
			return
		default:
		}
	}
	log.Println(x)
}

const shellHelp = `host commands:
  help                            this
  mounts                          show the mount table
  path                            show command resolution order
  show NS                         show a namespace's state and memory
  search QUERY                    search the catalog ("search" alone lists all)
  clear                           clear the screen
  mount NS NAME [PRIO] [boot]     mount a cartridge (NAME resolves in -c dir)
  unmount NS                      unmount a namespace
  timer ID SPEC COMMAND...        run COMMAND after a duration or per a cron expression
  untimer ID                      cancel a timer
  quit                            exit
anything else is a command: either ID or NS:ID`

// Eval interprets one shell line: a host command or a cartridge
// command handed to the router.
func (s *Service) Eval(ctx context.Context, line string, out io.Writer) error {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}

	args := strings.Fields(line)

	switch args[0] {
	case "help":
		fmt.Fprintln(out, shellHelp)
		return nil

	case "clear":
		fmt.Fprint(out, "\033[2J\033[H")
		return nil

	case "mounts":
		for _, m := range s.Router.Mounts() {
			fmt.Fprintf(out, "%s\n", JS(m))
		}
		return nil

	case "path":
		fmt.Fprintf(out, "%s\n", strings.Join(s.Router.Path(), ":"))
		return nil

	case "show":
		if len(args) != 2 {
			return fmt.Errorf("usage: show NS")
		}
		state, vars, err := s.Router.Snapshot(args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\n", JS(map[string]interface{}{
			"state":   state,
			"context": vars,
		}))
		return nil

	case "search":
		query := strings.TrimSpace(strings.TrimPrefix(line, "search"))
		for _, e := range s.Router.SearchCatalog(query) {
			fmt.Fprintf(out, "%s\n", JS(e))
		}
		return nil

	case "mount":
		if len(args) < 3 {
			return fmt.Errorf("usage: mount NS NAME [PRIO] [boot]")
		}
		var opts router.Options
		for _, arg := range args[3:] {
			if arg == "boot" {
				opts.AsBoot = true
				continue
			}
			p, err := strconv.Atoi(arg)
			if err != nil {
				return fmt.Errorf("bad mount arg '%s'", arg)
			}
			opts.Priority = p
		}
		return s.Mount(ctx, args[1], args[2], opts)

	case "unmount":
		if len(args) != 2 {
			return fmt.Errorf("usage: unmount NS")
		}
		return s.Unmount(ctx, args[1])

	case "timer":
		if len(args) < 4 {
			return fmt.Errorf("usage: timer ID SPEC COMMAND...")
		}
		command := strings.Join(args[3:], " ")
		return s.timers.Add(ctx, args[1], command, args[2])

	case "untimer":
		if len(args) != 2 {
			return fmt.Errorf("usage: untimer ID")
		}
		return s.timers.Rem(ctx, args[1])
	}

	res, err := s.Router.Execute(ctx, line)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s\n", JS(res))
	s.emit(res)
	return nil
}

// Listener runs a line-oriented shell until EOF, "quit", or the
// context's cancelation.
func (s *Service) Listener(ctx context.Context, in *bufio.Reader, out io.Writer) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := in.ReadString('\n')
		if err == io.EOF || strings.TrimSpace(line) == "quit" {
			return nil
		}
		if err != nil {
			return err
		}
		if err := s.Eval(ctx, line, out); err != nil {
			fmt.Fprintf(out, "error: %s\n", err)
		}
	}
}

// Boot runs a file of shell lines, stopping at the first error.
func (s *Service) Boot(ctx context.Context, filename string) error {
	in, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer in.Close()

	r := bufio.NewReader(in)
	for {
		line, err := r.ReadString('\n')
		if err == io.EOF {
			if strings.TrimSpace(line) != "" {
				return s.Eval(ctx, line, os.Stdout)
			}
			return nil
		}
		if err != nil {
			return err
		}
		if err := s.Eval(ctx, line, os.Stdout); err != nil {
			return err
		}
	}
}
