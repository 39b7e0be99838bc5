// Package ecmascript provides the stock ActionExecutor, which runs
// action sources as ECMAScript 5.1+ via Goja.
//
// See https://github.com/dop251/goja.
//
// An action's environment:
//
//	vars          object: a copy of the instance's context variables
//	set(k, v)     write a context variable
//	get(k)        read a context variable (also available via vars)
//	log(x)        log a message
//	now()         current time in milliseconds
//	cronNext(s)   milliseconds until the cron expression next fires
//
// Mutation happens only through set(); reassigning properties of vars
// changes the copy, not the instance.
package ecmascript

import (
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cartos-io/cartos/core"

	"github.com/dop251/goja"
	"github.com/gorhill/cronexpr"
)

var (
	// InterruptedMessage is the string value of Interrupted.
	InterruptedMessage = "RuntimeError: timeout"

	// Interrupted is returned by Execute if the execution is
	// interrupted (usually by the context's cancelation).
	Interrupted = errors.New(InterruptedMessage)
)

// Executor implements core.ActionExecutor using Goja.
type Executor struct {
	// LibraryProvider resolves names in an action's "requires"
	// list to library source.  Nil means actions can't require
	// libraries.
	LibraryProvider func(ctx context.Context, name string) (string, error)

	// Testing exposes a couple of runtime capabilities that
	// shouldn't be available in production.
	Testing bool

	mu       sync.Mutex
	programs map[string]*goja.Program
}

// NewExecutor makes a new Executor with no library provider.
func NewExecutor() *Executor {
	return &Executor{
		programs: make(map[string]*goja.Program, 16),
	}
}

// MakeMapLibraryProvider serves libraries from a map of sources.
func MakeMapLibraryProvider(srcs map[string]string) func(context.Context, string) (string, error) {
	return func(ctx context.Context, name string) (string, error) {
		src, have := srcs[name]
		if !have {
			return "", fmt.Errorf("undefined library '%s'", name)
		}
		return src, nil
	}
}

// MakeFileLibraryProvider serves "file://NAME" libraries from dir and
// "http(s)://..." libraries from the net.
func MakeFileLibraryProvider(dir string) func(context.Context, string) (string, error) {
	return func(ctx context.Context, name string) (string, error) {
		parts := strings.SplitN(name, "://", 2)
		if 2 != len(parts) {
			return "", fmt.Errorf("bad link '%s'", name)
		}
		switch parts[0] {
		case "file":
			bs, err := ioutil.ReadFile(dir + "/" + parts[1])
			if err != nil {
				return "", err
			}
			return string(bs), nil
		case "http", "https":
			req, err := http.NewRequest("GET", name, nil)
			if err != nil {
				return "", err
			}
			req = req.WithContext(ctx)
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return "", err
			}
			defer resp.Body.Close()
			bs, err := ioutil.ReadAll(resp.Body)
			if err != nil {
				return "", err
			}
			return string(bs), nil
		default:
			return "", fmt.Errorf("unknown library scheme in '%s'", name)
		}
	}
}

// source digs the code string and required library names out of an
// action's Source, which is either a plain string or a map with
// "code" and optional "requires" properties.
func source(action *core.ActionSpec) (code string, libs []string, err error) {
	switch src := action.Source.(type) {
	case string:
		return src, nil, nil
	case map[string]interface{}:
		x, have := src["code"]
		if !have {
			return "", nil, errors.New("action source has no code")
		}
		s, is := x.(string)
		if !is {
			return "", nil, errors.New("bad action code")
		}
		code = s

		switch req := src["requires"].(type) {
		case nil:
		case string:
			libs = []string{req}
		case []interface{}:
			for _, x := range req {
				s, is := x.(string)
				if !is {
					return "", nil, errors.New("bad library name")
				}
				libs = append(libs, s)
			}
		default:
			return "", nil, errors.New("bad requires")
		}
		return code, libs, nil
	}
	return "", nil, fmt.Errorf("bad action source (%T)", action.Source)
}

func wrapSrc(src string) string {
	return fmt.Sprintf("(function() {\n%s\n}());\n", src)
}

// compile caches compiled programs by their full (library-expanded)
// source.
func (e *Executor) compile(full string) (*goja.Program, error) {
	e.mu.Lock()
	p, have := e.programs[full]
	e.mu.Unlock()
	if have {
		return p, nil
	}

	// Not strict: libraries conventionally install globals by bare
	// assignment.
	p, err := goja.Compile("action", full, false)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.programs[full] = p
	e.mu.Unlock()
	return p, nil
}

// Execute runs one action against the instance's live context store.
func (e *Executor) Execute(ctx context.Context, action *core.ActionSpec, vars *core.ContextStore) error {
	code, libs, err := source(action)
	if err != nil {
		return err
	}

	var full strings.Builder
	for _, name := range libs {
		if e.LibraryProvider == nil {
			return fmt.Errorf("no library provider for '%s'", name)
		}
		src, err := e.LibraryProvider(ctx, name)
		if err != nil {
			return err
		}
		full.WriteString(wrapSrc(src))
	}
	full.WriteString(wrapSrc(code))

	p, err := e.compile(full.String())
	if err != nil {
		return err
	}

	vm := goja.New()
	env := map[string]interface{}{
		"vars": vars.Snapshot(),
		"set": func(k string, v goja.Value) {
			vars.Set(k, v.Export())
		},
		"get": func(k string) interface{} {
			x, _ := vars.Lookup(k)
			return x
		},
		"log": func(x interface{}) {
			log.Printf("action log: %v", x)
		},
		"now": func() int64 {
			return time.Now().UTC().UnixNano() / 1000 / 1000
		},
		"cronNext": func(expr string) (int64, error) {
			c, err := cronexpr.Parse(expr)
			if err != nil {
				return 0, err
			}
			return int64(c.Next(time.Now()).Sub(time.Now()) / time.Millisecond), nil
		},
	}
	if e.Testing {
		env["sleep"] = func(ms int) {
			time.Sleep(time.Duration(ms) * time.Millisecond)
		}
	}
	for k, v := range env {
		if err = vm.Set(k, v); err != nil {
			return err
		}
	}

	// Respect the context's cancelation (which covers any deadline
	// the host set at the call boundary).
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(InterruptedMessage)
		case <-done:
		}
	}()

	if _, err = vm.RunProgram(p); err != nil {
		if _, is := err.(*goja.InterruptedError); is {
			return Interrupted
		}
		return err
	}
	return nil
}
