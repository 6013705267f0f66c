package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	godap "github.com/google/go-dap"

	"github.com/dshills/varlens/internal/dap"
	"github.com/dshills/varlens/internal/inspect"
	"github.com/dshills/varlens/internal/memory"
	"github.com/dshills/varlens/internal/plugin/lua"
	"github.com/dshills/varlens/internal/render"
	"github.com/dshills/varlens/internal/typeinfo"
)

// target is an opened inspection session and everything it holds.
type target struct {
	session  *inspect.Session
	registry *typeinfo.Registry
	frames   []memory.StackFrame
	closers  []func() error
}

// openTarget loads metadata and memory and opens a session.
func (o *options) openTarget(ctx context.Context) (*target, error) {
	t := &target{}
	if err := o.open(ctx, t); err != nil {
		t.close()
		return nil, err
	}
	o.logger.WithField("session", t.session.ID()).Debug("target opened")
	return t, nil
}

func (o *options) open(ctx context.Context, t *target) error {
	var err error

	switch {
	case o.metadata != "":
		t.registry, err = typeinfo.LoadMetadataFile(o.metadata)
	case o.elf != "":
		t.registry, err = typeinfo.LoadDWARF(o.elf)
	default:
		err = errors.New("one of --metadata or --elf is required")
	}
	if err != nil {
		return err
	}

	var reader memory.Reader
	if o.snapshot != "" {
		sf, err := memory.LoadSnapshotFile(o.snapshot)
		if err != nil {
			return err
		}
		reader = sf.Snapshot
		t.frames = sf.Frames
	}
	if o.cfg.DAP.Address != "" {
		if reader, err = o.dialAdapter(ctx, t); err != nil {
			return err
		}
	}
	if reader == nil {
		return errors.New("one of --snapshot or --dap is required")
	}

	sopts := []inspect.Option{
		inspect.WithLogger(o.logger),
		inspect.WithLimits(o.cfg.Limits),
	}
	if sum, err := o.loadSummarizers(t); err != nil {
		return err
	} else if sum != nil {
		sopts = append(sopts, inspect.WithSummarizer(sum))
	}

	t.session, err = inspect.NewSession(t.registry, reader, sopts...)
	if err != nil {
		return err
	}
	t.closers = append(t.closers, t.session.Close)
	return nil
}

// dialAdapter connects to a debug adapter and returns a reader over it.
func (o *options) dialAdapter(ctx context.Context, t *target) (memory.Reader, error) {
	timeout, err := o.cfg.DAP.TimeoutDuration()
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = dap.DefaultReadTimeout
	}

	transport, err := dap.DialTCP(o.cfg.DAP.Address)
	if err != nil {
		return nil, err
	}
	log := o.logger.WithField("adapter", o.cfg.DAP.Address)
	client := dap.NewClient(transport,
		dap.WithClientLogger(o.logger),
		dap.WithEventHandler(func(ev godap.EventMessage) {
			log.WithField("event", ev.GetEvent().Event).Debug("adapter event")
		}),
	)
	t.closers = append(t.closers, func() error {
		dctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := client.Disconnect(dctx); err != nil {
			log.WithError(err).Debug("disconnect")
		}
		return client.Close()
	})

	ictx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	caps, err := client.Initialize(ictx, dap.DefaultInitializeArguments("varlens"))
	if err != nil {
		return nil, fmt.Errorf("initialize adapter: %w", err)
	}
	if !caps.SupportsReadMemoryRequest {
		return nil, fmt.Errorf("adapter %s: %w: readMemory", o.cfg.DAP.Address, dap.ErrNotSupported)
	}
	log.Info("connected to debug adapter")
	return dap.NewMemoryReader(client, dap.WithReadTimeout(timeout)), nil
}

// loadSummarizers loads the configured Lua scripts, if any.
func (o *options) loadSummarizers(t *target) (render.Summarizer, error) {
	sc := o.cfg.Scripts
	if sc.Dir == "" && len(sc.Files) == 0 {
		return nil, nil
	}
	sum, err := lua.New(lua.WithLogger(o.logger), lua.WithTimeout(100*time.Millisecond))
	if err != nil {
		return nil, err
	}
	t.closers = append(t.closers, sum.Close)
	if sc.Dir != "" {
		if err := sum.LoadDir(sc.Dir); err != nil {
			return nil, err
		}
	}
	for _, f := range sc.Files {
		if err := sum.LoadFile(f); err != nil {
			return nil, err
		}
	}
	o.logger.WithField("types", sum.Types()).Debug("summarizers loaded")
	return sum, nil
}

// frame resolves --frame against the snapshot's frames. "fn" picks the
// innermost frame of fn; "fn@0x7f800" gives the base explicitly.
func (t *target) frame(spec string) (*inspect.Frame, error) {
	if spec == "" {
		return nil, nil
	}
	fn, base, explicit := strings.Cut(spec, "@")
	if explicit {
		addr, err := strconv.ParseUint(base, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid frame base %q", base)
		}
		return &inspect.Frame{Function: fn, Base: memory.Address(addr)}, nil
	}
	for i := range t.frames {
		if t.frames[i].Function == fn {
			f := t.frames[i]
			return &f, nil
		}
	}
	return nil, fmt.Errorf("no active frame for %s", fn)
}

// close releases resources in reverse order of acquisition.
func (t *target) close() {
	for i := len(t.closers) - 1; i >= 0; i-- {
		_ = t.closers[i]()
	}
	t.closers = nil
}

// writeNode prints n in the selected output format.
func (o *options) writeNode(w io.Writer, n *render.Node) error {
	switch o.format {
	case "json":
		data, err := render.JSON(n)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "compact":
		s, err := render.Compact(n)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, s)
		return err
	default:
		_, err := fmt.Fprintln(w, render.Text(n))
		return err
	}
}
