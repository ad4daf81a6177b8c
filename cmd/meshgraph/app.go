package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	"go.uber.org/zap"

	"meshgraph/pkg/config"
	"meshgraph/pkg/graph"
	"meshgraph/pkg/graphcodec"
	"meshgraph/pkg/node"
	"meshgraph/pkg/nodes"
	"meshgraph/pkg/objstore"
	"meshgraph/pkg/observability"
	"meshgraph/pkg/protocol"
	"meshgraph/pkg/protocol/stream"
)

// report is printed to stdout as JSON.
type report struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Mode    string `json:"mode"`
	Format  string `json:"format"`
	Bytes   int    `json:"frame_bytes"`
	Refs    int    `json:"refs"`
	Objects int    `json:"objects_on_receiver"`
	Value   any    `json:"value"`
	Back    any    `json:"roundtrip,omitempty"`
}

// run is the main entry point after CLI parsing.
func run(opts Options, stdin io.Reader, stdout io.Writer) int {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		return 1
	}
	applyFlags(cfg, opts)

	logger, cleanup, err := observability.SetupLogger(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to setup logger:", err)
		return 1
	}
	defer cleanup()
	logger.Debug("effective configuration", zap.Any("config", cfg))

	if err := exchange(cfg, opts, stdin, stdout); err != nil {
		logger.Error("exchange failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

func applyFlags(cfg *config.Config, opts Options) {
	if opts.Mode != "" {
		cfg.Codec.Mode = strings.ToLower(opts.Mode)
	}
	if opts.Format != "" {
		cfg.Codec.Format = strings.ToLower(opts.Format)
	}
	if opts.Compress {
		cfg.Codec.Compress = true
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
}

// nodeOptions translates the configuration for one node.
func nodeOptions(cfg *config.Config, id string) (node.Options, error) {
	format, err := protocol.ParseFormat(cfg.Codec.Format)
	if err != nil {
		return node.Options{}, err
	}
	return node.Options{
		ID:       graph.NodeID(id),
		Format:   format,
		Compress: cfg.Codec.Compress,
		Fragment: cfg.Codec.FragmentBytes,
		Store: objstore.Options{
			Shards:   cfg.Store.Shards,
			MaxBytes: cfg.Store.MaxBytes,
			TTL:      cfg.Store.ObjectTTL(),
		},
		Directory: nodes.Options{
			Shards: cfg.Directory.Shards,
			TTL:    cfg.Directory.NodeTTL(),
		},
		Codec:  []graphcodec.Option{graphcodec.WithMaxDepth(cfg.Codec.MaxDepth)},
		Logger: zap.L(),
	}, nil
}

func exchange(cfg *config.Config, opts Options, stdin io.Reader, stdout io.Writer) error {
	mode, err := graphcodec.ParseMode(cfg.Codec.Mode)
	if err != nil {
		return err
	}
	doc, err := readInput(opts.Input, stdin)
	if err != nil {
		return err
	}

	aopts, err := nodeOptions(cfg, cfg.NodeID)
	if err != nil {
		return err
	}
	bopts, err := nodeOptions(cfg, opts.Peer)
	if err != nil {
		return err
	}
	a, err := node.New(aopts)
	if err != nil {
		return err
	}
	defer a.Close()
	b, err := node.New(bopts)
	if err != nil {
		return err
	}
	defer b.Close()
	for _, p := range cfg.Peers {
		rec := nodes.Record{ID: graph.NodeID(p.ID), Addr: p.Addr, Labels: p.Labels}
		if err := a.Directory().Upsert(rec); err != nil {
			return err
		}
		if err := b.Directory().Upsert(rec); err != nil {
			return err
		}
	}

	v, err := graph.FromNative(doc)
	if err != nil {
		return err
	}
	if opts.Tensors {
		if v, err = promote(a, v); err != nil {
			return err
		}
	}

	var (
		got   node.Delivery
		bytes int
	)
	if opts.Stream {
		got, bytes, err = overStream(a, b, v, mode)
	} else {
		var frame []byte
		frame, _, err = a.Send(b.ID(), v, mode)
		if err == nil {
			bytes = len(frame)
			got, err = b.Receive(frame)
		}
	}
	if err != nil {
		return err
	}

	out := report{
		From:    string(a.ID()),
		To:      string(b.ID()),
		Mode:    got.Mode.String(),
		Format:  cfg.Codec.Format,
		Bytes:   bytes,
		Refs:    got.Refs,
		Objects: b.Store().Len(),
		Value:   graph.ToNative(got.Value),
	}
	if opts.RoundTrip {
		frame, _, err := b.Send(a.ID(), got.Value, mode)
		if err != nil {
			return err
		}
		back, err := a.Receive(frame)
		if err != nil {
			return err
		}
		out.Back = graph.ToNative(back.Value)
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func readInput(path string, stdin io.Reader) (any, error) {
	var r io.Reader = stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return normalize(doc), nil
}

// normalize turns json.Number into int64 or float64. A literal with a
// fraction or exponent stays a float.
func normalize(x any) any {
	switch t := x.(type) {
	case json.Number:
		if !strings.ContainsAny(t.String(), ".eE") {
			if i, err := t.Int64(); err == nil {
				return i
			}
		}
		f, _ := t.Float64()
		return f
	case []any:
		for i := range t {
			t[i] = normalize(t[i])
		}
	case map[string]any:
		for k := range t {
			t[k] = normalize(t[k])
		}
	}
	return x
}

// promote replaces non-empty lists of numbers with float64 tensors
// stored on n.
func promote(n *node.Node, v graph.Value) (graph.Value, error) {
	switch t := v.(type) {
	case graph.Dict:
		for k, e := range t {
			p, err := promote(n, e)
			if err != nil {
				return nil, err
			}
			t[k] = p
		}
		return t, nil
	case graph.List:
		data, ok := numbers(t)
		if !ok {
			for i, e := range t {
				p, err := promote(n, e)
				if err != nil {
					return nil, err
				}
				t[i] = p
			}
			return t, nil
		}
		x := &graph.Tensor{DType: graph.Float64, Owner: n.ID(), Shape: []int{len(data)}, Data: data}
		if _, err := n.Put(x); err != nil {
			return nil, err
		}
		return x, nil
	}
	return v, nil
}

func numbers(l graph.List) ([]float64, bool) {
	if len(l) == 0 {
		return nil, false
	}
	out := make([]float64, len(l))
	for i, e := range l {
		switch n := e.(type) {
		case graph.Int:
			out[i] = float64(n)
		case graph.Float:
			out[i] = float64(n)
		default:
			return nil, false
		}
	}
	return out, true
}

// overStream connects a and b with an in-process pipe, exchanges hellos
// and delivers v through b's serve loop.
func overStream(a, b *node.Node, v graph.Value, mode graphcodec.Mode) (node.Delivery, int, error) {
	pa, pb := net.Pipe()
	ca, cb := stream.NewNetConn(pa), stream.NewNetConn(pb)
	defer ca.Close()

	hello := make(chan error, 1)
	go func() {
		_, err := b.Handshake(cb, "pipe:"+string(b.ID()), nil)
		hello <- err
	}()
	if _, err := a.Handshake(ca, "pipe:"+string(a.ID()), nil); err != nil {
		return node.Delivery{}, 0, err
	}
	if err := <-hello; err != nil {
		return node.Delivery{}, 0, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan node.Delivery, 1)
	served := make(chan error, 1)
	go func() { served <- b.Serve(ctx, cb, func(d node.Delivery) { got <- d }) }()

	if _, err := a.Transmit(ca, b.ID(), v, mode); err != nil {
		return node.Delivery{}, 0, err
	}
	_ = ca.Close()
	err := <-served
	select {
	case d := <-got:
		rec, _ := b.Directory().Get(a.ID())
		return d, int(rec.BytesIn), nil
	default:
	}
	if err == nil {
		err = fmt.Errorf("stream closed before delivery")
	}
	return node.Delivery{}, 0, err
}
