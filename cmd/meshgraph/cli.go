package main

import (
	"github.com/spf13/pflag"
)

// Options holds CLI options. Empty strings keep the configured value.
type Options struct {
	ConfigPath string
	Input      string
	Peer       string
	Mode       string
	Format     string
	Compress   bool
	Tensors    bool
	Stream     bool
	RoundTrip  bool
	LogLevel   string
}

// ParseFlags parses CLI flags from args and returns Options.
func ParseFlags(args []string) (Options, error) {
	fs := pflag.NewFlagSet("meshgraph", pflag.ContinueOnError)
	var opts Options
	fs.StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config file")
	fs.StringVarP(&opts.Input, "in", "i", "-", "JSON document to send (- for stdin)")
	fs.StringVar(&opts.Peer, "peer", "peer-1", "id of the receiving node")
	fs.StringVarP(&opts.Mode, "mode", "m", "", "reconstruction policy: subscribe or acquire")
	fs.StringVarP(&opts.Format, "format", "f", "", "wire format: json, cbor, msgpack or proto")
	fs.BoolVarP(&opts.Compress, "compress", "z", false, "zstd-compress frame bodies")
	fs.BoolVar(&opts.Tensors, "tensors", true, "send numeric lists as tensors owned by the sender")
	fs.BoolVar(&opts.Stream, "stream", false, "exchange frames over an in-process stream with a hello handshake")
	fs.BoolVar(&opts.RoundTrip, "roundtrip", false, "send the received graph back to the sender")
	fs.StringVar(&opts.LogLevel, "log-level", "", "override log.level")
	if err := fs.Parse(args); err != nil {
		return Options{}, err
	}
	if fs.NArg() > 0 && opts.Input == "-" {
		opts.Input = fs.Arg(0)
	}
	return opts, nil
}
