// Command benchmark measures the precision and speed of the sigmoid approximations, of
// chained encrypted arithmetic and of end-to-end training on synthetic data.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/z3rotig4r/tfhe_logreg/cipher"
	"github.com/z3rotig4r/tfhe_logreg/config"
	"github.com/z3rotig4r/tfhe_logreg/keys"
	"github.com/z3rotig4r/tfhe_logreg/lwe"
)

var separator = strings.Repeat("=", 80)

type options struct {
	suite   string
	encrypt bool
	test    bool
	rows    int
	feats   int
	seed    uint64
	depth   int
	samples int
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var opts options
	var configFile string

	fs := flag.NewFlagSet("benchmark", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.suite, "suite", "all", "suite to run: sigmoid, noise, model or all")
	fs.BoolVar(&opts.encrypt, "e", false, "run the encrypted variants")
	fs.BoolVar(&opts.test, "test", false, "use the insecure test parameters")
	fs.StringVar(&configFile, "c", "", "JSON configuration file")
	fs.IntVar(&opts.rows, "n", 200, "synthetic rows of the model suite")
	fs.IntVar(&opts.feats, "features", 4, "synthetic features of the model suite")
	fs.Uint64Var(&opts.seed, "seed", 1, "seed of the synthetic data")
	fs.IntVar(&opts.depth, "depth", 6, "length of the operation chains of the noise suite")
	fs.IntVar(&opts.samples, "samples", 16, "samples per operation of the noise suite")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg := config.Default()
	if configFile != "" {
		var err error
		if cfg, err = config.Load(configFile); err != nil {
			fmt.Fprintf(stderr, "❌ %v\n", err)
			return 1
		}
	}
	if opts.test {
		cfg.Parameters = lwe.TestParameters
	}

	b := &bench{opts: opts, cfg: cfg, out: stdout, logger: log.New(stderr, "", log.LstdFlags)}
	if err := b.run(); err != nil {
		fmt.Fprintf(stderr, "❌ %v\n", err)
		return 1
	}
	return 0
}

type bench struct {
	opts   options
	cfg    config.Config
	out    io.Writer
	logger *log.Logger

	keys *keys.Keys
	ctx  *cipher.Context
}

func (b *bench) run() error {
	suites := map[string]func() error{
		"sigmoid": b.sigmoid,
		"noise":   b.noise,
		"model":   b.model,
	}

	if b.opts.suite != "all" {
		suite, ok := suites[b.opts.suite]
		if !ok {
			return fmt.Errorf("unknown suite %q", b.opts.suite)
		}
		return suite()
	}

	for _, name := range []string{"sigmoid", "noise", "model"} {
		if err := suites[name](); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// context generates fresh keys on first use. Benchmarks never touch the key directory.
func (b *bench) context() (*keys.Keys, *cipher.Context, error) {
	if b.ctx != nil {
		return b.keys, b.ctx, nil
	}

	params, err := b.cfg.LWEParameters()
	if err != nil {
		return nil, nil, err
	}
	opts, err := b.cfg.CipherOptions()
	if err != nil {
		return nil, nil, err
	}

	fmt.Fprintf(b.out, "🔑 Generating keys %s (N=%d, precision=%d bits)\n", params.Prefix(), params.N(), params.PrecisionBits())
	k := keys.Generate(params)
	ctx, err := k.Context(opts)
	if err != nil {
		return nil, nil, err
	}

	b.keys, b.ctx = k, ctx
	return k, ctx, nil
}

func (b *bench) header(title string) {
	fmt.Fprintln(b.out)
	fmt.Fprintln(b.out, separator)
	fmt.Fprintln(b.out, title)
	fmt.Fprintln(b.out, separator)
}
