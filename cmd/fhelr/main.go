// Command fhelr trains and applies logistic regression models, optionally on encrypted
// data.
//
//	fhelr train    -d data -m model [-e]
//	fhelr classify -d data -m model -p predictions [-e]
//	fhelr accuracy -d data -p predictions
//	fhelr keygen   [-k dir]
//	fhelr serve    [-m model] [-addr :8080]
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/z3rotig4r/tfhe_logreg/cipher"
	"github.com/z3rotig4r/tfhe_logreg/config"
	"github.com/z3rotig4r/tfhe_logreg/dataset"
	"github.com/z3rotig4r/tfhe_logreg/keys"
	"github.com/z3rotig4r/tfhe_logreg/lwe"
	"github.com/z3rotig4r/tfhe_logreg/regression"
	"github.com/z3rotig4r/tfhe_logreg/server"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

var errUsage = errors.New("usage")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	data, model, prediction string
	encrypt                 bool
	configFile, keyDir      string
	workers                 int
	policy                  string
	iterations              int
	addr                    string
}

type command struct {
	name  string
	usage string
	run   func(opts options, cfg config.Config, stdout io.Writer, logger *log.Logger) error
}

var commands = []command{
	{"train", "-d data -m model [-e]", train},
	{"classify", "-d data -m model -p predictions [-e]", classify},
	{"accuracy", "-d data -p predictions", accuracy},
	{"keygen", "[-k dir]", keygen},
	{"serve", "[-m model] [-addr :8080]", serve},
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: fhelr <command> [flags]")
	for _, c := range commands {
		fmt.Fprintf(w, "  fhelr %-9s %s\n", c.name, c.usage)
	}
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return exitUsage
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == args[0] {
			cmd = &commands[i]
		}
	}
	if cmd == nil {
		fmt.Fprintf(stderr, "unknown command %q\n", args[0])
		usage(stderr)
		return exitUsage
	}

	var opts options
	fs := flag.NewFlagSet(cmd.name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.data, "d", "", "training data file")
	fs.StringVar(&opts.model, "m", "", "model file")
	fs.StringVar(&opts.prediction, "p", "", "predictions file")
	fs.BoolVar(&opts.encrypt, "e", false, "enable encryption")
	fs.StringVar(&opts.configFile, "c", "", "JSON configuration file")
	fs.StringVar(&opts.keyDir, "k", "", "key directory (overrides the configuration)")
	fs.IntVar(&opts.workers, "w", 0, "bootstrap workers (overrides the configuration)")
	fs.StringVar(&opts.policy, "policy", "", "noise policy: noiseless or refreshed")
	fs.IntVar(&opts.iterations, "i", 0, "number of training iterations (overrides the configuration)")
	fs.StringVar(&opts.addr, "addr", "", "listen address of serve")
	if err := fs.Parse(args[1:]); err != nil {
		return exitUsage
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(stderr, "❌ %v\n", err)
		return exitError
	}

	logger := log.New(stderr, "", log.LstdFlags)
	cfg.Plain.Logger = logger
	cfg.Encrypted.Logger = logger

	if err := cmd.run(opts, cfg, stdout, logger); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(stderr, err)
			fmt.Fprintf(stderr, "usage: fhelr %s %s\n", cmd.name, cmd.usage)
			return exitUsage
		}
		fmt.Fprintf(stderr, "❌ %v\n", err)
		return exitError
	}

	return exitOK
}

func loadConfig(opts options) (config.Config, error) {
	cfg := config.Default()
	if opts.configFile != "" {
		var err error
		if cfg, err = config.Load(opts.configFile); err != nil {
			return cfg, err
		}
	}

	if opts.keyDir != "" {
		cfg.KeyDir = opts.keyDir
	}
	if opts.workers > 0 {
		cfg.Workers = opts.workers
	}
	if opts.policy != "" {
		cfg.Policy = opts.policy
	}
	if opts.iterations > 0 {
		cfg.Plain.Iterations = opts.iterations
		cfg.Encrypted.Iterations = opts.iterations
	}
	if opts.addr != "" {
		cfg.Server.Addr = opts.addr
	}

	return cfg, cfg.Validate()
}

func requireFlag(flagName, option, value string) error {
	if value == "" {
		return fmt.Errorf("%w: please fill the %s option using -%s", errUsage, option, flagName)
	}
	return nil
}

// trustedContext loads or generates the keys of the configuration and returns them with
// an evaluation context.
func trustedContext(cfg config.Config, logger *log.Logger) (*keys.Keys, *cipher.Context, error) {
	params, err := cfg.LWEParameters()
	if err != nil {
		return nil, nil, err
	}

	k, err := keys.LoadOrGenerate(cfg.KeyDir, params, logger)
	if err != nil {
		return nil, nil, err
	}

	opts, err := cfg.CipherOptions()
	if err != nil {
		return nil, nil, err
	}

	ctx, err := k.Context(opts)
	if err != nil {
		return nil, nil, err
	}
	return k, ctx, nil
}

func train(opts options, cfg config.Config, stdout io.Writer, logger *log.Logger) error {
	if err := requireFlag("d", "data_file", opts.data); err != nil {
		return err
	}
	if err := requireFlag("m", "model_file", opts.model); err != nil {
		return err
	}

	data, err := dataset.ParseFile(opts.data)
	if err != nil {
		return err
	}

	var beta []float64
	if opts.encrypt {
		k, ctx, err := trustedContext(cfg, logger)
		if err != nil {
			return err
		}
		beta, err = regression.TrainEncrypted(k, ctx, data.X, data.Y, cfg.Encrypted)
		if err != nil {
			return err
		}
	} else {
		if beta, err = regression.TrainPlain(data.X, data.Y, cfg.Plain); err != nil {
			return err
		}
	}

	if err := dataset.WriteModel(opts.model, beta); err != nil {
		return err
	}

	fmt.Fprintln(stdout, "Trained successfully!")
	fmt.Fprintln(stdout, "generated model file!")
	return nil
}

func classify(opts options, cfg config.Config, stdout io.Writer, logger *log.Logger) error {
	if err := requireFlag("d", "data_file", opts.data); err != nil {
		return err
	}
	if err := requireFlag("m", "model_file", opts.model); err != nil {
		return err
	}
	if err := requireFlag("p", "prediction_file", opts.prediction); err != nil {
		return err
	}

	data, err := dataset.ParseFile(opts.data)
	if err != nil {
		return err
	}
	beta, err := dataset.ReadModel(opts.model)
	if err != nil {
		return err
	}

	var predictions []float64
	if opts.encrypt {
		k, ctx, err := trustedContext(cfg, logger)
		if err != nil {
			return err
		}
		if predictions, err = regression.ClassifyEncrypted(k, ctx, beta, data.X); err != nil {
			return err
		}
	} else {
		if predictions, err = regression.ClassifyPlain(beta, data.X); err != nil {
			return err
		}
	}

	if err := dataset.WritePredictions(opts.prediction, predictions); err != nil {
		return err
	}

	fmt.Fprintln(stdout, "Classified successfully!")
	fmt.Fprintln(stdout, "generated prediction file!")
	return nil
}

func accuracy(opts options, _ config.Config, stdout io.Writer, _ *log.Logger) error {
	if err := requireFlag("d", "data_file", opts.data); err != nil {
		return err
	}
	if err := requireFlag("p", "prediction_file", opts.prediction); err != nil {
		return err
	}

	acc, total, err := regression.AccuracyFiles(opts.prediction, opts.data)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Accuracy: %v%%, over %d records\n", acc*100, total)
	return nil
}

func keygen(_ options, cfg config.Config, stdout io.Writer, logger *log.Logger) error {
	params, err := cfg.LWEParameters()
	if err != nil {
		return err
	}
	if _, err = keys.LoadOrGenerate(cfg.KeyDir, params, logger); err != nil {
		return err
	}

	sk, bsk, ksk := keys.Paths(cfg.KeyDir, params)
	fmt.Fprintf(stdout, "🔑 Keys %s ready:\n  %s\n  %s\n  %s\n", params.Prefix(), sk, bsk, ksk)
	return nil
}

// computeContext builds an evaluation context from the public keys only. It returns nil
// when the keys have not been generated.
func computeContext(cfg config.Config, params lwe.Parameters) (*cipher.Context, error) {
	evk, err := keys.LoadEvaluationKeys(cfg.KeyDir, params)
	if errors.Is(err, keys.ErrKeysNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	opts, err := cfg.CipherOptions()
	if err != nil {
		return nil, err
	}
	return cipher.NewContext(params, evk, opts)
}

func serve(opts options, cfg config.Config, _ io.Writer, logger *log.Logger) error {
	params, err := cfg.LWEParameters()
	if err != nil {
		return err
	}

	ctx, err := computeContext(cfg, params)
	if err != nil {
		return err
	}
	if ctx == nil {
		logger.Printf("⚠️  No evaluation keys in %s: encrypted inference disabled (run fhelr keygen)", cfg.KeyDir)
	}

	s := server.New(cfg.Server, cfg.Plain, ctx, logger)

	modelFile := opts.model
	if modelFile == "" {
		modelFile = cfg.Server.ModelFile
	}
	if modelFile != "" {
		beta, err := dataset.ReadModel(modelFile)
		if err != nil {
			return err
		}
		s.SetModel(beta)
	}

	return s.ListenAndServe()
}
