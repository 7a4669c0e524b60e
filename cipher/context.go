// Package cipher implements encrypted real numbers and the vector algebra built on them.
//
// Every value is an LWE ciphertext with a declared range. Additions and subtractions are
// exact, everything nonlinear goes through one programmable bootstrap, and products are
// synthesized as ((a+b)^2 - (a-b)^2)/4 with two bootstraps.
package cipher

import (
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/z3rotig4r/tfhe_logreg/lwe"
)

// Policy selects how noise is managed across linear operations.
type Policy int

const (
	// PolicyNoiseless keeps additions and subtractions exact. Operands are only
	// re-encoded when their encodings cannot be combined.
	PolicyNoiseless Policy = iota
	// PolicyRefreshed bootstraps the result of every addition and subtraction through
	// the identity, which costs one bootstrap but restores the padding budget.
	PolicyRefreshed
)

func (p Policy) String() string {
	switch p {
	case PolicyNoiseless:
		return "noiseless"
	case PolicyRefreshed:
		return "refreshed"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy parses the name of a policy as printed by String.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "noiseless":
		return PolicyNoiseless, nil
	case "refreshed":
		return PolicyRefreshed, nil
	}
	return 0, fmt.Errorf("unknown policy %q (want noiseless or refreshed)", s)
}

// Options configure a Context.
type Options struct {
	Policy  Policy
	Workers int // 0 selects runtime.NumCPU()
}

// Context is the immutable evaluation context shared by all values derived from one
// key generation. It holds the evaluation keys only.
type Context struct {
	eval    *lwe.Evaluator
	policy  Policy
	workers int
}

// NewContext returns a context evaluating under evk.
func NewContext(params lwe.Parameters, evk *lwe.EvaluationKeySet, opts Options) (*Context, error) {
	workers := opts.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	if opts.Policy != PolicyNoiseless && opts.Policy != PolicyRefreshed {
		return nil, fmt.Errorf("new context: unknown policy %s", opts.Policy)
	}

	eval, err := lwe.NewEvaluator(params, evk, workers)
	if err != nil {
		return nil, fmt.Errorf("new context: %w", err)
	}

	return &Context{eval: eval, policy: opts.Policy, workers: workers}, nil
}

func (c *Context) Parameters() lwe.Parameters {
	return c.eval.Parameters()
}

func (c *Context) Evaluator() *lwe.Evaluator {
	return c.eval
}

func (c *Context) Policy() Policy {
	return c.policy
}

func (c *Context) Workers() int {
	return c.workers
}

// Encoding returns the encoding of [min, max] with the default budgets of the parameters.
func (c *Context) Encoding(min, max float64) lwe.Encoding {
	return c.Parameters().Encoding(min, max)
}

// Wrap binds a ciphertext to the context. The ciphertext must not be modified afterwards.
func (c *Context) Wrap(ct *lwe.Ciphertext) *Float {
	return &Float{ctx: c, ct: ct}
}

// Parallel runs f(0), ..., f(n-1) on up to Workers() goroutines and returns the first error.
func (c *Context) Parallel(n int, f func(i int) error) error {
	if n == 0 {
		return nil
	}

	workers := min(c.workers, n)
	if workers == 1 {
		for i := 0; i < n; i++ {
			if err := f(i); err != nil {
				return err
			}
		}
		return nil
	}

	var firstErr error
	var errMu sync.Mutex
	recordErr := func(e error) {
		errMu.Lock()
		if firstErr == nil {
			firstErr = e
		}
		errMu.Unlock()
	}

	perWorker := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * perWorker
		end := min(n, start+perWorker)
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				if err := f(i); err != nil {
					recordErr(err)
					return
				}
			}
		}(start, end)
	}
	wg.Wait()

	return firstErr
}

// sum adds terms pairwise, level by level, so that operands of one level share their encodings.
func (c *Context) sum(terms []*Float) (*Float, error) {
	if len(terms) == 0 {
		return nil, ErrEmpty
	}

	for len(terms) > 1 {
		next := make([]*Float, (len(terms)+1)/2)
		if err := c.Parallel(len(terms)/2, func(i int) (err error) {
			next[i], err = terms[2*i].Add(terms[2*i+1])
			return
		}); err != nil {
			return nil, err
		}
		if len(terms)%2 == 1 {
			next[len(next)-1] = terms[len(terms)-1]
		}
		terms = next
	}

	return terms[0], nil
}
