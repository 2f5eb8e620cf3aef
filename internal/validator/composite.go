package validator

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hstp/node/internal/activity"
)

// Strategy controls how a CompositeValidator runs its member validators
// (§4.9).
type Strategy string

const (
	StrategyAll          Strategy = "ALL"
	StrategyFirstSuccess Strategy = "FIRST_SUCCESS"
	StrategyFirstFailure Strategy = "FIRST_FAILURE"
	StrategyParallel     Strategy = "PARALLEL"
	StrategyPriority     Strategy = "PRIORITY"
)

// CompositeConfig configures a CompositeValidator.
type CompositeConfig struct {
	Strategy           Strategy
	StopOnFirstFailure bool
	AllowErrors        bool
}

// CompositeValidator chains multiple ActivityValidators under one of the
// five strategies described in §4.9.
type CompositeValidator struct {
	cfg        CompositeConfig
	validators []ActivityValidator

	mu        sync.RWMutex
	listeners []Listener
}

// NewCompositeValidator builds a composite over validators, in the given
// order (used as-is except under StrategyPriority, which re-sorts).
func NewCompositeValidator(cfg CompositeConfig, validators ...ActivityValidator) *CompositeValidator {
	ordered := append([]ActivityValidator(nil), validators...)
	if cfg.Strategy == StrategyPriority {
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].Priority() < ordered[j].Priority()
		})
	}
	return &CompositeValidator{cfg: cfg, validators: ordered}
}

// AddListener registers a callback invoked after every validation call with
// the schema, context, and aggregate result (§4.9's event stream).
func (c *CompositeValidator) AddListener(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

func (c *CompositeValidator) notify(schema *activity.Schema, vctx Context, result Result) {
	c.mu.RLock()
	listeners := append([]Listener(nil), c.listeners...)
	c.mu.RUnlock()
	for _, l := range listeners {
		l(schema, vctx, result)
	}
}

// run applies the composite's strategy across step, one call per validator
// that CanValidate(schema) (or unconditionally, for variable-level calls
// where schema is nil).
func (c *CompositeValidator) run(ctx context.Context, schema *activity.Schema, vctx Context, step func(ActivityValidator) (Result, error)) (Result, error) {
	applicable := make([]ActivityValidator, 0, len(c.validators))
	for _, v := range c.validators {
		if schema == nil || v.CanValidate(schema) {
			applicable = append(applicable, v)
		}
	}

	var result Result
	var err error
	switch c.cfg.Strategy {
	case StrategyFirstSuccess:
		result, err = c.runFirstSuccess(applicable, step)
	case StrategyFirstFailure:
		result, err = c.runFirstFailure(applicable, step)
	case StrategyParallel:
		result, err = c.runParallel(ctx, applicable, step)
	default: // ALL, PRIORITY (PRIORITY pre-sorted the slice; runs as ALL)
		result, err = c.runAll(applicable, step)
	}
	if err == nil {
		c.notify(schema, vctx, result)
	}
	return result, err
}

func (c *CompositeValidator) runAll(validators []ActivityValidator, step func(ActivityValidator) (Result, error)) (Result, error) {
	agg := ok()
	agg.Metadata = map[string]any{}
	for _, v := range validators {
		r, err := step(v)
		if err != nil {
			if c.cfg.AllowErrors {
				continue
			}
			return Result{}, err
		}
		agg.merge(r)
		if c.cfg.StopOnFirstFailure && !r.IsValid {
			break
		}
	}
	return agg, nil
}

func (c *CompositeValidator) runFirstSuccess(validators []ActivityValidator, step func(ActivityValidator) (Result, error)) (Result, error) {
	var last Result
	for _, v := range validators {
		r, err := step(v)
		if err != nil {
			if c.cfg.AllowErrors {
				continue
			}
			return Result{}, err
		}
		last = r
		if r.IsValid {
			return r, nil
		}
	}
	return last, nil
}

func (c *CompositeValidator) runFirstFailure(validators []ActivityValidator, step func(ActivityValidator) (Result, error)) (Result, error) {
	var last Result
	for _, v := range validators {
		r, err := step(v)
		if err != nil {
			if c.cfg.AllowErrors {
				continue
			}
			return Result{}, err
		}
		last = r
		if !r.IsValid {
			return r, nil
		}
	}
	return last, nil
}

func (c *CompositeValidator) runParallel(ctx context.Context, validators []ActivityValidator, step func(ActivityValidator) (Result, error)) (Result, error) {
	results := make([]Result, len(validators))
	g, _ := errgroup.WithContext(ctx)
	for i, v := range validators {
		i, v := i, v
		g.Go(func() error {
			r, err := step(v)
			if err != nil {
				if c.cfg.AllowErrors {
					return nil
				}
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	agg := ok()
	for _, r := range results {
		agg.merge(r)
	}
	return agg, nil
}

var _ ActivityValidator = (*CompositeValidator)(nil)

func (c *CompositeValidator) Name() string  { return "composite" }
func (c *CompositeValidator) Priority() int { return 0 }

func (c *CompositeValidator) CanValidate(schema *activity.Schema) bool {
	for _, v := range c.validators {
		if v.CanValidate(schema) {
			return true
		}
	}
	return false
}

func (c *CompositeValidator) Init(ctx context.Context) error {
	for _, v := range c.validators {
		if err := v.Init(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (c *CompositeValidator) Shutdown(ctx context.Context) error {
	for _, v := range c.validators {
		if err := v.Shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (c *CompositeValidator) ValidateSchema(ctx context.Context, vctx Context, schema *activity.Schema) (Result, error) {
	return c.run(ctx, schema, vctx, func(v ActivityValidator) (Result, error) {
		return v.ValidateSchema(ctx, vctx, schema)
	})
}

func (c *CompositeValidator) ValidateInput(ctx context.Context, vctx Context, schema *activity.Schema, input map[string]any) (Result, error) {
	return c.run(ctx, schema, vctx, func(v ActivityValidator) (Result, error) {
		return v.ValidateInput(ctx, vctx, schema, input)
	})
}

func (c *CompositeValidator) ValidateOutput(ctx context.Context, vctx Context, schema *activity.Schema, output map[string]any) (Result, error) {
	return c.run(ctx, schema, vctx, func(v ActivityValidator) (Result, error) {
		return v.ValidateOutput(ctx, vctx, schema, output)
	})
}

func (c *CompositeValidator) ValidateVariable(ctx context.Context, vctx Context, def activity.VariableDefinition, value any) (Result, error) {
	return c.run(ctx, nil, vctx, func(v ActivityValidator) (Result, error) {
		return v.ValidateVariable(ctx, vctx, def, value)
	})
}
