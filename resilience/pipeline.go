package resilience

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gaborage/sdkcore/config"
	"github.com/gaborage/sdkcore/logger"
	"github.com/gaborage/sdkcore/middleware"
)

// Stage names a position in the resilience pipeline.
type Stage string

const (
	StageRateLimit      Stage = "rate_limit"
	StageTotalTimeout   Stage = "total_timeout"
	StageRetry          Stage = "retry"
	StageAttemptTimeout Stage = "attempt_timeout"
	StageCircuitBreaker Stage = "circuit_breaker"
)

// ErrUnknownStage is returned by Pipeline.Override for a stage that is not installed.
var ErrUnknownStage = errors.New("unknown resilience stage")

type namedStage struct {
	name Stage
	mw   middleware.Middleware
}

// Pipeline is the ordered list of stages, outermost first. Customizers receive it
// after the defaults are installed and may replace or add stages. Stages cannot be
// removed; override one with middleware.Passthrough to neutralize it.
type Pipeline struct {
	stages []namedStage
}

// Stages returns the stage names, outermost first.
func (p *Pipeline) Stages() []Stage {
	out := make([]Stage, len(p.stages))
	for i, s := range p.stages {
		out[i] = s.name
	}
	return out
}

// Override replaces the middleware of an installed stage.
func (p *Pipeline) Override(stage Stage, mw middleware.Middleware) error {
	for i := range p.stages {
		if p.stages[i].name == stage {
			p.stages[i].mw = mw
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownStage, stage)
}

// Prepend adds an outermost stage.
func (p *Pipeline) Prepend(name Stage, mw middleware.Middleware) {
	p.stages = append([]namedStage{{name: name, mw: mw}}, p.stages...)
}

// Append adds an innermost stage, directly above the transport.
func (p *Pipeline) Append(name Stage, mw middleware.Middleware) {
	p.stages = append(p.stages, namedStage{name: name, mw: mw})
}

// Middleware composes the stages into one middleware.
func (p *Pipeline) Middleware() middleware.Middleware {
	mws := make([]middleware.Middleware, len(p.stages))
	for i, s := range p.stages {
		mws[i] = s.mw
	}
	return func(next http.RoundTripper) http.RoundTripper {
		return middleware.Chain(next, mws...)
	}
}

// Customizer adjusts the default pipeline of a client.
type Customizer func(*Pipeline) error

// Composer owns the resilience pipeline and circuit breaker of one named client.
type Composer struct {
	name     string
	settings Settings
	breaker  *Breaker
	pipeline *Pipeline
}

// NewComposer installs the default stages for s and applies customizers in order.
// When s.Enabled is false the composer is a passthrough and customizers are ignored.
func NewComposer(name string, s Settings, log logger.Logger, customizers ...Customizer) (*Composer, error) {
	c := &Composer{name: name, settings: s, pipeline: &Pipeline{}}
	if !s.Enabled {
		return c, nil
	}

	c.breaker = NewBreaker(name, s.CircuitBreaker, log)
	p := c.pipeline
	if s.RateLimit.RequestsPerSecond > 0 {
		p.Append(StageRateLimit, RateLimit(s.RateLimit))
	}
	if s.Profile == config.ProfileStandard {
		p.Append(StageTotalTimeout, TotalTimeout(s.TotalTimeout))
	}
	p.Append(StageRetry, Retry(s.Retry, log))
	p.Append(StageAttemptTimeout, AttemptTimeout(s.AttemptTimeout))
	p.Append(StageCircuitBreaker, c.breaker.Middleware())

	for _, customize := range customizers {
		if customize == nil {
			continue
		}
		if err := customize(p); err != nil {
			return nil, fmt.Errorf("customize resilience pipeline %q: %w", name, err)
		}
	}
	return c, nil
}

// Name returns the client name.
func (c *Composer) Name() string { return c.name }

// Settings returns the resolved settings.
func (c *Composer) Settings() Settings { return c.settings }

// Pipeline returns the composed pipeline. It is empty when resilience is disabled.
func (c *Composer) Pipeline() *Pipeline { return c.pipeline }

// Breaker returns the circuit breaker, or nil when resilience is disabled.
func (c *Composer) Breaker() *Breaker { return c.breaker }

// Middleware returns the composed pipeline as one middleware.
func (c *Composer) Middleware() middleware.Middleware {
	if !c.settings.Enabled {
		return middleware.Passthrough()
	}
	return c.pipeline.Middleware()
}
