package fixup

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	// ErrLevelOutOfRange is returned for a level that has no finer level to
	// correct it from
	ErrLevelOutOfRange = errors.New("level out of range")
	// ErrMissingCorrector is returned when an enabled pass has no implementation
	ErrMissingCorrector = errors.New("missing corrector")
)

// FieldMask selects which stored variables a correction pass touches
type FieldMask uint8

const (
	FieldTotal FieldMask = 1 << iota // all cell-centered conserved variables
	FieldMag                         // face-centered magnetic field
)

func (m FieldMask) Has(f FieldMask) bool { return m&f != 0 }

// Request tells a correction pass which storage generations to use: the finer
// level's generation to read and the coarser level's generation to correct
type Request struct {
	FluSrc, FluDst int
	MagSrc, MagDst int
	HasMag         bool
	Mask           FieldMask

	// Restricted is set once the restriction pass has overwritten the coarse
	// data covered by the finer level
	Restricted bool
}

// Restrictor averages the finer level down into the coincident coarser cells
type Restrictor interface {
	Restrict(lv int, req Request) error
}

// ElectricCorrector corrects the coarser B field with the finer level's
// line-integrated electric field on the coarse-fine interface
type ElectricCorrector interface {
	CorrectElectric(lv int, req Request) error
}

// FluxCorrector replaces the coarse flux across the coarse-fine interface with
// the finer level's time-integrated flux
type FluxCorrector interface {
	CorrectFlux(lv int, req Request) error
}

// Levels exposes the storage generations of the levels being corrected
type Levels interface {
	NumLevels() int
	Generations(lv int) (fluSg, magSg int)
}

// Options toggles the three correction passes
type Options struct {
	Restrict bool
	Electric bool
	Flux     bool
}

// Orchestrator applies the coarse-fine corrections of one level in a fixed order:
// restriction, electric-field correction, flux correction. Flux correction runs
// last because its validity screen reads the coarse B field, which must already
// reflect the first two passes.
type Orchestrator struct {
	opts       Options
	magnetized bool
	levels     Levels
	restrictor Restrictor
	electric   ElectricCorrector
	flux       FluxCorrector
	logger     *zap.Logger
}

// Config wires an Orchestrator
type Config struct {
	Options    Options
	Magnetized bool
	Levels     Levels
	Restrictor Restrictor
	Electric   ElectricCorrector
	Flux       FluxCorrector
	Logger     *zap.Logger
}

// NewOrchestrator checks that every enabled pass has a corrector
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Levels == nil {
		return nil, errors.New("orchestrator needs the level storage")
	}
	if cfg.Options.Restrict && cfg.Restrictor == nil {
		return nil, fmt.Errorf("%w: restriction enabled", ErrMissingCorrector)
	}
	if cfg.Magnetized && cfg.Options.Electric && cfg.Electric == nil {
		return nil, fmt.Errorf("%w: electric-field correction enabled", ErrMissingCorrector)
	}
	if cfg.Options.Flux && cfg.Flux == nil {
		return nil, fmt.Errorf("%w: flux correction enabled", ErrMissingCorrector)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		opts:       cfg.Options,
		magnetized: cfg.Magnetized,
		levels:     cfg.Levels,
		restrictor: cfg.Restrictor,
		electric:   cfg.Electric,
		flux:       cfg.Flux,
		logger:     logger,
	}, nil
}

// Options returns the enabled passes
func (o *Orchestrator) Options() Options { return o.opts }

// ApplyCorrections corrects level lv with the data of level lv+1. Both levels
// must already have advanced to the same time.
func (o *Orchestrator) ApplyCorrections(lv int) error {
	if lv < 0 || lv+1 >= o.levels.NumLevels() {
		return fmt.Errorf("%w: %d (levels: %d)", ErrLevelOutOfRange, lv, o.levels.NumLevels())
	}
	fineFlu, fineMag := o.levels.Generations(lv + 1)
	coarseFlu, coarseMag := o.levels.Generations(lv)

	// 1. restrict the finer level; the potential is deliberately left alone
	if o.opts.Restrict {
		req := Request{FluSrc: fineFlu, FluDst: coarseFlu, Mask: FieldTotal}
		if o.magnetized {
			req.HasMag = true
			req.MagSrc, req.MagDst = fineMag, coarseMag
			req.Mask |= FieldMag
		}
		if err := o.restrictor.Restrict(lv, req); err != nil {
			return fmt.Errorf("restrict level %d: %w", lv, err)
		}
		o.logger.Debug("restricted", zap.Int("level", lv))
	}

	// 2. fine-level electric field on coarse-fine edges corrects the coarse B
	if o.magnetized && o.opts.Electric {
		req := Request{FluSrc: fineFlu, FluDst: coarseFlu, HasMag: true, MagSrc: fineMag, MagDst: coarseMag, Mask: FieldMag, Restricted: o.opts.Restrict}
		if err := o.electric.CorrectElectric(lv, req); err != nil {
			return fmt.Errorf("electric correction level %d: %w", lv, err)
		}
		o.logger.Debug("electric field corrected", zap.Int("level", lv))
	}

	// 3. must come last: it screens corrected cells with the updated coarse B
	if o.opts.Flux {
		req := Request{FluSrc: fineFlu, FluDst: coarseFlu, Mask: FieldTotal}
		if o.magnetized {
			req.HasMag = true
			req.MagSrc, req.MagDst = fineMag, coarseMag
		}
		if err := o.flux.CorrectFlux(lv, req); err != nil {
			return fmt.Errorf("flux correction level %d: %w", lv, err)
		}
		o.logger.Debug("flux corrected", zap.Int("level", lv))
	}
	return nil
}
