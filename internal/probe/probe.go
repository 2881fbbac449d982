// Package probe checks that the storage system answers on the RS485 bus: one
// holding-register read per run, classified as ok, exception, transport or connect.
package probe

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/goburrow/modbus"
	"go.uber.org/zap"
)

// Client abstracts the register read the probe needs.
type Client interface {
	ReadHoldingRegisters(addr, qty uint16) ([]uint16, error) // FC 3
	Close() error
}

// Dialer opens a client for a profile. ONE attempt per call.
type Dialer func(p Profile) (Client, error)

// Outcome classifies one probe.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeException
	OutcomeTransport
	OutcomeConnect
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeException:
		return "exception"
	case OutcomeTransport:
		return "transport"
	case OutcomeConnect:
		return "connect"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is the classified outcome of one probe.
type Result struct {
	Outcome       Outcome
	ExceptionCode byte
	Registers     []uint16
	Attempts      int
	Err           error
}

// OK reports a well-formed response.
func (r Result) OK() bool { return r.Outcome == OutcomeOK }

// Prober runs bus probes. At most one transaction is active at a time.
type Prober struct {
	dial  Dialer
	paths PortPaths
	log   *zap.Logger

	mu sync.Mutex
}

func New(dial Dialer, paths PortPaths, log *zap.Logger) *Prober {
	if log == nil {
		log = zap.NewNop()
	}
	return &Prober{dial: dial, paths: paths, log: log}
}

// Probe opens the bus, reads Count registers at Address from UnitID, and closes.
// A transport failure is resent up to Retries times; an exception response is final.
// The returned error is non-nil whenever the outcome is not OK.
func (p *Prober) Probe(ctx context.Context, prof Profile) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	log := p.log.With(
		zap.String("profile", prof.Key),
		zap.String("port", prof.Port),
		zap.Int("baud", prof.BaudRate),
		zap.Uint8("unit", prof.UnitID),
		zap.Uint16("address", prof.Address),
	)

	if from, err := p.paths.Prepare(prof.Port); err != nil {
		log.Warn("port preparation failed", zap.Error(err))
	} else if from != "" {
		log.Info("serial device renamed", zap.String("from", from))
	}

	client, err := p.dial(prof)
	if err != nil {
		log.Error("modbus connection error", zap.Error(err))
		return fail(Result{Outcome: OutcomeConnect, Err: err})
	}
	defer func() {
		if cerr := client.Close(); cerr != nil {
			log.Debug("modbus close failed", zap.Error(cerr))
		}
	}()

	res := Result{}
	for attempt := 0; attempt <= prof.Retries; attempt++ {
		if err := ctx.Err(); err != nil {
			res.Outcome, res.Err = OutcomeTransport, err
			break
		}

		res.Attempts++
		regs, err := client.ReadHoldingRegisters(prof.Address, prof.Count)
		if err == nil {
			if len(regs) != int(prof.Count) {
				res.Outcome = OutcomeTransport
				res.Err = fmt.Errorf("modbus: got %d registers, want %d", len(regs), prof.Count)
				continue
			}
			return Result{Outcome: OutcomeOK, Registers: regs, Attempts: res.Attempts}, nil
		}

		var mbErr *modbus.ModbusError
		if errors.As(err, &mbErr) {
			log.Error("modbus exception response", zap.Uint8("exception_code", mbErr.ExceptionCode))
			res.Outcome, res.ExceptionCode, res.Err = OutcomeException, mbErr.ExceptionCode, err
			return fail(res)
		}

		log.Warn("modbus transport error", zap.Int("attempt", res.Attempts), zap.Error(err))
		res.Outcome, res.Err = OutcomeTransport, err
	}

	log.Error("modbus execution error", zap.Int("attempts", res.Attempts), zap.Error(res.Err))
	return fail(res)
}

func fail(res Result) (Result, error) {
	if res.Outcome == OutcomeException {
		return res, fmt.Errorf("modbus error: exception code %d", res.ExceptionCode)
	}
	return res, fmt.Errorf("modbus %s error: %w", res.Outcome, res.Err)
}
