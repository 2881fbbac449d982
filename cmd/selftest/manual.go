package main

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/essgate/selftest/internal/hardware/periph"
	"github.com/essgate/selftest/internal/status"
)

// setAnalog drives one analog output from an "id,percent" argument.
func setAnalog(arg string) error {
	id, percent, err := parseAnalog(arg)
	if err != nil {
		return err
	}
	io, err := periph.Open(cfg.Hardware, logger.Named("hardware"))
	if err != nil {
		return err
	}
	if err := io.SetAnalog(id, percent); err != nil {
		return err
	}
	logger.Info("analog output set", zap.Int("id", id), zap.Float64("percent", percent))
	return nil
}

// writeLCD writes "row1|row2" to the display.
func writeLCD(arg string) error {
	rows := parseRows(arg)
	io, err := periph.Open(cfg.Hardware, logger.Named("hardware"))
	if err != nil {
		return err
	}
	for row, text := range rows {
		if err := io.WriteAt(row, 0, text); err != nil {
			return err
		}
	}
	return nil
}

func setBacklight(percent float64) error {
	io, err := periph.Open(cfg.Hardware, logger.Named("hardware"))
	if err != nil {
		return err
	}
	return io.SetBacklight(percent)
}

func parseAnalog(arg string) (int, float64, error) {
	idText, pctText, ok := strings.Cut(arg, ",")
	if !ok {
		return 0, 0, fmt.Errorf("aout %q: want id,percent", arg)
	}
	id, err := strconv.Atoi(strings.TrimSpace(idText))
	if err != nil {
		return 0, 0, fmt.Errorf("aout id %q: %w", idText, err)
	}
	percent, err := strconv.ParseFloat(strings.TrimSpace(pctText), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("aout percent %q: %w", pctText, err)
	}
	return id, percent, nil
}

// parseRows splits on the first '|' and pads each row to the display width.
func parseRows(arg string) [2]string {
	first, second, _ := strings.Cut(arg, "|")
	return [2]string{
		fmt.Sprintf("%-*s", status.Columns, first),
		fmt.Sprintf("%-*s", status.Columns, second),
	}
}
