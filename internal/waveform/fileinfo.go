package waveform

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	apperrors "ivfeatures/internal/errors"
)

// Protocol identifies the current-injection protocol of a sweep
type Protocol int

const (
	// ProtocolIV is the hyperpolarizing/depolarizing step series
	ProtocolIV Protocol = 1
	// ProtocolIF is the firing-frequency step series
	ProtocolIF Protocol = 2
)

// String returns the string representation of the protocol
func (p Protocol) String() string {
	switch p {
	case ProtocolIV:
		return "IV"
	case ProtocolIF:
		return "IF"
	default:
		return fmt.Sprintf("protocol(%d)", int(p))
	}
}

// IsValid reports whether p is one of the known protocols
func (p Protocol) IsValid() bool {
	return p == ProtocolIV || p == ProtocolIF
}

// SupportedExperiment is the only experiment family with a known injection
// schedule. Other ids are reported as format errors.
const SupportedExperiment = 1

// FileInfo is the metadata encoded in a sweep filename:
// group_cell_experiment_protocol_number_extra.ext
type FileInfo struct {
	Group      string   `json:"group"`
	Cell       string   `json:"cell"`
	Experiment int      `json:"experiment"`
	Protocol   Protocol `json:"protocol"`
	Number     int      `json:"number"`
	Extra      string   `json:"extra"`
}

// ParseFileInfo parses the six underscore-separated tokens of a sweep filename
func ParseFileInfo(filename string) (FileInfo, error) {
	base := filepath.Base(filename)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	tokens := strings.Split(stem, "_")
	if len(tokens) != 6 {
		return FileInfo{}, apperrors.NewFormatError(
			fmt.Sprintf("filename %q has %d tokens, expected 6", base, len(tokens)), nil).
			WithContext("filename", base)
	}

	ints := make([]int, 3)
	for i, tok := range tokens[2:5] {
		n, err := strconv.Atoi(tok)
		if err != nil {
			return FileInfo{}, apperrors.NewFormatError(
				fmt.Sprintf("filename %q: token %d (%q) is not an integer", base, i+3, tok), err).
				WithContext("filename", base)
		}
		ints[i] = n
	}

	return FileInfo{
		Group:      tokens[0],
		Cell:       tokens[1],
		Experiment: ints[0],
		Protocol:   Protocol(ints[1]),
		Number:     ints[2],
		Extra:      tokens[5],
	}, nil
}

// Ramp is a linear current schedule: start + increment·(sweep − 1)
type Ramp struct {
	Start     float64 `yaml:"start" json:"start"`
	Increment float64 `yaml:"increment" json:"increment"`
}

// At returns the current injected during the 1-based sweep number
func (r Ramp) At(number int) float64 {
	return r.Start + r.Increment*float64(number-1)
}

// Protocols holds the injection schedules of the two supported protocols
type Protocols struct {
	IV Ramp `yaml:"iv" json:"iv"`
	IF Ramp `yaml:"if" json:"if"`
}

// DefaultProtocols returns the standard schedules in amperes
func DefaultProtocols() Protocols {
	return Protocols{
		IV: Ramp{Start: -500e-12, Increment: 50e-12},
		IF: Ramp{Start: 200e-12, Increment: 20e-12},
	}
}

// InjectionCurrent computes the injected current for a sweep
func InjectionCurrent(info FileInfo, protocols Protocols) (float64, error) {
	if info.Experiment != SupportedExperiment {
		return 0, apperrors.NewFormatError(
			fmt.Sprintf("experiment %d has no known injection schedule", info.Experiment), nil).
			WithContext("experiment", info.Experiment)
	}
	if info.Number < 1 {
		return 0, apperrors.NewFormatError(
			fmt.Sprintf("sweep number %d is not 1-based", info.Number), nil)
	}

	switch info.Protocol {
	case ProtocolIV:
		return protocols.IV.At(info.Number), nil
	case ProtocolIF:
		return protocols.IF.At(info.Number), nil
	default:
		return 0, apperrors.NewFormatError(
			fmt.Sprintf("unknown protocol id %d", int(info.Protocol)), nil).
			WithContext("protocol", int(info.Protocol))
	}
}
