package features

import (
	"ivfeatures/internal/uncertain"
)

// Features is a flat, serializable view of every feature of a sweep
type Features struct {
	Filename   string           `json:"filename"`
	Group      string           `json:"group"`
	Cell       string           `json:"cell"`
	Protocol   string           `json:"protocol"`
	Number     int              `json:"number"`
	Extra      string           `json:"extra"`
	Injection  uncertain.Number `json:"injection"`
	Duration   uncertain.Number `json:"duration"`
	SpikeCount int              `json:"spike_count"`

	Baseline        uncertain.Value `json:"baseline"`
	Steady          uncertain.Value `json:"steady"`
	Response        uncertain.Value `json:"response"`
	Rectification   uncertain.Value `json:"rectification"`
	MeanISI         uncertain.Value `json:"mean_isi"`
	MeanSpikeHeight uncertain.Value `json:"mean_spike_height"`

	ISISpread               uncertain.Number `json:"isi_spread"`
	SpikeLatency            uncertain.Number `json:"spike_latency"`
	ChargingCurveHalfHeight uncertain.Number `json:"charging_curve_halfheight"`

	FallingCurveFunction string          `json:"falling_curve_function"`
	FallingCurveAmp      uncertain.Value `json:"falling_curve_amp"`
	FallingCurveTau      uncertain.Value `json:"falling_curve_tau"`
	FitError             string          `json:"fit_error,omitempty"`

	SpikeTimes   []uncertain.Number `json:"spike_times"`
	SpikeHeights []uncertain.Number `json:"spike_heights"`
	SpikeWidths  []uncertain.Number `json:"spike_widths"`
	SpikeAHPs    []uncertain.Number `json:"spike_ahps"`
}

// Features computes (or reads from cache) every feature of the sweep
func (s *Sweep) Features() Features {
	info := s.wave.Info()
	fit := s.FallingCurveFit()

	f := Features{
		Filename:   s.Filename(),
		Group:      info.Group,
		Cell:       info.Cell,
		Protocol:   info.Protocol.String(),
		Number:     info.Number,
		Extra:      info.Extra,
		Injection:  uncertain.Number(s.Injection()),
		Duration:   uncertain.Number(s.Duration()),
		SpikeCount: s.SpikeCount(),

		Baseline:        s.Baseline(),
		Steady:          s.Steady(),
		Response:        s.Response(),
		Rectification:   s.Rectification(),
		MeanISI:         s.MeanISI(),
		MeanSpikeHeight: s.MeanSpikeHeight(),

		ISISpread:               uncertain.Number(s.ISISpread()),
		SpikeLatency:            uncertain.Number(s.SpikeLatency()),
		ChargingCurveHalfHeight: uncertain.Number(s.ChargingCurveHalfHeight()),

		FallingCurveFunction: fit.Function.String(),
		FallingCurveAmp:      fit.Amp,
		FallingCurveTau:      fit.Tau,

		SpikeTimes:   uncertain.Numbers(s.spikeTimeView()),
		SpikeHeights: uncertain.Numbers(s.spikeHeightView()),
		SpikeWidths:  uncertain.Numbers(s.spikeWidthView()),
		SpikeAHPs:    uncertain.Numbers(s.spikeAHPView()),
	}
	if fit.Err != nil {
		f.FitError = fit.Err.Error()
	}
	return f
}
