// Package waveform loads current-clamp sweep recordings.
//
// A sweep file is an Igor Binary Wave whose name carries six underscore
// separated tokens:
//
//	group_cell_experiment_protocol_number_extra.ibw
//
// The protocol token selects one of two linear injection schedules (IV or
// IF) and the 1-based sweep number indexes into it. Only experiment 1 has a
// known schedule; other ids fail with a format error.
//
// The time axis is rebuilt on load as linspace(0, duration, n) with the end
// point excluded.
package waveform
