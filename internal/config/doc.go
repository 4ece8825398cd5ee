// Package config loads the application configuration.
//
// # Configuration Sources
//
// Values are applied in this order, later sources winning:
//
//  1. Default()
//  2. A YAML file: the path in IVF_CONFIG, or ivfeatures.yaml, or
//     configs/ivfeatures.yaml
//  3. Environment variables
//
// # Environment Variables
//
// All environment variables follow the pattern IVF_<SECTION>_<FIELD>:
//
//	IVF_SERVER_PORT=9090
//	IVF_SERVER_DATA_DIR=/srv/recordings
//	IVF_LOGGING_LEVEL=debug
//	IVF_ANALYSIS_STRICT=true
//	IVF_ANALYSIS_EXCLUDE=bad,leaky
//	IVF_ANALYSIS_PARAMS_STEADYCUTOFF=75
//
// # Validation
//
// Load rejects out-of-range ports and timeouts, unknown log levels and
// formats, and analysis parameters whose windows are out of order. Every
// failure is an AppError of type CONFIG.
package config
