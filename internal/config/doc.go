// Package config loads the pitalign service and CLI configuration.
//
// # Configuration Sources
//
// Values are applied in order, later sources winning:
//
//  1. Default()
//  2. A YAML file (the -config flag, else config.yaml or configs/config.yaml)
//  3. Environment variables
//
// # Environment Variables
//
// Variables are namespaced PITALIGN_<SECTION>_<FIELD>:
//
//	PITALIGN_SERVER_PORT=8080
//	PITALIGN_LOGGING_LEVEL=debug
//	PITALIGN_DATA_DIR=/srv/facts
//	PITALIGN_DATA_REFERENCE_FILE=/srv/facts/securities.csv
//	PITALIGN_ALIGNMENT_LOOKBACKS=alpaca_etb:20,brain_bsi:15
//
// # Validation
//
// Load validates the merged result with go-playground/validator struct
// tags and fails on the first invalid field.
package config
