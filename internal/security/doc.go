// Package security hashes and verifies API keys.
//
// Keys are stored in configuration as scrypt hashes, never in plaintext:
//
//	server:
//	  api_keys:
//	    research-notebooks: scrypt$32768$8$1$<salt>$<sum>
//
// Generate a hash with `server -hash-key <key>`. KeyVerifier checks the
// X-API-Key header against every configured hash.
package security
