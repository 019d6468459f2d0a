// Package config loads xcalld's settings from the environment, in the
// teacher's style: flat Settings struct, UPPER_CASE/lower_case key
// aliases, typed getters with defaults.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Settings keeps all configuration options the dispatcher and its
// connections need at startup. Naming mirrors the protocol's own
// configuration-option table (network_id, admin, fee_handler, ...).
type Settings struct {
	NetworkID   string
	Admin       string
	FeeHandler  string
	ProtocolFee int64

	StoreBackend string // "memory" | "badger"
	StorePath    string
	MetricsAddr  string

	CentralizedRelay string

	ClusterListen        string
	ClusterValidatorsHex []string // hex-encoded pubkeys, scheme-specific
	ClusterThreshold     int
	ClusterScheme        string // "secp256k1" | "ed25519"

	LogLevel string
}

// Load reads settings from the environment, accepting both spellings of
// each key so operators can use whichever convention their deployment
// tooling already has.
func Load() Settings {
	get := func(keys []string, def string) string {
		for _, k := range keys {
			if v := strings.TrimSpace(os.Getenv(k)); v != "" {
				return v
			}
		}
		return def
	}
	getInt64 := func(keys []string, def int64) int64 {
		s := get(keys, "")
		if s == "" {
			return def
		}
		if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return n
		}
		return def
	}
	getInt := func(keys []string, def int) int {
		s := get(keys, "")
		if s == "" {
			return def
		}
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return n
		}
		return def
	}
	splitCSV := func(s string) []string {
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out
	}

	st := Settings{}
	st.NetworkID = get([]string{"network_id", "NETWORK_ID"}, "0x1.local")
	st.Admin = get([]string{"admin", "ADMIN"}, "")
	st.FeeHandler = get([]string{"fee_handler", "FEE_HANDLER"}, "")
	st.ProtocolFee = getInt64([]string{"protocol_fee", "PROTOCOL_FEE"}, 0)

	st.StoreBackend = get([]string{"store_backend", "STORE_BACKEND"}, "memory")
	st.StorePath = get([]string{"store_path", "STORE_PATH"}, "./data/xcall")
	st.MetricsAddr = get([]string{"metrics_addr", "METRICS_ADDR"}, ":9464")

	st.CentralizedRelay = get([]string{"centralized_relay", "CENTRALIZED_RELAY"}, "")

	st.ClusterListen = get([]string{"cluster_listen", "CLUSTER_LISTEN"}, ":8090")
	st.ClusterValidatorsHex = splitCSV(get([]string{"cluster_validators", "CLUSTER_VALIDATORS"}, ""))
	st.ClusterThreshold = getInt([]string{"cluster_threshold", "CLUSTER_THRESHOLD"}, 1)
	st.ClusterScheme = get([]string{"cluster_scheme", "CLUSTER_SCHEME"}, "secp256k1")

	st.LogLevel = get([]string{"log_level", "LOG_LEVEL"}, "info")

	return st
}
