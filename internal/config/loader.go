package config

import (
	"fmt"
	"os"
	"strconv"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors the on-disk TOML shape: a single top-level `[mail]`
// table whose subtables are keyed by protocol name, each subtable a flat
// set of option keys (spec §6: "mail.<protocol>.<key>").
//
//	[mail.pop3]
//	host = "pop.example.com"
//	apop.enable = true
//
//	[mail.smtp]
//	host = "smtp.example.com"
//	starttls.required = true
type FileConfig struct {
	Mail map[string]map[string]any `toml:"mail"`
}

// Load parses a TOML configuration file into one ProtocolConfig per
// protocol table present in the file. A missing file is not an error — it
// yields an empty set, matching the teacher's loader.go's "absent file
// means Default()" behavior, generalized to "absent file means no
// protocol overrides".
func Load(path string) (map[string]ProtocolConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]ProtocolConfig{}, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var file FileConfig
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	result := make(map[string]ProtocolConfig, len(file.Mail))
	for protocol, table := range file.Mail {
		result[protocol] = NewProtocolConfig(protocol, flattenTable(table))
	}
	return result, nil
}

// flattenTable converts a TOML table (nested maps from dotted keys such as
// "starttls.required") into the flat string-keyed form ProtocolConfig
// expects, preserving the dotted-key spelling from spec §6's option table.
func flattenTable(table map[string]any) map[string]string {
	out := map[string]string{}
	flattenInto(out, "", table)
	return out
}

func flattenInto(out map[string]string, prefix string, table map[string]any) {
	for key, value := range table {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		switch v := value.(type) {
		case map[string]any:
			flattenInto(out, full, v)
		default:
			out[full] = stringify(v)
		}
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}
