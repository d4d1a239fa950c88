//go:build !unix

package log

import (
	"log/slog"
	"os"
)

func GetOSInfo() []any {
	attrs := runtimeAttrs()
	if v, ok := os.LookupEnv("OS"); ok {
		attrs = append(attrs, slog.String("os_version", v))
	}
	return attrs
}
