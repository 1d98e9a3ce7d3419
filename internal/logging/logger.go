/*
Copyright (c) 2025 Tessellate, Inc.

Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the
License. You may obtain a copy of the License at

  http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
"AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the specific
language governing permissions and limitations under the License.
*/

package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"
)

// Names of the command line flags:
const (
	levelFlagName  = "log-level"
	formatFlagName = "log-format"
)

// AddFlags adds the logging flags to the given flag set.
func AddFlags(flags *pflag.FlagSet) {
	flags.String(levelFlagName, "info", "Log level: 'debug', 'info', 'warn' or 'error'.")
	flags.String(formatFlagName, "text", "Log format: 'text' or 'json'.")
}

// LoggerBuilder contains the data and logic needed to create loggers.
type LoggerBuilder struct {
	writer io.Writer
	level  string
	format string
	flags  *pflag.FlagSet
}

// NewLogger creates a builder that can then be used to configure and create a logger.
func NewLogger() *LoggerBuilder {
	return &LoggerBuilder{
		level:  "info",
		format: "text",
	}
}

// SetWriter sets the writer where the log will be written. This is optional and the default is the standard
// error stream.
func (b *LoggerBuilder) SetWriter(value io.Writer) *LoggerBuilder {
	b.writer = value
	return b
}

// SetLevel sets the log level. This is optional and the default is 'info'.
func (b *LoggerBuilder) SetLevel(value string) *LoggerBuilder {
	b.level = value
	return b
}

// SetFormat sets the log format. This is optional and the default is 'text'.
func (b *LoggerBuilder) SetFormat(value string) *LoggerBuilder {
	b.format = value
	return b
}

// SetFlags sets the command line flags that should be used to configure the logger. This is optional.
func (b *LoggerBuilder) SetFlags(flags *pflag.FlagSet) *LoggerBuilder {
	b.flags = flags
	return b
}

// Build creates a new logger using the configuration stored in the builder.
func (b *LoggerBuilder) Build() (result *slog.Logger, err error) {
	// Take the configuration from the flags, when given:
	level := b.level
	format := b.format
	if b.flags != nil {
		var value string
		value, err = b.flags.GetString(levelFlagName)
		if err == nil && value != "" {
			level = value
		}
		value, err = b.flags.GetString(formatFlagName)
		if err == nil && value != "" {
			format = value
		}
		err = nil
	}

	// Check the level:
	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "info":
		slogLevel = slog.LevelInfo
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		err = fmt.Errorf("unknown log level '%s'", level)
		return
	}

	// Create the handler:
	writer := b.writer
	if writer == nil {
		writer = os.Stderr
	}
	options := &slog.HandlerOptions{
		Level: slogLevel,
	}
	var handler slog.Handler
	switch format {
	case "text":
		handler = slog.NewTextHandler(writer, options)
	case "json":
		handler = slog.NewJSONHandler(writer, options)
	default:
		err = fmt.Errorf("unknown log format '%s'", format)
		return
	}
	result = slog.New(handler)
	return
}
